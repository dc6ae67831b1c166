// Package logging provides structured logging with run/step tracking.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// contextKey is used for storing logger in context.
type contextKey struct{}

// Logger wraps slog.Logger with run-scoped step tracking.
type Logger struct {
	*slog.Logger
	run       string
	startTime time.Time
	stepNum   int
}

// RunError represents an error that occurred during a run step.
type RunError struct {
	Run     string
	Step    string
	StepNum int
	Err     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("[%s] step %d (%s): %v", e.Run, e.StepNum, e.Step, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// New creates a new Logger with the specified output format.
func New(jsonFormat bool) *Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{Key: "ts", Value: slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05.000"))}
			}
			return a
		},
	}
	if jsonFormat {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// Default returns the default logger.
func Default() *Logger {
	return New(false)
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		run:       l.run,
		startTime: l.startTime,
		stepNum:   l.stepNum,
	}
}

// WithContext returns a new context with the logger attached.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext retrieves the logger from context, or returns default logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return l
	}
	return Default()
}

// StartRun creates a new logger for a named run (analysis, doc generation, chat).
func (l *Logger) StartRun(runName string, attrs ...any) *Logger {
	newLogger := &Logger{
		Logger:    l.Logger.With(append([]any{"run", runName}, attrs...)...),
		run:       runName,
		startTime: time.Now(),
		stepNum:   0,
	}
	newLogger.Info("run started")
	return newLogger
}

// Step logs a run step and returns a function to log step completion.
func (l *Logger) Step(stepName string, attrs ...any) func(error) {
	l.stepNum++
	stepStart := time.Now()
	stepLogger := l.With(append([]any{"step", stepName, "step_num", l.stepNum}, attrs...)...)
	stepLogger.Info("step started")

	return func(err error) {
		elapsed := time.Since(stepStart)
		if err != nil {
			stepLogger.Error("step failed",
				"error", err.Error(),
				"elapsed_ms", elapsed.Milliseconds(),
			)
		} else {
			stepLogger.Info("step completed",
				"elapsed_ms", elapsed.Milliseconds(),
			)
		}
	}
}

// EndRun logs run completion.
func (l *Logger) EndRun(err error) {
	elapsed := time.Since(l.startTime)
	if err != nil {
		l.Error("run failed",
			"error", err.Error(),
			"elapsed_ms", elapsed.Milliseconds(),
			"total_steps", l.stepNum,
		)
	} else {
		l.Info("run completed",
			"elapsed_ms", elapsed.Milliseconds(),
			"total_steps", l.stepNum,
		)
	}
}

// WrapError wraps an error with run context.
func (l *Logger) WrapError(step string, err error) error {
	if err == nil {
		return nil
	}
	return &RunError{
		Run:     l.run,
		Step:    step,
		StepNum: l.stepNum,
		Err:     err,
	}
}
