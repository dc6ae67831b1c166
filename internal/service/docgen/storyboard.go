package docgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"repo_onboarder/internal/store"
	"repo_onboarder/pkg/llm"
	"repo_onboarder/pkg/logging"
	"repo_onboarder/pkg/profile"
)

// Slide is one storyboard slide.
type Slide struct {
	Title       string   `json:"title"`
	Bullets     []string `json:"bullets"`
	ImagePrompt string   `json:"imagePrompt"`
	Voiceover   string   `json:"voiceover"`
}

// Storyboard is a slide deck script generated from a document.
type Storyboard struct {
	Slides []Slide `json:"slides"`
}

// GenerateStoryboard turns a stored document into a video storyboard.
// The run uses the document content as its only context; nothing is
// persisted, rendering is the caller's business.
func (e *Engine) GenerateStoryboard(ctx context.Context, projectID, documentID string) (Storyboard, error) {
	log := e.logger.StartRun("storyboard", "project_id", projectID, "document_id", documentID)

	sb, err := e.generateStoryboard(ctx, log, projectID, documentID)
	log.EndRun(err)
	return sb, err
}

func (e *Engine) generateStoryboard(ctx context.Context, log *logging.Logger, projectID, documentID string) (Storyboard, error) {
	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return Storyboard{}, err
	}
	if doc.ProjectID != projectID {
		return Storyboard{}, fmt.Errorf("document %s: %w", documentID, store.ErrNotFound)
	}

	p := e.overrides.Apply(profile.Storyboard(doc.Title, doc.Content))

	done := log.Step("run storyboard writer", "document_title", doc.Title)
	result, err := e.run(ctx, p, []llm.Message{llm.NewTextMessage(llm.RoleUser, p.UserPrompt)}, nil, projectID)
	done(err)
	if err != nil {
		return Storyboard{}, fmt.Errorf("storyboard run: %w", err)
	}

	var sb Storyboard
	raw := stripCodeFences(result.FinalText)
	if err := json.Unmarshal([]byte(raw), &sb); err != nil {
		return Storyboard{}, fmt.Errorf("storyboard is not valid JSON: %w", err)
	}
	if len(sb.Slides) == 0 {
		return Storyboard{}, fmt.Errorf("storyboard has no slides")
	}
	log.Info("storyboard generated", "slides", len(sb.Slides))
	return sb, nil
}

// stripCodeFences removes a surrounding markdown code block, which
// models sometimes wrap around JSON output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
