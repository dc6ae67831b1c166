package main

import (
	"fmt"
	"time"

	"repo_onboarder/internal/config"
	"repo_onboarder/internal/service/docgen"
	"repo_onboarder/internal/service/workspace"
	"repo_onboarder/internal/store"
	"repo_onboarder/pkg/github"
	"repo_onboarder/pkg/gitutil"
	"repo_onboarder/pkg/llm"
	"repo_onboarder/pkg/logging"
	"repo_onboarder/pkg/profile"
)

// appContext wires the shared dependencies for the commands. Everything
// is built lazily so commands that only read the store do not require
// LLM credentials beyond config validation.
type appContext struct {
	cfg    *config.Config
	logger *logging.Logger
	st     *store.Store
}

func (a *appContext) config() (config.Config, error) {
	if a.cfg != nil {
		return *a.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	a.cfg = &cfg
	return cfg, nil
}

func (a *appContext) logging() (*logging.Logger, error) {
	if a.logger != nil {
		return a.logger, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	a.logger = logging.New(cfg.LogJSON)
	return a.logger, nil
}

func (a *appContext) openStore() (*store.Store, error) {
	if a.st != nil {
		return a.st, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.st = st
	return st, nil
}

func (a *appContext) close() {
	if a.st != nil {
		_ = a.st.Close()
		a.st = nil
	}
}

func (a *appContext) buildEngine() (*docgen.Engine, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	logger, err := a.logging()
	if err != nil {
		return nil, err
	}
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(cfg.ProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("create llm provider: %w", err)
	}

	overrides, err := profile.LoadOverrides(cfg.ProfileOverrides)
	if err != nil {
		return nil, err
	}

	cloner := workspace.GitCloner{
		Git:    gitutil.Client{},
		GitHub: github.NewClient("", cfg.GitHubToken),
		Token:  cfg.GitHubToken,
	}
	workspaces := workspace.NewManager(cfg.WorkspaceBase, time.Duration(cfg.SessionTTLSec)*time.Second, cloner)

	return docgen.New(st, workspaces, provider, overrides, logger), nil
}
