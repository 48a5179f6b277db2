package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lvonguyen/s1see/internal/rules"
)

const rulesRepoName = "rules"

// RuleSyncer keeps a rule engine's loaded rulesets in sync with a git
// repository of ruleset YAML files, polling it on SyncInterval.
type RuleSyncer struct {
	manager  *Manager
	repo     *Repository
	engine   *rules.Engine
	interval time.Duration
}

// NewRuleSyncer clones the rules repository when repoURL is set (or, if a
// checkout already exists under basePath, registers and pulls it) and
// returns a RuleSyncer that can load its YAML files into engine.
func NewRuleSyncer(ctx context.Context, basePath, repoURL, branch string, syncInterval time.Duration, engine *rules.Engine) (*RuleSyncer, error) {
	manager, err := NewManager(basePath)
	if err != nil {
		return nil, fmt.Errorf("rule syncer: %w", err)
	}

	repo := &Repository{
		Name:      rulesRepoName,
		RemoteURL: repoURL,
		Branch:    branch,
	}

	if repoURL != "" {
		if _, err := manager.CloneOrPull(ctx, repo); err != nil {
			return nil, fmt.Errorf("rule syncer: initial sync: %w", err)
		}
	}

	return &RuleSyncer{manager: manager, repo: repo, engine: engine, interval: syncInterval}, nil
}

// LoadOnce reads every *.yaml/*.yml file under the repository's local path
// and loads each as a ruleset into the engine.
func (s *RuleSyncer) LoadOnce() error {
	if s.repo.LocalPath == "" {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(s.repo.LocalPath, "*.y*ml"))
	if err != nil {
		return fmt.Errorf("glob rule files: %w", err)
	}
	for _, path := range matches {
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			continue
		}
		ruleset, err := rules.LoadRulesetFile(path)
		if err != nil {
			return fmt.Errorf("load ruleset %s: %w", path, err)
		}
		s.engine.LoadRuleset(ruleset)
	}
	return nil
}

// Run pulls the rules repository and reloads rulesets every interval until
// ctx is cancelled. Pull/load errors are non-fatal: the previously loaded
// rulesets keep running until the next successful sync.
func (s *RuleSyncer) Run(ctx context.Context, onError func(error)) {
	if s.interval <= 0 {
		s.interval = 5 * time.Minute
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.repo.RemoteURL != "" {
				if _, err := s.manager.Pull(ctx, rulesRepoName); err != nil && onError != nil {
					onError(fmt.Errorf("rule syncer: pull: %w", err))
				}
			}
			if err := s.LoadOnce(); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
