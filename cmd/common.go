// Package cmd implements the CLI subcommands.
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/nancarrowm/rangesync/internal/brand"
	"github.com/nancarrowm/rangesync/internal/clock"
	"github.com/nancarrowm/rangesync/internal/config"
	"github.com/nancarrowm/rangesync/internal/history"
	"github.com/nancarrowm/rangesync/internal/httpclient"
	"github.com/nancarrowm/rangesync/internal/logging"
	"github.com/nancarrowm/rangesync/internal/metrics"
	"github.com/nancarrowm/rangesync/internal/policystore"
	"github.com/nancarrowm/rangesync/internal/ranges"
	"github.com/nancarrowm/rangesync/internal/state"
	syncengine "github.com/nancarrowm/rangesync/internal/sync"
)

// engine bundles everything a subcommand needs for a sync pass.
type engine struct {
	cfg     *config.Config
	service *syncengine.Service
	store   *state.Store
	history *history.Store
	logger  *logging.Logger
}

func (e *engine) close() {
	if e.history != nil {
		e.history.Close()
	}
}

// buildEngine loads the config and wires the full sync stack.
func buildEngine(configFile string) (*engine, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	logger := logging.Default()
	clk := &clock.RealClock{}

	hc := httpclient.New(logger,
		httpclient.WithTimeout(cfg.HTTPTimeout()),
		httpclient.WithRetry(cfg.HTTPRetry()))

	agg := ranges.NewAggregator(hc, clk, logger, cfg.ParallelFetches())
	agg.OnSourceResult(func(source string, ok bool) {
		result := "success"
		if !ok {
			result = "error"
		}
		metrics.Get().SourceFetches.WithLabelValues(source, result).Inc()
	})

	scope, err := policystore.ParseScope(cfg.PolicyStore.Scope)
	if err != nil {
		return nil, err
	}
	api := policystore.NewClient(hc, cfg.PolicyStore.Endpoint, cfg.PolicyStore.Token,
		scope, cfg.PolicyStore.ScopeID, logger)

	store := state.NewStore(statePath(cfg), clk, logger)

	var hist *history.Store
	if path := historyPath(cfg); path != "" {
		hist, err = history.Open(path, clk, logger)
		if err != nil {
			// History is advisory, keep going without it.
			logger.Warn("history database unavailable", "path", path, "error", err)
			hist = nil
		}
	}

	service := syncengine.NewService(cfg, agg, api, store, hist, clk, logger)
	return &engine{
		cfg:     cfg,
		service: service,
		store:   store,
		history: hist,
		logger:  logger,
	}, nil
}

func statePath(cfg *config.Config) string {
	if cfg.StatePath != "" {
		return cfg.StatePath
	}
	return filepath.Join(brand.GetStateDir(), "state.json")
}

func historyPath(cfg *config.Config) string {
	if cfg.HistoryPath != "" {
		return cfg.HistoryPath
	}
	return filepath.Join(brand.GetStateDir(), "history.db")
}

// openStateStore loads the config and returns just the state store,
// for read-only commands that never touch the network.
func openStateStore(configFile string) (*config.Config, *state.Store, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, state.NewStore(statePath(cfg), &clock.RealClock{}, logging.Default()), nil
}

func summaryLine(s *syncengine.RunSummary) string {
	if s.Skipped {
		return fmt.Sprintf("no changes (%d ranges current)", s.Snapshot.Count())
	}
	r := s.Result
	return fmt.Sprintf("created=%d existing=%d deleted=%d failed=%d delete_failed=%d",
		r.Created, r.Existing, r.Deleted, r.Failed, r.DeleteFailed)
}
