// Package sync orchestrates one reconciliation pass and the periodic
// service loop around it.
package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/nancarrowm/rangesync/internal/clock"
	"github.com/nancarrowm/rangesync/internal/config"
	"github.com/nancarrowm/rangesync/internal/diff"
	"github.com/nancarrowm/rangesync/internal/history"
	"github.com/nancarrowm/rangesync/internal/logging"
	"github.com/nancarrowm/rangesync/internal/metrics"
	"github.com/nancarrowm/rangesync/internal/policystore"
	"github.com/nancarrowm/rangesync/internal/ranges"
	"github.com/nancarrowm/rangesync/internal/reconcile"
	"github.com/nancarrowm/rangesync/internal/state"
)

// RunOptions controls a single pass.
type RunOptions struct {
	// DryRun logs every intended mutation without touching the
	// policy store or the persisted state.
	DryRun bool

	// Force ignores the persisted state, treating the pass as a
	// bootstrap so every current range is re-applied.
	Force bool
}

// RunSummary is the outcome of one pass.
type RunSummary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Snapshot *ranges.RangeSnapshot
	Changes  *diff.ChangeSet
	Result   *reconcile.Result
	Skipped  bool
}

// Service wires the aggregator, differ and reconciler together and
// optionally runs them on a timer.
type Service struct {
	cfg        *config.Config
	aggregator *ranges.Aggregator
	api        policystore.API
	stateStore *state.Store
	histStore  *history.Store
	clock      clock.Clock
	logger     *logging.Logger

	mu      stdsync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      stdsync.WaitGroup
}

// NewService creates a Service. histStore may be nil to disable run
// history recording.
func NewService(cfg *config.Config, agg *ranges.Aggregator, api policystore.API,
	stateStore *state.Store, histStore *history.Store, c clock.Clock, logger *logging.Logger) *Service {
	if c == nil {
		c = &clock.RealClock{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		cfg:        cfg,
		aggregator: agg,
		api:        api,
		stateStore: stateStore,
		histStore:  histStore,
		clock:      c,
		logger:     logger.WithComponent("sync"),
	}
}

// Start begins the periodic sync loop.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.logger.Info("starting sync loop", "interval", s.cfg.Interval())
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true

	s.wg.Add(1)
	go s.runLoop(s.cfg.Interval())
}

// Stop stops the loop and waits for an in-flight pass to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.logger.Info("stopping sync loop")
	s.cancel()
	s.wg.Wait()
	s.running = false
}

func (s *Service) runLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial pass
	if _, err := s.Run(s.ctx, RunOptions{}); err != nil {
		s.logger.Error("sync pass failed", "error", err)
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(s.ctx, RunOptions{}); err != nil {
				s.logger.Error("sync pass failed", "error", err)
			}
		}
	}
}

// Aggregate fetches and merges all configured sources without
// reconciling. Used by read-only commands.
func (s *Service) Aggregate(ctx context.Context) (*ranges.RangeSnapshot, error) {
	return s.aggregator.Aggregate(ctx, s.cfg.SourceList())
}

// Run executes one full pass: aggregate sources, diff against the
// persisted state, reconcile the policy store and persist the result.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:   history.NewRunID(),
		Started: s.clock.Now(),
	}
	m := metrics.Get()
	defer func() {
		summary.Finished = s.clock.Now()
		m.SyncDuration.Observe(summary.Finished.Sub(summary.Started).Seconds())
	}()

	s.logger.Info("sync pass starting", "run_id", summary.RunID,
		"dry_run", opts.DryRun, "force", opts.Force)

	snapshot, err := s.aggregator.Aggregate(ctx, s.cfg.SourceList())
	if err != nil {
		// An empty snapshot must never proceed: diffing against it
		// would delete every managed rule.
		m.SyncRuns.WithLabelValues("fetch_failed").Inc()
		s.recordFailure(ctx, summary, err)
		return summary, fmt.Errorf("aggregating sources: %w", err)
	}
	summary.Snapshot = snapshot
	m.RangesCurrent.WithLabelValues("IPv4").Set(float64(len(snapshot.IPv4)))
	m.RangesCurrent.WithLabelValues("IPv6").Set(float64(len(snapshot.IPv6)))

	var previous *state.PersistedState
	if !opts.Force {
		previous, err = s.stateStore.Load()
		if err != nil {
			m.SyncRuns.WithLabelValues("state_failed").Inc()
			s.recordFailure(ctx, summary, err)
			return summary, fmt.Errorf("loading state: %w", err)
		}
	}

	changes := diff.Diff(snapshot, previous)
	summary.Changes = changes

	if !changes.HasChanges() && previous != nil {
		s.logger.Info("no changes since last pass", "run_id", summary.RunID,
			"ranges", snapshot.Count())
		summary.Skipped = true
		m.SyncRuns.WithLabelValues("no_changes").Inc()
		s.recordRun(ctx, summary, "no_changes", "")
		return summary, nil
	}

	inventory, degraded := s.fetchInventory(ctx)

	reconciler := reconcile.NewReconciler(s.api, reconcile.Options{
		Prefix:        s.cfg.Rule.Prefix,
		Port:          s.cfg.Rule.Port,
		Protocols:     s.cfg.Rule.ProtocolList(),
		Action:        s.cfg.Rule.ActionOrDefault(),
		Direction:     s.cfg.Rule.DirectionOrDefault(),
		Description:   s.cfg.Rule.Description,
		MaxNameLength: s.cfg.Rule.MaxNameLength,
		OSTypes:       s.cfg.Rule.OSTypes,
		DryRun:        opts.DryRun,
	}, s.logger)
	reconciler.OnRuleOp(func(op, status string) {
		m.RuleOps.WithLabelValues(op, status).Inc()
	})

	result := reconciler.Reconcile(ctx, changes, inventory, degraded)
	summary.Result = result

	outcome := "success"
	if !result.Succeeded() {
		outcome = "partial_failure"
	}
	if opts.DryRun {
		outcome = "dry_run"
	}
	m.SyncRuns.WithLabelValues(outcome).Inc()

	// State is only advanced by a clean applied pass. A dry run, a
	// pass with failures, or a degraded pass (which skipped deletes)
	// leaves it untouched so the next pass retries.
	if !opts.DryRun && result.Succeeded() && !degraded {
		if err := s.persist(snapshot, result); err != nil {
			s.recordFailure(ctx, summary, err)
			return summary, fmt.Errorf("persisting state: %w", err)
		}
		m.LastSyncTimestamp.Set(float64(s.clock.Now().Unix()))
	}

	s.recordRun(ctx, summary, outcome, "")

	if !result.Succeeded() {
		return summary, fmt.Errorf("pass completed with %d failed operation(s)",
			result.Failed+result.DeleteFailed)
	}
	return summary, nil
}

// fetchInventory lists the live rules, keyed by name. On failure the
// pass proceeds degraded with an empty inventory: creates still work
// (the store rejects duplicates by name) but deletes are skipped.
func (s *Service) fetchInventory(ctx context.Context) (map[string]policystore.Rule, bool) {
	rules, err := s.api.ListRules(ctx)
	if err != nil {
		s.logger.Warn("inventory fetch failed, proceeding degraded", "error", err)
		return map[string]policystore.Rule{}, true
	}

	inventory := make(map[string]policystore.Rule, len(rules))
	prefix := s.cfg.Rule.Prefix
	for _, rule := range rules {
		// Only rules carrying our prefix are ours to manage.
		if len(rule.Name) >= len(prefix) && rule.Name[:len(prefix)] == prefix {
			inventory[rule.Name] = rule
		}
	}
	return inventory, false
}

func (s *Service) persist(snapshot *ranges.RangeSnapshot, result *reconcile.Result) error {
	st := &state.PersistedState{
		LastSync:   s.clock.Now().UTC(),
		IPv4Ranges: snapshot.CIDRs(ranges.IPv4),
		IPv6Ranges: snapshot.CIDRs(ranges.IPv6),
	}
	for _, rec := range result.SyncedRecords() {
		st.SyncedRules = append(st.SyncedRules, state.SyncedRule{
			Name:      rec.Name,
			Range:     rec.Range,
			IPVersion: rec.IPVersion,
			Protocol:  rec.Protocol,
			Port:      rec.Port,
			Status:    rec.Status,
		})
	}
	return s.stateStore.Save(st)
}

func (s *Service) recordFailure(ctx context.Context, summary *RunSummary, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	s.recordRun(ctx, summary, "failed", msg)
}

func (s *Service) recordRun(ctx context.Context, summary *RunSummary, outcome, errMsg string) {
	if s.histStore == nil {
		return
	}

	run := history.Run{
		ID:         summary.RunID,
		StartedAt:  summary.Started,
		FinishedAt: s.clock.Now(),
		Outcome:    outcome,
		Error:      errMsg,
	}
	var records []reconcile.RuleRecord
	if summary.Snapshot != nil {
		run.RangesTotal = summary.Snapshot.Count()
	}
	if summary.Result != nil {
		run.DryRun = summary.Result.DryRun
		run.Degraded = summary.Result.Degraded
		run.Created = summary.Result.Created
		run.Existing = summary.Result.Existing
		run.Deleted = summary.Result.Deleted
		run.Failed = summary.Result.Failed
		run.DeleteFailed = summary.Result.DeleteFailed
		records = summary.Result.Records
	}

	// History is advisory; a broken database never fails the pass.
	if err := s.histStore.RecordRun(ctx, run, records); err != nil &&
		!errors.Is(err, context.Canceled) {
		s.logger.Warn("failed to record run history", "error", err)
	}
}
