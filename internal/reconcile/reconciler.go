package reconcile

import (
	"context"
	"strconv"

	"github.com/nancarrowm/rangesync/internal/diff"
	"github.com/nancarrowm/rangesync/internal/logging"
	"github.com/nancarrowm/rangesync/internal/policystore"
	"github.com/nancarrowm/rangesync/internal/ranges"
)

// Rule record statuses.
const (
	StatusCreated      = "created"
	StatusExisting     = "existing"
	StatusDeleted      = "deleted"
	StatusFailed       = "failed"
	StatusDeleteFailed = "delete_failed"
)

// Options configures how rules are generated and applied.
type Options struct {
	Prefix        string
	Port          int
	Protocols     []string
	Action        string
	Direction     string
	Description   string
	MaxNameLength int
	OSTypes       []string
	DryRun        bool
}

// RuleRecord is the outcome of one rule operation.
type RuleRecord struct {
	Name      string
	Range     string
	IPVersion string
	Protocol  string
	Port      int
	Status    string
	Err       error
	DryRun    bool
}

// Result summarizes a reconciliation pass.
type Result struct {
	Records      []RuleRecord
	Created      int
	Existing     int
	Deleted      int
	Failed       int
	DeleteFailed int
	Degraded     bool
	DryRun       bool
}

// Succeeded reports whether every operation in the pass applied
// cleanly. Only a fully clean pass may update persisted state.
func (r *Result) Succeeded() bool {
	return r.Failed == 0 && r.DeleteFailed == 0
}

// SyncedRecords returns the records representing rules that now exist
// in the store (created or confirmed existing).
func (r *Result) SyncedRecords() []RuleRecord {
	out := make([]RuleRecord, 0, r.Created+r.Existing)
	for _, rec := range r.Records {
		if rec.Status == StatusCreated || rec.Status == StatusExisting {
			out = append(out, rec)
		}
	}
	return out
}

// Reconciler applies change sets to the policy store.
type Reconciler struct {
	api     policystore.API
	opts    Options
	logger  *logging.Logger
	metrics func(op, status string)
}

// NewReconciler creates a Reconciler.
func NewReconciler(api policystore.API, opts Options, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.Default()
	}
	if opts.MaxNameLength <= 0 {
		opts.MaxNameLength = DefaultMaxNameLength
	}
	return &Reconciler{
		api:    api,
		opts:   opts,
		logger: logger.WithComponent("reconciler"),
	}
}

// OnRuleOp registers a callback invoked per rule operation, used to
// feed metrics.
func (r *Reconciler) OnRuleOp(fn func(op, status string)) {
	r.metrics = fn
}

// Reconcile applies the change set against the live inventory.
// inventory maps rule name to the stored rule; degraded marks a pass
// where the inventory fetch failed and an empty map was substituted,
// which suppresses deletes because absence cannot be trusted.
//
// Each operation is independent: a failed create or delete is
// recorded and the pass continues. In dry-run mode every intended
// operation is logged and recorded but no API call is made.
func (r *Reconciler) Reconcile(ctx context.Context, cs *diff.ChangeSet, inventory map[string]policystore.Rule, degraded bool) *Result {
	result := &Result{Degraded: degraded, DryRun: r.opts.DryRun}

	for _, rng := range cs.Added {
		for _, proto := range r.opts.Protocols {
			r.createOne(ctx, rng, proto, inventory, result)
		}
	}

	// Unchanged ranges still need their rules confirmed present, so
	// drift (manual deletion in the store) is repaired.
	for _, rng := range cs.Unchanged {
		for _, proto := range r.opts.Protocols {
			r.confirmOne(ctx, rng, proto, inventory, result)
		}
	}

	if degraded {
		if len(cs.Removed) > 0 {
			r.logger.Warn("inventory unavailable, skipping deletes this pass",
				"pending", len(cs.Removed))
		}
	} else {
		for _, rng := range cs.Removed {
			for _, proto := range r.opts.Protocols {
				r.deleteOne(ctx, rng, proto, inventory, result)
			}
		}
	}

	r.logger.Info("reconciliation pass complete",
		"created", result.Created,
		"existing", result.Existing,
		"deleted", result.Deleted,
		"failed", result.Failed,
		"delete_failed", result.DeleteFailed,
		"dry_run", result.DryRun,
		"degraded", result.Degraded)
	return result
}

func (r *Reconciler) createOne(ctx context.Context, rng ranges.AddressRange, proto string, inventory map[string]policystore.Rule, result *Result) {
	name := RuleName(r.opts.Prefix, rng.Version, proto, r.opts.Port, rng.CIDR, r.opts.MaxNameLength)
	rec := RuleRecord{
		Name:      name,
		Range:     rng.CIDR,
		IPVersion: string(rng.Version),
		Protocol:  proto,
		Port:      r.opts.Port,
		DryRun:    r.opts.DryRun,
	}

	if _, exists := inventory[name]; exists {
		rec.Status = StatusExisting
		result.Existing++
		result.Records = append(result.Records, rec)
		r.report("create", StatusExisting)
		return
	}

	if r.opts.DryRun {
		r.logger.Info("would create rule", "name", name, "range", rng.CIDR)
		rec.Status = StatusCreated
		result.Created++
		result.Records = append(result.Records, rec)
		r.report("create", StatusCreated)
		return
	}

	_, err := r.api.CreateRule(ctx, r.buildRule(name, rng, proto))
	if err != nil {
		r.logger.Error("rule create failed", "name", name, "range", rng.CIDR, "error", err)
		rec.Status = StatusFailed
		rec.Err = err
		result.Failed++
	} else {
		r.logger.Info("rule created", "name", name, "range", rng.CIDR)
		rec.Status = StatusCreated
		result.Created++
	}
	result.Records = append(result.Records, rec)
	r.report("create", rec.Status)
}

func (r *Reconciler) confirmOne(ctx context.Context, rng ranges.AddressRange, proto string, inventory map[string]policystore.Rule, result *Result) {
	name := RuleName(r.opts.Prefix, rng.Version, proto, r.opts.Port, rng.CIDR, r.opts.MaxNameLength)
	if _, exists := inventory[name]; exists {
		result.Existing++
		result.Records = append(result.Records, RuleRecord{
			Name:      name,
			Range:     rng.CIDR,
			IPVersion: string(rng.Version),
			Protocol:  proto,
			Port:      r.opts.Port,
			Status:    StatusExisting,
			DryRun:    r.opts.DryRun,
		})
		return
	}

	// Missing from inventory despite being unchanged: recreate,
	// unless the inventory itself is suspect this pass.
	if result.Degraded {
		result.Existing++
		result.Records = append(result.Records, RuleRecord{
			Name:      name,
			Range:     rng.CIDR,
			IPVersion: string(rng.Version),
			Protocol:  proto,
			Port:      r.opts.Port,
			Status:    StatusExisting,
			DryRun:    r.opts.DryRun,
		})
		return
	}

	r.logger.Warn("rule missing from store, repairing", "name", name, "range", rng.CIDR)
	r.createOne(ctx, rng, proto, map[string]policystore.Rule{}, result)
}

func (r *Reconciler) deleteOne(ctx context.Context, rng ranges.AddressRange, proto string, inventory map[string]policystore.Rule, result *Result) {
	name := RuleName(r.opts.Prefix, rng.Version, proto, r.opts.Port, rng.CIDR, r.opts.MaxNameLength)
	rec := RuleRecord{
		Name:      name,
		Range:     rng.CIDR,
		IPVersion: string(rng.Version),
		Protocol:  proto,
		Port:      r.opts.Port,
		DryRun:    r.opts.DryRun,
	}

	rule, exists := inventory[name]
	if !exists {
		// Already gone, nothing to do.
		r.logger.Debug("rule already absent", "name", name)
		return
	}

	if r.opts.DryRun {
		r.logger.Info("would delete rule", "name", name, "range", rng.CIDR)
		rec.Status = StatusDeleted
		result.Deleted++
		result.Records = append(result.Records, rec)
		r.report("delete", StatusDeleted)
		return
	}

	if err := r.api.DeleteRule(ctx, rule.ID); err != nil {
		r.logger.Error("rule delete failed", "name", name, "id", rule.ID, "error", err)
		rec.Status = StatusDeleteFailed
		rec.Err = err
		result.DeleteFailed++
	} else {
		r.logger.Info("rule deleted", "name", name, "range", rng.CIDR)
		rec.Status = StatusDeleted
		result.Deleted++
	}
	result.Records = append(result.Records, rec)
	r.report("delete", rec.Status)
}

func (r *Reconciler) buildRule(name string, rng ranges.AddressRange, proto string) policystore.Rule {
	return policystore.Rule{
		Name:        name,
		Description: r.opts.Description,
		Action:      r.opts.Action,
		Direction:   r.opts.Direction,
		Protocol:    proto,
		RemoteHost:  policystore.RemoteHost{Type: "cidr", Value: rng.CIDR},
		RemotePort:  strconv.Itoa(r.opts.Port),
		OSTypes:     r.opts.OSTypes,
	}
}

func (r *Reconciler) report(op, status string) {
	if r.metrics != nil {
		r.metrics(op, status)
	}
}
