package ranges

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nancarrowm/rangesync/internal/clock"
	"github.com/nancarrowm/rangesync/internal/logging"
)

// ErrNoRanges is returned when every configured source failed or
// produced nothing. Callers must treat it as fatal for the pass:
// an empty snapshot must never reach the differ, or every existing
// rule would look removed.
var ErrNoRanges = errors.New("no ranges retrieved from any source")

// Source is one publisher endpoint to fetch ranges from.
type Source struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Fetcher retrieves the raw body of a source URL.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Aggregator fetches all sources and merges their ranges into one
// deduplicated snapshot. Individual source failures are logged and
// skipped; only total failure aborts the pass.
type Aggregator struct {
	fetcher  Fetcher
	clock    clock.Clock
	logger   *logging.Logger
	parallel int

	mu      sync.Mutex
	metrics func(source string, ok bool)
}

// NewAggregator creates an Aggregator. parallel bounds how many
// sources are fetched concurrently; values below 1 mean sequential.
func NewAggregator(fetcher Fetcher, c clock.Clock, logger *logging.Logger, parallel int) *Aggregator {
	if c == nil {
		c = &clock.RealClock{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if parallel < 1 {
		parallel = 1
	}
	return &Aggregator{
		fetcher:  fetcher,
		clock:    c,
		logger:   logger.WithComponent("aggregator"),
		parallel: parallel,
	}
}

// OnSourceResult registers a callback invoked once per source with the
// fetch outcome. Used to feed metrics without coupling to them.
func (a *Aggregator) OnSourceResult(fn func(source string, ok bool)) {
	a.metrics = fn
}

// Aggregate fetches every source and returns the merged snapshot.
// Returns ErrNoRanges if no source yielded any valid range.
func (a *Aggregator) Aggregate(ctx context.Context, sources []Source) (*RangeSnapshot, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources configured", ErrNoRanges)
	}

	var (
		mu  sync.Mutex
		raw []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallel)

	for _, src := range sources {
		src := src
		g.Go(func() error {
			found, err := a.fetchOne(gctx, src)
			a.report(src.Name, err == nil)
			if err != nil {
				// A single bad source must not sink the pass.
				a.logger.Warn("source fetch failed, skipping",
					"source", src.Name, "url", src.URL, "error", err)
				return nil
			}
			mu.Lock()
			raw = append(raw, found...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := NewSnapshot(a.clock.Now(), raw)
	if snap.Count() == 0 {
		return nil, ErrNoRanges
	}

	a.logger.Info("aggregation complete",
		"sources", len(sources),
		"ipv4", len(snap.IPv4),
		"ipv6", len(snap.IPv6))
	return snap, nil
}

func (a *Aggregator) fetchOne(ctx context.Context, src Source) ([]string, error) {
	body, err := a.fetcher.Get(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	found, err := ParseResponse(src.Name, body)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("source parsed", "source", src.Name, "ranges", len(found))
	return found, nil
}

func (a *Aggregator) report(source string, ok bool) {
	a.mu.Lock()
	fn := a.metrics
	a.mu.Unlock()
	if fn != nil {
		fn(source, ok)
	}
}
