package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/nancarrowm/rangesync/internal/diff"
	"github.com/nancarrowm/rangesync/internal/ranges"
	"github.com/nancarrowm/rangesync/internal/state"
)

// ErrChangesPending signals that a diff found work for the next sync
// pass. Callers map it to a non-zero exit status.
var ErrChangesPending = errors.New("changes pending")

// RunDiff fetches the current ranges and shows what a sync pass would
// change, without touching the policy store or the persisted state.
// Returns ErrChangesPending when the diff is non-empty so scripts can
// branch on the exit status.
func RunDiff(configFile string) error {
	eng, err := buildEngine(configFile)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	snapshot, err := eng.service.Aggregate(ctx)
	if err != nil {
		return err
	}

	previous, err := eng.store.Load()
	if err != nil {
		return err
	}

	cs := diff.Diff(snapshot, previous)
	if !cs.HasChanges() {
		fmt.Printf("no changes (%d ranges current)\n", snapshot.Count())
		return nil
	}

	ud := difflib.UnifiedDiff{
		A:        previousLines(previous),
		B:        currentLines(snapshot),
		FromFile: "persisted",
		ToFile:   "current",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return fmt.Errorf("rendering diff: %w", err)
	}
	fmt.Print(text)
	fmt.Printf("\n%d added, %d removed, %d unchanged\n",
		len(cs.Added), len(cs.Removed), len(cs.Unchanged))

	return ErrChangesPending
}

func previousLines(st *state.PersistedState) []string {
	if st == nil {
		return nil
	}
	lines := make([]string, 0, st.TotalCount)
	for _, cidr := range st.AllRanges() {
		lines = append(lines, cidr+"\n")
	}
	return lines
}

func currentLines(snap *ranges.RangeSnapshot) []string {
	lines := make([]string, 0, snap.Count())
	for _, r := range snap.All() {
		lines = append(lines, r.CIDR+"\n")
	}
	return lines
}
