// Package diff computes the change set between the current fetched
// snapshot and the previously persisted one.
package diff

import (
	"sort"

	"github.com/nancarrowm/rangesync/internal/ranges"
	"github.com/nancarrowm/rangesync/internal/state"
)

// ChangeSet partitions the current snapshot against the previous pass.
// Added ranges need rules created, Removed ranges need rules deleted,
// Unchanged ranges are left alone.
type ChangeSet struct {
	Added     []ranges.AddressRange
	Removed   []ranges.AddressRange
	Unchanged []ranges.AddressRange
}

// HasChanges reports whether any create or delete work is pending.
func (c *ChangeSet) HasChanges() bool {
	return len(c.Added) > 0 || len(c.Removed) > 0
}

// Diff compares current against previous. A nil previous means
// bootstrap: every current range is Added and nothing is Removed.
// All output slices are sorted by CIDR for deterministic processing.
func Diff(current *ranges.RangeSnapshot, previous *state.PersistedState) *ChangeSet {
	cs := &ChangeSet{}

	currentSet := make(map[string]ranges.AddressRange, current.Count())
	for _, r := range current.All() {
		currentSet[r.CIDR] = r
	}

	previousSet := make(map[string]bool)
	if previous != nil {
		for _, cidr := range previous.AllRanges() {
			previousSet[cidr] = true
		}
	}

	for cidr, r := range currentSet {
		if previousSet[cidr] {
			cs.Unchanged = append(cs.Unchanged, r)
		} else {
			cs.Added = append(cs.Added, r)
		}
	}

	for cidr := range previousSet {
		if _, ok := currentSet[cidr]; !ok {
			// The previous state only stores CIDR strings, so
			// reconstruct the range to recover the family.
			if r, ok := ranges.NewAddressRange(cidr); ok {
				cs.Removed = append(cs.Removed, r)
			}
		}
	}

	sortByCIDR(cs.Added)
	sortByCIDR(cs.Removed)
	sortByCIDR(cs.Unchanged)
	return cs
}

func sortByCIDR(rs []ranges.AddressRange) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].CIDR < rs[j].CIDR })
}
