// Package ranges holds the published address range model: individual
// CIDR ranges, snapshots of all ranges fetched in a pass, and the
// source parsing and aggregation that produces them.
package ranges

import (
	"sort"
	"strings"
	"time"

	"github.com/nancarrowm/rangesync/internal/validation"
)

// IPVersion identifies the address family of a range.
type IPVersion string

const (
	IPv4 IPVersion = "IPv4"
	IPv6 IPVersion = "IPv6"
)

// AddressRange is a single published CIDR range in canonical form.
type AddressRange struct {
	CIDR    string    `json:"cidr"`
	Version IPVersion `json:"version"`
}

// NewAddressRange canonicalizes s and classifies its address family.
// Returns false if s is not a valid address or CIDR range.
func NewAddressRange(s string) (AddressRange, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !validation.IsValidCIDR(s) {
		return AddressRange{}, false
	}
	version := IPv4
	if validation.IsIPv6(s) {
		version = IPv6
	}
	return AddressRange{CIDR: s, Version: version}, true
}

// RangeSnapshot is the deduplicated, sorted union of all ranges
// retrieved from every source in one fetch pass.
type RangeSnapshot struct {
	FetchedAt time.Time      `json:"fetchedAt"`
	IPv4      []AddressRange `json:"ipv4"`
	IPv6      []AddressRange `json:"ipv6"`
}

// NewSnapshot builds a snapshot from raw range strings. Invalid
// entries are dropped, duplicates collapse to a single entry, and both
// families come out sorted for deterministic diffs.
func NewSnapshot(fetchedAt time.Time, raw []string) *RangeSnapshot {
	seen := make(map[string]bool, len(raw))
	snap := &RangeSnapshot{FetchedAt: fetchedAt}

	for _, s := range raw {
		r, ok := NewAddressRange(s)
		if !ok || seen[r.CIDR] {
			continue
		}
		seen[r.CIDR] = true
		switch r.Version {
		case IPv4:
			snap.IPv4 = append(snap.IPv4, r)
		case IPv6:
			snap.IPv6 = append(snap.IPv6, r)
		}
	}

	sortRanges(snap.IPv4)
	sortRanges(snap.IPv6)
	return snap
}

func sortRanges(rs []AddressRange) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].CIDR < rs[j].CIDR })
}

// Count returns the total number of ranges across both families.
func (s *RangeSnapshot) Count() int {
	return len(s.IPv4) + len(s.IPv6)
}

// All returns every range in the snapshot, IPv4 first, each family
// in sorted order.
func (s *RangeSnapshot) All() []AddressRange {
	out := make([]AddressRange, 0, s.Count())
	out = append(out, s.IPv4...)
	out = append(out, s.IPv6...)
	return out
}

// CIDRs returns just the CIDR strings for the given family.
func (s *RangeSnapshot) CIDRs(version IPVersion) []string {
	var src []AddressRange
	switch version {
	case IPv4:
		src = s.IPv4
	case IPv6:
		src = s.IPv6
	}
	out := make([]string, len(src))
	for i, r := range src {
		out[i] = r.CIDR
	}
	return out
}
