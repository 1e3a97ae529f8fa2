package diff

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nancarrowm/rangesync/internal/ranges"
	"github.com/nancarrowm/rangesync/internal/state"
)

func cidrs(rs []ranges.AddressRange) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.CIDR
	}
	return out
}

func TestDiffBootstrap(t *testing.T) {
	snap := ranges.NewSnapshot(time.Now(), []string{"10.0.0.0/8", "2001:db8::/32"})
	cs := Diff(snap, nil)

	if len(cs.Added) != 2 || len(cs.Removed) != 0 || len(cs.Unchanged) != 0 {
		t.Errorf("bootstrap diff = added:%d removed:%d unchanged:%d, want 2/0/0",
			len(cs.Added), len(cs.Removed), len(cs.Unchanged))
	}
	if !cs.HasChanges() {
		t.Error("bootstrap should report changes")
	}
}

func TestDiffAddedRemovedUnchanged(t *testing.T) {
	snap := ranges.NewSnapshot(time.Now(), []string{
		"10.1.0.0/16", // unchanged
		"10.3.0.0/16", // added
		"2001:db8::/32",
	})
	prev := &state.PersistedState{
		IPv4Ranges: []string{"10.1.0.0/16", "10.2.0.0/16"},
		IPv6Ranges: []string{"2001:db8::/32"},
	}

	cs := Diff(snap, prev)

	if diff := cmp.Diff([]string{"10.3.0.0/16"}, cidrs(cs.Added)); diff != "" {
		t.Errorf("Added mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"10.2.0.0/16"}, cidrs(cs.Removed)); diff != "" {
		t.Errorf("Removed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"10.1.0.0/16", "2001:db8::/32"}, cidrs(cs.Unchanged)); diff != "" {
		t.Errorf("Unchanged mismatch (-want +got):\n%s", diff)
	}
	if cs.Removed[0].Version != ranges.IPv4 {
		t.Errorf("removed range version = %v, want IPv4", cs.Removed[0].Version)
	}
}

func TestDiffNoChanges(t *testing.T) {
	snap := ranges.NewSnapshot(time.Now(), []string{"192.0.2.0/24"})
	prev := &state.PersistedState{IPv4Ranges: []string{"192.0.2.0/24"}}

	cs := Diff(snap, prev)
	if cs.HasChanges() {
		t.Errorf("expected no changes, got added=%v removed=%v", cidrs(cs.Added), cidrs(cs.Removed))
	}
	if len(cs.Unchanged) != 1 {
		t.Errorf("Unchanged len = %d, want 1", len(cs.Unchanged))
	}
}

func TestDiffDeterministicOrder(t *testing.T) {
	snap := ranges.NewSnapshot(time.Now(), []string{"10.9.0.0/16", "10.1.0.0/16", "10.5.0.0/16"})
	cs := Diff(snap, &state.PersistedState{})

	want := []string{"10.1.0.0/16", "10.5.0.0/16", "10.9.0.0/16"}
	if diff := cmp.Diff(want, cidrs(cs.Added)); diff != "" {
		t.Errorf("Added not sorted (-want +got):\n%s", diff)
	}
}
