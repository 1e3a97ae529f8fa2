package state

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nancarrowm/rangesync/internal/clock"
	"github.com/nancarrowm/rangesync/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Output: io.Discard})
}

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "state.json"), nil, testLogger())
	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st != nil {
		t.Errorf("expected nil state for missing file, got %+v", st)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	mc := clock.NewMockClock(time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC))
	store := NewStore(path, mc, testLogger())

	in := &PersistedState{
		IPv4Ranges: []string{"10.0.0.0/8", "192.0.2.0/24"},
		IPv6Ranges: []string{"2001:db8::/32"},
		SyncedRules: []SyncedRule{
			{Name: "Zscaler-AutoManaged-IPv4-TCP-443-10.0.0.0-8", Range: "10.0.0.0/8",
				IPVersion: "IPv4", Protocol: "TCP", Port: 443, Status: "created"},
		},
	}
	if err := store.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Version != SchemaVersion {
		t.Errorf("Version = %q, want %q", out.Version, SchemaVersion)
	}
	if out.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", out.TotalCount)
	}
	if !out.LastSync.Equal(mc.Now()) {
		t.Errorf("LastSync = %v, want %v", out.LastSync, mc.Now())
	}
	if diff := cmp.Diff(in.IPv4Ranges, out.IPv4Ranges); diff != "" {
		t.Errorf("IPv4Ranges mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(in.SyncedRules, out.SyncedRules); diff != "" {
		t.Errorf("SyncedRules mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "state.json")
	store := NewStore(path, nil, testLogger())
	if err := store.Save(&PersistedState{IPv4Ranges: []string{"10.0.0.0/8"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("state file not created: %v", err)
	}
}

func TestJSONFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path, nil, testLogger())
	if err := store.Save(&PersistedState{IPv4Ranges: []string{"10.0.0.0/8"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"version", "lastSync", "ipv4Ranges", "ipv6Ranges", "totalCount", "syncedRules"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("persisted state missing key %q", key)
		}
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(path, nil, testLogger())
	if _, err := store.Load(); err == nil {
		t.Error("expected error for corrupt state file")
	}
}
