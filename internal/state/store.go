// Package state persists the last successfully applied snapshot so
// the next pass can diff against it instead of refetching the world.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nancarrowm/rangesync/internal/clock"
	"github.com/nancarrowm/rangesync/internal/logging"
)

// SchemaVersion is the persisted state format version.
const SchemaVersion = "1.0"

// SyncedRule records one rule the engine created or confirmed in the
// policy store during the pass that produced this state.
type SyncedRule struct {
	Name      string `json:"name"`
	Range     string `json:"range"`
	IPVersion string `json:"ipVersion"`
	Protocol  string `json:"protocol"`
	Port      int    `json:"port"`
	Status    string `json:"status"`
}

// PersistedState is the on-disk record of the last applied pass.
type PersistedState struct {
	Version     string       `json:"version"`
	LastSync    time.Time    `json:"lastSync"`
	IPv4Ranges  []string     `json:"ipv4Ranges"`
	IPv6Ranges  []string     `json:"ipv6Ranges"`
	TotalCount  int          `json:"totalCount"`
	SyncedRules []SyncedRule `json:"syncedRules"`
}

// AllRanges returns the union of both families.
func (s *PersistedState) AllRanges() []string {
	out := make([]string, 0, len(s.IPv4Ranges)+len(s.IPv6Ranges))
	out = append(out, s.IPv4Ranges...)
	out = append(out, s.IPv6Ranges...)
	return out
}

// Store reads and writes PersistedState at a fixed path.
type Store struct {
	path   string
	clock  clock.Clock
	logger *logging.Logger
}

// NewStore creates a Store for the given state file path.
func NewStore(path string, c clock.Clock, logger *logging.Logger) *Store {
	if c == nil {
		c = &clock.RealClock{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{path: path, clock: c, logger: logger.WithComponent("state")}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted state. A missing file is not an error: it
// returns (nil, nil), which callers treat as a bootstrap pass.
func (s *Store) Load() (*PersistedState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("no previous state, treating as first run", "path", s.path)
			return nil, nil
		}
		return nil, fmt.Errorf("reading state file %s: %w", s.path, err)
	}

	var st PersistedState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", s.path, err)
	}
	if st.Version != SchemaVersion {
		s.logger.Warn("state file schema version mismatch",
			"path", s.path, "found", st.Version, "expected", SchemaVersion)
	}
	return &st, nil
}

// Save writes the state atomically: a temp file in the same directory
// renamed over the target, so readers never see a partial write.
func (s *Store) Save(st *PersistedState) error {
	st.Version = SchemaVersion
	if st.LastSync.IsZero() {
		st.LastSync = s.clock.Now().UTC()
	}
	st.TotalCount = len(st.IPv4Ranges) + len(st.IPv6Ranges)

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("setting state file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing state file %s: %w", s.path, err)
	}

	s.logger.Debug("state saved", "path", s.path, "ranges", st.TotalCount)
	return nil
}
