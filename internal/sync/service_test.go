package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/nancarrowm/rangesync/internal/clock"
	"github.com/nancarrowm/rangesync/internal/config"
	"github.com/nancarrowm/rangesync/internal/httpclient"
	"github.com/nancarrowm/rangesync/internal/logging"
	"github.com/nancarrowm/rangesync/internal/policystore"
	"github.com/nancarrowm/rangesync/internal/ranges"
	"github.com/nancarrowm/rangesync/internal/state"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ListRules(ctx context.Context) ([]policystore.Rule, error) {
	args := m.Called(ctx)
	rules, _ := args.Get(0).([]policystore.Rule)
	return rules, args.Error(1)
}

func (m *mockAPI) CreateRule(ctx context.Context, rule policystore.Rule) (policystore.Rule, error) {
	args := m.Called(ctx, rule)
	created, _ := args.Get(0).(policystore.Rule)
	return created, args.Error(1)
}

func (m *mockAPI) DeleteRule(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Output: io.Discard})
}

type testEnv struct {
	service  *Service
	api      *mockAPI
	store    *state.Store
	srv      *httptest.Server
	respBody string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		api:      &mockAPI{},
		respBody: `["10.1.0.0/16", "2a03:f80::/29"]`,
	}
	env.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if env.respBody == "" {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, env.respBody)
	}))
	t.Cleanup(env.srv.Close)

	cfg := &config.Config{
		Sources: []config.SourceBlock{{Name: "test", URL: env.srv.URL}},
		PolicyStore: config.PolicyStoreConfig{
			Endpoint: "https://unused.example.com",
			Token:    "t",
			Scope:    "tenant",
		},
		Rule: config.RuleConfig{
			Prefix:    "Zscaler-AutoManaged",
			Port:      443,
			Protocols: []string{"TCP"},
		},
	}

	mc := clock.NewMockClock(time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC))
	logger := testLogger()

	hc := httpclient.New(logger, httpclient.WithRetry(httpclient.RetryConfig{
		MaxAttempts:   1,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
		BackoffFactor: 1.0,
	}))
	agg := ranges.NewAggregator(hc, mc, logger, 2)

	env.store = state.NewStore(filepath.Join(t.TempDir(), "state.json"), mc, logger)
	env.service = NewService(cfg, agg, env.api, env.store, nil, mc, logger)
	return env
}

func TestRunBootstrap(t *testing.T) {
	env := newTestEnv(t)
	env.api.On("ListRules", mock.Anything).Return([]policystore.Rule{}, nil)
	env.api.On("CreateRule", mock.Anything, mock.Anything).Return(policystore.Rule{ID: "x"}, nil)

	summary, err := env.service.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Result.Created != 2 {
		t.Errorf("Created = %d, want 2", summary.Result.Created)
	}

	// State was persisted with both families.
	st, err := env.store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st == nil || st.TotalCount != 2 {
		t.Fatalf("persisted state = %+v, want 2 ranges", st)
	}
	if len(st.SyncedRules) != 2 {
		t.Errorf("SyncedRules = %d, want 2", len(st.SyncedRules))
	}
}

func TestRunNoChangesSkipsReconcile(t *testing.T) {
	env := newTestEnv(t)
	env.api.On("ListRules", mock.Anything).Return([]policystore.Rule{}, nil)
	env.api.On("CreateRule", mock.Anything, mock.Anything).Return(policystore.Rule{ID: "x"}, nil)

	if _, err := env.service.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// Second pass with identical ranges.
	summary, err := env.service.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !summary.Skipped {
		t.Error("second pass should have been skipped")
	}
	// Only the bootstrap pass touched the API.
	env.api.AssertNumberOfCalls(t, "CreateRule", 2)
	env.api.AssertNumberOfCalls(t, "ListRules", 1)
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.api.On("ListRules", mock.Anything).Return([]policystore.Rule{}, nil)

	summary, err := env.service.Run(context.Background(), RunOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Result.Created != 2 {
		t.Errorf("dry-run Created = %d, want 2", summary.Result.Created)
	}

	env.api.AssertNotCalled(t, "CreateRule")
	env.api.AssertNotCalled(t, "DeleteRule")

	// Persisted state untouched.
	st, err := env.store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st != nil {
		t.Errorf("dry run persisted state: %+v", st)
	}
}

func TestRunAllSourcesFailAborts(t *testing.T) {
	env := newTestEnv(t)
	env.respBody = ""

	_, err := env.service.Run(context.Background(), RunOptions{})
	if !errors.Is(err, ranges.ErrNoRanges) {
		t.Fatalf("expected ErrNoRanges, got %v", err)
	}
	env.api.AssertNotCalled(t, "ListRules")
	env.api.AssertNotCalled(t, "CreateRule")
	env.api.AssertNotCalled(t, "DeleteRule")
}

func TestRunDegradedInventorySkipsDeletes(t *testing.T) {
	env := newTestEnv(t)
	env.api.On("ListRules", mock.Anything).Return(nil, errors.New("store down")).Once()
	env.api.On("CreateRule", mock.Anything, mock.Anything).Return(policystore.Rule{ID: "x"}, nil)

	// Seed previous state with a range that has since disappeared.
	if err := env.store.Save(&state.PersistedState{
		IPv4Ranges: []string{"192.0.2.0/24"},
	}); err != nil {
		t.Fatal(err)
	}

	summary, err := env.service.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.Result.Degraded {
		t.Error("result should be degraded")
	}
	if summary.Result.Deleted != 0 {
		t.Errorf("degraded pass deleted %d rules", summary.Result.Deleted)
	}
	env.api.AssertNotCalled(t, "DeleteRule")
}

func TestRunFailedCreateDoesNotPersist(t *testing.T) {
	env := newTestEnv(t)
	env.api.On("ListRules", mock.Anything).Return([]policystore.Rule{}, nil)
	env.api.On("CreateRule", mock.Anything, mock.Anything).Return(policystore.Rule{}, errors.New("quota"))

	_, err := env.service.Run(context.Background(), RunOptions{})
	if err == nil {
		t.Fatal("expected error for failed pass")
	}

	st, loadErr := env.store.Load()
	if loadErr != nil {
		t.Fatalf("Load: %v", loadErr)
	}
	if st != nil {
		t.Errorf("failed pass persisted state: %+v", st)
	}
}

func TestRunForceReappliesAll(t *testing.T) {
	env := newTestEnv(t)
	env.api.On("ListRules", mock.Anything).Return([]policystore.Rule{}, nil)
	env.api.On("CreateRule", mock.Anything, mock.Anything).Return(policystore.Rule{ID: "x"}, nil)

	if _, err := env.service.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	summary, err := env.service.Run(context.Background(), RunOptions{Force: true})
	if err != nil {
		t.Fatalf("forced Run: %v", err)
	}
	if summary.Skipped {
		t.Error("forced pass must not be skipped")
	}
	if len(summary.Changes.Added) != 2 {
		t.Errorf("forced pass Added = %d, want 2", len(summary.Changes.Added))
	}
}
