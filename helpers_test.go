package courier

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// mockGateway implements Gateway with optional per-method overrides.
// Unset methods succeed. It records every request it sees.
type mockGateway struct {
	syncFn   func(ctx context.Context, req *PreferenceSyncRequest) (*PreferenceSyncResponse, error)
	fetchFn  func(ctx context.Context, userID int64) (map[string]Value, error)
	pushFn   func(ctx context.Context, rec *HistoryRecord) (*HistoryResponse, error)
	healthFn func(ctx context.Context) (*BackendHealth, error)

	mu          sync.Mutex
	syncReqs    []*PreferenceSyncRequest
	historyReqs []*HistoryRecord
	syncCalls   atomic.Int32
	fetchCalls  atomic.Int32
}

func (m *mockGateway) SyncPreferences(ctx context.Context, req *PreferenceSyncRequest) (*PreferenceSyncResponse, error) {
	m.syncCalls.Add(1)
	m.mu.Lock()
	m.syncReqs = append(m.syncReqs, req)
	m.mu.Unlock()
	if m.syncFn != nil {
		return m.syncFn(ctx, req)
	}
	return &PreferenceSyncResponse{Success: true}, nil
}

func (m *mockGateway) FetchPreferences(ctx context.Context, userID int64) (map[string]Value, error) {
	m.fetchCalls.Add(1)
	if m.fetchFn != nil {
		return m.fetchFn(ctx, userID)
	}
	return map[string]Value{}, nil
}

func (m *mockGateway) PushHistory(ctx context.Context, rec *HistoryRecord) (*HistoryResponse, error) {
	m.mu.Lock()
	m.historyReqs = append(m.historyReqs, rec)
	m.mu.Unlock()
	if m.pushFn != nil {
		return m.pushFn(ctx, rec)
	}
	return &HistoryResponse{Success: true}, nil
}

func (m *mockGateway) HealthCheck(ctx context.Context) (*BackendHealth, error) {
	if m.healthFn != nil {
		return m.healthFn(ctx)
	}
	return &BackendHealth{Status: "healthy"}, nil
}

func (m *mockGateway) requests() []*PreferenceSyncRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*PreferenceSyncRequest(nil), m.syncReqs...)
}

func (m *mockGateway) pushed() []*HistoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*HistoryRecord(nil), m.historyReqs...)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "courier.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// syncHarness wires the preference components the way New does, without a
// scheduler or sync-on-write.
type syncHarness struct {
	store  *Store
	ledger *Ledger
	repo   *PreferencesRepository
	coord  *Coordinator
	gw     *mockGateway
}

func newSyncHarness(t *testing.T, gw *mockGateway) *syncHarness {
	t.Helper()
	store := newTestStore(t)
	ledger := NewLedger()
	repo := newPreferencesRepository(store, ledger, zerolog.Nop())

	var g Gateway
	if gw != nil {
		g = gw
	}
	coord := newCoordinator(store, ledger, repo.writer, g, zerolog.Nop())
	repo.coord = coord
	return &syncHarness{store: store, ledger: ledger, repo: repo, coord: coord, gw: gw}
}
