package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"seo-analysis-backend/internal/credits"
	"seo-analysis-backend/internal/provider"
	"seo-analysis-backend/internal/shared/telemetry"
)

type fakeGateway struct {
	syncFn   func(endpoint string, payload map[string]any) ([]json.RawMessage, error)
	submitFn func(endpoint string, payload map[string]any) (string, error)
	fetchFn  func(taskID, endpoint string) (provider.TaskStatus, error)

	syncCalls   atomic.Int32
	submitCalls atomic.Int32
	fetchCalls  atomic.Int32

	mu           sync.Mutex
	lastEndpoint string
	lastPayload  map[string]any
}

func (g *fakeGateway) record(endpoint string, payload map[string]any) {
	g.mu.Lock()
	g.lastEndpoint = endpoint
	g.lastPayload = payload
	g.mu.Unlock()
}

func (g *fakeGateway) CallSync(_ context.Context, endpoint string, payload map[string]any) ([]json.RawMessage, error) {
	g.syncCalls.Add(1)
	g.record(endpoint, payload)
	if g.syncFn == nil {
		return nil, provider.Errorf(50000, "no sync handler")
	}
	return g.syncFn(endpoint, payload)
}

func (g *fakeGateway) SubmitTask(_ context.Context, endpoint string, payload map[string]any) (string, error) {
	g.submitCalls.Add(1)
	g.record(endpoint, payload)
	if g.submitFn == nil {
		return "", provider.Errorf(50000, "no submit handler")
	}
	return g.submitFn(endpoint, payload)
}

func (g *fakeGateway) FetchTaskStatus(_ context.Context, taskID, endpoint string) (provider.TaskStatus, error) {
	g.fetchCalls.Add(1)
	g.record(endpoint, nil)
	if g.fetchFn == nil {
		return provider.TaskStatus{State: provider.TaskPending}, nil
	}
	return g.fetchFn(taskID, endpoint)
}

type memArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memArchive) Put(_ context.Context, key, _ string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = data
	return int64(len(data)), nil
}

func (m *memArchive) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type testEnv struct {
	svc     *Service
	repo    *MemoryRepo
	credits *credits.Service
	gw      *fakeGateway
	archive *memArchive
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	restore := telemetry.SetOutput(io.Discard)
	t.Cleanup(restore)

	env := &testEnv{
		repo:    NewMemoryRepo(),
		credits: credits.NewService(),
		gw:      &fakeGateway{},
		archive: &memArchive{},
	}
	env.svc = &Service{
		Repo:     env.repo,
		Credits:  env.credits,
		Gateway:  env.gw,
		Archive:  env.archive,
		Defaults: RequestDefaults{Language: "de", Location: "Germany"},
	}
	return env
}

func (e *testEnv) grant(t *testing.T, userID string, amount int) {
	t.Helper()
	if _, err := e.credits.Grant(context.Background(), userID, amount); err != nil {
		t.Fatalf("Grant: %v", err)
	}
}

func (e *testEnv) balance(t *testing.T, userID string) int {
	t.Helper()
	bal, err := e.credits.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	return bal
}

func rawItems(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		out = append(out, json.RawMessage(it))
	}
	return out
}

const businessResult = `{"items":[{"title":"Cafe Blau","category":"Cafe","rating":{"value":"4.5","votes_count":12}}]}`

const shoppingResult = `{"keyword":"laufschuhe","items_count":1,"items":[{"rank_group":1,"title":"Runner","price":"89.90","currency":"EUR"}]}`
