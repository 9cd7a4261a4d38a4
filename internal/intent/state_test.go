package intent

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Idan-Levin/slack-shopping-agent/internal/cache"
	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
	"github.com/Idan-Levin/slack-shopping-agent/internal/product"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func newTestStateStore(t *testing.T) (*StateStore, *memStore) {
	t.Helper()
	mem := newMemStore()
	store := NewStateStore(mem, config.Config{Cache: config.Cache{StateTTL: 15 * time.Minute}}, zap.NewNop())
	return store, mem
}

func TestSessionKey(t *testing.T) {
	if got := SessionKey("C1", "123.456"); got != "C1:123.456" {
		t.Errorf("unexpected session key %q", got)
	}
	if SessionKey("C1", "a") == SessionKey("C2", "a") {
		t.Error("different channels must not share a session")
	}
}

func TestStateRoundtrip(t *testing.T) {
	store, mem := newTestStateStore(t)
	ctx := context.Background()

	state := store.Get(ctx, "C1:1.0")
	if len(state.Candidates) != 0 || state.Chosen != nil {
		t.Fatalf("expected fresh state, got %+v", state)
	}

	state.Candidates = []product.Candidate{{Title: "Oreo Cookies"}}
	store.Put(ctx, state)

	if ttl := mem.ttls["conversation:C1:1.0"]; ttl != 15*time.Minute {
		t.Errorf("expected configured TTL on write, got %v", ttl)
	}

	loaded := store.Get(ctx, "C1:1.0")
	if len(loaded.Candidates) != 1 || loaded.Candidates[0].Title != "Oreo Cookies" {
		t.Errorf("state did not survive roundtrip: %+v", loaded)
	}

	// Other sessions stay untouched.
	other := store.Get(ctx, "C1:2.0")
	if len(other.Candidates) != 0 {
		t.Errorf("state leaked across sessions: %+v", other)
	}
}

func TestStateClear(t *testing.T) {
	store, _ := newTestStateStore(t)
	ctx := context.Background()

	state := store.Get(ctx, "C1:1.0")
	state.Chosen = &product.Candidate{Title: "Milk"}
	store.Put(ctx, state)

	store.Clear(ctx, "C1:1.0")

	if loaded := store.Get(ctx, "C1:1.0"); loaded.Chosen != nil {
		t.Errorf("expected cleared state, got %+v", loaded)
	}
}

func TestStateCorruptFallsBack(t *testing.T) {
	store, mem := newTestStateStore(t)
	ctx := context.Background()

	mem.data["conversation:C1:1.0"] = []byte("{broken json")

	state := store.Get(ctx, "C1:1.0")
	if state == nil || len(state.Candidates) != 0 {
		t.Errorf("expected fresh state for corrupt payload, got %+v", state)
	}
}
