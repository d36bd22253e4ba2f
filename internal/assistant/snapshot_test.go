package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/cache"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/observability"
	"go.uber.org/zap"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSource(store *fakeStore, clock *fakeClock) *SnapshotSource {
	c := cache.NewTTL[*domain.ContextSnapshot](300*time.Second, cache.WithClock(clock.Now), cache.WithoutJanitor())
	return NewSnapshotSource(store, c, 100, observability.NewMetrics(), zap.NewNop())
}

func TestSnapshotSource_CachedWithinTTL(t *testing.T) {
	store := newFakeStore(testSnapshot())
	clock := &fakeClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
	src := newTestSource(store, clock)

	first, err := src.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(299 * time.Second)
	second, err := src.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != second {
		t.Error("expected the identical snapshot within the TTL")
	}
	if store.listCalls != 1 {
		t.Errorf("store queried %d times, want 1", store.listCalls)
	}
	if len(first.Clientes) != 2 || len(first.Ordens) != 2 || len(first.Produtos) != 2 || first.Totais.TotalClientes != 2 {
		t.Errorf("unexpected snapshot %+v", first)
	}
}

func TestSnapshotSource_RefetchAfterTTL(t *testing.T) {
	store := newFakeStore(testSnapshot())
	clock := &fakeClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
	src := newTestSource(store, clock)

	first, _ := src.Get(context.Background())
	clock.Advance(300 * time.Second)
	second, _ := src.Get(context.Background())

	if first == second {
		t.Error("expected a fresh snapshot after the TTL")
	}
	if store.listCalls != 2 {
		t.Errorf("store queried %d times, want 2", store.listCalls)
	}
}

func TestSnapshotSource_Invalidate(t *testing.T) {
	store := newFakeStore(testSnapshot())
	clock := &fakeClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
	src := newTestSource(store, clock)

	_, _ = src.Get(context.Background())
	src.Invalidate()
	_, _ = src.Get(context.Background())

	if store.listCalls != 2 {
		t.Errorf("store queried %d times, want 2", store.listCalls)
	}
}

func TestSnapshotSource_InvalidateDuringRebuildIsNotCached(t *testing.T) {
	store := newFakeStore(testSnapshot())
	clock := &fakeClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
	src := newTestSource(store, clock)

	var once sync.Once
	store.beforeList = func() { once.Do(src.Invalidate) }

	first, err := src.Get(context.Background())
	if err != nil || first == nil {
		t.Fatalf("the overlapping rebuild should still answer its caller: %v", err)
	}
	second, _ := src.Get(context.Background())
	if first == second {
		t.Error("a snapshot read before the invalidation must not be cached")
	}
	if store.listCalls != 2 {
		t.Errorf("store queried %d times, want 2", store.listCalls)
	}

	third, _ := src.Get(context.Background())
	if third != second {
		t.Error("a clean rebuild should be cached")
	}
}

func TestSnapshotSource_ErrorIsNotCached(t *testing.T) {
	store := newFakeStore(testSnapshot())
	store.listErr = errors.New("database is locked")
	clock := &fakeClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
	src := newTestSource(store, clock)

	if _, err := src.Get(context.Background()); err == nil {
		t.Fatal("expected an error")
	}

	store.listErr = nil
	snap, err := src.Get(context.Background())
	if err != nil || snap == nil {
		t.Fatalf("expected a snapshot after recovery, got %v", err)
	}
}
