package assistant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/observability"
	"github.com/boddenberg/oficina-assistant-go/internal/port"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const snapshotKey = "snapshot"

// SnapshotSource builds the context snapshot from the store and keeps it in an
// injected TTL cache. Concurrent rebuilds are harmless: both read the same
// data and the last write wins. A rebuild that overlaps an Invalidate is
// returned to its caller but not cached.
type SnapshotSource struct {
	mu  sync.Mutex
	gen uint64 // bumped by Invalidate

	store   port.EntityStore
	cache   port.Cache[*domain.ContextSnapshot]
	limit   int
	now     func() time.Time
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewSnapshotSource(store port.EntityStore, cache port.Cache[*domain.ContextSnapshot], limit int, metrics *observability.Metrics, logger *zap.Logger) *SnapshotSource {
	if limit <= 0 {
		limit = 100
	}
	return &SnapshotSource{
		store:   store,
		cache:   cache,
		limit:   limit,
		now:     time.Now,
		metrics: metrics,
		logger:  logger,
	}
}

// Get returns the cached snapshot, rebuilding it when the cache has none.
func (s *SnapshotSource) Get(ctx context.Context) (*domain.ContextSnapshot, error) {
	if snap, ok := s.cache.Get(snapshotKey); ok {
		s.metrics.IncrCacheHit(observability.CacheSnapshot)
		return snap, nil
	}
	s.metrics.IncrCacheMiss(observability.CacheSnapshot)

	ctx, span := tracer.Start(ctx, "SnapshotSource.Build")
	defer span.End()

	start := time.Now()
	gen := s.generation()
	snap := &domain.ContextSnapshot{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		snap.Clientes, err = s.store.ListClients(gctx, s.limit)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Ordens, err = s.store.ListOrders(gctx, s.limit)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Produtos, err = s.store.ListProducts(gctx, s.limit)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Totais, err = s.store.Totals(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		s.metrics.IncrExternalError("database")
		return nil, fmt.Errorf("build context snapshot: %w", err)
	}
	snap.GeradoEm = s.now()
	s.mu.Lock()
	if s.gen == gen {
		s.cache.Set(snapshotKey, snap)
	}
	s.mu.Unlock()
	s.metrics.RecordRequestDuration("snapshot", time.Since(start))

	s.logger.Debug("context snapshot rebuilt",
		zap.Int("clientes", len(snap.Clientes)),
		zap.Int("ordens", len(snap.Ordens)),
		zap.Int("produtos", len(snap.Produtos)),
	)
	return snap, nil
}

// Invalidate drops the cached snapshot so the next Get reads the store again.
func (s *SnapshotSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cache.Delete(snapshotKey)
}

func (s *SnapshotSource) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}
