package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var catalogTracer = otel.Tracer("service/catalog")

const (
	defaultListLimit = 100
	maxListLimit     = 100
)

// CatalogService serves the read-only endpoints over clients, orders and products.
type CatalogService struct {
	store port.EntityStore
}

func NewCatalogService(store port.EntityStore) *CatalogService {
	return &CatalogService{store: store}
}

// normalizeLimit maps 0 (absent) to the default and rejects values outside 1..100.
func normalizeLimit(limit int) (int, error) {
	if limit == 0 {
		return defaultListLimit, nil
	}
	if limit < 1 || limit > maxListLimit {
		return 0, &domain.ErrValidation{
			Field:   "limit",
			Message: "Parâmetro inválido: limit",
			Detail:  fmt.Sprintf("limit deve estar entre 1 e %d", maxListLimit),
		}
	}
	return limit, nil
}

func (s *CatalogService) ListClients(ctx context.Context, limit int) ([]domain.Client, int, error) {
	ctx, span := catalogTracer.Start(ctx, "CatalogService.ListClients")
	defer span.End()

	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, 0, err
	}
	out, err := s.store.ListClients(ctx, limit)
	return out, limit, err
}

func (s *CatalogService) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	ctx, span := catalogTracer.Start(ctx, "CatalogService.GetClient")
	defer span.End()
	span.SetAttributes(attribute.Int64("cliente.id", id))

	return s.store.GetClient(ctx, id)
}

func (s *CatalogService) ListOrders(ctx context.Context, limit int) ([]domain.ServiceOrder, int, error) {
	ctx, span := catalogTracer.Start(ctx, "CatalogService.ListOrders")
	defer span.End()

	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, 0, err
	}
	out, err := s.store.ListOrders(ctx, limit)
	return out, limit, err
}

func (s *CatalogService) GetOrder(ctx context.Context, id int64) (*domain.ServiceOrder, error) {
	ctx, span := catalogTracer.Start(ctx, "CatalogService.GetOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("os.id", id))

	return s.store.GetOrder(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context, limit int) ([]domain.Product, int, error) {
	ctx, span := catalogTracer.Start(ctx, "CatalogService.ListProducts")
	defer span.End()

	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, 0, err
	}
	out, err := s.store.ListProducts(ctx, limit)
	return out, limit, err
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, span := catalogTracer.Start(ctx, "CatalogService.GetProduct")
	defer span.End()
	span.SetAttributes(attribute.Int64("produto.id", id))

	return s.store.GetProduct(ctx, id)
}
