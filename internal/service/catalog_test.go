package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/service"
)

func TestCatalog_Limits(t *testing.T) {
	store := openStore(t)
	seed(t, store)
	svc := service.NewCatalogService(store)
	ctx := context.Background()

	clients, limit, err := svc.ListClients(ctx, 0)
	if err != nil || limit != 100 || len(clients) != 1 {
		t.Errorf("default limit: %d clients, limit %d, err %v", len(clients), limit, err)
	}

	for _, bad := range []int{-1, 101} {
		var validation *domain.ErrValidation
		if _, _, err := svc.ListOrders(ctx, bad); !errors.As(err, &validation) {
			t.Errorf("limit %d: expected ErrValidation, got %v", bad, err)
		}
	}

	orders, _, err := svc.ListOrders(ctx, 1)
	if err != nil || len(orders) != 1 || orders[0].ClienteNome != "Maria Silva" {
		t.Errorf("unexpected orders %+v (%v)", orders, err)
	}
}

func TestCatalog_GetNotFound(t *testing.T) {
	store := openStore(t)
	svc := service.NewCatalogService(store)

	var nf *domain.ErrNotFound
	if _, err := svc.GetProduct(context.Background(), 5); !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
