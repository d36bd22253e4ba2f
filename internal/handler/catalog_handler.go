package handler

import (
	"net/http"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Cadastros: /api/clientes, /api/ordens, /api/produtos
// ============================================================

func writeList[T any](w http.ResponseWriter, items []T, limit int) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, domain.ListResponse[T]{Data: items, Total: len(items), Limit: limit})
}

func listClientsHandler(svc *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/clientes")
		defer span.End()

		limit, ok := queryLimit(w, r)
		if !ok {
			return
		}
		out, limit, err := svc.ListClients(ctx, limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeList(w, out, limit)
	}
}

func getClientHandler(svc *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/clientes/{id}")
		defer span.End()

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		c, err := svc.GetClient(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func listOrdersHandler(svc *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/ordens")
		defer span.End()

		limit, ok := queryLimit(w, r)
		if !ok {
			return
		}
		out, limit, err := svc.ListOrders(ctx, limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeList(w, out, limit)
	}
}

func getOrderHandler(svc *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/ordens/{id}")
		defer span.End()

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		o, err := svc.GetOrder(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

func listProductsHandler(svc *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/produtos")
		defer span.End()

		limit, ok := queryLimit(w, r)
		if !ok {
			return
		}
		out, limit, err := svc.ListProducts(ctx, limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeList(w, out, limit)
	}
}

func getProductHandler(svc *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/produtos/{id}")
		defer span.End()

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		p, err := svc.GetProduct(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}
