package handler

import (
	"net/http"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Soluções: /api/solucoes
// ============================================================

func listSolutionsHandler(svc *service.SolutionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/solucoes")
		defer span.End()

		out, err := svc.List(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if out == nil {
			out = []domain.Solution{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getSolutionHandler(svc *service.SolutionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/solucoes/{id}")
		defer span.End()

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		span.SetAttributes(attribute.Int64("solucao.id", id))

		sol, err := svc.Get(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, sol)
	}
}

func solutionsByOSHandler(svc *service.SolutionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/solucoes/os/{osId}")
		defer span.End()

		osID, ok := pathID(w, r, "osId")
		if !ok {
			return
		}
		span.SetAttributes(attribute.Int64("os.id", osID))

		out, err := svc.ListByOS(ctx, osID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if out == nil {
			out = []domain.Solution{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createSolutionHandler(svc *service.SolutionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/solucoes")
		defer span.End()

		var in domain.SolutionInput
		if !decodeBody(w, r, &in) {
			return
		}
		id, err := svc.Create(ctx, &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, domain.MessageResponse{ID: id, Mensagem: "Solução criada com sucesso"})
	}
}

func updateSolutionHandler(svc *service.SolutionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /api/solucoes/{id}")
		defer span.End()

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var in domain.SolutionInput
		if !decodeBody(w, r, &in) {
			return
		}
		if err := svc.Update(ctx, id, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.MessageResponse{Mensagem: "Solução atualizada com sucesso"})
	}
}

func deleteSolutionHandler(svc *service.SolutionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /api/solucoes/{id}")
		defer span.End()

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := svc.Delete(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.MessageResponse{Mensagem: "Solução removida com sucesso"})
	}
}
