package handler

import (
	"net/http"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Assistente: POST /consulta
// ============================================================

func consultaHandler(svc *service.Assistant, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /consulta")
		defer span.End()

		var req domain.ConsultaRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if uid := UserIDFromContext(ctx); uid != "" {
			span.SetAttributes(attribute.String("user.id", uid))
		}

		resp, err := svc.Consult(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if resp.Acao != nil {
			logger.Info("assistant mutation",
				zap.String("usuario", UsuarioFromContext(ctx)),
				zap.String("conversa_id", resp.ConversaID),
			)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// IA auxiliar: POST /resumo, POST /diagnostico
// ============================================================

func resumoHandler(svc *service.Assistant, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /resumo")
		defer span.End()

		var req domain.ResumoRequest
		if !decodeBody(w, r, &req) {
			return
		}
		resp, err := svc.Summarize(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func diagnosticoHandler(svc *service.Assistant, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /diagnostico")
		defer span.End()

		var req domain.DiagnosticoRequest
		if !decodeBody(w, r, &req) {
			return
		}
		resp, err := svc.Diagnose(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// Auth: POST /auth/login
// ============================================================

func authLoginHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /auth/login")
		defer span.End()

		var req domain.LoginRequest
		if !decodeBody(w, r, &req) {
			return
		}
		resp, err := authSvc.Login(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
