package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/boddenberg/oficina-assistant-go/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const claimsKey contextKey = "claims"

// bearerToken returns the token from "Authorization: Bearer <token>" or the
// PT-BR message to answer with.
func bearerToken(r *http.Request) (string, string) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", "Token de autenticação não fornecido"
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", "Formato de token inválido"
	}
	return token, ""
}

// JWTAuthMiddleware rejects requests without a valid operator access token
// and stores the token claims in the request context.
func JWTAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r)
			if problem != "" {
				logger.Warn("auth: rejected request", zap.String("path", r.URL.Path), zap.String("reason", problem))
				writeError(w, http.StatusUnauthorized, problem)
				return
			}

			claims, err := authSvc.ValidateAccessToken(token)
			if err != nil {
				logger.Warn("auth: invalid or expired token", zap.String("path", r.URL.Path), zap.Error(err))
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

func claimsFromContext(ctx context.Context) *service.JWTClaims {
	c, _ := ctx.Value(claimsKey).(*service.JWTClaims)
	return c
}

// UserIDFromContext returns the authenticated operator id, or "" when the
// route is public or auth is disabled.
func UserIDFromContext(ctx context.Context) string {
	if c := claimsFromContext(ctx); c != nil {
		return c.Sub
	}
	return ""
}

// UsuarioFromContext returns the authenticated operator login.
func UsuarioFromContext(ctx context.Context) string {
	if c := claimsFromContext(ctx); c != nil {
		return c.Usuario
	}
	return ""
}
