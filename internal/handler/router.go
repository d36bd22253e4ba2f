package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/observability"
	"github.com/boddenberg/oficina-assistant-go/internal/port"
	"github.com/boddenberg/oficina-assistant-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services groups what the routes call. A nil service leaves its routes out,
// which keeps the operational endpoints testable on their own.
type Services struct {
	Assistant *service.Assistant
	Solutions *service.SolutionService
	Catalog   *service.CatalogService
	Auth      *service.AuthService
	DB        port.Pinger
}

// Options tune the HTTP surface.
type Options struct {
	AuthDisabled       bool
	CORSAllowedOrigins []string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, opts Options, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(opts.CORSAllowedOrigins),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.DB))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/metrics/assistente", assistantMetricsHandler(metrics))

	if svcs.Auth != nil {
		r.Post("/auth/login", authLoginHandler(svcs.Auth, logger))
	}

	// =============================================
	// Assistente IA (JWT)
	// =============================================
	if svcs.Assistant != nil {
		r.Group(func(r chi.Router) {
			if !opts.AuthDisabled && svcs.Auth != nil {
				r.Use(JWTAuthMiddleware(svcs.Auth, logger))
			}
			r.Post("/consulta", consultaHandler(svcs.Assistant, logger))
			r.Post("/resumo", resumoHandler(svcs.Assistant, logger))
			r.Post("/diagnostico", diagnosticoHandler(svcs.Assistant, logger))
		})
	}

	r.Route("/api", func(r chi.Router) {
		// =============================================
		// Soluções
		// =============================================
		if svcs.Solutions != nil {
			r.Route("/solucoes", func(r chi.Router) {
				r.Get("/", listSolutionsHandler(svcs.Solutions, logger))
				r.Post("/", createSolutionHandler(svcs.Solutions, logger))
				r.Get("/os/{osId}", solutionsByOSHandler(svcs.Solutions, logger))
				r.Get("/{id}", getSolutionHandler(svcs.Solutions, logger))
				r.Put("/{id}", updateSolutionHandler(svcs.Solutions, logger))
				r.Delete("/{id}", deleteSolutionHandler(svcs.Solutions, logger))
			})
		}

		// =============================================
		// Cadastros (leitura)
		// =============================================
		if svcs.Catalog != nil {
			r.Get("/clientes", listClientsHandler(svcs.Catalog, logger))
			r.Get("/clientes/{id}", getClientHandler(svcs.Catalog, logger))
			r.Get("/ordens", listOrdersHandler(svcs.Catalog, logger))
			r.Get("/ordens/{id}", getOrderHandler(svcs.Catalog, logger))
			r.Get("/produtos", listProductsHandler(svcs.Catalog, logger))
			r.Get("/produtos/{id}", getProductHandler(svcs.Catalog, logger))
		}
	})

	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(db port.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)
		services := []domain.ServiceHealth{
			{Name: "oficina-api", Status: "healthy", LastChecked: now},
		}

		if db != nil {
			start := time.Now()
			err := db.Ping(r.Context())
			h := domain.ServiceHealth{
				Name:        "sqlite",
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				h.Status = "unhealthy"
				h.Detail = err.Error()
			}
			services = append(services, h)
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overall = "unhealthy"
			}
		}
		status := http.StatusOK
		if overall != "healthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func assistantMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetAssistantSnapshot())
	}
}
