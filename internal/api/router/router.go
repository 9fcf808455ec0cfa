package router

import (
	_ "embed"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"stockledger/internal/api/product"
	"stockledger/internal/api/report"
	"stockledger/internal/api/sale"
	"stockledger/internal/api/user"
	"stockledger/internal/domain"
	"stockledger/internal/pkg/cache"
	"stockledger/internal/pkg/logger"
	"stockledger/internal/pkg/middleware"
)

//go:embed openapi.yaml
var openAPISpec []byte

// Dependencies are the handlers and infrastructure the router is assembled from.
type Dependencies struct {
	ProductHandler *product.Handler
	SaleHandler    *sale.Handler
	ReportHandler  *report.Handler
	UserHandler    *user.Handler
	Tokens         middleware.TokenValidator
	Cache          cache.Client
	Logger         logger.Logger

	RateLimitMaxRequests int
	RateLimitPeriod      time.Duration
}

// NewRouter builds the HTTP handler of the service.
func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(dep.Logger))
	r.Use(chimiddleware.Recoverer)
	if dep.RateLimitMaxRequests > 0 {
		r.Use(middleware.RateLimiter(dep.Cache, dep.RateLimitMaxRequests, dep.RateLimitPeriod, dep.Logger))
	}

	r.Get("/ping", PingHandler)
	r.Get("/swagger/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(openAPISpec)
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/openapi.yaml")))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/login", dep.UserHandler.LoginUserHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(dep.Tokens))

			r.Get("/me", dep.UserHandler.MeHandler)
			r.With(middleware.RequireRole(domain.RoleAdmin)).Post("/users", dep.UserHandler.RegisterUserHandler)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", dep.ProductHandler.ListProductsHandler)
				r.Post("/", dep.ProductHandler.CreateProductHandler)
				r.Post("/bulk-update", dep.ProductHandler.BulkUpdateHandler)
				r.Get("/{id}", dep.ProductHandler.GetProductHandler)
				r.Patch("/{id}", dep.ProductHandler.UpdateProductHandler)
				r.Delete("/{id}", dep.ProductHandler.DeleteProductHandler)
				r.Get("/{id}/sales", dep.ProductHandler.SalesHistoryHandler)
			})
			r.Get("/inventory/summary", dep.ProductHandler.InventorySummaryHandler)

			r.Route("/sales", func(r chi.Router) {
				r.Get("/", dep.SaleHandler.ListSalesHandler)
				r.Post("/", dep.SaleHandler.RecordSaleHandler)
				r.Get("/summary", dep.SaleHandler.SummaryHandler)
				r.Put("/{id}", dep.SaleHandler.UpdateSaleHandler)
				r.Delete("/{id}", dep.SaleHandler.DeleteSaleHandler)
			})

			r.Get("/reports", dep.ReportHandler.ReportHandler)
		})
	})

	return r
}

// PingHandler is the liveness probe.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}
