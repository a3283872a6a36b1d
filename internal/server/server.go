package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sales-dashboard/internal/auth"
	"sales-dashboard/internal/config"
	"sales-dashboard/internal/handlers"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

const loginPath = "/login"

// Deps carries everything the router needs. Metrics and RateLimiter are
// optional; without them the matching middleware is skipped.
type Deps struct {
	Analytics   *services.Analytics
	Sessions    *auth.SessionStore
	Metrics     *observability.Metrics
	RateLimiter *middleware.RateLimiter
	Security    config.SecurityConfig
	Logger      *slog.Logger
}

type Server struct {
	router         chi.Router
	logger         *slog.Logger
	apiHandlers    *handlers.APIHandlers
	sseHandlers    *handlers.SSEHandlers
	authHandlers   *handlers.AuthHandlers
	pageHandlers   *handlers.PageHandlers
	exportHandlers *handlers.ExportHandlers
}

func NewServer(deps Deps) *Server {
	var recorder handlers.InsufficientRecorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	s := &Server{
		router:         chi.NewRouter(),
		logger:         deps.Logger,
		apiHandlers:    handlers.NewAPIHandlers(deps.Analytics, deps.Logger, recorder),
		sseHandlers:    handlers.NewSSEHandlers(deps.Analytics, deps.Logger, recorder),
		authHandlers:   handlers.NewAuthHandlers(deps.Sessions, deps.Security.SecureCookies, deps.Logger),
		pageHandlers:   handlers.NewPageHandlers(deps.Analytics),
		exportHandlers: handlers.NewExportHandlers(deps.Analytics, deps.Logger),
	}
	s.setupMiddleware(deps)
	s.setupRoutes(deps)
	return s
}

// setupMiddleware installs the global chain on the router itself so the
// metrics middleware sees the matched route pattern.
func (s *Server) setupMiddleware(deps Deps) {
	chain := []middleware.Middleware{
		middleware.RequestID(),
		middleware.Recovery(deps.Logger),
		middleware.Logger(deps.Logger),
		middleware.Tracing(),
	}
	if deps.Metrics != nil {
		chain = append(chain, middleware.Metrics(deps.Metrics))
	}
	chain = append(chain,
		middleware.SecurityHeaders(),
		middleware.CORS(deps.Security),
		middleware.TrustedProxy(deps.Security),
	)
	if deps.RateLimiter != nil {
		chain = append(chain, middleware.RateLimit(deps.RateLimiter, deps.Logger))
	}
	s.router.Use(middleware.Chain(chain...))
}

func (s *Server) setupRoutes(deps Deps) {
	s.router.Get(loginPath, s.authHandlers.HandleLoginPage)
	s.router.Post(loginPath, s.authHandlers.HandleLogin)
	s.router.Post("/logout", s.authHandlers.HandleLogout)
	s.router.Get("/health", s.apiHandlers.HandleHealth)
	if deps.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(deps.Sessions, loginPath, deps.Logger))

		r.Get("/", s.pageHandlers.HandleDashboard)
		r.Get("/admin/stats", s.apiHandlers.HandleStats)

		r.Route("/api", func(r chi.Router) {
			r.Get("/years", s.apiHandlers.HandleYears)

			r.Get("/abc/departments", s.apiHandlers.HandleDepartmentABC())
			r.Get("/abc/customers", s.apiHandlers.HandleCustomerABC())

			r.Get("/customers/top", s.apiHandlers.HandleTopCustomers)
			r.Get("/salespeople/top", s.apiHandlers.HandleTopSalesperson())

			r.Route("/sales", func(r chi.Router) {
				r.Get("/monthly", s.apiHandlers.HandleMonthlySales())
				r.Get("/extremes", s.apiHandlers.HandleMonthExtremes())
				r.Get("/yoy", s.apiHandlers.HandleYearOverYear)
				r.Get("/trend", s.apiHandlers.HandleSalesTrend)
				r.Get("/seasonality", s.apiHandlers.HandleSeasonality)
				r.Get("/growth", s.apiHandlers.HandleMonthlyGrowth)
			})

			r.Route("/profitability", func(r chi.Router) {
				r.Get("/month", s.apiHandlers.HandleMonthProfitability)
				r.Get("/quarters", s.apiHandlers.HandleQuarterProfitability())
				r.Get("/customers", s.apiHandlers.HandleCustomerProfitability())
			})

			r.Get("/comparison/worst-customer", s.apiHandlers.HandleWorstCustomer())
			r.Get("/comparison/low-quartile", s.apiHandlers.HandleLowQuartile())

			r.Get("/export/report.xlsx", s.exportHandlers.HandleReport)
		})

		// Datastar SSE endpoints
		r.Route("/sse", func(r chi.Router) {
			r.Get("/abc", s.sseHandlers.HandleABC)
			r.Get("/customers", s.sseHandlers.HandleCustomers)
			r.Get("/sales", s.sseHandlers.HandleSales)
			r.Get("/profitability", s.sseHandlers.HandleProfitability)
			r.Get("/refresh", s.sseHandlers.HandleRefreshAll)
		})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
