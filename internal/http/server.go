// Package http exposes the REST API: auth, property-scoped CRUD and
// windowed reports.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"proptrack/internal/auth"
	"proptrack/internal/cache"
	"proptrack/internal/config"
	"proptrack/internal/middleware/ratelimit"
	"proptrack/internal/middleware/security"
	"proptrack/internal/middleware/trace"
	"proptrack/internal/services"
	"proptrack/internal/storage"
	"proptrack/internal/uploads"
)

// Deps carries everything the server needs. Repo, Expenses and Tokens are
// required; ReportCache falls back to an in-process LRU when nil. Receipts
// is optional: without it /uploads is not served and receipt uploads are
// rejected.
type Deps struct {
	Repo        storage.Repository
	Expenses    *services.ExpenseService
	Tokens      *auth.TokenManager
	Receipts    *uploads.Store
	ReportCache cache.Store
}

type Server struct {
	*http.Server

	repo        storage.Repository
	expenses    *services.ExpenseService
	tokens      *auth.TokenManager
	receipts    *uploads.Store
	reportCache cache.Store

	maxUploadSize int64

	apiLimiter   *ratelimit.Limiter
	loginLimiter *ratelimit.Limiter
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer wires middleware and routes, returning a ready-to-run server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	reportCache := deps.ReportCache
	cacheManager := cache.NewManager()
	if reportCache == nil {
		mem := cache.NewMemoryStore(256, 5*time.Minute)
		cacheManager.Register(mem)
		reportCache = mem
	}
	cacheManager.StartCleanup(10 * time.Minute)

	s := &Server{
		repo:          deps.Repo,
		expenses:      deps.Expenses,
		tokens:        deps.Tokens,
		receipts:      deps.Receipts,
		reportCache:   reportCache,
		maxUploadSize: cfg.MaxUploadSize,
		apiLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: 120,
		}),
		loginLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: 10,
		}),
		cacheManager: cacheManager,
	}

	s.Server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.routes(cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

func (s *Server) routes(cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	traceMw := trace.NewMiddleware(extractClientIP)
	headersMw := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	r.Use(traceMw.Middleware)
	r.Use(headersMw.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	if s.receipts != nil {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/",
			http.FileServer(http.Dir(s.receipts.Dir()))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.apiLimiter.Middleware(extractClientIP, nil))

		r.With(s.loginLimiter.Middleware(extractClientIP, nil)).
			Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.tokens))

			r.Get("/auth/profile", s.handleProfile)

			r.Route("/properties", func(r chi.Router) {
				r.Get("/", s.handleListProperties)
				r.Post("/", s.handleCreateProperty)
				r.Get("/{propertyID}", s.handleGetProperty)
				r.Put("/{propertyID}", s.handleUpdateProperty)
				r.Delete("/{propertyID}", s.handleDeleteProperty)

				r.Route("/{propertyID}/categories", func(r chi.Router) {
					r.Get("/", s.handleListCategories)
					r.Post("/", s.handleCreateCategory)
					r.Put("/{categoryID}", s.handleUpdateCategory)
					r.Delete("/{categoryID}", s.handleDeleteCategory)
				})

				r.Route("/{propertyID}/expenses", func(r chi.Router) {
					r.Get("/", s.handleListExpenses)
					r.Post("/", s.handleCreateExpense)
					r.Get("/{expenseID}", s.handleGetExpense)
					r.Put("/{expenseID}", s.handleUpdateExpense)
					r.Delete("/{expenseID}", s.handleDeleteExpense)
				})

				r.Route("/{propertyID}/debtors", func(r chi.Router) {
					r.Get("/", s.handleListDebtors)
					r.Post("/", s.handleCreateDebtor)
					r.Put("/{debtorID}", s.handleUpdateDebtor)
					r.Delete("/{debtorID}", s.handleDeleteDebtor)
				})
			})

			r.Route("/debtors/{debtorID}/payments", func(r chi.Router) {
				r.Get("/", s.handleListPayments)
				r.Post("/", s.handleCreatePayment)
			})
			r.Put("/payments/{paymentID}", s.handleUpdatePayment)
			r.Delete("/payments/{paymentID}", s.handleDeletePayment)

			r.Route("/reports", func(r chi.Router) {
				r.Get("/property/{propertyID}", s.handlePropertyReport)
				r.Get("/property/{propertyID}/year/{year}", s.handleYearlyReport)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		if s.apiLimiter != nil {
			s.apiLimiter.Stop()
		}
		if s.loginLimiter != nil {
			s.loginLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
