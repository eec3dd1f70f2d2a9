package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/auth"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/logger"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/metrics"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	DB             *sql.DB
	Auth           *auth.Service
	Sessions       *session.Manager
	Logger         *logger.Logger
	Metrics        *metrics.Shop
	Gatherer       prometheus.Gatherer
	HealthChecks   map[string]HealthCheck
	RequestTimeout time.Duration
}

type Server struct {
	db           *sql.DB
	auth         *auth.Service
	sessions     *session.Manager
	logg         *logger.Logger
	metrics      *metrics.Shop
	healthChecks map[string]HealthCheck
}

func NewRouter(d Deps) http.Handler {
	s := &Server{
		db:           d.DB,
		auth:         d.Auth,
		sessions:     d.Sessions,
		logg:         d.Logger,
		metrics:      d.Metrics,
		healthChecks: d.HealthChecks,
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(
		chimiddleware.RealIP,
		s.requestID,
		s.logging,
		s.recoverer,
	)
	if d.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(d.RequestTimeout))
	}

	r.Get("/healthz", s.handleHealth)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.loadSession)

		r.Get("/", s.handleIndex)
		r.Get("/about", s.handleAbout)
		r.Get("/store", s.handleStore)

		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLogin)
		r.Get("/signup", s.handleSignupPage)
		r.Post("/signup", s.handleSignup)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/add_to_cart/{productID}", s.handleAddToCart)
			r.Get("/cart", s.handleCart)
			r.Get("/remove_from_cart/{productID}", s.handleRemoveFromCart)
			r.Get("/confirm_order", s.handleConfirmOrder)
			r.Get("/orders", s.handleOrders)
			r.Get("/logout", s.handleLogout)
		})
	})

	return r
}
