// Package server assembles the HTTP handler: Connect services behind
// authentication, validation and logging interceptors, plus health and
// metrics endpoints.
package server

import (
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/groupledger/internal/auth"
	"github.com/mmynk/groupledger/internal/groups"
	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/middleware"
	"github.com/mmynk/groupledger/internal/service"
	"github.com/mmynk/groupledger/pkg/api/apiconnect"
)

// Deps are the components the handler is built from.
type Deps struct {
	Authenticator auth.Authenticator
	Users         auth.UserStorage
	JWT           *auth.JWTManager
	Groups        *groups.Manager
	Ledger        *ledger.Service
	Logger        *slog.Logger

	// CORSOrigins lists allowed browser origins. Empty allows none.
	CORSOrigins []string

	// RateLimiter throttles RPCs per client. Nil disables it.
	RateLimiter *middleware.RateLimiter
}

// NewHandler returns the root HTTP handler.
func NewHandler(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"Connect-Protocol-Version",
			"Connect-Timeout-Ms",
			"X-Request-Id",
		},
		ExposedHeaders: []string{"Grpc-Status", "Grpc-Message", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(d.Logger),
		middleware.RequireAuth(d.JWT, apiconnect.PublicProcedures),
		middleware.ValidationInterceptor(),
	)

	r.Group(func(r chi.Router) {
		if d.RateLimiter != nil {
			r.Use(d.RateLimiter.Handler)
		}
		r.Mount(apiconnect.NewAuthServiceHandler(
			service.NewAuthService(d.Authenticator, d.JWT, d.Users, d.Logger), interceptors))
		r.Mount(apiconnect.NewGroupServiceHandler(
			service.NewGroupService(d.Groups, d.Logger), interceptors))
		r.Mount(apiconnect.NewLedgerServiceHandler(
			service.NewLedgerService(d.Ledger, d.Logger), interceptors))
	})

	return r
}
