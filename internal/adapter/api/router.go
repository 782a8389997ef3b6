// Package api assembles the HTTP routes of the tradedesk service.
package api

import (
	"log/slog"
	"net/http"

	"github.com/V4T54L/tradedesk/internal/adapter/api/handler"
	"github.com/V4T54L/tradedesk/internal/adapter/api/middleware"
	"github.com/V4T54L/tradedesk/internal/adapter/metrics"
	"github.com/V4T54L/tradedesk/internal/domain"
	"github.com/V4T54L/tradedesk/internal/pkg/config"
	"github.com/V4T54L/tradedesk/internal/pkg/ratelimiter"
)

// Service is everything the tenant routes need from the orchestrator.
type Service interface {
	handler.AccountService
	handler.OrderService
	handler.DeskService
}

// Deps groups the collaborators of the HTTP layer.
type Deps struct {
	Service  Service
	Resolver domain.IdentityResolver
	Limiter  *ratelimiter.MapLimiter
	Broker   *handler.SSEBroker
	Admin    *handler.AdminHandler
	Metrics  *metrics.Metrics
}

// NewRouter creates and configures the main HTTP router.
func NewRouter(cfg *config.Config, logger *slog.Logger, deps Deps) http.Handler {
	mux := http.NewServeMux()

	accounts := handler.NewAccountHandler(deps.Service, deps.Limiter, logger)
	orders := handler.NewOrderHandler(deps.Service, logger)
	desks := handler.NewDeskHandler(deps.Service, logger)

	// Middleware
	authMiddleware := middleware.Auth(deps.Resolver, logger)
	limitMiddleware := middleware.RateLimit(deps.Limiter, deps.Metrics, logger)
	tenant := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(limitMiddleware(h))
	}

	// Accounts
	mux.Handle("POST /accounts", tenant(accounts.CreateAccount))
	mux.Handle("GET /accounts", tenant(accounts.ListAccounts))
	mux.Handle("POST /accounts/orders", tenant(accounts.CreateAccountOrder))
	mux.Handle("GET /assets", tenant(accounts.ListAssets))
	mux.Handle("GET /accounts/{id}/status", tenant(accounts.GetStatus))
	mux.Handle("POST /accounts/{id}/consume", tenant(accounts.ConsumeNote))
	mux.Handle("POST /sync", tenant(accounts.Sync))
	mux.Handle("POST /flush", tenant(accounts.Flush))

	// Orders
	mux.Handle("POST /orders", tenant(orders.CreateOrder))
	mux.Handle("GET /orders", tenant(orders.ListOrders))
	mux.Handle("GET /orders/{id}", tenant(orders.GetOrder))

	// Desks
	mux.Handle("POST /desks", tenant(desks.CreateDesk))
	mux.Handle("GET /desks", tenant(desks.ListDesks))
	mux.Handle("GET /desks/{id}", tenant(desks.GetDesk))
	mux.Handle("POST /desks/{id}/activate", tenant(desks.Activate))
	mux.Handle("POST /desks/{id}/deactivate", tenant(desks.Deactivate))

	// Market note inbox
	mux.Handle("POST /market/{desk_id}", tenant(desks.PushNote))
	mux.Handle("GET /market/{desk_id}", tenant(desks.ListNotes))
	mux.Handle("GET /market/{desk_id}/notes/{note_id}", tenant(desks.GetNote))
	mux.Handle("PATCH /market/{desk_id}/notes/{note_id}", tenant(desks.SetNoteStatus))
	mux.Handle("POST /market/{desk_id}/notes/{note_id}/consume", tenant(desks.ConsumeNote))
	if deps.Broker != nil {
		mux.Handle("GET /market/{desk_id}/stream", authMiddleware(deps.Broker))
	}

	// Admin
	if deps.Admin != nil {
		mux.Handle("/admin/", NewAdminRouter(cfg, deps.Admin, logger))
		mux.HandleFunc("GET /health", deps.Admin.HealthCheck)
	}

	return middleware.Logging(logger, deps.Metrics)(middleware.MaxBody(cfg.MaxBodyBytes)(mux))
}
