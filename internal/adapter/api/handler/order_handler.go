package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/V4T54L/tradedesk/internal/domain"
)

type OrderService interface {
	CreateOrder(ctx context.Context, id domain.TenantIdentity, network domain.Network, accountID string, order domain.Order, commit bool) (domain.OrderResult, error)
	ListOrders(ctx context.Context, id domain.TenantIdentity, accountID string) ([]domain.OrderRecord, error)
	GetOrder(ctx context.Context, id domain.TenantIdentity, orderID string) (domain.OrderRecord, error)
}

// OrderHandler serves the create → commit order workflow.
type OrderHandler struct {
	svc    OrderService
	logger *slog.Logger
}

func NewOrderHandler(svc OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger}
}

type createOrderRequest struct {
	Network   domain.Network `json:"network"`
	AccountID string         `json:"account_id"`
	Order     domain.Order   `json:"order"`
	Commit    bool           `json:"commit"`
}

// CreateOrder handles POST /orders.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := tenantFrom(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	res, err := h.svc.CreateOrder(r.Context(), id, req.Network, req.AccountID, req.Order, req.Commit)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, res)
}

// ListOrders handles GET /orders?account_id=.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, err := tenantFrom(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	orders, err := h.svc.ListOrders(r.Context(), id, r.URL.Query().Get("account_id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, orders)
}

// GetOrder handles GET /orders/{id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := tenantFrom(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	order, err := h.svc.GetOrder(r.Context(), id, r.PathValue("id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, order)
}
