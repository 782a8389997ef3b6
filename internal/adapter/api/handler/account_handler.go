package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/V4T54L/tradedesk/internal/domain"
	"github.com/V4T54L/tradedesk/internal/pkg/tenantkey"
)

// AccountService is the part of the orchestrator serving account routes.
type AccountService interface {
	CreateAccount(ctx context.Context, id domain.TenantIdentity, network domain.Network, kind domain.AccountKind, name string) (domain.AccountRecord, error)
	ListAccounts(ctx context.Context, id domain.TenantIdentity) ([]domain.AccountRecord, error)
	ListAssets(ctx context.Context, id domain.TenantIdentity) ([]domain.AssetRecord, error)
	CreateAccountOrder(ctx context.Context, id domain.TenantIdentity, network domain.Network, order domain.AccountOrder) (domain.AccountOrderResult, error)
	GetStatus(ctx context.Context, id domain.TenantIdentity, network domain.Network, accountID string) (domain.AccountStatus, error)
	ConsumeNote(ctx context.Context, id domain.TenantIdentity, network domain.Network, accountID string, note domain.Note) (domain.TransactionID, error)
	Sync(ctx context.Context, id domain.TenantIdentity, network domain.Network) (domain.SyncSummary, error)
	Flush(id domain.TenantIdentity) int
}

// Forgetter drops per-tenant transport state after a flush.
type Forgetter interface {
	Forget(key string)
}

// AccountHandler serves the tenant's account workflows.
type AccountHandler struct {
	svc    AccountService
	forget Forgetter
	logger *slog.Logger
}

func NewAccountHandler(svc AccountService, forget Forgetter, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, forget: forget, logger: logger}
}

type createAccountRequest struct {
	Network domain.Network `json:"network"`
	Kind    string         `json:"kind"`
	Name    string         `json:"name"`
}

// CreateAccount handles POST /accounts.
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := tenantFrom(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	kind := domain.AccountClient
	if req.Kind != "" {
		if kind, err = domain.ParseAccountKind(req.Kind); err != nil {
			respondWithError(w, h.logger, err)
			return
		}
	}

	rec, err := h.svc.CreateAccount(r.Context(), id, req.Network, kind, req.Name)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, rec)
}

// ListAccounts handles GET /accounts.
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	id, err := tenantFrom(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	accounts, err := h.svc.ListAccounts(r.Context(), id)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, accounts)
}

// ListAssets handles GET /assets.
func (h *AccountHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	id, err := tenantFrom(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	assets, err := h.svc.ListAssets(r.Context(), id)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, assets)
}

type accountOrderRequest struct {
	Network domain.Network `json:"network"`
	domain.AccountOrder
}

// CreateAccountOrder handles POST /accounts/orders.
func (h *AccountHandler) CreateAccountOrder(w http.ResponseWriter, r *http.Request) {
	id, err := tenantFrom(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req accountOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	res, err := h.svc.CreateAccountOrder(r.Context(), id, req.Network, req.AccountOrder)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, res)
}

// GetStatus handles GET /accounts/{id}/status?network=.
func (h *AccountHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := tenantFrom(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	network, err := queryNetwork(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	status, err := h.svc.GetStatus(r.Context(), id, network, r.PathValue("id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, status)
}

type consumeNoteRequest struct {
	Network domain.Network `json:"network"`
	Note    domain.Note    `json:"note"`
}

type txResponse struct {
	TxID domain.TransactionID `json:"tx_id"`
}

// ConsumeNote handles POST /accounts/{id}/consume.
func (h *AccountHandler) ConsumeNote(w http.ResponseWriter, r *http.Request) {
	id, err := tenantFrom(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req consumeNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	tx, err := h.svc.ConsumeNote(r.Context(), id, req.Network, r.PathValue("id"), req.Note)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, txResponse{TxID: tx})
}

type syncRequest struct {
	Network domain.Network `json:"network"`
}

// Sync handles POST /sync.
func (h *AccountHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id, err := tenantFrom(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req syncRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	summary, err := h.svc.Sync(r.Context(), id, req.Network)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, summary)
}

type flushResponse struct {
	Evicted int `json:"evicted"`
}

// Flush handles POST /flush. Only the caller's own actors are evicted.
func (h *AccountHandler) Flush(w http.ResponseWriter, r *http.Request) {
	id, err := tenantFrom(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	n := h.svc.Flush(id)
	if h.forget != nil {
		h.forget.Forget(tenantkey.Namespace(id))
	}
	respondWithJSON(w, h.logger, http.StatusOK, flushResponse{Evicted: n})
}
