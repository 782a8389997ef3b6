package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/V4T54L/tradedesk/internal/domain"
)

// DeskService covers desk registration and the desk note inbox.
type DeskService interface {
	NewDesk(ctx context.Context, owner domain.TenantIdentity, network domain.Network, market domain.Market, ownerAccount string) (domain.DeskInfo, error)
	ListDesks(ctx context.Context) []domain.DeskInfo
	GetDeskInfo(ctx context.Context, deskID uuid.UUID) (domain.DeskInfo, error)
	SetDeskActive(ctx context.Context, caller domain.TenantIdentity, deskAccount, ownerAccount string, active bool) (domain.DeskInfo, error)

	PushNote(ctx context.Context, deskID uuid.UUID, note domain.MarketNote) (int64, error)
	ListDeskNotes(ctx context.Context, deskID uuid.UUID, status domain.DeskNoteStatus) ([]domain.DeskNoteRecord, error)
	GetDeskNote(ctx context.Context, deskID uuid.UUID, noteID int64) (domain.DeskNoteRecord, error)
	SetDeskNoteStatus(ctx context.Context, deskID uuid.UUID, noteID int64, next domain.DeskNoteStatus) (domain.DeskNoteRecord, error)
	ConsumeDeskNote(ctx context.Context, deskID uuid.UUID, noteID int64) (domain.TransactionID, error)
}

type DeskHandler struct {
	svc    DeskService
	logger *slog.Logger
}

func NewDeskHandler(svc DeskService, logger *slog.Logger) *DeskHandler {
	return &DeskHandler{svc: svc, logger: logger}
}

type createDeskRequest struct {
	Network      domain.Network `json:"network"`
	Market       domain.Market  `json:"market"`
	OwnerAccount string         `json:"owner_account"`
}

// CreateDesk handles POST /desks.
func (h *DeskHandler) CreateDesk(w http.ResponseWriter, r *http.Request) {
	id, err := tenantFrom(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req createDeskRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	info, err := h.svc.NewDesk(r.Context(), id, req.Network, req.Market, req.OwnerAccount)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, info)
}

// ListDesks handles GET /desks.
func (h *DeskHandler) ListDesks(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, h.svc.ListDesks(r.Context()))
}

// GetDesk handles GET /desks/{id}.
func (h *DeskHandler) GetDesk(w http.ResponseWriter, r *http.Request) {
	deskID, err := pathUUID(r, "id")
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	info, err := h.svc.GetDeskInfo(r.Context(), deskID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, info)
}

type deskActivationRequest struct {
	OwnerAccount string `json:"owner_account"`
}

// Activate handles POST /desks/{id}/activate.
func (h *DeskHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// Deactivate handles POST /desks/{id}/deactivate.
func (h *DeskHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *DeskHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := tenantFrom(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	deskID, err := pathUUID(r, "id")
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req deskActivationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	desk, err := h.svc.GetDeskInfo(r.Context(), deskID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	info, err := h.svc.SetDeskActive(r.Context(), id, desk.AccountID, req.OwnerAccount, active)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, info)
}
