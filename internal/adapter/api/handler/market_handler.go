package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/V4T54L/tradedesk/internal/domain"
)

type pushNoteResponse struct {
	NoteID int64 `json:"note_id"`
}

// PushNote handles POST /market/{desk_id}.
func (h *DeskHandler) PushNote(w http.ResponseWriter, r *http.Request) {
	deskID, err := pathUUID(r, "desk_id")
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var note domain.MarketNote
	if err := decodeJSON(r, &note); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	noteID, err := h.svc.PushNote(r.Context(), deskID, note)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, pushNoteResponse{NoteID: noteID})
}

// ListNotes handles GET /market/{desk_id}?status=.
func (h *DeskHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	deskID, err := pathUUID(r, "desk_id")
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var status domain.DeskNoteStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		if status, err = domain.ParseDeskNoteStatus(raw); err != nil {
			respondWithError(w, h.logger, err)
			return
		}
	}
	notes, err := h.svc.ListDeskNotes(r.Context(), deskID, status)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, notes)
}

// GetNote handles GET /market/{desk_id}/notes/{note_id}.
func (h *DeskHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	deskID, noteID, err := notePath(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	note, err := h.svc.GetDeskNote(r.Context(), deskID, noteID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, note)
}

type noteStatusRequest struct {
	Status string `json:"status"`
}

// SetNoteStatus handles PATCH /market/{desk_id}/notes/{note_id}.
func (h *DeskHandler) SetNoteStatus(w http.ResponseWriter, r *http.Request) {
	deskID, noteID, err := notePath(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req noteStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	next, err := domain.ParseDeskNoteStatus(req.Status)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	note, err := h.svc.SetDeskNoteStatus(r.Context(), deskID, noteID, next)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, note)
}

// ConsumeNote handles POST /market/{desk_id}/notes/{note_id}/consume.
func (h *DeskHandler) ConsumeNote(w http.ResponseWriter, r *http.Request) {
	deskID, noteID, err := notePath(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	tx, err := h.svc.ConsumeDeskNote(r.Context(), deskID, noteID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, txResponse{TxID: tx})
}

func notePath(r *http.Request) (uuid.UUID, int64, error) {
	id, err := pathUUID(r, "desk_id")
	if err != nil {
		return id, 0, err
	}
	noteID, err := pathInt64(r, "note_id")
	return id, noteID, err
}
