package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/V4T54L/tradedesk/internal/adapter/repository/redis"
	"github.com/V4T54L/tradedesk/internal/domain"
)

// PoolFlusher evicts every pooled ledger actor.
type PoolFlusher interface {
	FlushAll() int
}

// TokenStore issues and revokes API tokens.
type TokenStore interface {
	Issue(ctx context.Context, token string, id domain.TenantIdentity) error
	Revoke(ctx context.Context, token string) error
}

// TokenInvalidator drops a cached token resolution.
type TokenInvalidator interface {
	Invalidate(token string)
}

// NoteEventLog is the operator view of the note event stream.
type NoteEventLog interface {
	Recent(ctx context.Context, count int64) ([]redis.StreamEntry, error)
	Len(ctx context.Context) (int64, error)
	Trim(ctx context.Context, maxLen int64) (int64, error)
}

// AdminHandler handles operator requests. Tokens and Events are optional;
// their routes answer 404 when unset.
type AdminHandler struct {
	pool   PoolFlusher
	tokens TokenStore
	cache  TokenInvalidator
	events NoteEventLog
	logger *slog.Logger
}

func NewAdminHandler(pool PoolFlusher, tokens TokenStore, cache TokenInvalidator, events NoteEventLog, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{pool: pool, tokens: tokens, cache: cache, events: events, logger: logger}
}

// HealthCheck is a simple health check endpoint.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// FlushAll handles POST /admin/flush.
func (h *AdminHandler) FlushAll(w http.ResponseWriter, r *http.Request) {
	n := h.pool.FlushAll()
	h.logger.Info("flushed all ledger actors", "evicted", n)
	respondWithJSON(w, h.logger, http.StatusOK, flushResponse{Evicted: n})
}

type issueTokenRequest struct {
	Token      string `json:"token"`
	Identifier string `json:"identifier"`
}

// IssueToken handles POST /admin/tokens.
func (h *AdminHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		http.NotFound(w, r)
		return
	}
	var req issueTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		respondWithError(w, h.logger, domain.Invalidf("token is required"))
		return
	}
	id, err := domain.ParseTenantIdentity(req.Identifier)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if err := h.tokens.Issue(r.Context(), req.Token, id); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(req.Token)
	}
	h.logger.Info("api token issued", "tenant", id)
	w.WriteHeader(http.StatusNoContent)
}

// RevokeToken handles DELETE /admin/tokens/{token}.
func (h *AdminHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		http.NotFound(w, r)
		return
	}
	token := r.PathValue("token")
	if err := h.tokens.Revoke(r.Context(), token); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(token)
	}
	w.WriteHeader(http.StatusNoContent)
}

type noteEventsResponse struct {
	Length  int64               `json:"length"`
	Entries []redis.StreamEntry `json:"entries"`
}

// NoteEvents handles GET /admin/note-events?count={count}.
func (h *AdminHandler) NoteEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		http.NotFound(w, r)
		return
	}
	var count int64 = 100 // default
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		var err error
		count, err = strconv.ParseInt(countStr, 10, 64)
		if err != nil || count <= 0 {
			http.Error(w, "invalid count parameter", http.StatusBadRequest)
			return
		}
	}

	entries, err := h.events.Recent(r.Context(), count)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	length, err := h.events.Len(r.Context())
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, noteEventsResponse{Length: length, Entries: entries})
}

// TrimNoteEvents handles POST /admin/note-events/trim.
func (h *AdminHandler) TrimNoteEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		http.NotFound(w, r)
		return
	}
	var payload struct {
		MaxLen int64 `json:"maxlen"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if payload.MaxLen <= 0 {
		http.Error(w, "maxlen must be a positive integer", http.StatusBadRequest)
		return
	}

	trimmedCount, err := h.events.Trim(r.Context(), payload.MaxLen)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]int64{"trimmed": trimmedCount})
}
