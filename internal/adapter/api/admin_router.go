package api

import (
	"log/slog"
	"net/http"

	"github.com/V4T54L/tradedesk/internal/adapter/api/handler"
	"github.com/V4T54L/tradedesk/internal/adapter/api/middleware"
	"github.com/V4T54L/tradedesk/internal/pkg/config"
)

// NewAdminRouter creates the router for operator endpoints, all behind the
// admin key.
func NewAdminRouter(cfg *config.Config, adminHandler *handler.AdminHandler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /admin/flush", adminHandler.FlushAll)

	// Tokens
	mux.HandleFunc("POST /admin/tokens", adminHandler.IssueToken)
	mux.HandleFunc("DELETE /admin/tokens/{token}", adminHandler.RevokeToken)

	// Note event stream
	mux.HandleFunc("GET /admin/note-events", adminHandler.NoteEvents)
	mux.HandleFunc("POST /admin/note-events/trim", adminHandler.TrimNoteEvents)

	return middleware.AdminAuth(cfg.AdminKey, logger)(mux)
}
