// Package handler holds the HTTP handlers of the tradedesk API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/V4T54L/tradedesk/internal/adapter/api/middleware"
	"github.com/V4T54L/tradedesk/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// errorStatus maps the domain error taxonomy onto HTTP status codes.
func errorStatus(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCollaborator):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrSpawn), errors.Is(err, domain.ErrActorStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func respondWithError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := errorStatus(err)
	if code >= http.StatusInternalServerError {
		logger.Error("request failed", "status", code, "error", err)
	} else {
		logger.Debug("request rejected", "status", code, "error", err)
	}
	respondWithJSON(w, logger, code, errorResponse{Error: err.Error()})
}

// decodeJSON reads a JSON body into dst. Unknown fields are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) || errors.Is(err, domain.ErrInvalid) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return domain.Invalidf("request body is empty")
		}
		return domain.Invalidf("malformed request body: %v", err)
	}
	return nil
}

func tenantFrom(r *http.Request) (domain.TenantIdentity, error) {
	id, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		return domain.TenantIdentity{}, errors.New("tenant identity missing from request context")
	}
	return id, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domain.Invalidf("%s is not a valid uuid", name)
	}
	return id, nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	n, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || n <= 0 {
		return 0, domain.Invalidf("%s must be a positive integer", name)
	}
	return n, nil
}

// queryNetwork reads the network query parameter; it is required.
func queryNetwork(r *http.Request) (domain.Network, error) {
	raw := r.URL.Query().Get("network")
	if raw == "" {
		return "", domain.Invalidf("network query parameter is required")
	}
	return domain.ParseNetwork(raw)
}
