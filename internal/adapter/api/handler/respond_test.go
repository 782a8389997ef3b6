package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/V4T54L/tradedesk/internal/domain"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", domain.Invalidf("bad"), http.StatusBadRequest},
		{"not found", domain.NotFoundf("gone"), http.StatusNotFound},
		{"conflict", domain.Conflictf("taken"), http.StatusConflict},
		{"collaborator", fmt.Errorf("commit: %w", &domain.LedgerError{Op: "CommitNote", Message: "boom"}), http.StatusBadGateway},
		{"spawn", fmt.Errorf("acquire: %w", domain.ErrSpawn), http.StatusServiceUnavailable},
		{"stopped", domain.ErrActorStopped, http.StatusServiceUnavailable},
		{"storage", &domain.StorageError{Op: "upsert", Err: errors.New("locked")}, http.StatusInternalServerError},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"too large", &http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{"other", errors.New("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorStatus(tt.err))
		})
	}
}
