package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/tradedesk/internal/domain"
)

func TestTokenRepository_Resolve(t *testing.T) {
	var id domain.TenantIdentity
	for i := range id {
		id[i] = byte(i)
	}
	query := regexp.QuoteMeta("SELECT identity FROM api_tokens WHERE token = $1")

	t.Run("active token", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewTokenRepository(db, discardLogger())
		mock.ExpectQuery(query).WithArgs("tok-1").
			WillReturnRows(sqlmock.NewRows([]string{"identity"}).AddRow(id[:]))

		got, err := repo.Resolve(context.Background(), "tok-1")
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("unknown token", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewTokenRepository(db, discardLogger())
		mock.ExpectQuery(query).WithArgs("nope").WillReturnRows(sqlmock.NewRows([]string{"identity"}))

		_, err := repo.Resolve(context.Background(), "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("database down", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewTokenRepository(db, discardLogger())
		mock.ExpectQuery(query).WillReturnError(errors.New("dial tcp: refused"))

		_, err := repo.Resolve(context.Background(), "tok-1")
		assert.ErrorIs(t, err, domain.ErrStorage)
	})

	t.Run("corrupt identity", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewTokenRepository(db, discardLogger())
		mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"identity"}).AddRow([]byte{1, 2, 3}))

		_, err := repo.Resolve(context.Background(), "tok-1")
		assert.ErrorIs(t, err, domain.ErrInvalid)
	})
}

func TestTokenRepository_IssueAndRevoke(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTokenRepository(db, discardLogger())
	var id domain.TenantIdentity
	id[0] = 0xaa

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO api_tokens")).WithArgs("tok", id[:]).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE api_tokens SET is_active = false")).WithArgs("tok").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Issue(context.Background(), "tok", id))
	require.NoError(t, repo.Revoke(context.Background(), "tok"))
}
