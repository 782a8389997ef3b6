package sqlite

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/tradedesk/internal/domain"
)

func TestDeskNoteRepository(t *testing.T) {
	notes, err := testRegistry(t).OpenNotes(context.Background(), t.TempDir(), true)
	require.NoError(t, err)
	ctx := context.Background()

	id1, err := notes.InsertNote(ctx, []byte(`{"n":1}`))
	require.NoError(t, err)
	id2, err := notes.InsertNote(ctx, []byte(`{"n":2}`))
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	t.Run("new notes newest first", func(t *testing.T) {
		list, err := notes.ListNotesByStatus(ctx, domain.DeskNoteNew)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, id2, list[0].NoteID)
	})

	t.Run("compare and set", func(t *testing.T) {
		ok, err := notes.CompareAndSetStatus(ctx, id1, domain.DeskNoteNew, domain.DeskNoteConsumed)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = notes.CompareAndSetStatus(ctx, id1, domain.DeskNoteNew, domain.DeskNoteInvalid)
		require.NoError(t, err)
		assert.False(t, ok, "terminal notes do not move")

		got, err := notes.GetNote(ctx, id1)
		require.NoError(t, err)
		assert.Equal(t, domain.DeskNoteConsumed, got.Status)
		assert.JSONEq(t, `{"n":1}`, string(got.Payload))
	})

	t.Run("missing note", func(t *testing.T) {
		got, err := notes.GetNote(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)
		ok, err := notes.CompareAndSetStatus(ctx, 999, domain.DeskNoteNew, domain.DeskNoteConsumed)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, notes.DeleteNote(ctx, id2))
		require.NoError(t, notes.DeleteNote(ctx, id2))
		list, err := notes.ListNotes(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestDeskNoteRepository_ConcurrentInserts(t *testing.T) {
	notes, err := testRegistry(t).OpenNotes(context.Background(), t.TempDir(), true)
	require.NoError(t, err)

	const writers = 20
	ids := make(chan int64, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := notes.InsertNote(context.Background(), []byte(`{}`))
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate note id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, writers)
}
