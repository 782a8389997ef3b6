package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/V4T54L/tradedesk/internal/domain"
)

// desk resolves deskID through the global catalog, the authoritative source.
func (o *Orchestrator) desk(ctx context.Context, deskID uuid.UUID) (domain.DeskRecord, error) {
	rec, err := o.desks.GetDesk(ctx, deskID)
	if err != nil {
		return domain.DeskRecord{}, err
	}
	if rec == nil {
		return domain.DeskRecord{}, domain.NotFoundf("desk %s", deskID)
	}
	return *rec, nil
}

// PushNote stores note in the desk's inbox with status new and returns the
// assigned note id.
func (o *Orchestrator) PushNote(ctx context.Context, deskID uuid.UUID, note domain.MarketNote) (int64, error) {
	if err := note.Validate(); err != nil {
		return 0, err
	}
	rec, err := o.desk(ctx, deskID)
	if err != nil {
		return 0, err
	}
	if !rec.Active {
		return 0, domain.Conflictf("desk %s is not active", deskID)
	}
	if note.Market != "" && !strings.EqualFold(note.Market, rec.Market.String()) {
		return 0, domain.Invalidf("note is for market %s, desk trades %s", note.Market, rec.Market)
	}

	payload, err := json.Marshal(note)
	if err != nil {
		return 0, fmt.Errorf("encode note: %w", err)
	}
	notes, err := o.catalogs.OpenNotes(ctx, rec.StoragePath, true)
	if err != nil {
		return 0, fmt.Errorf("open desk notes: %w", err)
	}
	noteID, err := notes.InsertNote(ctx, payload)
	if err != nil {
		return 0, fmt.Errorf("store note: %w", err)
	}

	o.metrics.ObserveDeskNote("pushed")
	o.publish(ctx, domain.NoteEvent{DeskID: deskID.String(), NoteID: noteID, Status: domain.DeskNoteNew, Market: rec.Market.String(), At: o.now()})
	return noteID, nil
}

func (o *Orchestrator) deskNotes(ctx context.Context, deskID uuid.UUID) (domain.DeskRecord, domain.DeskNoteRepository, error) {
	rec, err := o.desk(ctx, deskID)
	if err != nil {
		return rec, nil, err
	}
	notes, err := o.catalogs.OpenNotes(ctx, rec.StoragePath, false)
	if err != nil {
		return rec, nil, err
	}
	return rec, notes, nil
}

// ListDeskNotes returns the desk's notes newest first, optionally only those
// with status.
func (o *Orchestrator) ListDeskNotes(ctx context.Context, deskID uuid.UUID, status domain.DeskNoteStatus) ([]domain.DeskNoteRecord, error) {
	rec, err := o.desk(ctx, deskID)
	if err != nil {
		return nil, err
	}
	notes, err := o.catalogs.OpenNotes(ctx, rec.StoragePath, false)
	if isNotFound(err) {
		return []domain.DeskNoteRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	if status != "" {
		return notes.ListNotesByStatus(ctx, status)
	}
	return notes.ListNotes(ctx)
}

func (o *Orchestrator) GetDeskNote(ctx context.Context, deskID uuid.UUID, noteID int64) (domain.DeskNoteRecord, error) {
	_, notes, err := o.deskNotes(ctx, deskID)
	if err != nil {
		return domain.DeskNoteRecord{}, err
	}
	return getNote(ctx, notes, deskID, noteID)
}

func getNote(ctx context.Context, notes domain.DeskNoteRepository, deskID uuid.UUID, noteID int64) (domain.DeskNoteRecord, error) {
	n, err := notes.GetNote(ctx, noteID)
	if err != nil {
		return domain.DeskNoteRecord{}, err
	}
	if n == nil {
		return domain.DeskNoteRecord{}, domain.NotFoundf("note %d on desk %s", noteID, deskID)
	}
	return *n, nil
}

// SetDeskNoteStatus moves a note from new to consumed or invalid. Terminal
// notes never move again.
func (o *Orchestrator) SetDeskNoteStatus(ctx context.Context, deskID uuid.UUID, noteID int64, next domain.DeskNoteStatus) (domain.DeskNoteRecord, error) {
	rec, notes, err := o.deskNotes(ctx, deskID)
	if err != nil {
		return domain.DeskNoteRecord{}, err
	}
	cur, err := getNote(ctx, notes, deskID, noteID)
	if err != nil {
		return domain.DeskNoteRecord{}, err
	}
	if err := o.transitionNote(ctx, rec, notes, cur, next); err != nil {
		return domain.DeskNoteRecord{}, err
	}
	return getNote(ctx, notes, deskID, noteID)
}

func (o *Orchestrator) transitionNote(ctx context.Context, rec domain.DeskRecord, notes domain.DeskNoteRepository, cur domain.DeskNoteRecord, next domain.DeskNoteStatus) error {
	if !cur.Status.CanTransition(next) {
		return domain.Conflictf("note %d cannot move from %s to %s", cur.NoteID, cur.Status, next)
	}
	changed, err := notes.CompareAndSetStatus(ctx, cur.NoteID, cur.Status, next)
	if err != nil {
		return err
	}
	if !changed {
		return domain.Conflictf("note %d changed concurrently", cur.NoteID)
	}
	o.metrics.ObserveDeskNote(string(next))
	o.publish(ctx, domain.NoteEvent{DeskID: rec.DeskID.String(), NoteID: cur.NoteID, Status: next, Market: rec.Market.String(), At: o.now()})
	return nil
}

// ConsumeDeskNote consumes a stored note on the desk's own account through
// the desk's actor and marks it consumed. If the collaborator rejects the
// note it stays new.
func (o *Orchestrator) ConsumeDeskNote(ctx context.Context, deskID uuid.UUID, noteID int64) (domain.TransactionID, error) {
	e, ok := o.cachedDesk(deskID)
	if !ok {
		return "", domain.NotFoundf("desk %s", deskID)
	}
	rec, notes, err := o.deskNotes(ctx, deskID)
	if err != nil {
		return "", err
	}
	cur, err := getNote(ctx, notes, deskID, noteID)
	if err != nil {
		return "", err
	}
	if cur.Status != domain.DeskNoteNew {
		return "", domain.Conflictf("note %d is already %s", noteID, cur.Status)
	}
	var mn domain.MarketNote
	if err := json.Unmarshal(cur.Payload, &mn); err != nil {
		return "", domain.Invalidf("stored note %d is malformed: %v", noteID, err)
	}

	h, err := o.actor(ctx, e.ns, rec.Network)
	if err != nil {
		return "", err
	}
	tx, err := h.ConsumeNote(ctx, e.accountID, mn.Note)
	if err != nil {
		o.logger.Error("desk note consumption failed", "desk_id", deskID, "note_id", noteID, "error", err)
		return "", fmt.Errorf("consume note %d: %w", noteID, err)
	}

	if err := o.transitionNote(ctx, rec, notes, cur, domain.DeskNoteConsumed); err != nil {
		o.logger.Warn("note consumed on ledger but inbox status not updated", "desk_id", deskID, "note_id", noteID, "tx_id", tx, "error", err)
		return tx, err
	}
	return tx, nil
}
