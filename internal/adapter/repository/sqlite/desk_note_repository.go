package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/V4T54L/tradedesk/internal/domain"
)

type noteModel struct {
	NoteID    int64     `gorm:"column:note_id;primaryKey;autoIncrement"`
	Payload   string    `gorm:"column:payload;not null"`
	Status    string    `gorm:"column:status;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (noteModel) TableName() string { return "notes" }

func (m *noteModel) toRecord() domain.DeskNoteRecord {
	return domain.DeskNoteRecord{
		NoteID:    m.NoteID,
		Payload:   []byte(m.Payload),
		Status:    domain.DeskNoteStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func migrateNotes(db *gorm.DB) error {
	return execAll(db,
		`CREATE TABLE IF NOT EXISTS notes (
			note_id    INTEGER PRIMARY KEY AUTOINCREMENT,
			payload    TEXT NOT NULL,
			status     TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_status ON notes(status)`,
	)
}

// DeskNoteRepository is one desk's note inbox.
type DeskNoteRepository struct {
	db *gorm.DB
}

func NewDeskNoteRepository(db *gorm.DB) (*DeskNoteRepository, error) {
	if err := migrateNotes(db); err != nil {
		return nil, storageErr("migrate note inbox", err)
	}
	return &DeskNoteRepository{db: db}, nil
}

func (r *DeskNoteRepository) InsertNote(ctx context.Context, payload []byte) (int64, error) {
	now := time.Now().UTC()
	m := noteModel{Payload: string(payload), Status: string(domain.DeskNoteNew), CreatedAt: now, UpdatedAt: now}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return 0, storageErr("insert note", err)
	}
	return m.NoteID, nil
}

func (r *DeskNoteRepository) GetNote(ctx context.Context, noteID int64) (*domain.DeskNoteRecord, error) {
	var m noteModel
	if err := r.db.WithContext(ctx).First(&m, "note_id = ?", noteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storageErr("get note", err)
	}
	rec := m.toRecord()
	return &rec, nil
}

func (r *DeskNoteRepository) ListNotes(ctx context.Context) ([]domain.DeskNoteRecord, error) {
	return r.list(r.db.WithContext(ctx))
}

func (r *DeskNoteRepository) ListNotesByStatus(ctx context.Context, status domain.DeskNoteStatus) ([]domain.DeskNoteRecord, error) {
	return r.list(r.db.WithContext(ctx).Where("status = ?", string(status)))
}

func (r *DeskNoteRepository) list(q *gorm.DB) ([]domain.DeskNoteRecord, error) {
	var models []noteModel
	if err := q.Order("note_id DESC").Find(&models).Error; err != nil {
		return nil, storageErr("list notes", err)
	}
	out := make([]domain.DeskNoteRecord, 0, len(models))
	for i := range models {
		out = append(out, models[i].toRecord())
	}
	return out, nil
}

func (r *DeskNoteRepository) CompareAndSetStatus(ctx context.Context, noteID int64, from, to domain.DeskNoteStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&noteModel{}).
		Where("note_id = ? AND status = ?", noteID, string(from)).
		Updates(map[string]any{"status": string(to), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, storageErr("update note status", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *DeskNoteRepository) DeleteNote(ctx context.Context, noteID int64) error {
	err := r.db.WithContext(ctx).Delete(&noteModel{}, "note_id = ?", noteID).Error
	return storageErr("delete note", err)
}
