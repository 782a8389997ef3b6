package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/V4T54L/tradedesk/internal/domain"
)

type deskModel struct {
	DeskID         string        `gorm:"column:desk_id;primaryKey"`
	OwnerNamespace string        `gorm:"column:owner_namespace;not null"`
	OwnerAccount   string        `gorm:"column:owner_account;not null;default:''"`
	StoragePath    string        `gorm:"column:storage_path;not null"`
	Network        string        `gorm:"column:network;not null"`
	Market         domain.Market `gorm:"column:market;not null;serializer:json"`
	MarketURL      string        `gorm:"column:market_url;not null;default:''"`
	Active         *bool         `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time     `gorm:"column:created_at;not null"`
}

func (deskModel) TableName() string { return "desks" }

func (m *deskModel) toRecord() (domain.DeskRecord, error) {
	id, err := uuid.Parse(m.DeskID)
	if err != nil {
		return domain.DeskRecord{}, fmt.Errorf("malformed desk_id %q: %w", m.DeskID, err)
	}
	return domain.DeskRecord{
		DeskID:         id,
		OwnerNamespace: m.OwnerNamespace,
		OwnerAccount:   m.OwnerAccount,
		StoragePath:    m.StoragePath,
		Network:        domain.Network(m.Network),
		Market:         m.Market,
		MarketURL:      m.MarketURL,
		Active:         m.Active == nil || *m.Active,
		CreatedAt:      m.CreatedAt,
	}, nil
}

func migrateDesks(db *gorm.DB) error {
	err := execAll(db,
		`CREATE TABLE IF NOT EXISTS desks (
			desk_id         TEXT PRIMARY KEY,
			owner_namespace TEXT NOT NULL,
			owner_account   TEXT NOT NULL DEFAULT '',
			storage_path    TEXT NOT NULL,
			network         TEXT NOT NULL,
			market          TEXT NOT NULL,
			market_url      TEXT NOT NULL DEFAULT '',
			created_at      DATETIME NOT NULL
		)`,
	)
	if err != nil {
		return err
	}
	return ensureColumn(db, &deskModel{}, "active")
}

// DeskRepository is the global desk catalog on SQLite.
type DeskRepository struct {
	db *gorm.DB
}

// OpenDeskRepository opens or creates the desk catalog file at path.
func OpenDeskRepository(path string) (*DeskRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storageErr("open desk catalog", err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, storageErr("open desk catalog", err)
	}
	repo, err := NewDeskRepository(db)
	if err != nil {
		closeDB(db)
		return nil, err
	}
	return repo, nil
}

func NewDeskRepository(db *gorm.DB) (*DeskRepository, error) {
	if err := migrateDesks(db); err != nil {
		return nil, storageErr("migrate desk catalog", err)
	}
	return &DeskRepository{db: db}, nil
}

func (r *DeskRepository) UpsertDesk(ctx context.Context, rec domain.DeskRecord) error {
	// A pointer keeps gorm from dropping false in favour of the column default.
	active := rec.Active
	m := deskModel{
		DeskID:         rec.DeskID.String(),
		OwnerNamespace: rec.OwnerNamespace,
		OwnerAccount:   rec.OwnerAccount,
		StoragePath:    rec.StoragePath,
		Network:        string(rec.Network),
		Market:         rec.Market,
		MarketURL:      rec.MarketURL,
		Active:         &active,
		CreatedAt:      rec.CreatedAt.UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
	return storageErr("upsert desk", err)
}

func (r *DeskRepository) GetDesk(ctx context.Context, deskID uuid.UUID) (*domain.DeskRecord, error) {
	var m deskModel
	if err := r.db.WithContext(ctx).First(&m, "desk_id = ?", deskID.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storageErr("get desk", err)
	}
	rec, err := m.toRecord()
	if err != nil {
		return nil, storageErr("get desk", err)
	}
	return &rec, nil
}

func (r *DeskRepository) ListDesks(ctx context.Context) ([]domain.DeskRecord, error) {
	var models []deskModel
	if err := r.db.WithContext(ctx).Order("created_at ASC, desk_id ASC").Find(&models).Error; err != nil {
		return nil, storageErr("list desks", err)
	}
	out := make([]domain.DeskRecord, 0, len(models))
	for i := range models {
		rec, err := models[i].toRecord()
		if err != nil {
			return nil, storageErr("list desks", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *DeskRepository) DeleteDesk(ctx context.Context, deskID uuid.UUID) error {
	err := r.db.WithContext(ctx).Delete(&deskModel{}, "desk_id = ?", deskID.String()).Error
	return storageErr("delete desk", err)
}

func (r *DeskRepository) Close() error {
	return closeDB(r.db)
}
