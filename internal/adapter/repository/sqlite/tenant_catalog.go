package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/V4T54L/tradedesk/internal/domain"
)

type accountModel struct {
	AccountID string    `gorm:"column:account_id;primaryKey"`
	Network   string    `gorm:"column:network;not null"`
	Kind      string    `gorm:"column:kind;not null"`
	Name      string    `gorm:"column:name;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (accountModel) TableName() string { return "accounts" }

func (m *accountModel) toRecord() domain.AccountRecord {
	return domain.AccountRecord{
		AccountID: m.AccountID,
		Network:   domain.Network(m.Network),
		Kind:      domain.AccountKind(m.Kind),
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
	}
}

type orderModel struct {
	OrderID   string    `gorm:"column:order_id;primaryKey"`
	OrderType string    `gorm:"column:order_type;not null"`
	Payload   string    `gorm:"column:payload;not null"`
	Stage     string    `gorm:"column:stage;not null"`
	Status    string    `gorm:"column:status;not null;default:''"`
	AccountID string    `gorm:"column:account_id;not null"`
	Network   string    `gorm:"column:network;not null"`
	TxID      string    `gorm:"column:tx_id;not null;default:''"`
	Error     string    `gorm:"column:error;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (orderModel) TableName() string { return "orders" }

func (m *orderModel) toRecord() domain.OrderRecord {
	return domain.OrderRecord{
		OrderID:   m.OrderID,
		OrderType: domain.OrderType(m.OrderType),
		Payload:   []byte(m.Payload),
		Stage:     domain.OrderStage(m.Stage),
		Status:    domain.OrderStatus(m.Status),
		AccountID: m.AccountID,
		Network:   domain.Network(m.Network),
		TxID:      m.TxID,
		Error:     m.Error,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func orderModelFromRecord(r domain.OrderRecord) *orderModel {
	return &orderModel{
		OrderID:   r.OrderID,
		OrderType: string(r.OrderType),
		Payload:   string(r.Payload),
		Stage:     string(r.Stage),
		Status:    string(r.Status),
		AccountID: r.AccountID,
		Network:   string(r.Network),
		TxID:      r.TxID,
		Error:     r.Error,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type assetModel struct {
	AccountID string    `gorm:"column:account_id;primaryKey"`
	Symbol    string    `gorm:"column:symbol;not null"`
	MaxSupply string    `gorm:"column:max_supply;not null"`
	Decimals  int       `gorm:"column:decimals;not null"`
	Verified  bool      `gorm:"column:verified;not null;default:false"`
	Owner     bool      `gorm:"column:owner;not null;default:false"`
	Hidden    bool      `gorm:"column:hidden;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (assetModel) TableName() string { return "assets" }

func (m *assetModel) toRecord() (domain.AssetRecord, error) {
	supply, err := strconv.ParseUint(m.MaxSupply, 10, 64)
	if err != nil {
		return domain.AssetRecord{}, fmt.Errorf("asset %s max_supply %q: %w", m.AccountID, m.MaxSupply, err)
	}
	return domain.AssetRecord{
		Symbol:    m.Symbol,
		AccountID: m.AccountID,
		MaxSupply: supply,
		Decimals:  uint8(m.Decimals),
		Verified:  m.Verified,
		Owner:     m.Owner,
		Hidden:    m.Hidden,
		CreatedAt: m.CreatedAt,
	}, nil
}

// migrateTenant creates the original tables, then adds columns introduced
// later so catalogs written by older builds keep their rows.
func migrateTenant(db *gorm.DB) error {
	err := execAll(db,
		`CREATE TABLE IF NOT EXISTS accounts (
			account_id TEXT PRIMARY KEY,
			network    TEXT NOT NULL,
			kind       TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			order_id   TEXT PRIMARY KEY,
			order_type TEXT NOT NULL,
			payload    TEXT NOT NULL,
			stage      TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT '',
			account_id TEXT NOT NULL,
			network    TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_account_id ON orders(account_id)`,
		`CREATE TABLE IF NOT EXISTS assets (
			account_id TEXT PRIMARY KEY,
			symbol     TEXT NOT NULL,
			max_supply TEXT NOT NULL,
			decimals   INTEGER NOT NULL,
			verified   NUMERIC NOT NULL DEFAULT false,
			created_at DATETIME NOT NULL
		)`,
	)
	if err != nil {
		return err
	}
	if err := ensureColumn(db, &accountModel{}, "name"); err != nil {
		return err
	}
	for _, col := range []string{"tx_id", "error"} {
		if err := ensureColumn(db, &orderModel{}, col); err != nil {
			return err
		}
	}
	for _, col := range []string{"owner", "hidden"} {
		if err := ensureColumn(db, &assetModel{}, col); err != nil {
			return err
		}
	}
	return nil
}

// TenantCatalog implements domain.TenantCatalog for one namespace.
type TenantCatalog struct {
	db *gorm.DB
}

func NewTenantCatalog(db *gorm.DB) (*TenantCatalog, error) {
	if err := migrateTenant(db); err != nil {
		return nil, storageErr("migrate tenant catalog", err)
	}
	return &TenantCatalog{db: db}, nil
}

func (c *TenantCatalog) UpsertAccount(ctx context.Context, rec domain.AccountRecord) error {
	m := accountModel{
		AccountID: rec.AccountID,
		Network:   string(rec.Network),
		Kind:      string(rec.Kind),
		Name:      rec.Name,
		CreatedAt: rec.CreatedAt.UTC(),
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
	return storageErr("upsert account", err)
}

func (c *TenantCatalog) GetAccount(ctx context.Context, accountID string) (*domain.AccountRecord, error) {
	var m accountModel
	if err := c.db.WithContext(ctx).First(&m, "account_id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storageErr("get account", err)
	}
	rec := m.toRecord()
	return &rec, nil
}

func (c *TenantCatalog) ListAccounts(ctx context.Context) ([]domain.AccountRecord, error) {
	return c.listAccounts(c.db.WithContext(ctx))
}

func (c *TenantCatalog) ListAccountsByKind(ctx context.Context, kind domain.AccountKind) ([]domain.AccountRecord, error) {
	return c.listAccounts(c.db.WithContext(ctx).Where("kind = ?", string(kind)))
}

func (c *TenantCatalog) listAccounts(q *gorm.DB) ([]domain.AccountRecord, error) {
	var models []accountModel
	if err := q.Order("created_at ASC, account_id ASC").Find(&models).Error; err != nil {
		return nil, storageErr("list accounts", err)
	}
	out := make([]domain.AccountRecord, 0, len(models))
	for i := range models {
		out = append(out, models[i].toRecord())
	}
	return out, nil
}

func (c *TenantCatalog) DeleteAccount(ctx context.Context, accountID string) error {
	err := c.db.WithContext(ctx).Delete(&accountModel{}, "account_id = ?", accountID).Error
	return storageErr("delete account", err)
}

func (c *TenantCatalog) UpsertOrder(ctx context.Context, rec domain.OrderRecord) error {
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(orderModelFromRecord(rec)).Error
	return storageErr("upsert order", err)
}

func (c *TenantCatalog) InsertOrder(ctx context.Context, rec domain.OrderRecord) (bool, error) {
	res := c.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(orderModelFromRecord(rec))
	if res.Error != nil {
		return false, storageErr("insert order", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (c *TenantCatalog) CompareAndSetOrder(ctx context.Context, rec domain.OrderRecord, fromStage domain.OrderStage, fromStatus domain.OrderStatus) (bool, error) {
	res := c.db.WithContext(ctx).Model(&orderModel{}).
		Where("order_id = ? AND stage = ? AND status = ?", rec.OrderID, string(fromStage), string(fromStatus)).
		Updates(map[string]any{
			"stage":      string(rec.Stage),
			"status":     string(rec.Status),
			"tx_id":      rec.TxID,
			"error":      rec.Error,
			"updated_at": rec.UpdatedAt.UTC(),
		})
	if res.Error != nil {
		return false, storageErr("update order", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (c *TenantCatalog) GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	var m orderModel
	if err := c.db.WithContext(ctx).First(&m, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storageErr("get order", err)
	}
	rec := m.toRecord()
	return &rec, nil
}

func (c *TenantCatalog) ListOrders(ctx context.Context) ([]domain.OrderRecord, error) {
	return c.listOrders(c.db.WithContext(ctx))
}

func (c *TenantCatalog) ListOrdersByAccount(ctx context.Context, accountID string) ([]domain.OrderRecord, error) {
	return c.listOrders(c.db.WithContext(ctx).Where("account_id = ?", accountID))
}

func (c *TenantCatalog) listOrders(q *gorm.DB) ([]domain.OrderRecord, error) {
	var models []orderModel
	if err := q.Order("created_at DESC, order_id ASC").Find(&models).Error; err != nil {
		return nil, storageErr("list orders", err)
	}
	out := make([]domain.OrderRecord, 0, len(models))
	for i := range models {
		out = append(out, models[i].toRecord())
	}
	return out, nil
}

func (c *TenantCatalog) DeleteOrder(ctx context.Context, orderID string) error {
	err := c.db.WithContext(ctx).Delete(&orderModel{}, "order_id = ?", orderID).Error
	return storageErr("delete order", err)
}

func (c *TenantCatalog) UpsertAsset(ctx context.Context, rec domain.AssetRecord) error {
	m := assetModel{
		AccountID: rec.AccountID,
		Symbol:    rec.Symbol,
		MaxSupply: strconv.FormatUint(rec.MaxSupply, 10),
		Decimals:  int(rec.Decimals),
		Verified:  rec.Verified,
		Owner:     rec.Owner,
		Hidden:    rec.Hidden,
		CreatedAt: rec.CreatedAt.UTC(),
	}
	updates := clause.AssignmentColumns([]string{"symbol", "max_supply", "decimals", "verified", "hidden"})
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "owner"},
		Value:  gorm.Expr("CASE WHEN excluded.owner THEN excluded.owner ELSE assets.owner END"),
	})
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: updates,
	}).Create(&m).Error
	return storageErr("upsert asset", err)
}

func (c *TenantCatalog) ListAssets(ctx context.Context) ([]domain.AssetRecord, error) {
	var models []assetModel
	if err := c.db.WithContext(ctx).Order("created_at ASC, account_id ASC").Find(&models).Error; err != nil {
		return nil, storageErr("list assets", err)
	}
	out := make([]domain.AssetRecord, 0, len(models))
	for i := range models {
		rec, err := models[i].toRecord()
		if err != nil {
			return nil, storageErr("list assets", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
