package domain

import (
	"context"

	"github.com/google/uuid"
)

// TenantCatalog persists a single namespace's accounts and orders.
// Point lookups return (nil, nil) when the key is absent.
type TenantCatalog interface {
	UpsertAccount(ctx context.Context, rec AccountRecord) error
	GetAccount(ctx context.Context, accountID string) (*AccountRecord, error)
	ListAccounts(ctx context.Context) ([]AccountRecord, error)
	ListAccountsByKind(ctx context.Context, kind AccountKind) ([]AccountRecord, error)
	DeleteAccount(ctx context.Context, accountID string) error

	UpsertOrder(ctx context.Context, rec OrderRecord) error
	// InsertOrder writes rec only if no row has its id and reports whether it
	// wrote.
	InsertOrder(ctx context.Context, rec OrderRecord) (bool, error)
	// CompareAndSetOrder moves the row for rec.OrderID to rec's stage, status,
	// tx id and error, but only while the row is still at (fromStage,
	// fromStatus). It reports whether the row moved.
	CompareAndSetOrder(ctx context.Context, rec OrderRecord, fromStage OrderStage, fromStatus OrderStatus) (bool, error)
	GetOrder(ctx context.Context, orderID string) (*OrderRecord, error)
	// ListOrders returns orders newest first.
	ListOrders(ctx context.Context) ([]OrderRecord, error)
	ListOrdersByAccount(ctx context.Context, accountID string) ([]OrderRecord, error)
	DeleteOrder(ctx context.Context, orderID string) error

	// UpsertAsset registers rec by account. Owner is sticky: a later write
	// with Owner false keeps an earlier true.
	UpsertAsset(ctx context.Context, rec AssetRecord) error
	// ListAssets returns the registry in creation order, hidden entries
	// included.
	ListAssets(ctx context.Context) ([]AssetRecord, error)
}

// DeskRepository is the global desk catalog.
type DeskRepository interface {
	UpsertDesk(ctx context.Context, rec DeskRecord) error
	GetDesk(ctx context.Context, deskID uuid.UUID) (*DeskRecord, error)
	// ListDesks returns desks in creation order.
	ListDesks(ctx context.Context) ([]DeskRecord, error)
	DeleteDesk(ctx context.Context, deskID uuid.UUID) error
}

// DeskNoteRepository is a single desk's note inbox.
type DeskNoteRepository interface {
	// InsertNote stores payload with status new and returns the assigned id.
	InsertNote(ctx context.Context, payload []byte) (int64, error)
	GetNote(ctx context.Context, noteID int64) (*DeskNoteRecord, error)
	// ListNotes returns notes newest first.
	ListNotes(ctx context.Context) ([]DeskNoteRecord, error)
	ListNotesByStatus(ctx context.Context, status DeskNoteStatus) ([]DeskNoteRecord, error)
	// CompareAndSetStatus moves a note from one status to another and reports
	// whether a row was changed.
	CompareAndSetStatus(ctx context.Context, noteID int64, from, to DeskNoteStatus) (bool, error)
	DeleteNote(ctx context.Context, noteID int64) error
}

// CatalogOpener opens namespace-scoped stores. With create false a missing
// store yields ErrNotFound instead of being created.
type CatalogOpener interface {
	OpenTenant(ctx context.Context, dir string, create bool) (TenantCatalog, error)
	OpenNotes(ctx context.Context, dir string, create bool) (DeskNoteRepository, error)
}

// NotePublisher fans desk note events out to subscribers.
type NotePublisher interface {
	PublishNoteEvent(ctx context.Context, event NoteEvent) error
}

// IdentityResolver maps a bearer token to a tenant identity. Unknown tokens
// yield ErrNotFound.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (TenantIdentity, error)
}
