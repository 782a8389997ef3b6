package mocks

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/tradedesk/internal/domain"
)

// MockTenantCatalog is an in-memory domain.TenantCatalog.
type MockTenantCatalog struct {
	mu           sync.Mutex
	Accounts     map[string]domain.AccountRecord
	Orders       map[string]domain.OrderRecord
	Assets       []domain.AssetRecord
	// OrderUpserts counts every order write: upserts, inserts and moves.
	OrderUpserts int
	UpsertErr    error
	GetErr       error
}

func NewMockTenantCatalog() *MockTenantCatalog {
	return &MockTenantCatalog{
		Accounts: make(map[string]domain.AccountRecord),
		Orders:   make(map[string]domain.OrderRecord),
	}
}

func (m *MockTenantCatalog) UpsertAccount(ctx context.Context, rec domain.AccountRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.Accounts[rec.AccountID] = rec
	return nil
}

func (m *MockTenantCatalog) GetAccount(ctx context.Context, accountID string) (*domain.AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	rec, ok := m.Accounts[accountID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MockTenantCatalog) ListAccounts(ctx context.Context) ([]domain.AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AccountRecord, 0, len(m.Accounts))
	for _, rec := range m.Accounts {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (m *MockTenantCatalog) ListAccountsByKind(ctx context.Context, kind domain.AccountKind) ([]domain.AccountRecord, error) {
	all, _ := m.ListAccounts(ctx)
	out := all[:0]
	for _, rec := range all {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MockTenantCatalog) DeleteAccount(ctx context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Accounts, accountID)
	return nil
}

func (m *MockTenantCatalog) UpsertOrder(ctx context.Context, rec domain.OrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.OrderUpserts++
	m.Orders[rec.OrderID] = rec
	return nil
}

func (m *MockTenantCatalog) InsertOrder(ctx context.Context, rec domain.OrderRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return false, m.UpsertErr
	}
	if _, ok := m.Orders[rec.OrderID]; ok {
		return false, nil
	}
	m.OrderUpserts++
	m.Orders[rec.OrderID] = rec
	return true, nil
}

func (m *MockTenantCatalog) CompareAndSetOrder(ctx context.Context, rec domain.OrderRecord, fromStage domain.OrderStage, fromStatus domain.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return false, m.UpsertErr
	}
	cur, ok := m.Orders[rec.OrderID]
	if !ok || cur.Stage != fromStage || cur.Status != fromStatus {
		return false, nil
	}
	cur.Stage, cur.Status, cur.TxID, cur.Error, cur.UpdatedAt = rec.Stage, rec.Status, rec.TxID, rec.Error, rec.UpdatedAt
	m.OrderUpserts++
	m.Orders[rec.OrderID] = cur
	return true, nil
}

func (m *MockTenantCatalog) GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	rec, ok := m.Orders[orderID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MockTenantCatalog) ListOrders(ctx context.Context) ([]domain.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.OrderRecord, 0, len(m.Orders))
	for _, rec := range m.Orders {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockTenantCatalog) ListOrdersByAccount(ctx context.Context, accountID string) ([]domain.OrderRecord, error) {
	all, _ := m.ListOrders(ctx)
	out := all[:0]
	for _, rec := range all {
		if rec.AccountID == accountID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MockTenantCatalog) DeleteOrder(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Orders, orderID)
	return nil
}

// MockDeskRepository is an in-memory domain.DeskRepository.
type MockDeskRepository struct {
	mu        sync.Mutex
	Desks     map[uuid.UUID]domain.DeskRecord
	UpsertErr error
	ListErr   error
}

func NewMockDeskRepository() *MockDeskRepository {
	return &MockDeskRepository{Desks: make(map[uuid.UUID]domain.DeskRecord)}
}

func (m *MockDeskRepository) UpsertDesk(ctx context.Context, rec domain.DeskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.Desks[rec.DeskID] = rec
	return nil
}

func (m *MockDeskRepository) GetDesk(ctx context.Context, deskID uuid.UUID) (*domain.DeskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Desks[deskID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MockDeskRepository) ListDesks(ctx context.Context) ([]domain.DeskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]domain.DeskRecord, 0, len(m.Desks))
	for _, rec := range m.Desks {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockDeskRepository) DeleteDesk(ctx context.Context, deskID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Desks, deskID)
	return nil
}

// MockDeskNoteRepository is an in-memory domain.DeskNoteRepository.
type MockDeskNoteRepository struct {
	mu     sync.Mutex
	Notes  map[int64]domain.DeskNoteRecord
	nextID int64
}

func NewMockDeskNoteRepository() *MockDeskNoteRepository {
	return &MockDeskNoteRepository{Notes: make(map[int64]domain.DeskNoteRecord)}
}

func (m *MockDeskNoteRepository) InsertNote(ctx context.Context, payload []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := time.Now().UTC()
	m.Notes[m.nextID] = domain.DeskNoteRecord{
		NoteID:    m.nextID,
		Payload:   json.RawMessage(append([]byte(nil), payload...)),
		Status:    domain.DeskNoteNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return m.nextID, nil
}

func (m *MockDeskNoteRepository) GetNote(ctx context.Context, noteID int64) (*domain.DeskNoteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Notes[noteID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MockDeskNoteRepository) ListNotes(ctx context.Context) ([]domain.DeskNoteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.DeskNoteRecord, 0, len(m.Notes))
	for _, rec := range m.Notes {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NoteID > out[j].NoteID })
	return out, nil
}

func (m *MockDeskNoteRepository) ListNotesByStatus(ctx context.Context, status domain.DeskNoteStatus) ([]domain.DeskNoteRecord, error) {
	all, _ := m.ListNotes(ctx)
	out := all[:0]
	for _, rec := range all {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MockDeskNoteRepository) CompareAndSetStatus(ctx context.Context, noteID int64, from, to domain.DeskNoteStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Notes[noteID]
	if !ok || rec.Status != from {
		return false, nil
	}
	rec.Status = to
	rec.UpdatedAt = time.Now().UTC()
	m.Notes[noteID] = rec
	return true, nil
}

func (m *MockDeskNoteRepository) DeleteNote(ctx context.Context, noteID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Notes, noteID)
	return nil
}

// MockCatalogOpener keeps one in-memory store per directory. Directories
// listed in Missing behave as if deleted out of band.
type MockCatalogOpener struct {
	mu       sync.Mutex
	Tenants  map[string]*MockTenantCatalog
	NoteSets map[string]*MockDeskNoteRepository
	Missing  map[string]bool
	OpenErr  error
}

func NewMockCatalogOpener() *MockCatalogOpener {
	return &MockCatalogOpener{
		Tenants:  make(map[string]*MockTenantCatalog),
		NoteSets: make(map[string]*MockDeskNoteRepository),
		Missing:  make(map[string]bool),
	}
}

func (m *MockCatalogOpener) OpenTenant(ctx context.Context, dir string, create bool) (domain.TenantCatalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	if m.Missing[dir] {
		return nil, domain.NotFoundf("catalog %s", dir)
	}
	c, ok := m.Tenants[dir]
	if !ok {
		if !create {
			return nil, domain.NotFoundf("catalog %s", dir)
		}
		c = NewMockTenantCatalog()
		m.Tenants[dir] = c
	}
	return c, nil
}

func (m *MockCatalogOpener) OpenNotes(ctx context.Context, dir string, create bool) (domain.DeskNoteRepository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	if m.Missing[dir] {
		return nil, domain.NotFoundf("notes %s", dir)
	}
	n, ok := m.NoteSets[dir]
	if !ok {
		if !create {
			return nil, domain.NotFoundf("notes %s", dir)
		}
		n = NewMockDeskNoteRepository()
		m.NoteSets[dir] = n
	}
	return n, nil
}

// MockNotePublisher records published events.
type MockNotePublisher struct {
	mu         sync.Mutex
	Events     []domain.NoteEvent
	PublishErr error
}

func (m *MockNotePublisher) PublishNoteEvent(ctx context.Context, event domain.NoteEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Events = append(m.Events, event)
	return nil
}

// Published returns a copy of the recorded events.
func (m *MockNotePublisher) Published() []domain.NoteEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.NoteEvent(nil), m.Events...)
}

// MockIdentityResolver resolves tokens from a fixed table.
type MockIdentityResolver struct {
	mu         sync.Mutex
	Identities map[string]domain.TenantIdentity
	ResolveErr error
	Calls      int
}

func (m *MockIdentityResolver) Resolve(ctx context.Context, token string) (domain.TenantIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.ResolveErr != nil {
		return domain.TenantIdentity{}, m.ResolveErr
	}
	id, ok := m.Identities[token]
	if !ok {
		return domain.TenantIdentity{}, domain.NotFoundf("token")
	}
	return id, nil
}

func (m *MockIdentityResolver) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

func (m *MockTenantCatalog) UpsertAsset(ctx context.Context, rec domain.AssetRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	for i, a := range m.Assets {
		if a.AccountID == rec.AccountID {
			rec.Owner = rec.Owner || a.Owner
			rec.CreatedAt = a.CreatedAt
			m.Assets[i] = rec
			return nil
		}
	}
	m.Assets = append(m.Assets, rec)
	return nil
}

func (m *MockTenantCatalog) ListAssets(ctx context.Context) ([]domain.AssetRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AssetRecord(nil), m.Assets...), nil
}
