package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/V4T54L/tradedesk/internal/domain"
)

// MockLedgerClient is an in-memory domain.LedgerClient. CreateDelay blocks
// account creation to simulate slow proving.
type MockLedgerClient struct {
	mu          sync.Mutex
	Network     domain.Network
	Accounts    map[string]domain.AccountSnapshot
	Committed   []domain.Note
	Consumed    []domain.Note
	Calls       []string
	CreateDelay time.Duration
	CommitDelay time.Duration
	SyncErr     error
	CreateErr   error
	CommitErr   error
	ConsumeErr  error
	StatusErr   error
	Closed      bool
	seq         int
	block       uint64
}

func NewMockLedgerClient(network domain.Network) *MockLedgerClient {
	return &MockLedgerClient{Network: network, Accounts: make(map[string]domain.AccountSnapshot)}
}

func (m *MockLedgerClient) record(call string) {
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	m.mu.Unlock()
}

// CallLog returns a copy of the recorded call names.
func (m *MockLedgerClient) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

func (m *MockLedgerClient) Sync(ctx context.Context) (domain.SyncSummary, error) {
	m.record("Sync")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SyncErr != nil {
		return domain.SyncSummary{}, m.SyncErr
	}
	m.block++
	return domain.SyncSummary{BlockNum: m.block}, nil
}

func (m *MockLedgerClient) newAccount(faucet bool) domain.AccountSnapshot {
	m.seq++
	snap := domain.AccountSnapshot{
		AccountID:   fmt.Sprintf("%s1acct%04d", m.Network.AddressPrefix(), m.seq),
		StorageMode: "private",
		IsFaucet:    faucet,
	}
	m.Accounts[snap.AccountID] = snap
	return snap
}

func (m *MockLedgerClient) CreateAccount(ctx context.Context) (domain.AccountSnapshot, error) {
	m.record("CreateAccount")
	m.mu.Lock()
	delay := m.CreateDelay
	m.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return domain.AccountSnapshot{}, m.CreateErr
	}
	return m.newAccount(false), nil
}

func (m *MockLedgerClient) CreateFaucetAccount(ctx context.Context, spec domain.FaucetSpec) (domain.AccountSnapshot, error) {
	m.record("CreateFaucetAccount")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return domain.AccountSnapshot{}, m.CreateErr
	}
	return m.newAccount(true), nil
}

func (m *MockLedgerClient) GetAccount(ctx context.Context, accountID string) (*domain.AccountSnapshot, error) {
	m.record("GetAccount")
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.Accounts[accountID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *MockLedgerClient) ListAccounts(ctx context.Context) ([]domain.AccountSnapshot, error) {
	m.record("ListAccounts")
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AccountSnapshot, 0, len(m.Accounts))
	for _, a := range m.Accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (m *MockLedgerClient) CommitNote(ctx context.Context, accountID string, note domain.Note) (domain.TransactionID, error) {
	m.record("CommitNote")
	if m.CommitDelay > 0 {
		time.Sleep(m.CommitDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CommitErr != nil {
		return "", m.CommitErr
	}
	m.Committed = append(m.Committed, note)
	return domain.TransactionID(fmt.Sprintf("0xcommit%04d", len(m.Committed))), nil
}

func (m *MockLedgerClient) ConsumeNote(ctx context.Context, accountID string, note domain.Note) (domain.TransactionID, error) {
	m.record("ConsumeNote")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConsumeErr != nil {
		return "", m.ConsumeErr
	}
	if _, ok := m.Accounts[accountID]; !ok {
		return "", errors.New("account not found: " + accountID)
	}
	m.Consumed = append(m.Consumed, note)
	return domain.TransactionID(fmt.Sprintf("0xconsume%04d", len(m.Consumed))), nil
}

func (m *MockLedgerClient) GetStatus(ctx context.Context, accountID string) (domain.AccountStatus, error) {
	m.record("GetStatus")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StatusErr != nil {
		return domain.AccountStatus{}, m.StatusErr
	}
	snap, ok := m.Accounts[accountID]
	if !ok {
		return domain.AccountStatus{}, errors.New("account not found: " + accountID)
	}
	return domain.AccountStatus{AccountID: snap.AccountID, StorageMode: snap.StorageMode}, nil
}

func (m *MockLedgerClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// MockLedgerConnector hands out one MockLedgerClient per (dir, network) and
// keeps it across reconnects, the way on-disk client state would persist.
type MockLedgerConnector struct {
	mu           sync.Mutex
	Connects     int
	ConnectErr   error
	ConnectDelay time.Duration
	// FailDirs makes Connect fail for specific directories.
	FailDirs map[string]error
	// Configure, when set, is applied to each newly created client.
	Configure func(dir string, c *MockLedgerClient)
	clients   map[string]*MockLedgerClient
}

func (m *MockLedgerConnector) Connect(ctx context.Context, dir string, network domain.Network) (domain.LedgerClient, error) {
	m.mu.Lock()
	m.Connects++
	delay := m.ConnectDelay
	m.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConnectErr != nil {
		return nil, m.ConnectErr
	}
	if err, ok := m.FailDirs[dir]; ok {
		return nil, err
	}
	if m.clients == nil {
		m.clients = make(map[string]*MockLedgerClient)
	}
	key := dir + "|" + string(network)
	c, ok := m.clients[key]
	if !ok {
		c = NewMockLedgerClient(network)
		if m.Configure != nil {
			m.Configure(dir, c)
		}
		m.clients[key] = c
	}
	return c, nil
}

// ConnectCount returns how many times Connect was called.
func (m *MockLedgerConnector) ConnectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Connects
}

// Client returns the client previously handed out for dir and network.
func (m *MockLedgerConnector) Client(dir string, network domain.Network) *MockLedgerClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clients[dir+"|"+string(network)]
}

// MockNoteCompiler returns a fixed note or CompileErr.
type MockNoteCompiler struct {
	mu         sync.Mutex
	CompileErr error
	Compiled   []domain.Order
	Delay      time.Duration
}

func (m *MockNoteCompiler) Compile(ctx context.Context, accountID string, network domain.Network, order domain.Order) (domain.Note, error) {
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CompileErr != nil {
		return domain.Note{}, m.CompileErr
	}
	m.Compiled = append(m.Compiled, order)
	return domain.Note{Version: "1", Visibility: domain.NotePublic, Payload: "c0ffee"}, nil
}
