package domain

import "context"

type TransactionID string

// SyncSummary reports what a ledger sync observed.
type SyncSummary struct {
	BlockNum        uint64   `json:"block_num"`
	NewNotes        []string `json:"new_notes"`
	CommittedNotes  []string `json:"committed_notes"`
	ConsumedNotes   []string `json:"consumed_notes"`
	UpdatedAccounts []string `json:"updated_accounts"`
}

// AccountSnapshot is the collaborator's view of a single account.
type AccountSnapshot struct {
	AccountID   string `json:"account_id"`
	StorageMode string `json:"storage_mode"`
	IsFaucet    bool   `json:"is_faucet"`
	Nonce       uint64 `json:"nonce"`
}

type Asset struct {
	Faucet   string `json:"faucet"`
	Amount   uint64 `json:"amount"`
	Fungible bool   `json:"fungible"`
}

type AccountStatus struct {
	AccountID   string  `json:"account_id"`
	StorageMode string  `json:"storage_mode"`
	Assets      []Asset `json:"assets"`
}

// LedgerClient is a live, stateful connection to the external ledger. It is
// not safe for concurrent use; a single LedgerActor owns each instance.
type LedgerClient interface {
	Sync(ctx context.Context) (SyncSummary, error)
	CreateAccount(ctx context.Context) (AccountSnapshot, error)
	CreateFaucetAccount(ctx context.Context, spec FaucetSpec) (AccountSnapshot, error)
	// GetAccount returns (nil, nil) when the account is unknown.
	GetAccount(ctx context.Context, accountID string) (*AccountSnapshot, error)
	ListAccounts(ctx context.Context) ([]AccountSnapshot, error)
	CommitNote(ctx context.Context, accountID string, note Note) (TransactionID, error)
	ConsumeNote(ctx context.Context, accountID string, note Note) (TransactionID, error)
	GetStatus(ctx context.Context, accountID string) (AccountStatus, error)
	Close() error
}

// LedgerConnector opens a LedgerClient whose local state lives under dir.
type LedgerConnector interface {
	Connect(ctx context.Context, dir string, network Network) (LedgerClient, error)
}

// NoteCompiler builds the note representing an order for an account.
type NoteCompiler interface {
	Compile(ctx context.Context, accountID string, network Network, order Order) (Note, error)
}
