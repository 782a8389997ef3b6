// Package local is a journal-backed stand-in for the external ledger SDK.
// It keeps accounts, fungible balances and note lifecycles on disk so a
// development deployment behaves like a stateful ledger client.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/tradedesk/internal/domain"
	"github.com/V4T54L/tradedesk/internal/pkg/journal"
)

const (
	kindAccountCreated = "account_created"
	kindNoteCommitted  = "note_committed"
	kindNoteConsumed   = "note_consumed"
	kindSynced         = "synced"

	storageModePrivate = "private"
	storageModePublic  = "public"
)

type accountCreated struct {
	AccountID   string             `json:"account_id"`
	StorageMode string             `json:"storage_mode"`
	Faucet      *domain.FaucetSpec `json:"faucet,omitempty"`
}

type noteCommitted struct {
	NoteID    string      `json:"note_id"`
	AccountID string      `json:"account_id"`
	TxID      string      `json:"tx_id"`
	Note      domain.Note `json:"note"`
}

type noteConsumed struct {
	NoteID    string        `json:"note_id"`
	AccountID string        `json:"account_id"`
	TxID      string        `json:"tx_id"`
	Credit    *domain.Asset `json:"credit,omitempty"`
}

type synced struct {
	BlockNum uint64 `json:"block_num"`
}

type account struct {
	snapshot domain.AccountSnapshot
	faucet   *domain.FaucetSpec
	balances map[string]uint64
}

// Client implements domain.LedgerClient over a Journal. It is not safe for
// concurrent use.
type Client struct {
	network domain.Network
	journal *journal.Journal
	latency time.Duration
	logger  *slog.Logger

	accounts  map[string]*account
	committed map[string]noteCommitted
	consumed  map[string]noteConsumed
	blockNum  uint64
	// pending collects ids touched since the last sync.
	pending domain.SyncSummary
}

// Open replays the journal into memory.
func Open(ctx context.Context, network domain.Network, jr *journal.Journal, latency time.Duration, logger *slog.Logger) (*Client, error) {
	c := &Client{
		network:   network,
		journal:   jr,
		latency:   latency,
		logger:    logger.With("component", "local_ledger", "network", network),
		accounts:  make(map[string]*account),
		committed: make(map[string]noteCommitted),
		consumed:  make(map[string]noteConsumed),
	}
	if err := jr.Replay(ctx, c.apply); err != nil {
		return nil, fmt.Errorf("failed to replay ledger journal: %w", err)
	}
	c.pending = domain.SyncSummary{}
	c.logger.Debug("local ledger opened", "accounts", len(c.accounts), "block_num", c.blockNum)
	return c, nil
}

func (c *Client) apply(rec journal.Record) error {
	switch rec.Kind {
	case kindAccountCreated:
		var ev accountCreated
		if err := json.Unmarshal(rec.Data, &ev); err != nil {
			return err
		}
		c.accounts[ev.AccountID] = &account{
			snapshot: domain.AccountSnapshot{AccountID: ev.AccountID, StorageMode: ev.StorageMode, IsFaucet: ev.Faucet != nil},
			faucet:   ev.Faucet,
			balances: make(map[string]uint64),
		}
		c.pending.UpdatedAccounts = append(c.pending.UpdatedAccounts, ev.AccountID)
	case kindNoteCommitted:
		var ev noteCommitted
		if err := json.Unmarshal(rec.Data, &ev); err != nil {
			return err
		}
		c.committed[ev.NoteID] = ev
		if a, ok := c.accounts[ev.AccountID]; ok {
			a.snapshot.Nonce++
		}
		c.pending.CommittedNotes = append(c.pending.CommittedNotes, ev.NoteID)
		c.pending.NewNotes = append(c.pending.NewNotes, ev.NoteID)
	case kindNoteConsumed:
		var ev noteConsumed
		if err := json.Unmarshal(rec.Data, &ev); err != nil {
			return err
		}
		c.consumed[ev.NoteID] = ev
		if a, ok := c.accounts[ev.AccountID]; ok {
			a.snapshot.Nonce++
			if ev.Credit != nil {
				a.balances[ev.Credit.Faucet] += ev.Credit.Amount
			}
		}
		c.pending.ConsumedNotes = append(c.pending.ConsumedNotes, ev.NoteID)
		c.pending.UpdatedAccounts = append(c.pending.UpdatedAccounts, ev.AccountID)
	case kindSynced:
		var ev synced
		if err := json.Unmarshal(rec.Data, &ev); err != nil {
			return err
		}
		c.blockNum = ev.BlockNum
	default:
		c.logger.Warn("unknown journal record kind, skipping", "kind", rec.Kind)
	}
	return nil
}

// record journals ev and applies it to memory.
func (c *Client) record(kind string, ev any) error {
	if err := c.journal.Append(kind, ev); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.apply(journal.Record{Kind: kind, Data: data})
}

func (c *Client) prove(ctx context.Context) error {
	if c.latency <= 0 {
		return nil
	}
	t := time.NewTimer(c.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) newAccountID() string {
	return c.network.AddressPrefix() + "1" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (c *Client) Sync(ctx context.Context) (domain.SyncSummary, error) {
	if err := c.record(kindSynced, synced{BlockNum: c.blockNum + 1}); err != nil {
		return domain.SyncSummary{}, err
	}
	summary := c.pending
	summary.BlockNum = c.blockNum
	c.pending = domain.SyncSummary{}
	return summary, nil
}

func (c *Client) CreateAccount(ctx context.Context) (domain.AccountSnapshot, error) {
	if err := c.prove(ctx); err != nil {
		return domain.AccountSnapshot{}, err
	}
	ev := accountCreated{AccountID: c.newAccountID(), StorageMode: storageModePrivate}
	if err := c.record(kindAccountCreated, ev); err != nil {
		return domain.AccountSnapshot{}, err
	}
	return c.accounts[ev.AccountID].snapshot, nil
}

func (c *Client) CreateFaucetAccount(ctx context.Context, spec domain.FaucetSpec) (domain.AccountSnapshot, error) {
	if err := spec.Validate(); err != nil {
		return domain.AccountSnapshot{}, err
	}
	if err := c.prove(ctx); err != nil {
		return domain.AccountSnapshot{}, err
	}
	ev := accountCreated{AccountID: c.newAccountID(), StorageMode: storageModePublic, Faucet: &spec}
	if err := c.record(kindAccountCreated, ev); err != nil {
		return domain.AccountSnapshot{}, err
	}
	return c.accounts[ev.AccountID].snapshot, nil
}

func (c *Client) GetAccount(ctx context.Context, accountID string) (*domain.AccountSnapshot, error) {
	a, ok := c.accounts[accountID]
	if !ok {
		return nil, nil
	}
	snap := a.snapshot
	return &snap, nil
}

func (c *Client) ListAccounts(ctx context.Context) ([]domain.AccountSnapshot, error) {
	out := make([]domain.AccountSnapshot, 0, len(c.accounts))
	for _, a := range c.accounts {
		out = append(out, a.snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

// NoteID is the content address of a note.
func NoteID(note domain.Note) string {
	sum := sha256.Sum256([]byte(note.Payload))
	return "0x" + hex.EncodeToString(sum[:])
}

func txID(parts ...string) domain.TransactionID {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return domain.TransactionID("0x" + hex.EncodeToString(h.Sum(nil)))
}

func (c *Client) CommitNote(ctx context.Context, accountID string, note domain.Note) (domain.TransactionID, error) {
	if _, ok := c.accounts[accountID]; !ok {
		return "", fmt.Errorf("account %s not found", accountID)
	}
	if err := note.Validate(); err != nil {
		return "", err
	}
	id := NoteID(note)
	if _, ok := c.committed[id]; ok {
		return "", fmt.Errorf("note %s already committed", id)
	}
	if err := c.prove(ctx); err != nil {
		return "", err
	}
	tx := txID("commit", accountID, id)
	if err := c.record(kindNoteCommitted, noteCommitted{NoteID: id, AccountID: accountID, TxID: string(tx), Note: note}); err != nil {
		return "", err
	}
	return tx, nil
}

func (c *Client) ConsumeNote(ctx context.Context, accountID string, note domain.Note) (domain.TransactionID, error) {
	if _, ok := c.accounts[accountID]; !ok {
		return "", fmt.Errorf("account %s not found", accountID)
	}
	if err := note.Validate(); err != nil {
		return "", err
	}
	id := NoteID(note)
	if _, ok := c.consumed[id]; ok {
		return "", fmt.Errorf("note %s already consumed", id)
	}
	credit, err := creditFor(note)
	if err != nil {
		return "", err
	}
	if err := c.prove(ctx); err != nil {
		return "", err
	}
	tx := txID("consume", accountID, id)
	if err := c.record(kindNoteConsumed, noteConsumed{NoteID: id, AccountID: accountID, TxID: string(tx), Credit: credit}); err != nil {
		return "", err
	}
	return tx, nil
}

// creditFor returns the fungible asset a note transfers to its consumer, if
// the note was built by this package's compiler and carries one.
func creditFor(note domain.Note) (*domain.Asset, error) {
	body, err := DecodeNote(note)
	if errors.Is(err, errForeignNote) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if body.Order.Type != domain.OrderFundAccount || body.Order.Faucet == "" {
		return nil, nil
	}
	return &domain.Asset{Faucet: body.Order.Faucet, Amount: body.Order.Amount, Fungible: true}, nil
}

func (c *Client) GetStatus(ctx context.Context, accountID string) (domain.AccountStatus, error) {
	a, ok := c.accounts[accountID]
	if !ok {
		return domain.AccountStatus{}, fmt.Errorf("account %s not found", accountID)
	}
	status := domain.AccountStatus{AccountID: accountID, StorageMode: a.snapshot.StorageMode, Assets: []domain.Asset{}}
	faucets := make([]string, 0, len(a.balances))
	for f := range a.balances {
		faucets = append(faucets, f)
	}
	sort.Strings(faucets)
	for _, f := range faucets {
		status.Assets = append(status.Assets, domain.Asset{Faucet: f, Amount: a.balances[f], Fungible: true})
	}
	return status, nil
}

func (c *Client) Close() error {
	return c.journal.Close()
}
