package domain

import (
	"encoding/hex"
	"encoding/json"
	"time"
)

type NoteVisibility string

const (
	NotePublic  NoteVisibility = "Public"
	NotePrivate NoteVisibility = "Private"
)

// Note is an opaque serialized ledger note. Payload is hex encoded.
type Note struct {
	Version    string         `json:"version"`
	Visibility NoteVisibility `json:"note_type"`
	Payload    string         `json:"payload"`
}

func (n Note) Validate() error {
	if n.Payload == "" {
		return Invalidf("note payload is empty")
	}
	if _, err := hex.DecodeString(n.Payload); err != nil {
		return Invalidf("note payload is not hex")
	}
	if n.Visibility != "" && n.Visibility != NotePublic && n.Visibility != NotePrivate {
		return Invalidf("unsupported note type %q", n.Visibility)
	}
	return nil
}

// MarketNote is what gets pushed to a desk's inbox.
type MarketNote struct {
	Market string `json:"market"`
	Order  Order  `json:"order"`
	Note   Note   `json:"note"`
}

func (m MarketNote) Validate() error {
	if err := m.Order.Validate(); err != nil {
		return err
	}
	return m.Note.Validate()
}

type DeskNoteStatus string

const (
	DeskNoteNew      DeskNoteStatus = "new"
	DeskNoteConsumed DeskNoteStatus = "consumed"
	DeskNoteInvalid  DeskNoteStatus = "invalid"
)

func ParseDeskNoteStatus(s string) (DeskNoteStatus, error) {
	switch DeskNoteStatus(s) {
	case DeskNoteNew, DeskNoteConsumed, DeskNoteInvalid:
		return DeskNoteStatus(s), nil
	}
	return "", Invalidf("unsupported note status %q", s)
}

// CanTransition allows only new → consumed | invalid.
func (s DeskNoteStatus) CanTransition(next DeskNoteStatus) bool {
	return s == DeskNoteNew && (next == DeskNoteConsumed || next == DeskNoteInvalid)
}

// DeskNoteRecord is a row of a desk's note inbox.
type DeskNoteRecord struct {
	NoteID    int64           `json:"note_id"`
	Payload   json.RawMessage `json:"payload"`
	Status    DeskNoteStatus  `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NoteEvent is published whenever a desk note is pushed or changes status.
type NoteEvent struct {
	DeskID string         `json:"desk_id"`
	NoteID int64          `json:"note_id"`
	Status DeskNoteStatus `json:"status"`
	Market string         `json:"market,omitempty"`
	At     time.Time      `json:"at"`
}
