package local

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/V4T54L/tradedesk/internal/domain"
)

const noteVersion = "1"

var errForeignNote = errors.New("note was not built by the local compiler")

// NoteBody is the decoded payload of a locally compiled note.
type NoteBody struct {
	Sender  string         `json:"sender"`
	Network domain.Network `json:"network"`
	Order   domain.Order   `json:"order"`
}

// Compiler builds notes whose payload is the hex encoded JSON of the order
// and its sender. Compilation is deterministic.
type Compiler struct{}

func (Compiler) Compile(ctx context.Context, accountID string, network domain.Network, order domain.Order) (domain.Note, error) {
	if accountID == "" {
		return domain.Note{}, fmt.Errorf("cannot compile note without a sender account")
	}
	if err := order.Validate(); err != nil {
		return domain.Note{}, err
	}
	raw, err := json.Marshal(NoteBody{Sender: accountID, Network: network, Order: order})
	if err != nil {
		return domain.Note{}, fmt.Errorf("failed to encode note body: %w", err)
	}
	return domain.Note{
		Version:    noteVersion,
		Visibility: visibilityFor(order.Type),
		Payload:    hex.EncodeToString(raw),
	}, nil
}

func visibilityFor(t domain.OrderType) domain.NoteVisibility {
	switch t {
	case domain.OrderQuoteRequest, domain.OrderQuoteRequestOffer, domain.OrderQuoteRequestNoOffer,
		domain.OrderLimitOrder, domain.OrderLiquidityOffer:
		return domain.NotePublic
	}
	return domain.NotePrivate
}

// DecodeNote reverses Compile.
func DecodeNote(note domain.Note) (NoteBody, error) {
	var body NoteBody
	if note.Version != noteVersion {
		return body, errForeignNote
	}
	raw, err := hex.DecodeString(note.Payload)
	if err != nil {
		return body, fmt.Errorf("note payload is not hex: %w", err)
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Sender == "" {
		return body, errForeignNote
	}
	return body, nil
}
