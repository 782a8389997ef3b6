package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Currency struct {
	Code   string `json:"code"`
	Issuer string `json:"issuer"`
}

// Market is the base/quote currency pair a desk trades.
type Market struct {
	Base  Currency `json:"base"`
	Quote Currency `json:"quote"`
}

func (m Market) Validate() error {
	if strings.TrimSpace(m.Base.Code) == "" || strings.TrimSpace(m.Quote.Code) == "" {
		return Invalidf("market requires base and quote currency codes")
	}
	if strings.EqualFold(m.Base.Code, m.Quote.Code) && m.Base.Issuer == m.Quote.Issuer {
		return Invalidf("market base and quote must differ")
	}
	return nil
}

func (m Market) String() string {
	return m.Base.Code + "/" + m.Quote.Code
}

// DeskRecord is the authoritative desk row kept in the global desk catalog.
// OwnerNamespace is the creating tenant's namespace name, never a raw
// identity.
type DeskRecord struct {
	DeskID         uuid.UUID `json:"desk_id"`
	OwnerNamespace string    `json:"owner_namespace"`
	OwnerAccount   string    `json:"owner_account,omitempty"`
	StoragePath    string    `json:"storage_path"`
	Network        Network   `json:"network"`
	Market         Market    `json:"market"`
	MarketURL      string    `json:"market_url,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// DeskInfo is the public view of a desk.
type DeskInfo struct {
	DeskID       uuid.UUID `json:"desk_id"`
	AccountID    string    `json:"account_id"`
	Network      Network   `json:"network"`
	Market       Market    `json:"market"`
	MarketURL    string    `json:"market_url,omitempty"`
	OwnerAccount string    `json:"owner_account,omitempty"`
	Active       bool      `json:"active"`
}
