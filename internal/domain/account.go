package domain

import (
	"strings"
	"time"
)

// AccountKind tags the role an account plays in the workflow.
type AccountKind string

const (
	AccountClient    AccountKind = "Client"
	AccountDesk      AccountKind = "Desk"
	AccountLiquidity AccountKind = "Liquidity"
	AccountFaucet    AccountKind = "Faucet"
)

func ParseAccountKind(s string) (AccountKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "client":
		return AccountClient, nil
	case "desk":
		return AccountDesk, nil
	case "liquidity":
		return AccountLiquidity, nil
	case "faucet":
		return AccountFaucet, nil
	}
	return "", Invalidf("unsupported account kind %q", s)
}

// AccountRecord is immutable once written to a tenant catalog.
type AccountRecord struct {
	AccountID string      `json:"account_id"`
	Network   Network     `json:"network"`
	Kind      AccountKind `json:"kind"`
	Name      string      `json:"name,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// FaucetSpec describes a fungible asset issuer.
type FaucetSpec struct {
	Symbol    string `json:"symbol"`
	Decimals  uint8  `json:"decimals"`
	MaxSupply uint64 `json:"max_supply"`
}

const maxFaucetDecimals = 12

func (f FaucetSpec) Validate() error {
	if len(f.Symbol) == 0 || len(f.Symbol) > 8 {
		return Invalidf("faucet symbol must be 1 to 8 characters")
	}
	for _, r := range f.Symbol {
		if r < 'A' || r > 'Z' {
			return Invalidf("faucet symbol must be uppercase ASCII letters")
		}
	}
	if f.Decimals > maxFaucetDecimals {
		return Invalidf("faucet decimals must be at most %d", maxFaucetDecimals)
	}
	if f.MaxSupply == 0 {
		return Invalidf("faucet max_supply must be positive")
	}
	return nil
}

// AccountOrderType names the account-level workflow to run.
type AccountOrderType string

const (
	CreateClient    AccountOrderType = "CreateClient"
	CreateLiquidity AccountOrderType = "CreateLiquidity"
	CreateFaucet    AccountOrderType = "CreateFaucet"
	CreateDesk      AccountOrderType = "CreateDesk"
	ActivateDesk    AccountOrderType = "ActivateDesk"
	DeactivateDesk  AccountOrderType = "DeactivateDesk"
)

// AccountOrder is the request envelope for account-level workflows.
type AccountOrder struct {
	Type         AccountOrderType `json:"type"`
	Name         string           `json:"name,omitempty"`
	Faucet       *FaucetSpec      `json:"faucet,omitempty"`
	Market       *Market          `json:"market,omitempty"`
	OwnerAccount string           `json:"owner_account,omitempty"`
	DeskAccount  string           `json:"desk_account,omitempty"`
}

func (o AccountOrder) Validate() error {
	switch o.Type {
	case CreateClient, CreateLiquidity:
		return nil
	case CreateFaucet:
		if o.Faucet == nil {
			return Invalidf("CreateFaucet requires faucet parameters")
		}
		return o.Faucet.Validate()
	case CreateDesk:
		if o.Market == nil {
			return Invalidf("CreateDesk requires a market")
		}
		return o.Market.Validate()
	case ActivateDesk, DeactivateDesk:
		if o.DeskAccount == "" || o.OwnerAccount == "" {
			return Invalidf("%s requires desk_account and owner_account", o.Type)
		}
		return nil
	}
	return Invalidf("unsupported account order type %q", o.Type)
}

// AccountOrderResult reports the outcome of an AccountOrder.
type AccountOrderResult struct {
	Type         AccountOrderType `json:"type"`
	AccountID    string           `json:"account_id,omitempty"`
	Name         string           `json:"name,omitempty"`
	Faucet       *FaucetSpec      `json:"faucet,omitempty"`
	Desk         *DeskInfo        `json:"desk,omitempty"`
	OwnerAccount string           `json:"owner_account,omitempty"`
}
