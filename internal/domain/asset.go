package domain

import "time"

// AssetRecord is an entry in a tenant's asset registry. Owner marks assets
// the tenant issued itself; hidden assets are kept but not listed.
type AssetRecord struct {
	Symbol    string    `json:"symbol"`
	AccountID string    `json:"account"`
	MaxSupply uint64    `json:"max_supply"`
	Decimals  uint8     `json:"decimals"`
	Verified  bool      `json:"verified"`
	Owner     bool      `json:"owner"`
	Hidden    bool      `json:"hidden"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultBTCFaucet is the well-known BTC faucet every tenant sees.
const DefaultBTCFaucet = "mtst1qrkc5sp34wkncgr9tp9ghjsjv9cqq0u8da0"

// DefaultAssets returns the assets listed for every tenant.
func DefaultAssets() []AssetRecord {
	return []AssetRecord{{
		Symbol:    "BTC",
		AccountID: DefaultBTCFaucet,
		MaxSupply: 2_100_000_000_000_000,
		Decimals:  8,
		Verified:  true,
	}}
}

// AssetFromFaucet is the registry entry for a faucet the tenant created.
func AssetFromFaucet(accountID string, f FaucetSpec, at time.Time) AssetRecord {
	return AssetRecord{
		Symbol:    f.Symbol,
		AccountID: accountID,
		MaxSupply: f.MaxSupply,
		Decimals:  f.Decimals,
		Owner:     true,
		CreatedAt: at,
	}
}

// MergeAssets lists defaults first, then the tenant's assets in order.
// Hidden entries are skipped, and a tenant entry for a default account
// replaces the default in place.
func MergeAssets(defaults, own []AssetRecord) []AssetRecord {
	out := make([]AssetRecord, 0, len(defaults)+len(own))
	pos := make(map[string]int, len(defaults)+len(own))
	for _, list := range [][]AssetRecord{defaults, own} {
		for _, a := range list {
			if a.Hidden {
				continue
			}
			if i, ok := pos[a.AccountID]; ok {
				out[i] = a
				continue
			}
			pos[a.AccountID] = len(out)
			out = append(out, a)
		}
	}
	return out
}
