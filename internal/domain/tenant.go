package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// TenantIdentity is the opaque 32-byte token identifying a tenant. It is only
// ever used as a map or namespace key and must never be logged in raw form.
type TenantIdentity [32]byte

// ParseTenantIdentity decodes a 64-character hex string.
func ParseTenantIdentity(s string) (TenantIdentity, error) {
	var id TenantIdentity
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return id, Invalidf("identifier is not valid hex")
	}
	if len(raw) != len(id) {
		return id, Invalidf("identifier must be %d bytes, got %d", len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// Fingerprint returns a short, non-reversible tag usable in logs.
func (t TenantIdentity) Fingerprint() string {
	sum := sha256.Sum256(t[:])
	return hex.EncodeToString(sum[:4])
}

func (t TenantIdentity) String() string {
	return "tenant:" + t.Fingerprint()
}

// LogValue keeps slog from ever rendering the raw bytes.
func (t TenantIdentity) LogValue() slog.Value {
	return slog.StringValue(t.String())
}

// Network names a deployment environment of the ledger.
type Network string

const (
	NetworkTestnet  Network = "Testnet"
	NetworkLocalnet Network = "Localnet"
)

// Networks lists every supported network.
func Networks() []Network {
	return []Network{NetworkTestnet, NetworkLocalnet}
}

// ParseNetwork accepts the canonical names case-insensitively, plus the short
// forms "test" and "local".
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "testnet", "test":
		return NetworkTestnet, nil
	case "localnet", "local":
		return NetworkLocalnet, nil
	}
	return "", Invalidf("unsupported network %q, expected Testnet or Localnet", s)
}

func (n Network) Valid() bool {
	return n == NetworkTestnet || n == NetworkLocalnet
}

// DirName is the directory component used for per-network ledger state.
func (n Network) DirName() string {
	return strings.ToLower(string(n))
}

// AddressPrefix is the human readable prefix of account ids on the network.
func (n Network) AddressPrefix() string {
	if n == NetworkTestnet {
		return "mtst"
	}
	return "mlcl"
}

func (n *Network) UnmarshalText(text []byte) error {
	parsed, err := ParseNetwork(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// Namespace couples an identity with the directory its state lives under.
type Namespace struct {
	Identity TenantIdentity
	Dir      string
}

func (ns Namespace) String() string {
	return fmt.Sprintf("%s@%s", ns.Identity, ns.Dir)
}
