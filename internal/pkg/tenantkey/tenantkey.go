// Package tenantkey maps tenant identities to storage namespaces.
package tenantkey

import (
	"crypto/sha256"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/hkdf"

	"github.com/V4T54L/tradedesk/internal/domain"
)

const (
	hkdfInfoNamespace = "tradedesk/tenant-namespace/v1"
	hkdfInfoDesk      = "tradedesk/desk-identity/v1"
)

// Namespace returns the directory name for an identity. It is a pure,
// collision-resistant function of the identity bytes.
func Namespace(id domain.TenantIdentity) string {
	return base58.Encode(hkdfExpand(id[:], hkdfInfoNamespace, 32))
}

// DeskIdentity derives the identity a desk's own ledger state is keyed by.
func DeskIdentity(deskID uuid.UUID) domain.TenantIdentity {
	var id domain.TenantIdentity
	copy(id[:], hkdfExpand(deskID[:], hkdfInfoDesk, len(id)))
	return id
}

// Layout resolves every on-disk location under a data directory.
type Layout struct {
	Root string
}

// TenantDir is the namespace directory holding a tenant's catalog and ledgers.
func (l Layout) TenantDir(id domain.TenantIdentity) string {
	return filepath.Join(l.Root, "tenants", Namespace(id))
}

// DeskDir is a desk's storage_path.
func (l Layout) DeskDir(deskID uuid.UUID) string {
	return filepath.Join(l.Root, "desks", deskID.String())
}

// DesksCatalog is the global desk catalog file.
func (l Layout) DesksCatalog() string {
	return filepath.Join(l.Root, "desks.sqlite3")
}

// LedgerDir is where a namespace keeps its per-network ledger state.
func LedgerDir(namespaceDir string, network domain.Network) string {
	return filepath.Join(namespaceDir, network.DirName())
}

func hkdfExpand(seed []byte, info string, outLen int) []byte {
	reader := hkdf.New(sha256.New, seed, nil, []byte(info))
	out := make([]byte, outLen)
	// hkdf only fails past 255*HashLen bytes.
	if _, err := io.ReadFull(reader, out); err != nil {
		panic(err)
	}
	return out
}
