package tenantkey

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/V4T54L/tradedesk/internal/domain"
)

func TestNamespace(t *testing.T) {
	var a, b domain.TenantIdentity
	a[0] = 1
	b[0] = 2

	assert.Equal(t, Namespace(a), Namespace(a))
	assert.NotEqual(t, Namespace(a), Namespace(b))
	assert.NotContains(t, Namespace(a), "/")
	assert.NotEmpty(t, Namespace(a))
}

func TestDeskIdentity(t *testing.T) {
	d1 := uuid.New()
	d2 := uuid.New()

	assert.Equal(t, DeskIdentity(d1), DeskIdentity(d1))
	assert.NotEqual(t, DeskIdentity(d1), DeskIdentity(d2))
}

func TestLayout(t *testing.T) {
	l := Layout{Root: "/data"}
	var id domain.TenantIdentity
	deskID := uuid.MustParse("2f3d8c1e-7b5a-4c9d-8e6f-1a2b3c4d5e6f")

	assert.Equal(t, filepath.Join("/data", "tenants", Namespace(id)), l.TenantDir(id))
	assert.Equal(t, filepath.Join("/data", "desks", deskID.String()), l.DeskDir(deskID))
	assert.Equal(t, filepath.Join("/data", "desks.sqlite3"), l.DesksCatalog())
	assert.Equal(t, filepath.Join("/x", "localnet"), LedgerDir("/x", domain.NetworkLocalnet))
}
