package local

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/V4T54L/tradedesk/internal/domain"
	"github.com/V4T54L/tradedesk/internal/pkg/journal"
)

// Connector opens a local Client per ledger directory.
type Connector struct {
	SegmentSize int64
	MaxDiskSize int64
	// Latency simulates proof generation on state-changing calls.
	Latency time.Duration
	Logger  *slog.Logger
}

func (c Connector) Connect(ctx context.Context, dir string, network domain.Network) (domain.LedgerClient, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	jr, err := journal.Open(filepath.Join(dir, "journal"), c.SegmentSize, c.MaxDiskSize, logger)
	if err != nil {
		return nil, err
	}
	client, err := Open(ctx, network, jr, c.Latency, logger)
	if err != nil {
		jr.Close()
		return nil, err
	}
	return client, nil
}
