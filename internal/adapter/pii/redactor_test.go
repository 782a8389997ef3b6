package pii

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactor_ReplaceAttr(t *testing.T) {
	r := NewRedactor([]string{"token", "Secret"})
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: r.ReplaceAttr}))

	logger.Info("auth", "token", "abc123", "SECRET", "s3cr3t", "account_id", "mlcl1ff")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, RedactedPlaceholder, line["token"])
	assert.Equal(t, RedactedPlaceholder, line["SECRET"])
	assert.Equal(t, "mlcl1ff", line["account_id"])
	assert.NotContains(t, buf.String(), "abc123")
}
