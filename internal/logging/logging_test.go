package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextAttrsFoldIntoRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, false)

	ctx := ContextAttrs(context.Background(), slog.String("run_id", "r1"))
	ctx = ContextAttrs(ctx, slog.String("url", "https://a.example/v"))
	logger.InfoContext(ctx, "download complete")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "download complete", rec["msg"])
	require.Equal(t, "r1", rec["run_id"])
	require.Equal(t, "https://a.example/v", rec["url"])
}

func TestPlainContextCarriesNoAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, false)

	logger.InfoContext(context.Background(), "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.NotContains(t, rec, "run_id")
}

func TestVerboseEnablesDebug(t *testing.T) {
	var buf bytes.Buffer

	NewWriter(&buf, false).Debug("hidden")
	require.Zero(t, buf.Len())

	NewWriter(&buf, true).Debug("visible")
	require.NotZero(t, buf.Len())
}
