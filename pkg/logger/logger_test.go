package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "entry=%s", buf.String())
	return entry
}

func TestErrorKeepsContextFieldsAndStack(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Level: zerolog.DebugLevel, Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	log.Error(ctx, "commit failed", errors.New("deadlock"))

	entry := decodeEntry(t, buf)
	require.Equal(t, "api", entry["service"])
	require.Equal(t, "req-123", entry["request_id"])
	require.Equal(t, "deadlock", entry["error"])
	require.NotEmpty(t, entry["stack"])
}

func TestWorkflowFieldsAccumulate(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf})

	ctx := log.WithRequisitionID(context.Background(), "rf-1")
	ctx = log.WithPurchaseOrderID(ctx, "po-1")
	ctx = log.WithFields(ctx, map[string]any{"actor_role": "custodian", "quantity": 3})
	log.Info(ctx, "transition applied")

	entry := decodeEntry(t, buf)
	require.Equal(t, "rf-1", entry["requisition_id"])
	require.Equal(t, "po-1", entry["purchase_order_id"])
	require.Equal(t, "custodian", entry["actor_role"])
	require.EqualValues(t, 3, entry["quantity"])
}

func TestScopedContextDoesNotLeakIntoParent(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf})

	parent := log.WithUserID(context.Background(), "u-1")
	_ = log.WithActorRole(parent, "manager")
	log.Info(parent, "parent entry")

	entry := decodeEntry(t, buf)
	require.Equal(t, "u-1", entry["user_id"])
	require.NotContains(t, entry, "actor_role")
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "api", Output: buf}).Warn(context.Background(), "quiet")
	require.NotContains(t, decodeEntry(t, buf), "stack")

	buf.Reset()
	New(Options{ServiceName: "api", Output: buf, WarnStack: true}).Warn(context.Background(), "loud")
	require.Contains(t, decodeEntry(t, buf), "stack")
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "api", Level: ParseLevel("info"), Output: buf}).Debug(context.Background(), "hidden")
	require.Zero(t, buf.Len())
}

func TestConsoleFormatIsNotJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "api", Format: "Console", Output: buf}).Info(context.Background(), "hello")
	require.Contains(t, buf.String(), "hello")
	require.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	require.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
	require.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	require.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
}
