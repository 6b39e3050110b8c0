package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/poiesic/newsrag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (storage.Ledger, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	ledger, err := NewLedger(context.Background(), Config{Addr: server.Addr(), Key: "test:ledger"})
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return ledger, server
}

func TestLedger_SeenAndRecord(t *testing.T) {
	ledger, server := newTestLedger(t)
	ctx := context.Background()

	seen, err := ledger.Seen(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, ledger.Record(ctx, "https://example.com/a", "https://example.com/b"))
	require.NoError(t, ledger.Record(ctx, "https://example.com/a"))

	seen, err = ledger.Seen(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, seen)

	count, err := ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	members, err := server.Members("test:ledger")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://example.com/a", "https://example.com/b"}, members)
}

func TestLedger_RejectsEmptyIdentity(t *testing.T) {
	ledger, _ := newTestLedger(t)

	err := ledger.Record(context.Background(), "")
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestLedger_ServerDown(t *testing.T) {
	ledger, server := newTestLedger(t)
	server.Close()

	_, err := ledger.Seen(context.Background(), "x")
	assert.Error(t, err)
}

func TestNewLedger_Unreachable(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	_, err := NewLedger(context.Background(), Config{Addr: addr})
	assert.Error(t, err)
}

func TestNewLedger_MissingAddr(t *testing.T) {
	_, err := NewLedger(context.Background(), Config{})
	assert.ErrorIs(t, err, storage.ErrBackendRequired)
}
