package digest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenLedger(filepath.Join(t.TempDir(), "processed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedgerMarkAndLookup(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	done, err := l.IsProcessed(ctx, "vid1")
	require.NoError(t, err)
	assert.False(t, done, "fresh ledger should know nothing")

	require.NoError(t, l.MarkProcessed(ctx, "vid1", "First video"))

	done, err = l.IsProcessed(ctx, "vid1")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = l.IsProcessed(ctx, "vid2")
	require.NoError(t, err)
	assert.False(t, done, "unrelated video must stay unknown")
}

func TestLedgerRemarkIsNoop(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.MarkProcessed(ctx, "vid1", "title"))
	require.NoError(t, l.MarkProcessed(ctx, "vid1", "title again"))

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLedgerPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.db")
	ctx := context.Background()

	l1, err := OpenLedger(path)
	require.NoError(t, err)
	require.NoError(t, l1.MarkProcessed(ctx, "vid1", "t"))
	require.NoError(t, l1.Close())

	l2, err := OpenLedger(path)
	require.NoError(t, err)
	defer l2.Close()

	done, err := l2.IsProcessed(ctx, "vid1")
	require.NoError(t, err)
	assert.True(t, done, "ledger must survive process restarts")
}
