package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	sink, err := NewSQLiteSink(path)
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{RunID: 1, From: "not_started", To: "starting", Attempt: 1, OccurredAt: base},
		{RunID: 1, From: "starting", To: "ready", Attempt: 2, Detail: "healthy", OccurredAt: base.Add(time.Second)},
	}
	for _, e := range events {
		require.NoError(t, sink.Send(ctx, e))
	}

	got, err := sink.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Newest first.
	assert.Equal(t, "ready", got[0].To)
	assert.Equal(t, "starting", got[1].To)
	assert.Equal(t, "healthy", got[0].Detail)
}

func TestSQLiteSinkRecentLimit(t *testing.T) {
	sink, err := NewSQLiteSink(":memory:")
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, sink.Send(ctx, Event{RunID: i, From: "a", To: "b", OccurredAt: time.Now()}))
	}
	got, err := sink.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 4, got[0].RunID, "newest first")
}

func TestSQLiteSinkDSNForms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")
	sink, err := NewSQLiteSink("sqlite://" + path)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	_, err = NewSQLiteSink("")
	assert.Error(t, err, "empty DSN must be rejected")
}
