package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, u := range []string{"first", "second", "third"} {
		require.NoError(t, j.Record(ctx, Turn{
			At:         base.Add(time.Duration(i) * time.Minute),
			Utterance:  u,
			Reply:      "ok " + u,
			Transcribe: 1500 * time.Millisecond,
		}))
	}

	got, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Utterance)
	assert.Equal(t, "second", got[1].Utterance)
	assert.Equal(t, 1500*time.Millisecond, got[0].Transcribe)
	assert.True(t, got[0].At.Equal(base.Add(2*time.Minute)))

	all, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecordFillsTime(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	require.NoError(t, j.Record(ctx, Turn{Utterance: "hello", Err: "transcribe: boom"}))
	got, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].At.IsZero())
	assert.Equal(t, "transcribe: boom", got[0].Err)
}

func TestClosed(t *testing.T) {
	j, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	assert.ErrorIs(t, j.Record(context.Background(), Turn{}), ErrClosed)
	_, err = j.Recent(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
}
