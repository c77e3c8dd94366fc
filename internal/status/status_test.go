package status

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultsToIdle(t *testing.T) {
	c := Open(t.TempDir(), 0)
	assert.Equal(t, Idle, c.Get())

	require.NoError(t, os.WriteFile(c.Path(), []byte("  \n"), 0o644))
	assert.Equal(t, Idle, c.Get())
}

func TestSetGet(t *testing.T) {
	c := Open(t.TempDir(), 0)
	require.NoError(t, c.Set(Speaking))
	assert.Equal(t, Speaking, c.Get())

	b, err := os.ReadFile(c.Path())
	require.NoError(t, err)
	assert.Equal(t, "Speaking", string(b))
}

func TestNoteIsSeparateFromStatus(t *testing.T) {
	c := Open(t.TempDir(), 0)
	require.NoError(t, c.Set(DoneListening))
	require.NoError(t, c.Note("Finished transcribing in 0.42 seconds."))

	assert.Equal(t, DoneListening, c.Get())
	assert.Equal(t, "Finished transcribing in 0.42 seconds.", c.LastNote())
}

func TestSubscribe(t *testing.T) {
	c := Open(t.TempDir(), 0)
	events, cancel := c.Subscribe()
	defer cancel()

	require.NoError(t, c.Set(Listening))
	require.NoError(t, c.Set(Listening))
	require.NoError(t, c.Set(Speaking))

	got := []Phase{(<-events).Status, (<-events).Status}
	assert.Equal(t, []Phase{Listening, Speaking}, got)

	select {
	case ev := <-events:
		t.Fatalf("unexpected duplicate event %+v", ev)
	default:
	}
}

func TestWaitWhileReturnsOnChange(t *testing.T) {
	dir := t.TempDir()
	c := Open(dir, 20*time.Millisecond)
	require.NoError(t, c.Set(Speaking))

	go func() {
		time.Sleep(50 * time.Millisecond)
		// A second channel on the same directory stands in for the dashboard.
		_ = Open(dir, 0).Set(Idle)
	}()

	got, err := c.WaitWhile(context.Background(), Speaking, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Idle, got)
}

func TestWaitWhileAlreadyChanged(t *testing.T) {
	c := Open(t.TempDir(), 0)
	require.NoError(t, c.Set(Idle))

	got, err := c.WaitWhile(context.Background(), Speaking, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, Idle, got)
}

func TestWaitWhileTimeout(t *testing.T) {
	c := Open(t.TempDir(), 10*time.Millisecond)
	require.NoError(t, c.Set(Speaking))

	got, err := c.WaitWhile(context.Background(), Speaking, 60*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, Speaking, got)
}

func TestWaitWhileContextCancel(t *testing.T) {
	c := Open(t.TempDir(), 10*time.Millisecond)
	require.NoError(t, c.Set(Speaking))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := c.WaitWhile(ctx, Speaking, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWatchPublishesForeignWrites(t *testing.T) {
	dir := t.TempDir()
	c := Open(dir, 0)
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx) }()

	require.Eventually(t, func() bool {
		_ = Open(dir, 0).Set(Speaking)
		select {
		case ev := <-events:
			return ev.Status == Speaking
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWatchPollsWithoutNotifications(t *testing.T) {
	dir := t.TempDir()
	c := Open(dir, 10*time.Millisecond)
	c.newWatcher = func() (*fsnotify.Watcher, error) {
		return nil, errors.New("too many open files")
	}
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx) }()

	// The daemon writes through its own channel on the same directory.
	require.NoError(t, Open(dir, 0).Set(Speaking))

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Status != Speaking {
				continue
			}
		case <-timeout:
			t.Fatal("Speaking was never published")
		}
		break
	}

	cancel()
	require.NoError(t, <-done)
}
