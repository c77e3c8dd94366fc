package web

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/status"
)

func TestFollowReceivesEvents(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.deps.Status.Set(status.Listening))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan status.Event, 8)
	done := make(chan error, 1)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	go func() {
		done <- Follow(ctx, url, 50*time.Millisecond, func(ev status.Event) { got <- ev })
	}()

	select {
	case ev := <-got:
		assert.Equal(t, status.Listening, ev.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}
