// Package status is the single-slot turn-taking signal shared by the assistant
// daemon and the dashboard.
//
// The coordination value lives in status.txt and holds one of the Phase
// literals. Human-readable progress ("Finished transcribing in 1.20 seconds.")
// goes to a separate activity note so it never disturbs coordination.
package status

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	log "log/slog"

	"jarvis/internal/fsutil"
)

type Phase string

const (
	Idle          Phase = "Idle"
	Ready         Phase = "Idle..."
	Listening     Phase = "Listening..."
	DoneListening Phase = "Done listening"
	Speaking      Phase = "Speaking"
)

const (
	statusFile   = "status.txt"
	activityFile = "activity.txt"
)

var ErrTimeout = errors.New("status: wait timed out")

// Event is broadcast to subscribers whenever the phase or the note changes.
type Event struct {
	Status Phase     `json:"status"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

type Channel struct {
	dir          string
	pollInterval time.Duration

	// newWatcher is swapped in tests to simulate an exhausted inotify limit.
	newWatcher func() (*fsnotify.Watcher, error)

	mu   sync.Mutex
	last Event
	subs map[chan Event]struct{}
}

// Open returns the channel stored in dir. pollInterval bounds how long a
// waiter can miss a change when file notifications are unavailable.
func Open(dir string, pollInterval time.Duration) *Channel {
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	c := &Channel{
		dir:          dir,
		pollInterval: pollInterval,
		subs:         make(map[chan Event]struct{}),
	}
	c.newWatcher = c.watcher
	return c
}

func (c *Channel) Path() string { return filepath.Join(c.dir, statusFile) }

func (c *Channel) notePath() string { return filepath.Join(c.dir, activityFile) }

// Get returns the current phase. It never blocks on the other process; a
// missing or unreadable file reads as Idle.
func (c *Channel) Get() Phase {
	b, err := os.ReadFile(c.Path())
	if err != nil {
		return Idle
	}
	p := Phase(strings.TrimSpace(string(b)))
	if p == "" {
		return Idle
	}
	return p
}

func (c *Channel) Set(p Phase) error {
	if err := fsutil.WriteFile(c.Path(), []byte(p), 0o644); err != nil {
		return err
	}
	log.Debug("Status", "status", p)
	c.publish()
	return nil
}

// Note replaces the free-text activity line.
func (c *Channel) Note(msg string) error {
	if err := fsutil.WriteFile(c.notePath(), []byte(msg), 0o644); err != nil {
		return err
	}
	c.publish()
	return nil
}

func (c *Channel) LastNote() string {
	b, err := os.ReadFile(c.notePath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (c *Channel) Snapshot() Event {
	return Event{Status: c.Get(), Note: c.LastNote(), At: time.Now()}
}

// Subscribe registers for change events. Slow subscribers miss events rather
// than block writers. The returned func unsubscribes.
func (c *Channel) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Channel) publish() {
	ev := c.Snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.Status == c.last.Status && ev.Note == c.last.Note {
		return
	}
	c.last = ev
	for ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Watch re-publishes changes written by other processes until ctx is done.
// File notifications wake it early; the poll interval catches anything they
// miss, and is all it has when a watcher cannot be created.
func (c *Channel) Watch(ctx context.Context) error {
	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if w, err := c.newWatcher(); err == nil {
		defer w.Close()
		events, errs = w.Events, w.Errors
	} else {
		log.Warn("Status watcher unavailable, polling", "interval", c.pollInterval, "err", err)
	}

	tick := time.NewTicker(c.pollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if c.relevant(ev) {
				c.publish()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warn("Status watcher error", "err", err)
		case <-tick.C:
			c.publish()
		}
	}
}

// WaitWhile blocks until the phase differs from p and returns the new phase.
// It returns ErrTimeout once timeout elapses (timeout <= 0 waits without a
// bound) and ctx.Err() when ctx is done.
func (c *Channel) WaitWhile(ctx context.Context, p Phase, timeout time.Duration) (Phase, error) {
	if cur := c.Get(); cur != p {
		return cur, nil
	}

	var events <-chan fsnotify.Event
	if w, err := c.newWatcher(); err == nil {
		defer w.Close()
		events = w.Events
	} else {
		log.Debug("Status watcher unavailable, polling", "err", err)
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	tick := time.NewTicker(c.pollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return c.Get(), ctx.Err()
		case <-deadline:
			return c.Get(), ErrTimeout
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !c.relevant(ev) {
				continue
			}
		case <-tick.C:
		}
		if cur := c.Get(); cur != p {
			return cur, nil
		}
	}
}

func (c *Channel) watcher() (*fsnotify.Watcher, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(c.dir); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (c *Channel) relevant(ev fsnotify.Event) bool {
	name := filepath.Base(ev.Name)
	if name != statusFile && name != activityFile {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
