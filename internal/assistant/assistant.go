// Package assistant runs the turn-taking loop: capture an utterance,
// transcribe it, reply (canned or generated), apply the task change the
// reply implies, synthesize the reply and wait for the dashboard to finish
// playing it.
package assistant

import (
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"jarvis/internal/conversation"
	"jarvis/internal/journal"
	"jarvis/internal/nlu"
	"jarvis/internal/status"
	"jarvis/internal/tasks"
	"jarvis/internal/telemetry"
	"jarvis/pkg/audioconv"
)

type Capturer interface {
	Capture(ctx context.Context, path string) error
}

type Transcriber interface {
	Transcribe(ctx context.Context, path string) ([]string, error)
}

type Replier interface {
	Reply(ctx context.Context, prompt string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, path string) error
}

type Refresher interface {
	Refresh(ctx context.Context) error
}

type TaskStore interface {
	nlu.TaskStore
	Load() ([]tasks.Task, error)
}

type History interface {
	Append(entries ...conversation.Entry) error
	Recent(n int) ([]conversation.Entry, error)
}

type StatusChannel interface {
	Set(p status.Phase) error
	Note(msg string) error
	WaitWhile(ctx context.Context, p status.Phase, timeout time.Duration) (status.Phase, error)
}

type Journal interface {
	Record(ctx context.Context, t journal.Turn) error
}

type Config struct {
	RecordingPath string
	ResponsePath  string
	DataPath      string

	// HistoryWindow caps the conversation entries replayed into the prompt.
	HistoryWindow int

	// PlaybackGrace is added to the measured reply length; PlaybackTimeout
	// applies when the length cannot be measured.
	PlaybackTimeout time.Duration
	PlaybackGrace   time.Duration
	ErrorBackoff    time.Duration

	RefreshOnStart bool

	Persona string
	Now     func() time.Time
	// AudioDuration measures the synthesized reply.
	AudioDuration func(path string) (time.Duration, error)
}

func (c Config) withDefaults() Config {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 40
	}
	if c.PlaybackTimeout <= 0 {
		c.PlaybackTimeout = 2 * time.Minute
	}
	if c.PlaybackGrace <= 0 {
		c.PlaybackGrace = 10 * time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 2 * time.Second
	}
	if c.Persona == "" {
		c.Persona = Persona
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.AudioDuration == nil {
		c.AudioDuration = audioconv.Duration
	}
	return c
}

// Deps are the collaborators of the loop. Refresh, Journal, Cue and Tracer
// are optional.
type Deps struct {
	Capture    Capturer
	Transcribe Transcriber
	Reply      Replier
	Synthesize Synthesizer

	Tasks        TaskStore
	Conversation History
	Status       StatusChannel

	Refresh Refresher
	Journal Journal
	Cue     func() error
	Tracer  trace.Tracer
}

type Assistant struct {
	cfg  Config
	deps Deps

	stopOnce sync.Once
	stop     chan struct{}
}

func New(cfg Config, deps Deps) (*Assistant, error) {
	switch {
	case deps.Capture == nil:
		return nil, errors.New("assistant: no capturer")
	case deps.Transcribe == nil:
		return nil, errors.New("assistant: no transcriber")
	case deps.Reply == nil:
		return nil, errors.New("assistant: no replier")
	case deps.Synthesize == nil:
		return nil, errors.New("assistant: no synthesizer")
	case deps.Tasks == nil || deps.Conversation == nil || deps.Status == nil:
		return nil, errors.New("assistant: state stores are required")
	}
	if deps.Tracer == nil {
		deps.Tracer = telemetry.Tracer("jarvis/assistant")
	}
	return &Assistant{
		cfg:  cfg.withDefaults(),
		deps: deps,
		stop: make(chan struct{}),
	}, nil
}

// Stop asks Run to return after the current turn. A pending playback wait is
// abandoned.
func (a *Assistant) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
}

// Run loops turns until ctx is done or Stop is called. A failed turn is
// logged and reported through the status note; the loop carries on after
// the error backoff. Shutdown returns nil.
func (a *Assistant) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-a.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	if a.cfg.RefreshOnStart && a.deps.Refresh != nil {
		if err := a.deps.Refresh.Refresh(ctx); err != nil {
			log.Warn("Real-time data refresh incomplete", "err", err)
		}
	}

	log.Info("Assistant loop started")
	for {
		if ctx.Err() != nil {
			log.Info("Assistant loop stopped")
			return nil
		}

		if _, err := a.Turn(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Error("Turn failed", "err", err)
			a.note("Turn failed: " + err.Error())
			a.setStatus(status.Idle)

			select {
			case <-ctx.Done():
			case <-time.After(a.cfg.ErrorBackoff):
			}
		}
	}
}

func (a *Assistant) setStatus(p status.Phase) {
	if err := a.deps.Status.Set(p); err != nil {
		log.Warn("Failed to write status", "status", p, "err", err)
	}
}

func (a *Assistant) note(msg string) {
	if err := a.deps.Status.Note(msg); err != nil {
		log.Warn("Failed to write activity note", "err", err)
	}
}
