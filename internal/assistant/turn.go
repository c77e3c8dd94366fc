package assistant

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"jarvis/internal/conversation"
	"jarvis/internal/journal"
	"jarvis/internal/nlu"
	"jarvis/internal/status"
)

// Result summarises one completed turn.
type Result struct {
	Utterance string
	Reply     string
	Intent    nlu.Intent
	Action    nlu.Action
}

// Turn runs one pass of the loop. The body ignores cancellation of ctx so a
// half-finished turn never leaves the task list or the log inconsistent;
// only the final playback wait stops early when ctx is done.
func (a *Assistant) Turn(ctx context.Context) (res Result, err error) {
	bodyCtx, span := a.deps.Tracer.Start(context.WithoutCancel(ctx), "assistant.turn")
	rec := journal.Turn{At: a.cfg.Now()}
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			rec.Err = err.Error()
		}
		span.End()
		a.record(bodyCtx, rec)
	}()

	if a.deps.Cue != nil {
		if err := a.deps.Cue(); err != nil {
			log.Warn("Listening cue failed", "err", err)
		}
	}

	a.setStatus(status.Listening)
	if err := a.deps.Capture.Capture(bodyCtx, a.cfg.RecordingPath); err != nil {
		return res, fmt.Errorf("capture: %w", err)
	}
	a.setStatus(status.DoneListening)

	var words []string
	rec.Transcribe, err = a.stage(bodyCtx, "transcribe", func(ctx context.Context) (err error) {
		words, err = a.deps.Transcribe.Transcribe(ctx, a.cfg.RecordingPath)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("transcribe: %w", err)
	}
	a.report("Finished transcribing", rec.Transcribe)

	res.Utterance = strings.Join(words, " ")
	rec.Utterance = res.Utterance
	if strings.TrimSpace(res.Utterance) == "" {
		log.Info("Heard nothing")
		a.note("Heard nothing.")
		a.setStatus(status.Idle)
		return res, nil
	}
	log.Info("Heard", "utterance", res.Utterance)

	res.Intent = nlu.Classify(res.Utterance)
	rec.Intent = res.Intent.String()
	span.SetAttributes(attribute.String("intent", rec.Intent))

	rec.Respond, err = a.stage(bodyCtx, "respond", func(ctx context.Context) (err error) {
		res.Reply, err = a.respond(ctx, res.Intent, res.Utterance)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("respond: %w", err)
	}
	rec.Reply = res.Reply
	a.report("Finished generating response", rec.Respond)

	res.Action, err = nlu.Dispatch(res.Intent, res.Reply, a.deps.Tasks)
	if err != nil {
		return res, fmt.Errorf("update tasks: %w", err)
	}
	rec.TaskName, rec.TaskChange = res.Action.Name, res.Action.Applied
	if res.Action.Applied {
		log.Info("Task list updated", "intent", res.Intent, "task", res.Action.Name)
	}

	rec.Synthesize, err = a.stage(bodyCtx, "synthesize", func(ctx context.Context) error {
		return a.deps.Synthesize.Synthesize(ctx, res.Reply, a.cfg.ResponsePath)
	})
	if err != nil {
		return res, fmt.Errorf("synthesize: %w", err)
	}
	a.report("Finished generating audio", rec.Synthesize)

	a.setStatus(status.Speaking)
	if err := a.deps.Conversation.Append(
		conversation.Entry{Speaker: conversation.User, Text: res.Utterance},
		conversation.Entry{Speaker: conversation.Assistant, Text: res.Reply},
	); err != nil {
		return res, fmt.Errorf("append conversation: %w", err)
	}

	return res, a.awaitPlayback(ctx)
}

func (a *Assistant) respond(ctx context.Context, intent nlu.Intent, utterance string) (string, error) {
	if intent == nlu.ListCapabilities {
		return CapabilitiesReply, nil
	}
	prompt, err := a.prompt(utterance)
	if err != nil {
		return "", err
	}
	return a.deps.Reply.Reply(ctx, prompt)
}

// awaitPlayback waits for the dashboard to report that the reply has been
// played. The wait is bounded by the reply length plus a grace period; when
// nobody acknowledges in time the loop resets the status and moves on.
func (a *Assistant) awaitPlayback(ctx context.Context) error {
	bound := a.cfg.PlaybackTimeout
	if d, err := a.cfg.AudioDuration(a.cfg.ResponsePath); err == nil && d > 0 {
		bound = d + a.cfg.PlaybackGrace
	}

	_, err := a.deps.Status.WaitWhile(ctx, status.Speaking, bound)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, status.ErrTimeout):
		log.Warn("Playback not acknowledged, resuming", "after", bound)
		a.setStatus(status.Idle)
		return nil
	case ctx.Err() != nil:
		return nil
	default:
		return fmt.Errorf("await playback: %w", err)
	}
}

func (a *Assistant) stage(ctx context.Context, name string, fn func(context.Context) error) (time.Duration, error) {
	ctx, span := a.deps.Tracer.Start(ctx, "assistant."+name, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return time.Since(start), err
}

func (a *Assistant) report(what string, d time.Duration) {
	msg := fmt.Sprintf("%s in %.2f seconds.", what, d.Seconds())
	log.Info(msg)
	a.note(msg)
}

func (a *Assistant) record(ctx context.Context, t journal.Turn) {
	if a.deps.Journal == nil {
		return
	}
	if err := a.deps.Journal.Record(ctx, t); err != nil {
		log.Warn("Failed to journal turn", "err", err)
	}
}
