// Package tts renders assistant replies to an audio file.
package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/openai/openai-go/v3"

	"jarvis/internal/fsutil"
)

type Options struct {
	Model  string // tts-1, tts-1-hd, gpt-4o-mini-tts
	Voice  string
	Format string // mp3, opus, wav, ...
}

type Synthesizer struct {
	client openai.Client
	opt    Options
}

func New(client openai.Client, opt Options) *Synthesizer {
	if opt.Model == "" {
		opt.Model = string(openai.SpeechModelTTS1)
	}
	if opt.Voice == "" {
		opt.Voice = "onyx"
	}
	if opt.Format == "" {
		opt.Format = string(openai.AudioSpeechNewParamsResponseFormatMP3)
	}
	return &Synthesizer{client: client, opt: opt}
}

// Synthesize writes the spoken form of text to path, replacing any previous
// reply atomically so the dashboard never serves a half-written file.
func (s *Synthesizer) Synthesize(ctx context.Context, text, path string) error {
	if text == "" {
		return errors.New("empty text")
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(s.opt.Model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.opt.Voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(s.opt.Format),
	})
	if err != nil {
		return fmt.Errorf("speech: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("speech: unexpected status %s", resp.Status)
	}
	if err := fsutil.WriteFrom(path, resp.Body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
