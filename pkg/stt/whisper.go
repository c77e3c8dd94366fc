// Package stt turns a recorded utterance into words, either locally with
// whisper.cpp or through the OpenAI transcription API.
package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"jarvis/pkg/audioconv"
)

type Options struct {
	Language      string // "auto", "en", ...
	Threads       int    // <=0 => NumCPU()
	InitialPrompt string
	BeamSize      int // 0 = greedy
	SplitOnWord   bool
	MaxSamples    int // cap on 16 kHz samples fed to the model
}

type Segment struct {
	Text     string
	StartSec float64
	EndSec   float64
}

type Result struct {
	Text     string
	Segments []Segment
	Language string
}

// Words splits the transcript on whitespace.
func (r Result) Words() []string { return strings.Fields(r.Text) }

type Whisper struct {
	model whisper.Model
	opt   Options
}

func NewWhisper(modelPath string, opt Options) (*Whisper, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &Whisper{model: m, opt: opt}, nil
}

func (w *Whisper) Close() error {
	if w.model == nil {
		return nil
	}
	return w.model.Close()
}

// Transcribe decodes the audio file at path and returns the recognised words.
func (w *Whisper) Transcribe(ctx context.Context, path string) ([]string, error) {
	pcm, err := audioconv.ConvertFileToPCM16k(ctx, path, audioconv.Options{MaxSamples: w.opt.MaxSamples})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(pcm) == 0 {
		return nil, nil
	}
	res, err := w.TranscribePCM(ctx, pcm)
	if err != nil {
		return nil, err
	}
	return res.Words(), nil
}

// TranscribePCM runs the model over mono 16 kHz samples in [-1, 1].
func (w *Whisper) TranscribePCM(ctx context.Context, pcm16k []float32) (Result, error) {
	if w.model == nil {
		return Result{}, errors.New("nil model")
	}
	if len(pcm16k) == 0 {
		return Result{}, errors.New("no audio samples provided")
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("new context: %w", err)
	}

	lang := w.opt.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return Result{}, fmt.Errorf("set language: %w", err)
	}

	threads := w.opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))
	if w.opt.SplitOnWord {
		wctx.SetSplitOnWord(true)
	}
	if w.opt.BeamSize > 0 {
		wctx.SetBeamSize(w.opt.BeamSize)
	}
	if w.opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(w.opt.InitialPrompt)
	}

	if err := wctx.Process(pcm16k, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("process: %w", err)
	}

	var (
		segs  []Segment
		parts []string
	)
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("next segment: %w", err)
		}
		segs = append(segs, Segment{
			Text:     s.Text,
			StartSec: s.Start.Seconds(),
			EndSec:   s.End.Seconds(),
		})
		parts = append(parts, strings.TrimSpace(s.Text))
	}

	detected := wctx.DetectedLanguage()
	if detected == "" {
		detected = wctx.Language()
	}
	return Result{
		Text:     strings.Join(parts, " "),
		Segments: segs,
		Language: detected,
	}, nil
}
