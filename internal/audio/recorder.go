// Package audio captures an utterance from the default input device.
package audio

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"

	"jarvis/pkg/audioconv"
)

const (
	sampleRate = audioconv.SampleRate
	frameSize  = 320 // 20ms
)

type Options struct {
	SilenceRMS  float64       // frames above this count as speech
	TrailingGap time.Duration // silence that ends an utterance
	MaxLength   time.Duration
	LeadTimeout time.Duration // give up when nothing is said for this long
}

func (o Options) withDefaults() Options {
	if o.SilenceRMS <= 0 {
		o.SilenceRMS = 0.015
	}
	if o.TrailingGap <= 0 {
		o.TrailingGap = 800 * time.Millisecond
	}
	if o.MaxLength <= 0 {
		o.MaxLength = 15 * time.Second
	}
	if o.LeadTimeout <= 0 {
		o.LeadTimeout = 8 * time.Second
	}
	return o
}

type Recorder struct {
	opt Options
}

func NewRecorder(opt Options) *Recorder { return &Recorder{opt: opt.withDefaults()} }

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Capture records one utterance and stores it as WAV at path. A capture with
// no speech produces an empty WAV.
func (r *Recorder) Capture(ctx context.Context, path string) error {
	pcm, err := r.RecordAuto(ctx)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}
	if err := audioconv.WriteWAV(path, pcm, sampleRate); err != nil {
		return fmt.Errorf("save recording: %w", err)
	}
	return nil
}

// RecordAuto reads frames until the speaker falls silent.
func (r *Recorder) RecordAuto(ctx context.Context) ([]float32, error) {
	buf := make([]float32, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	d := newDetector(r.opt)
	for {
		if err := ctx.Err(); err != nil {
			return d.samples(), err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}
		if d.feed(buf) {
			return d.samples(), nil
		}
	}
}

// detector is the energy based endpointing used by RecordAuto.
type detector struct {
	thresh        float64
	trailFrames   int
	maxFrames     int
	leadFrames    int
	frames        int
	speaking      bool
	silenceFrames int
	out           []float32
}

func newDetector(opt Options) *detector {
	opt = opt.withDefaults()
	perFrame := time.Second * frameSize / sampleRate
	return &detector{
		thresh:      opt.SilenceRMS,
		trailFrames: int(opt.TrailingGap / perFrame),
		maxFrames:   int(opt.MaxLength / perFrame),
		leadFrames:  int(opt.LeadTimeout / perFrame),
		out:         make([]float32, 0, sampleRate*3),
	}
}

// feed consumes one frame and reports whether the utterance is over.
func (d *detector) feed(frame []float32) bool {
	d.frames++
	if frameRMS(frame) > d.thresh {
		d.speaking = true
		d.silenceFrames = 0
		d.out = append(d.out, frame...)
	} else if d.speaking {
		d.silenceFrames++
		d.out = append(d.out, frame...)
		if d.silenceFrames >= d.trailFrames {
			return true
		}
	} else if d.frames >= d.leadFrames {
		return true
	}
	return d.frames >= d.maxFrames
}

func (d *detector) samples() []float32 {
	if !d.speaking {
		return nil
	}
	return d.out
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
