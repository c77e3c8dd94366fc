// Package notify plays the short cue that tells the user the assistant is
// listening.
package notify

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

var (
	speakerOnce sync.Once
	speakerRate beep.SampleRate
	speakerErr  error
)

// Cue plays the mp3 at path and blocks until it finishes. An empty path is a
// no-op.
func Cue(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open cue: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode cue: %w", err)
	}
	defer streamer.Close()

	speakerOnce.Do(func() {
		speakerRate = format.SampleRate
		speakerErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if speakerErr != nil {
		return fmt.Errorf("init speaker: %w", speakerErr)
	}

	var s beep.Streamer = streamer
	if format.SampleRate != speakerRate {
		s = beep.Resample(4, format.SampleRate, speakerRate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}
