package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func frame(v float32) []float32 {
	f := make([]float32, frameSize)
	for i := range f {
		f[i] = v
	}
	return f
}

func TestFrameRMS(t *testing.T) {
	assert.Equal(t, 0.0, frameRMS(nil))
	assert.InDelta(t, 0.5, frameRMS(frame(0.5)), 1e-6)
}

func TestDetectorEndsAfterTrailingSilence(t *testing.T) {
	d := newDetector(Options{TrailingGap: 100 * time.Millisecond})

	for i := 0; i < 10; i++ {
		assert.False(t, d.feed(frame(0.2)))
	}
	// 100ms of silence is five 20ms frames.
	for i := 0; i < 4; i++ {
		assert.False(t, d.feed(frame(0)))
	}
	assert.True(t, d.feed(frame(0)))
	assert.Len(t, d.samples(), 15*frameSize)
}

func TestDetectorGivesUpWithoutSpeech(t *testing.T) {
	d := newDetector(Options{LeadTimeout: 200 * time.Millisecond})

	done := false
	n := 0
	for !done {
		done = d.feed(frame(0))
		n++
	}
	assert.Equal(t, 10, n)
	assert.Nil(t, d.samples())
}

func TestDetectorMaxLength(t *testing.T) {
	d := newDetector(Options{MaxLength: time.Second})

	n := 0
	for !d.feed(frame(0.3)) {
		n++
	}
	assert.Equal(t, 49, n)
	assert.Len(t, d.samples(), 50*frameSize)
}
