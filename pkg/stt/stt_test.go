package stt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/pkg/audioconv"
)

func TestResultWords(t *testing.T) {
	r := Result{Text: "  add a task\n to water  the plants "}
	assert.Equal(t, []string{"add", "a", "task", "to", "water", "the", "plants"}, r.Words())
	assert.Empty(t, Result{}.Words())
}

func TestNewWhisperEmptyPath(t *testing.T) {
	_, err := NewWhisper("", Options{})
	require.Error(t, err)
}

func TestWhisperNilModel(t *testing.T) {
	w := &Whisper{}
	assert.NoError(t, w.Close())
	_, err := w.TranscribePCM(context.Background(), []float32{0})
	assert.Error(t, err)
}

func writeTone(t *testing.T, path string, samples int) {
	t.Helper()
	pcm := make([]float32, samples)
	for i := range pcm {
		pcm[i] = 0.25
	}
	require.NoError(t, audioconv.WriteWAV(path, pcm, audioconv.SampleRate))
}

func TestOpenAITranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/audio/transcriptions")
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"Add a task to  water the plants"}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "recording.wav")
	writeTone(t, path, 1600)

	tr := NewOpenAI(openai.NewClient(option.WithAPIKey("k"), option.WithBaseURL(srv.URL), option.WithMaxRetries(0)), "")
	words, err := tr.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Add", "a", "task", "to", "water", "the", "plants"}, words)
}

func TestOpenAITranscribeSilenceSkipsUpload(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "recording.wav")
	writeTone(t, path, 0)

	tr := NewOpenAI(openai.NewClient(option.WithAPIKey("k"), option.WithBaseURL(srv.URL)), "")
	words, err := tr.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, words)
	assert.Zero(t, calls)
}
