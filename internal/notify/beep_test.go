package notify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCueEmptyPathIsNoop(t *testing.T) {
	assert.NoError(t, Cue(""))
}

func TestCueMissingFile(t *testing.T) {
	assert.Error(t, Cue(filepath.Join(t.TempDir(), "beep.mp3")))
}

func TestCueNotMP3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beep.mp3")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0o644))
	assert.Error(t, Cue(path))
}
