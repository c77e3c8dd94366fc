package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Missing(t *testing.T) {
	res := Load(filepath.Join(t.TempDir(), "jarvis.toml"))
	assert.False(t, res.Found)
	require.NoError(t, res.ParseError)

	def := Default()
	assert.Equal(t, def.Assistant.Provider, res.Config.Assistant.Provider)
	assert.Equal(t, 40, res.Config.Assistant.HistoryWindow)
	assert.True(t, *res.Config.Assistant.ScrapeOnStart)
}

func TestLoad_ValidOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jarvis.toml")
	content := `
[paths]
data_dir = "/var/lib/jarvis"

[assistant]
provider = "openai"
model = "gpt-4o-mini"
playback_timeout_ms = 5000
scrape_on_start = false

[speech]
format = "wav"

[web]
daemon_cmd = ["./bin/jarvis-daemon", "--log", "debug"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	res := Load(path)
	assert.True(t, res.Found)
	require.NoError(t, res.ParseError)

	cfg := res.Config
	assert.Equal(t, "/var/lib/jarvis", cfg.Paths.DataDir)
	assert.Equal(t, "openai", cfg.Assistant.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Assistant.Model)
	assert.Equal(t, 5*time.Second, cfg.Assistant.PlaybackTimeout())
	assert.False(t, *cfg.Assistant.ScrapeOnStart)
	assert.Equal(t, []string{"./bin/jarvis-daemon", "--log", "debug"}, cfg.Web.DaemonCmd)

	// untouched values keep their defaults
	assert.Equal(t, Default().Speech.Voice, cfg.Speech.Voice)
	assert.Equal(t, 100*time.Millisecond, cfg.Assistant.PollInterval())

	files := cfg.Files()
	assert.Equal(t, filepath.Join("/var/lib/jarvis", "todos.json"), files.Tasks)
	assert.Equal(t, filepath.Join("static", "audio", "response.wav"), files.Response)
	assert.Equal(t, filepath.Join("/var/lib/jarvis", "journal"), files.Journal)
}

func TestFiles_JournalDir(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("data", "journal"), cfg.Files().Journal)

	cfg.Journal.Dir = "/srv/journal"
	cfg.Paths.DataDir = "/var/lib/jarvis"
	assert.Equal(t, "/srv/journal", cfg.Files().Journal)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jarvis.toml")
	require.NoError(t, os.WriteFile(path, []byte("[assistant\nprovider="), 0o644))

	res := Load(path)
	assert.True(t, res.Found)
	assert.ErrorIs(t, res.ParseError, ErrInvalid)
	assert.Equal(t, Default().Assistant.Model, res.Config.Assistant.Model)
}

func TestLoad_SecretsFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("OPENAI_API_KEY", "o-key")

	res := Load("")
	assert.Equal(t, "g-key", res.Config.Secrets.GoogleAPIKey)
	assert.Equal(t, "o-key", res.Config.Secrets.OpenAIAPIKey)
}

func TestLoadEnv(t *testing.T) {
	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JARVIS_TEST_ENV=loaded\n"), 0o644))
	t.Setenv("JARVIS_TEST_ENV", "")
	os.Unsetenv("JARVIS_TEST_ENV")

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "loaded", os.Getenv("JARVIS_TEST_ENV"))
}
