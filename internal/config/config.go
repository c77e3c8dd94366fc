// Package config loads jarvis settings: secrets from the environment (.env)
// and tunables from an optional TOML file merged over Default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Paths     PathsConfig     `toml:"paths"`
	Assistant AssistantConfig `toml:"assistant"`
	Speech    SpeechConfig    `toml:"speech"`
	Audio     AudioConfig     `toml:"audio"`
	Scrape    ScrapeConfig    `toml:"scrape"`
	Web       WebConfig       `toml:"web"`
	IPC       IPCConfig       `toml:"ipc"`
	Journal   JournalConfig   `toml:"journal"`
	Net       NetConfig       `toml:"net"`
	Telemetry TelemetryConfig `toml:"telemetry"`

	Secrets Secrets `toml:"-"`
}

type PathsConfig struct {
	DataDir  string `toml:"data_dir"`
	AudioDir string `toml:"audio_dir"`
}

type AssistantConfig struct {
	Provider          string `toml:"provider"`
	// Model is empty for the provider's default.
	Model             string `toml:"model"`
	HistoryWindow     int    `toml:"history_window"`
	PlaybackTimeoutMS int    `toml:"playback_timeout_ms"`
	PlaybackGraceMS   int    `toml:"playback_grace_ms"`
	PollIntervalMS    int    `toml:"poll_interval_ms"`
	ErrorBackoffMS    int    `toml:"error_backoff_ms"`
	ScrapeOnStart     *bool  `toml:"scrape_on_start"`
}

type SpeechConfig struct {
	STT          string `toml:"stt"`
	STTModel     string `toml:"stt_model"`
	WhisperModel string `toml:"whisper_model"`
	TTSModel     string `toml:"tts_model"`
	Voice        string `toml:"voice"`
	Format       string `toml:"format"`
}

type AudioConfig struct {
	CueFile string `toml:"cue_file"`
}

type ScrapeConfig struct {
	WeatherURL string `toml:"weather_url"`
	NewsURL    string `toml:"news_url"`
	Headlines  int    `toml:"headlines"`
	TimeoutMS  int    `toml:"timeout_ms"`
}

type WebConfig struct {
	Addr      string   `toml:"addr"`
	DaemonCmd []string `toml:"daemon_cmd"`
}

type IPCConfig struct {
	Socket string `toml:"socket"`
}

type JournalConfig struct {
	// Dir defaults to "journal" under paths.data_dir.
	Dir string `toml:"dir"`
}

type NetConfig struct {
	SocksProxy string `toml:"socks_proxy"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// Secrets are read from the environment only.
type Secrets struct {
	GoogleAPIKey string
	OpenAIAPIKey string
}

func Default() Config {
	scrape := true
	return Config{
		Paths: PathsConfig{DataDir: "data", AudioDir: filepath.Join("static", "audio")},
		Assistant: AssistantConfig{
			Provider:          "gemini",
			HistoryWindow:     40,
			PlaybackTimeoutMS: 120_000,
			PlaybackGraceMS:   10_000,
			PollIntervalMS:    100,
			ErrorBackoffMS:    2_000,
			ScrapeOnStart:     &scrape,
		},
		Speech: SpeechConfig{
			STT:      "openai",
			STTModel: "whisper-1",
			TTSModel: "tts-1",
			Voice:    "onyx",
			Format:   "mp3",
		},
		Scrape: ScrapeConfig{
			WeatherURL: "https://www.timeanddate.com/weather/republic-of-macedonia/skopje/ext",
			NewsURL:    "https://www.techmeme.com/",
			Headlines:  10,
			TimeoutMS:  15_000,
		},
		Web:       WebConfig{Addr: "127.0.0.1:5000", DaemonCmd: []string{"jarvis-daemon"}},
		IPC:       IPCConfig{Socket: "/tmp/jarvis.sock"},
		Telemetry: TelemetryConfig{ServiceName: "jarvis"},
	}
}

var ErrInvalid = errors.New("invalid config")

type LoadResult struct {
	Config     Config
	Found      bool
	Path       string
	ParseError error
}

// Load reads the TOML file at path over the defaults. A missing file is not
// an error. Secrets are always filled from the environment.
func Load(path string) (res LoadResult) {
	res = LoadResult{Config: Default(), Path: path}
	defer func() { res.Config.Secrets = secretsFromEnv() }()

	if path == "" {
		return res
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res
		}
		res.ParseError = err
		return res
	}

	res.Found = true
	var parsed Config
	if err := toml.Unmarshal(b, &parsed); err != nil {
		res.ParseError = fmt.Errorf("%w: %v", ErrInvalid, err)
		return res
	}
	res.Config = merge(Default(), parsed)
	return res
}

// LoadEnv loads a .env file into the process environment. A missing file is
// ignored, matching how the daemon is run from a checkout.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func secretsFromEnv() Secrets {
	return Secrets{
		GoogleAPIKey: os.Getenv("GOOGLE_API_KEY"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
	}
}

func merge(def Config, cfg Config) Config {
	// Paths
	setString(&def.Paths.DataDir, cfg.Paths.DataDir)
	setString(&def.Paths.AudioDir, cfg.Paths.AudioDir)
	// Assistant
	setString(&def.Assistant.Provider, cfg.Assistant.Provider)
	setString(&def.Assistant.Model, cfg.Assistant.Model)
	setInt(&def.Assistant.HistoryWindow, cfg.Assistant.HistoryWindow)
	setInt(&def.Assistant.PlaybackTimeoutMS, cfg.Assistant.PlaybackTimeoutMS)
	setInt(&def.Assistant.PlaybackGraceMS, cfg.Assistant.PlaybackGraceMS)
	setInt(&def.Assistant.PollIntervalMS, cfg.Assistant.PollIntervalMS)
	setInt(&def.Assistant.ErrorBackoffMS, cfg.Assistant.ErrorBackoffMS)
	if cfg.Assistant.ScrapeOnStart != nil {
		def.Assistant.ScrapeOnStart = cfg.Assistant.ScrapeOnStart
	}
	// Speech
	setString(&def.Speech.STT, cfg.Speech.STT)
	setString(&def.Speech.STTModel, cfg.Speech.STTModel)
	setString(&def.Speech.WhisperModel, cfg.Speech.WhisperModel)
	setString(&def.Speech.TTSModel, cfg.Speech.TTSModel)
	setString(&def.Speech.Voice, cfg.Speech.Voice)
	setString(&def.Speech.Format, cfg.Speech.Format)
	// Audio
	setString(&def.Audio.CueFile, cfg.Audio.CueFile)
	// Scrape
	setString(&def.Scrape.WeatherURL, cfg.Scrape.WeatherURL)
	setString(&def.Scrape.NewsURL, cfg.Scrape.NewsURL)
	setInt(&def.Scrape.Headlines, cfg.Scrape.Headlines)
	setInt(&def.Scrape.TimeoutMS, cfg.Scrape.TimeoutMS)
	// Web
	setString(&def.Web.Addr, cfg.Web.Addr)
	if len(cfg.Web.DaemonCmd) != 0 {
		def.Web.DaemonCmd = cfg.Web.DaemonCmd
	}
	// IPC, journal, network, telemetry
	setString(&def.IPC.Socket, cfg.IPC.Socket)
	setString(&def.Journal.Dir, cfg.Journal.Dir)
	setString(&def.Net.SocksProxy, cfg.Net.SocksProxy)
	setString(&def.Telemetry.OTLPEndpoint, cfg.Telemetry.OTLPEndpoint)
	setString(&def.Telemetry.ServiceName, cfg.Telemetry.ServiceName)
	return def
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (c AssistantConfig) PlaybackTimeout() time.Duration { return ms(c.PlaybackTimeoutMS) }
func (c AssistantConfig) PlaybackGrace() time.Duration   { return ms(c.PlaybackGraceMS) }
func (c AssistantConfig) PollInterval() time.Duration    { return ms(c.PollIntervalMS) }
func (c AssistantConfig) ErrorBackoff() time.Duration    { return ms(c.ErrorBackoffMS) }
func (c ScrapeConfig) Timeout() time.Duration            { return ms(c.TimeoutMS) }

// Files resolves the shared state file locations.
type Files struct {
	Tasks        string
	Conversation string
	Data         string
	Recording    string
	Response     string
	Journal      string
}

func (c Config) Files() Files {
	format := c.Speech.Format
	if format == "" {
		format = "mp3"
	}
	journal := c.Journal.Dir
	if journal == "" {
		journal = filepath.Join(c.Paths.DataDir, "journal")
	}
	return Files{
		Tasks:        filepath.Join(c.Paths.DataDir, "todos.json"),
		Conversation: filepath.Join(c.Paths.DataDir, "conv.txt"),
		Data:         filepath.Join(c.Paths.DataDir, "data.txt"),
		Recording:    filepath.Join(c.Paths.AudioDir, "recording.wav"),
		Response:     filepath.Join(c.Paths.AudioDir, "response."+format),
		Journal:      journal,
	}
}
