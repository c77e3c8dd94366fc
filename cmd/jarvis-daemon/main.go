package main

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	cli "github.com/spf13/pflag"

	"jarvis/internal/assistant"
	"jarvis/internal/audio"
	"jarvis/internal/config"
	"jarvis/internal/conversation"
	"jarvis/internal/ipc"
	"jarvis/internal/journal"
	"jarvis/internal/llm"
	"jarvis/internal/notify"
	"jarvis/internal/proxy"
	"jarvis/internal/scrape"
	"jarvis/internal/status"
	"jarvis/internal/tasks"
	"jarvis/internal/telemetry"
	"jarvis/internal/tts"
	"jarvis/pkg/stt"
)

var version = "dev"

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	cfgFile := cli.StringP("config", "c", "jarvis.toml", "Config file path")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address (overrides config)")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	config.InitLogger(os.Stdout, *logLevel)
	log.Info("Booting up", "version", version)

	if err := config.LoadEnv(*envFile); err != nil {
		log.Warn("Failed to load env file", "path", *envFile, "err", err)
	}
	res := config.Load(*cfgFile)
	if res.ParseError != nil {
		log.Error("Failed to load config", "path", res.Path, "err", res.ParseError)
		os.Exit(1)
	}
	if res.Found {
		log.Debug("Loaded config", "path", res.Path)
	}
	cfg := res.Config
	if *proxyAddr != "" {
		cfg.Net.SocksProxy = *proxyAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("Daemon failed", "err", err)
		os.Exit(1)
	}
	log.Info("Shut down")
}

func run(ctx context.Context, cfg config.Config) error {
	files := cfg.Files()
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.AudioDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("Failed to flush traces", "err", err)
		}
	}()

	httpClient, err := proxy.NewClient(cfg.Net.SocksProxy, 0)
	if err != nil {
		return fmt.Errorf("dial socks proxy %s: %w", cfg.Net.SocksProxy, err)
	}
	log.Debug("Loaded http client", "proxy", cfg.Net.SocksProxy)

	if cfg.Secrets.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY not set")
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.Secrets.OpenAIAPIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)

	replier, err := llm.New(ctx, llm.Options{
		Provider:     cfg.Assistant.Provider,
		Model:        cfg.Assistant.Model,
		GoogleAPIKey: cfg.Secrets.GoogleAPIKey,
		OpenAIAPIKey: cfg.Secrets.OpenAIAPIKey,
		HTTPClient:   httpClient,
		OpenAIClient: &client,
	})
	if err != nil {
		return fmt.Errorf("language model: %w", err)
	}
	log.Debug("Loaded language model", "provider", cfg.Assistant.Provider, "model", cfg.Assistant.Model)

	var transcriber assistant.Transcriber
	switch cfg.Speech.STT {
	case "whisper":
		w, err := stt.NewWhisper(cfg.Speech.WhisperModel, stt.Options{Language: "auto"})
		if err != nil {
			return fmt.Errorf("init whisper: %w", err)
		}
		defer w.Close()
		transcriber = w
	case "", "openai":
		transcriber = stt.NewOpenAI(client, cfg.Speech.STTModel)
	default:
		return fmt.Errorf("unknown stt backend %q", cfg.Speech.STT)
	}
	log.Debug("Loaded transcriber", "backend", cfg.Speech.STT)

	synth := tts.New(client, tts.Options{
		Model:  cfg.Speech.TTSModel,
		Voice:  cfg.Speech.Voice,
		Format: cfg.Speech.Format,
	})

	rec := audio.NewRecorder(audio.Options{})
	if err := rec.Init(); err != nil {
		return fmt.Errorf("init audio: %w", err)
	}
	defer rec.Close()
	log.Debug("Loaded recorder")

	jr, err := journal.Open(journal.Options{Dir: files.Journal})
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jr.Close()

	scraper := scrape.New(httpClient, files.Data, scrape.Options{
		WeatherURL: cfg.Scrape.WeatherURL,
		NewsURL:    cfg.Scrape.NewsURL,
		Headlines:  cfg.Scrape.Headlines,
		Timeout:    cfg.Scrape.Timeout(),
	})
	st := status.Open(cfg.Paths.DataDir, cfg.Assistant.PollInterval())

	a, err := assistant.New(assistant.Config{
		RecordingPath:   files.Recording,
		ResponsePath:    files.Response,
		DataPath:        files.Data,
		HistoryWindow:   cfg.Assistant.HistoryWindow,
		PlaybackTimeout: cfg.Assistant.PlaybackTimeout(),
		PlaybackGrace:   cfg.Assistant.PlaybackGrace(),
		ErrorBackoff:    cfg.Assistant.ErrorBackoff(),
		RefreshOnStart:  cfg.Assistant.ScrapeOnStart == nil || *cfg.Assistant.ScrapeOnStart,
	}, assistant.Deps{
		Capture:      rec,
		Transcribe:   transcriber,
		Reply:        replier,
		Synthesize:   synth,
		Tasks:        tasks.NewStore(files.Tasks),
		Conversation: conversation.NewLog(files.Conversation),
		Status:       st,
		Refresh:      scraper,
		Journal:      jr,
		Cue:          func() error { return notify.Cue(cfg.Audio.CueFile) },
	})
	if err != nil {
		return err
	}

	srv, err := ipc.StartServer(cfg.IPC.Socket, control(a, scraper, st, jr))
	if err != nil {
		return fmt.Errorf("ipc server: %w", err)
	}
	defer srv.Close()

	log.Info("Boot up - successful", "socket", srv.Path())
	return a.Run(ctx)
}

// control serves requests from jarvis-ctl and the dashboard supervisor.
func control(a *assistant.Assistant, scraper *scrape.Scraper, st *status.Channel, jr *journal.Journal) ipc.Handler {
	return func(ctx context.Context, msg ipc.ControlMessage) ipc.Response {
		log.Debug("Control message", "cmd", msg.Cmd)
		switch msg.Cmd {
		case ipc.CmdStop:
			a.Stop()
			return ipc.Response{OK: true, Status: string(st.Get())}
		case ipc.CmdScrape:
			if err := scraper.Refresh(ctx); err != nil {
				log.Warn("Real-time data refresh incomplete", "err", err)
				return ipc.Fail(err)
			}
			return ipc.Response{OK: true}
		case ipc.CmdStatus:
			return ipc.Response{OK: true, Status: string(st.Get())}.WithData(st.Snapshot())
		case ipc.CmdJournal:
			n := 10
			if v, ok := msg.Args["n"]; ok {
				parsed, err := strconv.Atoi(v)
				if err != nil || parsed <= 0 {
					return ipc.Fail(fmt.Errorf("invalid n %q", v))
				}
				n = parsed
			}
			turns, err := jr.Recent(ctx, n)
			if err != nil {
				return ipc.Fail(err)
			}
			return ipc.Response{OK: true}.WithData(turns)
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return ipc.Fail(fmt.Errorf("unknown command %q", msg.Cmd))
		}
	}
}
