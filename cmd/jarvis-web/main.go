package main

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	"jarvis/internal/config"
	"jarvis/internal/conversation"
	"jarvis/internal/proxy"
	"jarvis/internal/scrape"
	"jarvis/internal/status"
	"jarvis/internal/tasks"
	"jarvis/internal/web"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	cfgFile := cli.StringP("config", "c", "jarvis.toml", "Config file path")
	addr := cli.StringP("addr", "a", "", "Listen address (overrides config)")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	config.InitLogger(os.Stdout, *logLevel)

	if err := config.LoadEnv(*envFile); err != nil {
		log.Warn("Failed to load env file", "path", *envFile, "err", err)
	}
	res := config.Load(*cfgFile)
	if res.ParseError != nil {
		log.Error("Failed to load config", "path", res.Path, "err", res.ParseError)
		os.Exit(1)
	}
	cfg := res.Config
	if *addr != "" {
		cfg.Web.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("Dashboard failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	files := cfg.Files()
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.AudioDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	httpClient, err := proxy.NewClient(cfg.Net.SocksProxy, 0)
	if err != nil {
		return fmt.Errorf("dial socks proxy %s: %w", cfg.Net.SocksProxy, err)
	}

	st := status.Open(cfg.Paths.DataDir, cfg.Assistant.PollInterval())
	go func() {
		if err := st.Watch(ctx); err != nil {
			log.Warn("Status watcher stopped", "err", err)
		}
	}()

	sup := web.NewSupervisor(cfg.Web.DaemonCmd, cfg.IPC.Socket, 5*time.Second)
	srv, err := web.NewServer(web.Deps{
		Tasks:        tasks.NewStore(files.Tasks),
		Conversation: conversation.NewLog(files.Conversation),
		Status:       st,
		Scraper: scrape.New(httpClient, files.Data, scrape.Options{
			WeatherURL: cfg.Scrape.WeatherURL,
			NewsURL:    cfg.Scrape.NewsURL,
			Headlines:  cfg.Scrape.Headlines,
			Timeout:    cfg.Scrape.Timeout(),
		}),
		Daemon:       sup,
		AudioDir:     cfg.Paths.AudioDir,
		ResponsePath: files.Response,
	})
	if err != nil {
		return err
	}

	hs := &http.Server{
		Addr:              cfg.Web.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Dashboard listening", "addr", cfg.Web.Addr)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if sup.Running() {
		if err := sup.Stop(sctx); err != nil {
			log.Warn("Failed to stop daemon", "err", err)
		}
	}
	return hs.Shutdown(sctx)
}
