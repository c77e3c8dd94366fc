package config

import (
	"io"
	log "log/slog"

	"github.com/lmittmann/tint"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// InitLogger installs the tint handler as the default slog logger. Unknown
// levels fall back to info.
func InitLogger(w io.Writer, level string) {
	lvl, ok := logLevelMap[level]
	if !ok {
		lvl = log.LevelInfo
	}
	log.SetDefault(log.New(tint.NewHandler(w, &tint.Options{
		Level: lvl,
	})))
}
