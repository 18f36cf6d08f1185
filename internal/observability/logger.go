package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/lmittmann/tint"

	"github.com/couchcryptid/storm-watch-service/internal/config"
)

const serviceName = "storm-watch"

// NewLogger builds the service logger and installs it as the slog default.
// LOG_FORMAT=pretty selects a colourised console handler; json and text use
// the shared handlers.
func NewLogger(cfg *config.Config) *slog.Logger {
	var logger *slog.Logger
	if strings.EqualFold(cfg.LogFormat, "pretty") {
		logger = newPrettyLogger(os.Stdout, cfg.LogLevel)
	} else {
		logger = sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat).With("service", serviceName)
	}
	slog.SetDefault(logger)
	return logger
}

func newPrettyLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	h := tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
	})
	return slog.New(h).With("service", serviceName)
}
