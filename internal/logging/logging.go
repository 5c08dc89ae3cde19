package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"geminichat/internal/config"
)

// Setup configures the global zerolog logger from the logging section.
func Setup(cfg config.LoggingConfig) {
	Configure(os.Stderr, cfg)
}

// Configure points the global logger at w. Tests use it to capture output.
func Configure(w io.Writer, cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	out := w
	if !strings.EqualFold(cfg.Format, "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("service", "geminichat").Logger()
}
