package logger

import (
    "io"
    "os"
    "time"

    "github.com/HamedShams/test-pulse/internal/config"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
)

// New builds the process-wide logger. Dev gets a console writer at debug
// level; other environments emit JSON at info.
func New(cfg config.Config) zerolog.Logger {
    zerolog.TimeFieldFormat = time.RFC3339
    level := zerolog.InfoLevel
    var out io.Writer = os.Stdout
    if cfg.AppEnv == "dev" {
        level = zerolog.DebugLevel
        out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
    }
    logger := zerolog.New(out).Level(level).With().Timestamp().Str("app", "test-pulse").Logger()
    log.Logger = logger
    return logger
}
