package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"ragtutor/internal/config"
)

// New builds a logger from config. Unknown levels fall back to info.
// Output goes to cfg.File when set, stderr otherwise.
func New(cfg config.LogConfig) (*log.Logger, error) {
	if cfg.File == "" {
		return NewWithOutput(cfg, os.Stderr), nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return NewWithOutput(cfg, f), nil
}

func NewWithOutput(cfg config.LogConfig, out io.Writer) *log.Logger {
	logger := log.New()
	logger.SetOutput(out)

	level, err := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger
}
