package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"ragtutor/internal/bootstrap"
	"ragtutor/internal/config"
	"ragtutor/internal/conversation"
	"ragtutor/internal/logging"
	"ragtutor/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, docsDir string
	var plain bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/ragtutor/config.yaml if not provided)")
	flag.StringVar(&docsDir, "docs", "", "Directory with PDF, Word and text documents (overrides documents.dir)")
	flag.BoolVar(&plain, "plain", false, "Use a plain line-based prompt instead of the full-screen chat")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if docsDir != "" {
		cfg.Documents.Dir = docsDir
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.NewService(cfg, logger)
	if err != nil {
		logger.Fatalf("setup failed: %v", err)
	}
	fmt.Println("Loading documents...")
	if err := svc.Ingest(ctx, cfg.Documents.Dir); err != nil {
		logger.Fatalf("ingest failed: %v", err)
	}
	header := svc.Overview().Line()
	history := conversation.New(cfg.History.MaxTurns)

	if plain {
		if err := tui.RunPlain(ctx, os.Stdin, os.Stdout, svc, history, header); err != nil && ctx.Err() == nil {
			logger.Fatal(err)
		}
		return
	}

	if cfg.Log.File == "" {
		logger.SetOutput(io.Discard)
	}
	m := tui.New(ctx, svc, history, header)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, "tutor:", err)
		logger.Fatal(err)
	}
}
