package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"marketpulse-dash/internal/cache"
	"marketpulse-dash/internal/config"
	"marketpulse-dash/internal/dashboard"
	"marketpulse-dash/internal/logging"
	"marketpulse-dash/internal/tui"
	"marketpulse-dash/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	newLoggerFunc    = logging.New
	initTracerFunc   = tracing.InitTracer
	connectRedisFunc = cache.Connect
	runProgramFunc   = func(m tea.Model) error {
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	}
)

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	logPath := cfg.LogFile
	if logPath == "" {
		logPath = filepath.Join(cfg.CredentialDir, "dashboard.log")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		log.Fatalf("failed to create log dir: %v", err)
	}
	logger, err := newLoggerFunc(cfg.LogLevel, logPath)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, "marketpulse-dashboard", tracing.Enabled(false))
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("error shutting down tracer provider", zap.Error(err))
		}
	}()

	var rdb cache.RedisClient
	if cfg.CredentialStore == config.CredentialStoreRedis {
		client, err := connectRedisFunc(ctx, cfg.RedisURL, logger)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer client.Close()
		rdb = client
	}
	stores := dashboard.NewStores(cfg, rdb)

	feed := tui.NewFeed(dashboard.LayoutFor(cfg), tui.DefaultFeedSize, logger)
	defer feed.Close()

	dash, _ := dashboard.Build(cfg, stores.ForKey(""), feed, tracer, logger)
	defer dash.Close()

	if _, err := dash.Restore(ctx); err != nil {
		logger.Warn("restore session failed", zap.Error(err))
	}

	model := tui.NewModel(ctx, dash, feed, "")
	if err := runProgramFunc(model); err != nil {
		logger.Error("dashboard exited with error", zap.Error(err))
	}
	logger.Info("dashboard exited")
}
