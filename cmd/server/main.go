package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketpulse-dash/internal/bot"
	"marketpulse-dash/internal/cache"
	"marketpulse-dash/internal/config"
	"marketpulse-dash/internal/dashboard"
	"marketpulse-dash/internal/domain"
	"marketpulse-dash/internal/handler"
	"marketpulse-dash/internal/logging"
	"marketpulse-dash/internal/view"
	"marketpulse-dash/pkg/tracing"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const configWatchInterval = time.Second

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	newLoggerFunc          = logging.New
	initTracerFunc         = tracing.InitTracer
	connectRedisFunc       = cache.Connect
	startTelegramBotFunc   = bot.StartTelegramBot
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           MarketPulse status API
// @version         1.0
// @description     Latest RSI view, candle history and poll control of a headless dashboard session.

// @BasePath  /
func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	logger, err := newLoggerFunc(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, "marketpulse-server", tracing.Enabled(true))
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

	// View store for the status API, telegram alerts when configured
	views := view.NewStore(dashboard.LayoutFor(cfg))
	sink := view.NewMulti(views)
	notifier, err := startTelegramBotFunc(ctx, cfg.TelegramBotToken, cfg.TelegramChatID, views, logger)
	if err != nil {
		logger.Error("telegram alerts disabled", zap.Error(err))
	} else if notifier != nil {
		sink.Add(notifier)
	}

	dash, sess := dashboard.Build(cfg, stores.ForKey(""), sink, tracer, logger)

	restored, err := dash.Restore(ctx)
	if err != nil {
		logger.Warn("restore session failed", zap.Error(err))
	}
	if !restored {
		if cfg.MarketUsername == "" {
			logger.Warn("no stored credential and MARKET_USERNAME not set, polling stays stopped")
		} else if err := dash.Login(ctx, cfg.MarketUsername, cfg.MarketPassword); err != nil {
			logger.Error("login failed", zap.Error(err))
		}
	}
	logger.Info("dashboard session ready",
		zap.String("auth", sess.State().String()),
		zap.String("polling", dash.PollStatus().String()),
		zap.String("symbol", dash.Config().Symbol))

	h := handler.New(tracer, dash, views)
	r := handler.NewRouter(h, "marketpulse-server", cfg.StatusAPIKey)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.StatusHTTPPort),
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("status API listening", zap.String("addr", srv.Addr))
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status API: %w", err)
		}
		return nil
	})
	if cfg.PollConfigFile != "" {
		src := config.NewFileSource(cfg.PollConfigFile, dash.Config(), logger)
		g.Go(func() error {
			src.Watch(gctx, configWatchInterval, func(pc domain.PollConfig) {
				dash.UpdateConfig(pc)
			})
			return nil
		})
	}

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	signaled := make(chan struct{})
	go func() {
		waitForSignalFunc(quit)
		close(signaled)
	}()

	select {
	case <-signaled:
	case <-gctx.Done():
	}
	logger.Info("shutting down server")

	cancel()
	dash.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
	}

	logger.Info("server exiting")
}
