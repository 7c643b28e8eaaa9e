package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"marketpulse-dash/internal/cache"
	"marketpulse-dash/internal/config"
	"marketpulse-dash/internal/dashboard"
	applog "marketpulse-dash/internal/logging"
	"marketpulse-dash/internal/tui"
	"marketpulse-dash/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	gossh "golang.org/x/crypto/ssh"
)

// ctxKey is a typed context key to avoid collisions.
type ctxKey string

const sshFingerprintKey ctxKey = "ssh_fingerprint"

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	newLoggerFunc     = applog.New
	initTracerFunc    = tracing.InitTracer
	connectRedisFunc  = cache.Connect
	newWishServerFunc = wish.NewServer
	setupSignalNotify = ossignal.Notify
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }
)

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

	tp, tracer, err := initTracerFunc(ctx, "marketpulse-ssh", tracing.Enabled(true))
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
	allowed := newAllowList(cfg.SSHAllowedFingerprints)
	if len(allowed) == 0 {
		logger.Warn("SSH_ALLOWED_FINGERPRINTS not set, accepting every public key")
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.SSHPort)
	srv, err := newWishServerFunc(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(cfg.SSHHostKeyPath),
		wish.WithPublicKeyAuth(func(ctx ssh.Context, key ssh.PublicKey) bool {
			fingerprint := gossh.FingerprintSHA256(key)
			if !allowed.permits(fingerprint) {
				logger.Info("SSH auth denied", zap.String("user", ctx.User()), zap.String("fingerprint", fingerprint))
				return false
			}
			ctx.SetValue(sshFingerprintKey, fingerprint)
			logger.Info("SSH auth accepted", zap.String("user", ctx.User()), zap.String("fingerprint", fingerprint))
			return true
		}),
		wish.WithMiddleware(
			bubbletea.Middleware(func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
				model := newSessionModel(s, cfg, stores, tracer, logger)
				return model, []tea.ProgramOption{tea.WithAltScreen()}
			}),
			logging.Middleware(),
		),
	)
	if err != nil {
		log.Fatalf("failed to create SSH server: %v", err)
	}

	if srv != nil {
		go func() {
			logger.Info("SSH server listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && err != ssh.ErrServerClosed {
				logger.Error("SSH server stopped", zap.Error(err))
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	logger.Info("shutting down SSH server")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("SSH server shutdown error", zap.Error(err))
		}
	}

	logger.Info("SSH server exited")
}

// newSessionModel builds an independent dashboard session for one SSH
// connection. The session is closed when the connection ends.
func newSessionModel(s ssh.Session, cfg *config.Config, stores *dashboard.Stores, tracer trace.Tracer, logger *zap.Logger) *tui.Model {
	fingerprint, _ := s.Context().Value(sshFingerprintKey).(string)
	sessLogger := logger.With(zap.String("ssh_user", s.User()), zap.String("fingerprint", fingerprint))

	feed := tui.NewFeed(dashboard.LayoutFor(cfg), tui.DefaultFeedSize, sessLogger)
	dash, _ := dashboard.Build(cfg, stores.ForKey(fingerprint), feed, tracer, sessLogger)
	if _, err := dash.Restore(s.Context()); err != nil {
		sessLogger.Warn("restore session failed", zap.Error(err))
	}

	go func() {
		<-s.Context().Done()
		dash.Close()
		feed.Close()
		sessLogger.Info("SSH session closed")
	}()

	model := tui.NewModel(s.Context(), dash, feed, s.User())
	if pty, _, ok := s.Pty(); ok {
		model.SetSize(pty.Window.Width, pty.Window.Height)
	}
	return model
}

// allowList holds permitted key fingerprints. An empty list permits every
// key.
type allowList map[string]struct{}

func newAllowList(fingerprints []string) allowList {
	out := make(allowList, len(fingerprints))
	for _, fp := range fingerprints {
		out[fp] = struct{}{}
	}
	return out
}

func (a allowList) permits(fingerprint string) bool {
	if len(a) == 0 {
		return true
	}
	_, ok := a[fingerprint]
	return ok
}
