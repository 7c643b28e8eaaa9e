package main

import (
	"context"
	"os"
	"testing"
	"time"

	"marketpulse-dash/internal/config"

	"github.com/charmbracelet/ssh"
	"go.uber.org/zap"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMainBootstrap(t *testing.T) {
	var gotOptions int
	restore := stubSSHDeps(t.TempDir(), &gotOptions)
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
	if gotOptions != 4 {
		t.Fatalf("expected address, host key, auth and middleware options, got %d", gotOptions)
	}
}

func TestAllowList(t *testing.T) {
	open := newAllowList(nil)
	if !open.permits("SHA256:anything") {
		t.Fatal("empty allow list should permit every key")
	}

	list := newAllowList([]string{"SHA256:abc", "SHA256:def"})
	if !list.permits("SHA256:def") {
		t.Fatal("listed fingerprint should be permitted")
	}
	if list.permits("SHA256:zzz") {
		t.Fatal("unlisted fingerprint should be denied")
	}
}

func stubSSHDeps(dir string, gotOptions *int) func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origNewLogger := newLoggerFunc
	origInitTracer := initTracerFunc
	origNewWishServer := newWishServerFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		return &config.Config{
			MarketAPIBase:   "http://127.0.0.1:1",
			CredentialStore: config.CredentialStoreFile,
			CredentialDir:   dir,
			SSHPort:         2222,
			SSHHostKeyPath:  ".ssh/test_key",
			LogLevel:        "info",
		}
	}
	newLoggerFunc = func(string, string) (*zap.Logger, error) { return zap.NewNop(), nil }
	initTracerFunc = func(ctx context.Context, service string, export bool) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	newWishServerFunc = func(ops ...ssh.Option) (*ssh.Server, error) {
		*gotOptions = len(ops)
		return nil, nil
	}
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		newLoggerFunc = origNewLogger
		initTracerFunc = origInitTracer
		newWishServerFunc = origNewWishServer
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
	}
}
