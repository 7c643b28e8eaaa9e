package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"marketpulse-dash/internal/domain"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FileSource reads a PollConfig overlay from a YAML file:
//
//	symbol: TSLA
//	rsi_low: 25
//	rsi_high: 75
//	interval_ms: 1000
//
// Keys missing from the file keep the base value.
type FileSource struct {
	path   string
	base   domain.PollConfig
	logger *zap.Logger

	mu      sync.Mutex
	modTime time.Time
	size    int64
	current domain.PollConfig
}

func NewFileSource(path string, base domain.PollConfig, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{path: path, base: base, logger: logger, current: base}
}

// Load re-reads the file when its modification time or size changed and
// reports whether the config changed. A file that fails to parse leaves
// the previous config in place.
func (f *FileSource) Load() (domain.PollConfig, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.path)
	if err != nil {
		return f.current, false, fmt.Errorf("stat poll config: %w", err)
	}
	if info.ModTime().Equal(f.modTime) && info.Size() == f.size {
		return f.current, false, nil
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return f.current, false, fmt.Errorf("read poll config: %w", err)
	}
	next := f.base
	if err := yaml.Unmarshal(data, &next); err != nil {
		f.modTime, f.size = info.ModTime(), info.Size()
		return f.current, false, fmt.Errorf("parse poll config %s: %w", f.path, err)
	}

	f.modTime, f.size = info.ModTime(), info.Size()
	changed := next != f.current
	f.current = next
	return next, changed, nil
}

// Watch checks the file every interval and calls apply with each changed
// config until ctx is done.
func (f *FileSource) Watch(ctx context.Context, every time.Duration, apply func(domain.PollConfig)) {
	if every <= 0 {
		every = time.Second
	}

	check := func() {
		cfg, changed, err := f.Load()
		if err != nil {
			f.logger.Warn("poll config file unreadable", zap.String("path", f.path), zap.Error(err))
			return
		}
		if changed {
			f.logger.Info("poll config file changed", zap.String("path", f.path), zap.String("symbol", cfg.Symbol))
			apply(cfg)
		}
	}

	check()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
