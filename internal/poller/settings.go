package poller

import (
	"sync"

	"marketpulse-dash/internal/domain"
)

// Settings is a ConfigSource that can be edited while a scheduler runs.
type Settings struct {
	mu            sync.RWMutex
	cfg           domain.PollConfig
	defaultSymbol string
}

func NewSettings(cfg domain.PollConfig, defaultSymbol string) *Settings {
	return &Settings{cfg: cfg.Normalize(defaultSymbol), defaultSymbol: defaultSymbol}
}

func (s *Settings) PollConfig() domain.PollConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set replaces the config and returns the previous and stored values.
func (s *Settings) Set(cfg domain.PollConfig) (prev, next domain.PollConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.cfg
	s.cfg = cfg.Normalize(s.defaultSymbol)
	return prev, s.cfg
}

// Update applies fn to a copy of the current config and stores the result.
func (s *Settings) Update(fn func(*domain.PollConfig)) (prev, next domain.PollConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.cfg
	cfg := s.cfg
	fn(&cfg)
	s.cfg = cfg.Normalize(s.defaultSymbol)
	return prev, s.cfg
}
