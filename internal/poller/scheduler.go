package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"marketpulse-dash/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrAlreadyRunning = errors.New("poller already running")

type Status int

const (
	Stopped Status = iota
	Running
)

func (s Status) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// TickFunc performs one poll with the config read for that tick.
type TickFunc func(ctx context.Context, cfg domain.PollConfig) error

// ConfigSource is read at the start of every tick.
type ConfigSource interface {
	PollConfig() domain.PollConfig
}

// ErrorSink receives tick failures of the current run.
type ErrorSink interface {
	OnTickError(err error)
}

// Scheduler runs TickFunc immediately on start and then once per interval
// until stopped. Ticks run one at a time on the loop goroutine.
type Scheduler struct {
	tracer trace.Tracer
	logger *zap.Logger
	source ConfigSource
	tick   TickFunc
	sink   ErrorSink

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	nudge  chan struct{}
}

func New(tracer trace.Tracer, logger *zap.Logger, source ConfigSource, tick TickFunc, sink ErrorSink) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		tracer: tracer,
		logger: logger,
		source: source,
		tick:   tick,
		sink:   sink,
	}
}

// Toggle stops a running scheduler or starts a stopped one and returns the
// resulting status.
func (s *Scheduler) Toggle(ctx context.Context) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.stopLocked()
		return Stopped
	}
	s.startLocked(ctx)
	return Running
}

// Start begins polling. The run ends when Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyRunning
	}
	s.startLocked(ctx)
	return nil
}

// Stop cancels the current run without waiting for it; use Wait for that.
// Calling Stop on a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Reconfigure asks a running loop to re-read its config now instead of at
// the next tick, so a new interval takes effect immediately.
func (s *Scheduler) Reconfigure() {
	s.mu.Lock()
	nudge := s.nudge
	s.mu.Unlock()
	if nudge == nil {
		return
	}
	select {
	case nudge <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return Running
	}
	return Stopped
}

// Wait blocks until the most recent run has exited.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Scheduler) startLocked(ctx context.Context) {
	s.gen++
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.nudge = make(chan struct{}, 1)
	s.logger.Info("polling started", zap.Uint64("generation", s.gen))
	go s.loop(runCtx, s.gen, s.nudge, s.done)
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.nudge = nil
	s.logger.Info("polling stopped", zap.Uint64("generation", s.gen))
}

// current reports whether gen is still the live run.
func (s *Scheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && s.cancel != nil
}

// release marks the run stopped when it ended on its own, e.g. because
// the parent context was canceled.
func (s *Scheduler) release(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.nudge = nil
	}
}

func (s *Scheduler) loop(ctx context.Context, gen uint64, nudge <-chan struct{}, done chan struct{}) {
	defer close(done)
	defer s.release(gen)

	interval := s.source.PollConfig().Interval()
	s.runTick(ctx, gen)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-nudge:
		case <-ticker.C:
			s.runTick(ctx, gen)
		}

		if next := s.source.PollConfig().Interval(); next != interval {
			s.logger.Info("poll interval changed",
				zap.Duration("from", interval),
				zap.Duration("to", next),
			)
			interval = next
			ticker.Reset(interval)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context, gen uint64) {
	if ctx.Err() != nil {
		return
	}
	cfg := s.source.PollConfig()

	ctx, span := s.tracer.Start(ctx, "poller.tick")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", cfg.Symbol),
		attribute.Int64("generation", int64(gen)),
	)

	start := time.Now()
	err := s.safeTick(ctx, cfg)
	if elapsed := time.Since(start); elapsed > cfg.Interval() {
		s.logger.Debug("tick overran interval, missed ticks skipped",
			zap.Duration("elapsed", elapsed),
			zap.Duration("interval", cfg.Interval()),
		)
	}
	if err == nil {
		return
	}

	if ctx.Err() != nil || !s.current(gen) {
		s.logger.Debug("dropping error from canceled tick", zap.Error(err))
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "tick failed")
	s.logger.Warn("poll tick failed", zap.String("symbol", cfg.Symbol), zap.Error(err))
	if s.sink != nil {
		s.sink.OnTickError(err)
	}
}

func (s *Scheduler) safeTick(ctx context.Context, cfg domain.PollConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	return s.tick(ctx, cfg)
}
