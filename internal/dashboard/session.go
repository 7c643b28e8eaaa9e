package dashboard

import (
	"context"
	"errors"
	"sync"

	"marketpulse-dash/internal/client"
	"marketpulse-dash/internal/domain"
	"marketpulse-dash/internal/history"
	"marketpulse-dash/internal/poller"
	"marketpulse-dash/internal/view"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// AuthSession is the credential holder gating the poller.
type AuthSession interface {
	Restore(ctx context.Context) (bool, error)
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	Authenticated() bool
	OnLogout(fn func())
}

// Fetcher performs the market poll.
type Fetcher interface {
	FetchIntraday(ctx context.Context, cfg domain.PollConfig) (*domain.Snapshot, error)
}

type Deps struct {
	Auth   AuthSession
	Market Fetcher
	// Sink receives every published snapshot. When it also implements
	// view.ErrorSink or view.Resetter it gets tick errors and logout resets.
	Sink   view.Sink
	Tracer trace.Tracer
	Logger *zap.Logger
}

type Options struct {
	Config          domain.PollConfig
	DefaultSymbol   string
	HistoryCapacity int
}

// Session is one independent dashboard: a credential, a poll loop, a
// candle history and the sinks fed by it.
type Session struct {
	auth   AuthSession
	market Fetcher
	sink   view.Sink
	tracer trace.Tracer
	logger *zap.Logger

	settings  *poller.Settings
	history   *history.Cache
	scheduler *poller.Scheduler

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	lastSymbol string
}

func New(deps Deps, opts Options) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := deps.Sink
	if sink == nil {
		sink = view.NewMulti()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = trace.NewNoopTracerProvider().Tracer("dashboard")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		auth:     deps.Auth,
		market:   deps.Market,
		sink:     sink,
		tracer:   tracer,
		logger:   logger,
		settings: poller.NewSettings(opts.Config, opts.DefaultSymbol),
		history:  history.New(opts.HistoryCapacity),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.scheduler = poller.New(tracer, logger, s.settings, s.tick, s)
	s.auth.OnLogout(s.onLogout)
	return s
}

// Restore resumes a persisted session and starts polling when one exists.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	ok, err := s.auth.Restore(ctx)
	if err != nil || !ok {
		return false, err
	}
	if err := s.StartPolling(); err != nil && !errors.Is(err, poller.ErrAlreadyRunning) {
		return true, err
	}
	return true, nil
}

// Login authenticates and starts polling.
func (s *Session) Login(ctx context.Context, username, password string) error {
	if err := s.auth.Login(ctx, username, password); err != nil {
		return err
	}
	if err := s.StartPolling(); err != nil && !errors.Is(err, poller.ErrAlreadyRunning) {
		return err
	}
	return nil
}

// Logout stops polling and drops the credential and all session state.
func (s *Session) Logout(ctx context.Context) error {
	return s.auth.Logout(ctx)
}

// Stop cancels the run context before the reset, so a tick holding s.mu
// either publishes before the reset or sees the cancellation.
func (s *Session) onLogout() {
	s.scheduler.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Reset()
	s.lastSymbol = ""
	if r, ok := s.sink.(view.Resetter); ok {
		r.Reset()
	}
}

func (s *Session) Authenticated() bool { return s.auth.Authenticated() }

// TogglePolling flips the poll loop. Starting requires an authenticated
// session.
func (s *Session) TogglePolling() (poller.Status, error) {
	if s.scheduler.Status() == poller.Stopped && !s.auth.Authenticated() {
		return poller.Stopped, ErrNotAuthenticated
	}
	return s.scheduler.Toggle(s.ctx), nil
}

func (s *Session) StartPolling() error {
	if !s.auth.Authenticated() {
		return ErrNotAuthenticated
	}
	return s.scheduler.Start(s.ctx)
}

func (s *Session) StopPolling() { s.scheduler.Stop() }

func (s *Session) PollStatus() poller.Status { return s.scheduler.Status() }

// UpdateConfig stores cfg and applies it to a running loop right away.
// The next tick uses the new symbol and thresholds.
func (s *Session) UpdateConfig(cfg domain.PollConfig) domain.PollConfig {
	prev, next := s.settings.Set(cfg)
	if prev != next {
		s.logger.Info("poll config updated",
			zap.String("symbol", next.Symbol),
			zap.Float64("rsi_low", next.RSILow),
			zap.Float64("rsi_high", next.RSIHigh),
			zap.Int("interval_ms", next.IntervalMS),
		)
	}
	s.scheduler.Reconfigure()
	return next
}

func (s *Session) Config() domain.PollConfig { return s.settings.PollConfig() }

func (s *Session) History() history.Reader { return s.history }

// Close stops polling and waits for the loop to exit. The session is not
// usable afterwards.
func (s *Session) Close() {
	s.cancel()
	s.scheduler.Stop()
	s.scheduler.Wait()
}

func (s *Session) OnTickError(err error) {
	if es, ok := s.sink.(view.ErrorSink); ok {
		es.OnTickError(err)
	}
}

func (s *Session) tick(ctx context.Context, cfg domain.PollConfig) error {
	ctx, span := s.tracer.Start(ctx, "dashboard.tick")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", cfg.Symbol))

	snap, err := s.market.FetchIntraday(ctx, cfg)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		var decErr *client.DecodeError
		if errors.As(err, &decErr) {
			s.logger.Warn("snapshot not decodable, skipping tick",
				zap.String("symbol", cfg.Symbol),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return nil
	}
	if s.lastSymbol != "" && s.lastSymbol != cfg.Symbol {
		s.logger.Info("symbol changed, clearing history",
			zap.String("from", s.lastSymbol),
			zap.String("to", cfg.Symbol),
		)
		s.history.Reset()
	}
	s.lastSymbol = cfg.Symbol

	added := s.history.Merge(snap.Candles)
	window := s.history.Window(s.history.Capacity())
	span.SetAttributes(
		attribute.Int("candles.added", added),
		attribute.Int("candles.cached", len(window)),
	)

	s.sink.OnSnapshot(snap, window)
	return nil
}
