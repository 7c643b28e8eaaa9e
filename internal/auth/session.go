package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"marketpulse-dash/internal/client"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrNoToken is the reason a login succeeds at the HTTP level but is still
// rejected.
var ErrNoToken = errors.New("no token received")

// AuthError is a rejected login. Err holds the underlying NetworkError,
// APIError or ErrNoToken.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "login failed: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Authenticator performs the login request.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*client.LoginResponse, error)
}

// Session owns the bearer credential. It is the only writer of the token and
// of its persisted copy.
type Session struct {
	store  Store
	api    Authenticator
	tracer trace.Tracer
	logger *zap.Logger

	mu        sync.RWMutex
	token     string
	userID    string
	listeners []func()
}

func NewSession(store Store, api Authenticator, tracer trace.Tracer, logger *zap.Logger) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		store:  store,
		api:    api,
		tracer: tracer,
		logger: logger,
	}
}

// Restore loads a persisted credential and reports whether a session is now
// active. It never touches the network.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	token, err := s.store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("restore credential: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	s.logger.Info("session restored")
	return true, nil
}

// Login exchanges username and password for a token. The session only
// becomes authenticated when the response carries a non-empty token.
func (s *Session) Login(ctx context.Context, username, password string) error {
	ctx, span := s.tracer.Start(ctx, "auth.login")
	defer span.End()

	resp, err := s.api.Login(ctx, username, password)
	if err != nil {
		authErr := &AuthError{Err: err}
		span.RecordError(authErr)
		span.SetStatus(codes.Error, "login request failed")
		return authErr
	}
	if resp == nil || strings.TrimSpace(resp.Token) == "" {
		authErr := &AuthError{Err: ErrNoToken}
		span.RecordError(authErr)
		span.SetStatus(codes.Error, "missing token")
		return authErr
	}

	s.mu.Lock()
	s.token = resp.Token
	s.userID = resp.UserID
	s.mu.Unlock()

	if err := s.store.Save(ctx, resp.Token); err != nil {
		// the in-memory session stays usable, only the next restart loses it
		s.logger.Warn("persist credential failed", zap.Error(err))
	}

	s.logger.Info("logged in", zap.String("user_id", resp.UserID))
	return nil
}

// Logout drops the credential everywhere and notifies logout listeners.
// Listeners run even if clearing the store fails.
func (s *Session) Logout(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "auth.logout")
	defer span.End()

	s.mu.Lock()
	s.token = ""
	s.userID = ""
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()

	clearErr := s.store.Clear(ctx)
	for _, fn := range listeners {
		fn()
	}

	if clearErr != nil {
		span.RecordError(clearErr)
		return fmt.Errorf("clear credential: %w", clearErr)
	}
	s.logger.Info("logged out")
	return nil
}

// OnLogout registers fn to run after every logout.
func (s *Session) OnLogout(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Token returns the current credential or "".
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) State() State {
	if s.Token() == "" {
		return Unauthenticated
	}
	return Authenticated
}

func (s *Session) Authenticated() bool {
	return s.State() == Authenticated
}
