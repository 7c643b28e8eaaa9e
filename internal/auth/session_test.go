package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketpulse-dash/internal/client"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type fakeAuthenticator struct {
	resp  *client.LoginResponse
	err   error
	calls int
}

func (f *fakeAuthenticator) Login(ctx context.Context, username, password string) (*client.LoginResponse, error) {
	f.calls++
	return f.resp, f.err
}

type failingStore struct {
	MemoryStore
	loadErr  error
	saveErr  error
	clearErr error
}

func (f *failingStore) Load(ctx context.Context) (string, error) {
	if f.loadErr != nil {
		return "", f.loadErr
	}
	return f.MemoryStore.Load(ctx)
}

func (f *failingStore) Save(ctx context.Context, token string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.MemoryStore.Save(ctx, token)
}

func (f *failingStore) Clear(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	return f.MemoryStore.Clear(ctx)
}

func TestLoginPersistsToken(t *testing.T) {
	store := NewMemoryStore()
	api := &fakeAuthenticator{resp: &client.LoginResponse{Token: "jwt-1", UserID: "demo_user_1"}}
	sess := NewSession(store, api, testTracer, nil)

	if err := sess.Login(context.Background(), "demo", "demo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sess.Authenticated() || sess.Token() != "jwt-1" {
		t.Fatalf("expected authenticated session, got %q", sess.Token())
	}
	if sess.UserID() != "demo_user_1" {
		t.Fatalf("unexpected user id %q", sess.UserID())
	}
	if saved, _ := store.Load(context.Background()); saved != "jwt-1" {
		t.Fatalf("expected token persisted, got %q", saved)
	}
}

func TestLoginEmptyTokenIsRejected(t *testing.T) {
	store := NewMemoryStore()
	api := &fakeAuthenticator{resp: &client.LoginResponse{Token: ""}}
	sess := NewSession(store, api, testTracer, nil)

	err := sess.Login(context.Background(), "demo", "demo")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if sess.Authenticated() {
		t.Fatal("session must stay unauthenticated")
	}
	if saved, _ := store.Load(context.Background()); saved != "" {
		t.Fatalf("nothing should be persisted, got %q", saved)
	}
}

func TestLoginRequestFailureIsWrapped(t *testing.T) {
	apiErr := &client.APIError{StatusCode: 401, Message: "invalid credentials"}
	sess := NewSession(nil, &fakeAuthenticator{err: apiErr}, testTracer, nil)

	err := sess.Login(context.Background(), "demo", "wrong")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	var gotAPI *client.APIError
	if !errors.As(err, &gotAPI) || gotAPI.StatusCode != 401 {
		t.Fatalf("expected wrapped APIError, got %v", err)
	}
	if err.Error() != "login failed: invalid credentials" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if sess.State() != Unauthenticated {
		t.Fatalf("unexpected state %s", sess.State())
	}
}

func TestLoginSurvivesPersistFailure(t *testing.T) {
	store := &failingStore{saveErr: errors.New("disk full")}
	api := &fakeAuthenticator{resp: &client.LoginResponse{Token: "jwt"}}
	sess := NewSession(store, api, testTracer, nil)

	if err := sess.Login(context.Background(), "demo", "demo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sess.Authenticated() {
		t.Fatal("expected in-memory session to be active")
	}
}

func TestRestore(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Save(context.Background(), "  saved-token \n")
	api := &fakeAuthenticator{}
	sess := NewSession(store, api, testTracer, nil)

	ok, err := sess.Restore(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected restore, got %v / %v", ok, err)
	}
	if sess.Token() != "saved-token" {
		t.Fatalf("unexpected token %q", sess.Token())
	}
	if api.calls != 0 {
		t.Fatal("restore must not call the network")
	}
}

func TestRestoreNothingStored(t *testing.T) {
	sess := NewSession(NewMemoryStore(), &fakeAuthenticator{}, testTracer, nil)

	ok, err := sess.Restore(context.Background())
	if err != nil || ok {
		t.Fatalf("expected no session, got %v / %v", ok, err)
	}
	if sess.Authenticated() {
		t.Fatal("expected unauthenticated")
	}
}

func TestRestoreStoreError(t *testing.T) {
	store := &failingStore{loadErr: errors.New("permission denied")}
	sess := NewSession(store, &fakeAuthenticator{}, testTracer, nil)

	ok, err := sess.Restore(context.Background())
	if err == nil || ok {
		t.Fatalf("expected error, got %v / %v", ok, err)
	}
}

func TestLogoutClearsAndNotifies(t *testing.T) {
	store := NewMemoryStore()
	api := &fakeAuthenticator{resp: &client.LoginResponse{Token: "jwt"}}
	sess := NewSession(store, api, testTracer, nil)
	if err := sess.Login(context.Background(), "demo", "demo"); err != nil {
		t.Fatalf("login: %v", err)
	}

	notified := 0
	sess.OnLogout(func() {
		notified++
		if sess.Authenticated() {
			t.Error("listener should see a cleared session")
		}
	})

	if err := sess.Logout(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notified != 1 {
		t.Fatalf("expected one notification, got %d", notified)
	}
	if sess.Token() != "" {
		t.Fatal("token should be cleared")
	}
	if saved, _ := store.Load(context.Background()); saved != "" {
		t.Fatalf("persisted token should be cleared, got %q", saved)
	}

	ok, _ := sess.Restore(context.Background())
	if ok {
		t.Fatal("restore after logout should find nothing")
	}
}

func TestLogoutNotifiesEvenWhenClearFails(t *testing.T) {
	store := &failingStore{clearErr: errors.New("read-only")}
	sess := NewSession(store, &fakeAuthenticator{}, testTracer, nil)

	notified := false
	sess.OnLogout(func() { notified = true })

	if err := sess.Logout(context.Background()); err == nil {
		t.Fatal("expected clear error")
	}
	if !notified {
		t.Fatal("listener should still run")
	}
}

func TestLoginAcceptsNumericUserIDThroughClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"abc","user_id":7}`))
	}))
	defer srv.Close()

	api := client.New(client.Options{BaseURL: srv.URL}, testTracer, nil)
	sess := NewSession(NewMemoryStore(), api, testTracer, nil)
	api.UseTokens(sess)

	if err := sess.Login(context.Background(), "demo", "demo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Token() != "abc" || sess.UserID() != "7" {
		t.Fatalf("unexpected session %q / %q", sess.Token(), sess.UserID())
	}
}
