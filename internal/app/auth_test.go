package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"quizki/internal/app"
	"quizki/internal/domain"
)

func TestAuthManagerIssuesBearerTokens(t *testing.T) {
	store := &memTokenStore{}
	auth := app.NewAuthManager(store, nil)

	if _, err := auth.Token(); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized without a token, got %v", err)
	}

	raw := signToken(t, "alice", time.Now().Add(time.Hour))
	if err := auth.Login(context.Background(), stubAuthenticator{token: raw}, domain.Credentials{Username: "alice"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	token, err := auth.Token()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if token.AccessToken != raw || token.Type() != "Bearer" {
		t.Fatalf("unexpected token %+v", token)
	}
	info, ok := auth.Info()
	if !ok || info.Subject != "alice" || info.ExpiresAt.IsZero() {
		t.Fatalf("unexpected token info %+v", info)
	}
}

func TestAuthManagerRejectsExpiredTokens(t *testing.T) {
	store := &memTokenStore{token: signToken(t, "alice", time.Now().Add(-time.Minute))}
	auth := app.NewAuthManager(store, nil)

	if _, err := auth.Token(); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
	if auth.LoggedIn() {
		t.Fatalf("expected logged out")
	}
}

func TestAuthManagerAcceptsOpaqueTokens(t *testing.T) {
	auth := app.NewAuthManager(&memTokenStore{token: "opaque"}, nil)
	token, err := auth.Token()
	if err != nil || token.AccessToken != "opaque" || !token.Expiry.IsZero() {
		t.Fatalf("expected opaque token without expiry, got %+v %v", token, err)
	}
}

func TestAuthManagerExpireNotifiesOnce(t *testing.T) {
	store := &memTokenStore{token: "opaque"}
	auth := app.NewAuthManager(store, nil)

	var mu sync.Mutex
	notified := 0
	auth.OnExpired(func() {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			auth.Expire()
		}()
	}
	wg.Wait()

	if notified != 1 {
		t.Fatalf("expected a single notification, got %d", notified)
	}
	if store.token != "" {
		t.Fatalf("expected token cleared")
	}
}

func TestAuthManagerLogoutIsQuiet(t *testing.T) {
	auth := app.NewAuthManager(&memTokenStore{token: "opaque"}, nil)
	auth.OnExpired(func() { t.Errorf("logout must not signal expiry") })

	if err := auth.Logout(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	auth.Expire()
	if auth.LoggedIn() {
		t.Fatalf("expected logged out")
	}
}

func TestAuthManagerLoginFailureKeepsState(t *testing.T) {
	store := &memTokenStore{token: "previous"}
	auth := app.NewAuthManager(store, nil)

	err := auth.Login(context.Background(), stubAuthenticator{err: domain.ErrInvalidCredentials}, domain.Credentials{Username: "x"})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if store.token != "previous" {
		t.Fatalf("expected stored token untouched, got %q", store.token)
	}
}

type memTokenStore struct {
	token string
}

func (s *memTokenStore) Load() (string, error) { return s.token, nil }
func (s *memTokenStore) Save(token string) error {
	s.token = token
	return nil
}
func (s *memTokenStore) Clear() error {
	s.token = ""
	return nil
}

type stubAuthenticator struct {
	token string
	err   error
}

func (a stubAuthenticator) Login(context.Context, domain.Credentials) (string, error) {
	return a.token, a.err
}

func (a stubAuthenticator) Register(_ context.Context, reg domain.Registration) (domain.User, error) {
	return domain.User{Username: reg.Username}, a.err
}

func signToken(t *testing.T, subject string, expires time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}
