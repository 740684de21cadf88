package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"quizki/internal/domain"
)

// TokenStore persists the access token between runs.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// Authenticator is the backend's login and registration surface.
type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (string, error)
	Register(ctx context.Context, reg domain.Registration) (domain.User, error)
}

// TokenInfo is what can be read from a stored token without the signing key.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// AuthManager owns the access token. It is the oauth2.TokenSource the REST client
// draws bearer tokens from, and it tells registered observers when the backend
// ends the session.
type AuthManager struct {
	store  TokenStore
	logger *slog.Logger
	clock  func() time.Time

	mu        sync.Mutex
	observers []func()
}

var _ oauth2.TokenSource = (*AuthManager)(nil)

func NewAuthManager(store TokenStore, logger *slog.Logger) *AuthManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthManager{store: store, logger: logger, clock: time.Now}
}

// OnExpired registers fn to run when a logged-in session is rejected.
func (m *AuthManager) OnExpired(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Token returns the stored bearer token. A missing or expired token is reported as
// domain.ErrUnauthorized so no request is sent with it.
func (m *AuthManager) Token() (*oauth2.Token, error) {
	m.mu.Lock()
	raw, err := m.store.Load()
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: not logged in", domain.ErrUnauthorized)
	}

	token := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	if info, ok := inspectToken(raw); ok {
		token.Expiry = info.ExpiresAt
		if !info.ExpiresAt.IsZero() && !info.ExpiresAt.After(m.clock()) {
			return nil, fmt.Errorf("%w: token expired", domain.ErrUnauthorized)
		}
	}
	return token, nil
}

// Info reads the subject and expiry of the stored token.
func (m *AuthManager) Info() (TokenInfo, bool) {
	m.mu.Lock()
	raw, err := m.store.Load()
	m.mu.Unlock()
	if err != nil || raw == "" {
		return TokenInfo{}, false
	}
	return inspectToken(raw)
}

func (m *AuthManager) LoggedIn() bool {
	_, err := m.Token()
	return err == nil
}

// Login exchanges credentials for a token and stores it.
func (m *AuthManager) Login(ctx context.Context, api Authenticator, creds domain.Credentials) error {
	token, err := api.Login(ctx, creds)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Save(token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	m.logger.Info("logged in", "username", creds.Username)
	return nil
}

// Logout forgets the stored token without notifying observers.
func (m *AuthManager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Clear()
}

// Expire clears the stored token and notifies observers. Without a stored token
// it does nothing, so concurrent rejections notify only once.
func (m *AuthManager) Expire() {
	m.mu.Lock()
	raw, err := m.store.Load()
	if err != nil || raw == "" {
		m.mu.Unlock()
		return
	}
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("clear token", "err", err)
	}
	observers := make([]func(), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	m.logger.Warn("session expired")
	for _, fn := range observers {
		fn()
	}
}

// inspectToken parses a JWT without verifying it. Opaque tokens report false.
func inspectToken(raw string) (TokenInfo, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return TokenInfo{}, false
	}
	info := TokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, true
}
