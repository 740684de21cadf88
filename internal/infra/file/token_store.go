package file

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
	"quizki/internal/app"
)

// TokenStore keeps the access token in a YAML credentials file readable only by its owner.
type TokenStore struct {
	path  string
	clock func() time.Time
	mu    sync.Mutex
}

type credentials struct {
	AccessToken string    `yaml:"access_token"`
	SavedAt     time.Time `yaml:"saved_at"`
}

var _ app.TokenStore = (*TokenStore)(nil)

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path, clock: time.Now}
}

func (s *TokenStore) Path() string {
	return s.path
}

// Load returns an empty token when no credentials file exists.
func (s *TokenStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var creds credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return "", err
	}
	return creds.AccessToken, nil
}

func (s *TokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(credentials{AccessToken: token, SavedAt: s.clock().UTC()})
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
