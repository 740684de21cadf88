package file

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTokenStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.yaml")
	store := NewTokenStore(path)

	token, err := store.Load()
	if err != nil || token != "" {
		t.Fatalf("expected empty token before login, got %q %v", token, err)
	}

	if err := store.Save("abc.def.ghi"); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected owner-only file, got %v", info.Mode().Perm())
	}

	token, err = store.Load()
	if err != nil || token != "abc.def.ghi" {
		t.Fatalf("expected saved token, got %q %v", token, err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if token, _ := store.Load(); token != "" {
		t.Fatalf("expected token gone, got %q", token)
	}
}

func TestTokenStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	if err := os.WriteFile(path, []byte("access_token: [unterminated"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewTokenStore(path).Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}
