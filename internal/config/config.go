package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`
	Auth struct {
		TokenFile string `yaml:"token_file"`
	} `yaml:"auth"`
	Cache struct {
		// Backend is "memory" or "redis".
		Backend string `yaml:"backend"`
		TTL     string `yaml:"ttl"`
	} `yaml:"cache"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Catalog struct {
		// Mode is "remote" or "derived".
		Mode string `yaml:"mode"`
	} `yaml:"catalog"`
	Session struct {
		Tick       string `yaml:"tick"`
		FetchLimit int    `yaml:"fetch_limit"`
	} `yaml:"session"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	cfg := Config{}
	cfg.API.BaseURL = "http://127.0.0.1:8000"
	cfg.API.Timeout = "15s"
	cfg.Auth.TokenFile = defaultTokenFile()
	cfg.Cache.Backend = "memory"
	cfg.Cache.TTL = "10m"
	cfg.Redis.Prefix = "quizki"
	cfg.Catalog.Mode = "remote"
	cfg.Session.Tick = "1s"
	cfg.Session.FetchLimit = 4
	cfg.Log.Level = "warn"
	cfg.Log.Format = "text"
	return cfg
}

// Load reads YAML config from path on top of the defaults, then applies
// QUIZKI_* environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment without overriding
// variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.API.BaseURL = envOr("QUIZKI_API_URL", cfg.API.BaseURL)
	cfg.API.Timeout = envOr("QUIZKI_API_TIMEOUT", cfg.API.Timeout)
	cfg.Auth.TokenFile = envOr("QUIZKI_TOKEN_FILE", cfg.Auth.TokenFile)
	cfg.Cache.Backend = envOr("QUIZKI_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = envOr("QUIZKI_CACHE_TTL", cfg.Cache.TTL)
	cfg.Redis.Addr = envOr("QUIZKI_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envOr("QUIZKI_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("QUIZKI_REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Prefix = envOr("QUIZKI_REDIS_PREFIX", cfg.Redis.Prefix)
	cfg.Catalog.Mode = envOr("QUIZKI_CATALOG_MODE", cfg.Catalog.Mode)
	cfg.Session.Tick = envOr("QUIZKI_SESSION_TICK", cfg.Session.Tick)
	cfg.Log.Level = envOr("QUIZKI_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("QUIZKI_LOG_FORMAT", cfg.Log.Format)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "quizki", "credentials.yaml")
}
