package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"quizki/internal/app"
	"quizki/internal/config"
	"quizki/internal/infra/file"
	"quizki/internal/infra/memory"
	infraredis "quizki/internal/infra/redis"
	transport "quizki/internal/transport/http"
)

// runtime holds everything a command needs, built from config once per invocation.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	auth    *app.AuthManager
	client  *transport.Client
	catalog *app.Catalog
	redis   *goredis.Client
}

func newRuntime(cmd *cobra.Command, opts *rootOptions) (*runtime, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.apiURL != "" {
		cfg.API.BaseURL = opts.apiURL
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	auth := app.NewAuthManager(file.NewTokenStore(cfg.Auth.TokenFile), logger)
	client := transport.NewClient(cfg.API.BaseURL,
		transport.WithHTTPClient(&http.Client{Timeout: config.TTLDuration(cfg.API.Timeout, 15*time.Second)}),
		transport.WithTokenSource(auth),
		transport.WithUnauthorizedHandler(auth.Expire),
		transport.WithLogger(logger),
	)

	rt := &runtime{
		cfg:     cfg,
		logger:  logger,
		auth:    auth,
		client:  client,
		catalog: app.NewCatalog(client, app.CatalogMode(cfg.Catalog.Mode)),
	}

	if cfg.Cache.Backend == "redis" {
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis cache selected but redis.addr is not configured")
		}
		rt.redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rt.redis.Ping(cmd.Context()).Err(); err != nil {
			rt.redis.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}
	return rt, nil
}

// quizService wires the session layer on top of the catalog and client.
func (rt *runtime) quizService() *app.QuizService {
	ttl := config.TTLDuration(rt.cfg.Cache.TTL, 10*time.Minute)
	quizzes := memory.NewQuizRepository(rt.catalog, ttl)

	var (
		keys  app.AnswerKeyFactory
		store app.SessionRepository
	)
	if rt.redis != nil {
		keys = infraredis.AnswerKeyFactory(infraredis.NewAnswerKeyCache(rt.redis, rt.cfg.Redis.Prefix, ttl))
		store = infraredis.NewSessionStore(rt.redis, rt.cfg.Redis.Prefix, time.Minute)
	} else {
		keys = memory.AnswerKeyFactory()
		store = memory.NewSessionStore()
	}

	return app.NewQuizService(quizzes, rt.client, keys,
		app.WithSessionRepository(store),
		app.WithLogger(rt.logger),
		app.WithTick(config.TTLDuration(rt.cfg.Session.Tick, time.Second)),
		app.WithFetchLimit(rt.cfg.Session.FetchLimit),
	)
}

func (rt *runtime) Close() error {
	if rt.redis != nil {
		return rt.redis.Close()
	}
	return nil
}

// withRuntime adapts a runtime-aware function to cobra's RunE.
func withRuntime(opts *rootOptions, fn func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd, opts)
		if err != nil {
			return err
		}
		defer rt.Close()
		return explain(fn(cmd.Context(), cmd, rt, args))
	}
}
