package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ogembed/api/internal/code"
	"github.com/ogembed/api/internal/config"
	"github.com/ogembed/api/internal/database"
	"github.com/ogembed/api/internal/embed"
	"github.com/ogembed/api/internal/handler"
	"github.com/ogembed/api/internal/ratelimit"
	"github.com/ogembed/api/internal/server"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	Config  *config.Config
	DB      *database.DB
	Redis   *redis.Client
	Server  *server.Server
	Store   embed.Store
	Limiter *ratelimit.Limiter

	repo *embed.Repository
}

func New(cfg *config.Config) (*App, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Redis.Timeout)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// The limiter fails closed while redis is down, so starting up
		// anyway is safe; it just serves 503s until redis returns.
		slog.Warn("redis unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
	}
	cancel()

	codes, err := code.NewGenerator(cfg.Embeds.CodeAlphabet, cfg.Embeds.CodeLength)
	if err != nil {
		_ = db.Close()
		_ = rdb.Close()
		return nil, err
	}

	repo := embed.NewRepository(db.DB, codes, cfg.Embeds.TTL)

	var store embed.Store = repo
	if cfg.Cache.Enabled {
		store = embed.NewCachedStore(repo, rdb, cfg.Cache.TTL, cfg.Redis.Timeout)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		counter := ratelimit.NewRedisCounter(rdb, cfg.Redis.Timeout)
		limiter = ratelimit.NewLimiter(counter, map[string]ratelimit.Rule{
			ratelimit.BucketGlobal:   {Limit: cfg.RateLimit.Global.Limit, Window: cfg.RateLimit.Global.Window},
			ratelimit.BucketGenerate: {Limit: cfg.RateLimit.Generate.Limit, Window: cfg.RateLimit.Generate.Window},
			ratelimit.BucketCreate:   {Limit: cfg.RateLimit.Create.Limit, Window: cfg.RateLimit.Create.Window},
			ratelimit.BucketEdit:     {Limit: cfg.RateLimit.Edit.Limit, Window: cfg.RateLimit.Edit.Window},
			ratelimit.BucketDelete:   {Limit: cfg.RateLimit.Delete.Limit, Window: cfg.RateLimit.Delete.Window},
		})
	}

	h := handler.New(handler.Dependencies{
		Store:     store,
		PublicURL: cfg.Server.PublicURL,
	})

	router := server.NewRouter(h, limiter, cfg.Server.AllowedOrigins)

	tlsOpts := server.TLSOptions{
		Mode:     cfg.Server.TLS.Mode,
		CertFile: cfg.Server.TLS.CertFile,
		KeyFile:  cfg.Server.TLS.KeyFile,
		Domain:   cfg.Server.TLS.Auto.Domain,
		Email:    cfg.Server.TLS.Auto.Email,
		CacheDir: cfg.Server.TLS.Auto.CacheDir,
	}

	srv := server.New(cfg.Server.Host, cfg.Server.Port, router, tlsOpts)

	return &App{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		Server:  srv,
		Store:   store,
		Limiter: limiter,
		repo:    repo,
	}, nil
}

// Start runs the HTTP server and, when a TTL is configured, the expiry
// sweep. It blocks until the server stops or ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	slog.Info("starting ogembed server",
		"addr", a.Server.Addr(),
		"database", a.Config.Database.Path,
		"redis", a.Config.Redis.Addr,
		"tls", a.Server.TLSMode(),
		"rate_limit", a.Config.RateLimit.Enabled,
		"cache", a.Config.Cache.Enabled,
		"embed_ttl", a.Config.Embeds.TTL,
	)

	g, ctx := errgroup.WithContext(ctx)

	if a.Config.Embeds.TTL > 0 {
		g.Go(func() error {
			a.runExpirySweep(ctx)
			return nil
		})
	}

	g.Go(func() error {
		if err := a.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return g.Wait()
}

func (a *App) runExpirySweep(ctx context.Context) {
	ticker := time.NewTicker(a.Config.Embeds.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.repo.DeleteExpired(ctx)
			if err != nil {
				slog.Error("expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("swept expired embeds", "count", n)
			}
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.Redis.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
