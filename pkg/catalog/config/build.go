package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-product/pkg/catalog"
	"github.com/tendant/simple-product/pkg/catalog/auth"
	"github.com/tendant/simple-product/pkg/catalog/repo/memory"
	repopg "github.com/tendant/simple-product/pkg/catalog/repo/postgres"
	"github.com/tendant/simple-product/pkg/catalog/search"
	searchmemory "github.com/tendant/simple-product/pkg/catalog/search/memory"
	"github.com/tendant/simple-product/pkg/catalog/search/redisearch"
)

// App holds everything built from a ServerConfig
type App struct {
	Service    catalog.Service
	Repository catalog.Repository
	// Synchronizer is nil when search is disabled
	Synchronizer *search.Synchronizer
	Users        *auth.Directory
	Tokens       *auth.Tokens

	closers []func()
}

// Close releases database and search connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// BuildOption customizes Build
type BuildOption func(*buildOptions)

type buildOptions struct {
	registerer prometheus.Registerer
	logger     *slog.Logger
}

// WithRegisterer registers the index failure counter on reg
func WithRegisterer(reg prometheus.Registerer) BuildOption {
	return func(o *buildOptions) {
		o.registerer = reg
	}
}

// WithLogger sets the logger handed to the service
func WithLogger(logger *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// Build connects the configured store and search backend and wires the service.
func (c *ServerConfig) Build(ctx context.Context, opts ...BuildOption) (*App, error) {
	o := buildOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	repo, err := c.buildRepository(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	app.Repository = repo

	serviceOpts := []catalog.Option{
		catalog.WithRepository(repo),
		catalog.WithGate(catalog.NewStaffGate(c.ReadPolicy)),
		catalog.WithLogger(o.logger),
		catalog.WithPageSize(c.PageSize),
		catalog.WithIndexTimeout(c.IndexTimeout),
	}

	index, err := c.buildSearchIndex(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("failed to build search index: %w", err)
	}
	if index != nil {
		var syncOpts []search.SyncOption
		if o.registerer != nil {
			syncOpts = append(syncOpts, search.WithRegisterer(o.registerer))
		}
		app.Synchronizer = search.NewSynchronizer(index, c.SearchIndexName, syncOpts...)
		serviceOpts = append(serviceOpts, catalog.WithIndexer(app.Synchronizer))
	}

	app.Service, err = catalog.New(serviceOpts...)
	if err != nil {
		return nil, err
	}

	if app.Users, err = c.buildUsers(); err != nil {
		return nil, err
	}
	if app.Tokens, err = c.buildTokens(o.logger); err != nil {
		return nil, err
	}

	ok = true
	return app, nil
}

// BuildService is a shortcut for callers that only need the service.
func (c *ServerConfig) BuildService(ctx context.Context) (catalog.Service, error) {
	app, err := c.Build(ctx)
	if err != nil {
		return nil, err
	}
	return app.Service, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, app *App) (catalog.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		app.closers = append(app.closers, pool.Close)

		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}

		repo := repopg.NewWithPool(pool)
		if c.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// buildSearchIndex returns nil when indexing is disabled
func (c *ServerConfig) buildSearchIndex(ctx context.Context, app *App) (search.Index, error) {
	switch c.SearchType {
	case SearchNone:
		return nil, nil
	case SearchMemory:
		return searchmemory.New(), nil
	case SearchRedis:
		client, err := c.Search.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.closers = append(app.closers, func() { client.Close() })

		index := redisearch.New(client)
		if err := index.EnsureIndex(ctx, c.SearchIndexName); err != nil {
			return nil, err
		}
		return index, nil
	default:
		return nil, fmt.Errorf("unsupported search type: %s", c.SearchType)
	}
}

func (c *ServerConfig) buildUsers() (*auth.Directory, error) {
	if c.AuthUsers == "" {
		slog.Warn("No users configured; token login is disabled")
		return auth.NewDirectory()
	}
	users, err := auth.ParseUsers(c.AuthUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to parse AUTH_USERS: %w", err)
	}
	return users, nil
}

func (c *ServerConfig) buildTokens(logger *slog.Logger) (*auth.Tokens, error) {
	secret := c.JWTSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		logger.Warn("JWT_SECRET not set; tokens will not survive a restart")
	}
	return auth.NewTokens(secret, c.TokenTTL)
}
