package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/simple-product/pkg/catalog"
	"github.com/tendant/simple-product/pkg/catalog/search/redisearch"
)

// envConfig is the environment surface read by WithEnv
type envConfig struct {
	Port         string        `env:"PORT" env-default:"8080"`
	Environment  string        `env:"ENVIRONMENT" env-default:"development"`
	DatabaseURL  string        `env:"DATABASE_URL"`
	AutoMigrate  bool          `env:"AUTO_MIGRATE" env-default:"true"`
	IndexName    string        `env:"SEARCH_INDEX_NAME" env-default:"catalog_Product"`
	IndexTimeout time.Duration `env:"INDEX_TIMEOUT" env-default:"5s"`
	ReadPolicy   string        `env:"READ_POLICY" env-default:"public"`
	JWTSecret    string        `env:"JWT_SECRET"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" env-default:"24h"`
	AuthUsers    string        `env:"AUTH_USERS"`
	PageSize     int           `env:"PAGE_SIZE" env-default:"10"`
	Search       redisearch.Config
}

// WithEnv reads the process environment.
//
//	PORT, ENVIRONMENT        server settings
//	DATABASE_URL             "memory" or empty for in-memory, "postgres://..." for postgres
//	AUTO_MIGRATE             create the product table on start (default true)
//	SEARCH_URL               "memory://" (default), "redis://host:6379/0" or "none"
//	SEARCH_INDEX_NAME        index written to and queried by default (default catalog_Product)
//	INDEX_TIMEOUT            bound on each index write (default 5s)
//	READ_POLICY              "public" or "authenticated"
//	JWT_SECRET, TOKEN_TTL    token signing
//	AUTH_USERS               name:bcrypthash[:staff],...
//	PAGE_SIZE                default listing page size
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		c.Port = env.Port
		c.Environment = env.Environment
		c.AutoMigrate = env.AutoMigrate
		c.SearchIndexName = env.IndexName
		c.IndexTimeout = env.IndexTimeout
		c.JWTSecret = env.JWTSecret
		c.TokenTTL = env.TokenTTL
		c.AuthUsers = env.AuthUsers
		c.PageSize = env.PageSize

		policy, err := catalog.ParseReadPolicy(env.ReadPolicy)
		if err != nil {
			return err
		}
		c.ReadPolicy = policy

		if err := applyDatabaseURL(env.DatabaseURL, c); err != nil {
			return err
		}
		return applySearchURL(env.Search, c)
	}
}

// applyDatabaseURL picks the store from DATABASE_URL
func applyDatabaseURL(dbURL string, c *ServerConfig) error {
	switch {
	case dbURL == "" || dbURL == "memory":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
	}
	return nil
}

// applySearchURL picks the search backend from SEARCH_URL
func applySearchURL(search redisearch.Config, c *ServerConfig) error {
	c.Search = search
	switch u := search.URL; {
	case u == "" || u == "memory" || u == "memory://":
		c.SearchType = SearchMemory
		c.Search.URL = ""
	case u == "none":
		c.SearchType = SearchNone
		c.Search.URL = ""
	case strings.HasPrefix(u, "redis://"), strings.HasPrefix(u, "rediss://"):
		c.SearchType = SearchRedis
	default:
		return fmt.Errorf("unsupported SEARCH_URL format: %s (use 'memory://', 'redis://...' or 'none')", u)
	}
	return nil
}
