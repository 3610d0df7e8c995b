package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tendant/simple-product/pkg/catalog"
	"github.com/tendant/simple-product/pkg/catalog/search"
	"github.com/tendant/simple-product/pkg/catalog/search/redisearch"
)

// Search backend types
const (
	SearchMemory = "memory"
	SearchRedis  = "redis"
	SearchNone   = "none"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:            "8080",
		Environment:     "development",
		DatabaseType:    "memory",
		AutoMigrate:     true,
		SearchType:      SearchMemory,
		SearchIndexName: search.DefaultIndexName,
		ReadPolicy:      catalog.ReadPolicyPublic,
		TokenTTL:        24 * time.Hour,
		PageSize:        catalog.DefaultPageSize,
		IndexTimeout:    catalog.DefaultIndexTimeout,
	}
}

// ServerConfig represents configuration for the product server and admin tools
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseType string // "memory", "postgres"
	DatabaseURL  string
	AutoMigrate  bool

	// Search index configuration
	SearchType      string // "memory", "redis", "none"
	Search          redisearch.Config
	SearchIndexName string
	IndexTimeout    time.Duration

	// Access control
	ReadPolicy catalog.ReadPolicy
	JWTSecret  string
	TokenTTL   time.Duration
	AuthUsers  string // name:bcrypthash[:staff],...

	PageSize int
}

// IsProduction reports whether the server runs in production mode.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.SearchType {
	case SearchMemory, SearchNone:
	case SearchRedis:
		if c.Search.URL == "" {
			return errors.New("search url is required when using redis")
		}
	default:
		return fmt.Errorf("search type must be 'memory', 'redis' or 'none', got: %s", c.SearchType)
	}

	if strings.TrimSpace(c.SearchIndexName) == "" {
		return errors.New("search index name is required")
	}

	if _, err := catalog.ParseReadPolicy(string(c.ReadPolicy)); err != nil {
		return err
	}

	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("jwt secret is required in production")
	}

	if c.PageSize <= 0 || c.PageSize > catalog.MaxPageSize {
		return fmt.Errorf("page size must be between 1 and %d", catalog.MaxPageSize)
	}

	return nil
}
