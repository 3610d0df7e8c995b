package config

import (
	"fmt"
	"time"

	"github.com/tendant/simple-product/pkg/catalog"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithSearch selects the search backend. url is only used by redis.
func WithSearch(searchType, url, indexName string) Option {
	return func(c *ServerConfig) error {
		c.SearchType = searchType
		c.Search.URL = url
		if indexName != "" {
			c.SearchIndexName = indexName
		}
		return nil
	}
}

// WithReadPolicy sets who may list, retrieve and search products
func WithReadPolicy(policy string) Option {
	return func(c *ServerConfig) error {
		p, err := catalog.ParseReadPolicy(policy)
		if err != nil {
			return err
		}
		c.ReadPolicy = p
		return nil
	}
}

// WithAuth sets the token signing secret and the user list
func WithAuth(secret, users string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		c.AuthUsers = users
		return nil
	}
}

// WithPageSize sets the default listing page size
func WithPageSize(size int) Option {
	return func(c *ServerConfig) error {
		c.PageSize = size
		return nil
	}
}

// WithIndexTimeout bounds each search index write
func WithIndexTimeout(d time.Duration) Option {
	return func(c *ServerConfig) error {
		if d <= 0 {
			return fmt.Errorf("index timeout must be positive")
		}
		c.IndexTimeout = d
		return nil
	}
}
