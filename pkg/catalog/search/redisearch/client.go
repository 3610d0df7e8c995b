package redisearch

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config describes how to reach the Redis server hosting the search module
type Config struct {
	URL          string `env:"SEARCH_URL"`
	ReadTimeout  int    `env:"SEARCH_READ_TIMEOUT" env-default:"3"`
	WriteTimeout int    `env:"SEARCH_WRITE_TIMEOUT" env-default:"3"`
	DialTimeout  int    `env:"SEARCH_DIAL_TIMEOUT" env-default:"5"`
}

// NewClient parses the URL, applies timeouts and pings the server.
func (c *Config) NewClient(ctx context.Context) (*redis.Client, error) {
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, err
	}

	opts.ReadTimeout = time.Duration(c.ReadTimeout) * time.Second
	opts.WriteTimeout = time.Duration(c.WriteTimeout) * time.Second
	opts.DialTimeout = time.Duration(c.DialTimeout) * time.Second
	// FT.* replies are only stable over RESP2
	opts.Protocol = 2

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}
