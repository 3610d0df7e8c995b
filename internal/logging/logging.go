// Package logging configures slog for the product executables.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/lmittmann/tint"
)

// New returns a colored text logger for development and a JSON logger otherwise.
func New(environment string, w io.Writer) *slog.Logger {
	level := ParseLevel(os.Getenv("LOG_LEVEL"))
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

// Setup installs New(environment) as the default logger.
func Setup(environment string) *slog.Logger {
	logger := New(environment, os.Stderr)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps debug, warn and error to their slog levels; anything else is info.
func ParseLevel(v string) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// HTTPLogger builds the request logger. Health probes are logged only once a minute.
func HTTPLogger(service, environment string) *httplog.Logger {
	production := environment == "production"
	return httplog.NewLogger(service, httplog.Options{
		JSON:             production,
		Concise:          !production,
		LogLevel:         ParseLevel(os.Getenv("LOG_LEVEL")),
		MessageFieldName: "message",
		RequestHeaders:   production,
		HideRequestHeaders: []string{
			"authorization",
			"cookie",
		},
		QuietDownRoutes: []string{"/healthz", "/healthz/ready", "/metrics"},
		QuietDownPeriod: time.Minute,
		Tags: map[string]string{
			"env": environment,
		},
	})
}
