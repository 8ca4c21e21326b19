// Package config provides configuration management for FrameKeeper commands.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/solatis/framekeeper/internal/types"
)

// DatabaseURLEnv names the environment variable holding the run store URL.
const DatabaseURLEnv = "FK_DB_URL"

// Config is the complete FrameKeeper configuration.
type Config struct {
	Service  ServiceConfig
	Sampling SamplingConfig
	Catalog  CatalogConfig
}

// ServiceConfig holds configuration for the gRPC validation service.
type ServiceConfig struct {
	Host           string
	Port           int
	MaxConnections int
	RequestTimeout time.Duration
	MaxBatchSize   int
	DataDir        string
	// MetricsAddr serves Prometheus metrics; empty disables the endpoint.
	MetricsAddr string
}

// SamplingConfig bounds the fuzzy sampler.
type SamplingConfig struct {
	MaxIterations int
	// Seed fixes the random generator; zero draws a random seed per call.
	Seed uint64
}

// CatalogConfig locates the schema definitions.
type CatalogConfig struct {
	Path string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Host:           "0.0.0.0",
			Port:           50051,
			MaxConnections: 1000,
			RequestTimeout: 30 * time.Second,
			MaxBatchSize:   10000,
			DataDir:        "./data",
			MetricsAddr:    "",
		},
		Sampling: SamplingConfig{
			MaxIterations: types.DefaultMaxSamplingIterations,
		},
		Catalog: CatalogConfig{
			Path: "schemas.yaml",
		},
	}
}

// DatabaseURL returns the run store URL from FK_DB_URL, or fallback when
// the variable is unset. Database URLs may carry credentials and are never
// read from config files.
func DatabaseURL(fallback string) (string, error) {
	raw := strings.TrimSpace(os.Getenv(DatabaseURLEnv))
	if raw == "" {
		raw = fallback
	}
	if raw == "" {
		return "", nil
	}
	if err := ValidateDatabaseURL(raw); err != nil {
		return "", fmt.Errorf("%s: %w", DatabaseURLEnv, err)
	}
	return raw, nil
}

// ValidateDatabaseURL checks that raw is a sqlite:// or postgres:// URL.
func ValidateDatabaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid database URL: %w", err)
	}
	switch u.Scheme {
	case "sqlite":
		if u.Host == "" && u.Path == "" {
			return fmt.Errorf("sqlite URL must name a file")
		}
	case "postgres":
		if u.Host == "" {
			return fmt.Errorf("postgres URL must name a host")
		}
	default:
		return fmt.Errorf("unsupported database scheme: %q (expected sqlite or postgres)", u.Scheme)
	}
	return nil
}
