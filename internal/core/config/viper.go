package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("service.host", def.Service.Host)
	v.SetDefault("service.port", def.Service.Port)
	v.SetDefault("service.max_connections", def.Service.MaxConnections)
	v.SetDefault("service.request_timeout", def.Service.RequestTimeout.String())
	v.SetDefault("service.max_batch_size", def.Service.MaxBatchSize)
	v.SetDefault("service.data_dir", def.Service.DataDir)
	v.SetDefault("service.metrics_addr", def.Service.MetricsAddr)
	v.SetDefault("sampling.max_iterations", def.Sampling.MaxIterations)
	v.SetDefault("sampling.seed", def.Sampling.Seed)
	v.SetDefault("catalog.path", def.Catalog.Path)

	// Bind environment variables with FK_ prefix
	v.SetEnvPrefix("FK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Service: ServiceConfig{
			Host:           v.GetString("service.host"),
			Port:           v.GetInt("service.port"),
			MaxConnections: v.GetInt("service.max_connections"),
			RequestTimeout: v.GetDuration("service.request_timeout"),
			MaxBatchSize:   v.GetInt("service.max_batch_size"),
			DataDir:        v.GetString("service.data_dir"),
			MetricsAddr:    v.GetString("service.metrics_addr"),
		},
		Sampling: SamplingConfig{
			MaxIterations: v.GetInt("sampling.max_iterations"),
			Seed:          v.GetUint64("sampling.seed"),
		},
		Catalog: CatalogConfig{
			Path: v.GetString("catalog.path"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range and positive limits.
func validateConfig(cfg *Config) error {
	if cfg.Service.Port <= 0 || cfg.Service.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Service.Port)
	}
	if cfg.Service.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.Service.MaxConnections)
	}
	if cfg.Service.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Service.RequestTimeout)
	}
	if cfg.Service.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be positive, got %d", cfg.Service.MaxBatchSize)
	}
	if cfg.Sampling.MaxIterations <= 0 {
		return fmt.Errorf("sampling.max_iterations must be positive, got %d", cfg.Sampling.MaxIterations)
	}
	if cfg.Catalog.Path == "" {
		return fmt.Errorf("catalog.path must not be empty")
	}
	return nil
}

// validateNoSecretsInConfig keeps database credentials environment-only.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("db_url") || v.InConfig("database") {
		return fmt.Errorf("database URLs not allowed in config files (use %s environment variable)", DatabaseURLEnv)
	}
	return nil
}
