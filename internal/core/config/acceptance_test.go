package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "framekeeper.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestConfigPrecedence verifies the documented configuration behavior.
func TestConfigPrecedence(t *testing.T) {
	t.Run("config file values are read", func(t *testing.T) {
		path := writeConfig(t, `service:
  port: 8081
  metrics_addr: ":9102"
sampling:
  max_iterations: 250
catalog:
  path: /etc/framekeeper/schemas.yaml
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig error: %v", err)
		}
		if cfg.Service.Port != 8081 || cfg.Service.MetricsAddr != ":9102" {
			t.Errorf("service = %+v, want port 8081 and metrics :9102", cfg.Service)
		}
		if cfg.Sampling.MaxIterations != 250 {
			t.Errorf("max_iterations = %d, want 250", cfg.Sampling.MaxIterations)
		}
		if cfg.Catalog.Path != "/etc/framekeeper/schemas.yaml" {
			t.Errorf("catalog path = %s", cfg.Catalog.Path)
		}
	})

	t.Run("database URL in config file is rejected", func(t *testing.T) {
		path := writeConfig(t, `db_url: "postgres://fk:secret@db/fk"
`)
		_, err := LoadConfig(path)
		if err == nil {
			t.Fatal("expected error for database URL in config file")
		}
		if err.Error() != "database URLs not allowed in config files (use FK_DB_URL environment variable)" {
			t.Fatalf("wrong error message: %v", err)
		}
	})

	t.Run("environment overrides config file", func(t *testing.T) {
		os.Setenv("FK_SERVICE_PORT", "8080")
		defer os.Unsetenv("FK_SERVICE_PORT")

		path := writeConfig(t, `service:
  port: 9090
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig error: %v", err)
		}
		if cfg.Service.Port != 8080 {
			t.Fatalf("expected environment port 8080, got %d", cfg.Service.Port)
		}
	})
}
