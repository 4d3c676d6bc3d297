package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8001 {
		t.Fatalf("expected default port 8001, got %d", cfg.Server.Port)
	}
	if cfg.Scraper.SiteRoot != "https://patents.google.com" {
		t.Fatalf("unexpected site root %q", cfg.Scraper.SiteRoot)
	}
	if got := cfg.PageTimeout(); got != 20*time.Second {
		t.Fatalf("expected page timeout 20s, got %v", got)
	}
	if got := cfg.DownloadTimeout(); got != 60*time.Second {
		t.Fatalf("expected download timeout 60s, got %v", got)
	}
	if cfg.PausePoll() != time.Second || cfg.DequeueWait() != 2*time.Second {
		t.Fatalf("unexpected worker intervals %v/%v", cfg.PausePoll(), cfg.DequeueWait())
	}
	if cfg.Logs.Capacity != 50 {
		t.Fatalf("expected log capacity 50, got %d", cfg.Logs.Capacity)
	}
	if got := cfg.RegistryPath(); got != filepath.Join("Patents", "skipped_patents.json") {
		t.Fatalf("unexpected registry path %q", got)
	}
	if cfg.PubSub.TopicName != DefaultTopic || cfg.PubSub.ProjectID != "" {
		t.Fatalf("expected default topic without project, got %+v", cfg.PubSub)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  allowed_origins: ["https://admin.example.com"]
scraper:
  base_dir: /data/patents
  user_agent: real-agent
  respect_robots: true
http:
  page_timeout_seconds: 5
  download_timeout_seconds: 30
worker:
  pause_poll_ms: 250
  dequeue_wait_ms: 500
logs:
  capacity: 10
storage:
  gcs_bucket: bucket
  prefix: mirror
pubsub:
  project_id: proj
  topic_name: patents-done
db:
  dsn: postgres://localhost/patents
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || len(cfg.Server.AllowedOrigins) != 1 {
		t.Fatalf("expected server overrides, got %+v", cfg.Server)
	}
	if cfg.Scraper.BaseDir != "/data/patents" || !cfg.Scraper.RespectRobots {
		t.Fatalf("expected scraper overrides, got %+v", cfg.Scraper)
	}
	if cfg.PageTimeout() != 5*time.Second || cfg.DownloadTimeout() != 30*time.Second {
		t.Fatalf("expected timeout overrides")
	}
	if cfg.PausePoll() != 250*time.Millisecond || cfg.DequeueWait() != 500*time.Millisecond {
		t.Fatalf("expected worker overrides")
	}
	if cfg.Logs.Capacity != 10 || cfg.Logging.Development {
		t.Fatalf("expected logs/logging overrides")
	}
	if cfg.Storage.GCSBucket != "bucket" || cfg.PubSub.TopicName != "patents-done" {
		t.Fatalf("expected storage/pubsub overrides")
	}
	if cfg.DB.DSN == "" || cfg.DB.Table != "patents" {
		t.Fatalf("expected db dsn with default table, got %+v", cfg.DB)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8001},
		Scraper: ScraperConfig{BaseDir: "Patents"},
		HTTP:    HTTPConfig{PageTimeoutSeconds: 20, DownloadTimeoutSeconds: 60},
		Worker:  WorkerConfig{PausePollMs: 1000, DequeueWaitMs: 2000},
		Logs:    LogsConfig{Capacity: 50},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}
	topicOnly := base
	topicOnly.PubSub.TopicName = DefaultTopic
	if err := topicOnly.Validate(); err != nil {
		t.Fatalf("topic without project should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"missing base dir", func(c *Config) { c.Scraper.BaseDir = " " }, "scraper.base_dir"},
		{"invalid page timeout", func(c *Config) { c.HTTP.PageTimeoutSeconds = 0 }, "http.page_timeout_seconds"},
		{"invalid download timeout", func(c *Config) { c.HTTP.DownloadTimeoutSeconds = -1 }, "http.download_timeout_seconds"},
		{"invalid worker interval", func(c *Config) { c.Worker.DequeueWaitMs = 0 }, "worker.pause_poll_ms"},
		{"invalid log capacity", func(c *Config) { c.Logs.Capacity = 0 }, "logs.capacity"},
		{"project without topic", func(c *Config) { c.PubSub.ProjectID = "p" }, "pubsub.topic_name"},
		{"dsn without table", func(c *Config) { c.DB.DSN = "postgres://x" }, "db.table"},
		{"dsn without max conns", func(c *Config) {
			c.DB.DSN = "postgres://x"
			c.DB.Table = "patents"
		}, "db.max_conns"},
		{"max conns overflow", func(c *Config) {
			c.DB.DSN = "postgres://x"
			c.DB.Table = "patents"
			c.DB.MaxConns = math.MaxInt32 + 1
		}, "db.max_conns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
