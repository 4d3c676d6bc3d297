// Package config loads and validates collector configuration via Viper.
package config

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Logs    LogsConfig    `mapstructure:"logs"`
	Logging LoggingConfig `mapstructure:"logging"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ScraperConfig governs where pages come from and where artifacts land.
type ScraperConfig struct {
	BaseDir        string `mapstructure:"base_dir"`
	SiteRoot       string `mapstructure:"site_root"`
	UserAgent      string `mapstructure:"user_agent"`
	AcceptLanguage string `mapstructure:"accept_language"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
}

// HTTPConfig configures outbound request timeouts.
type HTTPConfig struct {
	PageTimeoutSeconds     int `mapstructure:"page_timeout_seconds"`
	DownloadTimeoutSeconds int `mapstructure:"download_timeout_seconds"`
}

// WorkerConfig tunes the worker loop's wait intervals.
type WorkerConfig struct {
	PausePollMs   int `mapstructure:"pause_poll_ms"`
	DequeueWaitMs int `mapstructure:"dequeue_wait_ms"`
}

// LogsConfig sizes the operator log buffer.
type LogsConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// StorageConfig enables the optional GCS artifact mirror.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls the optional Postgres patent index.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// DefaultTopic names the completion-event topic. Without a Pub/Sub project
// events go to the in-process publisher.
const DefaultTopic = "patent-completions"

// PubSubConfig holds metadata for completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PATENTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8001)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("scraper.base_dir", "Patents")
	v.SetDefault("scraper.site_root", "https://patents.google.com")
	v.SetDefault("scraper.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36")
	v.SetDefault("scraper.accept_language", "zh-CN,zh;q=0.9,en;q=0.8")
	v.SetDefault("scraper.respect_robots", false)
	v.SetDefault("http.page_timeout_seconds", 20)
	v.SetDefault("http.download_timeout_seconds", 60)
	v.SetDefault("worker.pause_poll_ms", 1000)
	v.SetDefault("worker.dequeue_wait_ms", 2000)
	v.SetDefault("logs.capacity", 50)
	v.SetDefault("logging.development", true)
	v.SetDefault("storage.prefix", "patents")
	v.SetDefault("db.table", "patents")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.topic_name", DefaultTopic)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if strings.TrimSpace(c.Scraper.BaseDir) == "" {
		return fmt.Errorf("scraper.base_dir must be set")
	}
	if c.HTTP.PageTimeoutSeconds <= 0 {
		return fmt.Errorf("http.page_timeout_seconds must be > 0")
	}
	if c.HTTP.DownloadTimeoutSeconds <= 0 {
		return fmt.Errorf("http.download_timeout_seconds must be > 0")
	}
	if c.Worker.PausePollMs <= 0 || c.Worker.DequeueWaitMs <= 0 {
		return fmt.Errorf("worker.pause_poll_ms and worker.dequeue_wait_ms must be > 0")
	}
	if c.Logs.Capacity <= 0 {
		return fmt.Errorf("logs.capacity must be > 0")
	}
	if c.PubSub.ProjectID != "" && strings.TrimSpace(c.PubSub.TopicName) == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	if c.DB.DSN != "" {
		if strings.TrimSpace(c.DB.Table) == "" {
			return fmt.Errorf("db.table must be set when db.dsn is set")
		}
		if c.DB.MaxConns <= 0 || c.DB.MaxConns > math.MaxInt32 {
			return fmt.Errorf("db.max_conns must be between 1 and %d", math.MaxInt32)
		}
	}
	return nil
}

// PageTimeout is the per-page fetch budget.
func (c Config) PageTimeout() time.Duration {
	return time.Duration(c.HTTP.PageTimeoutSeconds) * time.Second
}

// DownloadTimeout is the per-artifact download budget.
func (c Config) DownloadTimeout() time.Duration {
	return time.Duration(c.HTTP.DownloadTimeoutSeconds) * time.Second
}

// PausePoll is how often a paused worker re-checks its gate.
func (c Config) PausePoll() time.Duration {
	return time.Duration(c.Worker.PausePollMs) * time.Millisecond
}

// DequeueWait bounds how long an idle worker waits for a task.
func (c Config) DequeueWait() time.Duration {
	return time.Duration(c.Worker.DequeueWaitMs) * time.Millisecond
}

// RegistryPath is where the skip registry lives.
func (c Config) RegistryPath() string {
	return filepath.Join(c.Scraper.BaseDir, "skipped_patents.json")
}
