// Package config loads and validates pdfchunker configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. PDFCHUNKER_RENDER_CHUNK_SIZE.
const EnvPrefix = "PDFCHUNKER"

// Config captures every knob of a render run.
type Config struct {
	Target  string        `mapstructure:"target"`
	Render  RenderConfig  `mapstructure:"render"`
	Browser BrowserConfig `mapstructure:"browser"`
	Health  HealthConfig  `mapstructure:"health"`
	Output  OutputConfig  `mapstructure:"output"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RenderConfig governs the pagination engine.
type RenderConfig struct {
	ChunkSize   int           `mapstructure:"chunk_size"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// BrowserConfig configures Chrome and the prepared tabs.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"`
	ExecPath          string        `mapstructure:"exec_path"`
	PrintMedia        bool          `mapstructure:"print_media"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	WaitSelector      string        `mapstructure:"wait_selector"`
	WaitUntil         string        `mapstructure:"wait_until"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	UserAgent         string        `mapstructure:"user_agent"`
	RenderQPS         float64       `mapstructure:"render_qps"`
}

// HealthConfig controls the readiness wait before printing.
type HealthConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Path     string        `mapstructure:"path"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Interval time.Duration `mapstructure:"interval"`
}

// OutputConfig names the merged document's destination.
type OutputConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig enables the Prometheus endpoint while a run is in flight.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// DBConfig controls the optional run ledger.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PubSubConfig holds the optional completion notice topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	Verbose     bool `mapstructure:"verbose"`
}

// Load builds a Config from an optional file plus the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper unmarshals and validates the configuration held by v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Browser.ExecPath == "" {
		cfg.Browser.ExecPath = chromeFromEnv()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("target", "")
	v.SetDefault("render.chunk_size", 10)
	v.SetDefault("render.concurrency", 3)
	v.SetDefault("render.timeout", 10*time.Second)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.print_media", true)
	v.SetDefault("browser.navigation_timeout", 10*time.Second)
	v.SetDefault("browser.wait_selector", "body")
	v.SetDefault("browser.wait_until", "load")
	v.SetDefault("browser.settle_delay", time.Duration(0))
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.render_qps", 0.0)
	v.SetDefault("health.enabled", true)
	v.SetDefault("health.path", "/")
	v.SetDefault("health.timeout", 10*time.Second)
	v.SetDefault("health.interval", 300*time.Millisecond)
	v.SetDefault("output.path", DefaultOutputPath())
	v.SetDefault("metrics.addr", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "pagination_runs")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.verbose", true)
}

// DefaultOutputPath is ~/Downloads/combined.pdf, or combined.pdf when the home
// directory is unknown.
func DefaultOutputPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "combined.pdf"
	}
	return filepath.Join(home, "Downloads", "combined.pdf")
}

func chromeFromEnv() string {
	for _, key := range []string{"CHROME_PATH", "PUPPETEER_EXECUTABLE_PATH"} {
		if p := strings.TrimSpace(os.Getenv(key)); p != "" {
			return p
		}
	}
	return ""
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Target) == "" {
		return fmt.Errorf("target url is required")
	}
	u, err := url.Parse(c.Target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file") {
		return fmt.Errorf("target %q must be an http, https or file url", c.Target)
	}
	if c.Render.ChunkSize <= 0 {
		return fmt.Errorf("render.chunk_size must be > 0")
	}
	if c.Render.Concurrency <= 0 {
		return fmt.Errorf("render.concurrency must be > 0")
	}
	if c.Render.Timeout < 0 {
		return fmt.Errorf("render.timeout must be >= 0")
	}
	if c.Browser.NavigationTimeout < 0 || c.Browser.SettleDelay < 0 {
		return fmt.Errorf("browser timeouts must be >= 0")
	}
	switch strings.ToLower(c.Browser.WaitUntil) {
	case "", "load", "domcontentloaded", "networkidle", "networkidle0", "networkidle2":
	default:
		return fmt.Errorf("browser.wait_until %q must be load, domcontentloaded, networkidle0 or networkidle2", c.Browser.WaitUntil)
	}
	if c.Browser.RenderQPS < 0 {
		return fmt.Errorf("browser.render_qps must be >= 0")
	}
	if c.Health.Enabled && (c.Health.Timeout <= 0 || c.Health.Interval <= 0) {
		return fmt.Errorf("health.timeout and health.interval must be > 0 when health is enabled")
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		return fmt.Errorf("output.path is required")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	return nil
}

// HealthChecked reports whether the readiness wait applies to the target.
// file:// targets are never probed.
func (c Config) HealthChecked() bool {
	return c.Health.Enabled && !strings.HasPrefix(c.Target, "file:")
}
