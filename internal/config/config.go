// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Engine      EngineConfig      `mapstructure:"engine" yaml:"engine"`
	Portal      PortalConfig      `mapstructure:"portal" yaml:"portal"`
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output"`
}

// LoggerConfig controls the zap logger setup.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the Chrome instance the cycles run against.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	DownloadTimeout   time.Duration `mapstructure:"download_timeout" yaml:"download_timeout"`
}

// EngineConfig holds the bounded-wait knobs of the interaction engine.
// Every wait in a cycle is derived from one of these; there are no unbounded waits.
type EngineConfig struct {
	// CandidateTimeout bounds a single selector-candidate probe. Short on purpose:
	// a present element resolves near-instantly, so a miss is information, not a stall.
	CandidateTimeout time.Duration `mapstructure:"candidate_timeout" yaml:"candidate_timeout"`
	// VariantProbeTimeout bounds the post-export modal probe.
	VariantProbeTimeout time.Duration `mapstructure:"variant_probe_timeout" yaml:"variant_probe_timeout"`
	// SettleDelay is the pause between dismissing a date picker and re-reading the field.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	// RetryWait is the extra wait before the single "view file" re-resolution attempt.
	RetryWait time.Duration `mapstructure:"retry_wait" yaml:"retry_wait"`
	// PollInterval is the exported-queries list poll tick.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// MaxPollAttempts is the poll retry budget for one cycle.
	MaxPollAttempts int `mapstructure:"max_poll_attempts" yaml:"max_poll_attempts"`
	// RowGraceTicks is how many consecutive empty-list ticks are tolerated
	// before a missing row escalates.
	RowGraceTicks int `mapstructure:"row_grace_ticks" yaml:"row_grace_ticks"`
	// CellTimeout bounds a single row-cell read.
	CellTimeout time.Duration `mapstructure:"cell_timeout" yaml:"cell_timeout"`
	// RowFreshness is the window within which the first row's timestamp must fall
	// to be accepted as the export this cycle produced.
	RowFreshness time.Duration `mapstructure:"row_freshness" yaml:"row_freshness"`
}

// PortalConfig points at the ARCA portal.
type PortalConfig struct {
	LoginURL string `mapstructure:"login_url" yaml:"login_url"`
}

// CredentialsConfig carries the portal credentials. The Clave is never logged.
type CredentialsConfig struct {
	CUIT       string `mapstructure:"cuit" yaml:"cuit"`
	Clave      string `mapstructure:"clave" yaml:"clave"`
	TargetCUIT string `mapstructure:"target_cuit" yaml:"target_cuit"`
}

// OutputConfig controls where downloaded exports and checkpoints land.
type OutputConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SetDefaults registers every default with viper. Called before Load.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "retex")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.navigation_timeout", 90*time.Second)
	v.SetDefault("browser.download_timeout", 60*time.Second)

	v.SetDefault("engine.candidate_timeout", 3*time.Second)
	v.SetDefault("engine.variant_probe_timeout", 3*time.Second)
	v.SetDefault("engine.settle_delay", 300*time.Millisecond)
	v.SetDefault("engine.retry_wait", 2*time.Second)
	v.SetDefault("engine.poll_interval", 10*time.Second)
	v.SetDefault("engine.max_poll_attempts", 60)
	v.SetDefault("engine.row_grace_ticks", 3)
	v.SetDefault("engine.cell_timeout", 3*time.Second)
	v.SetDefault("engine.row_freshness", 5*time.Minute)

	v.SetDefault("portal.login_url", "https://auth.afip.gob.ar/contribuyente_/login.xhtml")

	home, err := homedir.Dir()
	if err != nil {
		home = "."
	}
	v.SetDefault("output.dir", filepath.Join(home, "Downloads", "retex"))
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would break the engine's bounded-wait model.
func (c *Config) Validate() error {
	if c.Engine.CandidateTimeout <= 0 {
		return fmt.Errorf("engine.candidate_timeout must be positive")
	}
	if c.Engine.VariantProbeTimeout <= 0 {
		return fmt.Errorf("engine.variant_probe_timeout must be positive")
	}
	if c.Engine.MaxPollAttempts <= 0 {
		return fmt.Errorf("engine.max_poll_attempts must be positive")
	}
	if c.Engine.PollInterval < 0 {
		return fmt.Errorf("engine.poll_interval must not be negative")
	}
	if c.Portal.LoginURL == "" {
		return fmt.Errorf("portal.login_url must not be empty")
	}
	return nil
}
