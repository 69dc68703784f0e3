// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Agent      AgentConfig      `mapstructure:"agent" yaml:"agent"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint" yaml:"checkpoint"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// AgentConfig holds settings for the goal execution loop and its LLM backend.
type AgentConfig struct {
	// MaxGoalRetries overrides the per-goal retry budget when positive.
	MaxGoalRetries int `mapstructure:"max_goal_retries" yaml:"max_goal_retries"`

	// CheckpointEvery saves a checkpoint after this many completed goals.
	CheckpointEvery int `mapstructure:"checkpoint_every" yaml:"checkpoint_every"`

	// GoalTimeout bounds a single attempt at one goal.
	GoalTimeout time.Duration `mapstructure:"goal_timeout" yaml:"goal_timeout"`

	// DryRun parses and prints the plan without touching a browser.
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`

	LLM LLMConfig `mapstructure:"llm" yaml:"llm"`
}

// LLMProvider identifies the LLM backend.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderNone   LLMProvider = "none"
)

// LLMConfig configures the language-model client used to turn goals into
// browser commands when the deterministic classifier cannot.
type LLMConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// BrowserConfig holds settings for the headless browser sessions.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	DisableCache      bool           `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors   bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration  `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	UserAgent         string         `mapstructure:"user_agent" yaml:"user_agent"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
}

// CheckpointConfig controls the on-disk resume snapshots.
type CheckpointConfig struct {
	// Dir may start with "~"; NewConfigFromViper expands it.
	Dir    string        `mapstructure:"dir" yaml:"dir"`
	MaxAge time.Duration `mapstructure:"max_age" yaml:"max_age"`
}

// DatabaseConfig holds the optional run-history database connection.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pilot-cli")
	v.SetDefault("logger.log_file", "pilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Agent --
	v.SetDefault("agent.max_goal_retries", 0)
	v.SetDefault("agent.checkpoint_every", 1)
	v.SetDefault("agent.goal_timeout", "2m")
	v.SetDefault("agent.dry_run", false)
	v.SetDefault("agent.llm.provider", "gemini")
	v.SetDefault("agent.llm.model", "gemini-2.5-flash")
	v.SetDefault("agent.llm.endpoint", "https://generativelanguage.googleapis.com")
	v.SetDefault("agent.llm.api_timeout", "60s")
	v.SetDefault("agent.llm.temperature", 0.2)
	v.SetDefault("agent.llm.max_tokens", 1024)
	v.SetDefault("agent.llm.max_retries", 3)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.post_load_wait", "2s")

	// -- Checkpoint --
	v.SetDefault("checkpoint.dir", "~/.pilot/checkpoints")
	v.SetDefault("checkpoint.max_age", "168h")

	// -- Database --
	v.SetDefault("database.url", "")
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("agent.llm.api_key", "PILOT_LLM_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("database.url", "PILOT_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the key if Unmarshal didn't pick it up
	if cfg.Agent.LLM.APIKey == "" {
		if k := os.Getenv("PILOT_LLM_API_KEY"); k != "" {
			cfg.Agent.LLM.APIKey = k
		} else {
			cfg.Agent.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	dir, err := homedir.Expand(cfg.Checkpoint.Dir)
	if err != nil {
		return nil, fmt.Errorf("error expanding checkpoint dir: %w", err)
	}
	cfg.Checkpoint.Dir = dir

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Agent.CheckpointEvery <= 0 {
		return fmt.Errorf("agent.checkpoint_every must be a positive integer")
	}
	if c.Agent.GoalTimeout <= 0 {
		return fmt.Errorf("agent.goal_timeout must be a positive duration")
	}
	if c.Checkpoint.Dir == "" {
		return fmt.Errorf("checkpoint.dir is a required configuration field")
	}
	if err := c.Agent.LLM.Validate(); err != nil {
		return fmt.Errorf("agent.llm configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the LLM settings. The "none" provider runs the agent on
// the deterministic classifier alone and needs no credentials.
func (l *LLMConfig) Validate() error {
	switch l.Provider {
	case ProviderNone:
		return nil
	case ProviderGemini:
		if l.Model == "" {
			return fmt.Errorf("model is required for the gemini provider")
		}
		if l.Endpoint == "" {
			return fmt.Errorf("endpoint is required for the gemini provider")
		}
		if l.APITimeout <= 0 {
			return fmt.Errorf("api_timeout must be a positive duration")
		}
		return nil
	default:
		return fmt.Errorf("unknown llm provider %q", l.Provider)
	}
}
