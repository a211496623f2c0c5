package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Persona    PersonaConfig    `mapstructure:"persona"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ChatPath        string        `mapstructure:"chat_path"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// UpstreamConfig describes the completion provider. The API key is not part of
// it: only the name of the environment variable holding it.
type UpstreamConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKeyEnv   string        `mapstructure:"api_key_env"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Window          time.Duration `mapstructure:"window"`
	WindowMS        int64         `mapstructure:"window_ms"`
	MaxRequests     int           `mapstructure:"max_requests"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxEntries      int           `mapstructure:"max_entries"`
}

type PersonaConfig struct {
	Name        string `mapstructure:"name"`
	Owner       string `mapstructure:"owner"`
	ProfileFile string `mapstructure:"profile_file"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
	Directory       string   `mapstructure:"directory"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.chat_path", "/api/chat")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("upstream.base_url", "https://api.openai.com/v1")
	v.SetDefault("upstream.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("upstream.model", "gpt-4o-mini")
	v.SetDefault("upstream.temperature", 0.6)
	v.SetDefault("upstream.max_tokens", 450)
	v.SetDefault("upstream.timeout", 30*time.Second)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.window_ms", 0)
	v.SetDefault("rate_limit.max_requests", 20)
	v.SetDefault("rate_limit.cleanup_interval", time.Minute)
	v.SetDefault("rate_limit.max_entries", 10000)

	v.SetDefault("persona.name", "Ekin")
	v.SetDefault("persona.owner", "Ekin Alcar")
	v.SetDefault("persona.profile_file", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file.path", "logs/server.log")
	v.SetDefault("logging.file.max_size", 100)
	v.SetDefault("logging.file.max_backups", 3)
	v.SetDefault("logging.file.max_age", 28)

	v.SetDefault("monitoring.metrics.enabled", false)
	v.SetDefault("monitoring.metrics.port", 9090)
	v.SetDefault("monitoring.metrics.path", "/metrics")

	v.SetDefault("i18n.enabled", false)
	v.SetDefault("i18n.default_language", "en")
	v.SetDefault("i18n.languages", []string{})
	v.SetDefault("i18n.directory", "configs/i18n")
}

// LoadConfig loads configuration from file and environment variables.
// A missing file is not an error; defaults and environment apply.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	v.BindEnv("server.port", "PORT")
	v.BindEnv("upstream.base_url", "UPSTREAM_BASE_URL")
	v.BindEnv("upstream.model", "UPSTREAM_MODEL")
	v.BindEnv("rate_limit.max_requests", "RATE_LIMIT_MAX_REQUESTS")
	v.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	v.BindEnv("logging.level", "LOG_LEVEL")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// window_ms takes precedence so configs written against the millisecond
	// option keep working.
	if config.RateLimit.WindowMS > 0 {
		config.RateLimit.Window = time.Duration(config.RateLimit.WindowMS) * time.Millisecond
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 {
		return fmt.Errorf("server port must be positive")
	}
	if !strings.HasPrefix(cfg.Server.ChatPath, "/") {
		return fmt.Errorf("chat path must start with '/': %q", cfg.Server.ChatPath)
	}
	if cfg.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream base URL is required")
	}
	if cfg.Upstream.APIKeyEnv == "" {
		return fmt.Errorf("upstream API key variable name is required")
	}
	if cfg.Upstream.Model == "" {
		return fmt.Errorf("upstream model is required")
	}
	if cfg.Upstream.Temperature < 0 || cfg.Upstream.Temperature > 2 {
		return fmt.Errorf("upstream temperature must be within [0, 2], got %v", cfg.Upstream.Temperature)
	}
	if cfg.Upstream.MaxTokens <= 0 {
		return fmt.Errorf("upstream max tokens must be positive")
	}
	if cfg.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive")
	}
	if cfg.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	if cfg.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate limit max requests must be positive")
	}
	return nil
}
