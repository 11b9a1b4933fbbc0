package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// FileEnv names the environment variable pointing at an optional YAML file
// whose values sit underneath the environment.
const FileEnv = "PORTAL_CONFIG_FILE"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	CORS       CORSConfig       `yaml:"cors"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Weather    WeatherConfig    `yaml:"weather"`
	Email      EmailConfig      `yaml:"email"`
	Controller ControllerConfig `yaml:"controller"`
	Proxy      ProxyConfig      `yaml:"proxy"`
	Terminal   TerminalConfig   `yaml:"terminal"`
	Logging    LogConfig        `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" yaml:"port"`
	Host            string        `envconfig:"HOST" yaml:"host"`
	PublicDir       string        `envconfig:"PUBLIC_DIR" yaml:"public_dir"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`
}

// AuthConfig holds the shared secret gating /api routes.
type AuthConfig struct {
	APIKey string `envconfig:"API_AUTH_KEY" yaml:"api_key"`
	// TerminalRequireKey extends the shared-secret check to the terminal socket.
	TerminalRequireKey bool `envconfig:"TERMINAL_REQUIRE_KEY" yaml:"terminal_require_key"`
}

// CORSConfig holds cross-origin settings. Origin may be "*" or a comma
// separated list.
type CORSConfig struct {
	Origin string `envconfig:"CORS_ORIGIN" yaml:"origin"`
}

// RateLimitConfig holds /api rate limiting configuration.
type RateLimitConfig struct {
	Max     int           `envconfig:"RATE_LIMIT" yaml:"max"`
	Window  time.Duration `envconfig:"RATE_LIMIT_WINDOW" yaml:"window"`
	Enabled bool          `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled"`
}

// Flag is a switch read from the environment. Only "true", in any case, turns
// it on; every other value, "yes" and "1" included, leaves it off.
type Flag bool

// Decode implements envconfig.Decoder.
func (f *Flag) Decode(value string) error {
	*f = Flag(strings.EqualFold(strings.TrimSpace(value), "true"))
	return nil
}

// WeatherConfig holds the weather relay settings.
type WeatherConfig struct {
	Enabled  Flag   `envconfig:"WEATHER_ENABLED" yaml:"enabled"`
	Location string `envconfig:"WEATHER_LOCATION" yaml:"location"`
	Units    string `envconfig:"WEATHER_UNITS" yaml:"units"`
	APIKey   string `envconfig:"OPENWEATHER_API" yaml:"api_key"`
	BaseURL  string `envconfig:"OPENWEATHER_URL" yaml:"base_url"`
	// RatePerSecond caps outbound lookups; zero means unlimited.
	RatePerSecond float64 `envconfig:"OPENWEATHER_RATE_LIMIT" yaml:"rate_per_second"`
	// BreakerThreshold consecutive failures skip lookups for BreakerCooldown.
	// Zero, the default, leaves the breaker off.
	BreakerThreshold int           `envconfig:"WEATHER_BREAKER_THRESHOLD" yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `envconfig:"WEATHER_BREAKER_COOLDOWN" yaml:"breaker_cooldown"`
}

// EmailConfig holds the transactional email provider settings.
type EmailConfig struct {
	APIKey  string `envconfig:"RESEND_API" yaml:"api_key"`
	From    string `envconfig:"EMAIL_FROM" yaml:"from"`
	To      string `envconfig:"EMAIL_ADMIN" yaml:"to"`
	BaseURL string `envconfig:"RESEND_URL" yaml:"base_url"`
	// RatePerSecond caps outbound sends; zero means unlimited.
	RatePerSecond float64 `envconfig:"RESEND_RATE_LIMIT" yaml:"rate_per_second"`
	// BreakerThreshold consecutive failures fail sends fast for
	// BreakerCooldown. Zero, the default, leaves the breaker off.
	BreakerThreshold int           `envconfig:"EMAIL_BREAKER_THRESHOLD" yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `envconfig:"EMAIL_BREAKER_COOLDOWN" yaml:"breaker_cooldown"`
}

// ControllerConfig identifies the controller this portal runs on.
type ControllerConfig struct {
	Serial   string `envconfig:"CONTROLLER_SERIAL" yaml:"serial"`
	Location string `envconfig:"LOCATION" yaml:"location"`
}

// ProxyConfig holds the flow editor reverse proxy settings.
type ProxyConfig struct {
	Target string `envconfig:"NODE_RED_URL" yaml:"target"`
	Prefix string `envconfig:"NODE_RED_PREFIX" yaml:"prefix"`
}

// TerminalConfig holds shell settings for terminal sessions.
type TerminalConfig struct {
	Shell   string `envconfig:"TERMINAL_SHELL" yaml:"shell"`
	HomeDir string `envconfig:"HOME" yaml:"home_dir"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development"`
	ToFile      bool   `envconfig:"LOG_TO_FILE" yaml:"to_file"`
	Path        string `envconfig:"LOG_PATH" yaml:"path"`
	RecentSize  int    `envconfig:"LOG_RECENT_SIZE" yaml:"recent_size"`
}

// Load builds the configuration: defaults, then the optional YAML file named
// by PORTAL_CONFIG_FILE, then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
		},
		CORS: CORSConfig{
			Origin: "*",
		},
		RateLimit: RateLimitConfig{
			Max:     100,
			Window:  15 * time.Minute,
			Enabled: true,
		},
		Weather: WeatherConfig{
			Location: "New York,US",
			Units:    "imperial",
			BaseURL:  "https://api.openweathermap.org/data/2.5",
		},
		Email: EmailConfig{
			From:    "noreply@automatacontrols.com",
			To:      "admin@automatacontrols.com",
			BaseURL: "https://api.resend.com",
		},
		Controller: ControllerConfig{
			Serial:   "AutomataNexusBms-XXXXXX",
			Location: "Unknown",
		},
		Proxy: ProxyConfig{
			Target: "http://localhost:1880",
			Prefix: "/node-red",
		},
		Terminal: TerminalConfig{
			Shell: "bash",
		},
		Logging: LogConfig{
			Level:      "info",
			Path:       "/var/log",
			RecentSize: 500,
		},
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %q", c.Server.Port))
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Max <= 0 {
			errs = append(errs, fmt.Errorf("rate limit must be positive, got %d", c.RateLimit.Max))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window))
		}
	}
	if u, err := url.Parse(c.Proxy.Target); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid proxy target %q", c.Proxy.Target))
	}
	if !strings.HasPrefix(c.Proxy.Prefix, "/") || c.Proxy.Prefix == "/" {
		errs = append(errs, fmt.Errorf("invalid proxy prefix %q", c.Proxy.Prefix))
	}
	if c.Weather.RatePerSecond < 0 || c.Email.RatePerSecond < 0 {
		errs = append(errs, errors.New("outbound rate limits must not be negative"))
	}
	if c.Weather.BreakerThreshold < 0 || c.Email.BreakerThreshold < 0 {
		errs = append(errs, errors.New("breaker thresholds must not be negative"))
	}
	if c.Logging.RecentSize <= 0 {
		errs = append(errs, fmt.Errorf("recent log size must be positive, got %d", c.Logging.RecentSize))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// Redacted returns a copy with every secret masked.
func (c *Config) Redacted() Config {
	out := *c
	out.Auth.APIKey = mask(out.Auth.APIKey)
	out.Weather.APIKey = mask(out.Weather.APIKey)
	out.Email.APIKey = mask(out.Email.APIKey)
	return out
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
