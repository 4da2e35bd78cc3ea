// Package config loads client settings from defaults, an optional YAML file,
// a .env file and NOTIFY_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/collabhub/notifyclient/pkg/connection/rews"
	"github.com/collabhub/notifyclient/pkg/constants"
)

const EnvPrefix = "NOTIFY"

const (
	StrategyExponential = "exponential"
	StrategyFixed       = "fixed"
)

type APIConfig struct {
	// BaseURL is the API root, e.g. http://localhost:80/.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// NotificationsPath is resolved against BaseURL.
	NotificationsPath string `mapstructure:"notifications_path" yaml:"notifications_path"`

	// WSURL is the push channel endpoint, without the token.
	WSURL string `mapstructure:"ws_url" yaml:"ws_url"`

	AuthScheme string        `mapstructure:"auth_scheme" yaml:"auth_scheme"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type ReconnectConfig struct {
	// Strategy is "exponential" or "fixed". Fixed uses InitialDelay every time.
	Strategy     string        `mapstructure:"strategy" yaml:"strategy"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	Multiplier   float64       `mapstructure:"multiplier" yaml:"multiplier"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Jitter       bool          `mapstructure:"jitter" yaml:"jitter"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	// File is appended to; empty means stdout.
	File string `mapstructure:"file" yaml:"file"`
}

type KeyringConfig struct {
	Service string `mapstructure:"service" yaml:"service"`
	// Dir and Password are used by the encrypted-file backend, the fallback
	// when no system keyring is available.
	Dir      string `mapstructure:"dir" yaml:"dir"`
	Password string `mapstructure:"password" yaml:"password"`
}

type Config struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Reconnect ReconnectConfig `mapstructure:"reconnect" yaml:"reconnect"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Keyring   KeyringConfig   `mapstructure:"keyring" yaml:"keyring"`
}

// DefaultPath returns ~/.config/notifyclient/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "notifyclient", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:80/")
	v.SetDefault("api.notifications_path", "api/v1/notifications/")
	v.SetDefault("api.ws_url", "ws://localhost:80/ws/notifications/")
	v.SetDefault("api.auth_scheme", constants.DefaultAuthScheme)
	v.SetDefault("api.timeout", constants.DefaultHTTPTimeout)

	v.SetDefault("reconnect.strategy", StrategyExponential)
	v.SetDefault("reconnect.initial_delay", constants.DefaultInitialDelay)
	v.SetDefault("reconnect.multiplier", constants.DefaultMultiplier)
	v.SetDefault("reconnect.max_delay", constants.DefaultMaxDelay)
	v.SetDefault("reconnect.max_attempts", constants.DefaultMaxAttempts)
	v.SetDefault("reconnect.jitter", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("keyring.service", "notifyclient")
	v.SetDefault("keyring.dir", "~/.config/notifyclient/credentials")
	v.SetDefault("keyring.password", "")
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("BUG: config defaults do not decode: %v", err))
	}
	cfg.Keyring.Dir = expandHome(cfg.Keyring.Dir)
	return cfg
}

// Load reads path, if it exists, on top of the defaults.
// An empty path skips the file. Environment variables win over both.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Keyring.Dir = expandHome(cfg.Keyring.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != constants.HTTPScheme && u.Scheme != constants.HTTPSecureScheme) {
		errs = append(errs, fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL))
	}
	if c.API.WSURL == "" {
		errs = append(errs, errors.New("api.ws_url is required"))
	} else if u, err := url.Parse(c.API.WSURL); err != nil || (u.Scheme != constants.WebsocketScheme && u.Scheme != constants.SecureWebsocketScheme) {
		errs = append(errs, fmt.Errorf("api.ws_url must be a ws(s) URL, got %q", c.API.WSURL))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}

	r := c.Reconnect
	switch r.Strategy {
	case StrategyExponential, StrategyFixed:
	default:
		errs = append(errs, fmt.Errorf("reconnect.strategy must be %q or %q, got %q", StrategyExponential, StrategyFixed, r.Strategy))
	}
	if r.InitialDelay <= 0 {
		errs = append(errs, errors.New("reconnect.initial_delay must be positive"))
	}
	if r.MaxDelay <= 0 {
		errs = append(errs, errors.New("reconnect.max_delay must be positive"))
	}
	if r.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("reconnect.multiplier must be at least 1, got %v", r.Multiplier))
	}
	if r.MaxAttempts < 0 {
		errs = append(errs, errors.New("reconnect.max_attempts must not be negative"))
	}

	return errors.Join(errs...)
}

// NotificationsURL is the REST collection endpoint.
func (c *Config) NotificationsURL() (string, error) {
	base, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(c.API.NotificationsPath)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// Retryer builds the reconnection strategy.
func (r ReconnectConfig) Retryer() rews.Retryer {
	if r.Strategy == StrategyFixed {
		return rews.NewFixedDelayRetryer(r.InitialDelay, r.MaxAttempts)
	}
	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = r.InitialDelay
	retryer.Multiplier = r.Multiplier
	retryer.MaxDelay = r.MaxDelay
	retryer.MaxAttempts = r.MaxAttempts
	retryer.Jitter = r.Jitter
	return retryer
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
