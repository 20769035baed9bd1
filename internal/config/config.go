package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ricirt/ping-queue/internal/domain"
	"github.com/ricirt/ping-queue/internal/site"
)

// EnvPrefix marks environment variables that override file settings.
// Nested keys are separated by a double underscore: PINGQ_DATABASE__URL.
const EnvPrefix = "PINGQ_"

// Config holds all runtime configuration. Every field has a sensible default;
// only database.url is required.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Pings    PingsConfig    `koanf:"pings"`
	Site     SiteConfig     `koanf:"site"`
}

type ServerConfig struct {
	Port            string        `koanf:"port" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL      string `koanf:"url" validate:"required"`
	MaxConns int32  `koanf:"max_conns" validate:"gte=1"`
	MinConns int32  `koanf:"min_conns" validate:"gte=0"`
}

type LogConfig struct {
	Level       string `koanf:"level" validate:"oneof=debug info warn error"`
	Development bool   `koanf:"development"`
}

// PingsConfig controls ping queue processing.
type PingsConfig struct {
	SuspendProcessing bool   `koanf:"suspend_processing"`
	LogOnly           bool   `koanf:"log_only"`
	MaxAttempts       int    `koanf:"max_attempts" validate:"gte=1"`
	UserAgent         string `koanf:"user_agent"`

	// ProcessInterval of zero disables the background scheduler.
	ProcessInterval time.Duration `koanf:"process_interval" validate:"gte=0"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`

	// RateLimit is the maximum pings per second sent to a single target; 0 = unlimited.
	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`

	InitialTargets []TargetConfig `koanf:"initial_targets" validate:"dive"`
}

// TargetConfig seeds a common ping target on first start.
type TargetConfig struct {
	Name string `koanf:"name" validate:"required"`
	URL  string `koanf:"url" validate:"required,url"`
}

type SiteConfig struct {
	// AbsoluteURL is the public base URL of the site. When empty it is learned
	// from the first inbound request.
	AbsoluteURL string `koanf:"absolute_url" validate:"omitempty,url"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns: 10,
			MinConns: 2,
		},
		Log: LogConfig{Level: "info"},
		Pings: PingsConfig{
			MaxAttempts:     3,
			UserAgent:       "ping-queue/1.0",
			ProcessInterval: 5 * time.Minute,
			Timeout:         10 * time.Second,
			RateLimit:       1,
		},
	}
}

var validate = validator.New()

// Load builds the configuration from defaults, the optional YAML file at path,
// and PINGQ_* environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// envKey maps PINGQ_PINGS__LOG_ONLY to pings.log_only.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// PolicyLoader re-reads the configuration before every pass so that suspend,
// log-only and attempt limits can be changed without a restart.
type PolicyLoader struct {
	path     string
	resolver *site.Resolver
}

func NewPolicyLoader(path string, resolver *site.Resolver) *PolicyLoader {
	return &PolicyLoader{path: path, resolver: resolver}
}

// Policy implements worker.PolicySource.
func (l *PolicyLoader) Policy(_ context.Context) (domain.Policy, error) {
	cfg, err := Load(l.path)
	if err != nil {
		return domain.Policy{}, err
	}
	return cfg.Policy(l.resolver), nil
}

// Policy extracts the processing policy. resolver may be nil.
func (c *Config) Policy(resolver *site.Resolver) domain.Policy {
	baseURL := c.Site.AbsoluteURL
	if resolver != nil {
		baseURL = resolver.Resolve(baseURL)
	}
	return domain.Policy{
		Suspended:   c.Pings.SuspendProcessing,
		LogOnly:     c.Pings.LogOnly,
		MaxAttempts: c.Pings.MaxAttempts,
		BaseURL:     baseURL,
	}
}
