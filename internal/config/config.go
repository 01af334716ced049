package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort     = 2233
	defaultEnv      = "development"
	defaultDSN      = "root:password@tcp(127.0.0.1:3306)/shotlin?charset=utf8mb4&parseTime=True&loc=Local"
	defaultRedisURL = "redis://localhost:6379/0"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int      `yaml:"port"`
	DSN            string   `yaml:"dsn"` // MySQL DSN
	RedisURL       string   `yaml:"redis_url"`
	Env            string   `yaml:"env"` // "development" | "production"
	AllowedOrigins []string `yaml:"allowed_origins"`
	AccessKey      string   `yaml:"access_key"` // exchanged for dashboard JWTs
	JWTSecret      string   `yaml:"jwt_secret"`
	GeoIPEndpoint  string   `yaml:"geoip_endpoint"`
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "development")
}

// Load reads and validates the YAML config file at configPath.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaults()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaults() AppConfig {
	return AppConfig{
		Port:     defaultPort,
		DSN:      defaultDSN,
		RedisURL: defaultRedisURL,
		Env:      defaultEnv,
	}
}

func (c *AppConfig) validate(path string) error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d in %q, expected 1-65535", c.Port, path)
	}
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("dsn must not be empty in %q", path)
	}
	if strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("redis_url must not be empty in %q", path)
	}
	env := strings.ToLower(strings.TrimSpace(c.Env))
	if env != "development" && env != "production" {
		return fmt.Errorf("invalid env %q in %q, expected development or production", c.Env, path)
	}
	if !c.IsDev() && strings.TrimSpace(c.AccessKey) == "" {
		return fmt.Errorf("access_key must be set in %q when env is production", path)
	}
	return nil
}
