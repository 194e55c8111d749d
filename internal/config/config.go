// Package config loads the server configuration.
//
// Values come from an optional YAML file and are then overridden by
// environment variables, so a deployment can ship one file and patch single
// settings per environment:
//
//	server:
//	  port: 8080
//	database:
//	  driver: postgres
//	  dsn: postgres://app:secret@db/app?sslmode=disable
//
//	DATABASE_DSN=postgres://... PORT=9000 imitation serve --config prod.yaml
//
// Every field has a default, so running with no file at all gives a local
// SQLite setup.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	SessionStoreSQL   = "sql"
	SessionStoreRedis = "redis"
)

type Config struct {
	Env string `yaml:"env" env:"APP_ENV" env-default:"development"`

	Server struct {
		Host            string        `yaml:"host" env:"HOST" env-default:""`
		Port            int           `yaml:"port" env:"PORT" env-default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" env-default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT" env-default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
	} `yaml:"server"`

	Database struct {
		Driver          string        `yaml:"driver" env:"DATABASE_DRIVER" env-default:"sqlite"`
		DSN             string        `yaml:"dsn" env:"DATABASE_DSN" env-default:"data/imitation.db"`
		MaxOpenConns    int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS" env-default:"20"`
		MaxIdleConns    int           `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS" env-default:"5"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME" env-default:"30m"`
	} `yaml:"database"`

	Session struct {
		Store string        `yaml:"store" env:"SESSION_STORE" env-default:"sql"`
		TTL   time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"168h"`
	} `yaml:"session"`

	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
		Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
		DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	} `yaml:"redis"`

	Auth struct {
		// JWTSecret enables Bearer identity tokens when set.
		JWTSecret   string `yaml:"jwt_secret" env:"SUPABASE_JWT_SECRET" env-default:""`
		JWTAudience string `yaml:"jwt_audience" env:"SUPABASE_JWT_AUDIENCE" env-default:"authenticated"`

		GitHubClientID     string `yaml:"github_client_id" env:"GITHUB_CLIENT_ID" env-default:""`
		GitHubClientSecret string `yaml:"github_client_secret" env:"GITHUB_CLIENT_SECRET" env-default:""`
		GitHubCallbackURL  string `yaml:"github_callback_url" env:"GITHUB_CALLBACK_URL" env-default:""`
	} `yaml:"auth"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
	} `yaml:"cors"`

	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	} `yaml:"log"`
}

// Load reads path (when non-empty) and then the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}

	switch c.Session.Store {
	case SessionStoreSQL, SessionStoreRedis:
	default:
		errs = append(errs, fmt.Errorf("session.store must be sql or redis, got %q", c.Session.Store))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Production reports whether cookies must be marked Secure.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// GitHubEnabled reports whether the OAuth routes should be mounted.
func (c *Config) GitHubEnabled() bool {
	return c.Auth.GitHubClientID != "" && c.Auth.GitHubClientSecret != ""
}

// Addr is the listen address, e.g. ":8080".
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
