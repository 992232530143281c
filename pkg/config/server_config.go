// Package config provides YAML-backed configuration for the lockstep
// server and client processes, following the same load/apply-defaults/
// validate shape used throughout the dungeongate configuration packages.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dungeongate/pkg/logging"
	"gopkg.in/yaml.v3"
)

// ServerConfig is the lockstep server's configuration. The protocol
// constants here (TickHz, TurnSize, GraceMS, RequiredPlayers,
// MaxRetries) must be identical on every client connecting to this
// server; changing them is a protocol break.
type ServerConfig struct {
	Listen          string            `yaml:"listen"`
	TickHz          int               `yaml:"tick_hz"`
	TurnSize        int               `yaml:"turn_size"`
	GraceMS         int               `yaml:"grace_ms"`
	RequiredPlayers int               `yaml:"required_players"`
	CatchupCap      int               `yaml:"catchup_cap"`
	MaxRetries      int               `yaml:"max_retries"`
	MaxConnections  int               `yaml:"max_connections"`
	Logging         logging.Config    `yaml:"logging"`
	Metrics         *MetricsConfig    `yaml:"metrics"`
	Reconnect       *ReconnectConfig  `yaml:"reconnect"`
	Audit           *AuditConfig      `yaml:"audit"`
	RateLimit       *RateLimitConfig  `yaml:"rate_limit"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// ReconnectConfig controls issuance of signed reconnect tokens handed
// out in `welcome` so a dropped client can resume its identity.
type ReconnectConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Secret     string `yaml:"secret"`
	GraceSecs  int    `yaml:"grace_seconds"`
}

// AuditConfig controls the session lifecycle audit log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"` // sqlite3, mysql, postgres
	DSN     string `yaml:"dsn"`
}

// RateLimitConfig bounds connection attempts per remote IP.
type RateLimitConfig struct {
	Enabled             bool `yaml:"enabled"`
	MaxConnectionsPerIP int  `yaml:"max_connections_per_ip"`
}

// LoadServerConfig reads and validates a ServerConfig from a YAML file,
// expanding environment variable references first.
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read server config: %w", err)
	}

	var cfg ServerConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse server config: %w", err)
	}

	applyServerDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	return &cfg, nil
}

// DefaultServerConfig returns a development-friendly configuration,
// mirroring GetDefaultDevelopmentConfig in the teacher's session config.
func DefaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{}
	applyServerDefaults(cfg)
	return cfg
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Listen == "" {
		cfg.Listen = "0.0.0.0:8080"
	}
	if cfg.TickHz == 0 {
		cfg.TickHz = 30
	}
	if cfg.TurnSize == 0 {
		cfg.TurnSize = 5
	}
	if cfg.GraceMS == 0 {
		cfg.GraceMS = 500
	}
	if cfg.RequiredPlayers == 0 {
		cfg.RequiredPlayers = 1
	}
	if cfg.CatchupCap == 0 {
		cfg.CatchupCap = 10
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 1000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{Enabled: true, Port: 9100}
	}
	if cfg.Reconnect == nil {
		cfg.Reconnect = &ReconnectConfig{Enabled: true, Secret: "dev-insecure-secret", GraceSecs: 30}
	}
	if cfg.Audit == nil {
		cfg.Audit = &AuditConfig{Enabled: true, Driver: "sqlite3", DSN: "./lockstep-audit.db"}
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = &RateLimitConfig{Enabled: true, MaxConnectionsPerIP: 10}
	}
}

// Validate checks the server configuration for internal consistency.
func (c *ServerConfig) Validate() error {
	if c.TickHz < 1 {
		return fmt.Errorf("tick_hz must be at least 1")
	}
	if c.TurnSize < 1 {
		return fmt.Errorf("turn_size must be at least 1")
	}
	if c.RequiredPlayers < 1 {
		return fmt.Errorf("required_players must be at least 1")
	}
	if c.GraceMS < 0 {
		return fmt.Errorf("grace_ms cannot be negative")
	}
	if c.CatchupCap < 1 {
		return fmt.Errorf("catchup_cap must be at least 1")
	}
	return nil
}

// FrameInterval is the wall-clock duration of one logical frame.
func (c *ServerConfig) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.TickHz)
}

// GraceDuration returns GraceMS as a time.Duration.
func (c *ServerConfig) GraceDuration() time.Duration {
	return time.Duration(c.GraceMS) * time.Millisecond
}
