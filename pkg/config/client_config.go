package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dungeongate/pkg/logging"
	"gopkg.in/yaml.v3"
)

// ClientConfig is the headless lockstep client executor's configuration.
type ClientConfig struct {
	ServerURL  string          `yaml:"server_url"`
	TickHz     int             `yaml:"tick_hz"`
	TurnSize   int             `yaml:"turn_size"`
	CatchupCap int             `yaml:"catchup_cap"`
	MaxRetries int             `yaml:"max_retries"`
	Reconnect  ReconnectPolicy `yaml:"reconnect"`
	Logging    logging.Config  `yaml:"logging"`
}

// ReconnectPolicy is the client's exponential backoff schedule for
// re-establishing a dropped connection.
type ReconnectPolicy struct {
	BaseSeconds float64 `yaml:"base_seconds"`
	Factor      float64 `yaml:"factor"`
	CapSeconds  float64 `yaml:"cap_seconds"`
}

// LoadClientConfig reads and validates a ClientConfig from a YAML file.
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client config: %w", err)
	}

	var cfg ClientConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}

	applyClientDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	return &cfg, nil
}

// DefaultClientConfig returns a development-friendly client configuration.
func DefaultClientConfig() *ClientConfig {
	cfg := &ClientConfig{}
	applyClientDefaults(cfg)
	return cfg
}

func applyClientDefaults(cfg *ClientConfig) {
	if cfg.ServerURL == "" {
		cfg.ServerURL = "ws://localhost:8080/ws"
	}
	if cfg.TickHz == 0 {
		cfg.TickHz = 30
	}
	if cfg.TurnSize == 0 {
		cfg.TurnSize = 5
	}
	if cfg.CatchupCap == 0 {
		cfg.CatchupCap = 10
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Reconnect.BaseSeconds == 0 {
		cfg.Reconnect.BaseSeconds = 1.0
	}
	if cfg.Reconnect.Factor == 0 {
		cfg.Reconnect.Factor = 1.5
	}
	if cfg.Reconnect.CapSeconds == 0 {
		cfg.Reconnect.CapSeconds = 30.0
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
}

// Validate checks the client configuration for internal consistency.
func (c *ClientConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.TickHz < 1 {
		return fmt.Errorf("tick_hz must be at least 1")
	}
	if c.TurnSize < 1 {
		return fmt.Errorf("turn_size must be at least 1")
	}
	if c.CatchupCap < 1 {
		return fmt.Errorf("catchup_cap must be at least 1")
	}
	if c.Reconnect.BaseSeconds <= 0 {
		return fmt.Errorf("reconnect.base_seconds must be positive")
	}
	if c.Reconnect.Factor < 1 {
		return fmt.Errorf("reconnect.factor must be at least 1")
	}
	if c.Reconnect.CapSeconds < c.Reconnect.BaseSeconds {
		return fmt.Errorf("reconnect.cap_seconds must be at least base_seconds")
	}
	return nil
}

// FrameInterval is the wall-clock duration of one logical frame at
// this client's configured tick rate.
func (c *ClientConfig) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.TickHz)
}
