// Package config loads the Battleship session server's YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Server holds all configuration for the battleship session server.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Framing selects the wire protocol for the whole process.
	// One of "line" (default) or "packet". Never mixed on one session.
	Framing string `yaml:"framing"`

	// Logging
	LogLevel string `yaml:"log_level"` // debug, info, warn, error (default: info)

	// Timeouts and limits (spec §6 "Configurable parameters")
	TurnTimeoutSeconds       int `yaml:"turn_timeout_seconds"`
	PlacementTimeoutSeconds  int `yaml:"placement_timeout_seconds"` // 0 = 2x turn timeout
	ReconnectWindowSeconds   int `yaml:"reconnect_window_seconds"`
	MaxTimeouts              int `yaml:"max_timeouts"`
	MaxConnections            int `yaml:"max_connections"`
	GameStartCountdownSeconds int `yaml:"game_start_countdown_seconds"`
	InputRatePerSecond        float64 `yaml:"input_rate_per_second"`

	// Database (optional; an empty Host disables match-history persistence)
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the optional
// match-history store. A zero-value Host means "no database configured".
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	MaxConns        int32  `yaml:"max_conns"`
	MaxConnLifetime string `yaml:"max_conn_lifetime"`
}

// Enabled reports whether a database has been configured at all.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	base := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)

	var params []string
	if d.MaxConns > 0 {
		params = append(params, fmt.Sprintf("pool_max_conns=%d", d.MaxConns))
	}
	if d.MaxConnLifetime != "" {
		params = append(params, fmt.Sprintf("pool_max_conn_lifetime=%s", d.MaxConnLifetime))
	}
	if len(params) > 0 {
		return base + "&" + strings.Join(params, "&")
	}
	return base
}

// TurnTimeout returns the configured per-turn inactivity budget.
func (s Server) TurnTimeout() time.Duration {
	return time.Duration(s.TurnTimeoutSeconds) * time.Second
}

// PlacementTimeout returns the per-placement-step inactivity budget.
// Defaults to twice the turn timeout when unset, per spec §6.
func (s Server) PlacementTimeout() time.Duration {
	if s.PlacementTimeoutSeconds > 0 {
		return time.Duration(s.PlacementTimeoutSeconds) * time.Second
	}
	return 2 * s.TurnTimeout()
}

// ReconnectWindow returns the reconnect grace period.
func (s Server) ReconnectWindow() time.Duration {
	return time.Duration(s.ReconnectWindowSeconds) * time.Second
}

// GameStartCountdown returns the pre-match countdown duration.
func (s Server) GameStartCountdown() time.Duration {
	return time.Duration(s.GameStartCountdownSeconds) * time.Second
}

// Default returns a Server config with the spec's documented defaults.
func Default() Server {
	return Server{
		BindAddress:               "127.0.0.1",
		Port:                      5001,
		Framing:                   "line",
		LogLevel:                  "info",
		TurnTimeoutSeconds:        30,
		PlacementTimeoutSeconds:   0,
		ReconnectWindowSeconds:    30,
		MaxTimeouts:               2,
		MaxConnections:            6,
		GameStartCountdownSeconds: 5,
		InputRatePerSecond:        5,
	}
}

// Load reads a Server config from a YAML file. If the file doesn't
// exist, defaults are returned unchanged.
func Load(path string) (Server, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
