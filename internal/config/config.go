// Package config handles configuration loading, validation, and persistence
// for the relay.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultAPIPort    = 5800
	DefaultQueueSize  = 64
)

// Config is the root configuration structure for the relay.
type Config struct {
	mu   sync.RWMutex
	path string

	Relay    RelayConfig    `json:"relay"`
	Match    MatchConfig    `json:"match"`
	API      APIConfig      `json:"api"`
	MQTT     MQTTConfig     `json:"mqtt"`
	Database DatabaseConfig `json:"database"`
	Logging  LoggingConfig  `json:"logging"`
}

// RelayConfig contains the listener and node connection settings.
type RelayConfig struct {
	// NodeAddress is the host:port of the remote relay node.
	NodeAddress string `json:"node_address"`
	// DialTimeoutSec bounds the node dial.
	DialTimeoutSec int `json:"dial_timeout_sec"`
	// StopOnAcceptError terminates the accept stream after an accept-level
	// error instead of continuing with further connections.
	StopOnAcceptError bool `json:"stop_on_accept_error"`
	// QueueSize is the node-side frame queue buffer.
	QueueSize int `json:"queue_size"`
}

// MatchConfig describes the session pairing this relay instance serves:
// the match, the node identity, and the slot roster. Supplied externally
// (match negotiation itself is not part of the relay).
type MatchConfig struct {
	ID        uint32       `json:"id"`
	Name      string       `json:"name"`
	Node      NodeConfig   `json:"node"`
	Slots     []SlotConfig `json:"slots"`
	LocalSlot uint8        `json:"local_slot"`
}

// NodeConfig identifies the relay node serving the match.
type NodeConfig struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Country  string `json:"country"`
}

// SlotConfig maps an occupied slot to its player.
type SlotConfig struct {
	ID   uint8  `json:"id"`
	Name string `json:"name"`
	Team uint8  `json:"team"`
	Race string `json:"race"`
}

// APIConfig contains REST API settings.
type APIConfig struct {
	Enabled      bool     `json:"enabled"`
	Port         int      `json:"port"`
	AllowOrigins []string `json:"allow_origins"`
}

// MQTTConfig contains telemetry broker settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	UseTLS      bool   `json:"use_tls"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	TopicPrefix string `json:"topic_prefix"`
}

// DatabaseConfig contains session record store settings.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	Console    bool   `json:"console"`
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			NodeAddress:    "127.0.0.1:3552",
			DialTimeoutSec: 10,
			QueueSize:      DefaultQueueSize,
		},
		API: APIConfig{
			Enabled:      true,
			Port:         DefaultAPIPort,
			AllowOrigins: []string{"*"},
		},
		MQTT: MQTTConfig{
			Port:        8883,
			TopicPrefix: "relay",
		},
		Database: DatabaseConfig{
			Path: "data/sessions.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Directory:  "logs",
			MaxSizeMB:  10,
			MaxBackups: 5,
			Console:    true,
		},
	}
}

// Load reads the configuration from dir/config.json, creating it with
// defaults if missing.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, DefaultConfigFile)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		cfg.path = path
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		log.Info().Str("path", path).Msg("created default configuration")
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.path = path

	log.Info().Str("path", path).Msg("configuration loaded")
	return cfg, nil
}

// Save writes the configuration back to its file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", c.path, err)
	}
	return nil
}

// GetRelay returns a copy of the relay section.
func (c *Config) GetRelay() RelayConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Relay
}

// GetMatch returns a copy of the match section.
func (c *Config) GetMatch() MatchConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Match
}

// SetMatch replaces the match section.
func (c *Config) SetMatch(m MatchConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Match = m
}
