// Package config loads the parking layer configuration from a YAML file and
// environment variables. Environment values win over file values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ParkFee-Network/parking_layer/pkg/logger"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	ReadTimeout    int      `yaml:"read_timeout_seconds"`
	WriteTimeout   int      `yaml:"write_timeout_seconds"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
}

// DatabaseConfig holds the relational store settings. An empty DSN selects
// the in-memory store.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// ChainConfig holds the settlement layer settings. An empty RPC URL disables
// the settlement endpoints.
type ChainConfig struct {
	RPCURL         string `yaml:"rpc_url"`
	NetworkID      uint32 `yaml:"network_id"`
	ContractHash   string `yaml:"contract_hash"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the bounded settlement call timeout.
func (c ChainConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Database DatabaseConfig       `yaml:"database"`
	Logging  logger.LoggingConfig `yaml:"logging"`
	Chain    ChainConfig          `yaml:"chain"`
}

// Load reads configuration from CONFIG_PATH (default config.yaml when the
// file exists) and applies environment overrides. A .env file in the working
// directory is honoured when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    15,
			WriteTimeout:   15,
			RateLimitRPS:   50,
			RateLimitBurst: 100,
		},
		Database: DatabaseConfig{Driver: "postgres"},
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if os.Getenv("CONFIG_PATH") != "" {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Chain.RPCURL, "RPC_URL")
	setString(&cfg.Chain.ContractHash, "CONTRACT_ADDRESS")
	setInt(&cfg.Chain.TimeoutSeconds, "CHAIN_TIMEOUT_SECONDS")

	if v := os.Getenv("CHAIN_NETWORK_ID"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Chain.NetworkID = uint32(id)
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
