package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration loaded from YAML and overridden by
// environment variables.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	Blockchain BlockchainConfig `yaml:"blockchain"`
	Cashier    CashierConfig    `yaml:"cashier"`
	CORS       CORSConfig       `yaml:"cors"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig message server configuration. An empty URL disables event
// publishing.
type NATSConfig struct {
	URL             string `yaml:"url"`
	Timeout         int    `yaml:"timeout"`
	ReconnectWait   int    `yaml:"reconnect_wait"`
	MaxReconnects   int    `yaml:"max_reconnects"`
	EnableJetStream bool   `yaml:"enable_jetstream"`
	StreamName      string `yaml:"stream_name"`
}

// BlockchainConfig on-chain collaborator configuration. An empty RPC endpoint
// keeps the service in dry-run mode (no token or hook transactions are sent).
type BlockchainConfig struct {
	RPCEndpoint   string `yaml:"rpcEndpoint"`
	ChainID       int64  `yaml:"chainId"`
	TokenContract string `yaml:"tokenContract"`
	PrivateKey    string `yaml:"privateKey"` // hex, without 0x prefix
	GasLimit      uint64 `yaml:"gasLimit"`
}

// CashierConfig core ledger configuration.
type CashierConfig struct {
	ShardCount     int    `yaml:"shardCount"`
	CustodyAccount string `yaml:"custodyAccount"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// AppConfig is the loaded application configuration.
var AppConfig *Config

// LoadConfig reads the configuration file at configPath (config.yaml by
// default, config.local.yaml when present) and applies environment overrides.
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(&config)

	if config.Cashier.ShardCount <= 0 {
		config.Cashier.ShardCount = 16
	}

	AppConfig = &config
	return nil
}

func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	if rpc := os.Getenv("RPC_ENDPOINT"); rpc != "" {
		config.Blockchain.RPCEndpoint = rpc
	}
	if chainID := os.Getenv("CHAIN_ID"); chainID != "" {
		if id, err := strconv.ParseInt(chainID, 10, 64); err == nil {
			config.Blockchain.ChainID = id
		}
	}
	if tokenContract := os.Getenv("TOKEN_CONTRACT"); tokenContract != "" {
		config.Blockchain.TokenContract = tokenContract
	}
	if privateKey := os.Getenv("PRIVATE_KEY"); privateKey != "" {
		config.Blockchain.PrivateKey = privateKey
	}
	if gasLimit := os.Getenv("GAS_LIMIT"); gasLimit != "" {
		if limit, err := strconv.ParseUint(gasLimit, 10, 64); err == nil {
			config.Blockchain.GasLimit = limit
		}
	}

	if shardCount := os.Getenv("CASHIER_SHARD_COUNT"); shardCount != "" {
		if n, err := strconv.Atoi(shardCount); err == nil {
			config.Cashier.ShardCount = n
		}
	}
	if custody := os.Getenv("CASHIER_CUSTODY_ACCOUNT"); custody != "" {
		config.Cashier.CustodyAccount = custody
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		config.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}
}
