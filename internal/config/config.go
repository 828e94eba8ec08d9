package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Venue     VenueConfig     `mapstructure:"venue"`
	Chain     ChainConfig     `mapstructure:"chain"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	ReadOnly bool   `mapstructure:"read_only"` // halt deposits/admin, keep queries + emergency exits
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	APIKey        string `mapstructure:"api_key"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// VaultConfig 创世配置：仅在账本为空时写入，之后以账本为准
type VaultConfig struct {
	Admin          string   `mapstructure:"admin"`
	Operator       string   `mapstructure:"operator"`
	Address        string   `mapstructure:"address"` // 金库自身持仓账户
	BaseDenom      string   `mapstructure:"base_denom"`
	AcceptedDenoms []string `mapstructure:"accepted_denoms"`
}

// RiskConfig genesis risk parameters; exact decimal strings, never floats.
type RiskConfig struct {
	MaxAllocationPerProtocol string `mapstructure:"max_allocation_per_protocol"` // e.g. "0.5"
	MaxSlippage              string `mapstructure:"max_slippage"`                // e.g. "0.01"
	RebalanceThreshold       string `mapstructure:"rebalance_threshold"`         // e.g. "0.05"
	EmergencyWithdrawalFee   string `mapstructure:"emergency_withdrawal_fee"`    // e.g. "0.01"
}

type VenueConfig struct {
	QuoteURL       string `mapstructure:"quote_url"`  // HTTP simulate endpoint
	StreamURL      string `mapstructure:"stream_url"` // websocket rate feed, optional
	RouterAddr     string `mapstructure:"router_addr"`
	QuoteTimeoutMs int    `mapstructure:"quote_timeout_ms"`
}

type ChainConfig struct {
	RESTURL   string `mapstructure:"rest_url"` // contract smart-query gateway
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

type RateLimitConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. VAULTGATE_VAULT_ADMIN, VAULTGATE_REDIS_ADDR
	viper.SetEnvPrefix("vaultgate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_only", false)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("auth.require_api_key", false)
	viper.SetDefault("redis.key_prefix", "vaultgate:")
	viper.SetDefault("vault.base_denom", "usdc")
	viper.SetDefault("vault.accepted_denoms", []string{"usdc"})
	viper.SetDefault("risk.max_allocation_per_protocol", "0.5")
	viper.SetDefault("risk.max_slippage", "0.01")
	viper.SetDefault("risk.rebalance_threshold", "0.05")
	viper.SetDefault("risk.emergency_withdrawal_fee", "0.01")
	viper.SetDefault("venue.quote_timeout_ms", 5000)
	viper.SetDefault("chain.timeout_ms", 5000)
	viper.SetDefault("rate_limit.qps", 10)
	viper.SetDefault("rate_limit.burst", 20)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
