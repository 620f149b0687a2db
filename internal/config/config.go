// Package config provides configuration management for the approval sentinel.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/approval-sentinel/internal/types"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Chains   ChainsConfig
	Scanner  ScannerConfig
	Mail     MailConfig
	Telegram TelegramConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ChainsConfig holds per-chain scanner configuration
type ChainsConfig struct {
	Enabled []types.Chain
	Chains  map[types.Chain]ChainConfig
}

// ChainConfig holds configuration for a specific chain.
// A chain without an RPC URL is reported at startup and never scanned.
type ChainConfig struct {
	RPCURL          string
	Confirmations   uint64
	BatchSizeBlocks uint64
	RateLimitDelay  time.Duration
	BackfillDays    int
	AvgBlockTime    time.Duration
	ExplorerTxURL   string
	ValuableTokens  []string
}

// ScannerConfig holds scan loop configuration
type ScannerConfig struct {
	PollInterval   time.Duration
	EventsPerEmail int
}

// MailConfig holds SMTP configuration. SMTP is disabled when Host is empty;
// digests are then logged and skipped.
type MailConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
	AppName  string
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

var defaultExplorers = map[types.Chain]string{
	types.ChainEthereum: "https://etherscan.io/tx/",
	types.ChainPolygon:  "https://polygonscan.com/tx/",
	types.ChainArbitrum: "https://arbiscan.io/tx/",
	types.ChainOptimism: "https://optimistic.etherscan.io/tx/",
	types.ChainBase:     "https://basescan.org/tx/",
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "approval_sentinel"),
				User:           getEnv("POSTGRES_USER", "sentinel"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Scanner: ScannerConfig{
			PollInterval:   getEnvAsDuration("SCANNER_POLL_INTERVAL", 30*time.Second),
			EventsPerEmail: getEnvAsInt("EVENTS_PER_EMAIL_LIMIT", 10),
		},
		Mail: MailConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "587"),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("MAIL_FROM", "alerts@approval-sentinel.local"),
			AppName:  getEnv("APP_NAME", "Approval Sentinel"),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	config.Chains = loadChainConfigs()

	return config, nil
}

// loadChainConfigs loads chain-specific configurations
func loadChainConfigs() ChainsConfig {
	enabledNames := strings.Split(getEnv("ENABLED_CHAINS", "ethereum,polygon,arbitrum"), ",")

	var enabled []types.Chain
	chains := make(map[types.Chain]ChainConfig)
	for _, name := range enabledNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		chain := types.Chain(name)

		prefix := strings.ToUpper(name)
		cc := ChainConfig{
			RPCURL:          getEnv(prefix+"_RPC_URL", ""),
			Confirmations:   getEnvAsBlockCount(prefix+"_CONFIRMATIONS", 12),
			BatchSizeBlocks: getEnvAsBlockCount(prefix+"_BATCH_SIZE_BLOCKS", 2000),
			RateLimitDelay:  getEnvAsDuration(prefix+"_RATE_LIMIT_DELAY", 250*time.Millisecond),
			BackfillDays:    getEnvAsInt(prefix+"_BACKFILL_DAYS", 30),
			AvgBlockTime:    getEnvAsDuration(prefix+"_AVG_BLOCK_TIME", 12*time.Second),
			ExplorerTxURL:   getEnv(prefix+"_EXPLORER_TX_URL", defaultExplorers[chain]),
			ValuableTokens:  splitList(getEnv(prefix+"_VALUABLE_TOKENS", "")),
		}
		// A zero batch size would stall the scan walk
		if cc.BatchSizeBlocks == 0 {
			cc.BatchSizeBlocks = 2000
		}
		chains[chain] = cc
		enabled = append(enabled, chain)
	}

	return ChainsConfig{
		Enabled: enabled,
		Chains:  chains,
	}
}

// ScannableChains returns the enabled chains that have an RPC URL configured,
// plus the names of enabled chains that are missing one.
func (c *ChainsConfig) ScannableChains() (ready []types.Chain, missing []types.Chain) {
	for _, chain := range c.Enabled {
		if c.Chains[chain].RPCURL == "" {
			missing = append(missing, chain)
			continue
		}
		ready = append(ready, chain)
	}
	return ready, missing
}

// ValuableTokenSet returns the lowercased valuable-token set for a chain
func (c *ChainsConfig) ValuableTokenSet(chain types.Chain) map[string]bool {
	set := make(map[string]bool)
	for _, addr := range c.Chains[chain].ValuableTokens {
		set[strings.ToLower(addr)] = true
	}
	return set
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBlockCount gets an environment variable as a block count,
// falling back to the default on negative values so they cannot wrap
func getEnvAsBlockCount(key string, defaultValue uint64) uint64 {
	value := getEnvAsInt(key, int(defaultValue))
	if value < 0 {
		return defaultValue
	}
	return uint64(value)
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
