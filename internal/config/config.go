package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Ledger endpoints, tried in order: local node, configured remote,
	// built-in public fallback. Empty URLs are skipped.
	LocalRPCURL string
	LocalWSURL  string
	RPCURL      string
	WSURL       string

	// Watched token
	TokenMint     string
	TokenDecimals int

	// Wallet
	WalletKey string // base58-encoded 64-byte key OR solana-keygen JSON array

	// Reply settings
	ResponseAmount uint64 // raw base units per reply, 1 whole token by default

	// Analysis backend
	AnalysisAPIKey  string
	AnalysisBaseURL string
	AnalysisModel   string
	AnalysisTimeout time.Duration
	AnalysisRetries int
	MaxMemoRunes    int

	// Dedup
	DedupBackend string // memory | redis | pebble
	DedupDir     string
	RebuildDedup bool

	// Monitor settings
	ConnectTimeout         time.Duration
	ConfirmTimeout         time.Duration
	ReconnectBackoff       time.Duration
	MaxReconnectBackoff    time.Duration
	MaxConsecutiveFailures int

	// API server settings
	APIAddr string
	APIKey  string
	DevMode bool

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// NATS settings
	NatsURL string

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

func Load() *Config {
	return &Config{
		// Ledger
		LocalRPCURL: getEnv("LOCAL_RPC_URL", ""),
		LocalWSURL:  getEnv("LOCAL_WS_URL", ""),
		RPCURL:      getEnv("SOLANA_RPC_URL", ""),
		WSURL:       getEnv("SOLANA_WS_URL", ""),

		// Token
		TokenMint:     getEnv("PFT_MINT", ""),
		TokenDecimals: getIntEnv("PFT_DECIMALS", 6),

		// Wallet
		WalletKey: getEnv("NODE_WALLET_KEY", ""),

		// Reply
		ResponseAmount: uint64(getIntEnv("RESPONSE_AMOUNT", 1_000_000)),

		// Analysis
		AnalysisAPIKey:  getEnv("OPENAI_API_KEY", ""),
		AnalysisBaseURL: getEnv("OPENAI_BASE_URL", ""),
		AnalysisModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AnalysisTimeout: getDurationEnv("ANALYSIS_TIMEOUT", 60*time.Second),
		AnalysisRetries: getIntEnv("ANALYSIS_RETRIES", 3),
		MaxMemoRunes:    getIntEnvClamped("MAX_MEMO_RUNES", 2000, 1),

		// Dedup
		DedupBackend: getEnv("DEDUP_BACKEND", "memory"),
		DedupDir:     getEnv("DEDUP_DIR", "data/dedup"),
		RebuildDedup: getBoolEnv("REBUILD_DEDUP", false),

		// Monitor
		ConnectTimeout:         getDurationEnv("CONNECT_TIMEOUT", 10*time.Second),
		ConfirmTimeout:         getDurationEnv("CONFIRM_TIMEOUT", 60*time.Second),
		ReconnectBackoff:       getDurationEnv("RECONNECT_BACKOFF", 2*time.Second),
		MaxReconnectBackoff:    getDurationEnv("MAX_RECONNECT_BACKOFF", 60*time.Second),
		MaxConsecutiveFailures: getIntEnv("MAX_CONSECUTIVE_FAILURES", 10),

		// API server
		APIAddr: getEnv("API_ADDR", ":8080"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "pft"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// NATS
		NatsURL: getEnv("NATS_URL", ""),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 5),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 2*time.Second),
	}
}

// Validate reports every missing required field at once rather than failing
// on the first.
func (c *Config) Validate() error {
	var errs []error
	if c.TokenMint == "" {
		errs = append(errs, fmt.Errorf("PFT_MINT is required"))
	}
	if c.WalletKey == "" {
		errs = append(errs, fmt.Errorf("NODE_WALLET_KEY is required"))
	}
	if c.TokenDecimals < 0 || c.TokenDecimals > 18 {
		errs = append(errs, fmt.Errorf("PFT_DECIMALS out of range: %d", c.TokenDecimals))
	}
	if c.ResponseAmount == 0 {
		errs = append(errs, fmt.Errorf("RESPONSE_AMOUNT must be positive"))
	}
	switch c.DedupBackend {
	case "memory", "redis", "pebble":
	default:
		errs = append(errs, fmt.Errorf("DEDUP_BACKEND must be memory, redis or pebble, got %q", c.DedupBackend))
	}
	return errors.Join(errs...)
}

// MustLoad is Load plus Validate, for mains that cannot start without a
// complete configuration.
func MustLoad() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getIntEnvClamped(key string, defaultVal, min int) int {
	v := getIntEnv(key, defaultVal)
	if v < min {
		return min
	}
	return v
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
