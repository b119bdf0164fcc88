package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	DatabasePath string
	LogLevel     string
	Port         int
	DevMode      bool

	// ProposerToken authorizes rebalance proposal submissions.
	ProposerToken string

	// Oracle settings.
	OracleFeedURL       string   // empty means the manual source is used
	OracleAssets        []string // reference assets the safety gate tracks
	OracleMaxAgeSeconds int      // freshness window for price samples
	OracleVolLimitBps   int64    // 24h volatility limit in basis points

	// RebalanceToleranceBps is the permitted post-rebalance deviation per
	// position, in basis points of total value.
	RebalanceToleranceBps int64

	// Advertised yield rates for the three venues, in basis points.
	LendingYieldBps   int64
	StakingYieldBps   int64
	LiquidityYieldBps int64

	// Per-venue conversion rates, one entry per position in index order.
	// An entry rate below 1 models deposit slippage, an exit rate below 1
	// models withdrawal slippage. Both default to 1 for every venue.
	AdapterEntryRates []decimal.Decimal
	AdapterExitRates  []decimal.Decimal
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnvAsInt("PORT", 8080),
		DevMode:               getEnvAsBool("DEV_MODE", false),
		DatabasePath:          getEnv("DATABASE_PATH", "./data/vault.db"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		ProposerToken:         getEnv("PROPOSER_TOKEN", ""),
		OracleFeedURL:         getEnv("ORACLE_FEED_URL", ""),
		OracleAssets:          getEnvAsList("ORACLE_ASSETS", "USDC,ATOM,OSMO"),
		OracleMaxAgeSeconds:   getEnvAsInt("ORACLE_MAX_AGE_SECONDS", 60),
		OracleVolLimitBps:     int64(getEnvAsInt("ORACLE_VOL_LIMIT_BPS", 500)),
		RebalanceToleranceBps: int64(getEnvAsInt("REBALANCE_TOLERANCE_BPS", 100)),
		LendingYieldBps:       int64(getEnvAsInt("LENDING_YIELD_BPS", 420)),
		StakingYieldBps:       int64(getEnvAsInt("STAKING_YIELD_BPS", 900)),
		LiquidityYieldBps:     int64(getEnvAsInt("LIQUIDITY_YIELD_BPS", 1250)),
	}

	var err error
	if cfg.AdapterEntryRates, err = getEnvAsRates("ADAPTER_ENTRY_RATES", "1,1,1"); err != nil {
		return nil, err
	}
	if cfg.AdapterExitRates, err = getEnvAsRates("ADAPTER_EXIT_RATES", "1,1,1"); err != nil {
		return nil, err
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.ProposerToken == "" {
		return fmt.Errorf("PROPOSER_TOKEN is required")
	}
	if len(c.OracleAssets) == 0 {
		return fmt.Errorf("ORACLE_ASSETS must name at least one asset")
	}
	if c.OracleMaxAgeSeconds <= 0 {
		return fmt.Errorf("ORACLE_MAX_AGE_SECONDS must be positive")
	}
	if c.OracleVolLimitBps <= 0 {
		return fmt.Errorf("ORACLE_VOL_LIMIT_BPS must be positive")
	}
	if c.RebalanceToleranceBps <= 0 {
		return fmt.Errorf("REBALANCE_TOLERANCE_BPS must be positive")
	}
	if len(c.AdapterEntryRates) != 3 {
		return fmt.Errorf("ADAPTER_ENTRY_RATES must list exactly three rates")
	}
	if len(c.AdapterExitRates) != 3 {
		return fmt.Errorf("ADAPTER_EXIT_RATES must list exactly three rates")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsRates(key, defaultValue string) ([]decimal.Decimal, error) {
	parts := getEnvAsList(key, defaultValue)
	rates := make([]decimal.Decimal, 0, len(parts))
	for _, part := range parts {
		rate, err := decimal.NewFromString(part)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid rate %q: %w", key, part, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("%s: rate %q must be positive", key, part)
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
