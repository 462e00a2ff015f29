package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Database configuration (optional; empty disables the session store
	// and the dashboard falls back to the default cluster on every start)
	DatabaseURL string

	// NATS configuration
	NATSURL string

	// Solana configuration. Devnet and testnet use the public cluster
	// endpoints; mainnet must use a dedicated endpoint to avoid the
	// public default's rate limiting.
	SolanaMainnetRPCURL string

	// DefaultCluster is the network selected at process start when no
	// persisted selection exists. The dashboard defaults to devnet.
	DefaultCluster string

	// SkipRedundantConnect controls whether re-selecting the already
	// active cluster skips the reconnect.
	SkipRedundantConnect bool

	// ResolveTimeout bounds a single account resolution (name + balance).
	// Zero disables the watchdog.
	ResolveTimeout time.Duration

	// ConfirmTimeout bounds transaction confirmation polling.
	ConfirmTimeout time.Duration
}

// Load reads configuration from environment variables and validates all
// required fields. A .env file in the working directory is applied first
// when present. Returns an error if any required configuration is missing
// or invalid.
func Load() (*Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []error

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	cfg.SolanaMainnetRPCURL = os.Getenv("SOLANA_MAINNET_RPC_URL")

	cfg.DefaultCluster = getEnvOrDefault("DEFAULT_CLUSTER", "devnet")

	cfg.SkipRedundantConnect = getEnvOrDefault("SKIP_REDUNDANT_CONNECT", "true") != "false"

	resolveTimeout, err := parseDuration("RESOLVE_TIMEOUT", "0s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ResolveTimeout = resolveTimeout
	}

	confirmTimeout, err := parseDuration("CONFIRM_TIMEOUT", "90s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmTimeout = confirmTimeout
	}

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaMainnetRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaMainnetRPCURL is required"))
	}

	switch c.DefaultCluster {
	case "mainnet-beta", "testnet", "devnet":
	default:
		errs = append(errs, fmt.Errorf("DefaultCluster must be one of mainnet-beta, testnet, devnet; got %q", c.DefaultCluster))
	}

	if c.ResolveTimeout < 0 {
		errs = append(errs, fmt.Errorf("ResolveTimeout cannot be negative"))
	}

	if c.ConfirmTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmTimeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}
