package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ServerAddr:          ":8080",
		LogLevel:            "info",
		SolanaMainnetRPCURL: "https://mainnet.example.com/?api-key=test",
		DefaultCluster:      "devnet",
		ConfirmTimeout:      90 * time.Second,
	}
}

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_MissingMainnetURL(t *testing.T) {
	cfg := validConfig()
	cfg.SolanaMainnetRPCURL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SolanaMainnetRPCURL")
}

func TestValidate_DefaultCluster(t *testing.T) {
	tests := []struct {
		cluster string
		wantErr bool
	}{
		{"devnet", false},
		{"testnet", false},
		{"mainnet-beta", false},
		{"mainnet", true},
		{"", true},
		{"localnet", true},
	}

	for _, tt := range tests {
		t.Run(tt.cluster, func(t *testing.T) {
			cfg := validConfig()
			cfg.DefaultCluster = tt.cluster

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_Timeouts(t *testing.T) {
	cfg := validConfig()
	cfg.ResolveTimeout = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.ConfirmTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SOLANA_MAINNET_RPC_URL", "https://mainnet.example.com")
	t.Setenv("DEFAULT_CLUSTER", "testnet")
	t.Setenv("SKIP_REDUNDANT_CONNECT", "false")
	t.Setenv("RESOLVE_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://mainnet.example.com", cfg.SolanaMainnetRPCURL)
	assert.Equal(t, "testnet", cfg.DefaultCluster)
	assert.False(t, cfg.SkipRedundantConnect)
	assert.Equal(t, 30*time.Second, cfg.ResolveTimeout)
	assert.Equal(t, 90*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, ":8080", cfg.ServerAddr)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("SOLANA_MAINNET_RPC_URL", "https://mainnet.example.com")
	t.Setenv("CONFIRM_TIMEOUT", "ninety seconds")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIRM_TIMEOUT")
}
