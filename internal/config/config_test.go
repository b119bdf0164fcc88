package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PROPOSER_TOKEN", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "./data/vault.db", cfg.DatabasePath)
	assert.Equal(t, []string{"USDC", "ATOM", "OSMO"}, cfg.OracleAssets)
	assert.Equal(t, 60, cfg.OracleMaxAgeSeconds)
	assert.Equal(t, int64(500), cfg.OracleVolLimitBps)
	assert.Equal(t, int64(100), cfg.RebalanceToleranceBps)

	require.Len(t, cfg.AdapterEntryRates, 3)
	require.Len(t, cfg.AdapterExitRates, 3)
	for i := 0; i < 3; i++ {
		assert.True(t, cfg.AdapterEntryRates[i].Equal(decimal.NewFromInt(1)))
		assert.True(t, cfg.AdapterExitRates[i].Equal(decimal.NewFromInt(1)))
	}
}

func TestLoadRequiresProposerToken(t *testing.T) {
	t.Setenv("PROPOSER_TOKEN", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestOracleAssetsParsing(t *testing.T) {
	t.Setenv("PROPOSER_TOKEN", "secret")
	t.Setenv("ORACLE_ASSETS", " USDC , OSMO ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"USDC", "OSMO"}, cfg.OracleAssets)
}

func TestAdapterRatesParsing(t *testing.T) {
	t.Setenv("PROPOSER_TOKEN", "secret")
	t.Setenv("ADAPTER_ENTRY_RATES", "0.995,1,0.98")
	t.Setenv("ADAPTER_EXIT_RATES", "1,0.9975,1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.AdapterEntryRates[0].Equal(decimal.NewFromFloat(0.995)))
	assert.True(t, cfg.AdapterEntryRates[2].Equal(decimal.NewFromFloat(0.98)))
	assert.True(t, cfg.AdapterExitRates[1].Equal(decimal.NewFromFloat(0.9975)))
}

func TestAdapterRatesRejected(t *testing.T) {
	t.Setenv("PROPOSER_TOKEN", "secret")

	t.Setenv("ADAPTER_ENTRY_RATES", "1,1")
	_, err := Load()
	assert.Error(t, err, "wrong arity")

	t.Setenv("ADAPTER_ENTRY_RATES", "1,0,1")
	_, err = Load()
	assert.Error(t, err, "non-positive rate")

	t.Setenv("ADAPTER_ENTRY_RATES", "1,abc,1")
	_, err = Load()
	assert.Error(t, err, "unparseable rate")
}
