package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pay-usdc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.Router.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Settlement.CallTimeout)
	assert.Equal(t, 6, cfg.Settlement.Decimals)
	assert.Equal(t, "uusdc", cfg.Noble.Denom)
	assert.Equal(t, uint64(200000), cfg.Noble.GasLimit)
	assert.False(t, cfg.EVM.Enabled)
	require.Len(t, cfg.Tokens, 3)
	assert.Equal(t, "USDC", cfg.Tokens[0].Symbol)
	assert.Equal(t, 1.0, cfg.Tokens[0].USDPrice)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
router:
  endpoint: http://router.local/quote
  timeout: 3s
database:
  host: db.internal
  port: 6543
tokens:
  - symbol: USDC
    denom: uusdc
    decimals: 6
    usd_price: 1
`)
	t.Setenv("PAYUSDC_DATABASE_PASSWORD", "s3cret")
	t.Setenv("PAYUSDC_ROUTER_TIMEOUT", "5s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://router.local/quote", cfg.Router.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Router.Timeout)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	require.Len(t, cfg.Tokens, 1)
	assert.Equal(t, "uusdc", cfg.Tokens[0].Denom)
	assert.Equal(t,
		"host=db.internal port=6543 user=postgres password=s3cret dbname=pay_usdc sslmode=disable",
		cfg.Database.DSN())
}

func TestLoadRejectsZeroDecimals(t *testing.T) {
	_, err := Load(writeConfig(t, "settlement:\n  decimals: 0\n"))
	assert.ErrorContains(t, err, "settlement decimals must be between 1 and 36")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no router endpoint", func(c *Config) { c.Router.Endpoint = "" }},
		{"zero call timeout", func(c *Config) { c.Settlement.CallTimeout = 0 }},
		{"zero decimals", func(c *Config) { c.Settlement.Decimals = 0 }},
		{"negative decimals", func(c *Config) { c.Settlement.Decimals = -1 }},
		{"evm without key", func(c *Config) { c.EVM.Enabled = true; c.EVM.RPCURL = "http://rpc" }},
		{"duplicate token", func(c *Config) {
			c.Tokens = append(c.Tokens, TokenConfig{Symbol: "usdc", Denom: "uusdc"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, "{}\n"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
