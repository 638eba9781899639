package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	HTTPAddr string
	LogLevel string
	LogDir   string

	Database   DatabaseConfig
	Router     RouterConfig
	Settlement SettlementConfig
	Noble      NobleConfig
	EVM        EVMConfig
	Tokens     []TokenConfig
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MigrationsPath string
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RouterConfig struct {
	Endpoint string
	Timeout  time.Duration
}

type SettlementConfig struct {
	CallTimeout time.Duration
	Decimals    int
}

type NobleConfig struct {
	Enabled      bool
	LCDURL       string
	ChainID      string
	Denom        string
	FeeAmount    string
	GasLimit     uint64
	SignerURL    string
	PollInterval time.Duration
}

type EVMConfig struct {
	Enabled      bool
	RPCURL       string
	ChainID      int64
	USDCContract string
	PrivateKey   string
	PollInterval time.Duration
}

// TokenConfig describes a quotable token. USDPrice is the reference price the
// fallback pricer uses when the routing service is down.
type TokenConfig struct {
	Symbol   string  `mapstructure:"symbol"`
	Denom    string  `mapstructure:"denom"`
	Decimals int     `mapstructure:"decimals"`
	USDPrice float64 `mapstructure:"usd_price"`
}

// Noble USDC as seen from Osmosis.
const osmosisUSDCDenom = "ibc/498A0751C798A0D9A389AA3691123DADA57DAA4FE165D5C75894505B876BA6E4"

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "./logs")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "pay_usdc")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.migrations_path", "file://migrations")

	v.SetDefault("router.endpoint", "https://sqs.osmosis.zone/router/quote")
	v.SetDefault("router.timeout", "10s")

	v.SetDefault("settlement.call_timeout", "60s")
	v.SetDefault("settlement.decimals", 6)

	v.SetDefault("noble.enabled", true)
	v.SetDefault("noble.lcd_url", "https://noble-api.polkachu.com")
	v.SetDefault("noble.chain_id", "noble-1")
	v.SetDefault("noble.denom", "uusdc")
	v.SetDefault("noble.fee_amount", "20000")
	v.SetDefault("noble.gas_limit", 200000)
	v.SetDefault("noble.signer_url", "")
	v.SetDefault("noble.poll_interval", "2s")

	v.SetDefault("evm.enabled", false)
	v.SetDefault("evm.rpc_url", "")
	v.SetDefault("evm.chain_id", 1)
	v.SetDefault("evm.usdc_contract", "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	v.SetDefault("evm.private_key", "")
	v.SetDefault("evm.poll_interval", "3s")

	v.SetDefault("tokens", []map[string]interface{}{
		{"symbol": "USDC", "denom": osmosisUSDCDenom, "decimals": 6, "usd_price": 1.0},
		{"symbol": "OSMO", "denom": "uosmo", "decimals": 6, "usd_price": 0.5},
		{"symbol": "ATOM", "denom": "ibc/27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2", "decimals": 6, "usd_price": 6.0},
	})
}

// Load reads configuration from defaults, an optional YAML file and
// PAYUSDC_* environment variables, in increasing order of precedence. An empty
// path searches for .pay-usdc.yaml in $HOME and the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".pay-usdc")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PAYUSDC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		HTTPAddr: v.GetString("http.addr"),
		LogLevel: v.GetString("log.level"),
		LogDir:   v.GetString("log.dir"),
		Database: DatabaseConfig{
			Host:           v.GetString("database.host"),
			Port:           v.GetInt("database.port"),
			User:           v.GetString("database.user"),
			Password:       v.GetString("database.password"),
			Name:           v.GetString("database.name"),
			SSLMode:        v.GetString("database.sslmode"),
			MigrationsPath: v.GetString("database.migrations_path"),
		},
		Router: RouterConfig{
			Endpoint: v.GetString("router.endpoint"),
			Timeout:  v.GetDuration("router.timeout"),
		},
		Settlement: SettlementConfig{
			CallTimeout: v.GetDuration("settlement.call_timeout"),
			Decimals:    v.GetInt("settlement.decimals"),
		},
		Noble: NobleConfig{
			Enabled:      v.GetBool("noble.enabled"),
			LCDURL:       v.GetString("noble.lcd_url"),
			ChainID:      v.GetString("noble.chain_id"),
			Denom:        v.GetString("noble.denom"),
			FeeAmount:    v.GetString("noble.fee_amount"),
			GasLimit:     v.GetUint64("noble.gas_limit"),
			SignerURL:    v.GetString("noble.signer_url"),
			PollInterval: v.GetDuration("noble.poll_interval"),
		},
		EVM: EVMConfig{
			Enabled:      v.GetBool("evm.enabled"),
			RPCURL:       v.GetString("evm.rpc_url"),
			ChainID:      v.GetInt64("evm.chain_id"),
			USDCContract: v.GetString("evm.usdc_contract"),
			PrivateKey:   v.GetString("evm.private_key"),
			PollInterval: v.GetDuration("evm.poll_interval"),
		},
	}

	if err := v.UnmarshalKey("tokens", &cfg.Tokens); err != nil {
		return nil, fmt.Errorf("failed to decode tokens: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	if c.Router.Endpoint == "" {
		return errors.New("router endpoint is required")
	}
	if c.Router.Timeout <= 0 {
		return fmt.Errorf("router timeout must be positive, got %s", c.Router.Timeout)
	}
	if c.Settlement.CallTimeout <= 0 {
		return fmt.Errorf("settlement call timeout must be positive, got %s", c.Settlement.CallTimeout)
	}
	if c.Settlement.Decimals < 1 || c.Settlement.Decimals > 36 {
		return fmt.Errorf("settlement decimals must be between 1 and 36, got %d", c.Settlement.Decimals)
	}
	if c.Noble.Enabled && c.Noble.LCDURL == "" {
		return errors.New("noble lcd_url is required when noble is enabled")
	}
	if c.EVM.Enabled {
		if c.EVM.RPCURL == "" {
			return errors.New("evm rpc_url is required when evm is enabled")
		}
		if c.EVM.PrivateKey == "" {
			return errors.New("evm private_key is required when evm is enabled")
		}
	}
	seen := make(map[string]bool, len(c.Tokens))
	for _, t := range c.Tokens {
		key := strings.ToUpper(t.Symbol)
		if t.Symbol == "" || t.Denom == "" {
			return fmt.Errorf("token entries need a symbol and a denom: %+v", t)
		}
		if seen[key] {
			return fmt.Errorf("duplicate token symbol %s", t.Symbol)
		}
		seen[key] = true
	}
	return nil
}
