package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string            `mapstructure:"environment"`
	LogLevel    string            `mapstructure:"log_level"`
	Server      ServerConfig      `mapstructure:"server"`
	Hub         HubConfig         `mapstructure:"hub"`
	Attestation AttestationConfig `mapstructure:"attestation"`
	Routes      RoutesConfig      `mapstructure:"routes"`
	IBC         IBCConfig         `mapstructure:"ibc"`
	Transfer    TransferConfig    `mapstructure:"transfer"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	// Networks maps a domain name (Ethereum, Avalanche, Arbitrum) to its
	// EVM connection settings.
	Networks map[string]NetworkConfig `mapstructure:"networks"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

type HubConfig struct {
	ChainID    string `mapstructure:"chain_id"`
	LCDURL     string `mapstructure:"lcd_url"`
	GatewayURL string `mapstructure:"gateway_url"`
	SignerURL  string `mapstructure:"signer_url"`
	Denom      string `mapstructure:"denom"`
	Timeout    int    `mapstructure:"timeout"`
}

type AttestationConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	PollInterval int    `mapstructure:"poll_interval"`
	MaxAttempts  int    `mapstructure:"max_attempts"`
}

type RoutesConfig struct {
	ServiceURL  string `mapstructure:"service_url"`
	RefreshCron string `mapstructure:"refresh_cron"`
}

type IBCConfig struct {
	Channel        string `mapstructure:"channel"`
	TimeoutMinutes int    `mapstructure:"timeout_minutes"`
	Reserve        int64  `mapstructure:"reserve"`
}

type TransferConfig struct {
	GasPrice             string `mapstructure:"gas_price"`
	GasMultiplier        uint64 `mapstructure:"gas_multiplier"`
	BalanceInterval      int    `mapstructure:"balance_interval"`
	CreditTimeoutMinutes int    `mapstructure:"credit_timeout_minutes"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

type NetworkConfig struct {
	RPC              string `mapstructure:"rpc"`
	ChainID          int64  `mapstructure:"chain_id"`
	USDCAddress      string `mapstructure:"usdc_address"`
	TokenMessenger   string `mapstructure:"token_messenger"`
	Explorer         string `mapstructure:"explorer"`
	OperatorKey      string `mapstructure:"operator_key"`
	ReceiptInterval  int    `mapstructure:"receipt_interval"`
	ReceiptTimeoutS  int    `mapstructure:"receipt_timeout"`
}

// Load reads configuration from config.yaml and the environment. Environment
// variables override file values (HUB_LCD_URL overrides hub.lcd_url).
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.rate_limit_per_min", 100)
	viper.SetDefault("server.allowed_origins", []string{"*"})

	viper.SetDefault("hub.chain_id", "noble-1")
	viper.SetDefault("hub.denom", "uusdc")
	viper.SetDefault("hub.timeout", 30)

	viper.SetDefault("attestation.base_url", "https://iris-api.circle.com")
	viper.SetDefault("attestation.poll_interval", 20)
	viper.SetDefault("attestation.max_attempts", 20)

	viper.SetDefault("routes.refresh_cron", "@every 1h")

	viper.SetDefault("ibc.channel", "channel-81")
	viper.SetDefault("ibc.timeout_minutes", 10)
	viper.SetDefault("ibc.reserve", 50000)

	viper.SetDefault("transfer.gas_price", "0.1")
	viper.SetDefault("transfer.gas_multiplier", 2)
	viper.SetDefault("transfer.balance_interval", 6)
	viper.SetDefault("transfer.credit_timeout_minutes", 10)

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_url", "localhost:4317")
	viper.SetDefault("tracing.sample_rate", 1.0)
}

func validate(config *Config) error {
	if config.Hub.LCDURL == "" {
		return fmt.Errorf("hub.lcd_url is required")
	}
	if config.Hub.GatewayURL == "" {
		return fmt.Errorf("hub.gateway_url is required")
	}
	if config.Routes.ServiceURL == "" {
		return fmt.Errorf("routes.service_url is required")
	}
	for name, net := range config.Networks {
		if net.RPC == "" {
			return fmt.Errorf("networks.%s.rpc is required", name)
		}
		if net.USDCAddress == "" || net.TokenMessenger == "" {
			return fmt.Errorf("networks.%s contract addresses are required", name)
		}
	}
	return nil
}

// HubTimeout returns the hub HTTP timeout as a duration.
func (c *Config) HubTimeout() time.Duration {
	return time.Duration(c.Hub.Timeout) * time.Second
}

// CreditTimeout returns how long to wait for the hub credit to land.
func (c *Config) CreditTimeout() time.Duration {
	return time.Duration(c.Transfer.CreditTimeoutMinutes) * time.Minute
}

// IBCTimeoutWindow returns the IBC packet validity window.
func (c *Config) IBCTimeoutWindow() time.Duration {
	return time.Duration(c.IBC.TimeoutMinutes) * time.Minute
}
