package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppPort  string `mapstructure:"APP_PORT"`
	AppEnv   string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	RPCURL          string `mapstructure:"RPC_URL"`
	PrivateKey      string `mapstructure:"PRIVATE_KEY"`
	ContractAddress string `mapstructure:"CONTRACT_ADDRESS"`

	ZappkaAccount string `mapstructure:"ZAPPKA_RECEIVER_ACCOUNT"`

	RateNumerator   int64         `mapstructure:"RATE_NUMERATOR"`
	RateDenominator int64         `mapstructure:"RATE_DENOMINATOR"`
	RedeemTimeout   time.Duration `mapstructure:"REDEEM_TIMEOUT"`

	AttestationScheme string `mapstructure:"ATTESTATION_SCHEME"`
	AttestationSecret string `mapstructure:"ATTESTATION_SECRET"`
	AttestationKey    string `mapstructure:"ATTESTATION_KEY"`

	BankAPIURL       string `mapstructure:"BANK_API_URL"`
	BankIssuerURL    string `mapstructure:"BANK_ISSUER_URL"`
	BankTokenURL     string `mapstructure:"BANK_TOKEN_URL"`
	BankClientID     string `mapstructure:"BANK_CLIENT_ID"`
	BankClientSecret string `mapstructure:"BANK_CLIENT_SECRET"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	DatabaseDSN string `mapstructure:"DATABASE_DSN"`

	NATSURL string `mapstructure:"NATS_URL"`

	OperatorKeyHash string `mapstructure:"OPERATOR_KEY_HASH"`

	RateLimitMax    int           `mapstructure:"RATE_LIMIT_MAX"`
	RateLimitWindow time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`

	// TrustedProxies lists the peers whose X-Forwarded-For is believed.
	// Empty means the peer address is the client.
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES"`
}

var defaults = map[string]any{
	"APP_PORT":           "3000",
	"APP_ENV":            "development",
	"LOG_LEVEL":          "info",
	"RATE_NUMERATOR":     1,
	"RATE_DENOMINATOR":   100,
	"REDEEM_TIMEOUT":     2 * time.Minute,
	"ATTESTATION_SCHEME": "hmac",
	"RATE_LIMIT_MAX":     100,
	"RATE_LIMIT_WINDOW":  15 * time.Minute,
}

// Load reads configuration from the environment and, when CONFIG_FILE is
// set, from that dotenv file. Environment variables win over the file.
func Load() (Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	// Unmarshal only sees keys viper knows about, so every field is bound.
	for _, key := range keys() {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	if err := v.BindEnv("CONFIG_FILE"); err != nil {
		return Config{}, fmt.Errorf("config: bind CONFIG_FILE: %w", err)
	}
	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	if c.RateNumerator <= 0 || c.RateDenominator <= 0 {
		errs = append(errs, errors.New("RATE_NUMERATOR and RATE_DENOMINATOR must be positive"))
	}
	if c.RedeemTimeout <= 0 {
		errs = append(errs, errors.New("REDEEM_TIMEOUT must be positive"))
	}

	switch strings.ToLower(c.AttestationScheme) {
	case "hmac":
		if c.AttestationSecret == "" {
			errs = append(errs, errors.New("ATTESTATION_SECRET is required for the hmac scheme"))
		}
	case "eip191":
		if c.AttestationKey == "" {
			errs = append(errs, errors.New("ATTESTATION_KEY is required for the eip191 scheme"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ATTESTATION_SCHEME %q", c.AttestationScheme))
	}

	chain := []string{c.RPCURL, c.PrivateKey, c.ContractAddress}
	set := 0
	for _, s := range chain {
		if s != "" {
			set++
		}
	}
	if set != 0 && set != len(chain) {
		errs = append(errs, errors.New("RPC_URL, PRIVATE_KEY and CONTRACT_ADDRESS must be set together"))
	}

	if c.BankAPIURL != "" && c.BankIssuerURL == "" && c.BankTokenURL == "" {
		errs = append(errs, errors.New("BANK_API_URL needs BANK_ISSUER_URL or BANK_TOKEN_URL"))
	}

	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ChainConfigured reports whether the on-chain ledger settings are present.
func (c Config) ChainConfigured() bool {
	return c.RPCURL != ""
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

func keys() []string {
	return []string{
		"APP_PORT", "APP_ENV", "LOG_LEVEL",
		"RPC_URL", "PRIVATE_KEY", "CONTRACT_ADDRESS",
		"ZAPPKA_RECEIVER_ACCOUNT",
		"RATE_NUMERATOR", "RATE_DENOMINATOR", "REDEEM_TIMEOUT",
		"ATTESTATION_SCHEME", "ATTESTATION_SECRET", "ATTESTATION_KEY",
		"BANK_API_URL", "BANK_ISSUER_URL", "BANK_TOKEN_URL", "BANK_CLIENT_ID", "BANK_CLIENT_SECRET",
		"REDIS_ADDR", "REDIS_PASSWORD",
		"DATABASE_DSN",
		"NATS_URL",
		"OPERATOR_KEY_HASH",
		"RATE_LIMIT_MAX", "RATE_LIMIT_WINDOW",
		"TRUSTED_PROXIES",
	}
}
