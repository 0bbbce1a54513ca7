package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Exchange names accepted in the exchanges section.
const (
	ExchangeBinance = "binance"
	ExchangeKucoin  = "kucoin"
	ExchangeBybit   = "bybit"
)

// Pipeline scopes.
const (
	ScopeSelection = "selection"
	ScopeUniverse  = "universe"
)

const DefaultPath = "config/config.yml"

type Config struct {
	Cryptorank CryptorankConfig `yaml:"cryptorank"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Reader     ReaderConfig     `yaml:"reader"`
	Exchanges  ExchangesConfig  `yaml:"exchanges"`
	Universe   UniverseConfig   `yaml:"universe"`
	Ranking    RankingConfig    `yaml:"ranking"`
	Series     SeriesConfig     `yaml:"series"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Audit      AuditConfig      `yaml:"audit"`
}

type CryptorankConfig struct {
	Name    string `yaml:"name" default:"cryptorank" validate:"required"`
	Version string `yaml:"version" default:"dev" validate:"required"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `yaml:"format" default:"json" validate:"oneof=json text"`
	Output string `yaml:"output" default:"stdout"`
	MaxAge int    `yaml:"max_age" validate:"gte=0"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace" default:"CryptoRank"`
	Dashboard string `yaml:"dashboard" default:"CryptoRank"`
}

type ReaderConfig struct {
	MaxWorkers int             `yaml:"max_workers" default:"8" validate:"gte=1"`
	Timeout    time.Duration   `yaml:"timeout" default:"10s" validate:"gt=0"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
	Retry      RetryConfig     `yaml:"retry"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second" default:"5" validate:"gte=1"`
	BurstSize         int `yaml:"burst_size" default:"1" validate:"gte=1"`
}

type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts" default:"3" validate:"gte=1"`
	BaseDelay         time.Duration `yaml:"base_delay" default:"500ms" validate:"gte=0"`
	MaxDelay          time.Duration `yaml:"max_delay" default:"5s" validate:"gtefield=BaseDelay"`
	BackoffMultiplier int           `yaml:"backoff_multiplier" default:"2" validate:"gte=1"`
}

// ExchangesConfig assigns a provider to each data role.
type ExchangesConfig struct {
	InventoryA string `yaml:"inventory_a" default:"binance" validate:"oneof=binance kucoin bybit"`
	InventoryB string `yaml:"inventory_b" default:"kucoin" validate:"oneof=binance kucoin bybit"`
	Candles    string `yaml:"candles" default:"binance" validate:"oneof=binance kucoin bybit"`
	Prices     string `yaml:"prices" default:"kucoin" validate:"oneof=binance kucoin bybit"`

	Binance ExchangeConfig `yaml:"binance"`
	Kucoin  ExchangeConfig `yaml:"kucoin"`
	Bybit   ExchangeConfig `yaml:"bybit"`
}

type ExchangeConfig struct {
	BaseURL        string               `yaml:"base_url"`
	Quote          string               `yaml:"quote" default:"USDT" validate:"required,uppercase"`
	LocalIP        string               `yaml:"local_ip" validate:"omitempty,ip"`
	APIKey         string               `yaml:"api_key"`
	APISecret      string               `yaml:"api_secret"`
	Passphrase     string               `yaml:"passphrase"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns" default:"16" validate:"gte=0"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host" default:"16" validate:"gte=0"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout" default:"90s" validate:"gte=0"`
}

type UniverseConfig struct {
	Denylist []string `yaml:"denylist" default:"[\"REP\",\"CELO\",\"USDC\",\"DAI\",\"USDT\",\"AMP\",\"WBTC\",\"JASMY\",\"HNT\",\"SPELL\"]"`
}

type RankingConfig struct {
	Granularities []int `yaml:"granularities" default:"[1,3,5]" validate:"min=1,unique,dive,oneof=1 3 5 30"`
	TopK          int   `yaml:"top_k" default:"10" validate:"gte=1"`
	CandleLimit   int   `yaml:"candle_limit" default:"100" validate:"gte=2,lte=1000"`
	ATRPeriod     int   `yaml:"atr_period" default:"14" validate:"gte=1"`
}

type SeriesConfig struct {
	Granularity int `yaml:"granularity" default:"30" validate:"oneof=1 3 5 30"`
	CandleLimit int `yaml:"candle_limit" default:"1000" validate:"gte=2,lte=1000"`
}

type PipelineConfig struct {
	Scope string `yaml:"scope" default:"selection" validate:"oneof=selection universe"`
}

type AuditConfig struct {
	Dir     string        `yaml:"dir" default:"audit" validate:"required"`
	Archive ArchiveConfig `yaml:"archive"`
}

// ArchiveConfig controls the upload of the finished audit file to S3.
type ArchiveConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix" default:"audit/"`
	Endpoint        string `yaml:"endpoint" validate:"omitempty,url"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

var validate = validator.New()

// LoadConfig reads the YAML file at path, applies defaults and environment
// overrides, then validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML.
func Parse(data []byte) (*Config, error) {
	config := Config{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := defaults.Set(&config); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(cfg *Config) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	override(&cfg.Exchanges.Binance.APIKey, "BINANCE_API_KEY")
	override(&cfg.Exchanges.Binance.APISecret, "BINANCE_API_SECRET")
	override(&cfg.Exchanges.Kucoin.APIKey, "KUCOIN_API_KEY")
	override(&cfg.Exchanges.Kucoin.APISecret, "KUCOIN_API_SECRET")
	override(&cfg.Exchanges.Kucoin.Passphrase, "KUCOIN_API_PASSPHRASE")
	override(&cfg.Exchanges.Bybit.APIKey, "BYBIT_API_KEY")
	override(&cfg.Exchanges.Bybit.APISecret, "BYBIT_API_SECRET")
	override(&cfg.Logging.Level, "LOG_LEVEL")

	if cfg.Audit.Archive.Enabled {
		override(&cfg.Audit.Archive.AccessKeyID, "AWS_ACCESS_KEY_ID")
		override(&cfg.Audit.Archive.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
		override(&cfg.Audit.Archive.Region, "AWS_REGION")
		override(&cfg.Audit.Archive.Bucket, "AUDIT_BUCKET")
	}
	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Region == "" {
		override(&cfg.Metrics.CloudWatch.Region, "AWS_REGION")
	}

	cfg.Audit.Archive.Bucket = strings.TrimSpace(cfg.Audit.Archive.Bucket)
	for i, asset := range cfg.Universe.Denylist {
		cfg.Universe.Denylist[i] = strings.TrimSpace(asset)
	}
}

func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return describeValidationError(err)
	}

	if cfg.Exchanges.InventoryA == cfg.Exchanges.InventoryB {
		return fmt.Errorf("exchanges.inventory_a and exchanges.inventory_b must name different exchanges")
	}

	if cfg.Ranking.CandleLimit <= cfg.Ranking.ATRPeriod {
		return fmt.Errorf("ranking.candle_limit must be greater than ranking.atr_period")
	}

	if IsProductionLike(AppEnvironment()) && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be json in %s", AppEnvironment())
	}

	if cfg.Audit.Archive.Enabled {
		if cfg.Audit.Archive.Bucket == "" {
			return fmt.Errorf("audit.archive.bucket is required when archive is enabled")
		}
		if cfg.Audit.Archive.Region == "" {
			return fmt.Errorf("audit.archive.region is required when archive is enabled")
		}
		if !isValidS3Bucket(cfg.Audit.Archive.Bucket) {
			return fmt.Errorf("audit.archive.bucket '%s' is invalid", cfg.Audit.Archive.Bucket)
		}
	}

	return nil
}

func describeValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Errorf("%s failed '%s=%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Errorf("%s failed '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
}

// Exchange returns the settings block for the named exchange.
func (c *Config) Exchange(name string) ExchangeConfig {
	switch strings.ToLower(name) {
	case ExchangeBinance:
		return c.Exchanges.Binance
	case ExchangeKucoin:
		return c.Exchanges.Kucoin
	case ExchangeBybit:
		return c.Exchanges.Bybit
	default:
		return ExchangeConfig{}
	}
}

// Roles lists the distinct exchanges referenced by the role assignments.
func (c *Config) Roles() []string {
	seen := map[string]bool{}
	out := []string{}
	for _, name := range []string{c.Exchanges.InventoryA, c.Exchanges.InventoryB, c.Exchanges.Candles, c.Exchanges.Prices} {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
