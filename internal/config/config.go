// Package config loads MomentumEngine's runtime configuration (spec
// §6.4): a YAML file, then environment variable overrides, then
// per-package defaults for anything still unset. Each setting has one
// fixed environment variable name (no prefix-building), since spec
// §6.4 names the exact env vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/momentumcore/internal/detect/bullflag"
	"github.com/sawpanic/momentumcore/internal/detect/catalyst"
	"github.com/sawpanic/momentumcore/internal/detect/premarket"
	"github.com/sawpanic/momentumcore/internal/httpapi"
	"github.com/sawpanic/momentumcore/internal/rank"
	"github.com/sawpanic/momentumcore/internal/resilience"
)

// Config is the full spec §6.4 configuration surface, as loaded from
// YAML before env overrides and defaults are applied.
type Config struct {
	NewsAPIKey     string  `yaml:"news_api_key"`
	MarketDataSource string `yaml:"market_data_source"`

	PremarketMinChangePct float64 `yaml:"premarket_min_change_pct"`
	VolumeRatioMin        float64 `yaml:"volume_ratio_min"`

	PoleMinGainPct float64 `yaml:"pole_min_gain_pct"`
	FlagRangeMinPct float64 `yaml:"flag_range_min_pct"`
	FlagRangeMaxPct float64 `yaml:"flag_range_max_pct"`

	CompositeWeights struct {
		Catalyst  float64 `yaml:"catalyst"`
		PreMarket float64 `yaml:"premarket"`
		BullFlag  float64 `yaml:"bullflag"`
	} `yaml:"composite_weights"`

	MaxConcurrencyPerAdapter int `yaml:"max_concurrency_per_adapter"`

	RetryMaxAttempts    int     `yaml:"retry_max_attempts"`
	RetryBaseDelaySec   float64 `yaml:"retry_base_delay_s"`
	RetryBackoffFactor  float64 `yaml:"retry_backoff_factor"`

	CircuitBreakerFailures   int     `yaml:"circuit_breaker_failures"`
	CircuitBreakerCooldownSec float64 `yaml:"circuit_breaker_cooldown_s"`

	LogRoot string `yaml:"log_root"`

	HTTPHost string `yaml:"http_host"`
	HTTPPort int    `yaml:"http_port"`

	// RedisAddr empty disables the pre-market baseline cache entirely
	// (premarket.Detector.Cache is left nil, per spec §4.12).
	RedisAddr string `yaml:"redis_addr"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the spec §6.4 defaults, unconnected to any file or
// environment.
func Default() Config {
	var c Config
	c.MarketDataSource = "alpaca"
	c.PremarketMinChangePct = 5.0
	c.VolumeRatioMin = 2.0
	c.PoleMinGainPct = 8.0
	c.FlagRangeMinPct = 3.0
	c.FlagRangeMaxPct = 5.0
	c.CompositeWeights.Catalyst = 0.25
	c.CompositeWeights.PreMarket = 0.35
	c.CompositeWeights.BullFlag = 0.40
	c.MaxConcurrencyPerAdapter = 8
	c.RetryMaxAttempts = 3
	c.RetryBaseDelaySec = 2
	c.RetryBackoffFactor = 2
	c.CircuitBreakerFailures = 5
	c.CircuitBreakerCooldownSec = 60
	c.LogRoot = "./logs"
	c.HTTPHost = "127.0.0.1"
	c.HTTPPort = 8090
	c.LogLevel = "info"
	return c
}

// Load reads path (if non-empty and it exists) as YAML over the
// defaults, then applies environment variable overrides. A missing
// path is not an error — it simply means "defaults plus env".
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return Config{}, fmt.Errorf("read config file %s: %w", path, err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.RankWeights().Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("NEWS_API_KEY"); v != "" {
		c.NewsAPIKey = v
	}
	if v := os.Getenv("MARKET_DATA_SOURCE"); v != "" {
		c.MarketDataSource = v
	}
	if v, ok := envFloat("PREMARKET_MIN_CHANGE_PCT"); ok {
		c.PremarketMinChangePct = v
	}
	if v, ok := envFloat("VOLUME_RATIO_MIN"); ok {
		c.VolumeRatioMin = v
	}
	if v, ok := envFloat("POLE_MIN_GAIN_PCT"); ok {
		c.PoleMinGainPct = v
	}
	if v, ok := envFloat("FLAG_RANGE_MIN_PCT"); ok {
		c.FlagRangeMinPct = v
	}
	if v, ok := envFloat("FLAG_RANGE_MAX_PCT"); ok {
		c.FlagRangeMaxPct = v
	}
	if v := os.Getenv("COMPOSITE_WEIGHTS"); v != "" {
		var cw, pw, bw float64
		if n, err := fmt.Sscanf(v, "%f,%f,%f", &cw, &pw, &bw); err == nil && n == 3 {
			c.CompositeWeights.Catalyst = cw
			c.CompositeWeights.PreMarket = pw
			c.CompositeWeights.BullFlag = bw
		}
	}
	if v, ok := envInt("MAX_CONCURRENCY_PER_ADAPTER"); ok {
		c.MaxConcurrencyPerAdapter = v
	}
	if v, ok := envInt("RETRY_MAX_ATTEMPTS"); ok {
		c.RetryMaxAttempts = v
	}
	if v, ok := envFloat("RETRY_BASE_DELAY_S"); ok {
		c.RetryBaseDelaySec = v
	}
	if v, ok := envFloat("RETRY_BACKOFF_FACTOR"); ok {
		c.RetryBackoffFactor = v
	}
	if v, ok := envInt("CIRCUIT_BREAKER_FAILURES"); ok {
		c.CircuitBreakerFailures = v
	}
	if v, ok := envFloat("CIRCUIT_BREAKER_COOLDOWN_S"); ok {
		c.CircuitBreakerCooldownSec = v
	}
	if v := os.Getenv("LOG_ROOT"); v != "" {
		c.LogRoot = v
	}
	if v := os.Getenv("HTTP_HOST"); v != "" {
		c.HTTPHost = v
	}
	if v, ok := envInt("HTTP_PORT"); ok {
		c.HTTPPort = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func envFloat(name string) (float64, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CatalystConfig projects Config onto catalyst.Config.
func (c Config) CatalystConfig() catalyst.Config {
	return catalyst.Config{MaxConcurrency: c.MaxConcurrencyPerAdapter}
}

// PremarketConfig projects Config onto premarket.Config.
func (c Config) PremarketConfig() premarket.Config {
	return premarket.Config{
		MinChangePct:   c.PremarketMinChangePct,
		MinVolumeRatio: c.VolumeRatioMin,
		BaselineDays:   10,
		MaxConcurrency: c.MaxConcurrencyPerAdapter,
	}
}

// BullFlagConfig projects Config onto bullflag.Config.
func (c Config) BullFlagConfig() bullflag.Config {
	return bullflag.Config{
		PoleMinGainPct: c.PoleMinGainPct,
		FlagRangeMin:   c.FlagRangeMinPct,
		FlagRangeMax:   c.FlagRangeMaxPct,
		LookbackDays:   100,
		MaxConcurrency: c.MaxConcurrencyPerAdapter,
	}
}

// RankWeights projects Config onto rank.Weights.
func (c Config) RankWeights() rank.Weights {
	return rank.Weights{
		Catalyst:  c.CompositeWeights.Catalyst,
		PreMarket: c.CompositeWeights.PreMarket,
		BullFlag:  c.CompositeWeights.BullFlag,
	}
}

// HTTPServerConfig projects Config onto httpapi.ServerConfig.
func (c Config) HTTPServerConfig() httpapi.ServerConfig {
	cfg := httpapi.DefaultServerConfig()
	cfg.Host = c.HTTPHost
	cfg.Port = c.HTTPPort
	return cfg
}

// ResilienceConfig projects Config onto resilience.Config, leaving
// the fields spec §6.4 doesn't name (PerCallTimeout, Jitter, rate
// limiting, Classifier) at resilience.DefaultConfig's values.
func (c Config) ResilienceConfig() resilience.Config {
	base := resilience.DefaultConfig()
	base.MaxAttempts = c.RetryMaxAttempts
	base.BaseDelay = time.Duration(c.RetryBaseDelaySec * float64(time.Second))
	base.BackoffFactor = c.RetryBackoffFactor
	base.Breaker.ConsecutiveFailures = uint32(c.CircuitBreakerFailures)
	base.Breaker.Cooldown = time.Duration(c.CircuitBreakerCooldownSec * float64(time.Second))
	return base
}
