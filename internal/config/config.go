package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for the mindmarket service.
type Config struct {
	Port            int
	LogLevel        string
	LogFile         string
	DBPath          string
	AdminKey        string
	UpdaterKey      string
	TreasuryAccount string

	MaxUpdateDelay time.Duration
	EpochLength    time.Duration
	FeeBps         int64
	PriceScale     int64
	EpochInterval  time.Duration
	WebhookTimeout time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	MarketsFile string
}

// MarketSeed describes one market to create at boot when it does not
// already exist.
type MarketSeed struct {
	SubjectID     uint64 `yaml:"subject_id"`
	PriceSourceID uint64 `yaml:"price_source_id"`
	ExpiresAt     string `yaml:"expires_at"` // RFC3339
}

// marketsFile is the YAML shape of the optional MARKETS_FILE.
type marketsFile struct {
	Markets []MarketSeed `yaml:"markets"`
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	maxUpdateDelay, err := getDuration("MAX_UPDATE_DELAY", 1*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPDATE_DELAY: %w", err)
	}

	epochLength, err := getDuration("EPOCH_LENGTH", 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid EPOCH_LENGTH: %w", err)
	}

	feeBps, err := getInt("FEE_BPS", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid FEE_BPS: %w", err)
	}
	if feeBps < 0 || feeBps > 10_000 {
		return nil, fmt.Errorf("invalid FEE_BPS: must be between 0 and 10000")
	}

	priceScale, err := getInt("PRICE_SCALE", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid PRICE_SCALE: %w", err)
	}
	if priceScale <= 0 {
		return nil, fmt.Errorf("invalid PRICE_SCALE: must be positive")
	}

	epochInterval, err := getDuration("EPOCH_INTERVAL", 1*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid EPOCH_INTERVAL: %w", err)
	}

	webhookTimeout, err := getDuration("WEBHOOK_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:            port,
		LogLevel:        logLevel,
		LogFile:         getStr("LOG_FILE", ""),
		DBPath:          getStr("DB_PATH", "data/mindmarket.db"),
		AdminKey:        getStr("ADMIN_KEY", ""),
		UpdaterKey:      getStr("UPDATER_KEY", ""),
		TreasuryAccount: getStr("TREASURY_ACCOUNT", "treasury"),
		MaxUpdateDelay:  maxUpdateDelay,
		EpochLength:     epochLength,
		FeeBps:          int64(feeBps),
		PriceScale:      int64(priceScale),
		EpochInterval:   epochInterval,
		WebhookTimeout:  webhookTimeout,
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
		ShutdownTimeout: shutdownTimeout,
		MarketsFile:     getStr("MARKETS_FILE", ""),
	}, nil
}

// LoadMarketSeeds parses the optional YAML markets file. An unset path
// yields no seeds.
func (c *Config) LoadMarketSeeds() ([]MarketSeed, error) {
	if c.MarketsFile == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(c.MarketsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read markets file: %w", err)
	}

	var f marketsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse markets file: %w", err)
	}

	for i, seed := range f.Markets {
		if seed.SubjectID == 0 || seed.PriceSourceID == 0 {
			return nil, fmt.Errorf("markets file entry %d: subject_id and price_source_id must be positive", i)
		}
		if _, err := time.Parse(time.RFC3339, seed.ExpiresAt); err != nil {
			return nil, fmt.Errorf("markets file entry %d: invalid expires_at: %w", i, err)
		}
	}
	return f.Markets, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
