package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	sharedConfig "iapgate/internal/shared/config"
)

type Config struct {
	Server    sharedConfig.ServerConfig    `mapstructure:"server" yaml:"server"`
	Logger    sharedConfig.LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Database  sharedConfig.DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Redis     sharedConfig.RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Store     sharedConfig.StoreConfig     `mapstructure:"store" yaml:"store"`
	Validator sharedConfig.ValidatorConfig `mapstructure:"validator" yaml:"validator"`
	Flow      sharedConfig.FlowConfig      `mapstructure:"flow" yaml:"flow"`
	UI        sharedConfig.UIConfig        `mapstructure:"ui" yaml:"ui"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load reads configs/config.yaml (when present) and IAPGATE_* environment
// variables on top of the defaults. A missing config file is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	v.SetEnvPrefix("IAPGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Validate checks struct-level constraints of a loaded configuration.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults (development validation endpoint)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.rate_limit_per_minute", 120)
	v.SetDefault("server.rate_limit_per_hour", 0)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stderr")
	v.SetDefault("logger.debug", false)

	// Sandbox ledger
	v.SetDefault("database.path", "iapgate-sandbox.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.slow_threshold_ms", 200)

	// Redis defaults (event bus is in-memory unless enabled)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel_prefix", "iapgate:store")

	// Store defaults
	v.SetDefault("store.platform", "android")
	v.SetDefault("store.products", map[string][]string{
		"android": {"rniapt_699_1m"},
		"ios":     {},
	})
	v.SetDefault("store.cancel_response_code", "2")
	v.SetDefault("store.catalog", []map[string]any{
		{
			"id":          "rniapt_699_1m",
			"title":       "Monthly subscription",
			"price":       "$6.99",
			"description": "Full access to the demo app, renewed monthly.",
			"period":      "720h",
		},
	})

	// Validator defaults
	v.SetDefault("validator.endpoint", "http://127.0.0.1:8090/validate")
	v.SetDefault("validator.auth_secret", "")
	v.SetDefault("validator.timeout", "15s")
	v.SetDefault("validator.attempt_timeout", "5s")
	v.SetDefault("validator.max_retries", 3)
	v.SetDefault("validator.initial_backoff", "200ms")
	v.SetDefault("validator.max_backoff", "2s")

	// Flow defaults
	v.SetDefault("flow.unlock_policy", "optimistic")

	// UI defaults
	v.SetDefault("ui.locale", "en")
}
