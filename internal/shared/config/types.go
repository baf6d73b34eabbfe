package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host" validate:"required"`
	Port int    `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	Mode string `mapstructure:"mode" yaml:"mode" validate:"oneof=debug release test"`
	// Per-client request limits of the validation endpoint; 0 disables.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute" validate:"min=0"`
	RateLimitPerHour   int `mapstructure:"rate_limit_per_hour" yaml:"rate_limit_per_hour" validate:"min=0"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format     string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=console json"`
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
	// Debug shows source locations for every level, not just warn and error.
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// DatabaseConfig points at the sandbox ledger. Path may be ":memory:".
type DatabaseConfig struct {
	Path            string `mapstructure:"path" yaml:"path" validate:"required"`
	MaxOpenConns    int    `mapstructure:"max_open_conns" yaml:"max_open_conns" validate:"min=0"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime" validate:"min=0"`
	SlowThresholdMS int    `mapstructure:"slow_threshold_ms" yaml:"slow_threshold_ms" validate:"min=0"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	// ChannelPrefix namespaces the store event channels.
	ChannelPrefix string `mapstructure:"channel_prefix" yaml:"channel_prefix"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// CatalogProduct is one entry of the sandbox store catalog.
type CatalogProduct struct {
	ID          string        `mapstructure:"id" yaml:"id" validate:"required"`
	Title       string        `mapstructure:"title" yaml:"title" validate:"required"`
	Price       string        `mapstructure:"price" yaml:"price"`
	Description string        `mapstructure:"description" yaml:"description"`
	Period      time.Duration `mapstructure:"period" yaml:"period" validate:"min=0"`
}

type StoreConfig struct {
	Platform string `mapstructure:"platform" yaml:"platform" validate:"oneof=android ios"`
	// Products maps a platform name to the subscription ids requested on it.
	Products map[string][]string `mapstructure:"products" yaml:"products"`
	// CancelResponseCode is the platform response code meaning "user cancelled".
	CancelResponseCode string           `mapstructure:"cancel_response_code" yaml:"cancel_response_code" validate:"required"`
	Catalog            []CatalogProduct `mapstructure:"catalog" yaml:"catalog" validate:"dive"`
}

// ProductIDs returns the ids configured for the selected platform.
func (s *StoreConfig) ProductIDs() []string {
	return s.Products[s.Platform]
}

type ValidatorConfig struct {
	Endpoint       string        `mapstructure:"endpoint" yaml:"endpoint" validate:"required,url"`
	AuthSecret     string        `mapstructure:"auth_secret" yaml:"auth_secret"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" yaml:"attempt_timeout" validate:"gt=0"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries" validate:"min=0,max=10"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" yaml:"max_backoff" validate:"gtefield=InitialBackoff"`
}

type FlowConfig struct {
	UnlockPolicy string `mapstructure:"unlock_policy" yaml:"unlock_policy" validate:"oneof=optimistic confirm"`
}

type UIConfig struct {
	Locale string `mapstructure:"locale" yaml:"locale"`
}
