// Package config manages application configuration from default values,
// config.yaml, and BOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration. Values can be set through
// the config file or environment variables prefixed with BOT_
// (e.g. BOT_TELEGRAM_TOKEN).
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Retention RetentionConfig `mapstructure:"retention"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LogConfig controls log level and output format.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// TelegramConfig holds the platform access token.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`
}

// DatabaseConfig holds the PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"     validate:"required"`
	Port     int    `mapstructure:"port"     validate:"required,gt=0,lte=65535"`
	User     string `mapstructure:"user"     validate:"required"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"     validate:"required"`
	SSLMode  string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
}

// CacheConfig holds the local attachment cache root directory.
type CacheConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// RetentionConfig controls how long captured content is kept and how the
// sweeper runs.
type RetentionConfig struct {
	Days                 int `mapstructure:"days"                   validate:"required,gt=0"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" validate:"required,gt=0"`
	SweepBatchSize       int `mapstructure:"sweep_batch_size"       validate:"required,gt=0"`
}

// MessagesConfig holds the user-facing text overrides.
type MessagesConfig struct {
	Welcome   string `mapstructure:"welcome" validate:"required"`
	Signature string `mapstructure:"signature"`
}

// Load loads and validates configuration from defaults, the config file at
// path, and BOT_* environment variables.
func Load(path string) (*Config, error) {
	setDefaults()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("BOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing config file is fine, defaults and env cover it.
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	// Empty defaults keep env-only keys visible to Unmarshal.
	viper.SetDefault("telegram.token", "")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.name", "")
	viper.SetDefault("database.ssl_mode", "disable")

	viper.SetDefault("cache.dir", "__cache__")

	viper.SetDefault("retention.days", 30)
	viper.SetDefault("retention.sweep_interval_seconds", 3600)
	viper.SetDefault("retention.sweep_batch_size", 1000)

	viper.SetDefault("messages.welcome", "👋 Hi! This bot keeps track of what your chat partners send, edit, and delete in your business chats.")
	viper.SetDefault("messages.signature", "")
}
