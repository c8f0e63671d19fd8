package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all process-wide settings. It is built once at startup and
// passed explicitly to the components that need it; nothing mutates it at
// runtime.
type Config struct {
	Database struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
	} `mapstructure:"database"`
	Redis struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Password string `mapstructure:"password"`
	} `mapstructure:"redis"`
	Server struct {
		Port                  string `mapstructure:"port"`
		RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	} `mapstructure:"server"`
	JWT struct {
		SecretKey string `mapstructure:"secret_key"`
	} `mapstructure:"jwt"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
}

// Load reads config.yml from path, overlays environment variables, and
// returns the resulting configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.AutomaticEnv()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout_seconds", 10)
	v.SetDefault("kafka.topic", "ledger.transaction.completed")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return cfg, nil
}
