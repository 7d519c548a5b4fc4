package redis

import (
	"github.com/spf13/viper"
)

type Config struct {
	Address      string
	Username     string
	Password     string
	DB           int
	Namespace    string
	Debug        bool
	TLS          bool
	PoolSize     int
	MaxRetries   int
	DialTimeout  int // milliseconds
	ReadTimeout  int // milliseconds
	WriteTimeout int // milliseconds
	ClientName   string
	Tracing      bool
}

// ReadConfig returns nil when no address is configured, which callers treat as "redis disabled".
func ReadConfig() *Config {
	viper.BindEnv("redis.address", "REDIS_ADDRESS")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	if viper.GetString("redis.address") == "" {
		return nil
	}
	return &Config{
		Address:      viper.GetString("redis.address"),
		Username:     viper.GetString("redis.username"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		Namespace:    viper.GetString("redis.namespace"),
		Debug:        viper.GetBool("redis.debug"),
		TLS:          viper.GetBool("redis.tls"),
		PoolSize:     viper.GetInt("redis.pool_size"),
		MaxRetries:   viper.GetInt("redis.max_retries"),
		DialTimeout:  viper.GetInt("redis.dial_timeout"),
		ReadTimeout:  viper.GetInt("redis.read_timeout"),
		WriteTimeout: viper.GetInt("redis.write_timeout"),
		ClientName:   viper.GetString("redis.client_name"),
		Tracing:      viper.GetBool("redis.tracing_enabled"),
	}
}
