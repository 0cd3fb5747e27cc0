package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config maps the entire application configuration. Values come from
// configs/config.yaml with environment variable overrides (SERVER_PORT,
// REDIS_ADDR, ...).
type Config struct {
	Server struct {
		Port    int    `mapstructure:"port"`
		BaseURL string `mapstructure:"base_url"` // used to build full short URLs
	} `mapstructure:"server"`

	Database struct {
		Name string `mapstructure:"name"` // SQLite database file name
	} `mapstructure:"database"`

	// Redis backs the existence cache and the rate limiter. With Enabled set
	// to false the server runs cache-less and rate-limits in process.
	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Cache struct {
		TTLSeconds int `mapstructure:"ttl_seconds"` // existence cache entry lifetime
	} `mapstructure:"cache"`

	Analytics struct {
		BufferSize  int `mapstructure:"buffer_size"`  // click event channel buffer
		WorkerCount int `mapstructure:"worker_count"` // click worker goroutines
	} `mapstructure:"analytics"`

	Monitor struct {
		IntervalMinutes int `mapstructure:"interval_minutes"`
	} `mapstructure:"monitor"`

	// RateLimit holds the per-tier request budgets over a one-minute window.
	RateLimit struct {
		General  int `mapstructure:"general"`
		Shorten  int `mapstructure:"shorten"`
		Redirect int `mapstructure:"redirect"`
		Search   int `mapstructure:"search"`
		Admin    int `mapstructure:"admin"`
	} `mapstructure:"ratelimit"`

	Admin struct {
		APIToken string `mapstructure:"api_token"` // bearer token with admin capability
	} `mapstructure:"admin"`
}

// LoadConfig loads the configuration using Viper, with defaults for every
// key so the server starts without any config file at all.
func LoadConfig() (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.AddConfigPath("./configs")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("database.name", "shortly.db")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("cache.ttl_seconds", 3600)
	viper.SetDefault("analytics.buffer_size", 1000)
	viper.SetDefault("analytics.worker_count", 5)
	viper.SetDefault("monitor.interval_minutes", 5)
	viper.SetDefault("ratelimit.general", 100)
	viper.SetDefault("ratelimit.shorten", 20)
	viper.SetDefault("ratelimit.redirect", 200)
	viper.SetDefault("ratelimit.search", 150)
	viper.SetDefault("ratelimit.admin", 50)
	viper.SetDefault("admin.api_token", "")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("Config file not found, using default values")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	log.Printf("Configuration loaded: Server Port=%d, DB Name=%s, Redis Enabled=%t, Cache TTL=%ds",
		cfg.Server.Port, cfg.Database.Name, cfg.Redis.Enabled, cfg.Cache.TTLSeconds)

	return &cfg, nil
}
