package main

import (
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	Debug       bool   `mapstructure:"debug"`
	Environment string `mapstructure:"environment"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Sentry struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"sentry"`

	Server struct {
		Port        string   `mapstructure:"port"`
		JWTSecret   string   `mapstructure:"jwt_secret"`
		CORSOrigins []string `mapstructure:"cors_origins"`
	} `mapstructure:"server"`

	Store struct {
		DSN      string `mapstructure:"dsn"`
		LogLevel int    `mapstructure:"log_level"`
	} `mapstructure:"store"`

	Storage struct {
		Driver    string `mapstructure:"driver"`
		LocalRoot string `mapstructure:"local_root"`
		PublicURL string `mapstructure:"public_url"`
	} `mapstructure:"storage"`

	S3 struct {
		Bucket   string `mapstructure:"bucket"`
		Region   string `mapstructure:"region"`
		Endpoint string `mapstructure:"endpoint"`
	} `mapstructure:"s3"`

	Cloudflare struct {
		AccountID   string `mapstructure:"account_id"`
		AccountHash string `mapstructure:"account_hash"`
		APIToken    string `mapstructure:"api_token"`
		Variant     string `mapstructure:"variant"`
	} `mapstructure:"cloudflare"`

	Cache struct {
		Backend       string        `mapstructure:"backend"`
		LocalSize     int           `mapstructure:"local_size"`
		LocalTTL      time.Duration `mapstructure:"local_ttl"`
		SharedTTL     time.Duration `mapstructure:"shared_ttl"`
		SharedJitter  time.Duration `mapstructure:"shared_jitter"`
		NotifyChannel string        `mapstructure:"notify_channel"`
	} `mapstructure:"cache"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	MongoDB struct {
		URI  string `mapstructure:"uri"`
		Name string `mapstructure:"name"`
	} `mapstructure:"mongodb"`

	Discovery struct {
		Endpoint string `mapstructure:"endpoint"`
	} `mapstructure:"discovery"`

	Cleanup struct {
		Workers   int `mapstructure:"workers"`
		QueueSize int `mapstructure:"queue_size"`
	} `mapstructure:"cleanup"`

	Ingest struct {
		FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	} `mapstructure:"ingest"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("storage.driver", "s3")
	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.local_size", 10000)
	v.SetDefault("cache.local_ttl", "5m")
	v.SetDefault("cache.shared_ttl", "10m")
	v.SetDefault("cache.shared_jitter", "3m")
	v.SetDefault("cache.notify_channel", "gallery_cache")
	v.SetDefault("cleanup.workers", 4)
	v.SetDefault("cleanup.queue_size", 1024)
	v.SetDefault("ingest.fetch_timeout", "30s")
	v.SetDefault("metrics.enabled", true)
}

// loadConfig decodes the viper settings. Durations accept "30s" style values
// and lists accept comma separated strings.
func loadConfig(v *viper.Viper) (Config, error) {
	setDefaults(v)

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	return cfg, err
}
