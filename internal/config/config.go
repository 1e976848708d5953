package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	App       AppConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type AppConfig struct {
	UploadDir      string
	MaxUploadSize  int64
	AllowedFormats []string
	StaticCacheAge time.Duration
}

type RateLimitConfig struct {
	Window time.Duration
	Max    int
}

func Load() (*Config, error) {
	// Optional .env for local development; real deployments set env vars.
	_ = godotenv.Load()

	viper.SetDefault("SERVER_HOST", "localhost")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("APP_UPLOAD_DIR", "./uploads")
	viper.SetDefault("APP_MAX_UPLOAD_SIZE", 10*1024*1024) // 10 MiB
	viper.SetDefault("APP_ALLOWED_FORMATS", []string{".jpg", ".jpeg", ".png", ".gif", ".webp"})
	viper.SetDefault("APP_STATIC_CACHE_AGE", "1h")
	viper.SetDefault("RATE_LIMIT_WINDOW", "15m")
	viper.SetDefault("RATE_LIMIT_MAX", 100)

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("SERVER_HOST"),
			Port: viper.GetString("SERVER_PORT"),
		},
		App: AppConfig{
			UploadDir:      viper.GetString("APP_UPLOAD_DIR"),
			MaxUploadSize:  viper.GetInt64("APP_MAX_UPLOAD_SIZE"),
			AllowedFormats: viper.GetStringSlice("APP_ALLOWED_FORMATS"),
			StaticCacheAge: viper.GetDuration("APP_STATIC_CACHE_AGE"),
		},
		RateLimit: RateLimitConfig{
			Window: viper.GetDuration("RATE_LIMIT_WINDOW"),
			Max:    viper.GetInt("RATE_LIMIT_MAX"),
		},
	}

	if err := os.MkdirAll(cfg.App.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", cfg.App.UploadDir, err)
	}

	return cfg, nil
}
