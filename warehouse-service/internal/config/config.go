package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	_ "github.com/joho/godotenv/autoload"

	"opsuite/pkg/mongodb"
)

type Config struct {
	MongoDB mongodb.Config

	ServerPort    string `env:"SERVER_PORT" envDefault:":8003"`
	RedisURL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"json"`
	InternalToken string `env:"INTERNAL_TOKEN,required"`

	AuthServiceURL         string `env:"AUTH_SERVICE_URL" envDefault:"http://auth-service:8000"`
	NotificationServiceURL string `env:"NOTIFICATION_SERVICE_URL" envDefault:"http://notification-service:8009"`

	// WarrantyCheckInterval is how often the expiry reminder job runs.
	WarrantyCheckInterval time.Duration `env:"WARRANTY_CHECK_INTERVAL" envDefault:"24h"`
}

func LoadConfig() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
