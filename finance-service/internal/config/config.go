package config

import (
	"github.com/caarlos0/env/v10"
	_ "github.com/joho/godotenv/autoload"

	"opsuite/pkg/mongodb"
	"opsuite/pkg/storage"
)

type Config struct {
	MongoDB mongodb.Config
	Storage storage.Config

	ServerPort    string `env:"SERVER_PORT" envDefault:":8002"`
	RedisURL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"json"`
	InternalToken string `env:"INTERNAL_TOKEN,required"`

	AuthServiceURL         string `env:"AUTH_SERVICE_URL" envDefault:"http://auth-service:8000"`
	InspectionServiceURL   string `env:"INSPECTION_SERVICE_URL" envDefault:"http://inspection-service:8001"`
	NotificationServiceURL string `env:"NOTIFICATION_SERVICE_URL" envDefault:"http://notification-service:8009"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

func LoadConfig() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
