package config

import (
	"github.com/caarlos0/env/v10"
	_ "github.com/joho/godotenv/autoload"
)

type Services struct {
	Auth         string `env:"AUTH_SERVICE_URL" envDefault:"http://auth-service:8000"`
	Inspection   string `env:"INSPECTION_SERVICE_URL" envDefault:"http://inspection-service:8001"`
	Finance      string `env:"FINANCE_SERVICE_URL" envDefault:"http://finance-service:8002"`
	Warehouse    string `env:"WAREHOUSE_SERVICE_URL" envDefault:"http://warehouse-service:8003"`
	Notification string `env:"NOTIFICATION_SERVICE_URL" envDefault:"http://notification-service:8009"`
}

type Config struct {
	Services Services

	ServerPort string `env:"SERVER_PORT" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"LOG_FORMAT" envDefault:"json"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:8080"`
}

func LoadConfig() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
