package config

import (
	"github.com/caarlos0/env/v10"
	_ "github.com/joho/godotenv/autoload"

	"opsuite/pkg/mongodb"
)

type Config struct {
	MongoDB mongodb.Config

	ServerPort    string `env:"SERVER_PORT" envDefault:":8000"`
	RedisURL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"json"`
	JWTSecret     string `env:"JWT_SECRET,required"`
	InternalToken string `env:"INTERNAL_TOKEN"`

	NotificationServiceURL string `env:"NOTIFICATION_SERVICE_URL" envDefault:"http://notification-service:8009"`

	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`

	SMTPHost string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
	SMTPFrom string `env:"SMTP_FROM" envDefault:"no-reply@opsuite.local"`

	SuperadminEmail    string `env:"SUPERADMIN_EMAIL"`
	SuperadminPassword string `env:"SUPERADMIN_PASSWORD"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

func LoadConfig() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
