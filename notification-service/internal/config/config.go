package config

import (
	"github.com/caarlos0/env/v10"
	_ "github.com/joho/godotenv/autoload"

	"opsuite/pkg/mongodb"
)

type SMTP struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASS"`
	From     string `env:"SMTP_FROM" envDefault:"no-reply@opsuite.local"`
}

type Twilio struct {
	AccountSID string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	From       string `env:"TWILIO_FROM"`
}

type Config struct {
	MongoDB mongodb.Config
	SMTP    SMTP
	Twilio  Twilio

	ServerPort    string `env:"SERVER_PORT" envDefault:":8009"`
	RedisURL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"json"`
	InternalToken string `env:"INTERNAL_TOKEN,required"`

	AuthServiceURL string `env:"AUTH_SERVICE_URL" envDefault:"http://auth-service:8000"`

	// FirebaseCredentials is the service account file for FCM. Push is
	// disabled when empty.
	FirebaseCredentials string `env:"FIREBASE_CREDENTIALS_FILE"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

func LoadConfig() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
