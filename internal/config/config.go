package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting, loaded from the environment
// (optionally seeded from a .env file).
type Config struct {
	Port    int    `env:"PORT" envDefault:"8080"`
	DBPath  string `env:"DB_PATH" envDefault:"data/rifa.db"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	JWTSecret     string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@rifa.local"`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:"123456"`

	// Mercado Pago
	MPAccessToken   string `env:"MP_ACCESS_TOKEN"`
	MPBaseURL       string `env:"MP_BASE_URL" envDefault:"https://api.mercadopago.com"`
	MPWebhookSecret string `env:"MP_WEBHOOK_SECRET"`

	// Background sweeps
	PaymentPollInterval  time.Duration `env:"PAYMENT_POLL_INTERVAL" envDefault:"1m"`
	ReminderPollInterval time.Duration `env:"REMINDER_POLL_INTERVAL" envDefault:"1h"`

	// Which customer fields participate in the dedup lookup (OR match,
	// first hit wins). The right dedup key is a product decision, so it
	// stays configurable instead of hard-coded.
	CustomerMatchFields []string `env:"CUSTOMER_MATCH_FIELDS" envDefault:"email,phone,cpf" envSeparator:","`

	// SMTP (customer notifications); disabled when host is empty
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM"`

	// Telegram (admin notifications); disabled when token is empty
	TelegramToken string `env:"TELEGRAM_TOKEN"`

	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads the .env file if present and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
