package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort string `env:"APP_PORT" envDefault:"5000"`

	DBDSN string `env:"DB_DSN,required"`

	JWTSecret  string        `env:"JWT_SECRET,required"`
	JWTExpires time.Duration `env:"JWT_EXPIRES" envDefault:"720h"`
	CookieName string        `env:"AUTH_COOKIE_NAME" envDefault:"token"`

	AllowedOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,https://gig-flow-platform.vercel.app,https://gigflow-platform.vercel.app"`
	FrontendBaseURL string   `env:"FRONTEND_BASE_URL" envDefault:"http://localhost:5173"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`
	GoogleSecret   string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirect string `env:"GOOGLE_REDIRECT_URL"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	RateLimitAuthPerMin int `env:"RATE_LIMIT_AUTH_PER_MIN" envDefault:"20"`
	RateLimitBidsPerMin int `env:"RATE_LIMIT_BIDS_PER_MIN" envDefault:"30"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads the process environment. Call godotenv.Load first if a .env file
// should seed it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	var missing []string
	if strings.TrimSpace(cfg.DBDSN) == "" {
		missing = append(missing, "DB_DSN")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config.Load: required environment variables are empty: %v", missing)
	}
	if cfg.JWTExpires <= 0 {
		return nil, fmt.Errorf("config.Load: JWT_EXPIRES must be positive, got %s", cfg.JWTExpires)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleSecret != "" && c.GoogleRedirect != ""
}
