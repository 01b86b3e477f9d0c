package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const EnvProduction = "production"

type Config struct {
	Port         string `env:"PORT" env-default:"8080"`
	DatabaseURL  string `env:"DATABASE_URL,MONGO_URI" env-required:"true"`
	DatabaseName string `env:"DATABASE_NAME" env-default:"blog"`
	ClientURL    string `env:"CLIENT_URL" env-default:"http://localhost:5173"`
	Env          string `env:"APP_ENV,NODE_ENV" env-default:"development"`
	TrustProxy   bool   `env:"TRUST_PROXY" env-default:"false"`

	Auth  AuthConfig
	AI    AIConfig
	Redis RedisConfig
	Log   LogConfig
}

type AuthConfig struct {
	JWTSecret  string        `env:"JWT_SECRET" env-required:"true"`
	TokenTTL   time.Duration `env:"TOKEN_TTL" env-default:"24h"`
	BcryptCost int           `env:"BCRYPT_COST" env-default:"10"`
	RateLimit  int           `env:"AUTH_RATE_LIMIT" env-default:"10"`
	RateWindow time.Duration `env:"AUTH_RATE_WINDOW" env-default:"1m"`
}

type AIConfig struct {
	APIKey  string        `env:"GEMINI_API_KEY"`
	Model   string        `env:"GEMINI_MODEL" env-default:"gemini-1.5-flash"`
	BaseURL string        `env:"GEMINI_BASE_URL" env-default:"https://generativelanguage.googleapis.com"`
	Timeout time.Duration `env:"AI_TIMEOUT" env-default:"30s"`
}

// RedisConfig is optional. Without an address, rate limits are kept in memory.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
	JSON  bool   `env:"LOG_JSON" env-default:"false"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.ClientURL = strings.TrimRight(strings.TrimSpace(cfg.ClientURL), "/")

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Auth.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("TOKEN_TTL must be positive")
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}
