// Package config содержит логику чтения конфигурации кассового терминала.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DefaultRunAddress     = "localhost:8080"
	DefaultBackendURL     = "https://api-savdo.elegantchinni.uz/api"
	DefaultExchangeRate   = 12180
	DefaultBackendTimeout = 30 * time.Second
)

// Config содержит параметры конфигурации кассового терминала.
type Config struct {
	RunAddress     string        `env:"RUN_ADDRESS"`
	BackendURL     string        `env:"BACKEND_URL"`
	DatabaseURI    string        `env:"DATABASE_URI"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB"`
	CookieSecret   string        `env:"COOKIE_SECRET"`
	ExchangeRate   float64       `env:"EXCHANGE_RATE"`
	FilialID       int64         `env:"FILIAL_ID"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT"`
}

// Parse считывает конфигурацию: файл .env (если есть), флаги командной строки
// и переменные окружения. Переменные окружения важнее флагов.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	fromEnv := &Config{}
	if err := env.Parse(fromEnv); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{
		RedisPassword:  fromEnv.RedisPassword,
		RedisDB:        fromEnv.RedisDB,
		CookieSecret:   fromEnv.CookieSecret,
		FilialID:       fromEnv.FilialID,
		BackendTimeout: fromEnv.BackendTimeout,
	}

	flag.StringVar(&cfg.RunAddress, "a", DefaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.BackendURL, "b", DefaultBackendURL, "backend API base URL")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "sales journal database URI")
	flag.StringVar(&cfg.RedisAddr, "r", "", "redis address for the token cache")
	flag.Float64Var(&cfg.ExchangeRate, "x", DefaultExchangeRate, "initial exchange rate, UZS per 1 USD")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.BackendURL != "" {
		cfg.BackendURL = fromEnv.BackendURL
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.RedisAddr != "" {
		cfg.RedisAddr = fromEnv.RedisAddr
	}
	if fromEnv.ExchangeRate != 0 {
		cfg.ExchangeRate = fromEnv.ExchangeRate
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = DefaultRunAddress
	}
	if cfg.BackendTimeout <= 0 {
		cfg.BackendTimeout = DefaultBackendTimeout
	}

	return cfg, nil
}
