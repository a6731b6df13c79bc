package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

type Config struct {
	APIBaseURL     string
	WSBaseURL      string
	DBFile         string
	RequestTimeout time.Duration
}

func Load() (*Config, error) {
	timeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "15s"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIBaseURL:     getEnv("PLANTARIA_API_URL", "http://localhost:8000"),
		WSBaseURL:      getEnv("PLANTARIA_WS_URL", "ws://localhost:8000"),
		DBFile:         getEnv("PLANTARIA_DB", "plantaria.db"),
		RequestTimeout: timeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := url.Parse(c.APIBaseURL); err != nil {
		return fmt.Errorf("invalid PLANTARIA_API_URL: %w", err)
	}

	if _, err := url.Parse(c.WSBaseURL); err != nil {
		return fmt.Errorf("invalid PLANTARIA_WS_URL: %w", err)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be greater than 0")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
