package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read only at startup.
type Config struct {
	Addr           string
	BreadAPIURL    string
	StartPath      string
	TurnPath       string
	AllowedOrigin  string
	SessionTable   string
	ParamPrefix    string
	Language       string
	RequestTimeout time.Duration
	PageTTL        time.Duration
}

// Load reads the configuration from the environment. A .env file in the
// working directory is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:           getEnvDefault("ADDR", ":8080"),
		BreadAPIURL:    strings.TrimSpace(os.Getenv("BREAD_API_URL")),
		StartPath:      getEnvDefault("START_PATH", "/start/"),
		TurnPath:       getEnvDefault("TURN_PATH", "/bread"),
		AllowedOrigin:  getEnvDefault("ALLOWED_ORIGIN", "*"),
		SessionTable:   strings.TrimSpace(os.Getenv("SESSION_TABLE")),
		ParamPrefix:    strings.TrimRight(strings.TrimSpace(os.Getenv("PARAM_PREFIX")), "/"),
		Language:       getEnvDefault("LANGUAGE", "en"),
		RequestTimeout: time.Duration(envInt("REQUEST_TIMEOUT", 0)) * time.Second,
		PageTTL:        time.Duration(envInt("PAGE_TTL_MINUTES", 120)) * time.Minute,
	}
	if cfg.BreadAPIURL == "" {
		return Config{}, errors.New("config: BREAD_API_URL is required")
	}
	if cfg.RequestTimeout < 0 {
		return Config{}, fmt.Errorf("config: REQUEST_TIMEOUT must not be negative")
	}
	if cfg.PageTTL <= 0 {
		return Config{}, fmt.Errorf("config: PAGE_TTL_MINUTES must be positive")
	}
	return cfg, nil
}

func getEnvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}
