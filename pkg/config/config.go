package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration, read from the environment
type Config struct {
	Port           string
	GinMode        string
	DatabaseURL    string
	DataPath       string
	TemplateSlots  int
	Location       *time.Location
	ReceiptDir     string
	ReceiptBaseURL string
	ReceiptMaxEdge int
	MaxOpenConns   int
	MaxIdleConns   int
}

// LoadDotEnv loads the first .env found in the working directory or its parents
func LoadDotEnv() {
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			break
		}
	}
}

// Load reads Config from the environment and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8000"),
		GinMode:        getEnv("GIN_MODE", ""),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DataPath:       getEnv("DATA_PATH", "routes.db"),
		TemplateSlots:  getEnvInt("TEMPLATE_SLOTS", 10),
		ReceiptDir:     getEnv("RECEIPT_DIR", "receipts"),
		ReceiptBaseURL: getEnv("RECEIPT_BASE_URL", "/receipts"),
		ReceiptMaxEdge: getEnvInt("RECEIPT_MAX_EDGE", 1280),
		MaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:   getEnvInt("DB_MAX_IDLE_CONNS", 5),
	}

	if cfg.TemplateSlots < 1 {
		return nil, fmt.Errorf("invalid config: TEMPLATE_SLOTS must be at least 1, got %d", cfg.TemplateSlots)
	}
	if cfg.ReceiptMaxEdge < 1 {
		return nil, fmt.Errorf("invalid config: RECEIPT_MAX_EDGE must be positive, got %d", cfg.ReceiptMaxEdge)
	}

	tz := getEnv("TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid config: TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
