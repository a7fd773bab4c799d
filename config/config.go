package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DataDir    string
	ProfileDir string
	HTTPAddr   string

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	GeocoderURL        string
	GeocoderUserAgent  string
	GeocoderRatePerSec float64

	ScraperCommand []string
	ScraperDir     string
	ScraperOutput  string

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	ChromeBin      string
	QuintoAndarURL string

	LogLevel  string
	LogFormat string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		DataDir:    getEnv("DATA_DIR", "./data"),
		ProfileDir: getEnv("PROFILE_DIR", "./data/profile"),
		HTTPAddr:   getEnv("HTTP_ADDR", ":3001"),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "melhorcasa"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "melhorcasa"),
		PostgresDB:       getEnv("POSTGRES_DB", "melhor_casa"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		GeocoderURL:        getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent:  getEnv("GEOCODER_USER_AGENT", "melhor-casa/1.0"),
		GeocoderRatePerSec: getEnvFloat("GEOCODER_RATE_PER_SEC", 1),

		ScraperCommand: strings.Fields(getEnv("SCRAPER_COMMAND", "python scraper_unificado.py")),
		ScraperDir:     getEnv("SCRAPER_DIR", "./server"),
		ScraperOutput:  getEnv("SCRAPER_OUTPUT", "imoveis_consolidado.xlsx"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		ChromeBin:      getEnv("CHROME_BIN", ""),
		QuintoAndarURL: getEnv("QUINTOANDAR_URL", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
