package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Extract  ExtractConfig
	OCR      OCRConfig
	Batch    BatchConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string
}

// ExtractConfig holds the extraction engine's tuning constants.
// The defaults are calibrated against the BTEC document template family;
// they are configuration rather than code so other layouts can retune them.
type ExtractConfig struct {
	PageConcurrency   int           // concurrent PDF pages, default 6
	PageTimeout       time.Duration // per-page decode budget, default 15s
	MaxPages          int           // subprocess fallback beyond this, default 500
	ScannedCutoff     int           // combined chars below which a doc is scanned, default 50
	MeaningfulCutoff  int           // combined chars below which OCR is attempted, default 200
	PageTextCutoff    int           // per-page meaningful-text threshold, default 120
	PageDensityTarget int           // chars/page density target, default 900
	LineYTolerance    float64       // y bucketing tolerance, default 4
	SpaceGap          float64       // x gap that implies a missing space, default 3
	Pdftotext         string        // fallback binary name or absolute path
	SubprocessTimeout time.Duration // fallback extractor budget, default 15s
	CoverPages        int           // leading page window for cover-only mode, 1-3
	EquationCutoff    float64       // equation-token recognition confidence cutoff, default 0.86
}

// OCRConfig holds the external OCR/vision service configuration
type OCRConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	MaxPages int
}

// BatchConfig holds batch grading configuration
type BatchConfig struct {
	Concurrency int // worker pool size, clamped to 1..4
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Extract: ExtractConfig{
			PageConcurrency:   getEnvAsInt("EXTRACT_PAGE_CONCURRENCY", 6),
			PageTimeout:       getEnvAsDuration("EXTRACT_PAGE_TIMEOUT", 15*time.Second),
			MaxPages:          getEnvAsInt("EXTRACT_MAX_PAGES", 500),
			ScannedCutoff:     getEnvAsInt("EXTRACT_SCANNED_CUTOFF", 50),
			MeaningfulCutoff:  getEnvAsInt("EXTRACT_MEANINGFUL_CUTOFF", 200),
			PageTextCutoff:    getEnvAsInt("EXTRACT_PAGE_TEXT_CUTOFF", 120),
			PageDensityTarget: getEnvAsInt("EXTRACT_PAGE_DENSITY_TARGET", 900),
			LineYTolerance:    getEnvAsFloat64("EXTRACT_LINE_Y_TOLERANCE", 4),
			SpaceGap:          getEnvAsFloat64("EXTRACT_SPACE_GAP", 3),
			Pdftotext:         getEnv("PDFTOTEXT_BIN", "pdftotext"),
			SubprocessTimeout: getEnvAsDuration("EXTRACT_SUBPROCESS_TIMEOUT", 15*time.Second),
			CoverPages:        getEnvAsInt("EXTRACT_COVER_PAGES", 3),
			EquationCutoff:    getEnvAsFloat64("EXTRACT_EQUATION_CUTOFF", 0.86),
		},
		OCR: OCRConfig{
			BaseURL:  getEnv("OCR_BASE_URL", ""),
			APIKey:   getEnv("OCR_API_KEY", ""),
			Timeout:  getEnvAsDuration("OCR_TIMEOUT", 90*time.Second),
			MaxPages: getEnvAsInt("OCR_MAX_PAGES", 30),
		},
		Batch: BatchConfig{
			Concurrency: getEnvAsInt("BATCH_CONCURRENCY", 2),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Extract.PageConcurrency <= 0 {
		return NewAppError("CONFIG_ERROR", "EXTRACT_PAGE_CONCURRENCY must be positive", ErrInvalidInput)
	}
	return nil
}
