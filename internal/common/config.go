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
	OCR      OCRConfig
	LLM      LLMConfig
	Geocoder GeocoderConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Session  SessionConfig
}

// DatabaseConfig holds database-related configuration. An empty DSN selects the
// in-memory SQLite store.
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds listener addresses
type ServerConfig struct {
	GRPCAddr string
	HTTPAddr string
}

// OCRConfig holds text recognition configuration
type OCRConfig struct {
	Engine        string // "cli" or "gosseract"
	TesseractBin  string
	Language      string
	TessdataDir   string
	HeicConverter string
	ArtifactDir   string
	Timeout       time.Duration
}

// OCR engines
const (
	OCREngineCLI       = "cli"
	OCREngineGosseract = "gosseract"
)

// LLM providers
const (
	ProviderOpenAI   = "openai"
	ProviderFunction = "function"
)

// LLMConfig holds field extraction configuration
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	FunctionURL string
	Temperature float32
	Timeout     time.Duration
}

// GeocoderConfig holds the external geocoding service configuration
type GeocoderConfig struct {
	BaseURL          string
	UserAgent        string
	CountryQualifier string
	Timeout          time.Duration
}

// CacheConfig holds geocode cache configuration. An empty RedisURL keeps the cache in process.
type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

// StorageConfig holds photo upload configuration
type StorageConfig struct {
	UploadDir     string
	PublicBaseURL string
}

// SessionConfig holds intake session bookkeeping
type SessionConfig struct {
	IdleTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr: getEnv("HTTP_ADDR", ":8081"),
		},
		OCR: OCRConfig{
			Engine:        getEnv("OCR_ENGINE", OCREngineCLI),
			TesseractBin:  getEnv("TESSERACT_BIN", "tesseract"),
			Language:      getEnv("OCR_LANGUAGE", "por"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			HeicConverter: getEnv("HEIC_CONVERTER", "magick"),
			ArtifactDir:   getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
			Timeout:       getEnvAsDuration("OCR_TIMEOUT", 60*time.Second),
		},
		LLM: LLMConfig{
			Provider:    getEnv("LLM_PROVIDER", ProviderOpenAI),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			FunctionURL: getEnv("EXTRACT_FUNCTION_URL", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
		},
		Geocoder: GeocoderConfig{
			BaseURL:          getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
			UserAgent:        getEnv("GEOCODER_USER_AGENT", "MissingPeopleMozambique/1.0"),
			CountryQualifier: getEnv("GEOCODER_COUNTRY", "Mozambique"),
			Timeout:          getEnvAsDuration("GEOCODER_TIMEOUT", 10*time.Second),
		},
		Cache: CacheConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			TTL:      getEnvAsDuration("GEOCODE_CACHE_TTL", 24*time.Hour),
		},
		Storage: StorageConfig{
			UploadDir:     getEnv("UPLOAD_DIR", "./uploads/missing"),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8081/uploads/missing"),
		},
		Session: SessionConfig{
			IdleTimeout: getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
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

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
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

// Validate checks the settings every entry point needs.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
		}
	case ProviderFunction:
		if c.LLM.FunctionURL == "" {
			return NewAppError("CONFIG_ERROR", "EXTRACT_FUNCTION_URL is required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "unknown LLM_PROVIDER "+c.LLM.Provider, ErrInvalidInput)
	}
	if c.OCR.Engine != OCREngineCLI && c.OCR.Engine != OCREngineGosseract {
		return NewAppError("CONFIG_ERROR", "unknown OCR_ENGINE "+c.OCR.Engine, ErrInvalidInput)
	}
	if c.Geocoder.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "GEOCODER_URL is required", ErrInvalidInput)
	}
	return nil
}

// ValidateServer additionally checks the daemon listener settings.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Storage.UploadDir == "" {
		return NewAppError("CONFIG_ERROR", "UPLOAD_DIR is required", ErrInvalidInput)
	}
	return nil
}
