package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	RemoveBGAPIKey string
	RemoveBGURL    string
	GeminiAPIKey   string

	LogLevel string
	Debug    bool

	PreferIPv4 bool

	FrameSize      int
	MaxConcurrent  int
	MaxMegapixels  float64
	MaxBodyBytes   int64
	HistoryDB      string
	RequestTimeout time.Duration
	HTTPTimeout    time.Duration
	RemoveTimeout  time.Duration
	GeminiBaseURL  string
	GeminiVersion  string
}

func Load() (Config, error) {
	cfg := Config{
		LogLevel:       strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:          getEnvBool("DEBUG", false),
		PreferIPv4:     getEnvBool("PREFER_IPV4", true),
		FrameSize:      getEnvInt("FRAME_SIZE", 800),
		MaxConcurrent:  getEnvInt("MAX_CONCURRENT", 1),
		MaxMegapixels:  getEnvFloat("REMOVE_BG_MAX_MEGAPIXELS", 50),
		MaxBodyBytes:   int64(getEnvInt("REMOVE_BG_MAX_BODY_MB", 50)) << 20,
		HistoryDB:      strings.TrimSpace(getEnv("HISTORY_DB", "")),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 300)) * time.Second,
		HTTPTimeout:    time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 60)) * time.Second,
		RemoveTimeout:  time.Duration(getEnvInt("REMOVE_BG_TIMEOUT_SECONDS", 30)) * time.Second,
		RemoveBGURL:    strings.TrimSpace(getEnv("REMOVE_BG_URL", "https://api.remove.bg")),
		GeminiBaseURL:  strings.TrimSpace(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")),
		GeminiVersion:  strings.TrimSpace(getEnv("GEMINI_API_VERSION", "v1beta")),
	}

	cfg.RemoveBGAPIKey = strings.TrimSpace(os.Getenv("REMOVE_BG_API_KEY"))
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))

	if cfg.FrameSize <= 0 {
		return Config{}, errors.New("FRAME_SIZE must be positive")
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxMegapixels <= 0 {
		cfg.MaxMegapixels = 50
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 50 << 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 300 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 60 * time.Second
	}
	if cfg.RemoveTimeout <= 0 {
		cfg.RemoveTimeout = 30 * time.Second
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
