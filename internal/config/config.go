package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port            int
	AssetDir        string
	CacheMode       string
	Preload         bool
	PreloadWorkers  int
	ProbeImages     bool
	VipsMaxCacheMB  int
	VipsConcurrency int
	LogLevel        string
	LogFormat       string
	AllowedOrigin   string
}

func Load() *Config {
	cfg := &Config{
		Port:            getEnvInt("PORT", 8080),
		AssetDir:        getEnv("ASSET_DIR", "/data"),
		CacheMode:       getEnv("CACHE", "sync"),
		Preload:         getEnvBool("PRELOAD", true),
		PreloadWorkers:  getEnvInt("PRELOAD_WORKERS", 4),
		ProbeImages:     getEnvBool("PROBE_IMAGES", true),
		VipsMaxCacheMB:  getEnvInt("VIPS_MAX_CACHE_MB", 64),
		VipsConcurrency: getEnvInt("VIPS_CONCURRENCY", 1),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		AllowedOrigin:   getEnv("ALLOWED_ORIGIN", ""),
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
