package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	DatabaseURL     string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	CreditsBackend string
	RedisURL       string

	ProviderBaseURL   string
	ProviderLogin     string
	ProviderPassword  string
	ProviderTimeout   time.Duration
	ProviderRateLimit float64
	ProviderLanguage  string
	ProviderLocation  string

	PollWindow time.Duration
}

var defaults = map[string]any{
	"PORT":                "8080",
	"CORS_ALLOW_ORIGINS":  "http://localhost:5173",
	"ENV":                 "dev",
	"OBJECT_STORE":        "local",
	"LOCAL_STORE_DIR":     "./data",
	"CREDITS_BACKEND":     "auto",
	"PROVIDER_BASE_URL":   "https://api.dataforseo.com/v3",
	"PROVIDER_TIMEOUT":    "60s",
	"PROVIDER_RATE_LIMIT": 25.0,
	"PROVIDER_LANGUAGE":   "de",
	"PROVIDER_LOCATION":   "Germany",
	"POLL_WINDOW":         "1s",
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return LoadFrom(newViper(".env", "cmd/.env"))
}

func newViper(envFiles ...string) *viper.Viper {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	// Best-effort load of local env files for dev convenience.
	for _, path := range envFiles {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !isMissingFile(err) {
				log.Printf("config: ignoring %s: %v", path, err)
			}
		}
	}
	return v
}

// LoadFrom builds a Config from an already prepared viper instance.
func LoadFrom(v *viper.Viper) Config {
	env := normalizeEnv(v.GetString("ENV"))
	dbURL := strings.TrimSpace(v.GetString("DATABASE_URL"))

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:              v.GetString("PORT"),
		CORSAllowOrigin:   splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),
		Env:               env,
		DatabaseURL:       dbURL,
		ObjectStoreType:   normalizeStoreType(v.GetString("OBJECT_STORE")),
		LocalStoreDir:     v.GetString("LOCAL_STORE_DIR"),
		AWSRegion:         v.GetString("AWS_REGION"),
		S3Bucket:          v.GetString("S3_BUCKET"),
		S3Prefix:          v.GetString("S3_PREFIX"),
		SSEKMSKeyID:       v.GetString("SSE_KMS_KEY_ID"),
		CreditsBackend:    normalizeCreditsBackend(v.GetString("CREDITS_BACKEND")),
		RedisURL:          strings.TrimSpace(v.GetString("REDIS_URL")),
		ProviderBaseURL:   strings.TrimRight(v.GetString("PROVIDER_BASE_URL"), "/"),
		ProviderLogin:     v.GetString("PROVIDER_LOGIN"),
		ProviderPassword:  v.GetString("PROVIDER_PASSWORD"),
		ProviderTimeout:   v.GetDuration("PROVIDER_TIMEOUT"),
		ProviderRateLimit: v.GetFloat64("PROVIDER_RATE_LIMIT"),
		ProviderLanguage:  v.GetString("PROVIDER_LANGUAGE"),
		ProviderLocation:  v.GetString("PROVIDER_LOCATION"),
		PollWindow:        v.GetDuration("POLL_WINDOW"),
	}
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file")
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "none", "off":
		return "none"
	default:
		return "local"
	}
}

// normalizeCreditsBackend maps CREDITS_BACKEND to memory, postgres, redis or auto.
// auto picks postgres when a database is configured and memory otherwise.
func normalizeCreditsBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "memory", "mem":
		return "memory"
	case "postgres", "pg":
		return "postgres"
	case "redis":
		return "redis"
	default:
		return "auto"
	}
}
