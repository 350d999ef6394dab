package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-driven setting of the service.
type Config struct {
	Port        string
	AppEnv      string
	JWTSecret   string
	PostgresURL string
	CORSOrigins []string

	Generation GenerationConfig
	Storage    StorageConfig
	Billing    BillingConfig
	Quota      QuotaConfig
}

// GenerationConfig selects and configures the image provider.
type GenerationConfig struct {
	Provider     string // "gemini" | "openai"
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string
	Timeout      time.Duration // per provider call
}

// StorageConfig points at an S3-compatible bucket.
type StorageConfig struct {
	Bucket        string
	Region        string
	Endpoint      string // optional, for Supabase/MinIO/LocalStack
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	Timeout       time.Duration
}

// BillingConfig holds the Stripe credentials and the price -> plan mapping.
type BillingConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceBasic    string
	PricePro      string
}

type QuotaConfig struct {
	Timezone           string
	TransformPerMinute int
	ReconcileCron      string
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:        getEnvWithDefault("PORT", "8080"),
		AppEnv:      getEnvWithDefault("APP_ENV", "development"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		PostgresURL: os.Getenv("POSTGRES_URL"),
		CORSOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		Generation: GenerationConfig{
			Provider:     strings.ToLower(getEnvWithDefault("GENERATION_PROVIDER", "gemini")),
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			GeminiModel:  getEnvWithDefault("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image-preview"),
			OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:  getEnvWithDefault("OPENAI_IMAGE_MODEL", "gpt-image-1"),
			Timeout:      getDurationWithDefault("GENERATION_TIMEOUT", 60*time.Second),
		},
		Storage: StorageConfig{
			Bucket:        getEnvWithDefault("STORAGE_BUCKET", "timelens-images"),
			Region:        getEnvWithDefault("STORAGE_REGION", "us-east-1"),
			Endpoint:      os.Getenv("STORAGE_ENDPOINT"),
			AccessKey:     os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey:     os.Getenv("STORAGE_SECRET_KEY"),
			PublicBaseURL: os.Getenv("STORAGE_PUBLIC_BASE_URL"),
			Timeout:       getDurationWithDefault("STORAGE_TIMEOUT", 20*time.Second),
		},
		Billing: BillingConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PriceBasic:    os.Getenv("STRIPE_PRICE_BASIC"),
			PricePro:      os.Getenv("STRIPE_PRICE_PRO"),
		},
		Quota: QuotaConfig{
			Timezone:           getEnvWithDefault("QUOTA_TIMEZONE", "UTC"),
			TransformPerMinute: getIntWithDefault("TRANSFORM_RATE_PER_MINUTE", 10),
			ReconcileCron:      getEnvWithDefault("RECONCILE_CRON", "@every 15m"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.PostgresURL == "" {
		return fmt.Errorf("config: POSTGRES_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	switch c.Generation.Provider {
	case "gemini":
		if c.Generation.GeminiAPIKey == "" {
			return fmt.Errorf("config: GEMINI_API_KEY is required when using the gemini provider")
		}
	case "openai":
		if c.Generation.OpenAIAPIKey == "" {
			return fmt.Errorf("config: OPENAI_API_KEY is required when using the openai provider")
		}
	default:
		return fmt.Errorf("config: unsupported GENERATION_PROVIDER %q, use 'gemini' or 'openai'", c.Generation.Provider)
	}
	if _, err := time.LoadLocation(c.Quota.Timezone); err != nil {
		return fmt.Errorf("config: invalid QUOTA_TIMEZONE %q: %w", c.Quota.Timezone, err)
	}
	return nil
}

// getEnvWithDefault returns environment variable or default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntWithDefault(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
