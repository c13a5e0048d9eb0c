package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis    RedisConfig
	Session  SessionConfig
	Epay     EpayConfig
	Storage  StorageConfig
	Gemini   GeminiConfig
	ChatRate ChatRateConfig

	RateTablesDir string
}

type RedisConfig struct {
	URL      string
	Password string
}

type SessionConfig struct {
	TTL         time.Duration
	MaxHistory  int
	TurnLockTTL time.Duration
}

type EpayConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	BaseWebhookURL    string
	ConfirmationTTL   time.Duration
	ReconcileDeadline time.Duration
}

type StorageConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

type GeminiConfig struct {
	APIKey      string
	VisionModel string
	AgentModel  string
	MaxSteps    int
	Timeout     time.Duration
}

type ChatRateConfig struct {
	Rate  float64
	Burst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "covera"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "covera"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Redis: RedisConfig{
			URL:      getenv("REDIS_URL", "redis://localhost:6379/0"),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
		},
		Session: SessionConfig{
			TTL:         getenvSeconds("SESSION_TTL", 3600),
			MaxHistory:  getenvInt("SESSION_MAX_HISTORY", 50),
			TurnLockTTL: getenvSeconds("SESSION_TURN_LOCK_TTL", 90),
		},
		Epay: EpayConfig{
			BaseURL:           strings.TrimRight(getenv("EPAY_BASE_URL", "https://epay.nodes-hub.com"), "/"),
			APIKey:            strings.TrimSpace(getenv("EPAY_API_KEY", "")),
			Timeout:           getenvSeconds("EPAY_TIMEOUT", 30),
			BaseWebhookURL:    strings.TrimRight(getenv("BASE_WEBHOOK_URL", ""), "/"),
			ConfirmationTTL:   getenvSeconds("PAYMENT_CONFIRM_TTL", 3600),
			ReconcileDeadline: getenvSeconds("PAYMENT_RECONCILE_TIMEOUT", 30),
		},
		Storage: StorageConfig{
			Endpoint:  strings.TrimSpace(getenv("STORAGE_ENDPOINT", "localhost:9000")),
			Region:    getenv("STORAGE_REGION", "us-east-1"),
			AccessKey: strings.TrimSpace(getenv("STORAGE_ACCESS_KEY", "")),
			SecretKey: strings.TrimSpace(getenv("STORAGE_SECRET_KEY", "")),
			Bucket:    getenv("STORAGE_BUCKET", "receipts"),
			UseSSL:    getenvBool("STORAGE_USE_SSL", false),
			PublicURL: strings.TrimRight(getenv("STORAGE_PUBLIC_URL", ""), "/"),
		},
		Gemini: GeminiConfig{
			APIKey:      strings.TrimSpace(getenv("GEMINI_API_KEY", "")),
			VisionModel: getenv("VISION_MODEL", "gemini-2.0-flash-exp"),
			AgentModel:  getenv("AGENT_MODEL", "gemini-2.0-flash"),
			MaxSteps:    getenvInt("AGENT_MAX_STEPS", 8),
			Timeout:     getenvSeconds("AGENT_TIMEOUT", 45),
		},
		ChatRate: ChatRateConfig{
			Rate:  getenvFloat("CHAT_RATE", 0.5),
			Burst: getenvInt("CHAT_BURST", 10),
		},
		RateTablesDir: strings.TrimSpace(getenv("RATE_TABLES_DIR", "")),
	}

	if cfg.Epay.APIKey == "" {
		log.Printf("[config] EPAY_API_KEY is empty, mobile money requests will be rejected by the gateway")
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvSeconds reads an integer number of seconds.
func getenvSeconds(key string, def int) time.Duration {
	seconds := getenvInt(key, def)
	if seconds <= 0 {
		seconds = def
	}
	return time.Duration(seconds) * time.Second
}
