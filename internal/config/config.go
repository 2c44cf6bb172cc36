package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	// ThrottleStore selects the ledger backend: "dynamo", "redis" or "memory".
	ThrottleStore string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PhoneThrottle ThrottlePolicy
	EmailThrottle ThrottlePolicy
	PhoneCodeTTL  time.Duration
	EmailCodeTTL  time.Duration

	WebhookTimeout       time.Duration
	WebhookArchiveBucket string // empty disables archiving of failed webhook payloads

	StreamIdleTimeout time.Duration
	StreamBuffer      int

	JWTPublicKeyPath string

	SMTPHost     string
	SMTPPort     int
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SMSEnabled bool
	SNSRegion  string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string
	Issues        string
	Notifications string
	Throttles     string
}

// ThrottlePolicy configures one sliding-window limiter.
type ThrottlePolicy struct {
	CooldownSeconds int64
	MaxPerWindow    int
	WindowSeconds   int64
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:         getEnv("DYNAMO_TABLE_USERS", "users"),
			Issues:        getEnv("DYNAMO_TABLE_ISSUES", "issues"),
			Notifications: getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
			Throttles:     getEnv("DYNAMO_TABLE_THROTTLES", "otp_throttles"),
		},
		ThrottleStore: strings.ToLower(getEnv("THROTTLE_STORE", "dynamo")),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		PhoneThrottle: ThrottlePolicy{
			CooldownSeconds: int64(getEnvInt("OTP_RESEND_COOLDOWN_SECONDS", 60)),
			MaxPerWindow:    getEnvInt("OTP_RESEND_MAX_PER_WINDOW", 5),
			WindowSeconds:   int64(getEnvInt("OTP_RESEND_WINDOW_SECONDS", 3600)),
		},
		EmailThrottle: ThrottlePolicy{
			CooldownSeconds: int64(getEnvInt("EMAIL_CODE_COOLDOWN_SECONDS", 0)),
			MaxPerWindow:    getEnvInt("EMAIL_CODE_MAX_PER_WINDOW", 5),
			WindowSeconds:   int64(getEnvInt("EMAIL_CODE_WINDOW_SECONDS", 3600)),
		},
		PhoneCodeTTL:         getEnvDuration("OTP_TTL", 5*time.Minute),
		EmailCodeTTL:         getEnvDuration("EMAIL_CODE_TTL", 10*time.Minute),
		WebhookTimeout:       getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		WebhookArchiveBucket: getEnv("WEBHOOK_ARCHIVE_BUCKET", ""),
		StreamIdleTimeout:    getEnvDuration("STREAM_IDLE_TIMEOUT", 30*time.Minute),
		StreamBuffer:         getEnvInt("STREAM_BUFFER", 64),
		JWTPublicKeyPath:     getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		SMTPHost:             getEnv("SMTP_HOST", "localhost"),
		SMTPPort:             getEnvInt("SMTP_PORT", 1025),
		SMTPFrom:             getEnv("SMTP_FROM", "No-Reply <no-reply@civic-alerts.org>"),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		SMSEnabled:           getEnvBool("SMS_ENABLED", false),
		SNSRegion:            getEnv("SNS_REGION", "us-east-1"),
		AllowedOrigins:       strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "5m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
