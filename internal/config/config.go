package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	CORSAllowedOrigins []string

	MomoPartnerCode string
	MomoPartnerName string
	MomoStoreID     string
	MomoAccessKey   string
	MomoSecretKey   string
	MomoEndpoint    string
	MomoRedirectURL string
	MomoIpnURL      string
	MomoRequestType string
	MomoStorePhone  string
	MomoMode        string

	VnpayTmnCode    string
	VnpayHashSecret string
	VnpayBaseURL    string
	VnpayReturnURL  string
	VnpayOrderType  string
	VnpayLocale     string

	QREndpoint string
	QRSize     string

	PaymentTTL       time.Duration
	WebhookReplayTTL time.Duration
	IdempotencyTTL   time.Duration
	ExpirySweepEvery time.Duration

	OutboundTimeout     time.Duration
	OutboundMaxAttempts int
	OutboundBackoff     time.Duration
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration

	RateLimit string

	LogLevel     string
	LogFormat    string
	OTLPEndpoint string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          valueOrDefault(k.String("JWT_ISSUER"), "aqualife"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		MomoPartnerCode: k.String("MOMO_PARTNER_CODE"),
		MomoPartnerName: valueOrDefault(k.String("MOMO_PARTNER_NAME"), "AquaLife"),
		MomoStoreID:     valueOrDefault(k.String("MOMO_STORE_ID"), "AquaLifeStore"),
		MomoAccessKey:   k.String("MOMO_ACCESS_KEY"),
		MomoSecretKey:   k.String("MOMO_SECRET_KEY"),
		MomoEndpoint:    valueOrDefault(k.String("MOMO_ENDPOINT"), "https://test-payment.momo.vn/v2/gateway/api/create"),
		MomoRedirectURL: k.String("MOMO_REDIRECT_URL"),
		MomoIpnURL:      k.String("MOMO_IPN_URL"),
		MomoRequestType: valueOrDefault(k.String("MOMO_REQUEST_TYPE"), "captureWallet"),
		MomoStorePhone:  k.String("MOMO_STORE_PHONE"),
		MomoMode:        valueOrDefault(k.String("MOMO_MODE"), "api"),

		VnpayTmnCode:    k.String("VNPAY_TMN_CODE"),
		VnpayHashSecret: k.String("VNPAY_HASH_SECRET"),
		VnpayBaseURL:    valueOrDefault(k.String("VNPAY_BASE_URL"), "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
		VnpayReturnURL:  k.String("VNPAY_RETURN_URL"),
		VnpayOrderType:  valueOrDefault(k.String("VNPAY_ORDER_TYPE"), "billpayment"),
		VnpayLocale:     valueOrDefault(k.String("VNPAY_LOCALE"), "vn"),

		QREndpoint: k.String("QR_ENDPOINT"),
		QRSize:     k.String("QR_SIZE"),

		PaymentTTL:       parseDuration(k.String("PAYMENT_TTL"), "10m"),
		WebhookReplayTTL: parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		ExpirySweepEvery: parseDuration(k.String("EXPIRY_SWEEP_EVERY"), "1m"),

		OutboundTimeout:     parseDuration(k.String("OUTBOUND_TIMEOUT"), "10s"),
		OutboundMaxAttempts: parseInt(k.String("OUTBOUND_MAX_ATTEMPTS"), 3),
		OutboundBackoff:     parseDuration(k.String("OUTBOUND_BACKOFF"), "200ms"),
		BreakerMinRequests:  parseInt(k.String("BREAKER_MIN_REQUESTS"), 5),
		BreakerFailureRatio: parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:      parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),

		RateLimit: valueOrDefault(k.String("RATE_LIMIT"), "60-M"),

		LogLevel:     valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat:    valueOrDefault(k.String("LOG_FORMAT"), "json"),
		OTLPEndpoint: k.String("OTLP_ENDPOINT"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f <= 0 || f > 1 {
		return fallback
	}
	return f
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
