package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the API.
type Config struct {
	App     AppConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	Logger  LoggerConfig
	Auth    AuthConfig
	Mail    MailConfig
	Ledger  LedgerConfig
	Sweeper SweeperConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Port                  string
	RequestTimeoutSeconds int
	CORSAllowOrigins      []string
}

// MongoConfig holds document store connection values.
type MongoConfig struct {
	URI                   string
	Database              string
	ConnectTimeoutSeconds int
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication and verification parameters.
type AuthConfig struct {
	JWTSecret                string
	TokenTTLHours            int
	BcryptCost               int
	OTPTTLSeconds            int
	VerifyIssuesTokenPatient bool
	VerifyIssuesTokenDoctor  bool
	VerifyMaxAttempts        int
	VerifyAttemptWindowMins  int
	LoginRequiresVerified    bool
}

// MailConfig holds the SMTP transport settings. An empty Host selects the log mailer.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// LedgerConfig toggles appointment ledger behavior.
type LedgerConfig struct {
	EmptyListNotFound bool
	VerifyDoctor      bool
	UploadDir         string
}

// SweeperConfig controls the background purge of expired pending accounts.
type SweeperConfig struct {
	Enabled         bool
	IntervalSeconds int
}

// Load reads configuration from a .env file (when present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	mailUser := os.Getenv("EMAIL_USER")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "dentaheal-api"),
			Env:                   getEnv("APP_ENV", "development"),
			Port:                  getEnv("API_PORT", "8080"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 15),
			CORSAllowOrigins:      getEnvAsList("CORS_ALLOW_ORIGINS", []string{"https://dentaheal.netlify.app"}),
		},
		Mongo: MongoConfig{
			URI:                   os.Getenv("MONGO_URI"),
			Database:              getEnv("MONGO_DATABASE", "dentaheal"),
			ConnectTimeoutSeconds: getEnvAsInt("MONGO_CONNECT_TIMEOUT_SECONDS", 10),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:                os.Getenv("JWT_SECRET"),
			TokenTTLHours:            getEnvAsInt("AUTH_TOKEN_TTL_HOURS", 7*24),
			BcryptCost:               getEnvAsInt("AUTH_BCRYPT_COST", 10),
			OTPTTLSeconds:            getEnvAsInt("AUTH_OTP_TTL_SECONDS", 120),
			VerifyIssuesTokenPatient: getEnvAsBool("AUTH_VERIFY_ISSUES_TOKEN_PATIENT", true),
			VerifyIssuesTokenDoctor:  getEnvAsBool("AUTH_VERIFY_ISSUES_TOKEN_DOCTOR", false),
			VerifyMaxAttempts:        getEnvAsInt("AUTH_VERIFY_MAX_ATTEMPTS", 5),
			VerifyAttemptWindowMins:  getEnvAsInt("AUTH_VERIFY_ATTEMPT_WINDOW_MINUTES", 15),
			LoginRequiresVerified:    getEnvAsBool("AUTH_LOGIN_REQUIRES_VERIFIED", false),
		},
		Mail: MailConfig{
			Host:     os.Getenv("MAIL_HOST"),
			Port:     getEnvAsInt("MAIL_PORT", 587),
			Username: mailUser,
			Password: os.Getenv("EMAIL_PASS"),
			From:     getEnv("MAIL_FROM", mailUser),
		},
		Ledger: LedgerConfig{
			EmptyListNotFound: getEnvAsBool("LEDGER_EMPTY_LIST_NOT_FOUND", true),
			VerifyDoctor:      getEnvAsBool("LEDGER_VERIFY_DOCTOR", false),
			UploadDir:         getEnv("UPLOAD_DIR", "uploads"),
		},
		Sweeper: SweeperConfig{
			Enabled:         getEnvAsBool("SWEEPER_ENABLED", false),
			IntervalSeconds: getEnvAsInt("SWEEPER_INTERVAL_SECONDS", 60),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the API cannot run with.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		if !c.App.IsDevelopment() {
			return errors.New("JWT_SECRET is required outside development")
		}
		c.Auth.JWTSecret = "dev-secret"
	}
	if c.Auth.OTPTTLSeconds <= 0 {
		return fmt.Errorf("invalid AUTH_OTP_TTL_SECONDS: %d", c.Auth.OTPTTLSeconds)
	}
	if c.Auth.TokenTTLHours <= 0 {
		return fmt.Errorf("invalid AUTH_TOKEN_TTL_HOURS: %d", c.Auth.TokenTTLHours)
	}
	return nil
}

// IsDevelopment reports whether the API runs in the development environment.
func (a AppConfig) IsDevelopment() bool {
	return strings.EqualFold(a.Env, "development")
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return ":" + a.Port
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func (m MongoConfig) ConnectTimeout() time.Duration {
	return time.Duration(m.ConnectTimeoutSeconds) * time.Second
}

func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

func (a AuthConfig) OTPTTL() time.Duration {
	return time.Duration(a.OTPTTLSeconds) * time.Second
}

func (a AuthConfig) VerifyAttemptWindow() time.Duration {
	return time.Duration(a.VerifyAttemptWindowMins) * time.Minute
}

func (s SweeperConfig) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
