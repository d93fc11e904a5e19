package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile           = ".env"
	defaultHTTPPort          = "8081"
	defaultAPIBaseURL        = "https://cashless.local"
	defaultPosID             = "POS-GO-1"
	defaultSessionTTL        = 120 * time.Second
	defaultConfirmationTTL   = 2 * time.Minute
	defaultRequestTimeout    = 10 * time.Second
	defaultCheckoutMargin    = 5 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultBreakerMaxFails   = 5
	defaultBreakerOpenPeriod = 30 * time.Second
	defaultHistoryLimit      = 100
	defaultLogLevel          = "info"

	ReaderNone  = "none"
	ReaderStdin = "stdin"
)

type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Terminal TerminalConfig
	Security SecurityConfig
	Redis    RedisConfig
	Reader   string
	LogLevel string
}

// ServerConfig holds the control surface settings. CheckoutTimeout must outlast
// Backend.RequestTimeout.
type ServerConfig struct {
	Port            string
	RequestTimeout  time.Duration
	CheckoutTimeout time.Duration
	ShutdownTimeout time.Duration
}

type BackendConfig struct {
	BaseURL            string
	RequestTimeout     time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

type TerminalConfig struct {
	PosID           string
	SessionTTL      time.Duration
	ConfirmationTTL time.Duration
	WineEnabled     bool
	HistoryLimit    int
}

type SecurityConfig struct {
	CashierPIN string
	AdminPIN   string
}

// RedisConfig is optional; an empty Addr keeps settings in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ValidationError is returned when configuration fields are invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path. An empty path disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over everything else.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv stops Load from reading the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load builds the configuration from defaults, the .env file, the process environment and
// any explicit map, in increasing order of precedence.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	requestTimeout := durationWithDefault(lookup, "POS_REQUEST_TIMEOUT", defaultRequestTimeout)
	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "POS_HTTP_PORT", defaultHTTPPort),
			RequestTimeout:  requestTimeout,
			CheckoutTimeout: durationWithDefault(lookup, "POS_CHECKOUT_TIMEOUT", requestTimeout+defaultCheckoutMargin),
			ShutdownTimeout: durationWithDefault(lookup, "POS_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Backend: BackendConfig{
			BaseURL:            strings.TrimRight(stringWithDefault(lookup, "POS_API_BASE_URL", defaultAPIBaseURL), "/"),
			RequestTimeout:     requestTimeout,
			BreakerMaxFailures: uint32(intWithDefault(lookup, "POS_BREAKER_MAX_FAILURES", defaultBreakerMaxFails)),
			BreakerOpenTimeout: durationWithDefault(lookup, "POS_BREAKER_OPEN_TIMEOUT", defaultBreakerOpenPeriod),
		},
		Terminal: TerminalConfig{
			PosID:           stringWithDefault(lookup, "POS_ID", defaultPosID),
			SessionTTL:      durationWithDefault(lookup, "POS_SESSION_TTL", defaultSessionTTL),
			ConfirmationTTL: durationWithDefault(lookup, "POS_CONFIRMATION_TTL", defaultConfirmationTTL),
			WineEnabled:     boolWithDefault(lookup, "POS_WINE_ENABLED", false),
			HistoryLimit:    intWithDefault(lookup, "POS_HISTORY_LIMIT", defaultHistoryLimit),
		},
		Security: SecurityConfig{
			CashierPIN: stringWithDefault(lookup, "POS_PIN_CASHIER", ""),
			AdminPIN:   stringWithDefault(lookup, "POS_PIN_ADMIN", ""),
		},
		Redis: RedisConfig{
			Addr:     stringWithDefault(lookup, "POS_REDIS_ADDR", ""),
			Password: stringWithDefault(lookup, "POS_REDIS_PASSWORD", ""),
			DB:       intWithDefault(lookup, "POS_REDIS_DB", 0),
		},
		Reader:   strings.ToLower(stringWithDefault(lookup, "POS_READER", ReaderNone)),
		LogLevel: strings.ToLower(stringWithDefault(lookup, "POS_LOG_LEVEL", defaultLogLevel)),
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if strings.TrimSpace(cfg.Server.Port) == "" {
		invalid = append(invalid, "Server.Port")
	}
	if u, err := url.Parse(cfg.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		invalid = append(invalid, "Backend.BaseURL")
	}
	if cfg.Backend.RequestTimeout <= 0 {
		invalid = append(invalid, "Backend.RequestTimeout")
	}
	if cfg.Server.CheckoutTimeout <= cfg.Backend.RequestTimeout {
		invalid = append(invalid, "Server.CheckoutTimeout")
	}
	if cfg.Backend.BreakerMaxFailures == 0 {
		invalid = append(invalid, "Backend.BreakerMaxFailures")
	}
	if strings.TrimSpace(cfg.Terminal.PosID) == "" {
		invalid = append(invalid, "Terminal.PosID")
	}
	if cfg.Terminal.SessionTTL <= 0 {
		invalid = append(invalid, "Terminal.SessionTTL")
	}
	if cfg.Terminal.ConfirmationTTL <= 0 {
		invalid = append(invalid, "Terminal.ConfirmationTTL")
	}
	if cfg.Terminal.HistoryLimit <= 0 {
		invalid = append(invalid, "Terminal.HistoryLimit")
	}
	if cfg.Reader != ReaderNone && cfg.Reader != ReaderStdin {
		invalid = append(invalid, "Reader")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
