// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// lookup HTTP server, the chat bot, code derivation, storage and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/puk-code-service/internal/codegen"
)

// Run modes select which halves of the service start.
const (
	ModeAll = "all" // bot + lookup API
	ModeBot = "bot" // chat bot only
	ModeAPI = "api" // lookup API only
)

// Duplicate request policies.
const (
	PolicyReject    = "reject"    // refuse a new request while one is pending
	PolicySupersede = "supersede" // replace the pending request with the new one
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "pukbot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
	Environment string  // DEPLOYMENT_ENV, reported as deployment.environment
}

// BotConfig holds chat transport settings.
type BotConfig struct {
	Token       string        // BOT_TOKEN
	AdminID     int64         // ADMIN_ID, the single approving administrator
	Language    string        // BOT_LANGUAGE: ru|en
	PollTimeout time.Duration // BOT_POLL_TIMEOUT, long-poll wait
	IdleWorker  time.Duration // BOT_WORKER_IDLE, per-user worker lifetime without events
}

// Config holds all configuration values for the application.
type Config struct {
	Mode string // all|bot|api

	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	ShutdownTimeout   time.Duration // graceful stop budget
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for the lookup route

	// Storage
	DBDriver       string // sqlite|postgres
	DBPath         string // SQLite path
	DatabaseURL    string // Postgres DSN
	DBMaxOpenConns int    // 0 keeps driver defaults

	// Codes and requests
	CodeLength      int    // digits per issued code
	CodeDigest      string // sha256|sha3-256|blake2b-256
	DuplicatePolicy string // reject|supersede

	// Dialog state
	RedisURL       string        // empty selects the in-memory store
	DialogStateTTL time.Duration // expiry of a stored dialog state

	Bot BotConfig

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// RunsBot reports whether the chat bot should start.
func (c Config) RunsBot() bool { return c.Mode == ModeAll || c.Mode == ModeBot }

// RunsAPI reports whether the lookup HTTP server should start.
func (c Config) RunsAPI() bool { return c.Mode == ModeAll || c.Mode == ModeAPI }

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Mode: strings.ToLower(getenv("RUN_MODE", ModeAll)),

		// Server
		Port:              getenv("PORT", "8000"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/")),

		// Storage
		DBDriver:       strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:         getenv("DB_PATH", "data.db"),
		DatabaseURL:    getenv("DATABASE_URL", ""),
		DBMaxOpenConns: getint("DB_MAX_OPEN_CONNS", 0),

		// Codes and requests
		CodeLength:      getint("CODE_LENGTH", codegen.DefaultLength),
		CodeDigest:      strings.ToLower(getenv("CODE_DIGEST", codegen.DigestSHA256)),
		DuplicatePolicy: strings.ToLower(getenv("DUPLICATE_POLICY", PolicyReject)),

		// Dialog state
		RedisURL:       getenv("REDIS_URL", ""),
		DialogStateTTL: getdur("DIALOG_STATE_TTL", 24*time.Hour),

		Bot: BotConfig{
			Token:       getenv("BOT_TOKEN", ""),
			AdminID:     getint64("ADMIN_ID", 0),
			Language:    strings.ToLower(getenv("BOT_LANGUAGE", "ru")),
			PollTimeout: getdur("BOT_POLL_TIMEOUT", 60*time.Second),
			IdleWorker:  getdur("BOT_WORKER_IDLE", 5*time.Minute),
		},

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "pukbot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
			Environment: getenv("DEPLOYMENT_ENV", ""),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DBDriver == "postgresql" {
		cfg.DBDriver = "postgres"
	}

	// --- validation ---
	switch cfg.Mode {
	case ModeAll, ModeBot, ModeAPI:
	default:
		return cfg, errors.New("RUN_MODE must be one of: all, bot, api")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.DBMaxOpenConns < 0 {
		return cfg, errors.New("DB_MAX_OPEN_CONNS must be >= 0")
	}
	if cfg.CodeLength < 1 || cfg.CodeLength > codegen.MaxLength {
		return cfg, errors.New("CODE_LENGTH must be between 1 and 18")
	}
	if !codegen.ValidDigest(cfg.CodeDigest) {
		return cfg, errors.New("CODE_DIGEST must be one of: sha256, sha3-256, blake2b-256")
	}
	switch cfg.DuplicatePolicy {
	case PolicyReject, PolicySupersede:
	default:
		return cfg, errors.New("DUPLICATE_POLICY must be one of: reject, supersede")
	}
	if cfg.DialogStateTTL <= 0 {
		return cfg, errors.New("DIALOG_STATE_TTL must be > 0")
	}
	switch cfg.Bot.Language {
	case "ru", "en":
	default:
		return cfg, errors.New("BOT_LANGUAGE must be one of: ru, en")
	}
	if cfg.RunsBot() {
		if strings.TrimSpace(cfg.Bot.Token) == "" {
			return cfg, errors.New("BOT_TOKEN is required when the bot is enabled")
		}
		if cfg.Bot.AdminID == 0 {
			return cfg, errors.New("ADMIN_ID is required when the bot is enabled")
		}
		if cfg.Bot.PollTimeout <= 0 || cfg.Bot.IdleWorker <= 0 {
			return cfg, errors.New("BOT_POLL_TIMEOUT and BOT_WORKER_IDLE must be positive durations")
		}
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
