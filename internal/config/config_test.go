package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging / Docs
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v1/") // no leading slash + trailing slash -> "/api/v1"

	// Storage
	t.Setenv("DB_DRIVER", "postgresql") // will normalize to "postgres"
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/puk")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")

	// Codes and requests
	t.Setenv("CODE_LENGTH", "8")
	t.Setenv("CODE_DIGEST", "SHA3-256")
	t.Setenv("DUPLICATE_POLICY", "Supersede")

	// Dialog
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("DIALOG_STATE_TTL", "2h")

	// Bot
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_ID", " 42 ")
	t.Setenv("BOT_LANGUAGE", "EN")
	t.Setenv("BOT_POLL_TIMEOUT", "30s")
	t.Setenv("BOT_WORKER_IDLE", "x") // -> default 5m

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")
	t.Setenv("DEPLOYMENT_ENV", "staging")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging / Docs
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}

	// Storage
	if cfg.DBDriver != "postgres" || cfg.DatabaseURL != "postgres://u:p@db:5432/puk" || cfg.DBMaxOpenConns != 7 {
		t.Fatalf("storage unexpected: %+v", cfg)
	}

	// Codes
	if cfg.CodeLength != 8 || cfg.CodeDigest != "sha3-256" || cfg.DuplicatePolicy != PolicySupersede {
		t.Fatalf("codes unexpected: %+v", cfg)
	}

	// Dialog
	if cfg.RedisURL != "redis://cache:6379/0" || cfg.DialogStateTTL != 2*time.Hour {
		t.Fatalf("dialog unexpected: %+v", cfg)
	}

	// Bot
	if cfg.Bot.Token != "123:abc" || cfg.Bot.AdminID != 42 || cfg.Bot.Language != "en" ||
		cfg.Bot.PollTimeout != 30*time.Second || cfg.Bot.IdleWorker != 5*time.Minute {
		t.Fatalf("bot unexpected: %+v", cfg.Bot)
	}
	if cfg.Mode != ModeAll || !cfg.RunsBot() || !cfg.RunsAPI() {
		t.Fatalf("mode unexpected: %q", cfg.Mode)
	}

	// Web protection
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 || cfg.OTEL.Environment != "staging" {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_APIModeNeedsNoBotCredentials(t *testing.T) {
	t.Setenv("RUN_MODE", "API")
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("ADMIN_ID", "")
	t.Setenv("OTEL_SERVICE_NAME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RunsBot() || !cfg.RunsAPI() {
		t.Fatalf("api mode should run only the lookup server: %+v", cfg)
	}
	if cfg.CodeLength != 6 || cfg.CodeDigest != "sha256" || cfg.DuplicatePolicy != PolicyReject {
		t.Fatalf("code defaults unexpected: %+v", cfg)
	}
	if cfg.DBDriver != "sqlite" || cfg.DBPath != "data.db" || cfg.Bot.Language != "ru" {
		t.Fatalf("storage/bot defaults unexpected: %+v", cfg)
	}
	if cfg.OTEL.ServiceName != "pukbot" {
		t.Fatalf("service name default = %q", cfg.OTEL.ServiceName)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid RUN_MODE", map[string]string{"RUN_MODE": "worker"}, "RUN_MODE"},
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"empty PORT via spaces", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"non-positive timeouts", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"max header bytes <= 0", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"empty DB_PATH", map[string]string{"DB_PATH": "   "}, "DB_PATH must not be empty"},
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"negative pool", map[string]string{"DB_MAX_OPEN_CONNS": "-1"}, "DB_MAX_OPEN_CONNS"},
		{"code length zero", map[string]string{"CODE_LENGTH": "0"}, "CODE_LENGTH"},
		{"code length too long", map[string]string{"CODE_LENGTH": "19"}, "CODE_LENGTH"},
		{"unknown digest", map[string]string{"CODE_DIGEST": "md5"}, "CODE_DIGEST"},
		{"unknown duplicate policy", map[string]string{"DUPLICATE_POLICY": "merge"}, "DUPLICATE_POLICY"},
		{"dialog ttl non-positive", map[string]string{"DIALOG_STATE_TTL": "0s"}, "DIALOG_STATE_TTL"},
		{"unknown language", map[string]string{"BOT_LANGUAGE": "de"}, "BOT_LANGUAGE"},
		{"bot without token", map[string]string{"BOT_TOKEN": ""}, "BOT_TOKEN"},
		{"bot without admin", map[string]string{"ADMIN_ID": "nope"}, "ADMIN_ID"},
		{"hsts max age negative", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"otel sample ratio out of range", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setValidBot(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected %s validation error, got: %v", tc.want, err)
			}
		})
	}

	// Note: API_BASE_PATH validation is effectively unreachable due to normalizeBasePath
	// always ensuring a leading '/' and returning "/" for empty input.
}

// --- helpers ---

func TestHelpers_TypedGetters(t *testing.T) {
	t.Setenv("CODE_LENGTH_OK", "8")
	t.Setenv("CODE_LENGTH_BAD", "eight")
	t.Setenv("ADMIN_ID_OK", "-9000000000")
	t.Setenv("ADMIN_ID_BAD", "1.5")
	t.Setenv("RATIO_OK", "0.25")
	t.Setenv("RATIO_BAD", "quarter")
	t.Setenv("TTL_OK", "150ms")
	t.Setenv("TTL_BAD", "soon")
	t.Setenv("EMPTY", "")

	if getenv("EMPTY", "d") != "d" || getenv("TTL_OK", "d") != "150ms" {
		t.Fatalf("getenv must fall back only on unset or empty")
	}
	if getint("CODE_LENGTH_OK", 6) != 8 || getint("CODE_LENGTH_BAD", 6) != 6 {
		t.Fatalf("getint")
	}
	if getint64("ADMIN_ID_OK", 0) != -9000000000 || getint64("ADMIN_ID_BAD", 3) != 3 {
		t.Fatalf("getint64")
	}
	if getfloat("RATIO_OK", 1) != 0.25 || getfloat("RATIO_BAD", 1) != 1 {
		t.Fatalf("getfloat")
	}
	if getdur("TTL_OK", time.Hour) != 150*time.Millisecond || getdur("TTL_BAD", time.Hour) != time.Hour {
		t.Fatalf("getdur")
	}
}

func TestHelpers_getbool(t *testing.T) {
	cases := map[string]bool{
		"1": true, "true": true, "TRUE": true, " yes ": true, "Y": true, "on": true,
		"0": false, "false": false, "FALSE": false, " no ": false, "N": false, "off": false,
	}
	for in, want := range cases {
		t.Setenv("SWAGGER_ENABLED_X", in)
		if got := getbool("SWAGGER_ENABLED_X", !want); got != want {
			t.Fatalf("getbool(%q) = %v, want %v", in, got, want)
		}
	}
	t.Setenv("SWAGGER_ENABLED_X", "")
	if !getbool("SWAGGER_ENABLED_X", true) || getbool("SWAGGER_ENABLED_X", false) {
		t.Fatalf("getbool must return the default when empty")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if splitCSV("") != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if got := splitCSV(" https://a.example, ,http://b ,"); !reflect.DeepEqual(got, []string{"https://a.example", "http://b"}) {
		t.Fatalf("splitCSV = %#v", got)
	}
	for in, want := range map[string]string{"": "/", " / ": "/", "api": "/api", "/api/v1/": "/api/v1"} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMain(m *testing.M) {
	for _, k := range []string{"PORT", "RUN_MODE", "API_BASE_PATH", "OTEL_SERVICE_NAME"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

func containsErr(err error, want string) bool {
	return err != nil && strings.Contains(err.Error(), want)
}

func TestMustLoad_DefaultModeWithBotCredentials(t *testing.T) {
	setValidBot(t)
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid config, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.Bot.AdminID != 1001 || !cfg.RunsBot() || !cfg.RunsAPI() || cfg.APIBasePath != "/" {
		t.Fatalf("unexpected config from MustLoad: %+v", cfg)
	}
}

// setValidBot provides the credentials required by the default run mode.
func setValidBot(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "1:test")
	t.Setenv("ADMIN_ID", "1001")
}
