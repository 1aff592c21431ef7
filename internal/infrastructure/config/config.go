// Package config loads service settings from config.toml and PV_
// environment variables with viper.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Guard     GuardConfig     `mapstructure:"guard"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Swagger   SwaggerConfig   `mapstructure:"swagger"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// DatabaseConfig locates the Postgres evidence store and sizes its pool.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// GuardConfig holds abuse guard settings
type GuardConfig struct {
	Store        string        `mapstructure:"store"` // memory or redis
	Window       time.Duration `mapstructure:"window"`
	Limit        int           `mapstructure:"limit"`
	StrikeLimit  int           `mapstructure:"strike_limit"`
	LockDuration time.Duration `mapstructure:"lock_duration"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// RetrievalConfig holds evidence retrieval settings
type RetrievalConfig struct {
	ProjectSimilarity float64  `mapstructure:"project_similarity"`
	SkillSimilarity   float64  `mapstructure:"skill_similarity"`
	PlatformSkills    []string `mapstructure:"platform_skills"`
	DashboardDensity  int      `mapstructure:"dashboard_density"`
	FallbackSource    string   `mapstructure:"fallback_source"` // local path or s3://bucket/key
}

// GeneratorConfig holds settings for the external text generator
type GeneratorConfig struct {
	Provider    string        `mapstructure:"provider"` // openai or ollama
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

// KnownContact is a correspondent the assistant greets by name.
type KnownContact struct {
	Name     string `mapstructure:"name"`
	Greeting string `mapstructure:"greeting"`
}

type AssistantConfig struct {
	PersonName      string         `mapstructure:"person_name"`
	ContactURL      string         `mapstructure:"contact_url"`
	ResumeURL       string         `mapstructure:"resume_url"`
	DashboardsURL   string         `mapstructure:"dashboards_url"`
	MaxHistoryTurns int            `mapstructure:"max_history_turns"`
	KnownContacts   []KnownContact `mapstructure:"known_contacts"`
}

type HTTPConfig struct {
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout defaults to the generator timeout plus 10s.
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
}

// SwaggerConfig controls the API documentation endpoint. AllowedIPs takes
// single addresses or CIDR ranges; empty allows every client.
type SwaggerConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	AllowedIPs []string `mapstructure:"allowed_ips"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TelemetryConfig switches the OTLP pipelines and Pyroscope profiling.
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
	ProfilingEnabled  bool          `mapstructure:"profiling_enabled"`
	PyroscopeAddress  string        `mapstructure:"pyroscope_address"`
	SpanProfiles      bool          `mapstructure:"span_profiles"`
}

// StorageConfig reaches the S3-compatible bucket that may hold the
// fallback evidence file.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// defaults lists every key. Keys must be known to viper for PV_ variables
// to reach Unmarshal, so settings without a default are listed empty.
var defaults = map[string]any{
	"app.name": "powervisualize-assistant",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":     "localhost",
	"database.port":     5432,
	"database.user":     "postgres",
	"database.password": "",
	"database.dbname":   "powervisualize",
	"database.sslmode":  "disable",
	// low traffic, small pool
	"database.max_open_conns":     5,
	"database.max_idle_conns":     2,
	"database.conn_max_lifetime":  30 * time.Minute,
	"database.conn_max_idle_time": 30 * time.Second,
	"database.connect_timeout":    5 * time.Second,

	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"guard.store":         "memory",
	"guard.window":        10 * time.Minute,
	"guard.limit":         20,
	"guard.strike_limit":  3,
	"guard.lock_duration": 15 * time.Minute,
	"guard.key_prefix":    "pv:guard:",

	"retrieval.project_similarity": 0.3,
	"retrieval.skill_similarity":   0.4,
	"retrieval.platform_skills":    []string{"Power BI", "Tableau", "Looker", "Microsoft Fabric", "DAX"},
	"retrieval.dashboard_density":  3,
	"retrieval.fallback_source":    "data/skill_fallback.yaml",

	"generator.provider":    "openai",
	"generator.base_url":    "https://api.openai.com/v1",
	"generator.model":       "gpt-4o-mini",
	"generator.api_key":     "",
	"generator.timeout":     15 * time.Second,
	"generator.max_tokens":  700,
	"generator.temperature": 0.0,

	"assistant.person_name":       "Ryan",
	"assistant.contact_url":       "/contact",
	"assistant.resume_url":        "/resume",
	"assistant.dashboards_url":    "/dashboards",
	"assistant.max_history_turns": 6,

	"http.read_timeout":       10 * time.Second,
	"http.write_timeout":      time.Duration(0),
	"http.idle_timeout":       60 * time.Second,
	"http.max_body_size":      64 << 10,
	"http.cors_allow_origins": []string{},
	"http.cors_allow_methods": []string{"POST", "OPTIONS"},
	"http.cors_allow_headers": []string{"Content-Type", "X-Request-ID"},
	"http.trusted_proxies":    []string{},

	"swagger.enabled":     true,
	"swagger.allowed_ips": []string{},

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "",
	"telemetry.insecure":                false,
	"telemetry.metrics_enabled":         false,
	"telemetry.metrics_interval":        time.Minute,
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
	"telemetry.profiling_enabled":       false,
	"telemetry.pyroscope_address":       "",
	"telemetry.span_profiles":           false,

	"storage.endpoint":          "",
	"storage.region":            "us-east-1",
	"storage.access_key_id":     "",
	"storage.secret_access_key": "",
	"storage.use_path_style":    false,
}

// Load reads config.toml from the working directory or /app, then applies
// PV_ environment variables (PV_DATABASE_PASSWORD). A missing file is not
// an error; the defaults fill every key.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	v.SetEnvPrefix("PV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = cfg.Generator.Timeout + 10*time.Second
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate reports every problem at once.
func (c *Config) validate() error {
	var errs []error
	check := func(bad bool, format string, args ...any) {
		if bad {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	db := c.Database
	check(db.MaxOpenConns <= 0, "database.max_open_conns must be positive")
	check(db.MaxIdleConns < 0, "database.max_idle_conns must not be negative")
	check(db.MaxIdleConns > db.MaxOpenConns,
		"database.max_idle_conns (%d) exceeds database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)

	check(c.Guard.Store != "memory" && c.Guard.Store != "redis",
		"guard.store must be memory or redis, got %q", c.Guard.Store)
	check(c.Guard.Limit <= 0 || c.Guard.StrikeLimit <= 0,
		"guard.limit and guard.strike_limit must be positive")
	check(c.Generator.Provider != "openai" && c.Generator.Provider != "ollama",
		"generator.provider must be openai or ollama, got %q", c.Generator.Provider)

	for _, r := range []struct {
		key string
		val float64
	}{
		{"retrieval.project_similarity", c.Retrieval.ProjectSimilarity},
		{"retrieval.skill_similarity", c.Retrieval.SkillSimilarity},
		{"telemetry.sampling_ratio", c.Telemetry.SamplingRatio},
	} {
		check(r.val < 0 || r.val > 1, "%s must be within [0, 1], got %g", r.key, r.val)
	}

	if c.App.Env == "production" {
		check(db.Password == "", "database.password is required in production")
		check(c.Generator.Provider == "openai" && c.Generator.APIKey == "",
			"generator.api_key is required in production")
		for _, origin := range c.HTTP.CORSAllowOrigins {
			check(origin == "*", "http.cors_allow_origins must list origins in production, not '*'")
		}
		check(c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be off in production")
		check(c.Swagger.Enabled && len(c.Swagger.AllowedIPs) == 0,
			"swagger must be disabled or restricted with swagger.allowed_ips in production")
	}
	return errors.Join(errs...)
}

// DSN renders a postgres:// URL with the credentials escaped.
func (d *DatabaseConfig) DSN() string {
	q := url.Values{"sslmode": {d.SSLMode}}
	if secs := int(d.ConnectTimeout / time.Second); secs > 0 {
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	return (&url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     d.DBName,
		RawQuery: q.Encode(),
	}).String()
}

// Addr returns the host:port address of the Redis server.
func (r *RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}
