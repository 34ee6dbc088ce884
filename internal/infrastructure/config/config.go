package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/service/analytics"
	"github.com/davidleathers/workflow-insights-backend/internal/service/insights"
)

// DefaultPath is the config file read by Load
const DefaultPath = "configs/config.yaml"

// EnvPrefix marks environment overrides, e.g. WFI_SERVER_PORT
const EnvPrefix = "WFI_"

const slaLimitsKey = "analytics.sla_limits"

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment" validate:"oneof=development staging production test"`
	LogLevel    string `koanf:"log_level" validate:"oneof=debug info warn error"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Security  SecurityConfig  `koanf:"security"`
	Telemetry TelemetryConfig `koanf:"telemetry"`

	Analytics AnalyticsConfig `koanf:"analytics"`
	Export    ExportConfig    `koanf:"export"`
	Uploads   UploadsConfig   `koanf:"uploads"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`

	// TrustProxyHeaders takes the client address from X-Real-IP or
	// X-Forwarded-For. Enable only behind a reverse proxy.
	TrustProxyHeaders bool `koanf:"trust_proxy_headers"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns" validate:"gte=1"`
	MinConns        int32         `koanf:"min_conns" validate:"gte=0,ltefield=MaxConns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL         string        `koanf:"url"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db" validate:"gte=0"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	ReportTTL   time.Duration `koanf:"report_ttl" validate:"gte=0"`
}

type SecurityConfig struct {
	JWTSecret   string          `koanf:"jwt_secret"`
	TokenExpiry time.Duration   `koanf:"token_expiry" validate:"gt=0"`
	RateLimit   RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `koanf:"requests_per_second" validate:"gte=1"`
	BurstSize         int `koanf:"burst_size" validate:"gte=1"`
}

type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	ServiceName  string  `koanf:"service_name" validate:"required"`
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SampleRate   float64 `koanf:"sample_rate" validate:"gte=0,lte=1"`
}

// AnalyticsConfig tunes the analytics run and the heuristic recommender
type AnalyticsConfig struct {
	TopVariants         int                `koanf:"top_variants" validate:"gte=1"`
	CaseSampleLimit     int                `koanf:"case_sample_limit" validate:"gte=0"`
	RoleCaseSampleLimit int                `koanf:"role_case_sample_limit" validate:"gte=0"`
	BottleneckMinutes   float64            `koanf:"bottleneck_minutes" validate:"gte=0"`
	Workers             int                `koanf:"workers" validate:"gte=1"`
	SLALimits           map[string]float64 `koanf:"sla_limits"`
	Rules               insights.Rules     `koanf:"rules"`
}

type ExportConfig struct {
	OutputDir string `koanf:"output_dir" validate:"required"`
	Format    string `koanf:"format" validate:"oneof=json yaml"`
}

type UploadsConfig struct {
	Dir      string `koanf:"dir" validate:"required"`
	MaxBytes int64  `koanf:"max_bytes" validate:"gt=0"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"http://localhost:5173"},
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        2,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			DialTimeout: 5 * time.Second,
			ReportTTL:   24 * time.Hour,
		},
		Security: SecurityConfig{
			TokenExpiry: 7 * 24 * time.Hour,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 20,
				BurstSize:         40,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName: "workflow-insights",
			SampleRate:  1.0,
		},
		Analytics: AnalyticsConfig{
			TopVariants:         5,
			CaseSampleLimit:     5,
			RoleCaseSampleLimit: 10,
			BottleneckMinutes:   60,
			Workers:             runtime.NumCPU(),
			SLALimits:           analytics.DefaultSLALimits(),
			Rules:               insights.DefaultRules(),
		},
		Export: ExportConfig{
			OutputDir: "output",
			Format:    "json",
		},
		Uploads: UploadsConfig{
			Dir:      "uploads",
			MaxBytes: 32 << 20,
		},
	}
}

// Load reads configs/config.yaml when present and applies WFI_ overrides
func Load() (*Config, error) {
	return LoadFrom(DefaultPath)
}

// LoadFrom layers defaults, the YAML file at path (optional) and environment
// variables, then validates the result. Every failure is a config error.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, errors.NewConfigError("LOAD_DEFAULTS", "loading defaults").WithCause(err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := loadFile(k, path); err != nil {
				return nil, errors.NewConfigError("LOAD_FILE",
					fmt.Sprintf("loading config file %s", path)).WithCause(err)
			}
		} else if path != DefaultPath {
			return nil, errors.NewConfigError("LOAD_FILE",
				fmt.Sprintf("config file %s not found", path)).WithCause(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKeyMapper(k)), nil); err != nil {
		return nil, errors.NewConfigError("LOAD_ENV", "loading environment variables").WithCause(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.NewConfigError("DECODE", "decoding configuration").WithCause(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadFile merges the YAML file at path into k. A file that sets
// analytics.sla_limits replaces the default table instead of extending it,
// so an activity left out of the file has no limit.
func loadFile(k *koanf.Koanf, path string) error {
	fk := koanf.New(".")
	if err := fk.Load(file.Provider(path), yaml.Parser()); err != nil {
		return err
	}
	if fk.Exists(slaLimitsKey) {
		k.Delete(slaLimitsKey)
	}
	return k.Merge(fk)
}

// envKeyMapper turns WFI_SERVER_READ_TIMEOUT into server.read_timeout by
// matching against the keys already loaded, since key names contain
// underscores themselves. Unknown variables map to the naive dotted form.
func envKeyMapper(k *koanf.Koanf) func(string) string {
	known := make(map[string]string)
	for _, key := range k.Keys() {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}
	return func(s string) string {
		flat := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		if key, ok := known[flat]; ok {
			return key
		}
		return strings.ReplaceAll(flat, "_", ".")
	}
}

var validate = validator.New()

// Validate checks field constraints and the SLA table
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.NewConfigError("INVALID_CONFIG", err.Error()).WithCause(err)
	}
	return analytics.SLALimits(c.Analytics.SLALimits).Validate()
}

// AnalyticsOptions converts the analytics section into service options
func (c *Config) AnalyticsOptions() analytics.Options {
	return analytics.Options{
		TopVariants:         c.Analytics.TopVariants,
		CaseSampleLimit:     c.Analytics.CaseSampleLimit,
		RoleCaseSampleLimit: c.Analytics.RoleCaseSampleLimit,
		BottleneckMinutes:   c.Analytics.BottleneckMinutes,
		Workers:             c.Analytics.Workers,
		SLALimits:           analytics.SLALimits(c.Analytics.SLALimits).Clone(),
	}
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
