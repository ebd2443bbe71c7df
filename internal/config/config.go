package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "SELECTSQL_"

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type EngineDriver string

const (
	EngineSQLite EngineDriver = "sqlite"
	EngineDuckDB EngineDriver = "duckdb"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Engine        EngineConfig
	History       HistoryConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

type EngineConfig struct {
	Driver           EngineDriver
	SurfaceRawErrors bool
}

// HistoryConfig configures the Postgres run history. An empty DSN disables it.
type HistoryConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func (h HistoryConfig) Enabled() bool {
	return h.DSN != ""
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup(envPrefix + "PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid %sPROFILE: %q", envPrefix, profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	var driver string
	settings := []struct {
		key   string
		apply func(LookupFunc, string) error
	}{
		{"SERVICE_NAME", stringSetting(&cfg.Service.Name)},
		{"HTTP_ADDR", stringSetting(&cfg.HTTP.Address)},
		{"HTTP_READ_TIMEOUT", durationSetting(&cfg.HTTP.ReadTimeout)},
		{"HTTP_WRITE_TIMEOUT", durationSetting(&cfg.HTTP.WriteTimeout)},
		{"HTTP_IDLE_TIMEOUT", durationSetting(&cfg.HTTP.IdleTimeout)},
		{"HTTP_MAX_BODY_BYTES", int64Setting(&cfg.HTTP.MaxBodyBytes)},
		{"HTTP_REQUEST_TIMEOUT", durationSetting(&cfg.HTTP.RequestTimeout)},
		{"ENGINE_DRIVER", stringSetting(&driver)},
		{"ENGINE_SURFACE_RAW_ERRORS", boolSetting(&cfg.Engine.SurfaceRawErrors)},
		{"HISTORY_DSN", stringSetting(&cfg.History.DSN)},
		{"HISTORY_MAX_OPEN_CONNS", intSetting(&cfg.History.MaxOpenConns)},
		{"HISTORY_MAX_IDLE_CONNS", intSetting(&cfg.History.MaxIdleConns)},
		{"HISTORY_CONN_MAX_IDLE_TIME", durationSetting(&cfg.History.ConnMaxIdleTime)},
		{"HISTORY_CONN_MAX_LIFETIME", durationSetting(&cfg.History.ConnMaxLifetime)},
		{"OBJECTSTORE_ENDPOINT", stringSetting(&cfg.ObjectStore.Endpoint)},
		{"OBJECTSTORE_REGION", stringSetting(&cfg.ObjectStore.Region)},
		{"OBJECTSTORE_BUCKET", stringSetting(&cfg.ObjectStore.Bucket)},
		{"OBJECTSTORE_ACCESS_KEY", stringSetting(&cfg.ObjectStore.AccessKeyID)},
		{"OBJECTSTORE_SECRET_KEY", stringSetting(&cfg.ObjectStore.SecretAccessKey)},
		{"OBJECTSTORE_USE_SSL", boolSetting(&cfg.ObjectStore.UseSSL)},
		{"OBJECTSTORE_PREFIX", stringSetting(&cfg.ObjectStore.Prefix)},
		{"OBJECTSTORE_AUTO_CREATE_BUCKET", boolSetting(&cfg.ObjectStore.AutoCreateBucket)},
		{"LOG_JSON", boolSetting(&cfg.Observability.LogJSON)},
		{"LOG_LEVEL", logLevelSetting(&cfg.Observability.LogLevel)},
		{"AUTH_REQUIRED", boolSetting(&cfg.Auth.Required)},
		{"AUTH_STATIC_KEYS", stringSetting(&cfg.Auth.StaticKeys)},
	}
	for _, setting := range settings {
		if err := setting.apply(lookup, envPrefix+setting.key); err != nil {
			return Config{}, err
		}
	}

	if driver != "" {
		cfg.Engine.Driver = EngineDriver(strings.ToLower(driver))
	}
	switch cfg.Engine.Driver {
	case EngineSQLite, EngineDuckDB:
	default:
		return Config{}, fmt.Errorf("invalid %sENGINE_DRIVER: %q", envPrefix, cfg.Engine.Driver)
	}
	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("http max body bytes must be positive")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "selectsql-api"},
		HTTP: HTTPConfig{
			Address:        ":8080",
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxBodyBytes:   32 << 20,
			RequestTimeout: 25 * time.Second,
		},
		Engine: EngineConfig{
			Driver: EngineSQLite,
		},
		History: HistoryConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "selectsql",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func stringSetting(dst *string) func(LookupFunc, string) error {
	return func(lookup LookupFunc, key string) error {
		if raw, ok := lookup(key); ok {
			*dst = strings.TrimSpace(raw)
		}
		return nil
	}
}

func durationSetting(dst *time.Duration) func(LookupFunc, string) error {
	return parsedSetting(dst, time.ParseDuration)
}

func boolSetting(dst *bool) func(LookupFunc, string) error {
	return parsedSetting(dst, strconv.ParseBool)
}

func intSetting(dst *int) func(LookupFunc, string) error {
	return parsedSetting(dst, strconv.Atoi)
}

func int64Setting(dst *int64) func(LookupFunc, string) error {
	return parsedSetting(dst, func(raw string) (int64, error) {
		return strconv.ParseInt(raw, 10, 64)
	})
}

func parsedSetting[T any](dst *T, parse func(string) (T, error)) func(LookupFunc, string) error {
	return func(lookup LookupFunc, key string) error {
		raw, ok := lookup(key)
		if !ok {
			return nil
		}
		value, err := parse(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = value
		return nil
	}
}

func logLevelSetting(dst *slog.Level) func(LookupFunc, string) error {
	return func(lookup LookupFunc, key string) error {
		raw, ok := lookup(key)
		if !ok {
			return nil
		}
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "debug":
			*dst = slog.LevelDebug
		case "info":
			*dst = slog.LevelInfo
		case "warn", "warning":
			*dst = slog.LevelWarn
		case "error":
			*dst = slog.LevelError
		default:
			return fmt.Errorf("invalid %s: %q", key, raw)
		}
		return nil
	}
}
