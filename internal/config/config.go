package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const envPrefix = "INSIGHTDECK_"

const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOpenAIModel   = "gpt-4"
	defaultGeminiModel   = "gemini-2.5-flash"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Warehouse     WarehouseConfig
	AI            AIConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// WarehouseConfig selects the SQL dialect and carries its credentials. The
// snowflake fields are ignored by the dsn-based dialects and vice versa.
type WarehouseConfig struct {
	Dialect      string
	Account      string
	User         string
	Password     string
	Name         string
	Database     string
	Role         string
	DSN          string
	SampleRows   int
	QueryTimeout time.Duration
}

type AIConfig struct {
	Provider         string
	BaseURL          string
	APIKey           string
	Model            string
	Temperature      float64
	Timeout          time.Duration
	PromptSampleRows int
}

type ObjectStoreConfig struct {
	Enabled          bool
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
	PresignExpiry    time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

// LoadFromEnv reads the process environment, falling back to values from a
// .env file in the working directory when one exists.
func LoadFromEnv(serviceName string) (Config, error) {
	lookup, err := DotenvLookup(os.LookupEnv, ".env")
	if err != nil {
		return Config{}, err
	}
	return Load(serviceName, lookup)
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

	// Legacy names are applied first so the prefixed keys win when both are set.
	// The legacy provider keys are held apart until the provider is known.
	var legacyOpenAIKey, legacyGeminiKey string
	appliers := []func(LookupFunc) error{
		stringKey("SNOWFLAKE_ACCOUNT", &cfg.Warehouse.Account),
		stringKey("SNOWFLAKE_USER", &cfg.Warehouse.User),
		stringKey("SNOWFLAKE_PASSWORD", &cfg.Warehouse.Password),
		stringKey("SNOWFLAKE_WAREHOUSE", &cfg.Warehouse.Name),
		stringKey("SNOWFLAKE_DATABASE", &cfg.Warehouse.Database),
		stringKey("OPENAI_API_KEY", &legacyOpenAIKey),
		stringKey("GEMINI_API_KEY", &legacyGeminiKey),

		stringKey(envPrefix+"SERVICE_NAME", &cfg.Service.Name),
		stringKey(envPrefix+"HTTP_ADDR", &cfg.HTTP.Address),
		durationKey(envPrefix+"HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout),
		durationKey(envPrefix+"HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout),
		durationKey(envPrefix+"HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout),

		stringKey(envPrefix+"WAREHOUSE_DIALECT", &cfg.Warehouse.Dialect),
		stringKey(envPrefix+"WAREHOUSE_ACCOUNT", &cfg.Warehouse.Account),
		stringKey(envPrefix+"WAREHOUSE_USER", &cfg.Warehouse.User),
		stringKey(envPrefix+"WAREHOUSE_PASSWORD", &cfg.Warehouse.Password),
		stringKey(envPrefix+"WAREHOUSE_NAME", &cfg.Warehouse.Name),
		stringKey(envPrefix+"WAREHOUSE_DATABASE", &cfg.Warehouse.Database),
		stringKey(envPrefix+"WAREHOUSE_ROLE", &cfg.Warehouse.Role),
		stringKey(envPrefix+"WAREHOUSE_DSN", &cfg.Warehouse.DSN),
		intKey(envPrefix+"WAREHOUSE_SAMPLE_ROWS", &cfg.Warehouse.SampleRows),
		durationKey(envPrefix+"WAREHOUSE_QUERY_TIMEOUT", &cfg.Warehouse.QueryTimeout),

		stringKey(envPrefix+"AI_PROVIDER", &cfg.AI.Provider),
		stringKey(envPrefix+"AI_BASE_URL", &cfg.AI.BaseURL),
		stringKey(envPrefix+"AI_API_KEY", &cfg.AI.APIKey),
		stringKey(envPrefix+"AI_MODEL", &cfg.AI.Model),
		floatKey(envPrefix+"AI_TEMPERATURE", &cfg.AI.Temperature),
		durationKey(envPrefix+"AI_TIMEOUT", &cfg.AI.Timeout),
		intKey(envPrefix+"AI_PROMPT_SAMPLE_ROWS", &cfg.AI.PromptSampleRows),

		boolKey(envPrefix+"OBJECTSTORE_ENABLED", &cfg.ObjectStore.Enabled),
		stringKey(envPrefix+"OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint),
		stringKey(envPrefix+"OBJECTSTORE_REGION", &cfg.ObjectStore.Region),
		stringKey(envPrefix+"OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket),
		stringKey(envPrefix+"OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID),
		stringKey(envPrefix+"OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey),
		boolKey(envPrefix+"OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL),
		stringKey(envPrefix+"OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix),
		boolKey(envPrefix+"OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket),
		durationKey(envPrefix+"OBJECTSTORE_PRESIGN_EXPIRY", &cfg.ObjectStore.PresignExpiry),

		boolKey(envPrefix+"LOG_JSON", &cfg.Observability.LogJSON),
		logLevelKey(envPrefix+"LOG_LEVEL", &cfg.Observability.LogLevel),
		boolKey(envPrefix+"AUTH_REQUIRED", &cfg.Auth.Required),
		stringKey(envPrefix+"AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys),
	}
	for _, apply := range appliers {
		if err := apply(lookup); err != nil {
			return Config{}, err
		}
	}

	cfg.Warehouse.Dialect = strings.ToLower(cfg.Warehouse.Dialect)
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if cfg.AI.APIKey == "" {
		switch cfg.AI.Provider {
		case "openai":
			cfg.AI.APIKey = legacyOpenAIKey
		case "gemini":
			cfg.AI.APIKey = legacyGeminiKey
		}
	}
	cfg.Warehouse.Account = NormalizeAccount(cfg.Warehouse.Account)
	if cfg.AI.Provider == "gemini" {
		// The openai defaults mean nothing to gemini; explicit values are kept.
		if cfg.AI.BaseURL == defaultOpenAIBaseURL {
			cfg.AI.BaseURL = ""
		}
		if cfg.AI.Model == defaultOpenAIModel {
			cfg.AI.Model = defaultGeminiModel
		}
	}
	cfg.Warehouse.Database = NormalizeDatabase(cfg.Warehouse.Database)

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Warehouse.SampleRows <= 0 {
		return Config{}, fmt.Errorf("%sWAREHOUSE_SAMPLE_ROWS must be > 0", envPrefix)
	}
	switch cfg.AI.Provider {
	case "openai", "gemini":
	default:
		return Config{}, fmt.Errorf("invalid %sAI_PROVIDER: %q", envPrefix, cfg.AI.Provider)
	}
	if cfg.AI.PromptSampleRows <= 0 {
		return Config{}, fmt.Errorf("%sAI_PROMPT_SAMPLE_ROWS must be > 0", envPrefix)
	}
	// Presigned S3 links cannot outlive seven days.
	if cfg.ObjectStore.PresignExpiry <= 0 || cfg.ObjectStore.PresignExpiry > 7*24*time.Hour {
		return Config{}, fmt.Errorf("%sOBJECTSTORE_PRESIGN_EXPIRY must be between 1s and 168h", envPrefix)
	}
	return cfg, nil
}

// NormalizeAccount strips the public host suffix users often paste in with the
// account identifier.
func NormalizeAccount(account string) string {
	return strings.ReplaceAll(strings.TrimSpace(account), ".snowflakecomputing.com", "")
}

// NormalizeDatabase removes double quotes wrapped around a database name.
func NormalizeDatabase(database string) string {
	database = strings.TrimSpace(database)
	if len(database) >= 2 && strings.HasPrefix(database, `"`) && strings.HasSuffix(database, `"`) {
		return strings.Trim(database, `"`)
	}
	return database
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "insightdeck-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Warehouse: WarehouseConfig{
			Dialect:      "snowflake",
			SampleRows:   100,
			QueryTimeout: 90 * time.Second,
		},
		AI: AIConfig{
			Provider:         "openai",
			BaseURL:          defaultOpenAIBaseURL,
			Model:            defaultOpenAIModel,
			Temperature:      0.7,
			Timeout:          60 * time.Second,
			PromptSampleRows: 5,
		},
		ObjectStore: ObjectStoreConfig{
			Enabled:          false,
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "insightdeck-exports",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			AutoCreateBucket: true,
			PresignExpiry:    15 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Warehouse.Dialect = "duckdb"
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

func stringKey(key string, dst *string) func(LookupFunc) error {
	return func(lookup LookupFunc) error {
		raw, ok := lookup(key)
		if !ok {
			return nil
		}
		*dst = strings.TrimSpace(raw)
		return nil
	}
}

func durationKey(key string, dst *time.Duration) func(LookupFunc) error {
	return parsedKey(key, dst, func(raw string) (time.Duration, error) {
		return time.ParseDuration(raw)
	})
}

func boolKey(key string, dst *bool) func(LookupFunc) error {
	return parsedKey(key, dst, strconv.ParseBool)
}

func intKey(key string, dst *int) func(LookupFunc) error {
	return parsedKey(key, dst, strconv.Atoi)
}

func floatKey(key string, dst *float64) func(LookupFunc) error {
	return parsedKey(key, dst, func(raw string) (float64, error) {
		return strconv.ParseFloat(raw, 64)
	})
}

func logLevelKey(key string, dst *slog.Level) func(LookupFunc) error {
	return parsedKey(key, dst, func(raw string) (slog.Level, error) {
		switch strings.ToLower(raw) {
		case "debug":
			return slog.LevelDebug, nil
		case "info":
			return slog.LevelInfo, nil
		case "warn", "warning":
			return slog.LevelWarn, nil
		case "error":
			return slog.LevelError, nil
		default:
			return 0, fmt.Errorf("unknown level %q", raw)
		}
	})
}

func parsedKey[T any](key string, dst *T, parse func(string) (T, error)) func(LookupFunc) error {
	return func(lookup LookupFunc) error {
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
