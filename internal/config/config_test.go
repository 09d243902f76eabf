package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("insightdeck-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Warehouse.Dialect != "snowflake" {
		t.Fatalf("Warehouse.Dialect = %q", cfg.Warehouse.Dialect)
	}
	if cfg.Warehouse.SampleRows != 100 {
		t.Fatalf("Warehouse.SampleRows = %d", cfg.Warehouse.SampleRows)
	}
	if cfg.AI.Model != "gpt-4" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Temperature != 0.7 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.PromptSampleRows != 5 {
		t.Fatalf("AI.PromptSampleRows = %d", cfg.AI.PromptSampleRows)
	}
	if cfg.ObjectStore.Enabled {
		t.Fatal("ObjectStore.Enabled should default to false")
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("insightdeck-api", mapLookup(map[string]string{"INSIGHTDECK_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
}

func TestLoadTestProfileUsesLocalWarehouse(t *testing.T) {
	cfg, err := Load("insightdeck-api", mapLookup(map[string]string{"INSIGHTDECK_PROFILE": "TEST"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Warehouse.Dialect != "duckdb" {
		t.Fatalf("Warehouse.Dialect = %q", cfg.Warehouse.Dialect)
	}
	if cfg.HTTP.Address != ":18080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"INSIGHTDECK_PROFILE":                        "test",
		"INSIGHTDECK_SERVICE_NAME":                   "insightdeck-custom",
		"INSIGHTDECK_HTTP_ADDR":                      ":9999",
		"INSIGHTDECK_HTTP_READ_TIMEOUT":              "2s",
		"INSIGHTDECK_LOG_LEVEL":                      "error",
		"INSIGHTDECK_AUTH_REQUIRED":                  "true",
		"INSIGHTDECK_AUTH_STATIC_KEYS":               "k1:s1:explorer",
		"INSIGHTDECK_WAREHOUSE_DIALECT":              "Postgres",
		"INSIGHTDECK_WAREHOUSE_DSN":                  "postgres://example",
		"INSIGHTDECK_WAREHOUSE_SAMPLE_ROWS":          "25",
		"INSIGHTDECK_WAREHOUSE_QUERY_TIMEOUT":        "45s",
		"INSIGHTDECK_AI_BASE_URL":                    "https://api.example.com",
		"INSIGHTDECK_AI_API_KEY":                     "secret-key",
		"INSIGHTDECK_AI_MODEL":                       "gpt-4o",
		"INSIGHTDECK_AI_TEMPERATURE":                 "0.3",
		"INSIGHTDECK_AI_TIMEOUT":                     "21s",
		"INSIGHTDECK_AI_PROMPT_SAMPLE_ROWS":          "3",
		"INSIGHTDECK_OBJECTSTORE_ENABLED":            "true",
		"INSIGHTDECK_OBJECTSTORE_BUCKET":             "exports",
		"INSIGHTDECK_OBJECTSTORE_PREFIX":             "team-a",
		"INSIGHTDECK_OBJECTSTORE_USE_SSL":            "true",
		"INSIGHTDECK_OBJECTSTORE_ACCESS_KEY":         "abc",
		"INSIGHTDECK_OBJECTSTORE_SECRET_KEY":         "def",
		"INSIGHTDECK_OBJECTSTORE_ENDPOINT":           "s3.example.com",
		"INSIGHTDECK_OBJECTSTORE_REGION":             "eu-west-1",
		"INSIGHTDECK_OBJECTSTORE_AUTO_CREATE_BUCKET": "false",
		"INSIGHTDECK_OBJECTSTORE_PRESIGN_EXPIRY":     "2h",
	})
	cfg, err := Load("insightdeck-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "insightdeck-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required || cfg.Auth.StaticKeys != "k1:s1:explorer" {
		t.Fatalf("Auth = %#v", cfg.Auth)
	}
	if cfg.Warehouse.Dialect != "postgres" {
		t.Fatalf("Warehouse.Dialect = %q", cfg.Warehouse.Dialect)
	}
	if cfg.Warehouse.DSN != "postgres://example" {
		t.Fatalf("Warehouse.DSN = %q", cfg.Warehouse.DSN)
	}
	if cfg.Warehouse.SampleRows != 25 {
		t.Fatalf("Warehouse.SampleRows = %d", cfg.Warehouse.SampleRows)
	}
	if cfg.Warehouse.QueryTimeout != 45*time.Second {
		t.Fatalf("Warehouse.QueryTimeout = %s", cfg.Warehouse.QueryTimeout)
	}
	if cfg.AI.BaseURL != "https://api.example.com" || cfg.AI.APIKey != "secret-key" {
		t.Fatalf("AI = %#v", cfg.AI)
	}
	if cfg.AI.Model != "gpt-4o" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Temperature != 0.3 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
	if cfg.AI.PromptSampleRows != 3 {
		t.Fatalf("AI.PromptSampleRows = %d", cfg.AI.PromptSampleRows)
	}
	if !cfg.ObjectStore.Enabled || cfg.ObjectStore.Bucket != "exports" || cfg.ObjectStore.Prefix != "team-a" {
		t.Fatalf("ObjectStore = %#v", cfg.ObjectStore)
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket = true, want false")
	}
	if cfg.ObjectStore.Region != "eu-west-1" || cfg.ObjectStore.Endpoint != "s3.example.com" {
		t.Fatalf("ObjectStore = %#v", cfg.ObjectStore)
	}
	if cfg.ObjectStore.PresignExpiry != 2*time.Hour {
		t.Fatalf("ObjectStore.PresignExpiry = %s", cfg.ObjectStore.PresignExpiry)
	}
}

func TestLoadAcceptsLegacyWarehouseVariables(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"SNOWFLAKE_ACCOUNT":   "xy12345.eu-central-1.snowflakecomputing.com",
		"SNOWFLAKE_USER":      "analyst",
		"SNOWFLAKE_PASSWORD":  "pw",
		"SNOWFLAKE_WAREHOUSE": "COMPUTE_WH",
		"SNOWFLAKE_DATABASE":  `"ANALYTICS"`,
		"OPENAI_API_KEY":      "sk-legacy",
	})
	cfg, err := Load("insightdeck-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Warehouse.Account != "xy12345.eu-central-1" {
		t.Fatalf("Warehouse.Account = %q", cfg.Warehouse.Account)
	}
	if cfg.Warehouse.Database != "ANALYTICS" {
		t.Fatalf("Warehouse.Database = %q", cfg.Warehouse.Database)
	}
	if cfg.Warehouse.Name != "COMPUTE_WH" || cfg.Warehouse.User != "analyst" {
		t.Fatalf("Warehouse = %#v", cfg.Warehouse)
	}
	if cfg.AI.APIKey != "sk-legacy" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
}

func TestLoadPrefixedKeysWinOverLegacy(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"SNOWFLAKE_USER":             "legacy",
		"INSIGHTDECK_WAREHOUSE_USER": "current",
		"OPENAI_API_KEY":             "legacy-key",
		"INSIGHTDECK_AI_API_KEY":     "current-key",
	})
	cfg, err := Load("insightdeck-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Warehouse.User != "current" {
		t.Fatalf("Warehouse.User = %q", cfg.Warehouse.User)
	}
	if cfg.AI.APIKey != "current-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"INSIGHTDECK_PROFILE": "oops"},
		{"INSIGHTDECK_HTTP_READ_TIMEOUT": "NaN"},
		{"INSIGHTDECK_WAREHOUSE_SAMPLE_ROWS": "oops"},
		{"INSIGHTDECK_WAREHOUSE_SAMPLE_ROWS": "0"},
		{"INSIGHTDECK_AI_PROMPT_SAMPLE_ROWS": "-1"},
		{"INSIGHTDECK_AI_TEMPERATURE": "bad"},
		{"INSIGHTDECK_AI_PROVIDER": "carrier-pigeon"},
		{"INSIGHTDECK_AUTH_REQUIRED": "not-bool"},
		{"INSIGHTDECK_LOG_LEVEL": "verbose"},
		{"INSIGHTDECK_HTTP_ADDR": "  "},
		{"INSIGHTDECK_OBJECTSTORE_PRESIGN_EXPIRY": "0s"},
		{"INSIGHTDECK_OBJECTSTORE_PRESIGN_EXPIRY": "200h"},
	}
	for _, env := range tests {
		if _, err := Load("insightdeck-api", mapLookup(env)); err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func TestNormalizeHelpers(t *testing.T) {
	if got := NormalizeAccount(" acme.snowflakecomputing.com "); got != "acme" {
		t.Fatalf("NormalizeAccount() = %q", got)
	}
	if got := NormalizeAccount("acme"); got != "acme" {
		t.Fatalf("NormalizeAccount() = %q", got)
	}
	if got := NormalizeDatabase(`"SALES_DB"`); got != "SALES_DB" {
		t.Fatalf("NormalizeDatabase() = %q", got)
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadGeminiProviderReplacesOpenAIDefaults(t *testing.T) {
	cfg, err := Load("insightdeck-api", mapLookup(map[string]string{
		"INSIGHTDECK_AI_PROVIDER": "Gemini",
		"GEMINI_API_KEY":          "g-key",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.Provider != "gemini" || cfg.AI.BaseURL != "" || cfg.AI.Model != "gemini-2.5-flash" {
		t.Fatalf("AI = %#v", cfg.AI)
	}
	if cfg.AI.APIKey != "g-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}

	cfg, err = Load("insightdeck-api", mapLookup(map[string]string{
		"INSIGHTDECK_AI_PROVIDER": "gemini",
		"INSIGHTDECK_AI_MODEL":    "gemini-2.5-pro",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.Model != "gemini-2.5-pro" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
}

func TestLoadPicksLegacyAPIKeyForProvider(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "default provider uses openai key",
			env:  map[string]string{"OPENAI_API_KEY": "sk-openai", "GEMINI_API_KEY": "gm-gemini"},
			want: "sk-openai",
		},
		{
			name: "gemini provider uses gemini key",
			env:  map[string]string{"INSIGHTDECK_AI_PROVIDER": "gemini", "OPENAI_API_KEY": "sk-openai", "GEMINI_API_KEY": "gm-gemini"},
			want: "gm-gemini",
		},
		{
			name: "openai provider ignores lone gemini key",
			env:  map[string]string{"INSIGHTDECK_AI_PROVIDER": "openai", "GEMINI_API_KEY": "gm-gemini"},
			want: "",
		},
		{
			name: "prefixed key wins for openai",
			env:  map[string]string{"INSIGHTDECK_AI_API_KEY": "explicit", "OPENAI_API_KEY": "sk-openai", "GEMINI_API_KEY": "gm-gemini"},
			want: "explicit",
		},
		{
			name: "prefixed key wins for gemini",
			env:  map[string]string{"INSIGHTDECK_AI_PROVIDER": "gemini", "INSIGHTDECK_AI_API_KEY": "explicit", "GEMINI_API_KEY": "gm-gemini"},
			want: "explicit",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("insightdeck-api", mapLookup(tt.env))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.AI.APIKey != tt.want {
				t.Fatalf("%s provider got key %q, want %q", cfg.AI.Provider, cfg.AI.APIKey, tt.want)
			}
		})
	}
}
