package insightdeckctl

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	defaultBaseURL = "http://localhost:8080"
	defaultTimeout = 60 * time.Second
)

// Settings is the resolved client configuration.
type Settings struct {
	BaseURL   string        `koanf:"base_url"`
	APIKey    string        `koanf:"api_key"`
	SessionID string        `koanf:"session_id"`
	Timeout   time.Duration `koanf:"timeout"`
	Output    string        `koanf:"output"`
}

// envKeys maps the environment variables the CLI honours to config keys.
var envKeys = map[string]string{
	"INSIGHTDECK_API_URL":     "base_url",
	"INSIGHTDECK_API_KEY":     "api_key",
	"INSIGHTDECK_SESSION_ID":  "session_id",
	"INSIGHTDECK_CLI_TIMEOUT": "timeout",
	"INSIGHTDECK_CLI_OUTPUT":  "output",
}

// loadSettings layers defaults, an optional YAML file, the environment and
// explicitly set flags, in increasing precedence.
func loadSettings(defaults Options, configFile string, flags *pflag.FlagSet) (Settings, error) {
	k := koanf.New(".")

	base := map[string]any{
		"base_url": firstNonEmpty(defaults.BaseURL, defaultBaseURL),
		"timeout":  durationOr(defaults.Timeout, defaultTimeout).String(),
		"output":   "table",
	}
	if key := strings.TrimSpace(defaults.APIKey); key != "" {
		base["api_key"] = key
	}
	if id := strings.TrimSpace(defaults.SessionID); id != "" {
		base["session_id"] = id
	}
	if err := k.Load(confmap.Provider(base, "."), nil); err != nil {
		return Settings{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := strings.TrimSpace(configFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Settings{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("INSIGHTDECK_", ".", func(name string) string {
		return envKeys[name]
	}), nil); err != nil {
		return Settings{}, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return Settings{}, fmt.Errorf("load flags: %w", err)
		}
	}

	var settings Settings
	if err := k.Unmarshal("", &settings); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	settings.BaseURL = strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
	settings.APIKey = strings.TrimSpace(settings.APIKey)
	settings.SessionID = strings.TrimSpace(settings.SessionID)
	settings.Output = strings.ToLower(strings.TrimSpace(settings.Output))

	if settings.BaseURL == "" {
		return Settings{}, fmt.Errorf("base url is required")
	}
	if settings.Timeout <= 0 {
		return Settings{}, fmt.Errorf("timeout must be positive, got %s", settings.Timeout)
	}
	switch settings.Output {
	case "table", "json":
	default:
		return Settings{}, fmt.Errorf("unsupported output %q (want table or json)", settings.Output)
	}
	return settings, nil
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
