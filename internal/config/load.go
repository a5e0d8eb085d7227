package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix namespaces the engine's environment overrides.
const EnvPrefix = "NEXTEDIT_"

// Load reads path (optional), applies environment overrides, and
// validates. A missing file falls back to defaults; a malformed or
// contradictory one is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Optional file; defaults apply.
		case err != nil:
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays NEXTEDIT_* environment variables. Empty values are
// treated as set.
func applyEnv(cfg *Config) error {
	for env, apply := range envMapping() {
		val, ok := os.LookupEnv(EnvPrefix + env)
		if !ok {
			continue
		}
		if err := apply(cfg, val); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, env, err)
		}
	}
	return nil
}

func envMapping() map[string]func(*Config, string) error {
	return map[string]func(*Config, string) error{
		"PROVIDER": func(c *Config, v string) error { c.Provider.Kind = v; return nil },
		"ENDPOINT": func(c *Config, v string) error { c.Provider.Endpoint = v; return nil },
		"API_KEY":  func(c *Config, v string) error { c.Provider.APIKey = v; return nil },
		"MODEL":    func(c *Config, v string) error { c.Provider.Model = v; return nil },

		"LOG_LEVEL":  func(c *Config, v string) error { c.Logging.Level = v; return nil },
		"LOG_FORMAT": func(c *Config, v string) error { c.Logging.Format = v; return nil },

		"DEBOUNCE_INTERVAL": durationEnv(func(c *Config) *Duration { return &c.Trigger.DebounceInterval }),
		"SWITCH_WINDOW":     durationEnv(func(c *Config) *Duration { return &c.Trigger.SwitchWindow }),
		"SWITCH_STRATEGY": func(c *Config, v string) error {
			c.Trigger.SwitchStrategy = v
			return nil
		},
		"TRIGGER_ON_EDITOR_CHANGE": func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			c.Trigger.TriggerOnEditorChange = b
			return nil
		},

		"DELAY_BASE":       durationEnv(func(c *Config) *Duration { return &c.Delays.Base }),
		"DELAY_REBASED":    durationEnv(func(c *Config) *Duration { return &c.Delays.Rebased }),
		"DELAY_SUBSEQUENT": durationEnv(func(c *Config) *Duration { return &c.Delays.Subsequent }),

		"CACHE_CAPACITY": func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			c.Cache.Capacity = n
			return nil
		},
	}
}

func durationEnv(field func(*Config) *Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		return field(c).UnmarshalText([]byte(v))
	}
}
