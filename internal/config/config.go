// Package config loads and watches the engine's configuration: a TOML
// file, overridden by NEXTEDIT_* environment variables, validated into
// plain component configs. The file is optional; every field has a
// working default.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dshills/nextedit/internal/suggest"
	"github.com/dshills/nextedit/internal/suggest/cache"
	"github.com/dshills/nextedit/internal/suggest/trigger"
)

// ErrInvalid wraps all validation failures.
var ErrInvalid = errors.New("invalid configuration")

// Duration is a time.Duration that unmarshals from TOML strings like
// "250ms" or "5s".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText renders the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full configuration surface.
type Config struct {
	Trigger  TriggerSection  `toml:"trigger"`
	Delays   DelaysSection   `toml:"delays"`
	Cache    CacheSection    `toml:"cache"`
	Provider ProviderSection `toml:"provider"`
	Logging  LoggingSection  `toml:"logging"`
}

// TriggerSection tunes the trigger gate.
type TriggerSection struct {
	RejectionCooldown     Duration `toml:"rejection_cooldown"`
	SameLineCooldown      Duration `toml:"same_line_cooldown"`
	EditAgeLimit          Duration `toml:"edit_age_limit"`
	DebounceInterval      Duration `toml:"debounce_interval"`
	SwitchWindow          Duration `toml:"switch_window"`
	SwitchStrategy        string   `toml:"switch_strategy"`
	TriggerOnEditorChange bool     `toml:"trigger_on_editor_change"`
}

// DelaysSection sets the minimum response latency floors.
type DelaysSection struct {
	Base       Duration `toml:"base"`
	Rebased    Duration `toml:"rebased"`
	Subsequent Duration `toml:"subsequent"`
}

// CacheSection sizes the suggestion cache.
type CacheSection struct {
	Capacity         int `toml:"capacity"`
	MaxTrackedPerDoc int `toml:"max_tracked_per_doc"`
}

// ProviderSection selects and configures the suggestion backend.
type ProviderSection struct {
	// Kind is "http" or "openai".
	Kind     string `toml:"kind"`
	Endpoint string `toml:"endpoint"`
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
}

// LoggingSection configures the logger.
type LoggingSection struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	tc := trigger.DefaultConfig()
	return Config{
		Trigger: TriggerSection{
			RejectionCooldown: Duration(tc.RejectionCooldown),
			SameLineCooldown:  Duration(tc.SameLineCooldown),
			EditAgeLimit:      Duration(tc.EditAgeLimit),
			SwitchStrategy:    trigger.SwitchAlways.String(),
		},
		Cache: CacheSection{
			Capacity:         cache.DefaultCapacity,
			MaxTrackedPerDoc: cache.DefaultMaxTrackedPerDoc,
		},
		Provider: ProviderSection{
			Kind: "http",
		},
		Logging: LoggingSection{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for contradictions.
func (c Config) Validate() error {
	for name, d := range map[string]Duration{
		"trigger.rejection_cooldown": c.Trigger.RejectionCooldown,
		"trigger.same_line_cooldown": c.Trigger.SameLineCooldown,
		"trigger.edit_age_limit":     c.Trigger.EditAgeLimit,
		"trigger.debounce_interval":  c.Trigger.DebounceInterval,
		"trigger.switch_window":      c.Trigger.SwitchWindow,
		"delays.base":                c.Delays.Base,
		"delays.rebased":             c.Delays.Rebased,
		"delays.subsequent":          c.Delays.Subsequent,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalid, name)
		}
	}
	if _, err := c.switchStrategy(); err != nil {
		return err
	}
	if c.Cache.Capacity < 0 || c.Cache.MaxTrackedPerDoc < 0 {
		return fmt.Errorf("%w: cache sizes must not be negative", ErrInvalid)
	}
	// Endpoint and key presence are checked where the backend is
	// constructed; a replay run needs neither.
	switch c.Provider.Kind {
	case "http", "openai":
	default:
		return fmt.Errorf("%w: unknown provider kind %q", ErrInvalid, c.Provider.Kind)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Logging.Format)
	}
	return nil
}

func (c Config) switchStrategy() (trigger.SwitchStrategy, error) {
	switch c.Trigger.SwitchStrategy {
	case "", "always":
		return trigger.SwitchAlways, nil
	case "after-acceptance":
		return trigger.SwitchAfterAcceptance, nil
	default:
		return 0, fmt.Errorf("%w: unknown switch strategy %q", ErrInvalid, c.Trigger.SwitchStrategy)
	}
}

// TriggerConfig converts the trigger section.
func (c Config) TriggerConfig() trigger.Config {
	strategy, _ := c.switchStrategy()
	return trigger.Config{
		RejectionCooldown:     c.Trigger.RejectionCooldown.Std(),
		SameLineCooldown:      c.Trigger.SameLineCooldown.Std(),
		EditAgeLimit:          c.Trigger.EditAgeLimit.Std(),
		DebounceInterval:      c.Trigger.DebounceInterval.Std(),
		SwitchWindow:          c.Trigger.SwitchWindow.Std(),
		SwitchStrategy:        strategy,
		TriggerOnEditorChange: c.Trigger.TriggerOnEditorChange,
	}
}

// ServiceConfig converts the delay section.
func (c Config) ServiceConfig() suggest.Config {
	cfg := suggest.DefaultConfig()
	cfg.BaseDelay = c.Delays.Base.Std()
	cfg.RebasedDelay = c.Delays.Rebased.Std()
	cfg.SubsequentDelay = c.Delays.Subsequent.Std()
	return cfg
}

// StoreConfig converts the cache section.
func (c Config) StoreConfig() cache.StoreConfig {
	return cache.StoreConfig{
		Capacity:         c.Cache.Capacity,
		MaxTrackedPerDoc: c.Cache.MaxTrackedPerDoc,
	}
}
