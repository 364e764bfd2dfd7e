package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/shlex"
)

// Config is the top-level heats configuration, loaded from config.toml.
type Config struct {
	Daemon    DaemonConfig             `toml:"daemon"`
	Mode      []ModeSpec               `toml:"mode"`
	Provider  map[string]ProviderSpec  `toml:"provider"`
	Evaluator map[string]EvaluatorSpec `toml:"evaluator"`
}

// DaemonConfig holds daemon-wide settings.
type DaemonConfig struct {
	SocketPath string `toml:"socket_path"` // Unix socket path (overrides default)
	LogLevel   string `toml:"log_level"`   // debug, info, warn, error
}

// ModeSpec binds an activation trigger to a set of providers and evaluators.
type ModeSpec struct {
	Name       string   `toml:"name"`
	Hotkey     string   `toml:"hotkey"` // documentation for external bindings
	Providers  []string `toml:"providers"`
	Evaluators []string `toml:"evaluators"`
}

// InputMode selects how a command receives its input value.
type InputMode string

const (
	// InputStdin writes the value to the command's stdin, newline
	// terminated.
	InputStdin InputMode = "stdin"
	// InputArg appends the value as the final argument.
	InputArg InputMode = "arg"
)

// UnmarshalText validates the mode; an empty value defaults to stdin, which
// matches how the calculator evaluator is invoked.
func (m *InputMode) UnmarshalText(text []byte) error {
	switch s := string(text); s {
	case "", "stdin":
		*m = InputStdin
	case "arg":
		*m = InputArg
	default:
		return fmt.Errorf("invalid input mode %q (want \"stdin\" or \"arg\")", s)
	}
	return nil
}

// ProviderSpec is a source command plus the action run on selection.
type ProviderSpec struct {
	Source Command `toml:"source"`
	Action Command `toml:"action"`
	// Field is the item field passed to the action (e.g. "data.path").
	Field string `toml:"field"`
	// CacheInterval enables background refresh caching when non-zero.
	CacheInterval Duration `toml:"cache_interval"`
}

// EvaluatorSpec is a query-reactive source/action pair, e.g. a calculator.
type EvaluatorSpec struct {
	Source      Command   `toml:"source"`
	Input       InputMode `toml:"input"`
	Action      Command   `toml:"action"`
	ActionInput InputMode `toml:"action_input"`
	Field       string    `toml:"field"`
}

// Command is an executable plus arguments. In TOML it may be written either
// as an array of strings or as a single string, which is split with POSIX
// shell quoting rules (no shell is ever involved in execution).
type Command []string

// UnmarshalTOML implements toml.Unmarshaler.
func (c *Command) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case string:
		argv, err := shlex.Split(x)
		if err != nil {
			return fmt.Errorf("splitting command %q: %w", x, err)
		}
		*c = argv
		return nil
	case []any:
		argv := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return fmt.Errorf("command element %v is not a string", e)
			}
			argv = append(argv, s)
		}
		*c = argv
		return nil
	default:
		return fmt.Errorf("command must be a string or array of strings, got %T", v)
	}
}

// Duration is a time.Duration that unmarshals from a TOML string like "5m".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DefaultField is used when a provider or evaluator omits "field".
const DefaultField = "data"

// Default returns the built-in configuration: a launcher mode over the
// bundled provider commands plus the calculator evaluator.
func Default() *Config {
	return &Config{
		Mode: []ModeSpec{
			{
				Name:       "launcher",
				Hotkey:     "Super+Space",
				Providers:  []string{"open-apps", "focus-window"},
				Evaluators: []string{"calculator"},
			},
			{
				Name:      "windows",
				Hotkey:    "Super+Tab",
				Providers: []string{"focus-window"},
			},
		},
		Provider: map[string]ProviderSpec{
			"open-apps": {
				Source: Command{"heats-list-apps"},
				Action: Command{"xdg-open"},
				Field:  "data.path",
			},
			"focus-window": {
				Source: Command{"heats-list-windows"},
				Action: Command{"heats-focus-window"},
				Field:  "data.wid",
			},
		},
		Evaluator: map[string]EvaluatorSpec{
			"calculator": {
				Source:      Command{"heats-eval-calc"},
				Input:       InputStdin,
				Action:      Command{"wl-copy"},
				ActionInput: InputStdin,
				Field:       DefaultField,
			},
		},
	}
}

// Load reads the configuration from path. A missing file yields the
// defaults; a malformed file is an error so a typo never silently drops a
// user's providers.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("no config file, using defaults", "path", path)
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	for name, p := range c.Provider {
		if p.Field == "" {
			p.Field = DefaultField
			c.Provider[name] = p
		}
	}
	for name, e := range c.Evaluator {
		if e.Field == "" {
			e.Field = DefaultField
			c.Evaluator[name] = e
		}
	}
}

// ModeByName returns the mode spec with the given name.
func (c *Config) ModeByName(name string) (ModeSpec, bool) {
	for _, m := range c.Mode {
		if m.Name == name {
			return m, true
		}
	}
	return ModeSpec{}, false
}

// MinCacheInterval returns the smallest non-zero cache interval across all
// providers, used as the background refresh tick. ok is false when no
// provider is cached.
func (c *Config) MinCacheInterval() (time.Duration, bool) {
	var min time.Duration
	for _, p := range c.Provider {
		iv := p.CacheInterval.Std()
		if iv <= 0 {
			continue
		}
		if min == 0 || iv < min {
			min = iv
		}
	}
	return min, min > 0
}
