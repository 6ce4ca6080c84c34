// Package config loads runtime configuration for the editor widget host.
//
// Configuration is read from an optional YAML file, overridable through
// environment variables prefixed with EDITOR_RT (EDITOR_RT_ENGINE_URL and so
// on). Every field has a working default; a missing config file is not an
// error.
package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wippyai/editor-runtime/errors"
)

// Config is the full runtime configuration.
type Config struct {
	Engine EngineConfig `mapstructure:"engine"`
	Editor EditorConfig `mapstructure:"editor"`
	Styles StylesConfig `mapstructure:"styles"`
}

// EngineConfig controls how the engine asset is acquired.
type EngineConfig struct {
	// URL locates the engine asset: an http(s) URL or a local file path.
	URL string `mapstructure:"url"`
	// PollIntervalMs is how often to re-check capability registration while
	// the engine boots (default: 50).
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// LoadTimeoutMs bounds the whole fetch-and-boot sequence (default: 10000).
	LoadTimeoutMs int `mapstructure:"load_timeout_ms"`
}

// EditorConfig holds the initial attribute set applied to new widgets.
type EditorConfig struct {
	Mode     string `mapstructure:"mode"`
	Theme    string `mapstructure:"theme"`
	TabSize  int    `mapstructure:"tab_size"`
	Wrap     bool   `mapstructure:"wrap"`
	ReadOnly bool   `mapstructure:"readonly"`
	// MinHeightPx is the minimum container height in pixels; takes precedence
	// over MinHeightLines when both are set.
	MinHeightPx    int `mapstructure:"min_height_px"`
	MinHeightLines int `mapstructure:"min_height_lines"`
}

// StylesConfig controls the style artifact watcher.
type StylesConfig struct {
	// Dir is a directory of .css artifacts to watch; empty disables watching.
	Dir string `mapstructure:"dir"`
}

// PollInterval returns the capability poll interval as a time.Duration.
func (c *EngineConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// LoadTimeout returns the load timeout as a time.Duration.
func (c *EngineConfig) LoadTimeout() time.Duration {
	return time.Duration(c.LoadTimeoutMs) * time.Millisecond
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			PollIntervalMs: 50,
			LoadTimeoutMs:  10000,
		},
		Editor: EditorConfig{
			TabSize: 4,
			Wrap:    true,
		},
	}
}

// Load reads configuration from path. An empty path searches the working
// directory and ~/.config/editor-runtime for editor-runtime.yaml; a missing
// file in either case falls back to defaults. Environment variables prefixed
// EDITOR_RT override file values (engine.url becomes EDITOR_RT_ENGINE_URL).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("EDITOR_RT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config file")
		}
	} else {
		v.SetConfigName("editor-runtime")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "editor-runtime"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !stderrors.As(err, &notFound) {
				return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config file")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "unmarshal config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("engine.url", d.Engine.URL)
	v.SetDefault("engine.poll_interval_ms", d.Engine.PollIntervalMs)
	v.SetDefault("engine.load_timeout_ms", d.Engine.LoadTimeoutMs)
	v.SetDefault("editor.mode", d.Editor.Mode)
	v.SetDefault("editor.theme", d.Editor.Theme)
	v.SetDefault("editor.tab_size", d.Editor.TabSize)
	v.SetDefault("editor.wrap", d.Editor.Wrap)
	v.SetDefault("editor.readonly", d.Editor.ReadOnly)
	v.SetDefault("editor.min_height_px", d.Editor.MinHeightPx)
	v.SetDefault("editor.min_height_lines", d.Editor.MinHeightLines)
	v.SetDefault("styles.dir", d.Styles.Dir)
}

func (c *Config) validate() error {
	if c.Engine.PollIntervalMs <= 0 {
		return errors.InvalidInput(errors.PhaseConfig, "engine.poll_interval_ms must be positive")
	}
	if c.Engine.LoadTimeoutMs <= 0 {
		return errors.InvalidInput(errors.PhaseConfig, "engine.load_timeout_ms must be positive")
	}
	if c.Editor.TabSize <= 0 {
		return errors.InvalidInput(errors.PhaseConfig, "editor.tab_size must be positive")
	}
	if c.Editor.MinHeightPx < 0 || c.Editor.MinHeightLines < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "minimum heights cannot be negative")
	}
	return nil
}
