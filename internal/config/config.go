// Package config loads sherlock settings from built-in defaults, an optional
// YAML file and SHERLOCK_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "SHERLOCK_"

// DefaultFile is the config file looked up in the working directory when no
// path is given. It is not resolved against Root.
const DefaultFile = "sherlock.yaml"

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" yaml:"format" validate:"oneof=text json"`
}

// AuditConfig controls the governance decision log.
type AuditConfig struct {
	Path string `koanf:"path" yaml:"path"`
}

// MetricsConfig controls the Prometheus listener of long-running commands.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr" validate:"omitempty,hostname_port"`
}

// WatchConfig controls the record watcher.
type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce" yaml:"debounce" validate:"gte=0"`
}

// Config is the complete sherlock configuration.
type Config struct {
	Root            string        `koanf:"root" yaml:"root" validate:"required"`
	StrictPhases    bool          `koanf:"strict_phases" yaml:"strict_phases"`
	PlatformContact string        `koanf:"platform_contact" yaml:"platform_contact"`
	Log             LogConfig     `koanf:"log" yaml:"log"`
	Audit           AuditConfig   `koanf:"audit" yaml:"audit"`
	Metrics         MetricsConfig `koanf:"metrics" yaml:"metrics"`
	Watch           WatchConfig   `koanf:"watch" yaml:"watch"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Root:            ".",
		PlatformContact: "platform-team@company.com",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
	}
}

// envKeys maps the lowercased variable name without prefix to its config
// key. Variables not listed here are ignored.
var envKeys = map[string]string{
	"root":             "root",
	"strict_phases":    "strict_phases",
	"platform_contact": "platform_contact",
	"log_level":        "log.level",
	"log_format":       "log.format",
	"audit_path":       "audit.path",
	"metrics_addr":     "metrics.addr",
	"watch_debounce":   "watch.debounce",
}

// Load builds the configuration. path may be empty, in which case
// sherlock.yaml in the working directory is used if it exists. An explicit
// path that does not exist is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	} else if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return envKeys[strings.ToLower(strings.TrimPrefix(s, EnvPrefix))]
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// AuditPath resolves the audit log path against the workspace root. An
// empty path disables auditing.
func (c *Config) AuditPath() string {
	if c.Audit.Path == "" || filepath.IsAbs(c.Audit.Path) {
		return c.Audit.Path
	}
	return filepath.Join(c.Root, c.Audit.Path)
}
