package repo

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/odvcencio/it/pkg/errkind"
)

const (
	defaultBranch      = "main"
	defaultLockTimeout = 2 * time.Second

	// authorEnv overrides user.name when set.
	authorEnv = "IT_AUTHOR_NAME"
)

var timezonePattern = regexp.MustCompile(`^[+-]\d{4}$`)

// Config stores repository-local settings in .it/config.toml.
type Config struct {
	User UserConfig `toml:"user"`
	Core CoreConfig `toml:"core"`
}

type UserConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type CoreConfig struct {
	DefaultBranch string   `toml:"default_branch"`
	Timezone      string   `toml:"timezone"` // "+hhmm"/"-hhmm"; empty means local
	LockTimeout   Duration `toml:"lock_timeout"`
}

// Duration is a time.Duration stored as a string such as "2s".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns the settings used when config.toml is missing or
// leaves a field unset.
func DefaultConfig() *Config {
	return &Config{
		Core: CoreConfig{
			DefaultBranch: defaultBranch,
			LockTimeout:   Duration(defaultLockTimeout),
		},
	}
}

func (r *Repo) configPath() string {
	return filepath.Join(r.Dir, "config.toml")
}

// ReadConfig reads .it/config.toml. Missing config returns defaults.
func (r *Repo) ReadConfig() (*Config, error) {
	data, err := os.ReadFile(r.configPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, errkind.WrapIO("read config", err)
	}

	cfg := DefaultConfig()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, errkind.Errorf(errkind.StorageCorruption, "read config: %v", err)
	}
	if cfg.Core.DefaultBranch == "" {
		cfg.Core.DefaultBranch = defaultBranch
	}
	if cfg.Core.LockTimeout <= 0 {
		cfg.Core.LockTimeout = Duration(defaultLockTimeout)
	}
	return cfg, nil
}

// WriteConfig atomically writes .it/config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := writeFileAtomic(r.configPath(), buf.Bytes()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// configKeys lists the dotted keys accepted by ConfigValue and SetConfigValue.
var configKeys = []string{
	"user.name",
	"user.email",
	"core.default_branch",
	"core.timezone",
	"core.lock_timeout",
}

// ConfigValue returns the value of a dotted config key.
func (r *Repo) ConfigValue(key string) (string, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return "", err
	}
	switch strings.TrimSpace(key) {
	case "user.name":
		return cfg.User.Name, nil
	case "user.email":
		return cfg.User.Email, nil
	case "core.default_branch":
		return cfg.Core.DefaultBranch, nil
	case "core.timezone":
		return cfg.Core.Timezone, nil
	case "core.lock_timeout":
		return time.Duration(cfg.Core.LockTimeout).String(), nil
	}
	return "", unknownConfigKey(key)
}

// SetConfigValue validates and stores a dotted config key.
func (r *Repo) SetConfigValue(key, value string) error {
	return r.withLock("config", func() error {
		cfg, err := r.ReadConfig()
		if err != nil {
			return err
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "user.name":
			cfg.User.Name = value
		case "user.email":
			cfg.User.Email = value
		case "core.default_branch":
			if err := validateBranchName(value); err != nil {
				return err
			}
			cfg.Core.DefaultBranch = value
		case "core.timezone":
			if value != "" && !timezonePattern.MatchString(value) {
				return errkind.Errorf(errkind.Usage, "core.timezone %q: want +hhmm or -hhmm", value)
			}
			cfg.Core.Timezone = value
		case "core.lock_timeout":
			d, err := time.ParseDuration(value)
			if err != nil || d <= 0 {
				return errkind.Errorf(errkind.Usage, "core.lock_timeout %q: want a positive duration such as 2s", value)
			}
			cfg.Core.LockTimeout = Duration(d)
		default:
			return unknownConfigKey(key)
		}
		return r.WriteConfig(cfg)
	})
}

func unknownConfigKey(key string) error {
	return errkind.Errorf(errkind.Usage, "unknown config key %q (known: %s)", key, strings.Join(configKeys, ", "))
}

// author returns the identity recorded in new commits.
func (cfg *Config) author() string {
	name := strings.TrimSpace(os.Getenv(authorEnv))
	if name == "" {
		name = cfg.User.Name
	}
	if name == "" {
		name = os.Getenv("USER")
	}
	if name == "" {
		name = "unknown"
	}
	if cfg.User.Email != "" {
		return fmt.Sprintf("%s <%s>", name, cfg.User.Email)
	}
	return name
}

// timezone returns the configured offset, or the local one at t.
func (cfg *Config) timezone(t time.Time) string {
	if cfg.Core.Timezone != "" {
		return cfg.Core.Timezone
	}
	return t.Format("-0700")
}
