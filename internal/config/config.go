// Package config loads provisioner settings from defaults, an optional
// settings file, PROVISIONER_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/felixgeelhaar/provisioner/internal/ports"
	"github.com/felixgeelhaar/provisioner/internal/validation"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. PROVISIONER_PIP_COMMAND.
	EnvPrefix = "PROVISIONER"
	// FileName is the settings file looked up in the working directory,
	// with any extension viper understands.
	FileName = "provisioner"
	// DefaultManifest is the manifest path used when none is given.
	DefaultManifest = "manifest.yaml"
	// DefaultTimeout bounds each install call.
	DefaultTimeout = 10 * time.Minute
)

// Binary package managers.
const (
	ManagerApt  = "apt"
	ManagerBrew = "brew"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the resolved tool configuration.
type Config struct {
	Manifest string        `mapstructure:"manifest"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Pip      PipConfig     `mapstructure:"pip"`
	Binary   BinaryConfig  `mapstructure:"binary"`
	Log      LogConfig     `mapstructure:"log"`
}

// PipConfig configures the library installer.
type PipConfig struct {
	Command string `mapstructure:"command"`
	User    bool   `mapstructure:"user"`
}

// BinaryConfig configures the binary installer.
type BinaryConfig struct {
	Manager string `mapstructure:"manager"`
	Sudo    bool   `mapstructure:"sudo"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	Color bool   `mapstructure:"color"`
}

// LoadOptions controls where settings come from.
type LoadOptions struct {
	// ConfigFile is an explicit settings file; it must exist.
	ConfigFile string
	// SearchDir is searched for FileName when ConfigFile is empty.
	SearchDir string
	// Flags are bound over file and environment values.
	Flags *pflag.FlagSet
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"manifest":       "manifest",
	"timeout":        "timeout",
	"pip":            "pip.command",
	"user":           "pip.user",
	"binary-manager": "binary.manager",
	"sudo":           "binary.sudo",
	"log-level":      "log.level",
	"log-json":       "log.json",
	"color":          "log.color",
}

// Default returns the built-in configuration.
func Default() Config {
	manager := ManagerApt
	if runtime.GOOS == "darwin" {
		manager = ManagerBrew
	}
	return Config{
		Manifest: DefaultManifest,
		Timeout:  DefaultTimeout,
		Pip:      PipConfig{Command: "pip"},
		Binary:   BinaryConfig{Manager: manager},
		Log:      LogConfig{Level: "info", Color: true},
	}
}

// Load resolves the configuration and validates it. It also returns the
// settings file that was read, or "" when none was.
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("manifest", defaults.Manifest)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("pip.command", defaults.Pip.Command)
	v.SetDefault("pip.user", defaults.Pip.User)
	v.SetDefault("binary.manager", defaults.Binary.Manager)
	v.SetDefault("binary.sudo", defaults.Binary.Sudo)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.json", defaults.Log.JSON)
	v.SetDefault("log.color", defaults.Log.Color)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	resolved, err := readSettingsFile(v, opts)
	if err != nil {
		return nil, "", err
	}

	if opts.Flags != nil {
		for flag, key := range flagKeys {
			if f := opts.Flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, "", fmt.Errorf("bind flag --%s: %w", flag, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolved, nil
}

func readSettingsFile(v *viper.Viper, opts LoadOptions) (string, error) {
	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return "", fmt.Errorf("config file not found: %s: %w", opts.ConfigFile, err)
		}
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
		return opts.ConfigFile, nil
	}

	dir := opts.SearchDir
	if dir == "" {
		dir = "."
	}
	v.SetConfigName(FileName)
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Validate checks every setting and reports all problems at once.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Manifest) == "" {
		errs = append(errs, fmt.Errorf("%w: manifest path is empty", ErrInvalidConfig))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout))
	}
	if err := validation.ValidateCommand(c.Pip.Command); err != nil {
		errs = append(errs, fmt.Errorf("%w: pip.command: %w", ErrInvalidConfig, err))
	}
	switch c.Binary.Manager {
	case ManagerApt, ManagerBrew:
	default:
		errs = append(errs, fmt.Errorf("%w: binary.manager must be %q or %q, got %q",
			ErrInvalidConfig, ManagerApt, ManagerBrew, c.Binary.Manager))
	}
	if _, err := ports.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err))
	}

	return errors.Join(errs...)
}
