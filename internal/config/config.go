// Package config loads the ambient configuration shared by both
// binaries (deepfind, deepgrep): `--look-into` defaults, per-format
// passwords, sort comparator choice, and fd/cache sizing, layered from
// a `~/.deepwalkrc` file, environment variables, and flags via viper.
package config

import (
	"fmt"
	"os"

	validator "github.com/go-playground/validator/v10"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the merged configuration consulted before traversal starts.
// A bad value here is a configuration error: rejected before traversal,
// exit 1.
type Config struct {
	LookInto   []string          `mapstructure:"look_into"`
	Passwords  map[string]string `mapstructure:"passwords" validate:"-"`
	Comparator string            `mapstructure:"comparator" validate:"omitempty,oneof=locale os"`
	CacheSize  int               `mapstructure:"cache_size" validate:"gte=1"`
	CacheTTL   int               `mapstructure:"cache_ttl_seconds" validate:"gte=1"`
	FDBudget   int               `mapstructure:"fd_budget" validate:"gte=1"`
	Escape     map[string]string `mapstructure:"escape"`
}

// Load reads `~/.deepwalkrc` (YAML/TOML/JSON, viper auto-detects),
// environment variables prefixed DEEPWALK_, and applies defaults for
// anything unset, then validates the result.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("comparator", "locale")
	v.SetDefault("cache_size", 64)         //nolint:mnd
	v.SetDefault("cache_ttl_seconds", 300) //nolint:mnd
	v.SetDefault("fd_budget", 256)         //nolint:mnd

	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			// A missing config file is not a configuration error,
			// it just means "use defaults".
			explicitPath = ""
		}
	}

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		home, err := homedir.Dir()
		if err == nil {
			v.AddConfigPath(home)
		}

		v.SetConfigName(".deepwalkrc")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("DEEPWALK")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !asConfigNotFound(err, &notFound) {
			return nil, fmt.Errorf("config: read %q: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

var validate = validator.New()

func asConfigNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	cfnf, ok := err.(viper.ConfigFileNotFoundError) //nolint:errorlint
	if !ok {
		return false
	}

	*target = cfnf

	return true
}

// EscapeTable resolves the OS-specific filename-sanitisation codepoint
// map. The precise codepoint mapping is left as a configuration value;
// the default maps U+F03A to ':'.
func (c *Config) EscapeTable() map[rune]rune {
	if len(c.Escape) == 0 {
		return map[rune]rune{0xF03A: ':'}
	}

	out := make(map[rune]rune, len(c.Escape))

	for from, to := range c.Escape {
		r := []rune(from)
		t := []rune(to)

		if len(r) == 1 && len(t) == 1 {
			out[r[0]] = t[0]
		}
	}

	return out
}
