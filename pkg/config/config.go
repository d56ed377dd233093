// Package config loads the daemon configuration with viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"example.com/blobreader/pkg/blobreader"
)

// EnvPrefix prefixes environment overrides, e.g. BLOBREADER_LISTEN.
const EnvPrefix = "BLOBREADER"

// Config is the daemon configuration.
type Config struct {
	Listen      string   `mapstructure:"listen"`
	Socket      string   `mapstructure:"socket"`
	LogLevel    string   `mapstructure:"log_level"`
	MetricsPath string   `mapstructure:"metrics_path"`
	EnvFiles    []string `mapstructure:"env_files"`
	// Directives extends the built-in processing directive keys.
	Directives []string `mapstructure:"directives"`
	// Mounts holds one argument map per reader instance.
	Mounts []map[string]string `mapstructure:"mounts"`
}

// New returns a viper instance with defaults and environment overrides set.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("listen", "127.0.0.1:8484")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_path", "/metrics")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (any format viper understands) into v and decodes it.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return Decode(v)
}

// Decode validates and decodes the configuration held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that at least one mount is configured and that no two
// mounts claim the same prefix.
func (c *Config) Validate() error {
	if len(c.Mounts) == 0 {
		return errors.New("no mounts configured")
	}
	seen := make(map[string]struct{}, len(c.Mounts))
	for _, m := range c.Mounts {
		bc, err := blobreader.ConfigFromArgs(m)
		if err != nil {
			return err
		}
		prefix := strings.ToLower(blobreader.NormalizePrefix(bc.Prefix))
		if _, dup := seen[prefix]; dup {
			return fmt.Errorf("prefix %s mounted twice", prefix)
		}
		seen[prefix] = struct{}{}
	}
	return nil
}

// ReaderConfigs converts the mount argument maps into reader configurations.
func (c *Config) ReaderConfigs() ([]blobreader.Config, error) {
	out := make([]blobreader.Config, 0, len(c.Mounts))
	for _, m := range c.Mounts {
		bc, err := blobreader.ConfigFromArgs(m)
		if err != nil {
			return nil, err
		}
		out = append(out, bc)
	}
	return out, nil
}
