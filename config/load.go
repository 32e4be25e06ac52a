package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/twinforge/aaskit/errors"
)

// The effective configuration is resolved once per process and cached.
var (
	globalConfig  *Config
	viperInstance *viper.Viper
)

// Load resolves the effective configuration from defaults, config files,
// and environment variables, caching the result.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}
	cfg, err := LoadWithViper(initViper())
	if err != nil {
		return nil, err
	}
	globalConfig = cfg
	return globalConfig, nil
}

// LoadWithViper unmarshals a Config from the given viper instance. Callers
// that need isolation (tests, explicit files) build their own instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	return &cfg, nil
}

// LoadFromFile reads exactly one config file over the defaults, ignoring
// user and system configuration.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", configPath)
	}
	return LoadWithViper(v)
}

// GetViper returns the shared viper instance for key-level access.
func GetViper() *viper.Viper {
	return initViper()
}

// Get returns a configuration value by dotted key.
func Get(key string) interface{} {
	return initViper().Get(key)
}

// initViper builds the shared instance: defaults first, then config files
// lowest to highest precedence, with AASKIT_* environment variables over
// everything.
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()
	v.SetEnvPrefix("AASKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindSensitiveEnvVars(v)
	SetDefaults(v)
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// projectConfigNames are the file names findProjectConfig accepts, in
// preference order.
var projectConfigNames = [...]string{"aaskit.toml", "config.toml"}

// findProjectConfig climbs from the working directory toward the filesystem
// root and returns the first project config file it sees, or "".
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		for _, name := range projectConfigNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeConfigFiles layers config files into v, lowest precedence first:
// system, then user, then the project file discovered by walking up from
// the working directory. MergeInConfig keeps the whole file layer below
// environment variables in viper's precedence order.
func mergeConfigFiles(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	userDir := filepath.Join(home, ".aaskit")
	os.MkdirAll(userDir, DefaultDirPermissions)

	paths := []string{
		"/etc/aaskit/config.toml",
		filepath.Join(userDir, "aaskit.toml"),
		filepath.Join(userDir, "config.toml"),
	}
	if project := findProjectConfig(); project != "" {
		paths = append(paths, project)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		// A layer that fails to parse is skipped; later layers still apply.
		_ = v.MergeInConfig()
	}
}
