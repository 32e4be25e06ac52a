package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/twinforge/aaskit/errors"
)

// backupGenerations is how many rotated copies of a config file Save keeps.
const backupGenerations = 3

// rotateBackups shifts existing backups one generation down (.back1 becomes
// .back2 and so on) and copies the current file to .back1. The oldest
// generation falls off. A missing config file is a no-op.
func rotateBackups(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	generation := func(n int) string {
		return fmt.Sprintf("%s.back%d", configPath, n)
	}

	os.Remove(generation(backupGenerations))
	for n := backupGenerations - 1; n >= 1; n-- {
		if _, err := os.Stat(generation(n)); err != nil {
			continue
		}
		if err := os.Rename(generation(n), generation(n+1)); err != nil {
			return errors.Wrapf(err, "rotating backup generation %d", n)
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "reading config for backup")
	}
	if err := os.WriteFile(generation(1), content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "writing config backup")
	}
	return nil
}

// UserConfigPath returns the path to the user config file in ~/.aaskit/aaskit.toml
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".aaskit", "aaskit.toml")
}

// Save writes the configuration to the given path as TOML, rotating backups
// of any existing file first. An empty path means the user config location.
func Save(cfg *Config, configPath string) error {
	if configPath == "" {
		configPath = UserConfigPath()
	}
	if configPath == "" {
		return errors.New("could not determine config path")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), DefaultDirPermissions); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	if err := rotateBackups(configPath); err != nil {
		return errors.Wrap(err, "backing up previous config")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errors.Wrap(err, "encoding config")
	}

	if err := os.WriteFile(configPath, buf.Bytes(), DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "writing config")
	}

	return nil
}

// WriteDefault writes a fresh config populated with defaults to the given
// path. Refuses to clobber an existing file.
func WriteDefault(configPath string) error {
	if configPath == "" {
		configPath = UserConfigPath()
	}
	if configPath == "" {
		return errors.New("could not determine config path")
	}

	if _, err := os.Stat(configPath); err == nil {
		return errors.Newf("config file already exists: %s", configPath)
	}

	cfg, err := defaultConfig()
	if err != nil {
		return err
	}
	return Save(cfg, configPath)
}

// defaultConfig materializes the default values as a Config struct
func defaultConfig() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	return LoadWithViper(v)
}
