package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Store defaults
	v.SetDefault("store.path", "aaskit.db")

	// HTTP backend defaults
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.allow_private_hosts", true) // AAS endpoints routinely sit on 192.168.x.x

	// CouchDB backend defaults
	v.SetDefault("couchdb.timeout_seconds", 30)

	// MQTT backend defaults
	v.SetDefault("mqtt.connect_timeout_seconds", 10)
	v.SetDefault("mqtt.read_timeout_seconds", 5)
	v.SetDefault("mqtt.qos", 0)

	// Modbus backend defaults
	v.SetDefault("modbus.timeout_seconds", 10)
	v.SetDefault("modbus.slave_id", 1)

	// File backend defaults
	v.SetDefault("file.root", "./aas-data")

	// Batch sync defaults
	v.SetDefault("sync.protocol", "")
	v.SetDefault("sync.overwrite", false)
	v.SetDefault("sync.rate_per_second", 0.0) // unlimited
	v.SetDefault("sync.burst", 1)

	// Logging defaults
	v.SetDefault("logging.json", false)
	v.SetDefault("logging.theme", "everforest")
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	// Credentials stay out of TOML files on shared machines
	v.BindEnv("http.username", "AASKIT_HTTP_USERNAME")
	v.BindEnv("http.password", "AASKIT_HTTP_PASSWORD")
	v.BindEnv("http.token", "AASKIT_HTTP_TOKEN")
	v.BindEnv("couchdb.username", "AASKIT_COUCHDB_USERNAME")
	v.BindEnv("couchdb.password", "AASKIT_COUCHDB_PASSWORD")

	// Store path
	v.BindEnv("store.path", "AASKIT_STORE_PATH")
}

// GetStorePath returns the configured store path
func (c *Config) GetStorePath() string {
	if c.Store.Path == "" {
		return "aaskit.db" // Fallback default
	}
	return c.Store.Path
}

// GetHTTPTimeout returns the HTTP backend timeout as a duration
func (c *Config) GetHTTPTimeout() time.Duration {
	if c.HTTP.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// GetCouchDBTimeout returns the CouchDB backend timeout as a duration
func (c *Config) GetCouchDBTimeout() time.Duration {
	if c.CouchDB.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.CouchDB.TimeoutSeconds) * time.Second
}

// GetMQTTConnectTimeout returns the MQTT connect timeout as a duration
func (c *Config) GetMQTTConnectTimeout() time.Duration {
	if c.MQTT.ConnectTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.MQTT.ConnectTimeoutSeconds) * time.Second
}

// GetMQTTReadTimeout returns the one-shot read deadline as a duration
func (c *Config) GetMQTTReadTimeout() time.Duration {
	if c.MQTT.ReadTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.MQTT.ReadTimeoutSeconds) * time.Second
}

// GetModbusTimeout returns the Modbus transaction timeout as a duration
func (c *Config) GetModbusTimeout() time.Duration {
	if c.Modbus.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Modbus.TimeoutSeconds) * time.Second
}

// GetFileRoot returns the file backend base directory
func (c *Config) GetFileRoot() string {
	if c.File.Root == "" {
		return "./aas-data"
	}
	return c.File.Root
}

// GetLogTheme returns the log theme (default: everforest)
func (c *Config) GetLogTheme() string {
	if c.Logging.Theme == "" {
		return "everforest"
	}
	return c.Logging.Theme
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Store: %s, File: {Root: %s}, Sync: {Protocol: %q, Rate: %g/s}}",
		c.Store.Path, c.File.Root, c.Sync.Protocol, c.Sync.RatePerSecond)
}
