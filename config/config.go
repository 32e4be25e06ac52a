package config

// Config represents the core AASKit configuration
type Config struct {
	Store   StoreConfig   `mapstructure:"store" toml:"store" json:"store"`
	HTTP    HTTPConfig    `mapstructure:"http" toml:"http" json:"http"`
	CouchDB CouchDBConfig `mapstructure:"couchdb" toml:"couchdb" json:"couchdb"`
	MQTT    MQTTConfig    `mapstructure:"mqtt" toml:"mqtt" json:"mqtt"`
	Modbus  ModbusConfig  `mapstructure:"modbus" toml:"modbus" json:"modbus"`
	File    FileConfig    `mapstructure:"file" toml:"file" json:"file"`
	Sync    SyncConfig    `mapstructure:"sync" toml:"sync" json:"sync"`
	Logging LoggingConfig `mapstructure:"logging" toml:"logging" json:"logging"`
}

// StoreConfig configures the persistent object store
type StoreConfig struct {
	Path string `mapstructure:"path" toml:"path" json:"path"` // SQLite database path (default: aaskit.db)
}

// HTTPConfig configures the HTTP backend and shared HTTP client
type HTTPConfig struct {
	TimeoutSeconds    int    `mapstructure:"timeout_seconds" toml:"timeout_seconds" json:"timeout_seconds"`             // Per-request timeout (default: 30)
	AllowPrivateHosts bool   `mapstructure:"allow_private_hosts" toml:"allow_private_hosts" json:"allow_private_hosts"` // Field devices usually live on LANs (default: true)
	Username          string `mapstructure:"username" toml:"username" json:"username"`                                  // Fallback for basic_sc when the source carries none
	Password          string `mapstructure:"password" toml:"password" json:"password"`
	Token             string `mapstructure:"token" toml:"token" json:"token"` // Fallback for bearer_sc
}

// CouchDBConfig configures the CouchDB object backend
type CouchDBConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds" json:"timeout_seconds"` // Per-request timeout (default: 30)
	Username       string `mapstructure:"username" toml:"username" json:"username"`
	Password       string `mapstructure:"password" toml:"password" json:"password"`
}

// MQTTConfig configures the MQTT value backend
type MQTTConfig struct {
	ConnectTimeoutSeconds int `mapstructure:"connect_timeout_seconds" toml:"connect_timeout_seconds" json:"connect_timeout_seconds"` // Broker connect timeout (default: 10)
	ReadTimeoutSeconds    int `mapstructure:"read_timeout_seconds" toml:"read_timeout_seconds" json:"read_timeout_seconds"`          // One-shot update read deadline (default: 5)
	QoS                   int `mapstructure:"qos" toml:"qos" json:"qos"`                                                             // Publish/subscribe QoS: 0, 1, or 2 (default: 0)
}

// ModbusConfig configures the Modbus value backend
type ModbusConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" toml:"timeout_seconds" json:"timeout_seconds"` // Per-transaction timeout (default: 10)
	SlaveID        int `mapstructure:"slave_id" toml:"slave_id" json:"slave_id"`                       // Unit identifier (default: 1)
}

// FileConfig configures the file-document backend
type FileConfig struct {
	Root string `mapstructure:"root" toml:"root" json:"root"` // Base directory for document trees (default: ./aas-data)
}

// SyncConfig configures batch update/commit behavior
type SyncConfig struct {
	Protocol      string  `mapstructure:"protocol" toml:"protocol" json:"protocol"`                     // Default protocol for aaskit sync (empty = first-available)
	Overwrite     bool    `mapstructure:"overwrite" toml:"overwrite" json:"overwrite"`                  // Overwrite existing identifiers on store sync
	RatePerSecond float64 `mapstructure:"rate_per_second" toml:"rate_per_second" json:"rate_per_second"` // Backend calls per second for batch ops (0 = unlimited)
	Burst         int     `mapstructure:"burst" toml:"burst" json:"burst"`                               // Rate limiter burst (default: 1)
}

// LoggingConfig configures log output
type LoggingConfig struct {
	JSON  bool   `mapstructure:"json" toml:"json" json:"json"`     // JSON output instead of console (default: false)
	Theme string `mapstructure:"theme" toml:"theme" json:"theme"` // Color theme: gruvbox, everforest
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
