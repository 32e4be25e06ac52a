package config

import "github.com/twinforge/aaskit/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Store path is optional - empty defaults to "aaskit.db" per defaults.go

	// Timeouts: 0 = use default, negative = invalid
	if c.HTTP.TimeoutSeconds < 0 {
		return errors.Newf("http.timeout_seconds must be >= 0, got %d", c.HTTP.TimeoutSeconds)
	}
	if c.CouchDB.TimeoutSeconds < 0 {
		return errors.Newf("couchdb.timeout_seconds must be >= 0, got %d", c.CouchDB.TimeoutSeconds)
	}
	if c.MQTT.ConnectTimeoutSeconds < 0 {
		return errors.Newf("mqtt.connect_timeout_seconds must be >= 0, got %d", c.MQTT.ConnectTimeoutSeconds)
	}
	if c.MQTT.ReadTimeoutSeconds < 0 {
		return errors.Newf("mqtt.read_timeout_seconds must be >= 0, got %d", c.MQTT.ReadTimeoutSeconds)
	}
	if c.Modbus.TimeoutSeconds < 0 {
		return errors.Newf("modbus.timeout_seconds must be >= 0, got %d", c.Modbus.TimeoutSeconds)
	}

	// MQTT QoS levels are 0, 1, 2
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return errors.Newf("mqtt.qos must be 0, 1, or 2, got %d", c.MQTT.QoS)
	}

	// Modbus unit identifiers are a single byte
	if c.Modbus.SlaveID < 0 || c.Modbus.SlaveID > 255 {
		return errors.Newf("modbus.slave_id must be in [0, 255], got %d", c.Modbus.SlaveID)
	}

	// Rate limiting: 0 = unlimited, negative = invalid
	if c.Sync.RatePerSecond < 0 {
		return errors.Newf("sync.rate_per_second must be >= 0, got %f", c.Sync.RatePerSecond)
	}
	if c.Sync.Burst < 0 {
		return errors.Newf("sync.burst must be >= 0, got %d", c.Sync.Burst)
	}

	// Theme: empty = default
	if c.Logging.Theme != "" && c.Logging.Theme != "everforest" && c.Logging.Theme != "gruvbox" {
		return errors.Newf("logging.theme must be everforest or gruvbox, got %q", c.Logging.Theme)
	}

	return nil
}
