// Package config loads the gateway's YAML configuration document, the
// way nerrad567-gray-logic-stack's config package loads its own
// graylogic.yaml: typed, yaml-tagged sub-structs per concern, sensible
// defaults applied before the file is parsed, and a handful of
// environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document for insteon-mqtt.
type Config struct {
	PLM      PLMConfig      `yaml:"plm"`
	Protocol ProtocolConfig `yaml:"protocol"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Database DatabaseConfig `yaml:"database"`
	WebCLI   WebCLIConfig   `yaml:"web_cli"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PLMConfig selects and configures the serial or network connection
// to the PowerLinc Modem. Exactly one of Serial or Network should be
// populated; Serial wins if both are set.
type PLMConfig struct {
	Serial  SerialConfig  `yaml:"serial"`
	Network NetworkConfig `yaml:"network"`
}

// SerialConfig names a local serial port, per the corpus's
// github.com/tarm/serial usage.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// NetworkConfig names a host:port for PLMs exposed over TCP (e.g. a
// serial-to-IP bridge).
type NetworkConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ProtocolConfig tunes the ProtocolEngine's timing (spec.md 4.3).
type ProtocolConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	Retries         int           `yaml:"retries"`
	SuppressWindow  time.Duration `yaml:"suppress_window"`
}

// MQTTConfig mirrors nerrad567-gray-logic-stack's MQTTConfig shape:
// broker connection, credentials, QoS and reconnect backoff.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Topics    MQTTTopicsConfig    `yaml:"topics"`
}

// MQTTBrokerConfig names the broker to dial.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig carries broker credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig controls paho's auto-reconnect backoff.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MQTTTopicsConfig names the topic prefix state and command messages
// are published/subscribed under (spec.md explicitly scopes exact
// topic templating out of the core; only the prefix is ambient
// config).
type MQTTTopicsConfig struct {
	Prefix string `yaml:"prefix"`
}

// DatabaseConfig names where per-device all-link database YAML files
// are stored (spec.md 6.1).
type DatabaseConfig struct {
	Dir string `yaml:"dir"`
}

// WebCLIConfig configures the administrative command endpoint
// (spec.md 4.11).
type WebCLIConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Bind         string   `yaml:"bind"`
	AllowedHosts []string `yaml:"allowed_hosts"`
}

// LoggingConfig controls glog's verbosity the way the teacher's
// binaries pass -v on the command line; Level is translated into a
// glog -v argument by cmd/insteon-mqtt.
type LoggingConfig struct {
	Level int `yaml:"level"`
}

// Load reads path, applying defaults first and environment overrides
// last, the same three-stage precedence as the corpus's config.Load.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		PLM: PLMConfig{
			Serial: SerialConfig{Port: "/dev/ttyUSB0", Baud: 19200},
		},
		Protocol: ProtocolConfig{
			Timeout:        5 * time.Second,
			Retries:        3,
			SuppressWindow: 500 * time.Millisecond,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "insteon-mqtt"},
			QoS:    1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			Topics: MQTTTopicsConfig{Prefix: "insteon"},
		},
		Database: DatabaseConfig{Dir: "./data/devices"},
		WebCLI: WebCLIConfig{
			Enabled:      true,
			Bind:         "127.0.0.1:4444",
			AllowedHosts: []string{"172.30.32.2"},
		},
		Logging: LoggingConfig{Level: 0},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INSTEON_MQTT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("INSTEON_MQTT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("INSTEON_MQTT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("INSTEON_MQTT_PLM_SERIAL_PORT"); v != "" {
		cfg.PLM.Serial.Port = v
	}
}

// Validate rejects configurations the rest of the process can't act
// on sensibly.
func (c *Config) Validate() error {
	var errs []string

	if c.PLM.Serial.Port == "" && c.PLM.Network.Host == "" {
		errs = append(errs, "plm: either serial.port or network.host is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.Database.Dir == "" {
		errs = append(errs, "database.dir is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}
