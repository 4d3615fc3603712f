package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultProgram is the lircrc program tag and CEC OSD name when none is set.
const DefaultProgram = "r2upnpav"

// DefaultRendererPattern matches Sonos zone players.
const DefaultRendererPattern = `(?i).*\s-\ssonos\s.*`

// Disabled is the flag and config value that turns an input off.
const Disabled = "-"

// Config is the root configuration structure for r2upnpav.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Renderer  RendererConfig  `yaml:"renderer"`
	UPnP      UPnPConfig      `yaml:"upnp"`
	Server    ServerConfig    `yaml:"server"`
	LIRC      LIRCConfig      `yaml:"lirc"`
	CEC       CECConfig       `yaml:"cec"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RendererConfig selects and drives renderers.
type RendererConfig struct {
	// Pattern is matched against the whole friendly name.
	Pattern string `yaml:"pattern"`

	// ActionTimeout bounds each SOAP action, in seconds.
	ActionTimeout int `yaml:"action_timeout"`
}

// UPnPConfig contains discovery and eventing settings.
type UPnPConfig struct {
	// Interface restricts discovery to one network interface. Empty means all.
	Interface string `yaml:"interface"`

	Discovery DiscoveryConfig `yaml:"discovery"`

	// SubscriptionTimeout is the GENA timeout requested, in seconds.
	SubscriptionTimeout int `yaml:"subscription_timeout"`
}

// DiscoveryConfig contains SSDP search settings.
type DiscoveryConfig struct {
	// Interval between searches, in seconds.
	Interval int `yaml:"interval"`

	// SearchWait is the MX value of each search, in seconds.
	SearchWait int `yaml:"search_wait"`

	// MissedScans is how many consecutive searches a device may be absent
	// from before it is reported unavailable.
	MissedScans int `yaml:"missed_scans"`
}

// ServerConfig contains the HTTP server settings. The server hosts GENA
// callbacks and the status API.
type ServerConfig struct {
	Host     string              `yaml:"host"`
	Port     int                 `yaml:"port"`
	Timeouts ServerTimeoutConfig `yaml:"timeouts"`
}

// ServerTimeoutConfig contains HTTP timeout settings in seconds.
type ServerTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LIRCConfig contains IR input settings.
type LIRCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Socket  string `yaml:"socket"`
	Lircrc  string `yaml:"lircrc"`
	Program string `yaml:"program"`
}

// CECConfig contains HDMI-CEC input settings.
type CECConfig struct {
	Enabled bool `yaml:"enabled"`

	// Port is the adapter port. Empty picks the first adapter found.
	Port string `yaml:"port"`

	// Name is the OSD name announced on the bus.
	Name string `yaml:"name"`

	// TimeoutMS bounds opening the adapter.
	TimeoutMS int `yaml:"timeout_ms"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// An empty path or a file that does not exist leaves the defaults in place.
// Environment variables follow the pattern: R2UPNPAV_SECTION_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultLircrc returns ~/.lircrc, or ".lircrc" when the home directory is
// unknown.
func DefaultLircrc() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".lircrc")
	}
	return ".lircrc"
}

// Default returns a Config with sensible defaults. The CEC input is only
// on by default in builds with libcec support.
func Default() *Config {
	return &Config{
		Renderer: RendererConfig{
			Pattern:       DefaultRendererPattern,
			ActionTimeout: 5,
		},
		UPnP: UPnPConfig{
			Discovery: DiscoveryConfig{
				Interval:    30,
				SearchWait:  5,
				MissedScans: 3,
			},
			SubscriptionTimeout: 1800,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 0,
			Timeouts: ServerTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		LIRC: LIRCConfig{
			Enabled: true,
			Socket:  "/var/run/lirc/lircd",
			Lircrc:  DefaultLircrc(),
			Program: DefaultProgram,
		},
		CEC: CECConfig{
			Enabled:   defaultCECEnabled,
			Name:      DefaultProgram,
			TimeoutMS: 10000,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: DefaultProgram,
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: DefaultProgram,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        DefaultProgram,
			BatchSize:     100,
			FlushInterval: 10,
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: R2UPNPAV_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Renderer
	if v := os.Getenv("R2UPNPAV_RENDERER_PATTERN"); v != "" {
		cfg.Renderer.Pattern = v
	}

	// UPnP
	if v := os.Getenv("R2UPNPAV_UPNP_INTERFACE"); v != "" {
		cfg.UPnP.Interface = v
	}

	// Server
	if v := os.Getenv("R2UPNPAV_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("R2UPNPAV_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// Inputs
	if v := os.Getenv("R2UPNPAV_LIRC_SOCKET"); v != "" {
		cfg.LIRC.Socket = v
	}
	if v := os.Getenv("R2UPNPAV_CEC_PORT"); v != "" {
		cfg.CEC.Port = v
	}

	// MQTT
	if v := os.Getenv("R2UPNPAV_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("R2UPNPAV_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("R2UPNPAV_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("R2UPNPAV_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("R2UPNPAV_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Every problem is reported, not just the first.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Renderer
	if _, err := regexp.Compile(c.Renderer.Pattern); err != nil {
		errs = append(errs, fmt.Sprintf("renderer.pattern is invalid: %v", err))
	}
	if c.Renderer.ActionTimeout < 1 {
		errs = append(errs, "renderer.action_timeout must be at least 1")
	}

	// UPnP
	d := c.UPnP.Discovery
	if d.Interval < 1 {
		errs = append(errs, "upnp.discovery.interval must be at least 1")
	}
	if d.SearchWait < 1 || d.SearchWait > 120 {
		errs = append(errs, "upnp.discovery.search_wait must be between 1 and 120")
	} else if d.Interval >= 1 && d.SearchWait >= d.Interval {
		errs = append(errs, "upnp.discovery.search_wait must be shorter than upnp.discovery.interval")
	}
	if d.MissedScans < 1 {
		errs = append(errs, "upnp.discovery.missed_scans must be at least 1")
	}
	if c.UPnP.SubscriptionTimeout < 60 {
		errs = append(errs, "upnp.subscription_timeout must be at least 60")
	}

	// Server
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}

	// Inputs
	if c.LIRC.Enabled {
		if c.LIRC.Lircrc == "" {
			errs = append(errs, "lirc.lircrc is required when lirc is enabled")
		}
		if c.LIRC.Program == "" {
			errs = append(errs, "lirc.program is required when lirc is enabled")
		}
	}
	if c.CEC.Enabled && c.CEC.TimeoutMS < 1 {
		errs = append(errs, "cec.timeout_ms must be at least 1")
	}

	// MQTT
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
			errs = append(errs, "mqtt.topic_prefix must be non-empty and free of wildcards")
		}
	}

	// InfluxDB
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ApplyInputFlag interprets a command-line input setting: Disabled turns the
// input off, an empty string enables it with def, and anything else enables
// it with that value.
func ApplyInputFlag(enabled *bool, value *string, flag, def string) {
	if flag == Disabled {
		*enabled = false
		return
	}
	*enabled = true
	if flag == "" {
		*value = def
		return
	}
	*value = flag
}

// GetActionTimeout returns the SOAP action timeout as a Duration.
func (c *Config) GetActionTimeout() time.Duration {
	return time.Duration(c.Renderer.ActionTimeout) * time.Second
}

// GetDiscoveryInterval returns the time between SSDP searches.
func (c *Config) GetDiscoveryInterval() time.Duration {
	return time.Duration(c.UPnP.Discovery.Interval) * time.Second
}

// GetSearchWait returns the SSDP MX as a Duration.
func (c *Config) GetSearchWait() time.Duration {
	return time.Duration(c.UPnP.Discovery.SearchWait) * time.Second
}

// GetSubscriptionTimeout returns the requested GENA timeout.
func (c *Config) GetSubscriptionTimeout() time.Duration {
	return time.Duration(c.UPnP.SubscriptionTimeout) * time.Second
}

// GetCECTimeout returns the CEC open timeout.
func (c *Config) GetCECTimeout() time.Duration {
	return time.Duration(c.CEC.TimeoutMS) * time.Millisecond
}

// GetReadTimeout returns the server read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the server write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the server idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Idle) * time.Second
}
