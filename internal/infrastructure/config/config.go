package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for GaragePi.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Topics    TopicsConfig    `yaml:"topics"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Doors     []DoorConfig    `yaml:"doors"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Climate   ClimateConfig   `yaml:"climate"`
	Motion    MotionConfig    `yaml:"motion"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Retain    bool                `yaml:"retain"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// CredentialsFile is an optional USERNAME=/PASSWORD= file.
	// Values found there replace Auth.
	CredentialsFile string `yaml:"credentials_file"`

	// PublishAvailability drives the coverN/availability topics.
	PublishAvailability bool `yaml:"publish_availability"`
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
// Delays are in seconds. MaxAttempts bounds the initial connect loop.
type MQTTReconnectConfig struct {
	Enabled      bool `yaml:"enabled"`
	InitialDelay int  `yaml:"initial_delay"`
	MaxDelay     int  `yaml:"max_delay"`
	MaxAttempts  int  `yaml:"max_attempts"`
}

// TopicsConfig contains the MQTT topic namespace.
type TopicsConfig struct {
	Prefix string `yaml:"prefix"`
}

// GPIOConfig selects the GPIO character device.
type GPIOConfig struct {
	Chip string `yaml:"chip"`
}

// DoorConfig describes one garage door: its relay output and reed-switch input.
type DoorConfig struct {
	ID         int  `yaml:"id"`
	ControlPin int  `yaml:"control_pin"`
	StatePin   int  `yaml:"state_pin"`
	ClosedLow  bool `yaml:"closed_low"`
	PullUp     bool `yaml:"pull_up"`

	// Pulse and Settle are in milliseconds.
	Pulse  int `yaml:"pulse_ms"`
	Settle int `yaml:"settle_ms"`
}

// Door timing defaults in milliseconds, applied to door entries that leave
// pulse_ms or settle_ms unset or zero.
const (
	DefaultPulseMS  = 500
	DefaultSettleMS = 1000
)

// PulseDuration returns the relay hold time.
func (d DoorConfig) PulseDuration() time.Duration {
	return time.Duration(d.Pulse) * time.Millisecond
}

// SettleDuration returns the post-pulse settle time.
func (d DoorConfig) SettleDuration() time.Duration {
	return time.Duration(d.Settle) * time.Millisecond
}

// IndicatorConfig contains the RGB status LED pins.
type IndicatorConfig struct {
	Enabled   bool `yaml:"enabled"`
	RedPin    int  `yaml:"red_pin"`
	GreenPin  int  `yaml:"green_pin"`
	BluePin   int  `yaml:"blue_pin"`
	Frequency int  `yaml:"frequency_hz"`
}

// ClimateConfig contains the DHT22 poller settings.
type ClimateConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Pin          int    `yaml:"pin"`
	Device       string `yaml:"device"`
	PollInterval int    `yaml:"poll_interval"`
	Retries      int    `yaml:"retries"`
	RetryDelay   int    `yaml:"retry_delay"`
}

// GetPollInterval returns the poll interval as a Duration.
func (c ClimateConfig) GetPollInterval() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// GetRetryDelay returns the delay between read attempts as a Duration.
func (c ClimateConfig) GetRetryDelay() time.Duration {
	return time.Duration(c.RetryDelay) * time.Second
}

// MotionConfig contains the PIR sensor settings.
type MotionConfig struct {
	Enabled bool `yaml:"enabled"`
	Pin     int  `yaml:"pin"`
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

// APIConfig contains status HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	File   string `yaml:"file"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//  4. Credentials file (overrides mqtt.auth)
//
// Environment variables follow the pattern: GARAGEPI_SECTION_KEY
// For example: GARAGEPI_MQTT_HOST, GARAGEPI_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyDoorDefaults(cfg)
	applyEnvOverrides(cfg)

	if cfg.MQTT.CredentialsFile != "" {
		creds, err := LoadCredentials(cfg.MQTT.CredentialsFile)
		if err != nil {
			return nil, err
		}
		creds.Apply(&cfg.MQTT.Auth)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration matching the reference wiring
// of a single Raspberry Pi with two doors.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "192.168.1.120",
				Port:     1883,
				ClientID: "GaragePi",
			},
			QoS:    0,
			Retain: true,
			Reconnect: MQTTReconnectConfig{
				Enabled:      true,
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  5,
			},
		},
		Topics: TopicsConfig{Prefix: "hass"},
		GPIO:   GPIOConfig{Chip: "gpiochip0"},
		Doors: []DoorConfig{
			{ID: 1, ControlPin: 17, StatePin: 5, Pulse: DefaultPulseMS, Settle: DefaultSettleMS},
			{ID: 2, ControlPin: 22, StatePin: 6, Pulse: DefaultPulseMS, Settle: DefaultSettleMS},
		},
		Indicator: IndicatorConfig{
			Enabled:   true,
			RedPin:    23,
			GreenPin:  24,
			BluePin:   25,
			Frequency: 100,
		},
		Climate: ClimateConfig{
			Enabled:      true,
			Pin:          27,
			Device:       "/sys/bus/iio/devices/iio:device0",
			PollInterval: 60,
			Retries:      15,
			RetryDelay:   2,
		},
		Motion: MotionConfig{
			Enabled: true,
			Pin:     26,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// applyDoorDefaults fills door timings the file left out. A doors list in
// YAML replaces the built-in one wholesale, so omitted keys decode as zero.
func applyDoorDefaults(cfg *Config) {
	for i := range cfg.Doors {
		if cfg.Doors[i].Pulse == 0 {
			cfg.Doors[i].Pulse = DefaultPulseMS
		}
		if cfg.Doors[i].Settle == 0 {
			cfg.Doors[i].Settle = DefaultSettleMS
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GARAGEPI_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("GARAGEPI_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GARAGEPI_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GARAGEPI_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("GARAGEPI_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GARAGEPI_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("GARAGEPI_MQTT_CREDENTIALS_FILE"); v != "" {
		cfg.MQTT.CredentialsFile = v
	}

	// GPIO
	if v := os.Getenv("GARAGEPI_GPIO_CHIP"); v != "" {
		cfg.GPIO.Chip = v
	}

	// InfluxDB
	if v := os.Getenv("GARAGEPI_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("GARAGEPI_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Logging
	if v := os.Getenv("GARAGEPI_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.MaxAttempts < 0 {
		errs = append(errs, "mqtt.reconnect.max_attempts must not be negative")
	}

	if c.Topics.Prefix == "" {
		errs = append(errs, "topics.prefix is required")
	}

	// Doors
	if len(c.Doors) == 0 {
		errs = append(errs, "at least one door is required")
	}
	ids := make(map[int]bool)
	pins := make(map[int]string)
	claim := func(pin int, owner string) {
		if pin < 0 {
			errs = append(errs, fmt.Sprintf("%s: pin %d must not be negative", owner, pin))
			return
		}
		if prev, taken := pins[pin]; taken {
			errs = append(errs, fmt.Sprintf("%s: pin %d already used by %s", owner, pin, prev))
			return
		}
		pins[pin] = owner
	}
	for i, d := range c.Doors {
		owner := fmt.Sprintf("doors[%d]", i)
		if d.ID < 1 {
			errs = append(errs, owner+".id must be positive")
		} else if ids[d.ID] {
			errs = append(errs, fmt.Sprintf("%s.id %d is duplicated", owner, d.ID))
		}
		ids[d.ID] = true
		claim(d.ControlPin, owner+".control_pin")
		claim(d.StatePin, owner+".state_pin")
		if d.Pulse <= 0 {
			errs = append(errs, owner+".pulse_ms must be positive")
		}
		if d.Settle < 0 {
			errs = append(errs, owner+".settle_ms must not be negative")
		}
	}

	if c.Indicator.Enabled {
		claim(c.Indicator.RedPin, "indicator.red_pin")
		claim(c.Indicator.GreenPin, "indicator.green_pin")
		claim(c.Indicator.BluePin, "indicator.blue_pin")
		if c.Indicator.Frequency <= 0 {
			errs = append(errs, "indicator.frequency_hz must be positive")
		}
	}

	if c.Climate.Enabled {
		claim(c.Climate.Pin, "climate.pin")
		if c.Climate.Device == "" {
			errs = append(errs, "climate.device is required when climate is enabled")
		}
		if c.Climate.PollInterval <= 0 {
			errs = append(errs, "climate.poll_interval must be positive")
		}
		if c.Climate.Retries < 1 {
			errs = append(errs, "climate.retries must be at least 1")
		}
	}

	if c.Motion.Enabled {
		claim(c.Motion.Pin, "motion.pin")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if strings.EqualFold(c.Logging.Output, "file") && c.Logging.File == "" {
		errs = append(errs, "logging.file is required when logging.output is file")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
