// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when looking for environment overrides,
// e.g. DHCX_MQTT_BROKER.
const EnvPrefix = "DHCX"

// DefaultPath is the config file used when no --config flag is given.
const DefaultPath = "./dhcx_config.txt"

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDDisplay  string

	// Topics
	TopicSamples string
	TopicStatus  string

	// IMU bus: "i2c", "spi" or "sim" (in-process simulated device)
	IMUBus        string
	IMUI2CBus     string
	IMUI2CAddr    uint16
	IMUSPIDevice  string
	IMUSPISpeedHz int

	// Requested output data rates, quantized up to the next supported rate
	IMUAccelODRHz float64
	IMUGyroODRHz  float64

	// Scale factors for the configured full scales
	AccelSensitivity float64 // mg/LSB
	GyroSensitivity  float64 // mdps/LSB

	// FIFO
	FIFOMode                string
	FIFOWatermark           uint16
	FIFOAccelBDRHz          float64
	FIFOGyroBDRHz           float64
	FIFOTimestampDecimation uint8
	FIFOPollInterval        int // milliseconds

	// Interrupt routes, comma separated source names
	Int1Route string
	Int2Route string

	// FSM/MLC program applied at startup
	UCFFile string

	// Timing
	ConsoleLogInterval int // milliseconds

	// Web Server
	WebServerPort              int
	RegisterDebugAllowedRanges string

	// Display
	DisplayI2CBus         string
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int    // milliseconds
	DisplayContent        string // "samples" or "status"

	LogLevel string
}

// defaults are applied through viper before the file is read. Keys absent
// here are optional and stay at their zero value.
var defaults = map[string]string{
	"MQTT_CLIENT_ID_PRODUCER":   "dhcx-producer",
	"MQTT_CLIENT_ID_CONSOLE":    "dhcx-console",
	"MQTT_CLIENT_ID_DISPLAY":    "dhcx-display",
	"TOPIC_SAMPLES":             "dhcx/samples",
	"TOPIC_STATUS":              "dhcx/status",
	"IMU_BUS":                   "i2c",
	"IMU_I2C_ADDR":              "0x6B",
	"IMU_SPI_SPEED_HZ":          "1000000",
	"IMU_ACCEL_ODR_HZ":          "104",
	"IMU_GYRO_ODR_HZ":           "104",
	"ACCEL_SENSITIVITY":         "0.061",
	"GYRO_SENSITIVITY":          "8.75",
	"FIFO_MODE":                 "continuous",
	"FIFO_WATERMARK":            "64",
	"FIFO_ACCEL_BDR_HZ":         "104",
	"FIFO_GYRO_BDR_HZ":          "104",
	"FIFO_TIMESTAMP_DECIMATION": "1",
	"FIFO_POLL_INTERVAL":        "100",
	"CONSOLE_LOG_INTERVAL":      "1000",
	"WEB_SERVER_PORT":           "8081",
	"DISPLAY_I2C_ADDR":          "0x3C",
	"DISPLAY_UPDATE_INTERVAL":   "250",
	"DISPLAY_CONTENT":           "samples",
	"LOG_LEVEL":                 "info",
}

// knownKeys lists every key setValue understands.
var knownKeys = []string{
	"MQTT_BROKER", "MQTT_CLIENT_ID_PRODUCER", "MQTT_CLIENT_ID_CONSOLE", "MQTT_CLIENT_ID_DISPLAY",
	"TOPIC_SAMPLES", "TOPIC_STATUS",
	"IMU_BUS", "IMU_I2C_BUS", "IMU_I2C_ADDR", "IMU_SPI_DEVICE", "IMU_SPI_SPEED_HZ",
	"IMU_ACCEL_ODR_HZ", "IMU_GYRO_ODR_HZ", "ACCEL_SENSITIVITY", "GYRO_SENSITIVITY",
	"FIFO_MODE", "FIFO_WATERMARK", "FIFO_ACCEL_BDR_HZ", "FIFO_GYRO_BDR_HZ",
	"FIFO_TIMESTAMP_DECIMATION", "FIFO_POLL_INTERVAL",
	"INT1_ROUTE", "INT2_ROUTE", "UCF_FILE",
	"CONSOLE_LOG_INTERVAL", "WEB_SERVER_PORT", "REGISTER_DEBUG_ALLOWED_RANGES",
	"DISPLAY_I2C_BUS", "DISPLAY_I2C_ADDR", "DISPLAY_UPDATE_INTERVAL", "DISPLAY_CONTENT",
	"LOG_LEVEL",
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads a KEY=VALUE configuration file. Environment variables named
// DHCX_<KEY> take precedence over the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("properties")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	known := make(map[string]bool, len(knownKeys))
	for _, k := range knownKeys {
		known[strings.ToLower(k)] = true
	}
	var unknown []string
	for _, k := range v.AllKeys() {
		if !known[k] {
			unknown = append(unknown, strings.ToUpper(k))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown config key: %q", unknown[0])
	}

	cfg := &Config{}
	for _, key := range knownKeys {
		// viper keys are case-insensitive; GetString also consults the
		// environment and the defaults.
		value := strings.TrimSpace(v.GetString(key))
		if value == "" {
			continue
		}
		if err := cfg.setValue(key, value); err != nil {
			return nil, err
		}
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_SAMPLES":
		c.TopicSamples = value
	case "TOPIC_STATUS":
		c.TopicStatus = value

	// IMU bus
	case "IMU_BUS":
		value = strings.ToLower(value)
		if value != "i2c" && value != "spi" && value != "sim" {
			return fmt.Errorf("IMU_BUS must be i2c, spi or sim, got %q", value)
		}
		c.IMUBus = value
	case "IMU_I2C_BUS":
		c.IMUI2CBus = value
	case "IMU_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid IMU_I2C_ADDR %q: %w", value, err)
		}
		if addr != 0x6A && addr != 0x6B {
			return fmt.Errorf("IMU_I2C_ADDR must be 0x6A or 0x6B, got 0x%X", addr)
		}
		c.IMUI2CAddr = uint16(addr)
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_SPI_SPEED_HZ":
		hz, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_SPI_SPEED_HZ %q: %w", value, err)
		}
		if hz <= 0 || hz > 10000000 {
			return fmt.Errorf("IMU_SPI_SPEED_HZ must be 1-10000000, got %d", hz)
		}
		c.IMUSPISpeedHz = hz

	// Rates
	case "IMU_ACCEL_ODR_HZ":
		return parseRate(key, value, &c.IMUAccelODRHz)
	case "IMU_GYRO_ODR_HZ":
		return parseRate(key, value, &c.IMUGyroODRHz)
	case "ACCEL_SENSITIVITY":
		return parsePositive(key, value, &c.AccelSensitivity)
	case "GYRO_SENSITIVITY":
		return parsePositive(key, value, &c.GyroSensitivity)

	// FIFO
	case "FIFO_MODE":
		c.FIFOMode = strings.ToLower(value)
	case "FIFO_WATERMARK":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid FIFO_WATERMARK %q: %w", value, err)
		}
		if val < 0 || val > 511 {
			return fmt.Errorf("FIFO_WATERMARK must be 0-511, got %d", val)
		}
		c.FIFOWatermark = uint16(val)
	case "FIFO_ACCEL_BDR_HZ":
		return parseRate(key, value, &c.FIFOAccelBDRHz)
	case "FIFO_GYRO_BDR_HZ":
		return parseRate(key, value, &c.FIFOGyroBDRHz)
	case "FIFO_TIMESTAMP_DECIMATION":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid FIFO_TIMESTAMP_DECIMATION %q: %w", value, err)
		}
		if val < 0 || val > 3 {
			return fmt.Errorf("FIFO_TIMESTAMP_DECIMATION must be 0-3 (0=off, 1, 8, 32 records), got %d", val)
		}
		c.FIFOTimestampDecimation = uint8(val)
	case "FIFO_POLL_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid FIFO_POLL_INTERVAL %q: %w", value, err)
		}
		c.FIFOPollInterval = interval

	// Interrupts
	case "INT1_ROUTE":
		c.Int1Route = value
	case "INT2_ROUTE":
		c.Int2Route = value
	case "UCF_FILE":
		c.UCFFile = value

	// Timing
	case "CONSOLE_LOG_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_LOG_INTERVAL %q: %w", value, err)
		}
		c.ConsoleLogInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port
	case "REGISTER_DEBUG_ALLOWED_RANGES":
		c.RegisterDebugAllowedRanges = value

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval
	case "DISPLAY_CONTENT":
		value = strings.ToLower(value)
		if value != "samples" && value != "status" {
			return fmt.Errorf("DISPLAY_CONTENT must be samples or status, got %q", value)
		}
		c.DisplayContent = value

	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parseRate(key, value string, dst *float64) error {
	hz, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if hz < 0 {
		return fmt.Errorf("%s must not be negative, got %v", key, hz)
	}
	*dst = hz
	return nil
}

func parsePositive(key, value string, dst *float64) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if f <= 0 {
		return fmt.Errorf("%s must be positive, got %v", key, f)
	}
	*dst = f
	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	switch c.IMUBus {
	case "i2c":
		if c.IMUI2CAddr == 0 {
			return fmt.Errorf("IMU_I2C_ADDR is required")
		}
	case "spi":
		if c.IMUSPIDevice == "" {
			return fmt.Errorf("IMU_SPI_DEVICE is required when IMU_BUS=spi")
		}
	}
	if c.FIFOPollInterval <= 0 {
		return fmt.Errorf("FIFO_POLL_INTERVAL is required")
	}
	if c.ConsoleLogInterval <= 0 {
		return fmt.Errorf("CONSOLE_LOG_INTERVAL is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
