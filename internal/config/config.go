// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientID        string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string

	// Topics
	TopicPrefix      string // calibrated readings: <prefix>/accel etc.
	TopicAlarm       string
	TopicCalibration string
	TopicGyroBias    string

	// Acquisition timing (microseconds)
	SensorPeriodUS int
	StallTimeoutUS int // defaults to SensorPeriodUS

	// Gyro bias feedback from the attitude estimator
	BiasCorrectGyro bool

	// Axis maps, sensor-native to body frame, e.g. "y,x,-z"
	AccelAxes string
	GyroAxes  string
	MagAxes   string

	// Temperature transforms: temp = OFFSET + (raw+SHIFT)*GAIN
	AccelTempOffset float64
	AccelTempShift  float64
	AccelTempGain   float64
	GyroTempOffset  float64
	GyroTempShift   float64
	GyroTempGain    float64

	// IMU hardware
	// Gyroscope range in °/s: 250, 500, 1000 or 2000
	IMUGyroRange int
	// Accelerometer range in g: 2, 4, 8 or 16
	IMUAccelRange int
	// Internal sample rate in Hz
	IMUSampleRate int
	IMUEnableMag  bool

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// Barometer
	BaroSPIDevice        string
	BaroSampleIntervalMS int

	// Debug telemetry; empty address disables the frame stream
	TelemetryUDPAddr string

	// Watchdog device node; empty means no hardware watchdog
	WatchdogDevice string

	// Web viewer
	WebServerPort int

	// Display
	DisplayI2CAddr          uint16
	DisplayUpdateIntervalMS int
}

// Package-level singleton, set once by InitGlobal and read through Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config with every optional field pre-filled.
func defaults() *Config {
	return &Config{
		MQTTClientID:        "flight-sensors",
		MQTTClientIDConsole: "flight-sensors-console",
		MQTTClientIDWeb:     "flight-sensors-web",
		MQTTClientIDDisplay: "flight-sensors-display",

		TopicPrefix:      "flight/sensors",
		TopicAlarm:       "flight/alarm/sensors",
		TopicCalibration: "flight/config/sensor_calibration",
		TopicGyroBias:    "flight/attitude/gyro_bias",

		SensorPeriodUS: 2000,

		AccelAxes: "y,x,-z",
		GyroAxes:  "y,x,-z",
		MagAxes:   "y,x,-z",

		// MPU-style die temperature: 35 + (raw+512)/340
		AccelTempOffset: 35,
		AccelTempShift:  512,
		AccelTempGain:   1.0 / 340.0,
		GyroTempOffset:  35,
		GyroTempShift:   512,
		GyroTempGain:    1.0 / 340.0,

		IMUGyroRange:  250,
		IMUAccelRange: 4,
		IMUSampleRate: 500,
		IMUEnableMag:  true,

		GPSBaudRate:          9600,
		BaroSampleIntervalMS: 100,

		WebServerPort:           8080,
		DisplayI2CAddr:          0x3C,
		DisplayUpdateIntervalMS: 250,
	}
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return f, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_PREFIX":
		c.TopicPrefix = value
	case "TOPIC_ALARM":
		c.TopicAlarm = value
	case "TOPIC_CALIBRATION":
		c.TopicCalibration = value
	case "TOPIC_GYRO_BIAS":
		c.TopicGyroBias = value

	// Acquisition timing
	case "SENSOR_PERIOD_US":
		if c.SensorPeriodUS, err = parseInt(key, value); err != nil {
			return err
		}
		if c.SensorPeriodUS <= 0 {
			return fmt.Errorf("SENSOR_PERIOD_US must be positive, got %d", c.SensorPeriodUS)
		}
	case "STALL_TIMEOUT_US":
		if c.StallTimeoutUS, err = parseInt(key, value); err != nil {
			return err
		}

	case "BIAS_CORRECT_GYRO":
		if c.BiasCorrectGyro, err = parseBool(key, value); err != nil {
			return err
		}

	// Axis maps
	case "ACCEL_AXES":
		c.AccelAxes = value
	case "GYRO_AXES":
		c.GyroAxes = value
	case "MAG_AXES":
		c.MagAxes = value

	// Temperature transforms
	case "ACCEL_TEMP_OFFSET":
		c.AccelTempOffset, err = parseFloat(key, value)
		return err
	case "ACCEL_TEMP_SHIFT":
		c.AccelTempShift, err = parseFloat(key, value)
		return err
	case "ACCEL_TEMP_GAIN":
		c.AccelTempGain, err = parseFloat(key, value)
		return err
	case "GYRO_TEMP_OFFSET":
		c.GyroTempOffset, err = parseFloat(key, value)
		return err
	case "GYRO_TEMP_SHIFT":
		c.GyroTempShift, err = parseFloat(key, value)
		return err
	case "GYRO_TEMP_GAIN":
		c.GyroTempGain, err = parseFloat(key, value)
		return err

	// IMU hardware
	case "IMU_GYRO_RANGE":
		if c.IMUGyroRange, err = parseInt(key, value); err != nil {
			return err
		}
		switch c.IMUGyroRange {
		case 250, 500, 1000, 2000:
		default:
			return fmt.Errorf("IMU_GYRO_RANGE must be 250, 500, 1000 or 2000, got %d", c.IMUGyroRange)
		}
	case "IMU_ACCEL_RANGE":
		if c.IMUAccelRange, err = parseInt(key, value); err != nil {
			return err
		}
		switch c.IMUAccelRange {
		case 2, 4, 8, 16:
		default:
			return fmt.Errorf("IMU_ACCEL_RANGE must be 2, 4, 8 or 16, got %d", c.IMUAccelRange)
		}
	case "IMU_SAMPLE_RATE":
		if c.IMUSampleRate, err = parseInt(key, value); err != nil {
			return err
		}
	case "IMU_ENABLE_MAG":
		if c.IMUEnableMag, err = parseBool(key, value); err != nil {
			return err
		}

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = parseInt(key, value)
		return err

	// Barometer
	case "BARO_SPI_DEVICE":
		c.BaroSPIDevice = value
	case "BARO_SAMPLE_INTERVAL_MS":
		c.BaroSampleIntervalMS, err = parseInt(key, value)
		return err

	// Telemetry
	case "TELEMETRY_UDP_ADDR":
		c.TelemetryUDPAddr = value

	// Watchdog
	case "WATCHDOG_DEVICE":
		c.WatchdogDevice = value

	// Web
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)
		return err

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, perr)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL_MS":
		c.DisplayUpdateIntervalMS, err = parseInt(key, value)
		return err

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks required fields and fills derived defaults.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.StallTimeoutUS == 0 {
		c.StallTimeoutUS = c.SensorPeriodUS
	}
	if c.StallTimeoutUS < 0 {
		return fmt.Errorf("STALL_TIMEOUT_US must be positive, got %d", c.StallTimeoutUS)
	}
	return nil
}

// InitGlobal initializes the global configuration from file, once.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance. InitGlobal must be called
// first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
