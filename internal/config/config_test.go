package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flight_sensors.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMinimal(t *testing.T) {
	path := writeConfig(t, `
# minimal config
MQTT_BROKER=tcp://localhost:1883
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MQTTBroker != "tcp://localhost:1883" {
		t.Errorf("MQTTBroker = %q", cfg.MQTTBroker)
	}
	// defaults fill in
	if cfg.SensorPeriodUS != 2000 {
		t.Errorf("SensorPeriodUS = %d, want default 2000", cfg.SensorPeriodUS)
	}
	if cfg.StallTimeoutUS != 2000 {
		t.Errorf("StallTimeoutUS = %d, want period default 2000", cfg.StallTimeoutUS)
	}
	if cfg.AccelAxes != "y,x,-z" {
		t.Errorf("AccelAxes = %q, want default y,x,-z", cfg.AccelAxes)
	}
	if cfg.IMUGyroRange != 250 {
		t.Errorf("IMUGyroRange = %d, want default 250", cfg.IMUGyroRange)
	}
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `
MQTT_BROKER=tcp://broker:1883
SENSOR_PERIOD_US=4000
STALL_TIMEOUT_US=3000
BIAS_CORRECT_GYRO=true
ACCEL_AXES=x,y,z
IMU_GYRO_RANGE=500
IMU_ACCEL_RANGE=8
GPS_SERIAL_PORT=/dev/serial0
GPS_BAUD_RATE=115200
TELEMETRY_UDP_ADDR=127.0.0.1:9100
WATCHDOG_DEVICE=/dev/watchdog
DISPLAY_I2C_ADDR=0x3D
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SensorPeriodUS != 4000 || cfg.StallTimeoutUS != 3000 {
		t.Errorf("timing = %d/%d, want 4000/3000", cfg.SensorPeriodUS, cfg.StallTimeoutUS)
	}
	if !cfg.BiasCorrectGyro {
		t.Error("BiasCorrectGyro = false, want true")
	}
	if cfg.IMUGyroRange != 500 || cfg.IMUAccelRange != 8 {
		t.Errorf("ranges = %d/%d, want 500/8", cfg.IMUGyroRange, cfg.IMUAccelRange)
	}
	if cfg.GPSSerialPort != "/dev/serial0" || cfg.GPSBaudRate != 115200 {
		t.Errorf("gps = %q/%d", cfg.GPSSerialPort, cfg.GPSBaudRate)
	}
	if cfg.DisplayI2CAddr != 0x3D {
		t.Errorf("DisplayI2CAddr = 0x%X, want 0x3D", cfg.DisplayI2CAddr)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing broker", "SENSOR_PERIOD_US=2000\n"},
		{"bad line", "MQTT_BROKER=tcp://b:1883\nnot a kv line\n"},
		{"unknown key", "MQTT_BROKER=tcp://b:1883\nNOPE=1\n"},
		{"bad period", "MQTT_BROKER=tcp://b:1883\nSENSOR_PERIOD_US=zero\n"},
		{"negative period", "MQTT_BROKER=tcp://b:1883\nSENSOR_PERIOD_US=-5\n"},
		{"bad gyro range", "MQTT_BROKER=tcp://b:1883\nIMU_GYRO_RANGE=300\n"},
		{"bad accel range", "MQTT_BROKER=tcp://b:1883\nIMU_ACCEL_RANGE=3\n"},
		{"bad bool", "MQTT_BROKER=tcp://b:1883\nBIAS_CORRECT_GYRO=maybe\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := Load(path); err == nil {
				t.Errorf("Load accepted %q", tc.content)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/flight_sensors.txt"); err == nil {
		t.Error("Load accepted a missing file")
	}
}
