// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/flight_sensors/internal/acquire"
	"github.com/relabs-tech/flight_sensors/internal/axes"
	"github.com/relabs-tech/flight_sensors/internal/baro"
	"github.com/relabs-tech/flight_sensors/internal/bus"
	"github.com/relabs-tech/flight_sensors/internal/calibration"
	"github.com/relabs-tech/flight_sensors/internal/config"
	"github.com/relabs-tech/flight_sensors/internal/driver"
	"github.com/relabs-tech/flight_sensors/internal/estimator"
	"github.com/relabs-tech/flight_sensors/internal/gps"
	"github.com/relabs-tech/flight_sensors/internal/health"
	"github.com/relabs-tech/flight_sensors/internal/sample"
	"github.com/relabs-tech/flight_sensors/internal/telemetry"
)

// RunSensord wires the full acquisition pipeline and runs it forever. With
// simMode set it substitutes synthetic waveform drivers for the IMU, so the
// whole stack can run on a bench without hardware.
func RunSensord(simMode bool) error {
	cfg := config.Get()

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)
	log.Printf("sensord: connected to MQTT broker at %s", cfg.MQTTBroker)

	// --- calibration cache, updated from the retained config topic ---
	cal := calibration.NewCache(calibration.Default())
	calToken := client.Subscribe(cfg.TopicCalibration, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p calibration.Params
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("sensord: calibration unmarshal error: %v", err)
			return
		}
		cal.Update(p)
		log.Printf("sensord: calibration updated from %s", msg.Topic())
	})
	calToken.Wait()
	if calToken.Error() != nil {
		return calToken.Error()
	}
	log.Printf("sensord: subscribed to %s", cfg.TopicCalibration)

	// --- gyro bias feedback from the attitude estimator ---
	biasFeed := estimator.NewBiasFeed()
	if cfg.BiasCorrectGyro {
		biasToken := client.Subscribe(cfg.TopicGyroBias, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var b estimator.GyroBias
			if err := json.Unmarshal(msg.Payload(), &b); err != nil {
				log.Printf("sensord: gyro bias unmarshal error: %v", err)
				return
			}
			biasFeed.Set(b)
		})
		biasToken.Wait()
		if biasToken.Error() != nil {
			return biasToken.Error()
		}
		log.Printf("sensord: subscribed to %s", cfg.TopicGyroBias)
	}

	// --- alarm and watchdog ---
	alarm := health.NewMQTTAlarm(client, cfg.TopicAlarm)

	var watchdog health.Watchdog = health.NopWatchdog{}
	if cfg.WatchdogDevice != "" {
		dw, err := health.OpenDeviceWatchdog(cfg.WatchdogDevice)
		if err != nil {
			return err
		}
		watchdog = dw
		log.Printf("sensord: hardware watchdog on %s", cfg.WatchdogDevice)
	}

	// --- axis maps ---
	accelAxes, err := axes.Parse(cfg.AccelAxes)
	if err != nil {
		return fmt.Errorf("ACCEL_AXES: %w", err)
	}
	gyroAxes, err := axes.Parse(cfg.GyroAxes)
	if err != nil {
		return fmt.Errorf("GYRO_AXES: %w", err)
	}
	magAxes, err := axes.Parse(cfg.MagAxes)
	if err != nil {
		return fmt.Errorf("MAG_AXES: %w", err)
	}

	accelTemp := acquire.TempTransform{
		Offset: float32(cfg.AccelTempOffset),
		Shift:  float32(cfg.AccelTempShift),
		Gain:   float32(cfg.AccelTempGain),
	}
	gyroTemp := acquire.TempTransform{
		Offset: float32(cfg.GyroTempOffset),
		Shift:  float32(cfg.GyroTempShift),
		Gain:   float32(cfg.GyroTempGain),
	}

	// --- sensor drivers ---
	var slots []acquire.Slot
	if simMode {
		log.Println("sensord: simulation mode, using synthetic waveform drivers")
		rate := float64(cfg.IMUSampleRate)
		slots = []acquire.Slot{
			{ID: sample.Accel, Driver: driver.NewWave(rate, 1, 1), Axes: accelAxes, Temp: acquire.IdentityTemp(), Required: true},
			{ID: sample.Gyro, Driver: driver.NewWave(rate, 10, 1), Axes: gyroAxes, Temp: acquire.IdentityTemp(), Required: true},
			{ID: sample.Mag, Driver: driver.NewWave(50, 40, 1), Axes: magAxes, Temp: acquire.IdentityTemp()},
		}
	} else {
		imu, err := driver.NewMPU9250(cfg.IMUGyroRange, cfg.IMUAccelRange, cfg.IMUSampleRate, cfg.IMUEnableMag)
		if err != nil {
			return err
		}
		defer imu.Close()
		log.Printf("sensord: MPU9250 initialized (gyro %d°/s, accel %dg, %d Hz)",
			cfg.IMUGyroRange, cfg.IMUAccelRange, cfg.IMUSampleRate)

		slots = []acquire.Slot{
			{ID: sample.Accel, Driver: imu.Accel(), Axes: accelAxes, Temp: accelTemp, Required: true},
			{ID: sample.Gyro, Driver: imu.Gyro(), Axes: gyroAxes, Temp: gyroTemp, Required: true},
		}
		if cfg.IMUEnableMag {
			slots = append(slots, acquire.Slot{
				ID: sample.Mag, Driver: imu.Mag(), Axes: magAxes, Temp: acquire.IdentityTemp(),
			})
		}
	}

	// --- auxiliary feeds for the telemetry frame ---
	var gpsFeed *gps.Feed
	if cfg.GPSSerialPort != "" {
		gpsFeed = gps.NewFeed()
		go func() {
			if err := gps.RunSerial(gpsFeed, cfg.GPSSerialPort, uint(cfg.GPSBaudRate)); err != nil {
				log.Printf("sensord: gps reader stopped: %v", err)
			}
		}()
	}

	var baroFeed *baro.Feed
	if cfg.BaroSPIDevice != "" {
		src, err := baro.NewBMxx80(cfg.BaroSPIDevice)
		if err != nil {
			log.Printf("sensord: barometer unavailable: %v", err)
		} else {
			baroFeed = baro.NewFeed()
			go baro.Run(baroFeed, src, time.Duration(cfg.BaroSampleIntervalMS)*time.Millisecond)
		}
	}

	var sink telemetry.Sink
	if cfg.TelemetryUDPAddr != "" {
		s, err := telemetry.NewUDPSink(cfg.TelemetryUDPAddr)
		if err != nil {
			return err
		}
		sink = s
		log.Printf("sensord: telemetry frames to %s", cfg.TelemetryUDPAddr)
	}

	task := acquire.New(acquire.Config{
		Period:          time.Duration(cfg.SensorPeriodUS) * time.Microsecond,
		StallTimeout:    time.Duration(cfg.StallTimeoutUS) * time.Microsecond,
		BiasCorrectGyro: cfg.BiasCorrectGyro,
		Slots:           slots,
		Bus:             bus.NewMQTT(client, cfg.TopicPrefix),
		Calibration:     cal,
		GyroBias:        biasFeed,
		Alarm:           alarm,
		Watchdog:        watchdog,
		Telemetry:       sink,
		GPS:             gpsFeed,
		Baro:            baroFeed,
	})

	log.Printf("sensord: starting acquisition at %d µs period", cfg.SensorPeriodUS)
	task.Run()
	return nil
}
