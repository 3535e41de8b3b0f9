// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/flight_sensors/internal/config"
	"github.com/relabs-tech/flight_sensors/internal/sample"
)

// displayData holds the latest values shown on the OLED.
type displayData struct {
	mu sync.RWMutex

	accel     sample.Calibrated
	haveAccel bool
	gyro      sample.Calibrated
	haveGyro  bool

	alarmActive   bool
	alarmSeverity string
}

// RunDisplay drives a small SSD1306 OLED with the latest accel/gyro readings
// and the alarm state, for a glanceable bench check without a laptop.
func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	i2cBus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer i2cBus.Close()

	// The periph driver talks to the controller at its fixed address 0x3C.
	if cfg.DisplayI2CAddr != 0x3C {
		log.Printf("display: driver uses fixed address 0x3C, ignoring 0x%02X", cfg.DisplayI2CAddr)
	}
	dev, err := ssd1306.NewI2C(i2cBus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: initialized")

	if err := showSplash(dev); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &displayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	readingHandler := func(_ mqtt.Client, msg mqtt.Message) {
		var r sample.Calibrated
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("display: reading unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		switch r.Sensor {
		case sample.Accel:
			data.accel = r
			data.haveAccel = true
		case sample.Gyro:
			data.gyro = r
			data.haveGyro = true
		}
		data.mu.Unlock()
	}

	for _, id := range []sample.SensorID{sample.Accel, sample.Gyro} {
		topic := cfg.TopicPrefix + "/" + string(id)
		token := client.Subscribe(topic, 0, readingHandler)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("display: subscribed to %s", topic)
	}

	alarmToken := client.Subscribe(cfg.TopicAlarm, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var a struct {
			Active   bool   `json:"active"`
			Severity string `json:"severity"`
		}
		if err := json.Unmarshal(msg.Payload(), &a); err != nil {
			log.Printf("display: alarm unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.alarmActive = a.Active
		data.alarmSeverity = a.Severity
		data.mu.Unlock()
	})
	alarmToken.Wait()
	if alarmToken.Error() != nil {
		return alarmToken.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicAlarm)

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		snapshot := displayData{
			accel:         data.accel,
			haveAccel:     data.haveAccel,
			gyro:          data.gyro,
			haveGyro:      data.haveGyro,
			alarmActive:   data.alarmActive,
			alarmSeverity: data.alarmSeverity,
		}
		data.mu.RUnlock()

		if err := updateReadingsDisplay(dev, &snapshot); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func newDrawer(img *image1bit.VerticalLSB) *font.Drawer {
	return &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
}

func blankImage() *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}
	return img
}

func updateReadingsDisplay(dev *ssd1306.Dev, data *displayData) error {
	img := blankImage()
	drawer := newDrawer(img)

	if !data.haveAccel && !data.haveGyro {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Flight Sensors"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
		return dev.Draw(dev.Bounds(), img, image.Point{})
	}

	// Accel
	drawer.Dot = fixed.P(0, 13)
	drawer.DrawBytes([]byte(fmt.Sprintf("A %5.2f %5.2f", data.accel.X, data.accel.Y)))
	drawer.Dot = fixed.P(0, 26)
	drawer.DrawBytes([]byte(fmt.Sprintf("  %5.2f g", data.accel.Z)))

	// Gyro
	drawer.Dot = fixed.P(0, 39)
	drawer.DrawBytes([]byte(fmt.Sprintf("G %5.1f %5.1f", data.gyro.X, data.gyro.Y)))
	drawer.Dot = fixed.P(0, 52)
	drawer.DrawBytes([]byte(fmt.Sprintf("  %5.1f dps", data.gyro.Z)))

	// Alarm banner overwrites the last line
	if data.alarmActive {
		drawer.Dot = fixed.P(80, 52)
		drawer.DrawBytes([]byte("!" + data.alarmSeverity))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func showSplash(dev *ssd1306.Dev) error {
	img := blankImage()
	drawer := newDrawer(img)

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Flight Sensors"))

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Waiting for"))

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawBytes([]byte("data"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
