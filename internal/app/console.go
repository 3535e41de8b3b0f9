// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/flight_sensors/internal/config"
	"github.com/relabs-tech/flight_sensors/internal/sample"
)

// RunConsole subscribes to the calibrated readings and the alarm topic and
// prints them, one line per message. Mainly a bench debugging aid.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	printReading := func(_ mqtt.Client, msg mqtt.Message) {
		var r sample.Calibrated
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("console: reading unmarshal error: %v", err)
			return
		}
		fmt.Printf("[%-5s] x=%9.4f y=%9.4f z=%9.4f  temp=%5.1f°C  n=%d\n",
			r.Sensor, r.X, r.Y, r.Z, r.Temperature, r.Samples)
	}

	for _, id := range []sample.SensorID{sample.Accel, sample.Gyro, sample.Mag} {
		topic := cfg.TopicPrefix + "/" + string(id)
		token := client.Subscribe(topic, 0, printReading)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", topic)
	}

	alarmToken := client.Subscribe(cfg.TopicAlarm, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var a struct {
			Active   bool   `json:"active"`
			Severity string `json:"severity"`
			Time     string `json:"time"`
		}
		if err := json.Unmarshal(msg.Payload(), &a); err != nil {
			log.Printf("console: alarm unmarshal error: %v", err)
			return
		}
		if a.Active {
			fmt.Printf("[ALARM] %s at %s\n", a.Severity, a.Time)
		} else {
			fmt.Printf("[ALARM] cleared at %s\n", a.Time)
		}
	})
	alarmToken.Wait()
	if alarmToken.Error() != nil {
		return alarmToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicAlarm)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
