// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/flight_sensors/internal/config"
	"github.com/relabs-tech/flight_sensors/internal/sample"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// readingsState holds the latest reading per sensor plus the alarm state.
type readingsState struct {
	mu       sync.RWMutex
	readings map[sample.SensorID]sample.Calibrated
	alarm    json.RawMessage
}

type readingsSnapshot struct {
	Readings map[sample.SensorID]sample.Calibrated `json:"readings"`
	Alarm    json.RawMessage                       `json:"alarm,omitempty"`
}

func (s *readingsState) snapshot() readingsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := readingsSnapshot{
		Readings: make(map[sample.SensorID]sample.Calibrated, len(s.readings)),
		Alarm:    s.alarm,
	}
	for id, r := range s.readings {
		out.Readings[id] = r
	}
	return out
}

// RunWeb serves the latest calibrated readings over HTTP: a JSON API for
// polling and a websocket for a live stream.
func RunWeb() error {
	cfg := config.Get()

	state := &readingsState{readings: make(map[sample.SensorID]sample.Calibrated)}

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to readings and alarm, update state on each message
	token := client.Subscribe(cfg.TopicPrefix+"/#", 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r sample.Calibrated
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("web: reading unmarshal error: %v", err)
			return
		}
		state.mu.Lock()
		state.readings[r.Sensor] = r
		state.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s/#", cfg.TopicPrefix)

	alarmToken := client.Subscribe(cfg.TopicAlarm, 0, func(_ mqtt.Client, msg mqtt.Message) {
		payload := make(json.RawMessage, len(msg.Payload()))
		copy(payload, msg.Payload())
		state.mu.Lock()
		state.alarm = payload
		state.mu.Unlock()
	})
	alarmToken.Wait()
	if alarmToken.Error() != nil {
		return alarmToken.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicAlarm)

	// 3) JSON API endpoint: latest readings
	http.HandleFunc("/api/readings", func(w http.ResponseWriter, r *http.Request) {
		snap := state.snapshot()
		if len(snap.Readings) == 0 {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 4) Websocket live stream, one snapshot every 100 ms
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.WriteJSON(state.snapshot()); err != nil {
				return
			}
		}
	})

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
