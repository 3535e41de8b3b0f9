// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package health provides the alarm and watchdog hooks the acquisition task
// reports through. The rest of the system decides what an alarm means; this
// task only promises to refresh the watchdog exactly once per iteration and
// to keep the alarm state honest.
package health

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Severity grades an alarm.
type Severity int

const (
	// Warning marks a recoverable condition, e.g. one stalled period.
	Warning Severity = iota + 1
	// Critical marks a terminal condition, e.g. a failed startup self-test.
	Critical
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Alarm is the sensor-subsystem alarm, keyed externally by a fixed
// identifier. Set and Clear are idempotent.
type Alarm interface {
	Set(s Severity)
	Clear()
}

// Watchdog receives one liveness refresh per acquisition iteration. Missing
// refreshes leads to a hardware reset, so the task calls this on every path.
type Watchdog interface {
	Refresh()
}

// LogAlarm writes alarm transitions to the process log. Repeated Sets at the
// same severity and repeated Clears are quiet.
type LogAlarm struct {
	mu      sync.Mutex
	current Severity // 0 = cleared
}

func (a *LogAlarm) Set(s Severity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == s {
		return
	}
	a.current = s
	log.Printf("health: sensors alarm %s", s)
}

func (a *LogAlarm) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == 0 {
		return
	}
	a.current = 0
	log.Println("health: sensors alarm cleared")
}

// MQTTAlarm publishes alarm state as retained JSON so any subscriber sees
// the current state immediately.
type MQTTAlarm struct {
	client mqtt.Client
	topic  string

	mu      sync.Mutex
	current Severity
	set     bool
}

// NewMQTTAlarm publishes on topic through an already-connected client.
func NewMQTTAlarm(client mqtt.Client, topic string) *MQTTAlarm {
	return &MQTTAlarm{client: client, topic: topic}
}

type alarmPayload struct {
	Active   bool   `json:"active"`
	Severity string `json:"severity,omitempty"`
	Time     string `json:"time"`
}

func (a *MQTTAlarm) publish(p alarmPayload) {
	p.Time = time.Now().UTC().Format(time.RFC3339)
	b, err := json.Marshal(p)
	if err != nil {
		log.Printf("health: alarm marshal: %v", err)
		return
	}
	a.client.Publish(a.topic, 0, true, b)
}

func (a *MQTTAlarm) Set(s Severity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.set && a.current == s {
		return
	}
	a.set = true
	a.current = s
	a.publish(alarmPayload{Active: true, Severity: s.String()})
}

func (a *MQTTAlarm) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.set {
		return
	}
	a.set = false
	a.current = 0
	a.publish(alarmPayload{Active: false})
}

// NopWatchdog satisfies Watchdog where no hardware watchdog is wired, e.g.
// bench runs and tests.
type NopWatchdog struct{}

func (NopWatchdog) Refresh() {}

// DeviceWatchdog pets a Linux watchdog device (/dev/watchdog) by writing a
// byte per refresh.
type DeviceWatchdog struct {
	f *os.File
}

// OpenDeviceWatchdog opens the watchdog device node.
func OpenDeviceWatchdog(path string) (*DeviceWatchdog, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("health: open watchdog %s: %w", path, err)
	}
	return &DeviceWatchdog{f: f}, nil
}

func (w *DeviceWatchdog) Refresh() {
	if _, err := w.f.Write([]byte{'w'}); err != nil {
		log.Printf("health: watchdog refresh: %v", err)
	}
}
