// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus delivers calibrated readings to their consumers. The bus
// retains the latest value per topic so late subscribers catch up
// immediately, and every publish is a whole-record write: a consumer sees
// either the previous or the current reading, never a mix of fields.
package bus

import (
	"sync"

	"github.com/relabs-tech/flight_sensors/internal/sample"
)

// Bus is the write side seen by the acquisition task.
type Bus interface {
	Publish(topic string, r sample.Calibrated) error
}

// Memory is an in-process bus. Subscribers receive readings on buffered
// channels; a subscriber that falls behind loses intermediate readings but
// can always fetch the latest retained value. Publishing never blocks.
type Memory struct {
	mu     sync.RWMutex
	latest map[string]sample.Calibrated
	subs   map[string][]chan sample.Calibrated
}

// NewMemory returns an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{
		latest: make(map[string]sample.Calibrated),
		subs:   make(map[string][]chan sample.Calibrated),
	}
}

// Publish retains r as the latest value on topic and notifies subscribers.
func (m *Memory) Publish(topic string, r sample.Calibrated) error {
	m.mu.Lock()
	m.latest[topic] = r
	subs := m.subs[topic]
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- r:
		default: // slow subscriber, drop rather than stall the publisher
		}
	}
	return nil
}

// Latest returns the retained value on topic, if any.
func (m *Memory) Latest(topic string) (sample.Calibrated, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.latest[topic]
	return r, ok
}

// Subscribe returns a channel carrying future readings on topic.
func (m *Memory) Subscribe(topic string) <-chan sample.Calibrated {
	ch := make(chan sample.Calibrated, 8)
	m.mu.Lock()
	m.subs[topic] = append(m.subs[topic], ch)
	m.mu.Unlock()
	return ch
}
