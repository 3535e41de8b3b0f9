// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/flight_sensors/internal/sample"
)

// MQTT publishes readings to an MQTT broker as retained JSON, so the broker
// keeps the latest value per topic for late subscribers.
type MQTT struct {
	client mqtt.Client
	prefix string
}

// NewMQTT wraps an already-connected client. prefix is prepended to every
// topic, e.g. "flight/sensors".
func NewMQTT(client mqtt.Client, prefix string) *MQTT {
	return &MQTT{client: client, prefix: prefix}
}

// Publish sends r on prefix/topic at QoS 0, retained. The token is not
// waited on: the acquisition period must not stretch on a slow broker, and
// QoS 0 loss is acceptable for a value that is superseded 2 ms later.
func (m *MQTT) Publish(topic string, r sample.Calibrated) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("bus: marshal %s: %w", topic, err)
	}
	full := m.prefix + "/" + topic
	token := m.client.Publish(full, 0, true, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Printf("bus: publish %s: %v", full, token.Error())
		}
	}()
	return nil
}
