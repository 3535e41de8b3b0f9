// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package baro reads the barometric sensor. The barometer does not pass
// through the acquisition pipeline; it feeds the telemetry frame at its own
// rate.
package baro

import (
	"fmt"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// Sample is one barometric measurement.
type Sample struct {
	TemperatureC float32 `json:"temp_c"`
	PressurePa   float32 `json:"pressure_pa"`
}

// Source is anything that can produce barometric samples.
type Source interface {
	Sense() (Sample, error)
}

// BMxx80 reads a Bosch BMP280/BME280 over SPI.
type BMxx80 struct {
	dev *bmxx80.Dev
}

// NewBMxx80 opens the sensor on the given SPI device path.
func NewBMxx80(spiDev string) (*BMxx80, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("baro: periph host init: %w", err)
	}
	port, err := spireg.Open(spiDev)
	if err != nil {
		return nil, fmt.Errorf("baro: SPI open %s: %w", spiDev, err)
	}
	dev, err := bmxx80.NewSPI(port, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("baro: device init: %w", err)
	}
	return &BMxx80{dev: dev}, nil
}

func (b *BMxx80) Sense() (Sample, error) {
	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return Sample{}, fmt.Errorf("baro: sense: %w", err)
	}
	return Sample{
		TemperatureC: float32(e.Temperature.Celsius()),
		PressurePa:   float32(e.Pressure) / float32(physic.Pascal),
	}, nil
}

// Feed holds the most recent sample plus an updated flag, mirroring the GPS
// feed: the telemetry frame carries baro data only when it changed.
type Feed struct {
	mu      sync.Mutex
	latest  Sample
	updated bool
}

// NewFeed returns an empty feed.
func NewFeed() *Feed { return &Feed{} }

// Set stores a new sample and marks the feed updated.
func (f *Feed) Set(s Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = s
	f.updated = true
}

// TakeUpdated returns the latest sample and whether it changed since the
// last call, clearing the flag.
func (f *Feed) TakeUpdated() (Sample, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.updated
	f.updated = false
	return f.latest, u
}

// Run polls src every interval and feeds samples into f. Run it in its own
// goroutine; it returns only if src keeps failing.
func Run(f *Feed, src Source, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	fails := 0
	for range ticker.C {
		s, err := src.Sense()
		if err != nil {
			fails++
			if fails%10 == 1 {
				log.Printf("baro: %v", err)
			}
			continue
		}
		fails = 0
		f.Set(s)
	}
}
