// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration holds the static per-axis bias and scale parameters
// applied during normalization, and the cache that delivers them to the
// acquisition loop without locking.
package calibration

import (
	"log"
	"sync/atomic"

	"github.com/relabs-tech/flight_sensors/internal/sample"
)

// Params is one complete calibration set. The gyroscope carries scale only;
// its bias is supplied dynamically by the attitude estimator, not here.
type Params struct {
	AccelBias  sample.Vec `json:"accel_bias"`
	AccelScale sample.Vec `json:"accel_scale"`

	MagBias  sample.Vec `json:"mag_bias"`
	MagScale sample.Vec `json:"mag_scale"`

	GyroScale sample.Vec `json:"gyro_scale"`
}

var identity = sample.Vec{1, 1, 1}

// Default returns neutral parameters: unit scale, zero bias.
func Default() Params {
	return Params{
		AccelScale: identity,
		MagScale:   identity,
		GyroScale:  identity,
	}
}

// sanitize replaces degenerate scale vectors with identity. A zero scale on
// any axis would zero out (or, inverted, blow up) that axis, so the whole
// vector falls back to identity rather than publishing garbage.
func (p Params) sanitize() Params {
	fix := func(v sample.Vec, name string) sample.Vec {
		for _, s := range v {
			if s == 0 {
				log.Printf("calibration: %s scale %v has a zero axis, using identity", name, v)
				return identity
			}
		}
		return v
	}
	p.AccelScale = fix(p.AccelScale, "accel")
	p.MagScale = fix(p.MagScale, "mag")
	p.GyroScale = fix(p.GyroScale, "gyro")
	return p
}

// Cache hands the latest Params to the acquisition loop. Updates atomically
// replace the whole snapshot, so a reader sees either the old or the new set,
// never a mix. Single writer, any number of readers, no locks.
type Cache struct {
	p atomic.Pointer[Params]
}

// NewCache returns a cache primed with initial (sanitized).
func NewCache(initial Params) *Cache {
	c := &Cache{}
	s := initial.sanitize()
	c.p.Store(&s)
	return c
}

// Get returns the current snapshot by value.
func (c *Cache) Get() Params {
	return *c.p.Load()
}

// Update replaces the cached parameters. Called from the configuration-change
// callback; complete snapshots only, partial updates are not accepted.
func (c *Cache) Update(p Params) {
	s := p.sanitize()
	c.p.Store(&s)
}
