// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

import (
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/flight_sensors/internal/sample"
)

// Wave synthesizes smoothly varying samples at a nominal rate, for running
// the full pipeline on a bench without hardware. It behaves like a burst
// device: Poll returns every sample "produced" since the previous poll.
type Wave struct {
	mu    sync.Mutex
	start time.Time
	last  time.Time
	rate  float64 // samples per second
	amp   float32
	scale float32
}

// NewWave returns a generator producing rate samples/s with the given
// amplitude in raw units.
func NewWave(rate float64, amp, scale float32) *Wave {
	now := time.Now()
	return &Wave{start: now, last: now, rate: rate, amp: amp, scale: scale}
}

func (w *Wave) Poll() (sample.Burst, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	n := int(now.Sub(w.last).Seconds() * w.rate)
	if n == 0 {
		return nil, nil
	}
	w.last = now

	elapsed := now.Sub(w.start).Seconds()
	b := make(sample.Burst, 0, n)
	for i := 0; i < n; i++ {
		b = append(b, sample.Raw{
			X:       w.amp * float32(math.Sin(elapsed)),
			Y:       w.amp * float32(math.Cos(elapsed*0.7)),
			Z:       w.amp * float32(math.Sin(elapsed*0.3+1)),
			Temp:    25,
			HasTemp: true,
		})
	}
	return b, nil
}

func (w *Wave) ScaleFactor() float32 { return w.scale }
func (w *Wave) SelfTest() error      { return nil }
func (w *Wave) Rearm() error         { return nil }
