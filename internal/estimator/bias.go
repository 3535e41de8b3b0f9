// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package estimator carries the feedback values the attitude estimator sends
// back into the acquisition pipeline.
package estimator

import (
	"sync/atomic"

	"github.com/relabs-tech/flight_sensors/internal/sample"
)

// GyroBias is the dynamically estimated gyroscope bias published by the
// attitude estimator. It is distinct from the static calibration bias: the
// estimator refines it continuously while flying.
type GyroBias struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// BiasFeed is a best-effort snapshot of the latest GyroBias. The estimator
// writes, the acquisition loop reads; a value stale by one period is
// acceptable, so there is no locking, only an atomic pointer swap.
type BiasFeed struct {
	v atomic.Pointer[GyroBias]
}

// NewBiasFeed returns a feed primed with a zero bias.
func NewBiasFeed() *BiasFeed {
	f := &BiasFeed{}
	f.v.Store(&GyroBias{})
	return f
}

// Set replaces the current bias estimate.
func (f *BiasFeed) Set(b GyroBias) {
	f.v.Store(&b)
}

// Snapshot returns the latest estimate as a vector.
func (f *BiasFeed) Snapshot() sample.Vec {
	b := f.v.Load()
	return sample.Vec{b.X, b.Y, b.Z}
}
