// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package driver is the uniform adapter layer over heterogeneous sensor
// hardware. Burst devices buffer many samples between polls and drain their
// whole queue per call; latest-value devices return at most one sample.
// Callers never block here: "no data yet" is an empty burst, and the
// acquisition loop retries against its own deadline.
package driver

import "github.com/relabs-tech/flight_sensors/internal/sample"

// Driver is one logical sensor as seen by the acquisition loop.
type Driver interface {
	// Poll returns the samples currently buffered by the device, possibly
	// none. It must not block.
	Poll() (sample.Burst, error)

	// ScaleFactor converts raw sample units to physical units. Drivers that
	// already deliver physical units report 1.
	ScaleFactor() float32

	// SelfTest exercises the device once at startup. An error is fatal for
	// the acquisition task.
	SelfTest() error
}

// Rearmer is implemented by burst devices whose interrupt-driven delivery
// wedges once their queue is starved. After a stall the acquisition loop
// issues one forced read through Rearm so the device triggers again.
type Rearmer interface {
	Rearm() error
}
