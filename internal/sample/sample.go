// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sample defines the value types that flow through the acquisition
// pipeline: raw driver samples on the way in, calibrated readings on the way
// out.
package sample

import "time"

// SensorID names one logical sensor in the pipeline. A single physical
// device may back more than one logical sensor (an MPU6000 serves both
// the accelerometer and the gyroscope).
type SensorID string

const (
	Accel SensorID = "accel"
	Gyro  SensorID = "gyro"
	Mag   SensorID = "mag"
)

// Raw is a single raw sensor sample in device axes. Units are whatever the
// driver delivers; the adapter's ScaleFactor converts them to physical units
// during normalization.
type Raw struct {
	X, Y, Z float32

	// Temp is the raw temperature channel reading, valid only when HasTemp
	// is set. Devices without a temperature channel leave it unset.
	Temp    float32
	HasTemp bool
}

// Burst is the ordered sequence of samples a driver buffered between two
// polls. It is owned by the aggregator for one control period and discarded
// after accumulation.
type Burst []Raw

// Calibrated is one published reading: body-frame axes in physical units,
// calibration applied.
type Calibrated struct {
	Sensor SensorID `json:"sensor"`

	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`

	// Temperature in °C. Carries the previous period's value for sensors
	// that produced no temperature sample this period.
	Temperature float32 `json:"temp_c"`

	// Samples is the number of raw samples averaged into this reading.
	Samples int `json:"samples"`

	Time time.Time `json:"time"`
}

// Vec is a plain 3-vector used for calibration and bias values.
type Vec [3]float32
