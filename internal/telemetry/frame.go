// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry builds and ships the per-period debug frame. One frame
// carries a fixed header (sync byte + 16-bit millisecond timestamp),
// accelerometer and gyroscope payloads, and tagged optional blocks for
// magnetometer, GPS and barometer data that updated since the last frame.
//
// Frame layout:
//
//	0xFF | ts_hi ts_lo | ax ay az | gx gy gz gtemp
//	[0x01 | mx my mz]
//	[0x02 | lat lon speed course]
//	[0x03 | temp pressure]
//
// Timestamp is big-endian; payload floats are little-endian float32 except
// lat/lon which are float64.
package telemetry

import (
	"encoding/binary"
	"math"

	"github.com/relabs-tech/flight_sensors/internal/baro"
	"github.com/relabs-tech/flight_sensors/internal/gps"
	"github.com/relabs-tech/flight_sensors/internal/sample"
)

// Block tags for the optional trailing sections.
const (
	SyncByte  = 0xFF
	BlockMag  = 0x01
	BlockGPS  = 0x02
	BlockBaro = 0x03
)

// Builder assembles one frame. The zero value is not usable; start with
// NewFrame.
type Builder struct {
	buf []byte
}

// NewFrame starts a frame stamped with the low 16 bits of a millisecond
// counter.
func NewFrame(tickMillis uint32) *Builder {
	b := &Builder{buf: make([]byte, 0, 64)}
	b.buf = append(b.buf, SyncByte, byte(tickMillis>>8), byte(tickMillis))
	return b
}

func (b *Builder) put32(v float32) {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, math.Float32bits(v))
}

func (b *Builder) put64(v float64) {
	b.buf = binary.LittleEndian.AppendUint64(b.buf, math.Float64bits(v))
}

func (b *Builder) putVec(v sample.Vec) {
	b.put32(v[0])
	b.put32(v[1])
	b.put32(v[2])
}

// Accel appends the mandatory accelerometer payload.
func (b *Builder) Accel(v sample.Vec) *Builder {
	b.putVec(v)
	return b
}

// Gyro appends the mandatory gyroscope payload with its temperature.
func (b *Builder) Gyro(v sample.Vec, temp float32) *Builder {
	b.putVec(v)
	b.put32(temp)
	return b
}

// Mag appends the tagged magnetometer block.
func (b *Builder) Mag(v sample.Vec) *Builder {
	b.buf = append(b.buf, BlockMag)
	b.putVec(v)
	return b
}

// GPS appends the tagged GPS block.
func (b *Builder) GPS(f gps.Fix) *Builder {
	b.buf = append(b.buf, BlockGPS)
	b.put64(f.Latitude)
	b.put64(f.Longitude)
	b.put32(float32(f.SpeedKnots))
	b.put32(float32(f.CourseDeg))
	return b
}

// Baro appends the tagged barometer block.
func (b *Builder) Baro(s baro.Sample) *Builder {
	b.buf = append(b.buf, BlockBaro)
	b.put32(s.TemperatureC)
	b.put32(s.PressurePa)
	return b
}

// Bytes returns the assembled frame.
func (b *Builder) Bytes() []byte {
	return b.buf
}
