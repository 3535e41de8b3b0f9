// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/b3nn0/goflying/mpu9250"

	"github.com/relabs-tech/flight_sensors/internal/sample"
)

// MPU9250 wraps the goflying MPU9250 driver. The chip serves three logical
// sensors from one die: the accelerometer and gyroscope share every FIFO
// entry (identical sample counts per period), while the magnetometer updates
// at its own, much lower rate and yields at most one sample per poll.
type MPU9250 struct {
	mpu *mpu9250.MPU9250

	mu          sync.Mutex
	accelQueue  sample.Burst
	gyroQueue   sample.Burst
	magPending  *sample.Raw
	lastMagTime time.Time
}

// NewMPU9250 opens the MPU9250 on the I2C bus and starts its sampling
// goroutine. gyroRange is in °/s, accelRange in g, sampleRate in Hz.
func NewMPU9250(gyroRange, accelRange, sampleRate int, enableMag bool) (*MPU9250, error) {
	mpu, err := mpu9250.NewMPU9250(gyroRange, accelRange, sampleRate, enableMag, false)
	if err != nil {
		return nil, fmt.Errorf("mpu9250: open: %w", err)
	}

	// LPF at 21 Hz keeps airframe vibration out of the attitude estimate.
	if err := mpu.SetGyroLPF(21); err != nil {
		log.Printf("mpu9250: set gyro LPF: %v", err)
	}
	if err := mpu.SetAccelLPF(21); err != nil {
		log.Printf("mpu9250: set accel LPF: %v", err)
	}

	return &MPU9250{mpu: mpu}, nil
}

// drain moves everything buffered by the driver into the per-sensor queues.
// Accel and gyro values travel in the same FIFO entry, so one drain feeds
// both queues equally.
func (d *MPU9250) drain() {
	for {
		select {
		case data := <-d.mpu.CBuf:
			if data == nil {
				return
			}
			if data.GAError == nil {
				d.accelQueue = append(d.accelQueue, sample.Raw{
					X: float32(data.A1), Y: float32(data.A2), Z: float32(data.A3),
					Temp: float32(data.Temp), HasTemp: true,
				})
				d.gyroQueue = append(d.gyroQueue, sample.Raw{
					X: float32(data.G1), Y: float32(data.G2), Z: float32(data.G3),
					Temp: float32(data.Temp), HasTemp: true,
				})
			}
			if data.MagError == nil && data.TM.After(d.lastMagTime) {
				d.lastMagTime = data.TM
				d.magPending = &sample.Raw{
					X: float32(data.M1), Y: float32(data.M2), Z: float32(data.M3),
				}
			}
		default:
			return
		}
	}
}

// selfTest waits for one live FIFO entry. The sampling goroutine starts as
// soon as the device opens, so a healthy chip produces data within a few
// sample intervals.
func (d *MPU9250) selfTest() error {
	select {
	case data := <-d.mpu.C:
		if data.GAError != nil {
			return fmt.Errorf("mpu9250: self-test read: %w", data.GAError)
		}
		return nil
	case <-time.After(time.Second):
		return fmt.Errorf("mpu9250: self-test: no data within 1s")
	}
}

// rearm issues one forced read. After a starved queue the interrupt line can
// stay idle; consuming a value from the live channel kickstarts delivery.
func (d *MPU9250) rearm() error {
	select {
	case <-d.mpu.C:
		return nil
	case <-time.After(10 * time.Millisecond):
		return fmt.Errorf("mpu9250: rearm: device still silent")
	}
}

// Close stops the device's sampling goroutine.
func (d *MPU9250) Close() {
	d.mpu.CloseMPU()
}

// Accel returns the accelerometer facade.
func (d *MPU9250) Accel() Driver { return &mpuAccel{d} }

// Gyro returns the gyroscope facade.
func (d *MPU9250) Gyro() Driver { return &mpuGyro{d} }

// Mag returns the magnetometer facade.
func (d *MPU9250) Mag() Driver { return &mpuMag{d} }

type mpuAccel struct{ d *MPU9250 }

func (a *mpuAccel) Poll() (sample.Burst, error) {
	a.d.mu.Lock()
	defer a.d.mu.Unlock()
	a.d.drain()
	b := a.d.accelQueue
	a.d.accelQueue = nil
	return b, nil
}

// ScaleFactor is 1: goflying scales to g internally.
func (a *mpuAccel) ScaleFactor() float32 { return 1 }
func (a *mpuAccel) SelfTest() error      { return a.d.selfTest() }
func (a *mpuAccel) Rearm() error         { return a.d.rearm() }

type mpuGyro struct{ d *MPU9250 }

func (g *mpuGyro) Poll() (sample.Burst, error) {
	g.d.mu.Lock()
	defer g.d.mu.Unlock()
	g.d.drain()
	b := g.d.gyroQueue
	g.d.gyroQueue = nil
	return b, nil
}

// ScaleFactor is 1: goflying scales to °/s internally.
func (g *mpuGyro) ScaleFactor() float32 { return 1 }
func (g *mpuGyro) SelfTest() error      { return g.d.selfTest() }
func (g *mpuGyro) Rearm() error         { return g.d.rearm() }

type mpuMag struct{ d *MPU9250 }

// Poll returns at most one sample: the magnetometer is a latest-value
// device, not a FIFO.
func (m *mpuMag) Poll() (sample.Burst, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	m.d.drain()
	if m.d.magPending == nil {
		return nil, nil
	}
	b := sample.Burst{*m.d.magPending}
	m.d.magPending = nil
	return b, nil
}

// ScaleFactor is 1: goflying scales to µT internally.
func (m *mpuMag) ScaleFactor() float32 { return 1 }
func (m *mpuMag) SelfTest() error      { return m.d.selfTest() }
