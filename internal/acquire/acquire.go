// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package acquire runs the periodic sensor acquisition task: drain every
// driver's buffered samples, average them, apply calibration and bias
// correction, and publish one calibrated reading per sensor per control
// period. The loop never blocks past its stall timeout, refreshes the
// watchdog exactly once per iteration, and degrades to an alarm rather than
// missing its deadline.
package acquire

import (
	"log"
	"time"

	"github.com/relabs-tech/flight_sensors/internal/axes"
	"github.com/relabs-tech/flight_sensors/internal/baro"
	"github.com/relabs-tech/flight_sensors/internal/bus"
	"github.com/relabs-tech/flight_sensors/internal/calibration"
	"github.com/relabs-tech/flight_sensors/internal/driver"
	"github.com/relabs-tech/flight_sensors/internal/estimator"
	"github.com/relabs-tech/flight_sensors/internal/gps"
	"github.com/relabs-tech/flight_sensors/internal/health"
	"github.com/relabs-tech/flight_sensors/internal/sample"
	"github.com/relabs-tech/flight_sensors/internal/telemetry"
)

// State is the task's lifecycle state.
type State int

const (
	// Startup: self-tests not run yet.
	Startup State = iota
	// Running: normal periodic acquisition.
	Running
	// Failed: a startup self-test failed. Terminal; the task only refreshes
	// the watchdog from here on.
	Failed
)

func (s State) String() string {
	switch s {
	case Startup:
		return "startup"
	case Running:
		return "running"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// SensorHealth grades one sensor.
type SensorHealth int

const (
	HealthOK SensorHealth = iota
	// HealthDegraded: the sensor stalled last period but may recover.
	HealthDegraded
	// HealthFailed: the sensor failed its startup self-test.
	HealthFailed
)

// TempTransform converts raw temperature counts to °C with a per-sensor
// linear transform: temp = Offset + (raw+Shift)*Gain.
type TempTransform struct {
	Offset float32
	Shift  float32
	Gain   float32
}

// Apply converts one raw temperature value.
func (t TempTransform) Apply(raw float32) float32 {
	return t.Offset + (raw+t.Shift)*t.Gain
}

// IdentityTemp passes raw temperature through unchanged.
func IdentityTemp() TempTransform { return TempTransform{Gain: 1} }

// Slot binds one logical sensor into the pipeline.
type Slot struct {
	ID     sample.SensorID
	Driver driver.Driver

	// Axes maps sensor-native axes onto the body frame.
	Axes axes.Map

	// Temp converts the sensor's raw temperature channel, if it has one.
	Temp TempTransform

	// Required sensors participate in stall detection: the period waits for
	// at least one of their samples. Opportunistic sensors (the
	// magnetometer) are polled once per period and simply skipped when they
	// have nothing new.
	Required bool

	// Topic on the bus; defaults to the sensor ID.
	Topic string
}

// Config wires a Task. Bus, Calibration and at least one Slot are mandatory;
// everything else has a safe default.
type Config struct {
	Period       time.Duration
	StallTimeout time.Duration // defaults to Period

	BiasCorrectGyro bool

	Slots       []Slot
	Bus         bus.Bus
	Calibration *calibration.Cache
	GyroBias    *estimator.BiasFeed

	Alarm    health.Alarm
	Watchdog health.Watchdog

	// Optional debug telemetry.
	Telemetry telemetry.Sink
	GPS       *gps.Feed
	Baro      *baro.Feed
}

// Task is the acquisition loop. Not safe for concurrent use; it owns its
// single goroutine for the lifetime of the process.
type Task struct {
	cfg    Config
	state  State
	sensor map[sample.SensorID]SensorHealth

	lastTemp map[sample.SensorID]float32
	epoch    time.Time

	// injectable clock, for tests
	now   func() time.Time
	sleep func(time.Duration)
}

// pollBackoff is the pause between empty poll rounds, short enough to stay
// well inside a 2 ms period.
const pollBackoff = 100 * time.Microsecond

// New builds a Task from cfg.
func New(cfg Config) *Task {
	if cfg.StallTimeout == 0 {
		cfg.StallTimeout = cfg.Period
	}
	if cfg.Alarm == nil {
		cfg.Alarm = &health.LogAlarm{}
	}
	if cfg.Watchdog == nil {
		cfg.Watchdog = health.NopWatchdog{}
	}
	if cfg.Calibration == nil {
		cfg.Calibration = calibration.NewCache(calibration.Default())
	}
	for i := range cfg.Slots {
		if cfg.Slots[i].Topic == "" {
			cfg.Slots[i].Topic = string(cfg.Slots[i].ID)
		}
	}
	t := &Task{
		cfg:      cfg,
		state:    Startup,
		sensor:   make(map[sample.SensorID]SensorHealth),
		lastTemp: make(map[sample.SensorID]float32),
		now:      time.Now,
		sleep:    time.Sleep,
	}
	t.epoch = t.now()
	return t
}

// State returns the task lifecycle state.
func (t *Task) State() State { return t.state }

// Health returns the current grade of one sensor.
func (t *Task) Health(id sample.SensorID) SensorHealth { return t.sensor[id] }

// Run executes the task forever. It never returns: a failed startup parks in
// a watchdog-refresh loop instead of exiting, so the rest of the firmware
// keeps running.
func (t *Task) Run() {
	t.startup()
	next := t.now()
	for {
		t.tick()
		next = next.Add(t.cfg.Period)
		if d := next.Sub(t.now()); d > 0 {
			t.sleep(d)
		} else {
			// overran the period; restart the schedule from now rather
			// than trying to catch up with a burst of back-to-back ticks
			next = t.now()
		}
	}
}

// startup runs every driver's self-test once. Any failure is terminal.
func (t *Task) startup() {
	for _, s := range t.cfg.Slots {
		if err := s.Driver.SelfTest(); err != nil {
			log.Printf("acquire: %s self-test failed: %v", s.ID, err)
			t.sensor[s.ID] = HealthFailed
			t.state = Failed
			t.cfg.Alarm.Set(health.Critical)
			return
		}
		t.sensor[s.ID] = HealthOK
	}
	t.state = Running
	t.cfg.Alarm.Clear()
	log.Printf("acquire: self-tests passed, task running at period %s", t.cfg.Period)
}

// accum is the per-sensor running sum for one period.
type accum struct {
	sum       [3]float32
	tempSum   float32
	tempCount int
	count     int
	polled    bool
}

func (a *accum) add(b sample.Burst) {
	for _, r := range b {
		a.sum[0] += r.X
		a.sum[1] += r.Y
		a.sum[2] += r.Z
		if r.HasTemp {
			a.tempSum += r.Temp
			a.tempCount++
		}
		a.count++
	}
}

// tick runs one iteration. The watchdog refresh is unconditional: it happens
// on the failed path, the stalled path and the happy path alike.
func (t *Task) tick() {
	defer t.cfg.Watchdog.Refresh()
	if t.state != Running {
		return
	}

	start := t.now()
	deadline := start.Add(t.cfg.StallTimeout)

	accums := make([]accum, len(t.cfg.Slots))
	stalled := t.gather(accums, deadline)

	if stalled {
		t.cfg.Alarm.Set(health.Warning)
	} else {
		t.cfg.Alarm.Clear()
	}

	published := t.normalizeAndPublish(accums, start)
	t.emitTelemetry(published, start)
}

// gather polls every slot until each required sensor yielded at least one
// sample or the deadline passes. It reports whether any required sensor
// stalled.
func (t *Task) gather(accums []accum, deadline time.Time) bool {
	for {
		progress := false
		pending := false
		for i := range t.cfg.Slots {
			s := &t.cfg.Slots[i]
			a := &accums[i]
			if a.count > 0 {
				continue
			}
			if !s.Required && a.polled {
				continue
			}
			burst, err := s.Driver.Poll()
			a.polled = true
			if err != nil {
				// transient driver error: counts as no data, the deadline
				// turns persistence into a stall
				log.Printf("acquire: %s poll: %v", s.ID, err)
			} else if len(burst) > 0 {
				a.add(burst)
				progress = true
			}
			if s.Required && a.count == 0 {
				pending = true
			}
		}
		if !pending {
			return false
		}
		if !t.now().Before(deadline) {
			t.handleStalls(accums)
			return true
		}
		if !progress {
			t.sleep(pollBackoff)
		}
	}
}

// handleStalls marks every starved required sensor degraded and re-arms
// burst devices whose interrupt delivery wedges once their queue runs dry.
func (t *Task) handleStalls(accums []accum) {
	for i := range t.cfg.Slots {
		s := &t.cfg.Slots[i]
		if !s.Required || accums[i].count > 0 {
			continue
		}
		t.sensor[s.ID] = HealthDegraded
		log.Printf("acquire: %s produced no samples within %s", s.ID, t.cfg.StallTimeout)
		if r, ok := s.Driver.(driver.Rearmer); ok {
			if err := r.Rearm(); err != nil {
				log.Printf("acquire: %s rearm: %v", s.ID, err)
			}
		}
	}
}

// normalizeAndPublish turns each non-empty accumulator into a calibrated
// reading and publishes it. Sensors with zero samples are skipped: never a
// division, never a publish.
func (t *Task) normalizeAndPublish(accums []accum, start time.Time) map[sample.SensorID]sample.Calibrated {
	cal := t.cfg.Calibration.Get()
	var gyroBias sample.Vec
	if t.cfg.BiasCorrectGyro && t.cfg.GyroBias != nil {
		gyroBias = t.cfg.GyroBias.Snapshot()
	}

	published := make(map[sample.SensorID]sample.Calibrated, len(t.cfg.Slots))
	for i := range t.cfg.Slots {
		s := &t.cfg.Slots[i]
		a := &accums[i]
		if a.count == 0 {
			continue
		}
		if s.Required {
			t.sensor[s.ID] = HealthOK
		}

		n := float32(a.count)
		mean := sample.Vec{a.sum[0] / n, a.sum[1] / n, a.sum[2] / n}
		v := s.Axes.Apply(mean)

		sf := s.Driver.ScaleFactor()
		var out sample.Vec
		switch s.ID {
		case sample.Accel:
			for j := 0; j < 3; j++ {
				out[j] = v[j]*sf*cal.AccelScale[j] - cal.AccelBias[j]
			}
		case sample.Mag:
			for j := 0; j < 3; j++ {
				out[j] = v[j]*sf*cal.MagScale[j] - cal.MagBias[j]
			}
		case sample.Gyro:
			for j := 0; j < 3; j++ {
				out[j] = v[j] * sf * cal.GyroScale[j]
			}
			if t.cfg.BiasCorrectGyro {
				// dynamic feedback from the estimator, added after scaling;
				// not the same thing as the static calibration bias
				for j := 0; j < 3; j++ {
					out[j] += gyroBias[j]
				}
			}
		default:
			for j := 0; j < 3; j++ {
				out[j] = v[j] * sf
			}
		}

		temp, ok := t.lastTemp[s.ID]
		if a.tempCount > 0 {
			temp = s.Temp.Apply(a.tempSum / float32(a.tempCount))
			t.lastTemp[s.ID] = temp
		} else if !ok {
			temp = 0
		}

		r := sample.Calibrated{
			Sensor:      s.ID,
			X:           out[0],
			Y:           out[1],
			Z:           out[2],
			Temperature: temp,
			Samples:     a.count,
			Time:        start,
		}
		if err := t.cfg.Bus.Publish(s.Topic, r); err != nil {
			log.Printf("acquire: publish %s: %v", s.Topic, err)
		}
		published[s.ID] = r
	}
	return published
}

// emitTelemetry ships the per-period debug frame, best effort. Accel and
// gyro are the mandatory payload; a period missing either produces no frame.
func (t *Task) emitTelemetry(published map[sample.SensorID]sample.Calibrated, start time.Time) {
	if t.cfg.Telemetry == nil {
		return
	}
	accel, okA := published[sample.Accel]
	gyro, okG := published[sample.Gyro]
	if !okA || !okG {
		return
	}

	tick := uint32(start.Sub(t.epoch).Milliseconds())
	fb := telemetry.NewFrame(tick).
		Accel(sample.Vec{accel.X, accel.Y, accel.Z}).
		Gyro(sample.Vec{gyro.X, gyro.Y, gyro.Z}, gyro.Temperature)

	if mag, ok := published[sample.Mag]; ok {
		fb.Mag(sample.Vec{mag.X, mag.Y, mag.Z})
	}
	if t.cfg.GPS != nil {
		if fix, ok := t.cfg.GPS.TakeUpdated(); ok {
			fb.GPS(fix)
		}
	}
	if t.cfg.Baro != nil {
		if s, ok := t.cfg.Baro.TakeUpdated(); ok {
			fb.Baro(s)
		}
	}
	t.cfg.Telemetry.Send(fb.Bytes())
}
