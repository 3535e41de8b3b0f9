package bus

import (
	"testing"

	"github.com/relabs-tech/flight_sensors/internal/sample"
)

func TestMemoryRetainsLatest(t *testing.T) {
	m := NewMemory()

	if _, ok := m.Latest("accel"); ok {
		t.Fatal("Latest on empty bus should report no value")
	}

	r1 := sample.Calibrated{Sensor: sample.Accel, X: 1, Samples: 4}
	r2 := sample.Calibrated{Sensor: sample.Accel, X: 2, Samples: 3}
	m.Publish("accel", r1)
	m.Publish("accel", r2)

	got, ok := m.Latest("accel")
	if !ok || got != r2 {
		t.Errorf("Latest = %+v, %v; want %+v", got, ok, r2)
	}
}

func TestMemoryNotifiesSubscribers(t *testing.T) {
	m := NewMemory()
	ch := m.Subscribe("gyro")

	r := sample.Calibrated{Sensor: sample.Gyro, Y: -3.5, Samples: 1}
	m.Publish("gyro", r)

	select {
	case got := <-ch:
		if got != r {
			t.Errorf("received %+v, want %+v", got, r)
		}
	default:
		t.Fatal("subscriber not notified")
	}
}

func TestMemoryDropsWhenSubscriberIsSlow(t *testing.T) {
	m := NewMemory()
	ch := m.Subscribe("accel")

	// Fill the buffer and keep publishing; Publish must never block.
	for i := 0; i < 50; i++ {
		m.Publish("accel", sample.Calibrated{Sensor: sample.Accel, X: float32(i)})
	}

	// The retained value is still the newest one.
	got, _ := m.Latest("accel")
	if got.X != 49 {
		t.Errorf("Latest.X = %v, want 49", got.X)
	}
	// The channel holds the oldest buffered values, untorn.
	first := <-ch
	if first.X != 0 {
		t.Errorf("first buffered X = %v, want 0", first.X)
	}
}
