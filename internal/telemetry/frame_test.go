package telemetry

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/relabs-tech/flight_sensors/internal/baro"
	"github.com/relabs-tech/flight_sensors/internal/gps"
	"github.com/relabs-tech/flight_sensors/internal/sample"
)

func f32(t *testing.T, b []byte) float32 {
	t.Helper()
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func TestFrameHeader(t *testing.T) {
	b := NewFrame(0x12345).Accel(sample.Vec{}).Gyro(sample.Vec{}, 0).Bytes()

	if b[0] != SyncByte {
		t.Errorf("sync byte = 0x%02X, want 0x%02X", b[0], SyncByte)
	}
	// Low 16 bits of the tick, big-endian.
	if b[1] != 0x23 || b[2] != 0x45 {
		t.Errorf("timestamp bytes = 0x%02X 0x%02X, want 0x23 0x45", b[1], b[2])
	}
}

func TestMandatoryPayloadLayout(t *testing.T) {
	b := NewFrame(0).
		Accel(sample.Vec{1, 2, 3}).
		Gyro(sample.Vec{4, 5, 6}, 36.5).
		Bytes()

	// header(3) + accel(12) + gyro(16)
	if len(b) != 31 {
		t.Fatalf("frame length = %d, want 31", len(b))
	}
	if got := f32(t, b[3:]); got != 1 {
		t.Errorf("accel X = %v, want 1", got)
	}
	if got := f32(t, b[15:]); got != 4 {
		t.Errorf("gyro X = %v, want 4", got)
	}
	if got := f32(t, b[27:]); got != 36.5 {
		t.Errorf("gyro temp = %v, want 36.5", got)
	}
}

func TestOptionalBlocksOnlyWhenAdded(t *testing.T) {
	base := NewFrame(0).Accel(sample.Vec{}).Gyro(sample.Vec{}, 0).Bytes()
	if len(base) != 31 {
		t.Fatalf("frame without optional blocks = %d bytes, want 31", len(base))
	}

	withMag := NewFrame(0).Accel(sample.Vec{}).Gyro(sample.Vec{}, 0).
		Mag(sample.Vec{7, 8, 9}).Bytes()
	if withMag[31] != BlockMag {
		t.Errorf("mag tag = 0x%02X, want 0x%02X", withMag[31], BlockMag)
	}
	if got := f32(t, withMag[32:]); got != 7 {
		t.Errorf("mag X = %v, want 7", got)
	}
	if len(withMag) != 31+1+12 {
		t.Errorf("frame length = %d, want %d", len(withMag), 31+1+12)
	}
}

func TestGPSAndBaroBlocks(t *testing.T) {
	fix := gps.Fix{Latitude: 52.52, Longitude: 13.405, SpeedKnots: 3.5, CourseDeg: 271}
	bs := baro.Sample{TemperatureC: 21.5, PressurePa: 101325}

	b := NewFrame(0).Accel(sample.Vec{}).Gyro(sample.Vec{}, 0).
		GPS(fix).Baro(bs).Bytes()

	if b[31] != BlockGPS {
		t.Fatalf("gps tag = 0x%02X, want 0x%02X", b[31], BlockGPS)
	}
	lat := math.Float64frombits(binary.LittleEndian.Uint64(b[32:]))
	if lat != 52.52 {
		t.Errorf("lat = %v, want 52.52", lat)
	}

	baroOff := 31 + 1 + 24
	if b[baroOff] != BlockBaro {
		t.Fatalf("baro tag = 0x%02X, want 0x%02X", b[baroOff], BlockBaro)
	}
	if got := f32(t, b[baroOff+1:]); got != 21.5 {
		t.Errorf("baro temp = %v, want 21.5", got)
	}
}

func TestFuncSink(t *testing.T) {
	var got []byte
	s := FuncSink(func(frame []byte) bool {
		got = frame
		return true
	})
	frame := NewFrame(1).Accel(sample.Vec{}).Gyro(sample.Vec{}, 0).Bytes()
	if !s.Send(frame) {
		t.Fatal("Send returned false")
	}
	if len(got) != len(frame) {
		t.Errorf("sink received %d bytes, want %d", len(got), len(frame))
	}
}
