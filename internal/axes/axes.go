// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package axes maps sensor-native axes onto the vehicle body frame. The
// mapping is a permutation plus per-axis sign, configured per sensor so the
// same pipeline works across mounts and hardware variants.
package axes

import (
	"fmt"
	"strings"

	"github.com/relabs-tech/flight_sensors/internal/sample"
)

// Map describes where each body axis takes its value from: body axis i reads
// source axis Src[i] and multiplies by Sign[i].
type Map struct {
	Src  [3]int
	Sign [3]float32
}

// Identity returns the mapping that leaves axes untouched.
func Identity() Map {
	return Map{Src: [3]int{0, 1, 2}, Sign: [3]float32{1, 1, 1}}
}

// Parse builds a Map from a spec like "y,x,-z": the body X axis reads the
// sensor Y axis, body Y reads sensor X, body Z reads sensor Z negated.
// Each of x, y, z must appear exactly once.
func Parse(spec string) (Map, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 3 {
		return Map{}, fmt.Errorf("axis map %q: want 3 comma-separated axes", spec)
	}

	var m Map
	var seen [3]bool
	for i, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		sign := float32(1)
		if strings.HasPrefix(p, "-") {
			sign = -1
			p = p[1:]
		}
		var src int
		switch p {
		case "x":
			src = 0
		case "y":
			src = 1
		case "z":
			src = 2
		default:
			return Map{}, fmt.Errorf("axis map %q: bad axis %q", spec, parts[i])
		}
		if seen[src] {
			return Map{}, fmt.Errorf("axis map %q: axis %q used twice", spec, p)
		}
		seen[src] = true
		m.Src[i] = src
		m.Sign[i] = sign
	}
	return m, nil
}

// Apply remaps v from sensor axes to body axes.
func (m Map) Apply(v sample.Vec) sample.Vec {
	var out sample.Vec
	for i := 0; i < 3; i++ {
		out[i] = m.Sign[i] * v[m.Src[i]]
	}
	return out
}

// String renders the map back in the "y,x,-z" form.
func (m Map) String() string {
	names := [3]string{"x", "y", "z"}
	parts := make([]string, 3)
	for i := 0; i < 3; i++ {
		s := names[m.Src[i]]
		if m.Sign[i] < 0 {
			s = "-" + s
		}
		parts[i] = s
	}
	return strings.Join(parts, ",")
}
