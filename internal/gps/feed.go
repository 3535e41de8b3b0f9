// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gps reads NMEA fixes from a serial receiver and keeps the latest
// one available for the telemetry frame.
package gps

import (
	"bufio"
	"fmt"
	"log"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

// Feed holds the most recent fix plus an updated-since-last-taken flag, so
// the telemetry frame only carries GPS data when something new arrived.
type Feed struct {
	mu      sync.Mutex
	latest  Fix
	updated bool
}

// NewFeed returns an empty feed.
func NewFeed() *Feed { return &Feed{} }

// Set stores a new fix and marks the feed updated.
func (f *Feed) Set(fix Fix) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = fix
	f.updated = true
}

// TakeUpdated returns the latest fix and whether it changed since the last
// call, clearing the updated flag.
func (f *Feed) TakeUpdated() (Fix, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.updated
	f.updated = false
	return f.latest, u
}

// Latest returns the most recent fix without touching the updated flag.
func (f *Feed) Latest() Fix {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

// RunSerial opens the GPS serial port and feeds RMC sentences into f until
// a read error occurs. Run it in its own goroutine.
func RunSerial(f *Feed, portName string, baud uint) error {
	opts := serial.OpenOptions{
		PortName:        portName,
		BaudRate:        baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return fmt.Errorf("gps: open %s: %w", portName, err)
	}
	defer port.Close()
	log.Printf("gps: serial port opened on %s at %d baud", portName, baud)

	reader := bufio.NewReader(port)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("gps: read: %w", err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// noisy receivers emit partial sentences, skip them
			continue
		}

		if sentence.DataType() != nmea.TypeRMC {
			continue
		}
		m := sentence.(nmea.RMC)
		f.Set(Fix{
			Time:       m.Time.String(),
			Date:       m.Date.String(),
			Latitude:   m.Latitude,
			Longitude:  m.Longitude,
			SpeedKnots: m.Speed,
			CourseDeg:  m.Course,
			Validity:   string(m.Validity),
		})
	}
}
