// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"fmt"
	"log"
	"net"
	"sync/atomic"
)

// Sink is a best-effort, non-blocking byte transport. Send reports whether
// the frame was accepted; a busy transport drops the frame instead of
// delaying the caller. Sensor timing is never perturbed by a slow debug
// consumer.
type Sink interface {
	Send(frame []byte) bool
}

// UDPSink ships frames over UDP through a small buffer and a writer
// goroutine. When the buffer is full, frames are dropped and counted.
type UDPSink struct {
	ch    chan []byte
	drops atomic.Uint64
}

// NewUDPSink dials addr and starts the writer.
func NewUDPSink(addr string) (*UDPSink, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("telemetry: dial %s: %w", addr, err)
	}

	s := &UDPSink{ch: make(chan []byte, 16)}
	go func() {
		for frame := range s.ch {
			if _, err := conn.Write(frame); err != nil {
				log.Printf("telemetry: udp write: %v", err)
			}
		}
	}()
	return s, nil
}

func (s *UDPSink) Send(frame []byte) bool {
	select {
	case s.ch <- frame:
		return true
	default:
		s.drops.Add(1)
		return false
	}
}

// Drops reports how many frames were discarded on a busy transport.
func (s *UDPSink) Drops() uint64 {
	return s.drops.Load()
}

// FuncSink adapts a function to the Sink interface, mainly for tests and
// in-process consumers.
type FuncSink func(frame []byte) bool

func (f FuncSink) Send(frame []byte) bool { return f(frame) }
