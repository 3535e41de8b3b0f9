// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

import (
	"sync"

	"github.com/relabs-tech/flight_sensors/internal/sample"
)

// Sim is a scripted driver for tests. Each Push queues one burst; each Poll
// pops the next queued burst, or nothing. Pushing single-sample bursts models
// a latest-value device, multi-sample bursts model a FIFO device.
type Sim struct {
	mu    sync.Mutex
	scale float32
	queue []sample.Burst

	selfTestErr error
	pollErr     error

	polls  int
	rearms int
}

// NewSim returns a sim driver reporting the given scale factor.
func NewSim(scale float32) *Sim {
	return &Sim{scale: scale}
}

// Push queues a burst for a future Poll.
func (s *Sim) Push(b sample.Burst) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, b)
}

// PushSamples queues the given samples as one burst.
func (s *Sim) PushSamples(raw ...sample.Raw) {
	s.Push(sample.Burst(raw))
}

// FailSelfTest makes SelfTest return err.
func (s *Sim) FailSelfTest(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfTestErr = err
}

// FailPoll makes every Poll return err until cleared with nil.
func (s *Sim) FailPoll(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollErr = err
}

// Polls reports how many times Poll was called.
func (s *Sim) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

// Rearms reports how many forced reads were issued.
func (s *Sim) Rearms() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rearms
}

func (s *Sim) Poll() (sample.Burst, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.pollErr != nil {
		return nil, s.pollErr
	}
	if len(s.queue) == 0 {
		return nil, nil
	}
	b := s.queue[0]
	s.queue = s.queue[1:]
	return b, nil
}

func (s *Sim) ScaleFactor() float32 { return s.scale }

func (s *Sim) SelfTest() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfTestErr
}

func (s *Sim) Rearm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rearms++
	return nil
}
