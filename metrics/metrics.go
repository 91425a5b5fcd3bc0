//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of GoETL.
//
// GoETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GoETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GoETL. If not, see https://www.gnu.org/licenses/.

package metrics

import (
	"sync"

	"github.com/uber-go/tally/v4"
)

// Package metrics receives one event per data source flush.
//
// Zero-record flushes are reported too, so a silent upstream is visible as
// flushes without records.

// Event describes one flush of a data source.
type Event struct {
	Name            string
	NumberOfRecords int
}

// Sink consumes flush events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(event Event)
}

// ErrorObserver is optionally implemented by sinks that count non-fatal errors.
type ErrorObserver interface {
	ObserveError(name, kind string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(event Event)

func (f SinkFunc) Emit(event Event) {
	f(event)
}

type nopSink struct{}

func (nopSink) Emit(Event) {}

// Nop discards every event.
var Nop Sink = nopSink{}

// MemorySink records events in order.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
	errors map[string]int
}

func NewMemorySink() *MemorySink {
	return &MemorySink{errors: make(map[string]int)}
}

func (m *MemorySink) Emit(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *MemorySink) ObserveError(name, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

// Events returns a copy of the recorded events.
func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Errors returns how many errors of kind were observed.
func (m *MemorySink) Errors(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

// TallySink reports events as tally metrics tagged by source name.
type TallySink struct {
	scope tally.Scope
}

func NewTallySink(scope tally.Scope) *TallySink {
	return &TallySink{scope: scope.SubScope("datasource")}
}

func (t *TallySink) Emit(event Event) {
	scope := t.scope.Tagged(map[string]string{"source": event.Name})
	scope.Counter("flushes").Inc(1)
	if event.NumberOfRecords == 0 {
		scope.Counter("empty_flushes").Inc(1)
		return
	}
	scope.Counter("records").Inc(int64(event.NumberOfRecords))
	scope.Gauge("last_flush_records").Update(float64(event.NumberOfRecords))
}

func (t *TallySink) ObserveError(name, kind string) {
	t.scope.Tagged(map[string]string{"source": name, "kind": kind}).Counter("errors").Inc(1)
}
