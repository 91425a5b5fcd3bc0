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

package stream

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPushAfterEnd is returned by Push once the end-of-input sentinel has been pushed.
	ErrPushAfterEnd = errors.New("stream: push after end of input")
	// ErrStreamClosed is returned when pushing to or proceeding a stream in a terminal state.
	ErrStreamClosed = errors.New("stream: closed")
	// ErrStreamDestroyed is the failure reported to Proceed when Destroy is called without a reason.
	ErrStreamDestroyed = errors.New("stream: destroyed")
	// ErrListenerAfterReady is returned when a data listener is registered after Proceed.
	ErrListenerAfterReady = errors.New("stream: listener registered after ready")
	// ErrStreamNotEnded matches every *StreamNotEndedError via errors.Is.
	ErrStreamNotEnded = errors.New("stream: not ended")
)

// StreamNotEndedError reports that input ended but in-flight listener invocations
// did not settle within the stall budget.
type StreamNotEndedError struct {
	Stream     string
	Processing int
	Attempts   int
	Interval   time.Duration
}

func (e *StreamNotEndedError) Error() string {
	return fmt.Sprintf("stream %s not ended: %d invocations still processing after %d attempts every %s",
		e.Stream, e.Processing, e.Attempts, e.Interval)
}

func (e *StreamNotEndedError) Is(target error) bool {
	return target == ErrStreamNotEnded
}

// ListenerPanicError wraps a value recovered from a panicking listener.
type ListenerPanicError struct {
	Value interface{}
}

func (e *ListenerPanicError) Error() string {
	return fmt.Sprintf("stream listener panic: %v", e.Value)
}
