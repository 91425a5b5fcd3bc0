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
	"context"
	"time"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/log"
)

const (
	DefaultHighWaterMark      = 16
	DefaultWaitForEndAttempts = 10
	DefaultWaitForEndInterval = 100 * time.Millisecond
)

// ReadFunc is the pull callback of a stream. It is called repeatedly from the
// stream's read goroutine and should push at most one chunk (or End) per call.
// A returned error destroys the stream with that error.
type ReadFunc func(ctx context.Context, s *Stream) error

// Options configures a Stream.
type Options struct {
	Name               string
	HighWaterMark      int
	WaitForEndAttempts int
	WaitForEndInterval time.Duration
	Reader             ReadFunc
	Destroyer          func() error
	OnProceed          func(ctx context.Context)
	Logger             log.Logger
}

// Option is a functional option for Options.
type Option func(*Options)

func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// WithHighWaterMark bounds the number of records buffered between Push and delivery.
func WithHighWaterMark(n int) Option {
	return func(o *Options) {
		o.HighWaterMark = n
	}
}

// WithWaitForEnd sets the stall budget: after end of input the stream waits at
// most attempts*interval for in-flight listener invocations to settle.
func WithWaitForEnd(attempts int, interval time.Duration) Option {
	return func(o *Options) {
		o.WaitForEndAttempts = attempts
		o.WaitForEndInterval = interval
	}
}

func WithReader(fn ReadFunc) Option {
	return func(o *Options) {
		o.Reader = fn
	}
}

// WithDestroyer registers the release of the upstream resource. It runs at most once,
// when the stream is destroyed.
func WithDestroyer(fn func() error) Option {
	return func(o *Options) {
		o.Destroyer = fn
	}
}

// WithOnProceed registers a hook that runs once when the stream becomes ready.
func WithOnProceed(fn func(ctx context.Context)) Option {
	return func(o *Options) {
		o.OnProceed = fn
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func (o *Options) withDefaults() *Options {
	result := &Options{}
	if o != nil {
		*result = *o
	}
	if result.Name == "" {
		result.Name = "stream"
	}
	if result.HighWaterMark <= 0 {
		result.HighWaterMark = DefaultHighWaterMark
	}
	if result.WaitForEndAttempts <= 0 {
		result.WaitForEndAttempts = DefaultWaitForEndAttempts
	}
	if result.WaitForEndInterval <= 0 {
		result.WaitForEndInterval = DefaultWaitForEndInterval
	}
	if result.Logger == nil {
		result.Logger = log.Global()
	}
	return result
}
