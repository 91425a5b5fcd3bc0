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

package protocols

import (
	"net/http"
	"sync"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/log"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/stream"
)

// Package protocols provides implementations of core.ProtocolStrategy for
// reading raw records from external systems.
//
// Every strategy is reusable: each GetData call opens its own upstream handle,
// returns a fresh stream and releases the handle when that stream ends or is
// destroyed. Connection settings can be swapped between reads.
//
// This file contains the options shared by all strategies and the bookkeeping
// of the active read.

// DefaultBatchSize is the page size used when none is configured.
const DefaultBatchSize = 1000

// Options configures a protocol strategy.
type Options struct {
	Name          string
	BatchSize     int
	Logger        log.Logger
	StreamOptions []stream.Option
	Connector     Connector
	HTTPClient    *http.Client
	S3Client      S3API
}

// Option is a functional option for Options.
type Option func(*Options)

// WithName names the strategy in logs, errors and stream names.
func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// WithBatchSize sets the page size of paginated reads.
func WithBatchSize(size int) Option {
	return func(o *Options) {
		o.BatchSize = size
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithStreamOptions passes options to every stream the strategy creates.
func WithStreamOptions(opts ...stream.Option) Option {
	return func(o *Options) {
		o.StreamOptions = append(o.StreamOptions, opts...)
	}
}

// WithConnector replaces the default connection factory of the SQL and Mongo strategies.
func WithConnector(connector Connector) Option {
	return func(o *Options) {
		o.Connector = connector
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}

// WithS3Client replaces the client built from S3Settings.
func WithS3Client(client S3API) Option {
	return func(o *Options) {
		o.S3Client = client
	}
}

func (o *Options) withDefaults(kind string) *Options {
	result := &Options{}
	if o != nil {
		*result = *o
	}
	if result.Name == "" {
		result.Name = kind
	}
	if result.BatchSize <= 0 {
		result.BatchSize = DefaultBatchSize
	}
	if result.Logger == nil {
		result.Logger = log.Global()
	}
	result.Logger = result.Logger.Named(result.Name)
	return result
}

func buildOptions(kind string, options []Option) *Options {
	opts := &Options{}
	for _, option := range options {
		option(opts)
	}
	return opts.withDefaults(kind)
}

// session tracks the single active read of a strategy.
type session struct {
	mu     sync.Mutex
	active *readHandle
}

// readHandle owns the upstream resource of one read cycle.
type readHandle struct {
	owner   *session
	stream  *stream.Stream
	release func() error
	once    sync.Once
	err     error
}

func (s *session) begin() (*readHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, core.ErrReadInProgress
	}
	h := &readHandle{owner: s}
	s.active = h
	return h, nil
}

func (s *session) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// open creates the stream of h. The stream's destroyer releases the upstream.
func (s *session) open(h *readHandle, opts *Options, read stream.ReadFunc, release func() error) *stream.Stream {
	streamOpts := []stream.Option{stream.WithName(opts.Name), stream.WithLogger(opts.Logger)}
	streamOpts = append(streamOpts, opts.StreamOptions...)
	streamOpts = append(streamOpts, stream.WithReader(read), stream.WithDestroyer(h.Close))

	st := stream.New(streamOpts...)

	s.mu.Lock()
	h.stream = st
	h.release = release
	s.mu.Unlock()
	return st
}

// destroy tears down the active read, if any.
func (s *session) destroy() error {
	s.mu.Lock()
	h := s.active
	var st *stream.Stream
	if h != nil {
		st = h.stream
	}
	s.mu.Unlock()

	if h == nil {
		return nil
	}
	if st != nil {
		st.Destroy(nil)
	}
	return h.Close()
}

// Close releases the upstream exactly once and ends the read cycle.
func (h *readHandle) Close() error {
	h.once.Do(func() {
		h.owner.mu.Lock()
		release := h.release
		if h.owner.active == h {
			h.owner.active = nil
		}
		h.owner.mu.Unlock()

		if release != nil {
			h.err = release()
		}
	})
	return h.err
}
