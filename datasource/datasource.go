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

package datasource

import (
	"context"
	"sync"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/log"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/metrics"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/stream"
)

// Package datasource turns a protocol strategy's raw stream into the outward
// stream a pipeline consumes.
//
// Each inward record is either flushed on its own or collected into a batch of
// at most BatchSize records. A flush parses the content with the data type
// strategy, drops empty results, validates single records and pushes the
// rest onto the outward stream. Every flush emits one metrics event.
//
// Parse and validation failures are reported on the outward stream and the
// affected content is dropped. A fatal inward error destroys the outward
// stream with the same error, and destroying the outward stream destroys the
// inward one, which releases the upstream connection.

// StreamingDataSource combines a protocol strategy, an optional data type
// strategy and an optional validator into one outward stream.
type StreamingDataSource struct {
	name     string
	protocol core.ProtocolStrategy
	opts     *Options
	logger   log.Logger
}

// New creates a data source named name reading from protocol.
func New(name string, protocol core.ProtocolStrategy, options ...Option) *StreamingDataSource {
	opts := &Options{}
	for _, option := range options {
		option(opts)
	}
	opts = opts.withDefaults()

	return &StreamingDataSource{
		name:     name,
		protocol: protocol,
		opts:     opts,
		logger:   opts.Logger.Named(name),
	}
}

func (d *StreamingDataSource) Name() string {
	return d.name
}

// Protocol returns the underlying protocol strategy.
func (d *StreamingDataSource) Protocol() core.ProtocolStrategy {
	return d.protocol
}

// GetAll builds the outward stream and requests the inward stream from the
// protocol strategy. Reading starts when the outward stream is proceeded.
func (d *StreamingDataSource) GetAll(ctx context.Context, useBatching bool) (*stream.Stream, error) {
	r := &run{
		source:   d,
		batching: useBatching,
	}

	streamOptions := append([]stream.Option{
		stream.WithName(d.name),
		stream.WithLogger(d.opts.Logger),
	}, d.opts.StreamOptions...)
	streamOptions = append(streamOptions,
		stream.WithOnProceed(r.start),
		stream.WithDestroyer(r.destroyInward),
	)
	r.outward = stream.New(streamOptions...)

	inward, err := d.protocol.GetData(ctx)
	if err != nil {
		d.logger.Errorw("failed to open inward stream", "err", err)
		return nil, err
	}
	r.mu.Lock()
	r.inward = inward
	r.mu.Unlock()

	if err := inward.OnData(r.onData); err != nil {
		inward.Destroy(err)
		return nil, err
	}
	inward.OnError(r.onInwardError)
	inward.OnEnd(r.onInwardEnd)

	return r.outward, nil
}

// run holds the state of one GetAll call.
type run struct {
	source   *StreamingDataSource
	batching bool

	mu      sync.Mutex
	inward  *stream.Stream
	outward *stream.Stream
	buffer  []interface{}
	ctx     context.Context
}

func (r *run) start(ctx context.Context) {
	r.mu.Lock()
	r.ctx = ctx
	inward := r.inward
	r.mu.Unlock()

	go func() {
		if err := inward.Proceed(ctx); err != nil {
			r.source.logger.Errorw("inward stream failed", "err", err)
			r.outward.Destroy(err)
		}
	}()
}

func (r *run) destroyInward() error {
	r.mu.Lock()
	inward := r.inward
	r.mu.Unlock()
	if inward != nil {
		inward.Destroy(nil)
	}
	return nil
}

// onInwardError forwards non-fatal inward reports. Fatal errors reach the
// outward stream through the inward Proceed result.
func (r *run) onInwardError(err error) {
	if r.inward.Err() != nil {
		return
	}
	r.outward.Report(err)
}

func (r *run) onData(ctx context.Context, item interface{}) error {
	if !r.batching {
		r.flush(ctx, item)
		return nil
	}

	r.mu.Lock()
	r.buffer = append(r.buffer, item)
	var batch []interface{}
	if len(r.buffer) >= r.source.opts.BatchSize {
		batch = r.buffer
		r.buffer = nil
	}
	r.mu.Unlock()

	if batch != nil {
		r.flush(ctx, batch)
	}
	return nil
}

func (r *run) onInwardEnd() {
	r.mu.Lock()
	batch := r.buffer
	r.buffer = nil
	ctx := r.ctx
	r.mu.Unlock()

	if r.batching && len(batch) > 0 {
		r.flush(ctx, batch)
	}
	if err := r.outward.End(); err != nil {
		r.source.logger.Debugw("outward stream already closed", "err", err)
	}
}

// flush parses, validates and pushes one unit of content. The caller has
// already detached raw from the buffer.
func (r *run) flush(ctx context.Context, raw interface{}) {
	d := r.source
	content := raw
	if d.opts.DataType != nil {
		parsed, err := d.opts.DataType.ParseData(raw)
		if err != nil {
			r.reportError("parse", &core.ParseError{Source: d.name, Err: err})
			return
		}
		content = parsed
	}

	if core.IsEmpty(content) {
		d.logger.Warnw("flush produced no records")
		d.opts.Metrics.Emit(metrics.Event{Name: d.name, NumberOfRecords: 0})
		return
	}

	if !r.batching {
		if err := r.validate(ctx, content); err != nil {
			r.reportError("validation", &core.ValidationError{Record: content, Err: err})
			d.opts.Metrics.Emit(metrics.Event{Name: d.name, NumberOfRecords: 0})
			return
		}
	}

	if err := r.outward.Push(content); err != nil {
		d.logger.Debugw("dropping content, outward stream closed", "err", err)
		return
	}
	d.opts.Metrics.Emit(metrics.Event{Name: d.name, NumberOfRecords: core.CountRecords(content)})
}

func (r *run) validate(ctx context.Context, content interface{}) error {
	validator := r.source.opts.Validator
	if validator == nil {
		r.source.logger.Warnw("no validator configured, record passes unvalidated")
		return nil
	}

	r.outward.Pause()
	defer r.outward.Resume()
	return validator.Validate(ctx, content)
}

func (r *run) reportError(kind string, err error) {
	if observer, ok := r.source.opts.Metrics.(metrics.ErrorObserver); ok {
		observer.ObserveError(r.source.name, kind)
	}
	r.outward.Report(err)
}
