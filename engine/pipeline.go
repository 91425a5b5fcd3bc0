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

package engine

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/log"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/stream"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/transform"
)

// Package engine wires a data source to a sink.
//
// A Pipeline drains the outward stream of a Source, optionally maps every
// record through filters and transformers, and saves each unit of content to
// a DataSink. Reported stream errors (parse and validation failures) never
// stop a pipeline on their own; mapping and sink failures follow the
// configured ErrorStrategy.
//
// Example usage:
//
//   pipeline, err := engine.NewPipeline().
//       From(source, true).
//       Where(myFilter).
//       To(sink).
//       WithErrorStrategy(engine.SkipErrors).
//       Build()
//   if err != nil { log.Fatal(err) }
//   if err := pipeline.Execute(context.Background()); err != nil { log.Fatal(err) }

// ErrNoSource is returned by Build when From was not called.
var ErrNoSource = errors.New("pipeline requires a data source")

// ErrNoSink is returned by Build when To was not called.
var ErrNoSink = errors.New("pipeline requires a data sink")

// PipelineBuilder provides a fluent API for constructing pipelines.
type PipelineBuilder struct {
	pipeline *Pipeline
}

// NewPipeline creates a new PipelineBuilder.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			transformers: make([]core.Transformer, 0),
			filters:      make([]core.Filter, 0),
			strategy:     FailFast,
		},
	}
}

// From sets the source and whether it should batch its records.
func (pb *PipelineBuilder) From(source Source, useBatching bool) *PipelineBuilder {
	pb.pipeline.source = source
	pb.pipeline.useBatching = useBatching
	return pb
}

// Transform adds a Transformer applied to every record before it is saved.
func (pb *PipelineBuilder) Transform(transformer core.Transformer) *PipelineBuilder {
	pb.pipeline.transformers = append(pb.pipeline.transformers, transformer)
	return pb
}

// Filter adds a Filter applied to every record before the transformers.
func (pb *PipelineBuilder) Filter(filter core.Filter) *PipelineBuilder {
	pb.pipeline.filters = append(pb.pipeline.filters, filter)
	return pb
}

// Map adds a mapping transformation using a function.
func (pb *PipelineBuilder) Map(fn func(ctx context.Context, record core.Record) (core.Record, error)) *PipelineBuilder {
	return pb.Transform(core.TransformFunc(fn))
}

// Where adds a filtering condition using a function.
func (pb *PipelineBuilder) Where(fn func(ctx context.Context, record core.Record) (bool, error)) *PipelineBuilder {
	return pb.Filter(core.FilterFunc(fn))
}

// To sets the DataSink for the pipeline.
func (pb *PipelineBuilder) To(sink DataSink) *PipelineBuilder {
	pb.pipeline.sink = sink
	return pb
}

// WithErrorStrategy sets the error handling strategy for the pipeline.
func (pb *PipelineBuilder) WithErrorStrategy(strategy ErrorStrategy) *PipelineBuilder {
	pb.pipeline.strategy = strategy
	return pb
}

// WithErrorHandler sets a custom error handler for the pipeline.
// The handler also sees errors reported on the source stream.
func (pb *PipelineBuilder) WithErrorHandler(handler ErrorHandler) *PipelineBuilder {
	pb.pipeline.errorHandler = handler
	return pb
}

func (pb *PipelineBuilder) WithLogger(logger log.Logger) *PipelineBuilder {
	pb.pipeline.logger = logger
	return pb
}

// Build validates and constructs the Pipeline.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	p := pb.pipeline
	if p.source == nil {
		return nil, ErrNoSource
	}
	if p.sink == nil {
		return nil, ErrNoSink
	}
	if len(p.filters) > 0 || len(p.transformers) > 0 {
		p.mapping = transform.NewMapping(nil,
			transform.WithFilters(p.filters...),
			transform.WithTransformers(p.transformers...))
	}
	if p.logger == nil {
		p.logger = log.Global()
	}
	p.logger = p.logger.Named("pipeline").With("source", p.source.Name())
	return p, nil
}

// Stats is a snapshot of a pipeline's progress.
type Stats struct {
	Saves          int64
	RecordsWritten int64
	Skipped        int64
	Failed         int64
	Reported       int64
	Duration       time.Duration
}

// Pipeline drains one source into one sink.
type Pipeline struct {
	transformers []core.Transformer
	filters      []core.Filter
	mapping      *transform.Mapping
	source       Source
	useBatching  bool
	sink         DataSink
	strategy     ErrorStrategy
	errorHandler ErrorHandler
	logger       log.Logger

	mu     sync.Mutex
	stats  Stats
	errors error
}

// Name returns the name of the pipeline's source.
func (p *Pipeline) Name() string {
	return p.source.Name()
}

// Execute runs the pipeline until the source stream is terminal and closes
// the sink. It returns the stream's fatal error, if any, combined with the
// sink's close error.
func (p *Pipeline) Execute(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if cerr := p.sink.Close(); cerr != nil {
			err = multierr.Append(err, errors.WithMessage(cerr, "close sink"))
		}
		p.mu.Lock()
		p.stats.Duration = time.Since(start)
		p.mu.Unlock()
	}()

	out, err := p.source.GetAll(ctx, p.useBatching)
	if err != nil {
		return errors.WithMessage(err, "open source")
	}
	if err := out.OnData(p.onData); err != nil {
		out.Destroy(err)
		return err
	}
	out.OnError(func(err error) {
		p.onStreamError(ctx, out, err)
	})

	p.logger.Infow("pipeline started", "batching", p.useBatching, "strategy", p.strategy.String())
	if err := out.Proceed(ctx); err != nil {
		p.logger.Errorw("pipeline failed", "err", err)
		return err
	}
	stats := p.Stats()
	p.logger.Infow("pipeline finished",
		"saves", stats.Saves,
		"records", stats.RecordsWritten,
		"failed", stats.Failed,
		"reported", stats.Reported)
	return nil
}

// Stats returns a snapshot of the pipeline's counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Errors returns the errors gathered under CollectErrors, combined with multierr.
func (p *Pipeline) Errors() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errors
}

func (p *Pipeline) onData(ctx context.Context, item interface{}) error {
	content := item
	if p.mapping != nil {
		mapped, err := p.mapping.ParseData(item)
		if err != nil {
			return p.handleError(ctx, item, errors.WithMessage(err, "map"))
		}
		content = mapped
	}
	if core.IsEmpty(content) {
		p.mu.Lock()
		p.stats.Skipped++
		p.mu.Unlock()
		return nil
	}

	if err := p.sink.Save(ctx, content); err != nil {
		return p.handleError(ctx, content, errors.WithMessage(err, "save"))
	}
	p.mu.Lock()
	p.stats.Saves++
	p.stats.RecordsWritten += int64(core.CountRecords(content))
	p.mu.Unlock()
	return nil
}

// onStreamError sees every error event of the outward stream. Fatal ones are
// returned by Proceed; reported ones are logged and handed to the handler.
func (p *Pipeline) onStreamError(ctx context.Context, out *stream.Stream, err error) {
	if out.Err() != nil {
		return
	}
	p.mu.Lock()
	p.stats.Reported++
	if p.strategy == CollectErrors {
		p.errors = multierr.Append(p.errors, err)
	}
	p.mu.Unlock()

	p.logger.Warnw("content rejected", "err", err)
	if p.errorHandler != nil {
		if herr := p.errorHandler.HandleError(ctx, nil, err); herr != nil {
			out.Destroy(herr)
		}
	}
}

// handleError handles errors according to the pipeline's error strategy and handler.
// A non-nil result destroys the stream.
func (p *Pipeline) handleError(ctx context.Context, content interface{}, err error) error {
	p.mu.Lock()
	p.stats.Failed++
	if p.strategy == CollectErrors {
		p.errors = multierr.Append(p.errors, err)
	}
	p.mu.Unlock()

	switch p.strategy {
	case SkipErrors, CollectErrors:
		p.logger.Warnw("content dropped", "err", err)
		if p.errorHandler != nil {
			return p.errorHandler.HandleError(ctx, content, err)
		}
		return nil
	default:
		return err
	}
}

// WaitAll executes pipelines concurrently. The first failure cancels the
// others; the result is that first error.
func WaitAll(ctx context.Context, pipelines ...*Pipeline) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, p := range pipelines {
		p := p
		group.Go(func() error {
			return errors.WithMessagef(p.Execute(groupCtx), "pipeline %s", p.Name())
		})
	}
	return group.Wait()
}
