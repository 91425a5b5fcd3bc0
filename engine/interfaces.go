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

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/stream"
)

// Source produces the outward stream a pipeline drains.
// *datasource.StreamingDataSource implements it.
type Source interface {
	Name() string
	// GetAll returns the outward stream. Delivery starts with Proceed.
	GetAll(ctx context.Context, useBatching bool) (*stream.Stream, error)
}

// DataSink persists the content a source emits.
// Content is a single record or a batch of records.
type DataSink interface {
	// Save persists one unit of content. Save may be called concurrently.
	Save(ctx context.Context, content interface{}) error
	// Close flushes and releases the sink.
	Close() error
}

// ErrorStrategy defines how the pipeline handles mapping and sink failures.
type ErrorStrategy int

const (
	// FailFast destroys the stream on the first error encountered.
	FailFast ErrorStrategy = iota
	// SkipErrors continues processing, dropping the failed content.
	SkipErrors
	// CollectErrors continues processing, collecting all errors for later inspection.
	CollectErrors
)

func (s ErrorStrategy) String() string {
	switch s {
	case FailFast:
		return "fail_fast"
	case SkipErrors:
		return "skip"
	case CollectErrors:
		return "collect"
	}
	return "unknown"
}

// ErrorHandler defines how errors are handled during processing.
// Custom error handlers can be used to log, collect, or transform errors.
type ErrorHandler interface {
	// HandleError processes an error that occurred for content.
	// Returning a non-nil error will stop the pipeline; returning nil will continue.
	HandleError(ctx context.Context, content interface{}, err error) error
}

// ErrorHandlerFunc is a function adapter for the ErrorHandler interface.
type ErrorHandlerFunc func(ctx context.Context, content interface{}, err error) error

// HandleError implements the ErrorHandler interface for ErrorHandlerFunc.
func (f ErrorHandlerFunc) HandleError(ctx context.Context, content interface{}, err error) error {
	return f(ctx, content, err)
}
