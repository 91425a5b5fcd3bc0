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
	"context"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/log"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/stream"
)

// FindOptions bounds a paginated read.
type FindOptions struct {
	Offset int `mapstructure:"offset"`
	// Limit caps the total number of rows read. Zero means unbounded.
	Limit int `mapstructure:"limit"`
}

// PageSource is an open upstream handle that serves pages of rows.
type PageSource interface {
	FetchPage(ctx context.Context, offset, limit int) ([]core.Record, error)
	Close() error
}

// Connector opens a fresh PageSource for one read cycle.
type Connector func(ctx context.Context) (PageSource, error)

// Cursor is the pagination state of one read cycle.
type Cursor struct {
	Offset       int
	BatchLimit   int
	ResultsCount int
	Limit        int
	Exhausted    bool
}

// NewCursor starts at find.Offset with pages of batchSize rows, smaller when
// find.Limit is below batchSize.
func NewCursor(find FindOptions, batchSize int) *Cursor {
	c := &Cursor{
		Offset:     max(find.Offset, 0),
		Limit:      max(find.Limit, 0),
		BatchLimit: batchSize,
	}
	if c.Limit > 0 {
		c.BatchLimit = min(c.Limit, batchSize)
	}
	return c
}

// Advance records a fetched page of rows. An empty or short page, or reaching
// Limit, exhausts the cursor; otherwise the window moves forward and shrinks
// to the rows still allowed by Limit.
func (c *Cursor) Advance(rows int) {
	c.ResultsCount += rows

	if rows == 0 || rows < c.BatchLimit || (c.Limit > 0 && c.ResultsCount >= c.Limit) {
		c.Exhausted = true
		return
	}

	c.Offset += c.BatchLimit
	if c.Limit > 0 {
		c.BatchLimit = min(c.BatchLimit, c.Limit-c.ResultsCount)
	}
}

// pagedReader pulls pages from a PageSource into a stream, one page per call.
type pagedReader struct {
	name   string
	source PageSource
	cursor *Cursor
	handle *readHandle
	logger log.Logger
}

func (r *pagedReader) read(ctx context.Context, s *stream.Stream) error {
	offset, limit := r.cursor.Offset, r.cursor.BatchLimit

	rows, err := r.source.FetchPage(ctx, offset, limit)
	if err != nil {
		return &core.SourceError{Op: "query", Source: r.name, Err: err}
	}
	r.cursor.Advance(len(rows))
	r.logger.Debugw("fetched page", "offset", offset, "limit", limit, "rows", len(rows), "exhausted", r.cursor.Exhausted)

	if len(rows) > 0 {
		if err := s.Push(rows); err != nil {
			return err
		}
	}
	if !r.cursor.Exhausted {
		return nil
	}

	if err := r.handle.Close(); err != nil {
		r.logger.Warnw("failed to close connection", "err", err)
	}
	return s.End()
}

// paginate opens a source through connect and returns the stream reading it.
func paginate(ctx context.Context, sess *session, opts *Options, connect Connector, find FindOptions) (*stream.Stream, error) {
	h, err := sess.begin()
	if err != nil {
		return nil, err
	}

	source, err := connect(ctx)
	if err != nil {
		_ = h.Close()
		return nil, &core.SourceError{Op: "connect", Source: opts.Name, Err: err}
	}

	reader := &pagedReader{
		name:   opts.Name,
		source: source,
		cursor: NewCursor(find, opts.BatchSize),
		handle: h,
		logger: opts.Logger,
	}
	return sess.open(h, opts, reader.read, source.Close), nil
}
