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

package sinks

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// CSVOptions configures CSV output.
type CSVOptions struct {
	Comma       rune
	UseCRLF     bool
	WriteHeader bool
	Headers     []string
}

type CSVOption func(*CSVOptions)

// WithHeaders fixes the column order. Without it the sorted keys of the first record are used.
func WithHeaders(headers ...string) CSVOption {
	return func(opts *CSVOptions) {
		opts.Headers = append([]string(nil), headers...)
	}
}

func WithComma(delim rune) CSVOption {
	return func(opts *CSVOptions) {
		opts.Comma = delim
	}
}

func WithWriteHeader(write bool) CSVOption {
	return func(opts *CSVOptions) {
		opts.WriteHeader = write
	}
}

func WithUseCRLF(useCRLF bool) CSVOption {
	return func(opts *CSVOptions) {
		opts.UseCRLF = useCRLF
	}
}

// CSVSink writes records as CSV rows.
type CSVSink struct {
	mu          sync.Mutex
	writer      *csv.Writer
	closer      io.Closer
	options     CSVOptions
	headers     []string
	wroteHeader bool
	errorState  bool
	stats       Stats
}

func NewCSVSink(w io.WriteCloser, opts ...CSVOption) *CSVSink {
	options := CSVOptions{
		Comma:       ',',
		WriteHeader: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	cw := csv.NewWriter(w)
	cw.Comma = options.Comma
	cw.UseCRLF = options.UseCRLF

	return &CSVSink{
		writer:  cw,
		closer:  w,
		options: options,
		headers: append([]string(nil), options.Headers...),
	}
}

// CreateCSVSink creates or truncates the file at path.
func CreateCSVSink(path string, opts ...CSVOption) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &SinkError{Sink: "csv", Op: "create", Err: err}
	}
	return NewCSVSink(f, opts...), nil
}

// Save writes every record of content as one row and flushes.
func (c *CSVSink) Save(ctx context.Context, content interface{}) error {
	records, err := Records(content)
	if err != nil {
		return &SinkError{Sink: "csv", Op: "save", Err: err}
	}
	if len(records) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.errorState {
		return &SinkError{Sink: "csv", Op: "save", Err: errWriterFailed}
	}

	start := time.Now()
	if len(c.headers) == 0 {
		for key := range records[0] {
			c.headers = append(c.headers, key)
		}
		sort.Strings(c.headers)
	}
	if !c.wroteHeader && c.options.WriteHeader {
		if err := c.writer.Write(c.headers); err != nil {
			c.errorState = true
			return &SinkError{Sink: "csv", Op: "write_header", Err: err}
		}
		c.wroteHeader = true
	}

	row := make([]string, len(c.headers))
	for _, record := range records {
		for i, key := range c.headers {
			row[i] = formatValue(record[key])
		}
		if err := c.writer.Write(row); err != nil {
			c.errorState = true
			return &SinkError{Sink: "csv", Op: "write_row", Err: err}
		}
	}

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.errorState = true
		return &SinkError{Sink: "csv", Op: "flush", Err: err}
	}
	c.stats.observe(len(records), start)
	return nil
}

func (c *CSVSink) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *CSVSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return &SinkError{Sink: "csv", Op: "flush", Err: err}
	}
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
