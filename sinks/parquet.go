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
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
)

// ParquetOptions configures Parquet output.
type ParquetOptions struct {
	Compression  compress.Compression
	FieldOrder   []string
	RowGroupSize int64
}

type ParquetOption func(*ParquetOptions)

func WithCompression(compression compress.Compression) ParquetOption {
	return func(opts *ParquetOptions) {
		opts.Compression = compression
	}
}

// WithFieldOrder fixes the schema columns. Without it the sorted keys of the first record are used.
func WithFieldOrder(fields ...string) ParquetOption {
	return func(opts *ParquetOptions) {
		opts.FieldOrder = append([]string(nil), fields...)
	}
}

func WithRowGroupSize(size int64) ParquetOption {
	return func(opts *ParquetOptions) {
		opts.RowGroupSize = size
	}
}

// ParquetSink writes every Save as one record batch. The schema is inferred
// from the first saved record; missing or nil values become nulls.
type ParquetSink struct {
	mu        sync.Mutex
	out       io.Writer
	closer    io.Closer
	opts      ParquetOptions
	allocator memory.Allocator
	schema    *arrow.Schema
	writer    *pqarrow.FileWriter
	closed    bool
	stats     Stats
}

// writerOnly hides Close from pqarrow so the sink controls the underlying file.
type writerOnly struct {
	io.Writer
}

func NewParquetSink(w io.Writer, opts ...ParquetOption) *ParquetSink {
	options := ParquetOptions{Compression: compress.Codecs.Snappy}
	for _, opt := range opts {
		opt(&options)
	}
	sink := &ParquetSink{
		out:       writerOnly{w},
		opts:      options,
		allocator: memory.NewGoAllocator(),
	}
	if c, ok := w.(io.Closer); ok {
		sink.closer = c
	}
	return sink
}

// CreateParquetSink creates or truncates the file at path.
func CreateParquetSink(path string, opts ...ParquetOption) (*ParquetSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &SinkError{Sink: "parquet", Op: "create", Err: err}
	}
	return NewParquetSink(f, opts...), nil
}

func (p *ParquetSink) Save(ctx context.Context, content interface{}) error {
	records, err := Records(content)
	if err != nil {
		return &SinkError{Sink: "parquet", Op: "save", Err: err}
	}
	if len(records) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return &SinkError{Sink: "parquet", Op: "save", Err: fmt.Errorf("sink is closed")}
	}
	start := time.Now()
	if p.writer == nil {
		if err := p.initSchema(records[0]); err != nil {
			return err
		}
	}

	rec := p.buildRecord(records)
	defer rec.Release()
	if err := p.writer.Write(rec); err != nil {
		return &SinkError{Sink: "parquet", Op: "write_batch", Err: err}
	}
	p.stats.observe(len(records), start)
	return nil
}

func (p *ParquetSink) initSchema(first core.Record) error {
	names := p.opts.FieldOrder
	if len(names) == 0 {
		for name := range first {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: name, Type: inferArrowType(first[name]), Nullable: true}
	}
	p.schema = arrow.NewSchema(fields, nil)

	props := []parquet.WriterProperty{parquet.WithCompression(p.opts.Compression)}
	if p.opts.RowGroupSize > 0 {
		props = append(props, parquet.WithMaxRowGroupLength(p.opts.RowGroupSize))
	}
	writer, err := pqarrow.NewFileWriter(p.schema, p.out, parquet.NewWriterProperties(props...), pqarrow.DefaultWriterProps())
	if err != nil {
		return &SinkError{Sink: "parquet", Op: "create_writer", Err: err}
	}
	p.writer = writer
	return nil
}

func inferArrowType(value interface{}) arrow.DataType {
	switch value.(type) {
	case bool:
		return arrow.FixedWidthTypes.Boolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return arrow.PrimitiveTypes.Int64
	case float32, float64:
		return arrow.PrimitiveTypes.Float64
	case time.Time:
		return arrow.FixedWidthTypes.Timestamp_us
	case []byte:
		return arrow.BinaryTypes.Binary
	}
	return arrow.BinaryTypes.String
}

func (p *ParquetSink) buildRecord(records []core.Record) arrow.Record {
	b := array.NewRecordBuilder(p.allocator, p.schema)
	defer b.Release()

	for _, record := range records {
		for i, field := range p.schema.Fields() {
			appendValue(b.Field(i), record[field.Name])
		}
	}
	return b.NewRecord()
}

// appendValue appends value to builder, converting between numeric widths.
// Values that cannot be represented become nulls, except in string columns
// which take the formatted value.
func appendValue(builder array.Builder, value interface{}) {
	if value == nil {
		builder.AppendNull()
		return
	}

	switch b := builder.(type) {
	case *array.BooleanBuilder:
		if v, ok := value.(bool); ok {
			b.Append(v)
			return
		}
	case *array.Int64Builder:
		if v, ok := toInt64(value); ok {
			b.Append(v)
			return
		}
	case *array.Float64Builder:
		if v, ok := toFloat64(value); ok {
			b.Append(v)
			return
		}
	case *array.TimestampBuilder:
		if v, ok := value.(time.Time); ok {
			b.Append(arrow.Timestamp(v.UnixMicro()))
			return
		}
	case *array.BinaryBuilder:
		if v, ok := value.([]byte); ok {
			b.Append(v)
			return
		}
	case *array.StringBuilder:
		b.Append(formatValue(value))
		return
	}
	builder.AppendNull()
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	if n, ok := toInt64(value); ok {
		return float64(n), true
	}
	return 0, false
}

func (p *ParquetSink) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Close writes the file footer and closes the underlying writer.
func (p *ParquetSink) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			return &SinkError{Sink: "parquet", Op: "close_writer", Err: err}
		}
	}
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}
