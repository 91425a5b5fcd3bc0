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
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// JSONLSink writes one JSON object per line.
type JSONLSink struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	enc    *json.Encoder
	closer io.Closer
	stats  Stats
}

func NewJSONLSink(w io.WriteCloser) *JSONLSink {
	buf := bufio.NewWriter(w)
	return &JSONLSink{
		buf:    buf,
		enc:    json.NewEncoder(buf),
		closer: w,
	}
}

// CreateJSONLSink creates or truncates the file at path.
func CreateJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &SinkError{Sink: "jsonl", Op: "create", Err: err}
	}
	return NewJSONLSink(f), nil
}

// Save writes every record of content and flushes.
func (j *JSONLSink) Save(ctx context.Context, content interface{}) error {
	records, err := Records(content)
	if err != nil {
		return &SinkError{Sink: "jsonl", Op: "save", Err: err}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	for _, record := range records {
		if err := j.enc.Encode(record); err != nil {
			return &SinkError{Sink: "jsonl", Op: "encode", Err: err}
		}
	}
	if err := j.buf.Flush(); err != nil {
		return &SinkError{Sink: "jsonl", Op: "flush", Err: err}
	}
	j.stats.observe(len(records), start)
	return nil
}

func (j *JSONLSink) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}

func (j *JSONLSink) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.buf.Flush(); err != nil {
		return &SinkError{Sink: "jsonl", Op: "flush", Err: err}
	}
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
