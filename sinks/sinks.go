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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
)

// Package sinks provides persistence sinks for outward data source streams.
//
// Every sink accepts the content shapes a data source pushes: a single
// record, a slice of records, or a batch mixing both. Sinks are safe for
// concurrent use.

// SinkError wraps sink-specific errors with the operation that failed.
type SinkError struct {
	Sink string
	Op   string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("%s sink %s: %v", e.Sink, e.Op, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

var errWriterFailed = errors.New("writer is in error state")

// Stats holds write statistics of a sink.
type Stats struct {
	Saves          int64
	RecordsWritten int64
	LastSaveTime   time.Time
	SaveDuration   time.Duration
}

func (s *Stats) observe(records int, start time.Time) {
	s.Saves++
	s.RecordsWritten += int64(records)
	s.LastSaveTime = time.Now()
	s.SaveDuration += time.Since(start)
}

// Records flattens pushed content into rows.
func Records(content interface{}) ([]core.Record, error) {
	switch v := content.(type) {
	case nil:
		return nil, nil
	case core.Record:
		return []core.Record{v}, nil
	case map[string]interface{}:
		return []core.Record{core.Record(v)}, nil
	case []core.Record:
		return v, nil
	case []map[string]interface{}:
		out := make([]core.Record, len(v))
		for i, m := range v {
			out[i] = core.Record(m)
		}
		return out, nil
	case []interface{}:
		var out []core.Record
		for i, item := range v {
			records, err := Records(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, records...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported content type %T", content)
}

// formatValue renders a value as text for CSV cells and fallback columns.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case core.Record, map[string]interface{}, []interface{}, []core.Record:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
	return fmt.Sprintf("%v", value)
}
