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

package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEmpty(t *testing.T) {
	var nilRecord Record
	var nilSlice []Record

	tests := []struct {
		name     string
		content  interface{}
		expected bool
	}{
		{"nil", nil, true},
		{"nil slice", nilSlice, true},
		{"empty slice", []interface{}{}, true},
		{"empty map", Record{}, true},
		{"nil map", nilRecord, true},
		{"empty array", [0]int{}, true},
		{"record", Record{"id": 1}, false},
		{"slice", []Record{{"id": 1}}, false},
		{"scalar", 0, false},
		{"string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsEmpty(tt.content))
		})
	}
}

func TestCountRecords(t *testing.T) {
	tests := []struct {
		name     string
		content  interface{}
		expected int
	}{
		{"nil", nil, 0},
		{"empty slice", []Record{}, 0},
		{"batch", []interface{}{1, 2, 3}, 3},
		{"records", []Record{{"a": 1}, {"a": 2}}, 2},
		{"single record", Record{"a": 1}, 1},
		{"raw payload", "payload", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CountRecords(tt.content))
		})
	}
}

func TestFlatten(t *testing.T) {
	in := []interface{}{
		[]Record{{"id": 1}, {"id": 2}},
		Record{"id": 3},
		nil,
		[]byte("raw"),
	}
	out := Flatten(in)
	assert.Equal(t, []interface{}{Record{"id": 1}, Record{"id": 2}, Record{"id": 3}, []byte("raw")}, out)
}

func TestRecordClone(t *testing.T) {
	r := Record{"id": 1}
	c := r.Clone()
	c["id"] = 2
	assert.Equal(t, 1, r["id"])
}

func TestErrors(t *testing.T) {
	base := errors.New("connection refused")

	srcErr := &SourceError{Op: "query", Source: "parkings", Err: base}
	assert.Equal(t, "source parkings query: connection refused", srcErr.Error())
	assert.True(t, errors.Is(srcErr, base))
	assert.Equal(t, "source open: connection refused", (&SourceError{Op: "open", Err: base}).Error())

	valErr := &ValidationError{Record: Record{"id": 1}, Err: base}
	assert.Equal(t, "validation failed: connection refused", valErr.Error())
	assert.Equal(t, base, valErr.Unwrap())

	parseErr := &ParseError{Source: "json", Err: base}
	assert.Equal(t, "parse json: connection refused", parseErr.Error())
	assert.Equal(t, "parse: connection refused", (&ParseError{Err: base}).Error())
	assert.True(t, errors.Is(parseErr, base))
}

func TestFuncAdapters(t *testing.T) {
	ctx := context.Background()

	parser := ParserFunc(func(raw interface{}) (interface{}, error) { return []Record{{"raw": raw}}, nil })
	out, err := parser.ParseData("x")
	assert.NoError(t, err)
	assert.Equal(t, []Record{{"raw": "x"}}, out)

	rejected := errors.New("rejected")
	validator := ValidatorFunc(func(ctx context.Context, content interface{}) error { return rejected })
	assert.Equal(t, rejected, validator.Validate(ctx, Record{}))

	transformer := TransformFunc(func(ctx context.Context, r Record) (Record, error) {
		r["seen"] = true
		return r, nil
	})
	r, err := transformer.Transform(ctx, Record{})
	assert.NoError(t, err)
	assert.Equal(t, true, r["seen"])
}
