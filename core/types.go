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
	"reflect"
)

// Package core defines the core types for the ingestion engine.
//
// Records travel through streams as opaque values: a structured row is a
// Record, a page or batch is a slice, and raw protocol payloads are []byte.
//
// This file contains the primary types, function adapters and content helpers.

// Record represents a single structured row.
// Each record is a map from field names to values, supporting heterogeneous data.
type Record map[string]interface{}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// TransformFunc is a function adapter for the Transformer interface.
// Allows ordinary functions to be used as Transformers.
type TransformFunc func(ctx context.Context, record Record) (Record, error)

// Transform implements the Transformer interface for TransformFunc.
func (f TransformFunc) Transform(ctx context.Context, record Record) (Record, error) {
	return f(ctx, record)
}

// FilterFunc is a function adapter for the Filter interface.
type FilterFunc func(ctx context.Context, record Record) (bool, error)

// ShouldInclude implements the Filter interface for FilterFunc.
func (f FilterFunc) ShouldInclude(ctx context.Context, record Record) (bool, error) {
	return f(ctx, record)
}

// ParserFunc is a function adapter for the DataTypeStrategy interface.
type ParserFunc func(raw interface{}) (interface{}, error)

// ParseData implements the DataTypeStrategy interface for ParserFunc.
func (f ParserFunc) ParseData(raw interface{}) (interface{}, error) {
	return f(raw)
}

// ValidatorFunc is a function adapter for the Validator interface.
type ValidatorFunc func(ctx context.Context, content interface{}) error

// Validate implements the Validator interface for ValidatorFunc.
func (f ValidatorFunc) Validate(ctx context.Context, content interface{}) error {
	return f(ctx, content)
}

// IsEmpty reports whether content carries no records: nil, an empty slice or
// array, or an empty map.
func IsEmpty(content interface{}) bool {
	if content == nil {
		return true
	}
	v := reflect.ValueOf(content)
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.IsNil() || v.Len() == 0
	case reflect.Array:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// CountRecords returns the number of records in content: the length of a
// slice or array, zero for empty content and one for any other value.
func CountRecords(content interface{}) int {
	if IsEmpty(content) {
		return 0
	}
	v := reflect.ValueOf(content)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return v.Len()
	}
	return 1
}

// Flatten expands one level of nesting: every slice element of content is
// spread into the result, every other element is kept as is.
func Flatten(content []interface{}) []interface{} {
	out := make([]interface{}, 0, len(content))
	for _, item := range content {
		if item == nil {
			continue
		}
		v := reflect.ValueOf(item)
		if v.Kind() == reflect.Slice {
			if _, raw := item.([]byte); !raw {
				for i := 0; i < v.Len(); i++ {
					out = append(out, v.Index(i).Interface())
				}
				continue
			}
		}
		out = append(out, item)
	}
	return out
}
