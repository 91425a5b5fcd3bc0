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

package transform

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
)

// Package transform provides record transformers and the Mapping decorator
// that applies them to everything a data type strategy parses.
//
// Transformers never mutate their input; each returns a new record.

// Select keeps only the listed fields.
func Select(fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(fields))
		for _, field := range fields {
			if value, exists := record[field]; exists {
				result[field] = value
			}
		}
		return result, nil
	})
}

// Rename maps source field names to target names. Unlisted fields are kept.
func Rename(mapping map[string]string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(record))
		for key, value := range record {
			if newKey, exists := mapping[key]; exists {
				key = newKey
			}
			result[key] = value
		}
		return result, nil
	})
}

// AddField sets field to the value computed from the incoming record.
func AddField(field string, fn func(core.Record) interface{}) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := record.Clone()
		result[field] = fn(record)
		return result, nil
	})
}

// SetConstant sets field to value on every record.
func SetConstant(field string, value interface{}) core.Transformer {
	return AddField(field, func(core.Record) interface{} { return value })
}

// RemoveFields drops the listed fields. Absent fields are ignored.
func RemoveFields(fields ...string) core.Transformer {
	drop := make(map[string]bool, len(fields))
	for _, field := range fields {
		drop[field] = true
	}
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(record))
		for k, v := range record {
			if !drop[k] {
				result[k] = v
			}
		}
		return result, nil
	})
}

// mapStrings applies fn to every listed field holding a string.
func mapStrings(fn func(string) string, fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := record.Clone()
		for _, field := range fields {
			if s, ok := record[field].(string); ok {
				result[field] = fn(s)
			}
		}
		return result, nil
	})
}

func TrimSpace(fields ...string) core.Transformer {
	return mapStrings(strings.TrimSpace, fields...)
}

func ToUpper(fields ...string) core.Transformer {
	return mapStrings(strings.ToUpper, fields...)
}

func ToLower(fields ...string) core.Transformer {
	return mapStrings(strings.ToLower, fields...)
}

// ParseTime parses a string field with layout into a time.Time.
func ParseTime(field, layout string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		s, ok := record[field].(string)
		if !ok {
			return record, nil
		}
		parsed, err := time.Parse(layout, s)
		if err != nil {
			return nil, fmt.Errorf("parse time field %s: %w", field, err)
		}
		result := record.Clone()
		result[field] = parsed
		return result, nil
	})
}

// Convert converts field to the named type: string, int, float or bool.
// Nil values stay nil.
func Convert(field, typeName string) (core.Transformer, error) {
	conv, ok := converters[typeName]
	if !ok {
		return nil, fmt.Errorf("unsupported conversion type %q", typeName)
	}
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		value, exists := record[field]
		if !exists || value == nil {
			return record, nil
		}
		converted, err := conv(value)
		if err != nil {
			return nil, fmt.Errorf("convert field %s to %s: %w", field, typeName, err)
		}
		result := record.Clone()
		result[field] = converted
		return result, nil
	}), nil
}

var converters = map[string]func(interface{}) (interface{}, error){
	"string": func(v interface{}) (interface{}, error) { return toString(v), nil },
	"int":    func(v interface{}) (interface{}, error) { return toInt(v) },
	"float":  func(v interface{}) (interface{}, error) { return toFloat(v) },
	"bool":   func(v interface{}) (interface{}, error) { return toBool(v) },
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%v", value)
}

func toInt(value interface{}) (int64, error) {
	switch v := value.(type) {
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot convert %T to int", value)
}

func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	}
	return 0, fmt.Errorf("cannot convert %T to float", value)
}

func toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	}
	return false, fmt.Errorf("cannot convert %T to bool", value)
}
