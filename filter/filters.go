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

package filter

import (
	"context"
	"reflect"
	"regexp"
	"strings"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
)

// Package filter provides record predicates for mappings.
//
// A filter returning false drops the record from the parsed content before it
// reaches validation. Missing fields never match.

func match(field string, pred func(value interface{}) bool) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		value, exists := record[field]
		if !exists {
			return false, nil
		}
		return pred(value), nil
	})
}

func matchString(field string, pred func(s string) bool) core.Filter {
	return match(field, func(value interface{}) bool {
		s, ok := value.(string)
		return ok && pred(s)
	})
}

func matchNumber(field string, pred func(n float64) bool) core.Filter {
	return match(field, func(value interface{}) bool {
		n, ok := toFloat64(value)
		return ok && pred(n)
	})
}

// NotNull keeps records where field is present, non-nil and not an empty string.
func NotNull(field string) core.Filter {
	return match(field, func(value interface{}) bool {
		if value == nil {
			return false
		}
		s, ok := value.(string)
		return !ok || s != ""
	})
}

// Equals keeps records where field deep-equals expected.
func Equals(field string, expected interface{}) core.Filter {
	return match(field, func(value interface{}) bool {
		return reflect.DeepEqual(value, expected)
	})
}

// In keeps records where field is one of values.
func In(field string, values ...interface{}) core.Filter {
	return match(field, func(value interface{}) bool {
		for _, v := range values {
			if reflect.DeepEqual(value, v) {
				return true
			}
		}
		return false
	})
}

// Contains keeps records where the string field contains substring.
func Contains(field, substring string) core.Filter {
	return matchString(field, func(s string) bool { return strings.Contains(s, substring) })
}

// StartsWith keeps records where the string field has prefix.
func StartsWith(field, prefix string) core.Filter {
	return matchString(field, func(s string) bool { return strings.HasPrefix(s, prefix) })
}

// MatchesRegex keeps records where the string field matches re.
func MatchesRegex(field string, re *regexp.Regexp) core.Filter {
	return matchString(field, re.MatchString)
}

func GreaterThan(field string, threshold float64) core.Filter {
	return matchNumber(field, func(n float64) bool { return n > threshold })
}

func LessThan(field string, threshold float64) core.Filter {
	return matchNumber(field, func(n float64) bool { return n < threshold })
}

// Between is inclusive on both ends.
func Between(field string, min, max float64) core.Filter {
	return matchNumber(field, func(n float64) bool { return n >= min && n <= max })
}

// And keeps a record only when every filter keeps it.
func And(filters ...core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		for _, f := range filters {
			include, err := f.ShouldInclude(ctx, record)
			if err != nil || !include {
				return false, err
			}
		}
		return true, nil
	})
}

// Or keeps a record when any filter keeps it.
func Or(filters ...core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		for _, f := range filters {
			include, err := f.ShouldInclude(ctx, record)
			if err != nil {
				return false, err
			}
			if include {
				return true, nil
			}
		}
		return false, nil
	})
}

func Not(f core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		include, err := f.ShouldInclude(ctx, record)
		if err != nil {
			return false, err
		}
		return !include, nil
	})
}

// Custom wraps a plain predicate.
func Custom(predicate func(core.Record) bool) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		return predicate(record), nil
	})
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
