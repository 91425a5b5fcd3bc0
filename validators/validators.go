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

// validators.go - per-record schema validation
package validators

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
)

// SchemaValidator implements core.Validator.
// It checks field presence, per-field rules and custom record checks on a
// single record or on every record of a slice, failing on the first problem.
type SchemaValidator struct {
	RequiredFields  []string             // Fields that must be present in every record
	ForbiddenFields []string             // Fields that must not be present
	FieldRules      map[string]FieldRule // Per-field rules, applied to present non-nil values
	MaxNullRate     float64              // Maximum null rate per field across a slice (0 = unchecked)
	Custom          []func(core.Record) error
}

// FieldRule defines validation rules for one field.
type FieldRule struct {
	Type          FieldType
	Pattern       *regexp.Regexp
	Min           interface{}
	Max           interface{}
	AllowedValues []interface{}
	Custom        func(interface{}) error
}

// FieldType names the expected type of a field value.
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeInt    FieldType = "int"
	FieldTypeFloat  FieldType = "float"
	FieldTypeNumber FieldType = "number"
	FieldTypeBool   FieldType = "bool"
	FieldTypeDate   FieldType = "date"
	FieldTypeEmail  FieldType = "email"
	FieldTypeURL    FieldType = "url"
	FieldTypeUUID   FieldType = "uuid"
	FieldTypeObject FieldType = "object"
	FieldTypeArray  FieldType = "array"
	FieldTypeAny    FieldType = "any"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// RecordError locates a validation failure. Index is -1 for single-record content.
type RecordError struct {
	Index int
	Field string
	Err   error
}

func (e *RecordError) Error() string {
	var b strings.Builder
	if e.Index >= 0 {
		fmt.Fprintf(&b, "record %d ", e.Index)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, "field %s ", e.Field)
	}
	if b.Len() == 0 {
		return e.Err.Error()
	}
	return b.String() + e.Err.Error()
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Validate implements core.Validator.
func (v *SchemaValidator) Validate(ctx context.Context, content interface{}) error {
	switch c := content.(type) {
	case core.Record:
		return v.validateRecord(c, -1)
	case map[string]interface{}:
		return v.validateRecord(core.Record(c), -1)
	case []core.Record:
		return v.validateRecords(ctx, c)
	case []interface{}:
		records := make([]core.Record, 0, len(c))
		for i, item := range c {
			switch r := item.(type) {
			case core.Record:
				records = append(records, r)
			case map[string]interface{}:
				records = append(records, core.Record(r))
			default:
				return &RecordError{Index: i, Err: fmt.Errorf("unexpected content type %T", item)}
			}
		}
		return v.validateRecords(ctx, records)
	case nil:
		return fmt.Errorf("no content to validate")
	}
	return fmt.Errorf("unsupported content type %T", content)
}

func (v *SchemaValidator) validateRecords(ctx context.Context, records []core.Record) error {
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := v.validateRecord(record, i); err != nil {
			return err
		}
	}
	return v.validateNullRates(records)
}

func (v *SchemaValidator) validateRecord(record core.Record, idx int) error {
	for _, field := range v.RequiredFields {
		if _, exists := record[field]; !exists {
			return &RecordError{Index: idx, Field: field, Err: fmt.Errorf("is required")}
		}
	}
	for _, field := range v.ForbiddenFields {
		if _, exists := record[field]; exists {
			return &RecordError{Index: idx, Field: field, Err: fmt.Errorf("is forbidden")}
		}
	}

	for _, field := range ruleOrder(v.FieldRules) {
		rule := v.FieldRules[field]
		value, exists := record[field]
		if !exists || value == nil {
			continue
		}
		if err := rule.check(value); err != nil {
			return &RecordError{Index: idx, Field: field, Err: err}
		}
	}

	for i, custom := range v.Custom {
		if err := custom(record); err != nil {
			return &RecordError{Index: idx, Err: fmt.Errorf("custom check %d: %w", i, err)}
		}
	}
	return nil
}

// validateNullRates checks null value rates across all records
func (v *SchemaValidator) validateNullRates(records []core.Record) error {
	if v.MaxNullRate <= 0 || len(records) == 0 {
		return nil
	}

	fields := make(map[string]bool)
	for _, record := range records {
		for field := range record {
			fields[field] = true
		}
	}

	for field := range fields {
		nulls := 0
		for _, record := range records {
			if value, exists := record[field]; !exists || value == nil {
				nulls++
			}
		}
		rate := float64(nulls) / float64(len(records))
		if rate > v.MaxNullRate {
			return &RecordError{Index: -1, Field: field, Err: fmt.Errorf("null rate %.2f exceeds maximum %.2f", rate, v.MaxNullRate)}
		}
	}
	return nil
}

func ruleOrder(rules map[string]FieldRule) []string {
	fields := make([]string, 0, len(rules))
	for field := range rules {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func (r FieldRule) check(value interface{}) error {
	if !matchesType(value, r.Type) {
		return fmt.Errorf("has type %T, expected %s", value, r.Type)
	}

	if r.Pattern != nil {
		if s, ok := value.(string); ok && !r.Pattern.MatchString(s) {
			return fmt.Errorf("value %q does not match pattern %s", s, r.Pattern)
		}
	}

	if n, ok := toFloat64(value); ok {
		if min, ok := toFloat64(r.Min); ok && n < min {
			return fmt.Errorf("value %v below minimum %v", value, r.Min)
		}
		if max, ok := toFloat64(r.Max); ok && n > max {
			return fmt.Errorf("value %v above maximum %v", value, r.Max)
		}
	}

	if len(r.AllowedValues) > 0 && !allowed(value, r.AllowedValues) {
		return fmt.Errorf("value %v not in allowed values", value)
	}

	if r.Custom != nil {
		if err := r.Custom(value); err != nil {
			return err
		}
	}
	return nil
}

func allowed(value interface{}, values []interface{}) bool {
	n, numeric := toFloat64(value)
	for _, candidate := range values {
		if reflect.DeepEqual(value, candidate) {
			return true
		}
		if c, ok := toFloat64(candidate); ok && numeric && c == n {
			return true
		}
	}
	return false
}

// matchesType checks if a value matches the expected data type.
// Whole float64 values count as ints since JSON numbers decode to float64.
func matchesType(value interface{}, expected FieldType) bool {
	switch expected {
	case "", FieldTypeAny:
		return true
	case FieldTypeString:
		_, ok := value.(string)
		return ok
	case FieldTypeInt:
		switch n := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return n == math.Trunc(n)
		}
		return false
	case FieldTypeFloat:
		switch value.(type) {
		case float32, float64:
			return true
		}
		return false
	case FieldTypeNumber:
		_, ok := toFloat64(value)
		return ok
	case FieldTypeBool:
		_, ok := value.(bool)
		return ok
	case FieldTypeDate:
		switch d := value.(type) {
		case time.Time:
			return true
		case string:
			if _, err := time.Parse(time.RFC3339, d); err == nil {
				return true
			}
			_, err := time.Parse("2006-01-02", d)
			return err == nil
		}
		return false
	case FieldTypeEmail:
		s, ok := value.(string)
		return ok && strings.Contains(s, "@") && strings.Contains(s[strings.Index(s, "@"):], ".")
	case FieldTypeURL:
		s, ok := value.(string)
		if !ok {
			return false
		}
		u, err := url.Parse(s)
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	case FieldTypeUUID:
		s, ok := value.(string)
		return ok && uuidPattern.MatchString(s)
	case FieldTypeObject:
		switch value.(type) {
		case core.Record, map[string]interface{}:
			return true
		}
		return false
	case FieldTypeArray:
		kind := reflect.ValueOf(value).Kind()
		return kind == reflect.Slice || kind == reflect.Array
	}
	return true
}

// toFloat64 converts numeric types to float64 for comparison
func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// SchemaOption is a functional option for configuring SchemaValidator
type SchemaOption func(*SchemaValidator)

func WithRequiredFields(fields ...string) SchemaOption {
	return func(v *SchemaValidator) {
		v.RequiredFields = append(v.RequiredFields, fields...)
	}
}

func WithForbiddenFields(fields ...string) SchemaOption {
	return func(v *SchemaValidator) {
		v.ForbiddenFields = append(v.ForbiddenFields, fields...)
	}
}

// WithFieldRule adds a field-specific rule
func WithFieldRule(field string, rule FieldRule) SchemaOption {
	return func(v *SchemaValidator) {
		if v.FieldRules == nil {
			v.FieldRules = make(map[string]FieldRule)
		}
		v.FieldRules[field] = rule
	}
}

func WithMaxNullRate(rate float64) SchemaOption {
	return func(v *SchemaValidator) {
		v.MaxNullRate = rate
	}
}

// WithCustomCheck adds a record-level check
func WithCustomCheck(check func(core.Record) error) SchemaOption {
	return func(v *SchemaValidator) {
		v.Custom = append(v.Custom, check)
	}
}

// NewSchemaValidator creates a validator with functional options
func NewSchemaValidator(options ...SchemaOption) *SchemaValidator {
	v := &SchemaValidator{FieldRules: make(map[string]FieldRule)}
	for _, option := range options {
		option(v)
	}
	return v
}
