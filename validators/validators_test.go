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

package validators

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
)

func TestSchemaValidator_Record(t *testing.T) {
	v := NewSchemaValidator(
		WithRequiredFields("id", "name"),
		WithForbiddenFields("password"),
		WithFieldRule("id", FieldRule{Type: FieldTypeInt, Min: 1}),
		WithFieldRule("code", FieldRule{Type: FieldTypeString, Pattern: regexp.MustCompile(`^[A-Z]{3}$`)}),
		WithFieldRule("kind", FieldRule{AllowedValues: []interface{}{"bus", "tram"}}),
		WithFieldRule("occupancy", FieldRule{Type: FieldTypeNumber, Max: 1.0}),
	)
	ctx := context.Background()

	tests := []struct {
		name     string
		record   core.Record
		contains string
	}{
		{"valid", core.Record{"id": 3, "name": "A", "code": "ABC", "kind": "bus", "occupancy": 0.4}, ""},
		{"json integer", core.Record{"id": float64(3), "name": "A"}, ""},
		{"nil values skip rules", core.Record{"id": 1, "name": "A", "code": nil}, ""},
		{"missing required", core.Record{"id": 1}, "field name is required"},
		{"forbidden", core.Record{"id": 1, "name": "A", "password": "x"}, "field password is forbidden"},
		{"wrong type", core.Record{"id": "1", "name": "A"}, "field id has type string, expected int"},
		{"fractional int", core.Record{"id": 1.5, "name": "A"}, "expected int"},
		{"below minimum", core.Record{"id": 0, "name": "A"}, "below minimum"},
		{"pattern", core.Record{"id": 1, "name": "A", "code": "abc"}, "does not match pattern"},
		{"not allowed", core.Record{"id": 1, "name": "A", "kind": "metro"}, "not in allowed values"},
		{"above maximum", core.Record{"id": 1, "name": "A", "occupancy": 2}, "above maximum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(ctx, tt.record)
			if tt.contains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.NotContains(t, err.Error(), "record ")
		})
	}
}

func TestSchemaValidator_SliceReportsIndex(t *testing.T) {
	v := NewSchemaValidator(WithRequiredFields("id"))

	err := v.Validate(context.Background(), []core.Record{{"id": 1}, {"id": 2}, {"name": "x"}})
	require.Error(t, err)

	var recErr *RecordError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, 2, recErr.Index)
	assert.Equal(t, "id", recErr.Field)
	assert.Equal(t, "record 2 field id is required", err.Error())

	assert.NoError(t, v.Validate(context.Background(), []interface{}{core.Record{"id": 1}, map[string]interface{}{"id": 2}}))
	assert.Error(t, v.Validate(context.Background(), []interface{}{"text"}))
}

func TestSchemaValidator_Types(t *testing.T) {
	tests := []struct {
		fieldType FieldType
		valid     interface{}
		invalid   interface{}
	}{
		{FieldTypeString, "x", 1},
		{FieldTypeFloat, 1.5, 1},
		{FieldTypeBool, true, "true"},
		{FieldTypeDate, "2024-01-31", "31.1.2024"},
		{FieldTypeDate, time.Now(), 12},
		{FieldTypeEmail, "info@golemio.cz", "info@golemio"},
		{FieldTypeURL, "https://api.golemio.cz/v2", "ftp://x"},
		{FieldTypeUUID, "123e4567-e89b-12d3-a456-426614174000", "123"},
		{FieldTypeObject, map[string]interface{}{"a": 1}, []int{1}},
		{FieldTypeArray, []interface{}{1}, "x"},
	}

	for _, tt := range tests {
		t.Run(string(tt.fieldType), func(t *testing.T) {
			v := NewSchemaValidator(WithFieldRule("f", FieldRule{Type: tt.fieldType}))
			assert.NoError(t, v.Validate(context.Background(), core.Record{"f": tt.valid}))
			assert.Error(t, v.Validate(context.Background(), core.Record{"f": tt.invalid}))
		})
	}
}

func TestSchemaValidator_CustomAndNullRate(t *testing.T) {
	v := NewSchemaValidator(
		WithCustomCheck(func(r core.Record) error {
			if r["from"] == r["to"] {
				return errors.New("from equals to")
			}
			return nil
		}),
		WithFieldRule("code", FieldRule{Custom: func(value interface{}) error {
			if value == "XXX" {
				return errors.New("placeholder code")
			}
			return nil
		}}),
	)
	ctx := context.Background()

	assert.NoError(t, v.Validate(ctx, core.Record{"from": "A", "to": "B"}))
	assert.ErrorContains(t, v.Validate(ctx, core.Record{"from": "A", "to": "A"}), "from equals to")
	assert.ErrorContains(t, v.Validate(ctx, core.Record{"code": "XXX"}), "placeholder code")

	nullRate := NewSchemaValidator(WithMaxNullRate(0.5))
	assert.NoError(t, nullRate.Validate(ctx, []core.Record{{"a": 1}, {"a": nil}}))
	assert.ErrorContains(t, nullRate.Validate(ctx, []core.Record{{"a": 1}, {"a": nil}, {}}), "null rate")
}

func TestSchemaValidator_UnsupportedContent(t *testing.T) {
	v := NewSchemaValidator()
	assert.Error(t, v.Validate(context.Background(), nil))
	assert.Error(t, v.Validate(context.Background(), 42))
}

func TestSchemaValidator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewSchemaValidator().Validate(ctx, []core.Record{{"a": 1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromConfig(t *testing.T) {
	min := 0.0
	v, err := FromConfig(Config{
		Required: []string{"id"},
		Fields: map[string]FieldConfig{
			"id":   {Type: "int", Min: &min},
			"line": {Type: "string", Pattern: `^\d+$`},
			"kind": {Allowed: []interface{}{"bus", "tram"}},
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, v.Validate(ctx, core.Record{"id": 1, "line": "22", "kind": "tram"}))
	assert.Error(t, v.Validate(ctx, core.Record{"id": -1}))
	assert.Error(t, v.Validate(ctx, core.Record{"id": 1, "line": "A"}))

	_, err = FromConfig(Config{Fields: map[string]FieldConfig{"x": {Type: "decimal"}}})
	assert.Error(t, err)
	_, err = FromConfig(Config{Fields: map[string]FieldConfig{"x": {Pattern: "("}}})
	assert.Error(t, err)

	assert.True(t, Config{}.IsZero())
}
