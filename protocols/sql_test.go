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

package protocols

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name     string
		settings SQLSettings
		expected string
	}{
		{
			name:     "all columns",
			settings: SQLSettings{Table: "parkings"},
			expected: `SELECT * FROM "parkings" LIMIT $1 OFFSET $2`,
		},
		{
			name: "columns, filter and order",
			settings: SQLSettings{
				Table:   "public.parkings",
				Columns: []string{"id", "name"},
				Where:   "updated_at > $1",
				Args:    []interface{}{"2024-01-01"},
				OrderBy: "id",
			},
			expected: `SELECT "id", "name" FROM "public"."parkings" WHERE updated_at > $1 ORDER BY id LIMIT $2 OFFSET $3`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildSelect(tt.settings))
		})
	}
}

func TestConvertSQLValue(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		value    interface{}
		dbType   string
		expected interface{}
	}{
		{"text bytes", []byte("hello"), "TEXT", "hello"},
		{"varchar bytes", []byte("x"), "VARCHAR", "x"},
		{"numeric bytes", []byte("12.50"), "NUMERIC", "12.50"},
		{"bytea", []byte{0x01, 0x02}, "BYTEA", []byte{0x01, 0x02}},
		{"int64", int64(42), "INT8", int64(42)},
		{"int32", int32(7), "INT4", int64(7)},
		{"float32", float32(1.5), "FLOAT4", float64(1.5)},
		{"bool", true, "BOOL", true},
		{"time", now, "TIMESTAMPTZ", now},
		{"uint", uint16(3), "INT2", int64(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, convertSQLValue(tt.value, tt.dbType))
		})
	}
}

func TestConvertBSONDocument(t *testing.T) {
	id := primitive.NewObjectID()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	record := convertBSONDocument(bson.M{
		"_id":     id,
		"updated": primitive.NewDateTimeFromTime(ts),
		"tags":    bson.A{"a", "b"},
		"address": bson.M{"city": "Praha"},
		"missing": primitive.Null{},
		"count":   int32(4),
	})

	assert.Equal(t, id.Hex(), record["_id"])
	assert.True(t, ts.Equal(record["updated"].(time.Time)))
	assert.Equal(t, []interface{}{"a", "b"}, record["tags"])
	assert.Equal(t, map[string]interface{}{"city": "Praha"}, record["address"])
	assert.Nil(t, record["missing"])
	assert.Equal(t, int32(4), record["count"])
}
