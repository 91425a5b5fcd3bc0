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
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
)

// fakeDB records statements executed through database/sql.
type fakeDB struct {
	mu        sync.Mutex
	execs     []string
	args      [][]driver.Value
	commits   int
	rollbacks int
	failOn    string
}

func (f *fakeDB) Connect(context.Context) (driver.Conn, error) { return &fakeConn{db: f}, nil }
func (f *fakeDB) Driver() driver.Driver                         { return nil }

func (f *fakeDB) snapshot() ([]string, [][]driver.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.execs...), append([][]driver.Value{}, f.args...)
}

type fakeConn struct{ db *fakeDB }

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{db: c.db, query: query}, nil
}
func (c *fakeConn) Close() error              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return &fakeTx{db: c.db}, nil }

type fakeStmt struct {
	db    *fakeDB
	query string
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.failOn != "" && strings.Contains(s.query, s.db.failOn) {
		return nil, errors.New("duplicate key value violates unique constraint")
	}
	s.db.execs = append(s.db.execs, s.query)
	s.db.args = append(s.db.args, args)
	return driver.RowsAffected(1), nil
}

func (s *fakeStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, errors.New("not supported")
}

type fakeTx struct{ db *fakeDB }

func (t *fakeTx) Commit() error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.db.commits++
	return nil
}

func (t *fakeTx) Rollback() error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.db.rollbacks++
	return nil
}

func TestPostgresSink_Save(t *testing.T) {
	fake := &fakeDB{}
	db := sql.OpenDB(fake)
	defer db.Close()

	sink, err := NewPostgresSink(db,
		WithTableName("public.stops"),
		WithPostgresBatchSize(2),
		WithCreateTable(true),
		WithTruncateTable(true),
	)
	require.NoError(t, err)

	require.NoError(t, sink.Save(context.Background(), []core.Record{
		{"id": 1, "name": "a"},
		{"id": 2, "name": "b"},
		{"id": 3, "name": nil},
	}))

	execs, args := fake.snapshot()
	assert.Equal(t, []string{
		`CREATE TABLE IF NOT EXISTS "public"."stops" ("id" BIGINT, "name" TEXT)`,
		`TRUNCATE TABLE "public"."stops"`,
		`INSERT INTO "public"."stops" ("id", "name") VALUES ($1, $2), ($3, $4)`,
		`INSERT INTO "public"."stops" ("id", "name") VALUES ($1, $2)`,
	}, execs)
	assert.Equal(t, []driver.Value{int64(1), "a", int64(2), "b"}, args[2])
	assert.Equal(t, []driver.Value{int64(3), nil}, args[3])
	assert.Equal(t, 1, fake.commits)
	assert.Equal(t, int64(3), sink.Stats().RecordsWritten)

	// initialization runs once
	require.NoError(t, sink.Save(context.Background(), core.Record{"id": 4, "name": "d"}))
	execs, _ = fake.snapshot()
	assert.Len(t, execs, 5)

	require.NoError(t, sink.Close())
	assert.NoError(t, db.Ping(), "an injected pool stays open")
}

func TestPostgresSink_RollbackOnFailure(t *testing.T) {
	fake := &fakeDB{failOn: "INSERT"}
	db := sql.OpenDB(fake)
	defer db.Close()

	sink, err := NewPostgresSink(db, WithTableName("stops"), WithColumns("id"))
	require.NoError(t, err)

	err = sink.Save(context.Background(), core.Record{"id": 1})
	require.Error(t, err)

	var sinkErr *SinkError
	require.True(t, errors.As(err, &sinkErr))
	assert.Equal(t, "insert", sinkErr.Op)
	assert.Equal(t, 1, fake.rollbacks)
	assert.Equal(t, 0, fake.commits)
}

func TestPostgresSink_InsertSQL(t *testing.T) {
	tests := []struct {
		name     string
		opts     []PostgresOption
		expected string
	}{
		{
			name:     "plain",
			expected: `INSERT INTO "stops" ("id", "name", "zone") VALUES ($1, $2, $3)`,
		},
		{
			name:     "ignore",
			opts:     []PostgresOption{WithConflictResolution(ConflictIgnore, []string{"id"}, nil)},
			expected: `INSERT INTO "stops" ("id", "name", "zone") VALUES ($1, $2, $3) ON CONFLICT ("id") DO NOTHING`,
		},
		{
			name: "update all other columns",
			opts: []PostgresOption{WithConflictResolution(ConflictUpdate, []string{"id"}, nil)},
			expected: `INSERT INTO "stops" ("id", "name", "zone") VALUES ($1, $2, $3) ON CONFLICT ("id") DO UPDATE SET ` +
				`"name" = EXCLUDED."name", "zone" = EXCLUDED."zone"`,
		},
		{
			name:     "update listed columns",
			opts:     []PostgresOption{WithConflictResolution(ConflictUpdate, []string{"id"}, []string{"zone"})},
			expected: `INSERT INTO "stops" ("id", "name", "zone") VALUES ($1, $2, $3) ON CONFLICT ("id") DO UPDATE SET "zone" = EXCLUDED."zone"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]PostgresOption{WithTableName("stops"), WithColumns("id", "name", "zone")}, tt.opts...)
			sink, err := NewPostgresSink(nil, opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, sink.insertSQL(1))
		})
	}
}

func TestPostgresSink_Validation(t *testing.T) {
	_, err := NewPostgresSink(nil)
	assert.Error(t, err)

	_, err = NewPostgresSink(nil, WithTableName("t"), WithConflictResolution(ConflictIgnore, nil, nil))
	assert.Error(t, err)

	_, err = OpenPostgresSink(context.Background(), WithTableName("t"))
	assert.Error(t, err)
}

func TestConvertValue(t *testing.T) {
	tests := []struct {
		in       interface{}
		expected interface{}
	}{
		{nil, nil},
		{int32(5), int64(5)},
		{uint16(7), int64(7)},
		{float32(1.5), 1.5},
		{"s", "s"},
		{core.Record{"a": 1}, `{"a":1}`},
		{[]interface{}{"x"}, `["x"]`},
		{struct{ A int }{1}, "{1}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, convertValue(tt.in))
	}

	assert.Equal(t, "JSONB", inferSQLType(map[string]interface{}{}))
	assert.Equal(t, "DOUBLE PRECISION", inferSQLType(1.0))
	assert.Equal(t, "BOOLEAN", inferSQLType(true))
}
