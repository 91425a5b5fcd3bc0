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
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
)

// This file implements a batching PostgreSQL sink with optional table
// creation and conflict handling.

// postgres limits a statement to 65535 bind parameters.
const maxBindParams = 65535

// ConflictResolution defines how to handle INSERT conflicts in PostgreSQL.
type ConflictResolution int

const (
	// ConflictError returns an error on conflict (default PostgreSQL behavior).
	ConflictError ConflictResolution = iota
	// ConflictIgnore ignores conflicting rows (ON CONFLICT DO NOTHING).
	ConflictIgnore
	// ConflictUpdate updates conflicting rows (ON CONFLICT DO UPDATE).
	ConflictUpdate
)

// PostgresOptions configures the PostgreSQL sink.
type PostgresOptions struct {
	DSN                string
	TableName          string
	Columns            []string // Columns to write, in order; inferred from the first record when empty
	BatchSize          int      // Rows per INSERT statement
	CreateTable        bool
	TruncateTable      bool
	ConflictResolution ConflictResolution
	ConflictColumns    []string
	UpdateColumns      []string // Defaults to every non-conflict column for ConflictUpdate
	MaxOpenConns       int
	ConnMaxLifetime    time.Duration
	QueryTimeout       time.Duration
}

type PostgresOption func(*PostgresOptions)

func WithPostgresDSN(dsn string) PostgresOption {
	return func(opts *PostgresOptions) {
		opts.DSN = dsn
	}
}

func WithTableName(tableName string) PostgresOption {
	return func(opts *PostgresOptions) {
		opts.TableName = tableName
	}
}

func WithColumns(columns ...string) PostgresOption {
	return func(opts *PostgresOptions) {
		opts.Columns = append([]string(nil), columns...)
	}
}

func WithPostgresBatchSize(size int) PostgresOption {
	return func(opts *PostgresOptions) {
		opts.BatchSize = size
	}
}

func WithCreateTable(create bool) PostgresOption {
	return func(opts *PostgresOptions) {
		opts.CreateTable = create
	}
}

func WithTruncateTable(truncate bool) PostgresOption {
	return func(opts *PostgresOptions) {
		opts.TruncateTable = truncate
	}
}

// WithConflictResolution sets the conflict resolution strategy and columns.
func WithConflictResolution(resolution ConflictResolution, conflictCols, updateCols []string) PostgresOption {
	return func(opts *PostgresOptions) {
		opts.ConflictResolution = resolution
		opts.ConflictColumns = append([]string(nil), conflictCols...)
		opts.UpdateColumns = append([]string(nil), updateCols...)
	}
}

func WithPostgresQueryTimeout(timeout time.Duration) PostgresOption {
	return func(opts *PostgresOptions) {
		opts.QueryTimeout = timeout
	}
}

func (opts *PostgresOptions) withDefaults() *PostgresOptions {
	result := *opts
	if result.BatchSize <= 0 {
		result.BatchSize = 1000
	}
	if result.QueryTimeout == 0 {
		result.QueryTimeout = 30 * time.Second
	}
	if result.ConnMaxLifetime == 0 {
		result.ConnMaxLifetime = 5 * time.Minute
	}
	if result.MaxOpenConns <= 0 {
		result.MaxOpenConns = 10
	}
	return &result
}

func (opts *PostgresOptions) validate() error {
	if opts.TableName == "" {
		return fmt.Errorf("table name is required")
	}
	if opts.ConflictResolution != ConflictError && len(opts.ConflictColumns) == 0 {
		return fmt.Errorf("conflict columns required for conflict resolution")
	}
	return nil
}

// PostgresSink inserts records into one table, BatchSize rows per statement,
// each Save in its own transaction.
type PostgresSink struct {
	mu          sync.Mutex
	db          *sql.DB
	ownsDB      bool
	options     PostgresOptions
	columns     []string
	initialized bool
	stats       Stats
}

// OpenPostgresSink connects with the lib/pq driver and pings the server.
func OpenPostgresSink(ctx context.Context, opts ...PostgresOption) (*PostgresSink, error) {
	options := buildPostgresOptions(opts)
	if options.DSN == "" {
		return nil, &SinkError{Sink: "postgres", Op: "validate", Err: fmt.Errorf("dsn is required")}
	}

	db, err := sql.Open("postgres", options.DSN)
	if err != nil {
		return nil, &SinkError{Sink: "postgres", Op: "connect", Err: err}
	}
	db.SetMaxOpenConns(options.MaxOpenConns)
	db.SetConnMaxLifetime(options.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, options.QueryTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &SinkError{Sink: "postgres", Op: "connect", Err: err}
	}

	sink, err := newPostgresSink(db, options)
	if err != nil {
		db.Close()
		return nil, err
	}
	sink.ownsDB = true
	return sink, nil
}

// NewPostgresSink writes through an existing pool. Close leaves db open.
func NewPostgresSink(db *sql.DB, opts ...PostgresOption) (*PostgresSink, error) {
	return newPostgresSink(db, buildPostgresOptions(opts))
}

func buildPostgresOptions(opts []PostgresOption) *PostgresOptions {
	options := &PostgresOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options.withDefaults()
}

func newPostgresSink(db *sql.DB, options *PostgresOptions) (*PostgresSink, error) {
	if err := options.validate(); err != nil {
		return nil, &SinkError{Sink: "postgres", Op: "validate", Err: err}
	}
	return &PostgresSink{
		db:      db,
		options: *options,
		columns: append([]string(nil), options.Columns...),
	}, nil
}

// Save inserts every record of content in a single transaction.
func (w *PostgresSink) Save(ctx context.Context, content interface{}) error {
	records, err := Records(content)
	if err != nil {
		return &SinkError{Sink: "postgres", Op: "save", Err: err}
	}
	if len(records) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, w.options.QueryTimeout)
	defer cancel()

	start := time.Now()
	if !w.initialized {
		if err := w.initialize(ctx, records[0]); err != nil {
			return &SinkError{Sink: "postgres", Op: "initialize", Err: err}
		}
	}

	if err := w.insert(ctx, records); err != nil {
		return &SinkError{Sink: "postgres", Op: "insert", Err: err}
	}
	w.stats.observe(len(records), start)
	return nil
}

func (w *PostgresSink) initialize(ctx context.Context, first core.Record) error {
	if len(w.columns) == 0 {
		for key := range first {
			w.columns = append(w.columns, key)
		}
		sort.Strings(w.columns)
	}

	if w.options.CreateTable {
		if _, err := w.db.ExecContext(ctx, createTableSQL(w.options.TableName, w.columns, first)); err != nil {
			return errors.WithMessage(err, "create table")
		}
	}
	if w.options.TruncateTable {
		if _, err := w.db.ExecContext(ctx, "TRUNCATE TABLE "+quoteIdentifier(w.options.TableName)); err != nil {
			return errors.WithMessage(err, "truncate table")
		}
	}
	w.initialized = true
	return nil
}

func (w *PostgresSink) insert(ctx context.Context, records []core.Record) (err error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WithMessage(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rowsPerStatement := w.options.BatchSize
	if limit := maxBindParams / len(w.columns); rowsPerStatement > limit {
		rowsPerStatement = limit
	}

	for offset := 0; offset < len(records); offset += rowsPerStatement {
		end := offset + rowsPerStatement
		if end > len(records) {
			end = len(records)
		}
		chunk := records[offset:end]

		args := make([]interface{}, 0, len(chunk)*len(w.columns))
		for _, record := range chunk {
			for _, col := range w.columns {
				args = append(args, convertValue(record[col]))
			}
		}
		if _, err = tx.ExecContext(ctx, w.insertSQL(len(chunk)), args...); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.WithMessage(err, "commit")
	}
	return nil
}

// insertSQL builds a multi-row INSERT for rows rows.
func (w *PostgresSink) insertSQL(rows int) string {
	cols := make([]string, len(w.columns))
	for i, col := range w.columns {
		cols[i] = quoteIdentifier(col)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", quoteIdentifier(w.options.TableName), strings.Join(cols, ", "))
	param := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range w.columns {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", param)
			param++
		}
		b.WriteByte(')')
	}

	switch w.options.ConflictResolution {
	case ConflictIgnore:
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO NOTHING", quoteList(w.options.ConflictColumns))
	case ConflictUpdate:
		updates := w.options.UpdateColumns
		if len(updates) == 0 {
			updates = exclude(w.columns, w.options.ConflictColumns)
		}
		clauses := make([]string, len(updates))
		for i, col := range updates {
			q := quoteIdentifier(col)
			clauses[i] = fmt.Sprintf("%s = EXCLUDED.%s", q, q)
		}
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s", quoteList(w.options.ConflictColumns), strings.Join(clauses, ", "))
	}
	return b.String()
}

func createTableSQL(table string, columns []string, sample core.Record) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = quoteIdentifier(col) + " " + inferSQLType(sample[col])
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdentifier(table), strings.Join(defs, ", "))
}

// quoteIdentifier quotes each dot-separated part, so schema-qualified names work.
func quoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = pq.QuoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quoteIdentifier(name)
	}
	return strings.Join(quoted, ", ")
}

func exclude(all, drop []string) []string {
	skip := make(map[string]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	var out []string
	for _, a := range all {
		if !skip[a] {
			out = append(out, a)
		}
	}
	return out
}

// inferSQLType infers PostgreSQL column type from Go value.
func inferSQLType(value interface{}) string {
	switch value.(type) {
	case nil:
		return "TEXT"
	case bool:
		return "BOOLEAN"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "BIGINT"
	case float32, float64:
		return "DOUBLE PRECISION"
	case time.Time:
		return "TIMESTAMPTZ"
	case []byte:
		return "BYTEA"
	case core.Record, map[string]interface{}, []interface{}:
		return "JSONB"
	default:
		return "TEXT"
	}
}

// convertValue converts Go values to PostgreSQL-compatible types.
func convertValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time, bool, int64, float64, string, []byte:
		return v
	case core.Record, map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32:
		return rv.Float()
	}
	return fmt.Sprintf("%v", value)
}

func (w *PostgresSink) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Close releases the connection pool when the sink opened it.
func (w *PostgresSink) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ownsDB && w.db != nil {
		err := w.db.Close()
		w.db = nil
		return err
	}
	return nil
}
