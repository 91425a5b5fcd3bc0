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
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/stream"
)

// This file implements the paginated SQL protocol. Pages are read with
// LIMIT/OFFSET over a fresh connection per read cycle; PostgreSQL through
// lib/pq is the default driver.

// SQLSettings configures SQLStrategy.
type SQLSettings struct {
	Driver      string        `mapstructure:"driver"`
	DSN         string        `mapstructure:"dsn"`
	Table       string        `mapstructure:"table"`
	Columns     []string      `mapstructure:"columns"`
	Where       string        `mapstructure:"where"`
	Args        []interface{} `mapstructure:"args"`
	OrderBy     string        `mapstructure:"order_by"`
	FindOptions FindOptions   `mapstructure:"find_options"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

func (s SQLSettings) validate() error {
	if s.Table == "" {
		return fmt.Errorf("table is required")
	}
	return nil
}

// SQLStrategy reads a table page by page.
type SQLStrategy struct {
	mu       sync.Mutex
	settings SQLSettings
	opts     *Options
	session  session
}

// NewSQLStrategy creates a SQL strategy. Without WithConnector it connects
// with database/sql using settings.Driver (default "postgres") and settings.DSN.
func NewSQLStrategy(settings SQLSettings, options ...Option) *SQLStrategy {
	return &SQLStrategy{
		settings: settings,
		opts:     buildOptions("sql", options),
	}
}

// SetConnectionSettings replaces the settings used by the next read.
func (s *SQLStrategy) SetConnectionSettings(settings SQLSettings) error {
	if s.session.busy() {
		return core.ErrReadInProgress
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

// Settings returns the current connection settings.
func (s *SQLStrategy) Settings() SQLSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// GetData opens a connection and returns a stream of []core.Record pages.
func (s *SQLStrategy) GetData(ctx context.Context) (*stream.Stream, error) {
	settings := s.Settings()
	if err := settings.validate(); err != nil {
		return nil, &core.SourceError{Op: "validate", Source: s.opts.Name, Err: err}
	}

	connect := s.opts.Connector
	if connect == nil {
		connect = func(ctx context.Context) (PageSource, error) {
			return openSQL(ctx, settings)
		}
	}
	return paginate(ctx, &s.session, s.opts, connect, settings.FindOptions)
}

// Destroy closes the connection of the active read.
func (s *SQLStrategy) Destroy() error {
	return s.session.destroy()
}

func openSQL(ctx context.Context, settings SQLSettings) (PageSource, error) {
	driver := settings.Driver
	if driver == "" {
		driver = "postgres"
	}
	if settings.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	db, err := sql.Open(driver, settings.DSN)
	if err != nil {
		return nil, errors.WithMessage(err, "open")
	}
	if settings.MaxOpenConns > 0 {
		db.SetMaxOpenConns(settings.MaxOpenConns)
	}
	if settings.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(settings.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.WithMessage(err, "ping")
	}

	return &sqlPageSource{
		db:      db,
		query:   buildSelect(settings),
		args:    settings.Args,
		timeout: settings.QueryTimeout,
	}, nil
}

// buildSelect renders the page query. LIMIT and OFFSET are bound after Args.
func buildSelect(settings SQLSettings) string {
	columns := "*"
	if len(settings.Columns) > 0 {
		quoted := make([]string, len(settings.Columns))
		for i, c := range settings.Columns {
			quoted[i] = quoteIdentifier(c)
		}
		columns = strings.Join(quoted, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", columns, quoteIdentifier(settings.Table))
	if settings.Where != "" {
		fmt.Fprintf(&b, " WHERE %s", settings.Where)
	}
	if settings.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", settings.OrderBy)
	}
	n := len(settings.Args)
	fmt.Fprintf(&b, " LIMIT $%d OFFSET $%d", n+1, n+2)
	return b.String()
}

// quoteIdentifier quotes every part of a possibly schema-qualified name.
func quoteIdentifier(name string) string {
	if name == "*" {
		return name
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

type sqlPageSource struct {
	db      *sql.DB
	query   string
	args    []interface{}
	timeout time.Duration
}

func (s *sqlPageSource) FetchPage(ctx context.Context, offset, limit int) ([]core.Record, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	args := make([]interface{}, 0, len(s.args)+2)
	args = append(args, s.args...)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, s.query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.WithMessage(err, "columns")
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.WithMessage(err, "column types")
	}

	values := make([]interface{}, len(columns))
	scan := make([]interface{}, len(columns))
	for i := range values {
		scan[i] = &values[i]
	}

	var records []core.Record
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, errors.WithMessage(err, "scan")
		}
		record := make(core.Record, len(columns))
		for i, name := range columns {
			if values[i] == nil {
				record[name] = nil
				continue
			}
			record[name] = convertSQLValue(values[i], columnTypes[i].DatabaseTypeName())
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *sqlPageSource) Close() error {
	return s.db.Close()
}

// convertSQLValue converts SQL driver values to appropriate Go types
func convertSQLValue(value interface{}, dbType string) interface{} {
	// Handle byte arrays for text types
	if b, ok := value.([]byte); ok {
		switch dbType {
		case "TEXT", "VARCHAR", "CHAR", "BPCHAR", "JSON", "JSONB", "NUMERIC", "UUID":
			return string(b)
		default:
			return b
		}
	}

	switch v := value.(type) {
	case time.Time, bool, int64, float64, string:
		return v
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
			return rv.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return int64(rv.Uint())
		case reflect.Float32:
			return rv.Float()
		default:
			return fmt.Sprintf("%v", v)
		}
	}
}
