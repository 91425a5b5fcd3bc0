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

package datatypes

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
)

// CSVOptions configures the CSV strategy.
type CSVOptions struct {
	Comma            rune
	Comment          rune
	LazyQuotes       bool
	TrimLeadingSpace bool
	HasHeaders       bool
	InferTypes       bool
}

// CSVOption allows functional customization of CSV.
type CSVOption func(*CSVOptions)

func WithCSVComma(r rune) CSVOption {
	return func(o *CSVOptions) { o.Comma = r }
}

func WithCSVHasHeaders(hasHeaders bool) CSVOption {
	return func(o *CSVOptions) { o.HasHeaders = hasHeaders }
}

func WithCSVTrimSpace(trim bool) CSVOption {
	return func(o *CSVOptions) { o.TrimLeadingSpace = trim }
}

func WithCSVLazyQuotes(lazy bool) CSVOption {
	return func(o *CSVOptions) { o.LazyQuotes = lazy }
}

// WithCSVInferTypes toggles conversion of values to int, float and bool.
func WithCSVInferTypes(infer bool) CSVOption {
	return func(o *CSVOptions) { o.InferTypes = infer }
}

// CSV parses delimited text into []core.Record. Without headers columns are
// named col_0, col_1 and so on. Blank values become nil.
type CSV struct {
	opts CSVOptions
}

// NewCSV creates a CSV strategy with default or overridden options.
func NewCSV(options ...CSVOption) *CSV {
	opts := CSVOptions{
		Comma:            ',',
		HasHeaders:       true,
		TrimLeadingSpace: true,
		InferTypes:       true,
	}
	for _, opt := range options {
		opt(&opts)
	}
	return &CSV{opts: opts}
}

// ParseData implements core.DataTypeStrategy.
func (c *CSV) ParseData(raw interface{}) (interface{}, error) {
	if batch, ok := raw.([]interface{}); ok {
		return parseBatch(batch, c.parseOne)
	}
	return c.parseOne(raw)
}

func (c *CSV) parseOne(raw interface{}) (interface{}, error) {
	data, err := payloadBytes(raw)
	if err != nil {
		return nil, &DataTypeError{Format: "csv", Err: err}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = c.opts.Comma
	reader.Comment = c.opts.Comment
	reader.LazyQuotes = c.opts.LazyQuotes
	reader.TrimLeadingSpace = c.opts.TrimLeadingSpace
	reader.FieldsPerRecord = -1

	var headers []string
	if c.opts.HasHeaders {
		headers, err = reader.Read()
		if err == io.EOF {
			return []core.Record{}, nil
		}
		if err != nil {
			return nil, &DataTypeError{Format: "csv", Err: err}
		}
		for i := range headers {
			headers[i] = strings.TrimSpace(headers[i])
		}
	}

	records := []core.Record{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &DataTypeError{Format: "csv", Err: err}
		}

		record := make(core.Record, len(row))
		for i, val := range row {
			key := "col_" + strconv.Itoa(i)
			if i < len(headers) {
				key = headers[i]
			}
			if strings.TrimSpace(val) == "" {
				record[key] = nil
				continue
			}
			record[key] = c.parseValue(val)
		}
		records = append(records, record)
	}
	return records, nil
}

// parseValue attempts to infer int, float, bool, or fallback to string.
func (c *CSV) parseValue(value string) interface{} {
	value = strings.TrimSpace(value)
	if !c.opts.InferTypes {
		return value
	}

	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}
