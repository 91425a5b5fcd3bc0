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
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
)

// Parquet decodes whole Parquet files into []core.Record. Columns optionally
// projects the named columns.
type Parquet struct {
	Columns   []string
	BatchSize int64
}

func NewParquet(columns ...string) *Parquet {
	return &Parquet{Columns: append([]string{}, columns...)}
}

// ParseData implements core.DataTypeStrategy.
func (p *Parquet) ParseData(raw interface{}) (interface{}, error) {
	if batch, ok := raw.([]interface{}); ok {
		return parseBatch(batch, p.parseOne)
	}
	return p.parseOne(raw)
}

func (p *Parquet) parseOne(raw interface{}) (interface{}, error) {
	data, err := payloadBytes(raw)
	if err != nil {
		return nil, &DataTypeError{Format: "parquet", Err: err}
	}

	parquetReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, &DataTypeError{Format: "parquet", Err: fmt.Errorf("create reader: %w", err)}
	}
	defer parquetReader.Close()

	props := pqarrow.ArrowReadProperties{}
	if p.BatchSize > 0 {
		props.BatchSize = p.BatchSize
	}
	arrowReader, err := pqarrow.NewFileReader(parquetReader, props, memory.NewGoAllocator())
	if err != nil {
		return nil, &DataTypeError{Format: "parquet", Err: fmt.Errorf("create arrow reader: %w", err)}
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, &DataTypeError{Format: "parquet", Err: fmt.Errorf("schema: %w", err)}
	}

	var colIndices []int
	for _, name := range p.Columns {
		indices := schema.FieldIndices(name)
		if len(indices) == 0 {
			return nil, &DataTypeError{Format: "parquet", Err: fmt.Errorf("column %q not found in schema", name)}
		}
		colIndices = append(colIndices, indices[0])
	}

	recordReader, err := arrowReader.GetRecordReader(context.Background(), colIndices, nil)
	if err != nil {
		return nil, &DataTypeError{Format: "parquet", Err: fmt.Errorf("record reader: %w", err)}
	}
	defer recordReader.Release()

	records := []core.Record{}
	for {
		rec, err := recordReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &DataTypeError{Format: "parquet", Err: err}
		}
		records = append(records, extractRecords(rec)...)
	}
	return records, nil
}

func extractRecords(rec arrow.Record) []core.Record {
	sch := rec.Schema()
	out := make([]core.Record, 0, rec.NumRows())
	for row := 0; row < int(rec.NumRows()); row++ {
		record := make(core.Record, rec.NumCols())
		for i := 0; i < int(rec.NumCols()); i++ {
			record[sch.Field(i).Name] = extractValue(rec.Column(i), row)
		}
		out = append(out, record)
	}
	return out
}

func extractValue(col arrow.Array, row int) interface{} {
	if col.IsNull(row) {
		return nil
	}

	switch arr := col.(type) {
	case *array.Boolean:
		return arr.Value(row)
	case *array.Int8:
		return int64(arr.Value(row))
	case *array.Int16:
		return int64(arr.Value(row))
	case *array.Int32:
		return int64(arr.Value(row))
	case *array.Int64:
		return arr.Value(row)
	case *array.Uint8:
		return int64(arr.Value(row))
	case *array.Uint16:
		return int64(arr.Value(row))
	case *array.Uint32:
		return int64(arr.Value(row))
	case *array.Uint64:
		return arr.Value(row)
	case *array.Float32:
		return float64(arr.Value(row))
	case *array.Float64:
		return arr.Value(row)
	case *array.String:
		return arr.Value(row)
	case *array.Binary:
		return append([]byte{}, arr.Value(row)...)
	case *array.Timestamp:
		unit := arr.DataType().(*arrow.TimestampType).Unit
		return arr.Value(row).ToTime(unit)
	case *array.Date32:
		return arr.Value(row).ToTime()
	case *array.Date64:
		return arr.Value(row).ToTime()
	default:
		return fmt.Sprintf("%v", col.GetOneForMarshal(row))
	}
}
