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
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
)

// Package datatypes provides implementations of core.DataTypeStrategy.
//
// A strategy turns raw protocol payloads ([]byte bodies, file contents, row
// pages) into structured content. When the data source batches, ParseData
// receives a []interface{} of payloads; every element is parsed and the
// results are concatenated into one []core.Record.
//
// This file implements the JSON strategies on top of gjson.

// DataTypeError wraps structured error information for a data type strategy.
type DataTypeError struct {
	Format string
	Err    error
}

func (e *DataTypeError) Error() string {
	return fmt.Sprintf("%s data type: %v", e.Format, e.Err)
}

func (e *DataTypeError) Unwrap() error {
	return e.Err
}

// JSON parses JSON documents. DataPath is a gjson path selecting the records
// inside the document; empty selects the root. An array yields []core.Record,
// an object a single core.Record.
type JSON struct {
	DataPath string
}

func NewJSON(dataPath string) *JSON {
	return &JSON{DataPath: dataPath}
}

// ParseData implements core.DataTypeStrategy.
func (j *JSON) ParseData(raw interface{}) (interface{}, error) {
	if batch, ok := raw.([]interface{}); ok {
		return parseBatch(batch, j.parseOne)
	}
	return j.parseOne(raw)
}

func (j *JSON) parseOne(raw interface{}) (interface{}, error) {
	data, err := payloadBytes(raw)
	if err != nil {
		return nil, &DataTypeError{Format: "json", Err: err}
	}
	if !gjson.ValidBytes(data) {
		return nil, &DataTypeError{Format: "json", Err: fmt.Errorf("invalid document")}
	}

	result := gjson.ParseBytes(data)
	if j.DataPath != "" {
		result = result.Get(j.DataPath)
		if !result.Exists() {
			return nil, &DataTypeError{Format: "json", Err: fmt.Errorf("data path %q not found", j.DataPath)}
		}
	}

	switch {
	case result.IsArray():
		items := result.Array()
		records := make([]core.Record, 0, len(items))
		for i, item := range items {
			if !item.IsObject() {
				return nil, &DataTypeError{Format: "json", Err: fmt.Errorf("item %d is not an object", i)}
			}
			records = append(records, toRecord(item))
		}
		return records, nil
	case result.IsObject():
		return toRecord(result), nil
	case result.Type == gjson.Null:
		return nil, nil
	default:
		return nil, &DataTypeError{Format: "json", Err: fmt.Errorf("unexpected %s value", result.Type)}
	}
}

const maxLineSize = 16 * 1024 * 1024

// JSONLines parses newline-delimited JSON objects into []core.Record.
type JSONLines struct{}

func NewJSONLines() *JSONLines {
	return &JSONLines{}
}

// ParseData implements core.DataTypeStrategy.
func (j *JSONLines) ParseData(raw interface{}) (interface{}, error) {
	if batch, ok := raw.([]interface{}); ok {
		return parseBatch(batch, j.parseOne)
	}
	return j.parseOne(raw)
}

func (j *JSONLines) parseOne(raw interface{}) (interface{}, error) {
	data, err := payloadBytes(raw)
	if err != nil {
		return nil, &DataTypeError{Format: "jsonl", Err: err}
	}

	var records []core.Record
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		if !gjson.ValidBytes(text) {
			return nil, &DataTypeError{Format: "jsonl", Err: fmt.Errorf("line %d: invalid JSON", line)}
		}
		result := gjson.ParseBytes(text)
		if !result.IsObject() {
			return nil, &DataTypeError{Format: "jsonl", Err: fmt.Errorf("line %d: not an object", line)}
		}
		records = append(records, toRecord(result))
	}
	if err := scanner.Err(); err != nil {
		return nil, &DataTypeError{Format: "jsonl", Err: err}
	}
	return records, nil
}

func toRecord(r gjson.Result) core.Record {
	if m, ok := r.Value().(map[string]interface{}); ok {
		return core.Record(m)
	}
	return core.Record{}
}

func payloadBytes(raw interface{}) ([]byte, error) {
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported payload type %T", raw)
	}
}

// parseBatch parses every payload of a batch and concatenates the records.
func parseBatch(batch []interface{}, parse func(interface{}) (interface{}, error)) (interface{}, error) {
	var records []core.Record
	for _, raw := range batch {
		parsed, err := parse(raw)
		if err != nil {
			return nil, err
		}
		switch v := parsed.(type) {
		case nil:
		case core.Record:
			records = append(records, v)
		case []core.Record:
			records = append(records, v...)
		default:
			return nil, fmt.Errorf("unexpected parsed content %T", parsed)
		}
	}
	return records, nil
}
