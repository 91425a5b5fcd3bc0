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
	"fmt"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
)

// Rows flattens row pages produced by the SQL and Mongo protocols. A page
// ([]core.Record) passes through; a batch of pages is concatenated.
type Rows struct{}

func NewRows() *Rows {
	return &Rows{}
}

// ParseData implements core.DataTypeStrategy.
func (r *Rows) ParseData(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case core.Record:
		return []core.Record{v}, nil
	case map[string]interface{}:
		return []core.Record{core.Record(v)}, nil
	case []core.Record:
		return v, nil
	case []map[string]interface{}:
		records := make([]core.Record, len(v))
		for i, m := range v {
			records[i] = core.Record(m)
		}
		return records, nil
	case []interface{}:
		return parseBatch(v, r.ParseData)
	default:
		return nil, &DataTypeError{Format: "rows", Err: fmt.Errorf("unsupported payload type %T", raw)}
	}
}
