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

package core

import (
	"context"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/stream"
)

// This file contains the collaborator interfaces of a data source: the protocol
// that reads raw payloads, the data type that parses them, the validator and
// the record transformer.

// ProtocolStrategy reads raw records from an external system.
// Implementations also expose a typed SetConnectionSettings method.
type ProtocolStrategy interface {
	// GetData opens the upstream and returns a stream of raw records.
	// The stream ends when the upstream is exhausted.
	GetData(ctx context.Context) (*stream.Stream, error)
	// Destroy releases the upstream handle of the current read, if any.
	Destroy() error
}

// DataTypeStrategy converts raw protocol payloads into structured content.
// Implementations must be pure.
type DataTypeStrategy interface {
	ParseData(raw interface{}) (interface{}, error)
}

// Validator checks structured content before it leaves a data source.
type Validator interface {
	// Validate returns nil when content is valid.
	Validate(ctx context.Context, content interface{}) error
}

// Transformer defines the interface for data transformation operations.
// Transformers modify or enrich records as they pass through the pipeline.
type Transformer interface {
	// Transform applies the transformation to a record and returns the result.
	Transform(ctx context.Context, record Record) (Record, error)
}

// Filter decides whether a record is kept by a mapping.
type Filter interface {
	ShouldInclude(ctx context.Context, record Record) (bool, error)
}
