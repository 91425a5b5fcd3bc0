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

package datasource

import (
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/log"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/metrics"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/stream"
)

// DefaultBatchSize is the number of inward records collected per flush when batching.
const DefaultBatchSize = 1000

type Options struct {
	DataType      core.DataTypeStrategy
	Validator     core.Validator
	Metrics       metrics.Sink
	Logger        log.Logger
	BatchSize     int
	StreamOptions []stream.Option
}

type Option func(*Options)

func WithDataType(dataType core.DataTypeStrategy) Option {
	return func(o *Options) {
		o.DataType = dataType
	}
}

func WithValidator(validator core.Validator) Option {
	return func(o *Options) {
		o.Validator = validator
	}
}

func WithMetrics(sink metrics.Sink) Option {
	return func(o *Options) {
		o.Metrics = sink
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithBatchSize(n int) Option {
	return func(o *Options) {
		o.BatchSize = n
	}
}

// WithStreamOptions sets options applied to the outward stream.
func WithStreamOptions(options ...stream.Option) Option {
	return func(o *Options) {
		o.StreamOptions = append(o.StreamOptions, options...)
	}
}

func (o *Options) withDefaults() *Options {
	result := *o
	if result.BatchSize <= 0 {
		result.BatchSize = DefaultBatchSize
	}
	if result.Metrics == nil {
		result.Metrics = metrics.Nop
	}
	if result.Logger == nil {
		result.Logger = log.Global()
	}
	return &result
}
