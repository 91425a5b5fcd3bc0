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

package main

import (
	"context"
	"fmt"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/config"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/datasource"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/datatypes"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/engine"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/log"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/metrics"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/protocols"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/sinks"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/transform"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/validators"
)

// buildPipeline assembles the job's protocol, data source and sink.
func buildPipeline(ctx context.Context, cfg *config.Config, sink metrics.Sink, logger log.Logger) (*engine.Pipeline, error) {
	job := cfg.Job
	protocol, err := buildProtocol(cfg, logger)
	if err != nil {
		return nil, err
	}
	dataType, err := buildDataType(job)
	if err != nil {
		return nil, err
	}

	options := []datasource.Option{
		datasource.WithBatchSize(cfg.DataBatchSize),
		datasource.WithMetrics(sink),
		datasource.WithLogger(logger),
		datasource.WithStreamOptions(cfg.Stream.Options()...),
	}
	if dataType != nil {
		options = append(options, datasource.WithDataType(dataType))
	}
	if !job.Validation.IsZero() {
		validator, err := validators.FromConfig(job.Validation)
		if err != nil {
			return nil, fmt.Errorf("validation: %w", err)
		}
		options = append(options, datasource.WithValidator(validator))
	}
	source := datasource.New(job.Name, protocol, options...)

	out, err := buildSink(ctx, job.Sink)
	if err != nil {
		return nil, err
	}
	pipeline, err := engine.NewPipeline().
		From(source, job.UseBatching).
		To(out).
		WithErrorStrategy(engine.SkipErrors).
		WithLogger(logger).
		Build()
	if err != nil {
		out.Close()
		return nil, err
	}
	return pipeline, nil
}

func buildProtocol(cfg *config.Config, logger log.Logger) (core.ProtocolStrategy, error) {
	job := cfg.Job
	options := []protocols.Option{
		protocols.WithName(job.Name),
		protocols.WithBatchSize(cfg.DataBatchSize),
		protocols.WithLogger(logger),
		protocols.WithStreamOptions(cfg.Stream.Options()...),
	}
	switch job.Protocol {
	case "sql":
		return protocols.NewSQLStrategy(job.SQL, options...), nil
	case "mongo":
		return protocols.NewMongoStrategy(job.Mongo, options...), nil
	case "http":
		return protocols.NewHTTPStrategy(job.HTTP, options...), nil
	case "file":
		return protocols.NewFileStrategy(job.File, options...), nil
	case "s3":
		return protocols.NewS3Strategy(job.S3, options...), nil
	}
	return nil, fmt.Errorf("unknown protocol %q", job.Protocol)
}

// buildDataType returns nil when records need no parsing and no mapping.
func buildDataType(job config.JobConfig) (core.DataTypeStrategy, error) {
	var parser core.DataTypeStrategy
	dt := job.DataType
	switch dt.Type {
	case "":
	case "json":
		parser = datatypes.NewJSON(dt.DataPath)
	case "jsonl":
		parser = datatypes.NewJSONLines()
	case "csv":
		options := []datatypes.CSVOption{datatypes.WithCSVHasHeaders(!dt.NoHeaders)}
		if dt.Comma != "" {
			options = append(options, datatypes.WithCSVComma([]rune(dt.Comma)[0]))
		}
		parser = datatypes.NewCSV(options...)
	case "xml":
		parser = datatypes.NewXML(dt.ItemElement)
	case "parquet":
		parser = datatypes.NewParquet(dt.Columns...)
	case "rows":
		parser = datatypes.NewRows()
	default:
		return nil, fmt.Errorf("unknown data type %q", dt.Type)
	}

	if job.Mapping.IsZero() {
		return parser, nil
	}
	mapping, err := transform.FromConfig(parser, job.Mapping)
	if err != nil {
		return nil, fmt.Errorf("mapping: %w", err)
	}
	return mapping, nil
}

func buildSink(ctx context.Context, cfg config.SinkConfig) (engine.DataSink, error) {
	switch cfg.Type {
	case "jsonl":
		return sinks.CreateJSONLSink(cfg.Path)
	case "csv":
		var options []sinks.CSVOption
		if len(cfg.Columns) > 0 {
			options = append(options, sinks.WithHeaders(cfg.Columns...))
		}
		return sinks.CreateCSVSink(cfg.Path, options...)
	case "parquet":
		var options []sinks.ParquetOption
		if len(cfg.Columns) > 0 {
			options = append(options, sinks.WithFieldOrder(cfg.Columns...))
		}
		return sinks.CreateParquetSink(cfg.Path, options...)
	case "postgres":
		options := []sinks.PostgresOption{
			sinks.WithPostgresDSN(cfg.DSN),
			sinks.WithTableName(cfg.Table),
			sinks.WithPostgresBatchSize(cfg.BatchSize),
			sinks.WithCreateTable(cfg.Create),
		}
		if len(cfg.Columns) > 0 {
			options = append(options, sinks.WithColumns(cfg.Columns...))
		}
		if len(cfg.Upsert) > 0 {
			options = append(options, sinks.WithConflictResolution(sinks.ConflictUpdate, cfg.Upsert, nil))
		}
		return sinks.OpenPostgresSink(ctx, options...)
	}
	return nil, fmt.Errorf("unknown sink %q", cfg.Type)
}
