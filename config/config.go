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

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/log"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/protocols"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/stream"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/transform"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/validators"
)

// Package config loads engine and job configuration with viper.
//
// Every key can be overridden from the environment with dots replaced by
// underscores, e.g. DATA_BATCH_SIZE or STREAM_WAIT_FOR_END_ATTEMPTS.

const (
	DefaultDataBatchSize = 1000
	DefaultLogLevel      = "info"
	DefaultMetricsPrefix = "ingest"
)

type Config struct {
	DataBatchSize int           `mapstructure:"data_batch_size"`
	Stream        StreamConfig  `mapstructure:"stream"`
	Log           LogConfig     `mapstructure:"log"`
	Metrics       MetricsConfig `mapstructure:"metrics"`
	Job           JobConfig     `mapstructure:"job"`
}

type StreamConfig struct {
	WaitForEndAttempts int `mapstructure:"wait_for_end_attempts"`
	WaitForEndInterval int `mapstructure:"wait_for_end_interval"` // milliseconds
	HighWaterMark      int `mapstructure:"high_water_mark"`
}

// Options converts the stream section into stream options.
func (c StreamConfig) Options() []stream.Option {
	return []stream.Option{
		stream.WithHighWaterMark(c.HighWaterMark),
		stream.WithWaitForEnd(c.WaitForEndAttempts, time.Duration(c.WaitForEndInterval)*time.Millisecond),
	}
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Encoding   string `mapstructure:"encoding"`
	Caller     bool   `mapstructure:"caller"`
	Stacktrace bool   `mapstructure:"stacktrace"`
}

// Options converts the log section into log options.
func (c LogConfig) Options() (*log.Options, error) {
	opts, err := log.DefaultOptions().WithLevelName(c.Level)
	if err != nil {
		return nil, err
	}
	if c.Encoding != "" {
		opts.WithEncoding(log.Encoding(c.Encoding))
	}
	return opts.WithCaller(c.Caller).WithStacktrace(c.Stacktrace), nil
}

type MetricsConfig struct {
	Addr     string        `mapstructure:"addr"`
	Prefix   string        `mapstructure:"prefix"`
	Interval time.Duration `mapstructure:"interval"`
}

// JobConfig describes one ingestion job: where to read, how to parse, what to
// accept and where to save.
type JobConfig struct {
	Name        string `mapstructure:"name"`
	Protocol    string `mapstructure:"protocol"`
	UseBatching bool   `mapstructure:"use_batching"`

	SQL   protocols.SQLSettings   `mapstructure:"sql"`
	Mongo protocols.MongoSettings `mapstructure:"mongo"`
	HTTP  protocols.HTTPSettings  `mapstructure:"http"`
	File  protocols.FileSettings  `mapstructure:"file"`
	S3    protocols.S3Settings    `mapstructure:"s3"`

	DataType   DataTypeConfig          `mapstructure:"data_type"`
	Mapping    transform.MappingConfig `mapstructure:"mapping"`
	Validation validators.Config       `mapstructure:"validation"`
	Sink       SinkConfig              `mapstructure:"sink"`
}

type DataTypeConfig struct {
	Type        string   `mapstructure:"type"`
	DataPath    string   `mapstructure:"data_path"`
	ItemElement string   `mapstructure:"item_element"`
	Columns     []string `mapstructure:"columns"`
	Comma       string   `mapstructure:"comma"`
	NoHeaders   bool     `mapstructure:"no_headers"`
}

type SinkConfig struct {
	Type      string   `mapstructure:"type"`
	Path      string   `mapstructure:"path"`
	DSN       string   `mapstructure:"dsn"`
	Table     string   `mapstructure:"table"`
	Columns   []string `mapstructure:"columns"`
	BatchSize int      `mapstructure:"batch_size"`
	Upsert    []string `mapstructure:"upsert_keys"`
	Create    bool     `mapstructure:"create_table"`
}

var (
	protocolNames = []string{"sql", "mongo", "http", "file", "s3"}
	dataTypeNames = []string{"", "json", "jsonl", "csv", "xml", "parquet", "rows"}
	sinkNames     = []string{"jsonl", "csv", "parquet", "postgres"}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_batch_size", DefaultDataBatchSize)
	v.SetDefault("stream.wait_for_end_attempts", stream.DefaultWaitForEndAttempts)
	v.SetDefault("stream.wait_for_end_interval", int(stream.DefaultWaitForEndInterval/time.Millisecond))
	v.SetDefault("stream.high_water_mark", stream.DefaultHighWaterMark)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.encoding", string(log.JSONEncoding))
	v.SetDefault("metrics.prefix", DefaultMetricsPrefix)
	v.SetDefault("metrics.interval", time.Second)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the defaults with environment overrides applied.
func Default() (*Config, error) {
	return unmarshal(newViper())
}

// Load reads the YAML file at path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WithMessagef(err, "read config %s", path)
	}
	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Job.Validate(); err != nil {
		return nil, errors.WithMessage(err, "job")
	}
	return cfg, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WithMessage(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the engine settings.
func (c *Config) Validate() error {
	if c.DataBatchSize <= 0 {
		return fmt.Errorf("data_batch_size must be positive, got %d", c.DataBatchSize)
	}
	if c.Stream.WaitForEndAttempts <= 0 {
		return fmt.Errorf("stream.wait_for_end_attempts must be positive, got %d", c.Stream.WaitForEndAttempts)
	}
	if c.Stream.WaitForEndInterval <= 0 {
		return fmt.Errorf("stream.wait_for_end_interval must be positive, got %d", c.Stream.WaitForEndInterval)
	}
	if c.Stream.HighWaterMark <= 0 {
		return fmt.Errorf("stream.high_water_mark must be positive, got %d", c.Stream.HighWaterMark)
	}
	return nil
}

// Validate checks the job section.
func (j *JobConfig) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !oneOf(j.Protocol, protocolNames) {
		return fmt.Errorf("unknown protocol %q, expected one of %v", j.Protocol, protocolNames)
	}
	if !oneOf(j.DataType.Type, dataTypeNames) {
		return fmt.Errorf("unknown data type %q", j.DataType.Type)
	}
	if len([]rune(j.DataType.Comma)) > 1 {
		return fmt.Errorf("data_type.comma must be a single character")
	}
	if !oneOf(j.Sink.Type, sinkNames) {
		return fmt.Errorf("unknown sink %q, expected one of %v", j.Sink.Type, sinkNames)
	}
	return nil
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
