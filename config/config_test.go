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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jobYAML = `
data_batch_size: 50
stream:
  wait_for_end_attempts: 5
log:
  level: debug
  encoding: console
job:
  name: parkings
  protocol: http
  use_batching: true
  http:
    url: https://api.example.com/parkings
    timeout: 5s
    pagination:
      type: offset
      page_size: 100
      data_path: data
  data_type:
    type: json
    data_path: data
  mapping:
    rename:
      id: parking_id
    convert:
      capacity: int
  validation:
    required: [parking_id]
    fields:
      capacity:
        type: int
        min: 0
  sink:
    type: jsonl
    path: out.jsonl
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.DataBatchSize)
	assert.Equal(t, 10, cfg.Stream.WaitForEndAttempts)
	assert.Equal(t, 100, cfg.Stream.WaitForEndInterval)
	assert.Equal(t, 16, cfg.Stream.HighWaterMark)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, time.Second, cfg.Metrics.Interval)
	assert.Len(t, cfg.Stream.Options(), 2)
}

func TestDefault_EnvOverride(t *testing.T) {
	t.Setenv("DATA_BATCH_SIZE", "25")
	t.Setenv("STREAM_WAIT_FOR_END_INTERVAL", "250")

	cfg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.DataBatchSize)
	assert.Equal(t, 250, cfg.Stream.WaitForEndInterval)
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, jobYAML))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.DataBatchSize)
	assert.Equal(t, 5, cfg.Stream.WaitForEndAttempts)
	assert.Equal(t, 100, cfg.Stream.WaitForEndInterval)

	job := cfg.Job
	assert.Equal(t, "parkings", job.Name)
	assert.True(t, job.UseBatching)
	assert.Equal(t, "https://api.example.com/parkings", job.HTTP.URL)
	assert.Equal(t, 5*time.Second, job.HTTP.Timeout)
	require.NotNil(t, job.HTTP.Pagination)
	assert.Equal(t, 100, job.HTTP.Pagination.PageSize)
	assert.Equal(t, "json", job.DataType.Type)
	assert.Equal(t, map[string]string{"id": "parking_id"}, job.Mapping.Rename)
	assert.Equal(t, []string{"parking_id"}, job.Validation.Required)
	require.NotNil(t, job.Validation.Fields["capacity"].Min)
	assert.Equal(t, 0.0, *job.Validation.Fields["capacity"].Min)
	assert.Equal(t, "jsonl", job.Sink.Type)

	opts, err := cfg.Log.Options()
	require.NoError(t, err)
	assert.NotNil(t, opts)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad batch size", "data_batch_size: 0\njob: {name: a, protocol: file, sink: {type: jsonl}}"},
		{"missing job name", "job: {protocol: file, sink: {type: jsonl}}"},
		{"unknown protocol", "job: {name: a, protocol: ftp, sink: {type: jsonl}}"},
		{"unknown data type", "job: {name: a, protocol: file, data_type: {type: yaml}, sink: {type: jsonl}}"},
		{"unknown sink", "job: {name: a, protocol: file, sink: {type: kafka}}"},
		{"long comma", "job: {name: a, protocol: file, data_type: {type: csv, comma: ';;'}, sink: {type: csv}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLogConfig_InvalidLevel(t *testing.T) {
	_, err := LogConfig{Level: "loud"}.Options()
	assert.Error(t, err)
}
