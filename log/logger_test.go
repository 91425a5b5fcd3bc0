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

package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithLevelName(t *testing.T) {
	tests := []struct {
		name    string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := DefaultOptions().WithLevelName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, opts.level)
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, JSONEncoding, opts.encoding)
	assert.Equal(t, zapcore.InfoLevel, opts.level)
	assert.False(t, opts.caller)

	opts.WithEncoding(ConsoleEncoding).WithCaller(true).WithStacktrace(true).WithNamed("ingest")
	assert.Equal(t, ConsoleEncoding, opts.encoding)
	assert.True(t, opts.caller)
	assert.True(t, opts.stacktrace)
	assert.Equal(t, "ingest", opts.name)
}

func TestWrap_NamedAndWith(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := Wrap(zap.New(core)).Named("datasource").Named("parkings").With("batch", 3)

	logger.Infow("flushed", "records", 10)
	logger.Debugw("detail")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "datasource.parkings", entries[0].LoggerName)
	assert.Equal(t, "flushed", entries[0].Message)
	assert.Equal(t, map[string]interface{}{"batch": int64(3), "records": int64(10)}, entries[0].ContextMap())
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
}

func TestGlobal_DiscardsBeforeSetup(t *testing.T) {
	logger := Global()
	require.NotNil(t, logger)
	assert.NotPanics(t, func() {
		logger.Named("x").With("k", "v").Infow("dropped")
	})
}
