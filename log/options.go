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
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Encoding selects the output format of the root logger.
type Encoding string

const (
	JSONEncoding    Encoding = "json"
	ConsoleEncoding Encoding = "console"
)

// Options configures Setup.
type Options struct {
	encoding   Encoding
	level      zapcore.Level
	caller     bool
	stacktrace bool
	timeLayout string
	name       string
}

func (o *Options) WithEncoding(encoding Encoding) *Options {
	o.encoding = encoding
	return o
}

func (o *Options) WithLevel(level zapcore.Level) *Options {
	o.level = level
	return o
}

// WithLevelName parses a level such as "debug" or "WARN".
func (o *Options) WithLevelName(name string) (*Options, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return o, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	o.level = level
	return o, nil
}

func (o *Options) WithCaller(caller bool) *Options {
	o.caller = caller
	return o
}

func (o *Options) WithStacktrace(stacktrace bool) *Options {
	o.stacktrace = stacktrace
	return o
}

func (o *Options) WithTimeLayout(timeLayout string) *Options {
	o.timeLayout = timeLayout
	return o
}

func (o *Options) WithNamed(name string) *Options {
	o.name = name
	return o
}

func DefaultOptions() *Options {
	return &Options{
		encoding:   JSONEncoding,
		level:      zapcore.InfoLevel,
		timeLayout: "2006-01-02T15:04:05.000Z0700",
	}
}
