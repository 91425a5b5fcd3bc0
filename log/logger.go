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

// Package log provides the named, structured loggers used by every pipeline component.
//
// The root logger is built once with Setup; components derive children with Named.
// Before Setup is called, Global returns a logger that discards everything, so
// library code can log unconditionally.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger handed to pipeline components.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Fatalw(msg string, keysAndValues ...interface{})

	// Named returns a child logger whose name is appended to the parent's.
	Named(name string) Logger
	// With returns a child logger carrying the given key/value pairs.
	With(keysAndValues ...interface{}) Logger
	Sync() error
}

var (
	rootLogger Logger = &logger{zap.NewNop().Sugar()}
	configured bool
	mutex      = &sync.Mutex{}
)

type logger struct {
	*zap.SugaredLogger
}

func (l *logger) Named(name string) Logger {
	return &logger{l.SugaredLogger.Named(name)}
}

func (l *logger) With(keysAndValues ...interface{}) Logger {
	return &logger{l.SugaredLogger.With(keysAndValues...)}
}

// Global returns the root logger.
func Global() Logger {
	mutex.Lock()
	defer mutex.Unlock()
	return rootLogger
}

// Wrap adapts an existing zap logger, e.g. zaptest.NewLogger in tests.
func Wrap(l *zap.Logger) Logger {
	return &logger{l.Sugar()}
}

// Setup builds the root logger. Info and debug go to stdout, warnings and above to stderr.
// Subsequent calls are ignored.
func Setup(options *Options) {
	mutex.Lock()
	defer mutex.Unlock()
	if configured {
		rootLogger.Warnw("can't re setup root logger")
		return
	}
	var (
		opts          []zap.Option
		encoderConfig = zap.NewProductionEncoderConfig()
	)

	if options.caller {
		opts = append(opts, zap.AddCaller())
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	}
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(options.timeLayout)
	encoderConfig.ConsoleSeparator = " "

	encoder := zapcore.NewJSONEncoder(encoderConfig)
	if options.encoding == ConsoleEncoding {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	level := options.level
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= level && lvl < zapcore.WarnLevel
			})),
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= level && lvl >= zapcore.WarnLevel
			})),
	}

	if options.stacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	sugared := zap.New(zapcore.NewTee(cores...), opts...).Sugar()
	if options.name != "" {
		sugared = sugared.Named(options.name)
	}

	rootLogger = &logger{sugared}
	configured = true
}
