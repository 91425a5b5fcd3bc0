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

package protocols

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/log"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/stream"
)

// This file implements the file feed protocols: a list of objects is resolved
// when the read starts and each object's content is pushed as one []byte.

// FileSettings configures FileStrategy.
type FileSettings struct {
	Paths   []string `mapstructure:"paths"`
	Pattern string   `mapstructure:"pattern"` // filepath.Glob pattern
}

// FileStrategy reads local files.
type FileStrategy struct {
	mu       sync.Mutex
	settings FileSettings
	opts     *Options
	session  session
}

func NewFileStrategy(settings FileSettings, options ...Option) *FileStrategy {
	return &FileStrategy{
		settings: settings,
		opts:     buildOptions("file", options),
	}
}

// SetConnectionSettings replaces the settings used by the next read.
func (f *FileStrategy) SetConnectionSettings(settings FileSettings) error {
	if f.session.busy() {
		return core.ErrReadInProgress
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = settings
	return nil
}

func (f *FileStrategy) Settings() FileSettings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings
}

// GetData resolves the file list and returns a stream of file contents.
func (f *FileStrategy) GetData(ctx context.Context) (*stream.Stream, error) {
	paths, err := f.resolve()
	if err != nil {
		return nil, &core.SourceError{Op: "list", Source: f.opts.Name, Err: err}
	}

	handle, err := f.session.begin()
	if err != nil {
		return nil, err
	}
	feed := &feedReader{
		name:   f.opts.Name,
		keys:   paths,
		handle: handle,
		logger: f.opts.Logger,
		fetch: func(ctx context.Context, path string) ([]byte, error) {
			return os.ReadFile(path)
		},
	}
	return f.session.open(handle, f.opts, feed.read, nil), nil
}

// Destroy aborts the active read.
func (f *FileStrategy) Destroy() error {
	return f.session.destroy()
}

func (f *FileStrategy) resolve() ([]string, error) {
	settings := f.Settings()
	paths := append([]string{}, settings.Paths...)
	if settings.Pattern != "" {
		matches, err := filepath.Glob(settings.Pattern)
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	if len(paths) == 0 && settings.Pattern == "" {
		return nil, fmt.Errorf("paths or pattern is required")
	}
	return paths, nil
}

// feedReader pushes one object per pull, then ends.
type feedReader struct {
	name   string
	keys   []string
	next   int
	fetch  func(ctx context.Context, key string) ([]byte, error)
	handle *readHandle
	logger log.Logger
}

func (r *feedReader) read(ctx context.Context, s *stream.Stream) error {
	if r.next >= len(r.keys) {
		if err := r.handle.Close(); err != nil {
			return err
		}
		return s.End()
	}

	key := r.keys[r.next]
	r.next++

	data, err := r.fetch(ctx, key)
	if err != nil {
		return &core.SourceError{Op: "read", Source: r.name, Err: fmt.Errorf("%s: %w", key, err)}
	}
	r.logger.Debugw("read object", "key", key, "bytes", len(data))
	return s.Push(data)
}
