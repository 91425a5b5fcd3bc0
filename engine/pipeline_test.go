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

package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/datasource"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/stream"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/validators"
)

type itemsProtocol struct {
	items []interface{}
	err   error
}

func (f *itemsProtocol) GetData(ctx context.Context) (*stream.Stream, error) {
	i := 0
	return stream.New(
		stream.WithName("items"),
		stream.WithReader(func(ctx context.Context, s *stream.Stream) error {
			if i >= len(f.items) {
				if f.err != nil {
					return f.err
				}
				return s.End()
			}
			item := f.items[i]
			i++
			return s.Push(item)
		}),
	), nil
}

func (f *itemsProtocol) Destroy() error {
	return nil
}

type memorySink struct {
	mu       sync.Mutex
	saved    []interface{}
	failOn   int
	saveErr  error
	closeErr error
	calls    int
	closed   bool
}

func (m *memorySink) Save(ctx context.Context, content interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.saveErr != nil && m.calls == m.failOn {
		return m.saveErr
	}
	m.saved = append(m.saved, content)
	return nil
}

func (m *memorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.closeErr
}

func (m *memorySink) records() []interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interface{}{}, m.saved...)
}

func records(names ...string) []interface{} {
	out := make([]interface{}, len(names))
	for i, name := range names {
		out[i] = core.Record{"name": name}
	}
	return out
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestBuild_RequiresSourceAndSink(t *testing.T) {
	_, err := NewPipeline().To(&memorySink{}).Build()
	assert.ErrorIs(t, err, ErrNoSource)

	source := datasource.New("src", &itemsProtocol{})
	_, err = NewPipeline().From(source, false).Build()
	assert.ErrorIs(t, err, ErrNoSink)
}

func TestExecute_SavesEveryBatch(t *testing.T) {
	sink := &memorySink{}
	source := datasource.New("src", &itemsProtocol{items: records("a", "b", "c")}, datasource.WithBatchSize(2))

	p, err := NewPipeline().From(source, true).To(sink).Build()
	require.NoError(t, err)
	require.NoError(t, p.Execute(testContext(t)))

	saved := sink.records()
	require.Len(t, saved, 2)
	assert.ElementsMatch(t, []interface{}{
		[]interface{}{core.Record{"name": "a"}, core.Record{"name": "b"}},
		[]interface{}{core.Record{"name": "c"}},
	}, saved)
	assert.True(t, sink.closed)

	stats := p.Stats()
	assert.Equal(t, int64(2), stats.Saves)
	assert.Equal(t, int64(3), stats.RecordsWritten)
	assert.Zero(t, stats.Failed)
}

func TestExecute_FiltersAndTransforms(t *testing.T) {
	sink := &memorySink{}
	source := datasource.New("src", &itemsProtocol{items: records("a", "skip", "c")})

	p, err := NewPipeline().
		From(source, false).
		Where(func(ctx context.Context, r core.Record) (bool, error) {
			return r["name"] != "skip", nil
		}).
		Map(func(ctx context.Context, r core.Record) (core.Record, error) {
			out := r.Clone()
			out["seen"] = true
			return out, nil
		}).
		To(sink).
		Build()
	require.NoError(t, err)
	require.NoError(t, p.Execute(testContext(t)))

	assert.ElementsMatch(t, []interface{}{
		core.Record{"name": "a", "seen": true},
		core.Record{"name": "c", "seen": true},
	}, sink.records())
	assert.Equal(t, int64(1), p.Stats().Skipped)
}

func TestExecute_FailFastStopsOnSinkError(t *testing.T) {
	boom := errors.New("disk full")
	sink := &memorySink{saveErr: boom, failOn: 1}
	source := datasource.New("src", &itemsProtocol{items: records("a")})

	p, err := NewPipeline().From(source, false).To(sink).Build()
	require.NoError(t, err)

	err = p.Execute(testContext(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, sink.closed)
	assert.Equal(t, int64(1), p.Stats().Failed)
}

func TestExecute_SkipErrorsContinues(t *testing.T) {
	boom := errors.New("disk full")
	sink := &memorySink{saveErr: boom, failOn: 1}
	source := datasource.New("src", &itemsProtocol{items: records("a", "b", "c")}, datasource.WithBatchSize(1))

	var handled []error
	var mu sync.Mutex
	p, err := NewPipeline().
		From(source, true).
		To(sink).
		WithErrorStrategy(SkipErrors).
		WithErrorHandler(ErrorHandlerFunc(func(ctx context.Context, content interface{}, err error) error {
			mu.Lock()
			defer mu.Unlock()
			handled = append(handled, err)
			return nil
		})).
		Build()
	require.NoError(t, err)
	require.NoError(t, p.Execute(testContext(t)))

	assert.Len(t, sink.records(), 2)
	require.Len(t, handled, 1)
	assert.ErrorIs(t, handled[0], boom)
}

func TestExecute_CollectsReportedErrors(t *testing.T) {
	sink := &memorySink{}
	validator := validators.NewSchemaValidator(validators.WithRequiredFields("id"))
	items := []interface{}{core.Record{"id": 1}, core.Record{"name": "no id"}, core.Record{"id": 3}}
	source := datasource.New("src", &itemsProtocol{items: items}, datasource.WithValidator(validator))

	p, err := NewPipeline().From(source, false).To(sink).WithErrorStrategy(CollectErrors).Build()
	require.NoError(t, err)
	require.NoError(t, p.Execute(testContext(t)))

	assert.Len(t, sink.records(), 2)
	assert.Equal(t, int64(1), p.Stats().Reported)

	errs := multierr.Errors(p.Errors())
	require.Len(t, errs, 1)
	var verr *core.ValidationError
	assert.ErrorAs(t, errs[0], &verr)
}

func TestExecute_HandlerCanStopOnReportedError(t *testing.T) {
	stop := errors.New("stop")
	items := []interface{}{core.Record{"name": "no id"}, core.Record{"id": 2}}
	source := datasource.New("src", &itemsProtocol{items: items},
		datasource.WithValidator(validators.NewSchemaValidator(validators.WithRequiredFields("id"))))

	p, err := NewPipeline().
		From(source, false).
		To(&memorySink{}).
		WithErrorHandler(ErrorHandlerFunc(func(context.Context, interface{}, error) error {
			return stop
		})).
		Build()
	require.NoError(t, err)
	assert.ErrorIs(t, p.Execute(testContext(t)), stop)
}

func TestExecute_SourceFailure(t *testing.T) {
	boom := errors.New("connection reset")
	sink := &memorySink{closeErr: errors.New("close failed")}
	source := datasource.New("src", &itemsProtocol{items: records("a"), err: boom})

	p, err := NewPipeline().From(source, false).To(sink).Build()
	require.NoError(t, err)

	err = p.Execute(testContext(t))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "close sink: close failed")
}

func TestWaitAll(t *testing.T) {
	first := &memorySink{}
	second := &memorySink{}

	p1, err := NewPipeline().From(datasource.New("one", &itemsProtocol{items: records("a")}), false).To(first).Build()
	require.NoError(t, err)
	p2, err := NewPipeline().From(datasource.New("two", &itemsProtocol{items: records("b", "c")}), false).To(second).Build()
	require.NoError(t, err)

	require.NoError(t, WaitAll(testContext(t), p1, p2))
	assert.Len(t, first.records(), 1)
	assert.Len(t, second.records(), 2)
}

func TestWaitAll_ReturnsFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	p1, err := NewPipeline().From(datasource.New("bad", &itemsProtocol{err: boom}), false).To(&memorySink{}).Build()
	require.NoError(t, err)

	err = WaitAll(testContext(t), p1)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "pipeline bad")
}
