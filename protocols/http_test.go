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
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/stream"
)

func collectBodies(t *testing.T, s *stream.Stream) ([]string, error) {
	t.Helper()
	var mu sync.Mutex
	var bodies []string
	require.NoError(t, s.OnData(func(ctx context.Context, item interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		bodies = append(bodies, string(item.([]byte)))
		return nil
	}))
	err := s.Proceed(context.Background())
	mu.Lock()
	defer mu.Unlock()
	return bodies, err
}

func TestHTTPStrategy_SinglePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "cz", r.URL.Query().Get("lang"))
		fmt.Fprint(w, `{"data":[{"id":1}]}`)
	}))
	defer server.Close()

	strategy := NewHTTPStrategy(HTTPSettings{
		URL:         server.URL,
		QueryParams: map[string]string{"lang": "cz"},
		Auth:        &AuthConfig{Type: "bearer", Token: "secret"},
	})

	s, err := strategy.GetData(context.Background())
	require.NoError(t, err)

	bodies, err := collectBodies(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"data":[{"id":1}]}`}, bodies)
	assert.False(t, strategy.session.busy())
}

func TestHTTPStrategy_OffsetPaginationStopsOnShortPage(t *testing.T) {
	var offsets []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		offsets = append(offsets, r.URL.Query().Get("offset"))
		mu.Unlock()
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		switch offset {
		case 0:
			fmt.Fprint(w, `{"items":[{"id":1},{"id":2}]}`)
		default:
			fmt.Fprint(w, `{"items":[{"id":3}]}`)
		}
	}))
	defer server.Close()

	strategy := NewHTTPStrategy(HTTPSettings{
		URL: server.URL,
		Pagination: &PaginationConfig{
			Type:        "offset",
			LimitParam:  "limit",
			OffsetParam: "offset",
			PageSize:    2,
			DataPath:    "items",
		},
	})

	s, err := strategy.GetData(context.Background())
	require.NoError(t, err)
	bodies, err := collectBodies(t, s)
	require.NoError(t, err)

	assert.Len(t, bodies, 2)
	assert.Equal(t, []string{"0", "2"}, offsets)
}

func TestHTTPStrategy_CursorPagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("cursor") {
		case "":
			fmt.Fprint(w, `{"data":[1],"meta":{"next":"abc"}}`)
		case "abc":
			fmt.Fprint(w, `{"data":[2],"meta":{"next":"def"}}`)
		default:
			fmt.Fprint(w, `{"data":[3],"meta":{"next":""}}`)
		}
	}))
	defer server.Close()

	strategy := NewHTTPStrategy(HTTPSettings{
		URL: server.URL,
		Pagination: &PaginationConfig{
			Type:        "cursor",
			CursorParam: "cursor",
			CursorPath:  "meta.next",
		},
	})

	s, err := strategy.GetData(context.Background())
	require.NoError(t, err)
	bodies, err := collectBodies(t, s)
	require.NoError(t, err)
	assert.Len(t, bodies, 3)
}

func TestHTTPStrategy_HasMoreAndMaxPages(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		fmt.Fprintf(w, `{"page":%s,"has_more":true}`, r.URL.Query().Get("page"))
	}))
	defer server.Close()

	strategy := NewHTTPStrategy(HTTPSettings{
		URL: server.URL,
		Pagination: &PaginationConfig{
			Type:        "page",
			PageParam:   "page",
			PageSize:    10,
			MaxPages:    3,
			HasMorePath: "has_more",
		},
	})

	s, err := strategy.GetData(context.Background())
	require.NoError(t, err)
	bodies, err := collectBodies(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"page":1,"has_more":true}`, `{"page":2,"has_more":true}`, `{"page":3,"has_more":true}`}, bodies)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestHTTPStrategy_RetriesServerErrors(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	strategy := NewHTTPStrategy(HTTPSettings{
		URL:           server.URL,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	})

	s, err := strategy.GetData(context.Background())
	require.NoError(t, err)
	bodies, err := collectBodies(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"[]"}, bodies)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestHTTPStrategy_ClientErrorIsFatal(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	strategy := NewHTTPStrategy(HTTPSettings{URL: server.URL, RetryAttempts: 3, RetryDelay: time.Millisecond})

	s, err := strategy.GetData(context.Background())
	require.NoError(t, err)
	_, err = collectBodies(t, s)

	var srcErr *core.SourceError
	require.True(t, errors.As(err, &srcErr))
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
	assert.False(t, strategy.session.busy())
}

func TestHTTPStrategy_RequiresURL(t *testing.T) {
	_, err := NewHTTPStrategy(HTTPSettings{}).GetData(context.Background())
	require.Error(t, err)
}

func TestHTTPError(t *testing.T) {
	base := errors.New("boom")
	assert.Equal(t, "http status_check [500] http://x: boom", (&HTTPError{Op: "status_check", StatusCode: 500, URL: "http://x", Err: base}).Error())
	assert.Equal(t, "http request http://x: boom", (&HTTPError{Op: "request", URL: "http://x", Err: base}).Error())
}

func TestCountItems(t *testing.T) {
	assert.Equal(t, 2, countItems([]byte(`[1,2]`), ""))
	assert.Equal(t, 3, countItems([]byte(`{"a":{"b":[1,2,3]}}`), "a.b"))
	assert.Equal(t, 0, countItems([]byte(`{"a":1}`), "a"))
}
