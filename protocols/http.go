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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/log"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/stream"
)

// This file implements the HTTP protocol. Each response body is pushed as raw
// []byte; parsing is left to the data type strategy. Pagination state is read
// from the body with gjson paths.

// HTTPError provides structured error information for HTTP requests
type HTTPError struct {
	Op         string // Operation that failed (e.g., "request", "status_check", "read_response")
	StatusCode int
	URL        string
	Err        error
}

func (e *HTTPError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("http %s [%d] %s: %v", e.Op, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("http %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// AuthConfig defines authentication configuration
type AuthConfig struct {
	Type        string `mapstructure:"type"` // "bearer", "basic", "apikey"
	Token       string `mapstructure:"token"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	HeaderName  string `mapstructure:"header_name"`
	HeaderValue string `mapstructure:"header_value"`
	QueryParam  string `mapstructure:"query_param"`
}

// PaginationConfig defines pagination behavior
type PaginationConfig struct {
	Type        string `mapstructure:"type"` // "offset", "page", "cursor", "none"
	LimitParam  string `mapstructure:"limit_param"`
	OffsetParam string `mapstructure:"offset_param"`
	PageParam   string `mapstructure:"page_param"`
	CursorParam string `mapstructure:"cursor_param"`
	PageSize    int    `mapstructure:"page_size"`
	MaxPages    int    `mapstructure:"max_pages"`
	// gjson paths into the response body
	DataPath    string `mapstructure:"data_path"`
	CursorPath  string `mapstructure:"cursor_path"`
	HasMorePath string `mapstructure:"has_more_path"`
	TotalPath   string `mapstructure:"total_path"`
	NextURLPath string `mapstructure:"next_url_path"`
}

// HTTPSettings configures HTTPStrategy.
type HTTPSettings struct {
	URL              string            `mapstructure:"url"`
	Method           string            `mapstructure:"method"`
	Headers          map[string]string `mapstructure:"headers"`
	QueryParams      map[string]string `mapstructure:"query_params"`
	Body             string            `mapstructure:"body"`
	Auth             *AuthConfig       `mapstructure:"auth"`
	Pagination       *PaginationConfig `mapstructure:"pagination"`
	Timeout          time.Duration     `mapstructure:"timeout"`
	RetryAttempts    int               `mapstructure:"retry_attempts"`
	RetryDelay       time.Duration     `mapstructure:"retry_delay"`
	ValidStatusCodes []int             `mapstructure:"valid_status_codes"`
	UserAgent        string            `mapstructure:"user_agent"`
	MaxResponseSize  int64             `mapstructure:"max_response_size"`
}

func (s HTTPSettings) withDefaults() HTTPSettings {
	if s.Method == "" {
		s.Method = http.MethodGet
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = time.Second
	}
	if len(s.ValidStatusCodes) == 0 {
		s.ValidStatusCodes = []int{200, 201, 202}
	}
	if s.UserAgent == "" {
		s.UserAgent = "integration-engine/1.0"
	}
	if s.MaxResponseSize <= 0 {
		s.MaxResponseSize = 100 * 1024 * 1024 // 100MB
	}
	return s
}

// HTTPStrategy fetches one or more pages from an HTTP API.
type HTTPStrategy struct {
	mu       sync.Mutex
	settings HTTPSettings
	opts     *Options
	session  session
}

func NewHTTPStrategy(settings HTTPSettings, options ...Option) *HTTPStrategy {
	return &HTTPStrategy{
		settings: settings,
		opts:     buildOptions("http", options),
	}
}

// SetConnectionSettings replaces the settings used by the next read.
func (h *HTTPStrategy) SetConnectionSettings(settings HTTPSettings) error {
	if h.session.busy() {
		return core.ErrReadInProgress
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settings = settings
	return nil
}

func (h *HTTPStrategy) Settings() HTTPSettings {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.settings
}

// GetData returns a stream of response bodies, one []byte per page.
func (h *HTTPStrategy) GetData(ctx context.Context) (*stream.Stream, error) {
	settings := h.Settings().withDefaults()
	if settings.URL == "" {
		return nil, &core.SourceError{Op: "validate", Source: h.opts.Name, Err: fmt.Errorf("url is required")}
	}
	if _, err := url.Parse(settings.URL); err != nil {
		return nil, &core.SourceError{Op: "validate", Source: h.opts.Name, Err: err}
	}

	handle, err := h.session.begin()
	if err != nil {
		return nil, err
	}

	client := h.opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: settings.Timeout}
	}
	reader := &httpReader{
		name:     h.opts.Name,
		settings: settings,
		client:   client,
		handle:   handle,
		logger:   h.opts.Logger,
		page:     1,
	}
	return h.session.open(handle, h.opts, reader.read, nil), nil
}

// Destroy aborts the active read.
func (h *HTTPStrategy) Destroy() error {
	return h.session.destroy()
}

type httpReader struct {
	name     string
	settings HTTPSettings
	client   *http.Client
	handle   *readHandle
	logger   log.Logger

	page    int
	fetched int
	cursor  string
	nextURL string
	done    bool
}

func (r *httpReader) read(ctx context.Context, s *stream.Stream) error {
	if r.done {
		return r.finish(s)
	}

	requestURL, err := r.requestURL()
	if err != nil {
		return &core.SourceError{Op: "build_url", Source: r.name, Err: err}
	}

	body, err := r.executeWithRetry(ctx, requestURL)
	if err != nil {
		return &core.SourceError{Op: "request", Source: r.name, Err: err}
	}
	r.fetched++
	r.logger.Debugw("fetched page", "url", requestURL, "bytes", len(body), "page", r.fetched)

	r.advance(body)
	if err := s.Push(body); err != nil {
		return err
	}
	if r.done {
		return r.finish(s)
	}
	return nil
}

func (r *httpReader) finish(s *stream.Stream) error {
	if err := r.handle.Close(); err != nil {
		return err
	}
	return s.End()
}

// requestURL builds the URL for the current page
func (r *httpReader) requestURL() (string, error) {
	if r.nextURL != "" {
		return r.nextURL, nil
	}

	u, err := url.Parse(r.settings.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range r.settings.QueryParams {
		q.Set(k, v)
	}

	if pg := r.settings.Pagination; pg != nil {
		if pg.LimitParam != "" && pg.PageSize > 0 {
			q.Set(pg.LimitParam, strconv.Itoa(pg.PageSize))
		}
		switch pg.Type {
		case "offset":
			if pg.OffsetParam != "" {
				q.Set(pg.OffsetParam, strconv.Itoa((r.page-1)*pg.PageSize))
			}
		case "page":
			if pg.PageParam != "" {
				q.Set(pg.PageParam, strconv.Itoa(r.page))
			}
		case "cursor":
			if pg.CursorParam != "" && r.cursor != "" {
				q.Set(pg.CursorParam, r.cursor)
			}
		}
	}

	if auth := r.settings.Auth; auth != nil && auth.Type == "apikey" && auth.QueryParam != "" {
		q.Set(auth.QueryParam, auth.HeaderValue)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// advance updates pagination state from a response body
func (r *httpReader) advance(body []byte) {
	pg := r.settings.Pagination
	if pg == nil || pg.Type == "" || pg.Type == "none" {
		r.done = true
		return
	}
	if pg.MaxPages > 0 && r.fetched >= pg.MaxPages {
		r.done = true
		return
	}

	if pg.NextURLPath != "" {
		r.nextURL = gjson.GetBytes(body, pg.NextURLPath).String()
		r.done = r.nextURL == ""
		return
	}

	switch pg.Type {
	case "cursor":
		r.cursor = gjson.GetBytes(body, pg.CursorPath).String()
		r.done = pg.CursorPath == "" || r.cursor == ""
	case "offset", "page":
		r.page++
		switch {
		case pg.HasMorePath != "":
			r.done = !gjson.GetBytes(body, pg.HasMorePath).Bool()
		case pg.TotalPath != "":
			total := gjson.GetBytes(body, pg.TotalPath).Int()
			r.done = int64((r.page-1)*pg.PageSize) >= total
		default:
			r.done = pg.PageSize <= 0 || countItems(body, pg.DataPath) < pg.PageSize
		}
	default:
		r.done = true
	}
}

// countItems returns the length of the array at path, or of the root array.
func countItems(body []byte, path string) int {
	var result gjson.Result
	if path == "" {
		result = gjson.ParseBytes(body)
	} else {
		result = gjson.GetBytes(body, path)
	}
	if !result.IsArray() {
		return 0
	}
	return len(result.Array())
}

// executeWithRetry retries rate limits and server errors with exponential backoff
func (r *httpReader) executeWithRetry(ctx context.Context, requestURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= r.settings.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := r.settings.RetryDelay * time.Duration(1<<uint(attempt-1))
			r.logger.Debugw("retrying request", "url", requestURL, "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		data, err := r.execute(ctx, requestURL)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if httpErr, ok := err.(*HTTPError); ok && (httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500) {
			continue
		}
		break
	}

	return nil, lastErr
}

func (r *httpReader) execute(ctx context.Context, requestURL string) ([]byte, error) {
	var body io.Reader
	if r.settings.Body != "" {
		body = bytes.NewBufferString(r.settings.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.settings.Method, requestURL, body)
	if err != nil {
		return nil, &HTTPError{Op: "create_request", URL: requestURL, Err: err}
	}
	req.Header.Set("User-Agent", r.settings.UserAgent)
	for k, v := range r.settings.Headers {
		req.Header.Set(k, v)
	}
	if err := addAuthentication(req, r.settings.Auth); err != nil {
		return nil, &HTTPError{Op: "auth", URL: requestURL, Err: err}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &HTTPError{Op: "request", URL: requestURL, Err: err}
	}
	defer resp.Body.Close()

	if !isValidStatusCode(resp.StatusCode, r.settings.ValidStatusCodes) {
		return nil, &HTTPError{
			Op:         "status_check",
			URL:        requestURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.settings.MaxResponseSize))
	if err != nil {
		return nil, &HTTPError{Op: "read_response", URL: requestURL, Err: err}
	}
	return data, nil
}

func addAuthentication(req *http.Request, auth *AuthConfig) error {
	if auth == nil {
		return nil
	}
	switch auth.Type {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case "basic":
		req.SetBasicAuth(auth.Username, auth.Password)
	case "apikey":
		if auth.HeaderName != "" {
			req.Header.Set(auth.HeaderName, auth.HeaderValue)
		}
	default:
		return fmt.Errorf("unsupported auth type: %s", auth.Type)
	}
	return nil
}

func isValidStatusCode(statusCode int, valid []int) bool {
	for _, code := range valid {
		if statusCode == code {
			return true
		}
	}
	return false
}
