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

// Package stream implements the record stream every pipeline stage is built on.
//
// A Stream is a bounded, pausable sequence of records. Producers Push records
// (or are pulled through a ReadFunc) and finally call End. Consumers register
// listeners before calling Proceed, which starts delivery and blocks until the
// stream is terminal.
//
// Delivery follows a strict backpressure discipline: for every record and
// listener the processing counter is incremented and the stream is paused
// before the listener runs, and resumed and decremented once it returns. A
// listener therefore never sees a new record while its previous invocation is
// still running, and the producer blocks once HighWaterMark records are queued.
//
// End of input is observed by the delivery goroutine only after every queued
// record has been handed out. If listener invocations are still running at that
// point the stream waits for them, bounded by WaitForEndAttempts *
// WaitForEndInterval; when the budget is exhausted Proceed fails with a
// *StreamNotEndedError and the stream is forced to Ended.
package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/log"
)

// State is the lifecycle state of a Stream.
type State int32

const (
	Idle State = iota
	Ready
	Draining
	Ended
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case Draining:
		return "draining"
	case Ended:
		return "ended"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool {
	return s == Ended || s == Failed
}

// Listener consumes one record. Returning an error destroys the stream with it.
type Listener func(ctx context.Context, item interface{}) error

// Stream is a push-based, pausable record stream with a completion protocol.
type Stream struct {
	opts   *Options
	logger log.Logger

	mu            sync.Mutex
	state         State
	err           error
	pending       []Listener
	listeners     []Listener
	errorHandlers []func(error)
	endHandlers   []func()
	pauseDepth    int
	processing    int
	inputEnded    bool
	draining      bool
	drainClosed   bool
	listenerCtx   context.Context
	cancelRead    context.CancelFunc

	pushMu  sync.Mutex
	queue   chan interface{}
	ended   chan struct{}
	resumed chan struct{}
	drained chan struct{}
	done    chan struct{}

	startOnce   sync.Once
	releaseOnce sync.Once
}

// New creates an idle stream.
func New(options ...Option) *Stream {
	opts := &Options{}
	for _, option := range options {
		option(opts)
	}
	opts = opts.withDefaults()

	return &Stream{
		opts:    opts,
		logger:  opts.Logger.Named(opts.Name),
		state:   Idle,
		queue:   make(chan interface{}, opts.HighWaterMark),
		ended:   make(chan struct{}),
		resumed: make(chan struct{}, 1),
		drained: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Name returns the name the stream was created with.
func (s *Stream) Name() string {
	return s.opts.Name
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Processing returns the number of listener invocations that have not settled yet.
func (s *Stream) Processing() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// Done is closed once the stream reaches Ended or Failed.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns the fatal error of a terminal stream, or nil.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Push enqueues a record. It blocks while HighWaterMark records are waiting for delivery.
func (s *Stream) Push(item interface{}) error {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	s.mu.Lock()
	switch {
	case s.state.terminal():
		s.mu.Unlock()
		return ErrStreamClosed
	case s.inputEnded:
		s.mu.Unlock()
		return ErrPushAfterEnd
	}
	s.mu.Unlock()

	select {
	case s.queue <- item:
		return nil
	case <-s.done:
		return ErrStreamClosed
	}
}

// End pushes the end-of-input sentinel. Calling End twice is a no-op.
func (s *Stream) End() error {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.terminal() {
		return ErrStreamClosed
	}
	if !s.inputEnded {
		s.inputEnded = true
		close(s.ended)
	}
	return nil
}

// OnData registers a data listener. Listeners are wired when Proceed is called;
// registering afterwards fails with ErrListenerAfterReady.
func (s *Stream) OnData(fn Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrListenerAfterReady
	}
	s.pending = append(s.pending, fn)
	return nil
}

// OnError registers a handler for every error event, fatal or reported.
func (s *Stream) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorHandlers = append(s.errorHandlers, fn)
}

// OnEnd registers a callback invoked once the stream ends normally, before Proceed returns.
func (s *Stream) OnEnd(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endHandlers = append(s.endHandlers, fn)
}

// Report emits a non-fatal error event. The stream keeps running.
func (s *Stream) Report(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	handlers := append([]func(error){}, s.errorHandlers...)
	s.mu.Unlock()

	if len(handlers) == 0 {
		s.logger.Warnw("unhandled stream error", "err", err)
		return
	}
	s.emit(handlers, err)
}

// Pause stops delivery of further records until the matching Resume.
// Pauses nest.
func (s *Stream) Pause() {
	s.mu.Lock()
	s.pauseDepth++
	s.mu.Unlock()
}

// Resume undoes one Pause.
func (s *Stream) Resume() {
	s.mu.Lock()
	if s.pauseDepth > 0 {
		s.pauseDepth--
	}
	idle := s.pauseDepth == 0
	s.mu.Unlock()

	if idle {
		select {
		case s.resumed <- struct{}{}:
		default:
		}
	}
}

// Proceed signals that listeners are attached, starts delivery and blocks until
// the stream is terminal. It returns nil when the stream ended normally and the
// fatal error otherwise. Cancelling ctx destroys the stream.
func (s *Stream) Proceed(ctx context.Context) error {
	s.start(ctx)

	select {
	case <-s.done:
	case <-ctx.Done():
		s.Destroy(ctx.Err())
		<-s.done
	}
	return s.Err()
}

// Destroy tears the stream down: the upstream resource is released, delivery
// stops and a pending Proceed fails with err (ErrStreamDestroyed when nil).
// Listener invocations already running are allowed to finish.
func (s *Stream) Destroy(err error) {
	reason := err
	if reason == nil {
		reason = ErrStreamDestroyed
	}

	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	s.state = Failed
	s.err = reason
	handlers := append([]func(error){}, s.errorHandlers...)
	cancel := s.cancelRead
	s.mu.Unlock()

	s.release()
	if err != nil {
		s.emit(handlers, err)
	}
	close(s.done)
	if cancel != nil {
		cancel()
	}
}

func (s *Stream) start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.mu.Lock()
		if s.state != Idle {
			s.mu.Unlock()
			return
		}
		s.state = Ready
		s.listeners = append(s.listeners, s.pending...)
		s.pending = nil
		s.listenerCtx = ctx
		readCtx, cancel := context.WithCancel(ctx)
		s.cancelRead = cancel
		s.mu.Unlock()

		s.logger.Debugw("stream ready", "listeners", len(s.listeners))
		if s.opts.OnProceed != nil {
			s.opts.OnProceed(ctx)
		}
		go s.dispatch()
		if s.opts.Reader != nil {
			go s.readLoop(readCtx)
		}
	})
}

func (s *Stream) readLoop(ctx context.Context) {
	for {
		select {
		case <-s.ended:
			return
		case <-s.done:
			return
		default:
		}

		err := safeRun(func() error { return s.opts.Reader(ctx, s) })
		if err == nil {
			continue
		}
		if s.State().terminal() || errors.Is(err, ErrStreamClosed) {
			return
		}
		s.Destroy(err)
		return
	}
}

func (s *Stream) paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauseDepth > 0
}

// dispatch is the single delivery goroutine. End of input is only acted upon
// once the queue is empty, so it is strictly ordered after every record.
func (s *Stream) dispatch() {
	for {
		if s.paused() {
			select {
			case <-s.resumed:
			case <-s.ended:
				if len(s.queue) == 0 {
					s.awaitDrain()
					return
				}
				select {
				case <-s.resumed:
				case <-s.done:
					return
				}
			case <-s.done:
				return
			}
			continue
		}

		select {
		case item := <-s.queue:
			s.deliver(item)
		case <-s.ended:
			select {
			case item := <-s.queue:
				s.deliver(item)
				continue
			default:
			}
			s.awaitDrain()
			return
		case <-s.done:
			return
		}
	}
}

func (s *Stream) deliver(item interface{}) {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	listeners := s.listeners
	ctx := s.listenerCtx
	s.mu.Unlock()

	for _, listener := range listeners {
		s.mu.Lock()
		s.processing++
		s.pauseDepth++
		s.mu.Unlock()

		go s.invoke(ctx, listener, item)
	}
}

func (s *Stream) invoke(ctx context.Context, listener Listener, item interface{}) {
	if err := safeRun(func() error { return listener(ctx, item) }); err != nil {
		s.Destroy(err)
	}
	s.Resume()

	s.mu.Lock()
	s.processing--
	if s.processing == 0 && s.draining && !s.drainClosed {
		s.drainClosed = true
		close(s.drained)
	}
	s.mu.Unlock()
}

func (s *Stream) awaitDrain() {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	s.state = Draining
	s.draining = true
	idle := s.processing == 0
	s.mu.Unlock()

	if idle {
		s.finish()
		return
	}

	budget := time.Duration(s.opts.WaitForEndAttempts) * s.opts.WaitForEndInterval
	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case <-s.drained:
		s.finish()
	case <-timer.C:
		s.stall()
	case <-s.done:
	}
}

func (s *Stream) finish() {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	s.state = Ended
	handlers := append([]func(){}, s.endHandlers...)
	cancel := s.cancelRead
	s.mu.Unlock()

	for _, handler := range handlers {
		h := handler
		if err := safeRun(func() error { h(); return nil }); err != nil {
			s.logger.Errorw("end callback failed", "err", err)
		}
	}
	s.logger.Debugw("stream ended")
	close(s.done)
	if cancel != nil {
		cancel()
	}
}

func (s *Stream) stall() {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	err := &StreamNotEndedError{
		Stream:     s.opts.Name,
		Processing: s.processing,
		Attempts:   s.opts.WaitForEndAttempts,
		Interval:   s.opts.WaitForEndInterval,
	}
	s.state = Ended
	s.err = err
	handlers := append([]func(error){}, s.errorHandlers...)
	cancel := s.cancelRead
	s.mu.Unlock()

	s.logger.Errorw("stream did not drain after end of input", "err", err)
	s.release()
	s.emit(handlers, err)
	close(s.done)
	if cancel != nil {
		cancel()
	}
}

func (s *Stream) release() {
	if s.opts.Destroyer == nil {
		return
	}
	s.releaseOnce.Do(func() {
		if err := s.opts.Destroyer(); err != nil {
			s.logger.Warnw("failed to release upstream", "err", err)
		}
	})
}

func (s *Stream) emit(handlers []func(error), err error) {
	for _, handler := range handlers {
		h := handler
		if perr := safeRun(func() error { h(err); return nil }); perr != nil {
			s.logger.Errorw("error handler failed", "err", perr)
		}
	}
}
