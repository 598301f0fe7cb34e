// Package idle defers low-priority work until a session has no active turn.
package idle

import (
	"fmt"
	"sync"
	"time"

	"github.com/opencode-ai/recipechat/internal/logging"
	"github.com/rs/zerolog"
)

// DefaultInterval is the polling interval between idle checks.
const DefaultInterval = time.Second

// Scheduler queues callbacks while a session is busy and runs them, one per
// tick, once it is idle again.
//
// A callback requested while idle runs asynchronously right away. A callback
// requested while busy waits in the queue until Schedule arms a tick that finds
// the session idle. A tick that finds the session busy does not re-arm; the
// next Schedule call does.
type Scheduler struct {
	isIdle   func() bool
	interval time.Duration

	mu     sync.Mutex
	queue  []func()
	timer  *time.Timer
	closed bool
	wg     sync.WaitGroup

	log zerolog.Logger
}

// New creates a scheduler. isIdle must be safe to call from any goroutine.
func New(isIdle func() bool, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		isIdle:   isIdle,
		interval: interval,
		log:      logging.Component("idle"),
	}
}

// OnIdle requests that cb run when the session is idle. It never runs cb on the
// caller's goroutine.
func (s *Scheduler) OnIdle(cb func()) {
	if cb == nil {
		return
	}
	idle := s.isIdle()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if !idle {
		s.queue = append(s.queue, cb)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(cb)
	}()
}

// Schedule arms a tick after the polling interval unless one is already armed.
func (s *Scheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked()
}

func (s *Scheduler) armLocked() {
	if s.closed || s.timer != nil {
		return
	}
	s.wg.Add(1)
	s.timer = time.AfterFunc(s.interval, s.tick)
}

// Pending returns the number of queued callbacks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) tick() {
	defer s.wg.Done()

	idle := s.isIdle()

	s.mu.Lock()
	s.timer = nil
	if s.closed || !idle || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	cb := s.queue[0]
	s.queue = s.queue[1:]
	if len(s.queue) > 0 {
		s.armLocked()
	}
	s.mu.Unlock()

	s.run(cb)
}

func (s *Scheduler) run(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("panic", fmt.Sprint(r)).Msg("idle callback panicked")
		}
	}()
	cb()
}

// Close drops queued callbacks, cancels any armed tick and waits for running
// callbacks to return.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	if s.timer != nil && s.timer.Stop() {
		s.wg.Done()
	}
	s.timer = nil
	s.mu.Unlock()

	s.wg.Wait()
}
