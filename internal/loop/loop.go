// Package loop runs all controller logic on a single goroutine. Network
// calls happen elsewhere and post their continuation back, so component
// state only ever has one writer.
package loop

import (
	"context"
	"sync"
	"time"

	"fdss/internal/logger"
)

type Timer interface {
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type Loop struct {
	queue   chan func()
	clock   Clock
	log     logger.Logger
	stopped chan struct{}
	once    sync.Once
	work    sync.WaitGroup
}

type Option func(*Loop)

func WithClock(c Clock) Option {
	return func(l *Loop) { l.clock = c }
}

func New(log logger.Logger, opts ...Option) *Loop {
	l := &Loop{
		queue:   make(chan func(), 256),
		clock:   realClock{},
		log:     log,
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) Clock() Clock { return l.clock }

// Run executes posted functions in order until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.stopped) })

	l.log.Debug("event loop started")
	for {
		select {
		case <-ctx.Done():
			l.log.Debug("event loop stopped")
			return ctx.Err()
		case fn := <-l.queue:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("event loop task panic", "panic", r)
		}
	}()
	fn()
}

// Post queues fn. It reports false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.stopped:
		return false
	default:
	}

	select {
	case <-l.stopped:
		return false
	case l.queue <- fn:
		return true
	}
}

// Do runs fn on the loop and waits for it. Never call it from the loop.
func (l *Loop) Do(fn func()) bool {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return false
	}

	select {
	case <-done:
		return true
	case <-l.stopped:
		return false
	}
}

// AfterFunc runs fn on the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return l.clock.AfterFunc(d, func() { l.Post(fn) })
}

// Go runs work off the loop; the continuation it returns, if any, runs
// back on the loop.
func (l *Loop) Go(work func() func()) {
	l.work.Add(1)
	go func() {
		defer l.work.Done()
		if next := work(); next != nil {
			l.Post(next)
		}
	}()
}

// Drain waits until every Go started so far has posted its continuation
// and the loop has executed it.
func (l *Loop) Drain() {
	l.work.Wait()
	l.Do(func() {})
}
