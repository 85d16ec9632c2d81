package server

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// request is a unit of work submitted to an Executor. Whoever wins the
// claim runs it; the loser leaves it alone.
type request struct {
	fn      func() error
	claimed atomic.Bool
	done    chan error
}

func (r *request) claim() bool { return r.claimed.CompareAndSwap(false, true) }

// Executor runs submitted work on a single goroutine, for applications whose
// objects must only be touched from one thread.
type Executor struct {
	requests chan *request
	quit     chan struct{}
	stopOnce sync.Once
}

// NewExecutor creates an Executor and starts its goroutine.
func NewExecutor() *Executor {
	e := &Executor{
		requests: make(chan *request, 64),
		quit:     make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *Executor) loop() {
	for {
		select {
		case req := <-e.requests:
			if req.claim() {
				req.done <- execute(req.fn)
			}
		case <-e.quit:
			return
		}
	}
}

// execute runs fn, turning a panic into an error.
func execute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Do runs fn on the executor goroutine and waits for it to finish.
func (e *Executor) Do(fn func() error) error {
	return e.DoWithin(fn, 0)
}

// DoWithin runs fn on the executor goroutine. When wait is positive and the
// executor has not picked fn up within wait, fn runs on the calling
// goroutine instead. fn runs exactly once either way.
func (e *Executor) DoWithin(fn func() error, wait time.Duration) error {
	req := &request{fn: fn, done: make(chan error, 1)}
	select {
	case e.requests <- req:
	case <-e.quit:
		return execute(fn)
	}
	var expired <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case err := <-req.done:
		return err
	case <-expired:
		log.Debugf("executor busy for %s, running inline", wait)
	case <-e.quit:
	}
	if req.claim() {
		return execute(fn)
	}
	return <-req.done
}

// Stop shuts down the executor goroutine. Work submitted afterwards runs on
// the caller.
func (e *Executor) Stop() {
	e.stopOnce.Do(func() { close(e.quit) })
}

// DelegatingCommand runs another command on an Executor.
type DelegatingCommand struct {
	Delegate Command
	Executor *Executor

	// Wait bounds how long a command waits for the executor before running
	// on the connection goroutine. Zero waits indefinitely.
	Wait time.Duration
}

func (d *DelegatingCommand) Code() string { return d.Delegate.Code() }

func (d *DelegatingCommand) Execute(code string, r *bufio.Reader, w io.Writer) error {
	return d.Executor.DoWithin(func() error {
		return d.Delegate.Execute(code, r, w)
	}, d.Wait)
}
