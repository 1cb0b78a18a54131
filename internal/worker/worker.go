// Package worker implements a fixed-size goroutine pool, the same
// shape as the teacher's internal/worker (only its tests survived in
// the retrieval pack; no source, so this is a fresh implementation
// grounded on the behavior worker_test.go pins down: NewWorkerPool(n),
// Submit(func() error), Wait() error, Stop()). The Executor uses one
// Pool per session to bound how many cases run concurrently.
package worker

import (
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Pool runs submitted tasks across a fixed number of goroutines.
type Pool struct {
	tasks chan func() error

	wg sync.WaitGroup

	mu     sync.Mutex
	errs   *multierror.Error
	closed bool
}

// NewWorkerPool starts n worker goroutines, each pulling tasks off a
// shared channel until Stop closes it.
func NewWorkerPool(n int) *Pool {
	if n < 1 {
		n = 1
	}

	p := &Pool{tasks: make(chan func() error)}

	for range n {
		go p.loop()
	}

	return p
}

func (p *Pool) loop() {
	for task := range p.tasks {
		err := task()

		if err != nil {
			p.mu.Lock()
			p.errs = multierror.Append(p.errs, err)
			p.mu.Unlock()
		}

		p.wg.Done()
	}
}

// Submit queues fn to run on the next free worker. Submit after Stop
// panics, the same contract as sending on a closed channel.
func (p *Pool) Submit(fn func() error) {
	p.wg.Add(1)
	p.tasks <- fn
}

// Wait blocks until every task submitted so far has completed, and
// returns their combined error (nil if none failed). The pool remains
// usable for further Submit calls afterward.
func (p *Pool) Wait() error {
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.errs.ErrorOrNil()
	p.errs = nil

	return err
}

// Stop waits for outstanding tasks and shuts down the worker
// goroutines. The pool must not be used again afterward.
func (p *Pool) Stop() {
	p.wg.Wait()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	p.closed = true
	p.mu.Unlock()

	close(p.tasks)
}
