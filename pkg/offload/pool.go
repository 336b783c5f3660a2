// Package offload runs blocking functions on a bounded set of goroutines
// and hands the caller a future for the result.
//
// It lets a loop that must stay responsive (fetching jobs, watching for
// shutdown) push CPU or I/O heavy work elsewhere and wait for it only where
// it chooses to:
//
//	pool := offload.NewPool(4)
//	defer pool.Close()
//
//	read := offload.Wrap(pool, os.ReadFile)
//	data, err := read(ctx, "/data/report.pdf")
package offload

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

var ErrPoolClosed = errors.New("offload pool is closed")

// PanicError is returned by a future whose function panicked.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("offloaded function panicked: %v", p.Value)
}

// Pool is a fixed-size set of worker goroutines fed by a bounded queue.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	size   int
}

// NewPool starts size workers. A non-positive size means one worker per CPU.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}

	p := &Pool{
		tasks: make(chan func(), size),
		size:  size,
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.work()
	}

	return p
}

func (p *Pool) Size() int {
	return p.size
}

func (p *Pool) work() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// submit queues task, blocking while the queue is full.
func (p *Pool) submit(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for the queued ones to finish.
// It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}
