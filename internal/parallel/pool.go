package parallel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool runs tile rendering work on a fixed set of goroutines.
//
// Each worker owns a queue. Submissions go to the shortest queue, and an
// idle worker steals from the others before blocking on its own, so one
// slow page does not leave workers idle while tiles of another page wait.
//
// Once Close returns, every task that Submit accepted has run. Submit and
// Close are serialized by mu: a task is either enqueued before the
// workers are told to stop, or refused.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	// workers is the number of worker goroutines.
	workers int

	// queues holds one buffered queue per worker. A worker pulls from
	// its own queue and steals from the others when it is empty.
	queues []chan func()

	// done is closed by Close. Workers drain their own queue and exit.
	done chan struct{}

	// wg waits for every worker to exit.
	wg sync.WaitGroup

	// mu is read-held by Submit while it checks running and enqueues,
	// and write-held by Close while it flips running and closes done.
	mu sync.RWMutex

	// running reports whether the pool accepts work.
	running atomic.Bool
}

// NewWorkerPool starts a pool with n workers. If n <= 0, GOMAXPROCS is
// used.
func NewWorkerPool(n int) *WorkerPool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	depth := max(n*4, 8)

	p := &WorkerPool{
		workers: n,
		queues:  make([]chan func(), n),
		done:    make(chan struct{}),
	}
	for i := range n {
		p.queues[i] = make(chan func(), depth)
	}
	p.running.Store(true)

	p.wg.Add(n)
	for i := range n {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case <-p.done:
			drain(own)
			return
		case fn := <-own:
			fn()
			continue
		default:
		}

		if fn := p.steal(id); fn != nil {
			fn()
			continue
		}

		select {
		case <-p.done:
			drain(own)
			return
		case fn := <-own:
			fn()
		}
	}
}

func drain(q chan func()) {
	for {
		select {
		case fn := <-q:
			fn()
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case fn := <-p.queues[i]:
			return fn
		default:
		}
	}
	return nil
}

// Submit queues fn on the least loaded worker. It reports false, without
// running fn, if the pool is closed. When every queue is full, Submit
// blocks until a worker makes room.
func (p *WorkerPool) Submit(fn func()) bool {
	if fn == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running.Load() {
		return false
	}
	target := 0
	for i := 1; i < p.workers; i++ {
		if len(p.queues[i]) < len(p.queues[target]) {
			target = i
		}
	}
	// done cannot close while mu is read-held, and workers keep pulling
	// until it does, so this send always completes.
	p.queues[target] <- fn
	return true
}

// Close stops accepting work, runs what is already queued and waits for
// the workers to exit. Close is idempotent.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if !p.running.CompareAndSwap(true, false) {
		p.mu.Unlock()
		return
	}
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
}

// Workers returns the number of workers.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool accepts work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// Batch tracks a set of tasks submitted together, such as the tiles of one
// page. Tasks observe ctx between items: once it is done, tasks that have
// not started are skipped.
//
// Go may be called from several goroutines; Wait returns once every task
// handed to Go has finished, whether it ran on the pool or inline.
type Batch struct {
	// ctx is checked before each task starts.
	ctx context.Context

	// pool runs the tasks. A closed pool makes Go run them inline.
	pool *WorkerPool

	// wg counts tasks that have not returned.
	wg sync.WaitGroup

	// mu guards err, the first failure reported by a task.
	mu  sync.Mutex
	err error
}

// NewBatch returns an empty batch bound to ctx.
func (p *WorkerPool) NewBatch(ctx context.Context) *Batch {
	return &Batch{ctx: ctx, pool: p}
}

// Go runs fn on the pool. The first error, or the context error for skipped
// tasks, is reported by Wait. If the pool is closed, fn runs inline.
func (b *Batch) Go(fn func(ctx context.Context) error) {
	b.wg.Add(1)
	task := func() {
		defer b.wg.Done()
		if err := b.ctx.Err(); err != nil {
			b.fail(err)
			return
		}
		if err := fn(b.ctx); err != nil {
			b.fail(err)
		}
	}
	if !b.pool.Submit(task) {
		task()
	}
}

func (b *Batch) fail(err error) {
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.mu.Unlock()
}

// Wait blocks until every task has returned and reports the first error.
func (b *Batch) Wait() error {
	b.wg.Wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}
