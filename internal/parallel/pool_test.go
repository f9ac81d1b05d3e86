package parallel

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// WorkerPool
// =============================================================================

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("pool should be running after creation")
	}
}

func TestWorkerPool_DefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -3} {
		pool := NewWorkerPool(n)
		if got, want := pool.Workers(), runtime.GOMAXPROCS(0); got != want {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want %d", n, got, want)
		}
		pool.Close()
	}
}

func TestWorkerPool_SubmitRunsEverything(t *testing.T) {
	pool := NewWorkerPool(3)
	var n atomic.Int64
	for range 500 {
		if !pool.Submit(func() { n.Add(1) }) {
			t.Fatal("Submit() = false on running pool")
		}
	}
	pool.Close()
	if got := n.Load(); got != 500 {
		t.Errorf("ran %d tasks, want 500", got)
	}
}

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()
	if pool.IsRunning() {
		t.Error("IsRunning() = true after Close")
	}
	if pool.Submit(func() {}) {
		t.Error("Submit() = true after Close")
	}
}

// =============================================================================
// Batch
// =============================================================================

func TestBatch_Wait(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var n atomic.Int64
	b := pool.NewBatch(context.Background())
	for range 64 {
		b.Go(func(context.Context) error {
			n.Add(1)
			return nil
		})
	}
	if err := b.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if got := n.Load(); got != 64 {
		t.Errorf("ran %d tasks, want 64", got)
	}
}

func TestBatch_FirstError(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	errBoom := errors.New("boom")
	b := pool.NewBatch(context.Background())
	for i := range 10 {
		b.Go(func(context.Context) error {
			if i == 3 {
				return errBoom
			}
			return nil
		})
	}
	if err := b.Wait(); !errors.Is(err, errBoom) {
		t.Errorf("Wait() error = %v, want boom", err)
	}
}

func TestBatch_Cancelled(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int64
	b := pool.NewBatch(ctx)
	for range 10 {
		b.Go(func(context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	if err := b.Wait(); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
	if got := ran.Load(); got != 0 {
		t.Errorf("%d tasks ran after cancellation", got)
	}
}

func TestBatch_ClosedPoolRunsInline(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Close()

	ran := false
	b := pool.NewBatch(context.Background())
	b.Go(func(context.Context) error {
		ran = true
		return nil
	})
	if err := b.Wait(); err != nil || !ran {
		t.Errorf("Wait() = %v, ran = %v", err, ran)
	}
}

// Tasks handed to Go while the pool closes either run on a worker before
// it exits or run inline; none are stranded in a queue.
func TestBatch_GoDuringClose(t *testing.T) {
	for round := range 50 {
		pool := NewWorkerPool(2)
		b := pool.NewBatch(context.Background())

		var ran atomic.Int64
		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 50 {
					b.Go(func(context.Context) error {
						ran.Add(1)
						return nil
					})
				}
			}()
		}
		pool.Close()
		wg.Wait()

		done := make(chan error, 1)
		go func() { done <- b.Wait() }()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("round %d: Wait() = %v", round, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("round %d: Wait() hung with %d of 200 tasks run", round, ran.Load())
		}
		if got := ran.Load(); got != 200 {
			t.Fatalf("round %d: ran %d tasks, want 200", round, got)
		}
	}
}

// =============================================================================
// BufferPool
// =============================================================================

func TestBufferPool(t *testing.T) {
	p := NewBufferPool()

	img := p.Get(10, 4)
	if img.Bounds().Dx() != 10 || img.Bounds().Dy() != 4 {
		t.Fatalf("Get(10, 4) bounds = %v", img.Bounds())
	}
	if got := p.Resident(); got != 40 {
		t.Errorf("Resident() = %d, want 40", got)
	}
	img.Pix[0] = 0xff
	p.Put(img)
	if got := p.Resident(); got != 0 {
		t.Errorf("Resident() after Put = %d, want 0", got)
	}

	again := p.Get(10, 4)
	for i, v := range again.Pix {
		if v != 0 {
			t.Fatalf("Pix[%d] = %d after reuse, want 0", i, v)
		}
	}
	p.Put(again)
	p.Put(nil)

	if p.Get(0, 5) != nil {
		t.Error("Get(0, 5) != nil")
	}
}
