package engine

import (
	"sync"

	"github.com/interlace-io/interlace/internal/domain"
)

// workerPool is the bounded pool shared by whole-flow runs and parallel
// branch fan-out. Fixed worker count, fixed queue capacity. Whole runs queue;
// branch tasks never do, they either hand off to an idle worker or run in the
// caller's goroutine.
type workerPool struct {
	mu      sync.Mutex
	tasks   chan func()
	handoff chan func()
	wg      sync.WaitGroup
	closed  bool
}

func newWorkerPool(workers, capacity int) *workerPool {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = workers
	}

	p := &workerPool{
		tasks:   make(chan func(), capacity),
		handoff: make(chan func()),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work()
	}

	return p
}

func (p *workerPool) work() {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			task()
		case task := <-p.handoff:
			task()
		}
	}
}

func (p *workerPool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return domain.ErrNotStarted
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return domain.ErrEngineSaturated
	}
}

// SubmitOrRun hands the task directly to an idle worker, or runs it inline in
// the caller's goroutine. Branch tasks must never wait in the queue: every
// worker ahead of them may be a parent blocked at its own join, and a parked
// branch would then starve the join it is supposed to release. The unbuffered
// handoff send succeeds only when a worker is ready to take the task right
// now; otherwise the caller makes progress itself.
func (p *workerPool) SubmitOrRun(task func()) {
	select {
	case p.handoff <- task:
	default:
		task()
	}
}

func (p *workerPool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	p.wg.Wait()
}
