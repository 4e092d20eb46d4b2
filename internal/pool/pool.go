// Package pool is a bounded-concurrency task scheduler with priority
// ordering. Required-field tasks sort before optional ones; at most
// maxWorkers tasks run at once; the rest wait in a heap.
//
// Failures are a product decision here: a task that errors out resolves to a
// nil-value, zero-confidence result and is logged, never surfaced. The UI
// must stay responsive even when several fields fail.
package pool

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/openeduhub/metaextract/internal/schema"
)

// DefaultMaxWorkers bounds simultaneously in-flight extraction tasks.
const DefaultMaxWorkers = 10

// Task is one immutable extraction request.
type Task struct {
	Field    *schema.Field
	Text     string
	Priority int
}

// Result is the outcome of one task. Confidence is 1 on success and 0 on
// failure; Value is nil on failure. Err carries the cause when the task
// errored; tasks discarded by Clear resolve without one.
type Result struct {
	Field      *schema.Field
	Value      any
	Confidence float64
	Err        error
}

// RunFunc executes one task and returns the extracted value.
type RunFunc func(ctx context.Context, task Task) (any, error)

// Pool schedules tasks against a bounded worker count.
type Pool struct {
	run        RunFunc
	maxWorkers int
	logger     *slog.Logger

	mu     sync.Mutex
	queue  taskHeap
	active int
	seq    int
}

// New creates a pool. maxWorkers <= 0 falls back to DefaultMaxWorkers.
func New(run RunFunc, maxWorkers int, logger *slog.Logger) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		run:        run,
		maxWorkers: maxWorkers,
		logger:     logger,
	}
}

// Submit enqueues a task and returns a channel that delivers exactly one
// Result and is then closed. Tasks discarded by Clear deliver a nil-value
// result so callers never block.
func (p *Pool) Submit(ctx context.Context, task Task) <-chan Result {
	it := &item{
		task: task,
		ctx:  ctx,
		ch:   make(chan Result, 1),
	}

	p.mu.Lock()
	it.seq = p.seq
	p.seq++
	heap.Push(&p.queue, it)
	p.drainLocked()
	p.mu.Unlock()

	return it.ch
}

// Clear discards all queued, not-yet-started tasks and returns how many were
// dropped. In-flight tasks run to completion; their results are simply
// discarded by the caller.
func (p *Pool) Clear() int {
	p.mu.Lock()
	dropped := make([]*item, len(p.queue))
	copy(dropped, p.queue)
	p.queue = p.queue[:0]
	p.mu.Unlock()

	for _, it := range dropped {
		it.ch <- Result{Field: it.task.Field, Value: nil, Confidence: 0}
		close(it.ch)
	}
	return len(dropped)
}

// Active returns the number of currently in-flight tasks.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// drainLocked starts queued tasks while worker slots are free. Callers must
// hold p.mu.
func (p *Pool) drainLocked() {
	for p.active < p.maxWorkers && len(p.queue) > 0 {
		it := heap.Pop(&p.queue).(*item)
		p.active++
		go p.runTask(it)
	}
}

func (p *Pool) runTask(it *item) {
	// Exactly one drain per completion, whatever the task did.
	defer func() {
		p.mu.Lock()
		p.active--
		p.drainLocked()
		p.mu.Unlock()
	}()

	result := p.execute(it)
	it.ch <- result
	close(it.ch)
}

// execute runs the task and converts every failure mode, panics included,
// into a silent empty result.
func (p *Pool) execute(it *item) (result Result) {
	result = Result{Field: it.task.Field, Value: nil, Confidence: 0}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Extraction task panicked", "field", fieldID(it.task), "panic", fmt.Sprint(r))
			result.Err = fmt.Errorf("extraction panicked: %v", r)
		}
	}()

	value, err := p.run(it.ctx, it.task)
	if err != nil {
		p.logger.Warn("Extraction task failed", "field", fieldID(it.task), "error", err)
		result.Err = err
		return result
	}

	result.Value = value
	result.Confidence = 1
	return result
}

func fieldID(t Task) string {
	if t.Field == nil {
		return ""
	}
	return t.Field.ID
}

// item is one queued task.
type item struct {
	task Task
	ctx  context.Context
	ch   chan Result
	seq  int
}

// taskHeap orders by priority descending, then submission order.
type taskHeap []*item

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*item)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
