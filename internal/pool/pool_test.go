package pool

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openeduhub/metaextract/internal/schema"
)

func field(id string, required bool) *schema.Field {
	return &schema.Field{ID: id, System: schema.System{Datatype: schema.TypeString, Required: required}}
}

// A controllable runner: each task blocks until released.
type gate struct {
	mu      sync.Mutex
	started []string
	release map[string]chan struct{}
}

func newGate() *gate {
	return &gate{release: make(map[string]chan struct{})}
}

func (g *gate) run(_ context.Context, task Task) (any, error) {
	g.mu.Lock()
	g.started = append(g.started, task.Field.ID)
	ch, ok := g.release[task.Field.ID]
	if !ok {
		ch = make(chan struct{})
		g.release[task.Field.ID] = ch
	}
	g.mu.Unlock()
	<-ch
	return task.Field.ID, nil
}

func (g *gate) releaseTask(id string) {
	g.mu.Lock()
	ch, ok := g.release[id]
	if !ok {
		ch = make(chan struct{})
		g.release[id] = ch
	}
	g.mu.Unlock()
	close(ch)
}

func (g *gate) startedIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.started))
	copy(out, g.started)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestConcurrencyCap(t *testing.T) {
	var inFlight, peak atomic.Int32
	block := make(chan struct{})

	p := New(func(_ context.Context, _ Task) (any, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-block
		inFlight.Add(-1)
		return nil, nil
	}, 3, nil)

	ctx := context.Background()
	var chans []<-chan Result
	for i := 0; i < 10; i++ {
		chans = append(chans, p.Submit(ctx, Task{Field: field("f", false)}))
	}

	waitFor(t, func() bool { return p.Active() == 3 })
	close(block)
	for _, ch := range chans {
		<-ch
	}

	if got := peak.Load(); got > 3 {
		t.Errorf("peak in-flight = %d, want <= 3", got)
	}
}

func TestPriorityOrdering(t *testing.T) {
	g := newGate()
	p := New(g.run, 1, nil)
	ctx := context.Background()

	// Occupy the single worker slot.
	blocker := p.Submit(ctx, Task{Field: field("blocker", false), Priority: 5})
	waitFor(t, func() bool { return len(g.startedIDs()) == 1 })

	// Optional first, required second. The required task must still start
	// first once the slot frees up.
	optional := p.Submit(ctx, Task{Field: field("optionalB", false), Priority: 5})
	required := p.Submit(ctx, Task{Field: field("requiredA", true), Priority: 10})

	g.releaseTask("blocker")
	<-blocker

	waitFor(t, func() bool { return len(g.startedIDs()) == 2 })
	if ids := g.startedIDs(); ids[1] != "requiredA" {
		t.Fatalf("second started task = %q, want requiredA", ids[1])
	}

	g.releaseTask("requiredA")
	<-required
	g.releaseTask("optionalB")
	<-optional
}

func TestEqualPriorityIsFIFO(t *testing.T) {
	g := newGate()
	p := New(g.run, 1, nil)
	ctx := context.Background()

	blocker := p.Submit(ctx, Task{Field: field("blocker", false)})
	waitFor(t, func() bool { return len(g.startedIDs()) == 1 })

	first := p.Submit(ctx, Task{Field: field("first", false), Priority: 5})
	second := p.Submit(ctx, Task{Field: field("second", false), Priority: 5})

	g.releaseTask("blocker")
	<-blocker
	waitFor(t, func() bool { return len(g.startedIDs()) == 2 })
	if ids := g.startedIDs(); ids[1] != "first" {
		t.Fatalf("second started task = %q, want first", ids[1])
	}
	g.releaseTask("first")
	<-first
	g.releaseTask("second")
	<-second
}

func TestFailureIsSilent(t *testing.T) {
	p := New(func(_ context.Context, _ Task) (any, error) {
		return nil, errors.New("provider exploded")
	}, 2, nil)

	result := <-p.Submit(context.Background(), Task{Field: field("x", true)})
	if result.Value != nil {
		t.Errorf("Value = %v, want nil", result.Value)
	}
	if result.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", result.Confidence)
	}
	if result.Err == nil || !strings.Contains(result.Err.Error(), "provider exploded") {
		t.Errorf("Err = %v, want the task's cause", result.Err)
	}
}

func TestPanicIsSilent(t *testing.T) {
	p := New(func(_ context.Context, _ Task) (any, error) {
		panic("boom")
	}, 1, nil)

	result := <-p.Submit(context.Background(), Task{Field: field("x", true)})
	if result.Value != nil || result.Confidence != 0 {
		t.Errorf("result = %+v, want nil value, zero confidence", result)
	}
	if result.Err == nil {
		t.Error("Err = nil, want the recovered panic as cause")
	}

	// The slot must have been freed for the next task.
	ok := <-p.Submit(context.Background(), Task{Field: field("y", false)})
	_ = ok
}

func TestClearDropsQueuedOnly(t *testing.T) {
	g := newGate()
	p := New(g.run, 1, nil)
	ctx := context.Background()

	running := p.Submit(ctx, Task{Field: field("running", false)})
	waitFor(t, func() bool { return len(g.startedIDs()) == 1 })

	queuedA := p.Submit(ctx, Task{Field: field("queuedA", false)})
	queuedB := p.Submit(ctx, Task{Field: field("queuedB", false)})

	if dropped := p.Clear(); dropped != 2 {
		t.Fatalf("Clear dropped %d, want 2", dropped)
	}

	// Dropped tasks resolve to empty results; the running one completes.
	for _, ch := range []<-chan Result{queuedA, queuedB} {
		r := <-ch
		if r.Value != nil || r.Confidence != 0 || r.Err != nil {
			t.Errorf("dropped task result = %+v, want empty without cause", r)
		}
	}

	g.releaseTask("running")
	r := <-running
	if r.Value != "running" {
		t.Errorf("running task value = %v, want %q", r.Value, "running")
	}

	if ids := g.startedIDs(); len(ids) != 1 {
		t.Errorf("started = %v, dropped tasks must never start", ids)
	}
}
