package fields

import (
	"sync"
)

// Snapshot is an immutable view of the whole field collection, replaced
// wholesale after every mutation so observers never see torn aggregates.
type Snapshot struct {
	States   map[string]State
	Order    []string
	Filled   int
	Total    int
	Progress float64
}

// Get returns a field's state copy.
func (s Snapshot) Get(id string) (State, bool) {
	st, ok := s.States[id]
	return st, ok
}

// Collection owns the field states of one extraction session. All
// transitions go through it; every transition publishes a fresh snapshot to
// subscribers.
type Collection struct {
	mu        sync.RWMutex
	order     []string
	states    map[string]*State
	observers []func(Snapshot)
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{states: make(map[string]*State)}
}

// Add registers an empty state for a field definition. Adding an already
// known field is a no-op.
func (c *Collection) Add(fs ...*State) {
	c.mu.Lock()
	for _, st := range fs {
		id := st.Field.ID
		if _, ok := c.states[id]; ok {
			continue
		}
		c.states[id] = st
		c.order = append(c.order, id)
	}
	c.mu.Unlock()
	c.publish()
}

// Has reports whether a field is tracked.
func (c *Collection) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.states[id]
	return ok
}

// SetExtracting marks a field as in-flight.
func (c *Collection) SetExtracting(id string) {
	c.mutate(id, func(s *State) {
		s.Status = StatusExtracting
		s.Err = ""
	})
}

// Fill commits a value. A value that is not present forces the field back to
// Empty instead; a shaped parent keeps its value derived, so Fill on a
// parent only records confidence.
func (c *Collection) Fill(id string, value any, confidence float64) {
	c.mutate(id, func(s *State) {
		if !Present(value) {
			s.Status = StatusEmpty
			s.Value = nil
			s.Confidence = 0
			return
		}
		s.Confidence = confidence
		s.Status = StatusFilled
		if s.Parent() {
			// Parent values live in the sub-field tree.
			s.Value = nil
			return
		}
		s.Value = value
	})
}

// SetError records an extraction error without blocking other fields.
func (c *Collection) SetError(id string, msg string) {
	c.mutate(id, func(s *State) {
		s.Status = StatusError
		s.Err = msg
	})
}

// Clear resets a field to Empty, either user-initiated or after failed
// controlled-vocabulary validation.
func (c *Collection) Clear(id string) {
	c.mutate(id, func(s *State) {
		s.Status = StatusEmpty
		s.Value = nil
		s.Confidence = 0
		s.Err = ""
		s.Subs = nil
	})
}

// SetSubs replaces a parent field's sub-field tree.
func (c *Collection) SetSubs(id string, subs []*State) {
	c.mutate(id, func(s *State) {
		s.Subs = subs
		for _, sub := range subs {
			if Present(sub.Value) {
				s.Status = StatusFilled
				return
			}
		}
		s.Status = StatusEmpty
	})
}

// FillSub sets the value of one sub-field addressed by dotted path and array
// index. Index -1 matches single (non-repeated) sub-fields. The parent's
// status is derived from the sub tree, so clearing the last present leaf
// empties the parent.
func (c *Collection) FillSub(id, path string, index int, value any) bool {
	found := false
	c.mutate(id, func(s *State) {
		for _, sub := range s.Subs {
			if sub.Path != path || sub.Index != index {
				continue
			}
			sub.Value = value
			if Present(value) {
				sub.Status = StatusFilled
			} else {
				sub.Status = StatusEmpty
				sub.Value = nil
			}
			found = true
			break
		}
		if !found {
			return
		}
		s.Status = StatusEmpty
		for _, sub := range s.Subs {
			if Present(sub.Value) {
				s.Status = StatusFilled
				return
			}
		}
	})
	return found
}

// Snapshot builds the current immutable view.
func (c *Collection) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Subscribe registers an observer called with a fresh snapshot after every
// mutation.
func (c *Collection) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// DetachObservers drops all subscribers. Later mutations still apply but are
// no longer published; used when a session's collection is replaced and
// in-flight writers may still touch the old one.
func (c *Collection) DetachObservers() {
	c.mu.Lock()
	c.observers = nil
	c.mu.Unlock()
}

// Each visits every state under the read lock. The callback must not mutate.
func (c *Collection) Each(fn func(*State)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.order {
		fn(c.states[id])
	}
}

func (c *Collection) mutate(id string, fn func(*State)) {
	c.mu.Lock()
	s, ok := c.states[id]
	if ok {
		fn(s)
	}
	c.mu.Unlock()
	if ok {
		c.publish()
	}
}

func (c *Collection) snapshotLocked() Snapshot {
	snap := Snapshot{
		States: make(map[string]State, len(c.states)),
		Order:  append([]string(nil), c.order...),
		Total:  len(c.order),
	}
	for id, s := range c.states {
		snap.States[id] = s.clone()
		if s.Status == StatusFilled {
			snap.Filled++
		}
	}
	if snap.Total > 0 {
		snap.Progress = float64(snap.Filled) / float64(snap.Total)
	}
	return snap
}

func (c *Collection) publish() {
	c.mu.RLock()
	snap := c.snapshotLocked()
	observers := append([]func(Snapshot){}, c.observers...)
	c.mu.RUnlock()
	for _, fn := range observers {
		fn(snap)
	}
}
