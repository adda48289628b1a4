package envelope

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DocumentTracker records the last-known validation state of every metadata
// document in an envelope, plus expected/completed counts. The map is mutated
// only from the envelope's worker lane; counters are atomic so diagnostic
// reads from unrelated goroutines see consistent values.
type DocumentTracker struct {
	mu        sync.Mutex
	states    map[uuid.UUID]State
	expected  atomic.Int64
	completed atomic.Int64
}

// NewDocumentTracker creates a tracker expecting the given document total.
func NewDocumentTracker(expected int) *DocumentTracker {
	t := &DocumentTracker{states: make(map[uuid.UUID]State)}
	t.expected.Store(int64(expected))
	return t
}

// SetState records a document's latest validation state. Last write wins:
// the windowed buffer upstream delays but never dedups, so a later message
// for the same document simply overwrites.
func (t *DocumentTracker) SetState(id uuid.UUID, st State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[id] = st
	t.recountLocked()
}

func (t *DocumentTracker) recountLocked() {
	var done int64
	for _, st := range t.states {
		if st == StateValid || st == StateInvalid {
			done++
		}
	}
	t.completed.Store(done)
	if n := int64(len(t.states)); n > t.expected.Load() {
		// mid-flight additions: the tracked set outgrew the expected total
		t.expected.Store(n)
	}
}

// Reset revises the expected total, e.g. when content is added mid-flight.
func (t *DocumentTracker) Reset(expected int) {
	t.expected.Store(int64(expected))
}

// Expected returns the expected document total.
func (t *DocumentTracker) Expected() int { return int(t.expected.Load()) }

// Completed returns how many documents reached a terminal validation state.
func (t *DocumentTracker) Completed() int { return int(t.completed.Load()) }

// AllComplete reports whether every expected document reached VALID or INVALID.
func (t *DocumentTracker) AllComplete() bool {
	exp := t.expected.Load()
	return exp > 0 && t.completed.Load() >= exp
}

// AllValid reports whether every expected document is VALID.
func (t *DocumentTracker) AllValid() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	exp := t.expected.Load()
	if exp == 0 || int64(len(t.states)) < exp {
		return false
	}
	for _, st := range t.states {
		if st != StateValid {
			return false
		}
	}
	return true
}

// AnyInvalid reports whether any tracked document is INVALID.
func (t *DocumentTracker) AnyInvalid() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, st := range t.states {
		if st == StateInvalid {
			return true
		}
	}
	return false
}

// DocumentSnapshot is a point-in-time diagnostic view of a DocumentTracker.
type DocumentSnapshot struct {
	Expected  int              `json:"expected"`
	Completed int              `json:"completed"`
	Documents map[string]State `json:"documents"`
}

// Snapshot copies the tracker contents for diagnostics or persistence.
func (t *DocumentTracker) Snapshot() DocumentSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	docs := make(map[string]State, len(t.states))
	for id, st := range t.states {
		docs[id.String()] = st
	}
	return DocumentSnapshot{
		Expected:  int(t.expected.Load()),
		Completed: int(t.completed.Load()),
		Documents: docs,
	}
}

// restore replaces the tracker contents from a persisted snapshot.
func (t *DocumentTracker) restore(snap DocumentSnapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = make(map[uuid.UUID]State, len(snap.Documents))
	for raw, st := range snap.Documents {
		id, err := uuid.Parse(raw)
		if err != nil {
			return err
		}
		t.states[id] = st
	}
	t.expected.Store(int64(snap.Expected))
	t.recountLocked()
	return nil
}

// ProgressTracker counts constituents (assays, bundles) of an envelope moving
// from processing to complete against an expected total. Same concurrency
// contract as DocumentTracker.
type ProgressTracker struct {
	mu        sync.Mutex
	complete  map[string]bool
	expected  atomic.Int64
	completed atomic.Int64
}

// NewProgressTracker creates a tracker expecting the given total.
func NewProgressTracker(expected int) *ProgressTracker {
	t := &ProgressTracker{complete: make(map[string]bool)}
	t.expected.Store(int64(expected))
	return t
}

// SetProcessing records that a constituent has started processing.
func (t *ProgressTracker) SetProcessing(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.complete[id] {
		return
	}
	t.complete[id] = false
}

// SetComplete records that a constituent finished. It returns true only when
// this call moved the tracker to all-complete, so the caller emits the
// derived envelope event exactly once, on the transition.
func (t *ProgressTracker) SetComplete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	before := t.allCompleteLocked()
	if !t.complete[id] {
		t.complete[id] = true
		t.completed.Add(1)
	}
	return !before && t.allCompleteLocked()
}

func (t *ProgressTracker) allCompleteLocked() bool {
	exp := t.expected.Load()
	return exp > 0 && t.completed.Load() >= exp
}

// AllComplete reports whether the completed count reached the expected total.
func (t *ProgressTracker) AllComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allCompleteLocked()
}

// Reset revises the expected total.
func (t *ProgressTracker) Reset(expected int) {
	t.expected.Store(int64(expected))
}

// Expected returns the expected total.
func (t *ProgressTracker) Expected() int { return int(t.expected.Load()) }

// Completed returns the completed count.
func (t *ProgressTracker) Completed() int { return int(t.completed.Load()) }

// ProgressSnapshot is a point-in-time view of a ProgressTracker.
type ProgressSnapshot struct {
	Expected  int             `json:"expected"`
	Completed int             `json:"completed"`
	Complete  map[string]bool `json:"complete,omitempty"`
}

// Snapshot copies the tracker contents.
func (t *ProgressTracker) Snapshot() ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	done := make(map[string]bool, len(t.complete))
	for id, ok := range t.complete {
		done[id] = ok
	}
	return ProgressSnapshot{
		Expected:  int(t.expected.Load()),
		Completed: int(t.completed.Load()),
		Complete:  done,
	}
}

func (t *ProgressTracker) restore(snap ProgressSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.complete = make(map[string]bool, len(snap.Complete))
	var done int64
	for id, ok := range snap.Complete {
		t.complete[id] = ok
		if ok {
			done++
		}
	}
	t.expected.Store(int64(snap.Expected))
	t.completed.Store(done)
}
