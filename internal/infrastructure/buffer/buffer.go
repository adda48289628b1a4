// Package buffer delays bursty per-document updates so rapid successive
// messages for the same subject coalesce before they reach the lifecycle
// manager. It is strictly a delay mechanism: last-write-wins per subject is
// the document tracker's job, not the buffer's.
package buffer

import (
	"container/heap"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type entry[T any] struct {
	msg       T
	releaseAt time.Time
	seq       uint64 // insertion order breaks release-time ties
}

type delayQueue[T any] []entry[T]

func (q delayQueue[T]) Len() int { return len(q) }
func (q delayQueue[T]) Less(i, j int) bool {
	if q[i].releaseAt.Equal(q[j].releaseAt) {
		return q[i].seq < q[j].seq
	}
	return q[i].releaseAt.Before(q[j].releaseAt)
}
func (q delayQueue[T]) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *delayQueue[T]) Push(x any)   { *q = append(*q, x.(entry[T])) }
func (q *delayQueue[T]) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

// Buffer holds messages until their intended release time (message time plus
// a fixed window) and hands due messages to the handler in ascending
// release-time order on each Flush.
type Buffer[T any] struct {
	mu      sync.Mutex
	queue   delayQueue[T]
	seq     uint64
	window  time.Duration
	handler func(T)
	logger  zerolog.Logger
}

// New creates a buffer with the given delay window and downstream handler.
func New[T any](window time.Duration, handler func(T), logger zerolog.Logger) *Buffer[T] {
	b := &Buffer[T]{
		window:  window,
		handler: handler,
		logger:  logger.With().Str("service", "buffer").Logger(),
	}
	heap.Init(&b.queue)
	return b
}

// Add buffers a message with intended release time now + window.
func (b *Buffer[T]) Add(msg T) {
	b.AddAt(msg, time.Now())
}

// AddAt buffers a message carrying its own timestamp; the release time is
// that timestamp plus the window.
func (b *Buffer[T]) AddAt(msg T, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	heap.Push(&b.queue, entry[T]{msg: msg, releaseAt: ts.Add(b.window), seq: b.seq})
}

// Flush drains every entry due at now, in release-time order, forwarding each
// to the handler. Entries not yet due stay queued. It returns the number of
// messages forwarded.
func (b *Buffer[T]) Flush(now time.Time) int {
	var due []T
	b.mu.Lock()
	for b.queue.Len() > 0 && !b.queue[0].releaseAt.After(now) {
		e := heap.Pop(&b.queue).(entry[T])
		due = append(due, e.msg)
	}
	b.mu.Unlock()

	for _, msg := range due {
		b.handler(msg)
	}
	if len(due) > 0 {
		b.logger.Debug().Int("flushed", len(due)).Msg("buffer flushed")
	}
	return len(due)
}

// Len returns the number of buffered messages.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.Len()
}
