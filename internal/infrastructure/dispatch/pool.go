package dispatch

import (
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"
)

// Pool routes tasks to a fixed set of sequential worker lanes. All tasks for
// the same resource id land on the same lane and run in submission order;
// tasks for different resources run concurrently across lanes. Resource ids
// are hashed as raw strings, no numeric format is assumed.
type Pool struct {
	lanes  []chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	logger zerolog.Logger
}

// NewPool starts laneCount worker lanes. laneCount is fixed for the pool's
// lifetime; values below one are coerced to one.
func NewPool(laneCount int, logger zerolog.Logger) *Pool {
	if laneCount < 1 {
		laneCount = 1
	}
	p := &Pool{
		lanes:  make([]chan func(), laneCount),
		logger: logger.With().Str("service", "dispatch").Logger(),
	}
	for i := range p.lanes {
		lane := make(chan func(), 256)
		p.lanes[i] = lane
		p.wg.Add(1)
		go p.run(i, lane)
	}
	return p
}

func (p *Pool) run(idx int, lane chan func()) {
	defer p.wg.Done()
	for task := range lane {
		p.exec(idx, task)
	}
}

// exec isolates each task: a panic fails that task only, the lane keeps
// serving unrelated work.
func (p *Pool) exec(idx int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Int("lane", idx).Interface("panic", r).Msg("task panicked")
		}
	}()
	task()
}

// Submit enqueues a task on the lane owned by resourceID. Submissions after
// Stop are dropped with a log line.
func (p *Pool) Submit(resourceID string, task func()) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn().Str("resource_id", resourceID).Msg("submit after stop, task dropped")
		return
	}
	p.lanes[p.laneFor(resourceID)] <- task
}

// LaneCount returns the number of worker lanes.
func (p *Pool) LaneCount() int {
	return len(p.lanes)
}

// LaneFor exposes the lane selection for tests and diagnostics.
func (p *Pool) LaneFor(resourceID string) int {
	return p.laneFor(resourceID)
}

func (p *Pool) laneFor(resourceID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(resourceID))
	return int(h.Sum32() % uint32(len(p.lanes)))
}

// Stop closes all lanes and waits for in-flight and queued tasks to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	for _, lane := range p.lanes {
		close(lane)
	}
	p.wg.Wait()
}
