package runtime

import (
	"sync"

	"github.com/vk/vine/internal/graph"
)

// controlState is C7: the process-wide current/queued machine pointers and
// shutdown flag, all guarded by a single mutex distinct from the ready-queue
// mutex Q. Grounded directly in original_source/source/main.cpp's
// anonymous-namespace state block (current_machine, queued_machine,
// should_shutdown) guarded by state_mutex.
type controlState struct {
	mu sync.Mutex

	current    graph.MachineID
	hasCurrent bool

	queued    graph.MachineID
	hasQueued bool

	shutdownRequested bool
}

func (c *controlState) setQueued(m graph.MachineID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queued = m
	c.hasQueued = true
}

func (c *controlState) requestShutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdownRequested = true
}

// apply assigns current = queued if they differ. Called only between
// machine executions, preserving invariant 7 (current doesn't change mid
// execution).
func (c *controlState) apply() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasQueued && (!c.hasCurrent || c.queued != c.current) {
		c.current = c.queued
		c.hasCurrent = true
	}
}

func (c *controlState) getCurrent() (graph.MachineID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.hasCurrent
}

func (c *controlState) getShutdownRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdownRequested
}
