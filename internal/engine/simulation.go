// Simulation wraps the manager so ticks and outside readers never interleave.
package engine

import (
	"sync"

	"github.com/talgya/pedsim/internal/world"
)

// historySize is how many recent tick reports are retained.
const historySize = 256

// Simulation holds the world and pedestrians and serializes access to them.
// The tick takes the write lock; API readers take the read lock, so readers
// always observe state between ticks.
type Simulation struct {
	World  world.World
	FTicks float64 // frames per tick passed to the manager

	mu      sync.RWMutex
	mgr     *Manager
	history []TickReport // ring buffer
	next    int
	count   int
}

// NewSimulation creates a Simulation from a populated manager.
func NewSimulation(w world.World, m *Manager) *Simulation {
	return &Simulation{
		World:   w,
		FTicks:  1,
		mgr:     m,
		history: make([]TickReport, historySize),
	}
}

// Step runs one tick and records its report under the engine's tick number.
func (s *Simulation) Step(tick uint64) TickReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep := s.mgr.NextFrame(s.FTicks)
	rep.Tick = tick
	s.history[s.next] = rep
	s.next = (s.next + 1) % len(s.history)
	s.count = min(s.count+1, len(s.history))
	return rep
}

// Read runs fn with shared access to the manager. fn must not retain
// references to pedestrian slices after returning.
func (s *Simulation) Read(fn func(m *Manager)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.mgr)
}

// Write runs fn with exclusive access to the manager, between ticks.
func (s *Simulation) Write(fn func(m *Manager)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.mgr)
}

// LastReport returns the most recent tick report.
func (s *Simulation) LastReport() (TickReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.count == 0 {
		return TickReport{}, false
	}
	return s.history[(s.next+len(s.history)-1)%len(s.history)], true
}

// Recent returns up to n reports, oldest first.
func (s *Simulation) Recent(n int) []TickReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n = min(n, s.count)
	out := make([]TickReport, 0, n)
	for i := n; i > 0; i-- {
		out = append(out, s.history[(s.next+len(s.history)-i)%len(s.history)])
	}
	return out
}
