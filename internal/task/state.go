package task

import (
	"sync"

	"github.com/blogapp/summarizer/internal/metrics"
)

// Snapshot is a point-in-time copy of the consumer's runtime flags.
type Snapshot struct {
	LoopActive     bool `json:"loopActive"`
	MLServiceReady bool `json:"mlServiceReady"`
	ActiveJobs     int  `json:"activeJobs"`
}

// State owns the consumer's runtime flags. The zero value is idle and not ready.
type State struct {
	mu             sync.Mutex
	loopActive     bool
	mlServiceReady bool
	activeJobs     int
}

// TryStartLoop marks the loop active and reports true, unless it was already active.
func (s *State) TryStartLoop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loopActive {
		return false
	}
	s.loopActive = true
	metrics.SetLoopActive(true)
	return true
}

// SetLoopActive sets the loop flag.
func (s *State) SetLoopActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loopActive = active
	metrics.SetLoopActive(active)
}

// TryGoIdle clears the loop and readiness flags together unless jobs are
// still in flight. It reports whether the loop went idle.
func (s *State) TryGoIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeJobs > 0 {
		return false
	}
	s.loopActive = false
	s.mlServiceReady = false
	metrics.SetLoopActive(false)
	metrics.SetMLReady(false)
	return true
}

// LoopActive reports whether the loop is running.
func (s *State) LoopActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopActive
}

// SetMLServiceReady records the latest readiness belief and returns the previous one.
func (s *State) SetMLServiceReady(ready bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.mlServiceReady
	s.mlServiceReady = ready
	metrics.SetMLReady(ready)
	return prev
}

// MLServiceReady reports the latest readiness belief.
func (s *State) MLServiceReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mlServiceReady
}

// JobStarted increments the active job count and returns the new value.
func (s *State) JobStarted() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeJobs++
	metrics.SetActiveJobs(s.activeJobs)
	return s.activeJobs
}

// JobFinished decrements the active job count and returns the new value.
func (s *State) JobFinished() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeJobs > 0 {
		s.activeJobs--
	}
	metrics.SetActiveJobs(s.activeJobs)
	return s.activeJobs
}

// ActiveJobs returns the number of jobs in flight.
func (s *State) ActiveJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeJobs
}

// Snapshot returns all flags read under one lock.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		LoopActive:     s.loopActive,
		MLServiceReady: s.mlServiceReady,
		ActiveJobs:     s.activeJobs,
	}
}
