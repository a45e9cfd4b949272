package service

import (
	"sync"
	"time"
)

// Scheduler owns the deferred dispatch work: auto-cancel checks and decline
// re-broadcasts. Timers are registered per booking so any terminal
// transition can cancel them; callbacks still re-check preconditions, a
// late fire is a correctness no-op, cancellation is resource hygiene.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]map[*time.Timer]struct{}
	closed bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]map[*time.Timer]struct{})}
}

// Schedule runs fn after delay unless cancelled first. No-op after Shutdown.
func (s *Scheduler) Schedule(bookingID string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if set, ok := s.timers[bookingID]; ok {
			delete(set, t)
			if len(set) == 0 {
				delete(s.timers, bookingID)
			}
		}
		s.mu.Unlock()
		fn()
	})

	if s.timers[bookingID] == nil {
		s.timers[bookingID] = make(map[*time.Timer]struct{})
	}
	s.timers[bookingID][t] = struct{}{}
}

// CancelAll stops every pending timer for a booking.
func (s *Scheduler) CancelAll(bookingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t := range s.timers[bookingID] {
		t.Stop()
	}
	delete(s.timers, bookingID)
}

// Shutdown stops all timers and rejects further scheduling.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, set := range s.timers {
		for t := range set {
			t.Stop()
		}
	}
	s.timers = make(map[string]map[*time.Timer]struct{})
}
