package service

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_FiresAfterDelay(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	var fired int32
	s.Schedule("booking-1", 10*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 1 {
		t.Errorf("expected timer to fire once, got %d", fired)
	}
}

func TestScheduler_CancelAllStopsPendingTimers(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	var fired int32
	s.Schedule("booking-1", 20*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})
	s.Schedule("booking-1", 20*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})
	s.Schedule("booking-2", 20*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	s.CancelAll("booking-1")

	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Errorf("expected only the other booking's timer to fire, got %d", got)
	}
}

func TestScheduler_ShutdownRejectsNewWork(t *testing.T) {
	s := NewScheduler()

	var fired int32
	s.Schedule("booking-1", 20*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})
	s.Shutdown()
	s.Schedule("booking-2", time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Errorf("no timer may fire after shutdown, got %d", fired)
	}
}
