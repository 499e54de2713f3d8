// Package scheduler owns every repeating or delayed action in the system:
// location ticks, the post-trip purge delay, cooldown expiry. Timers are
// named; starting a timer under a name that is already running cancels the
// prior instance first, so two ticks of the same kind can never interleave.
package scheduler

import (
	"sync"
	"time"
)

// Scheduler runs named, cancellable timers.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]chan struct{}
	wg     sync.WaitGroup
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{timers: make(map[string]chan struct{})}
}

// Every runs fn on a fixed interval until the key is cancelled. A prior
// timer under the same key is cancelled first.
func (s *Scheduler) Every(key string, interval time.Duration, fn func()) {
	stop := s.replace(key)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-stop:
				return
			}
		}
	}()
}

// After runs fn once after delay, unless the key is cancelled first. A
// prior timer under the same key is cancelled first.
func (s *Scheduler) After(key string, delay time.Duration, fn func()) {
	stop := s.replace(key)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			s.clear(key, stop)
			fn()
		case <-stop:
		}
	}()
}

// Cancel stops the timer under key. Cancelling an unknown key is a no-op,
// so cancellation is always safe and idempotent.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.timers[key]; ok {
		close(stop)
		delete(s.timers, key)
	}
}

// Active reports whether a timer is currently registered under key.
func (s *Scheduler) Active(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Stop cancels every timer and waits for running callbacks to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for key, stop := range s.timers {
		close(stop)
		delete(s.timers, key)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// replace cancels any timer under key and registers a fresh stop channel.
func (s *Scheduler) replace(key string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prior, ok := s.timers[key]; ok {
		close(prior)
	}
	stop := make(chan struct{})
	s.timers[key] = stop
	return stop
}

// clear removes key only if it still maps to the given stop channel, so a
// fired one-shot does not cancel a newer timer under the same name.
func (s *Scheduler) clear(key string, stop chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.timers[key]; ok && current == stop {
		delete(s.timers, key)
	}
}
