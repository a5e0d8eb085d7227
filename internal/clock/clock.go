// Package clock abstracts time for components with cooldown and debounce
// behavior, so boundary conditions are testable deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time and timers.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc schedules f to run after d and returns a handle that
	// can stop it.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending call.
type Timer interface {
	// Stop cancels the timer. It reports whether the call was stopped
	// before firing.
	Stop() bool
}

// System returns a Clock backed by the time package.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Mock is a manually advanced clock for tests. Timers fire synchronously
// from Advance, in scheduling order.
type Mock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
	nextID int
}

// NewMock creates a mock clock at an arbitrary fixed start time.
func NewMock() *Mock {
	return &Mock{now: time.Unix(1700000000, 0)}
}

// Now returns the mock's current time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc schedules f at now+d.
func (m *Mock) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &mockTimer{clock: m, at: m.now.Add(d), f: f, id: m.nextID}
	m.nextID++
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward, firing due timers in order.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	deadline := m.now
	m.mu.Unlock()

	for {
		t := m.popDue(deadline)
		if t == nil {
			return
		}
		t.f()
	}
}

func (m *Mock) popDue(deadline time.Time) *mockTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	best := -1
	for i, t := range m.timers {
		if t.at.After(deadline) {
			continue
		}
		if best == -1 || t.at.Before(m.timers[best].at) ||
			(t.at.Equal(m.timers[best].at) && t.id < m.timers[best].id) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	t := m.timers[best]
	m.timers = append(m.timers[:best], m.timers[best+1:]...)
	return t
}

type mockTimer struct {
	clock *Mock
	at    time.Time
	f     func()
	id    int
}

func (t *mockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	for i, other := range t.clock.timers {
		if other == t {
			t.clock.timers = append(t.clock.timers[:i], t.clock.timers[i+1:]...)
			return true
		}
	}
	return false
}
