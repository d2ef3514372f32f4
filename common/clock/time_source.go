package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

type (
	// TimeSource provides the current time and timer construction so that
	// time-driven code can run against a controlled clock in tests.
	TimeSource interface {
		Now() time.Time
		Since(t time.Time) time.Duration
		NewTicker(d time.Duration) Ticker
		NewTimer(d time.Duration) Timer
		Sleep(d time.Duration)
	}

	// MockedTimeSource is a TimeSource whose time only moves when the test
	// advances it.
	MockedTimeSource interface {
		TimeSource

		// Advance moves the clock forward, firing any tickers and timers
		// whose deadlines are reached.
		Advance(d time.Duration)
		// BlockUntil blocks until the clock has at least the given number
		// of waiters (sleepers, tickers, timers).
		BlockUntil(waiters int)
	}

	// Ticker delivers ticks on Chan at a fixed period.
	Ticker interface {
		Chan() <-chan time.Time
		Reset(d time.Duration)
		Stop()
	}

	// Timer delivers a single tick on Chan after its duration elapses.
	Timer interface {
		Chan() <-chan time.Time
		Reset(d time.Duration) bool
		Stop() bool
	}

	realTimeSource struct {
		clockwork.Clock
	}

	mockedTimeSource struct {
		*clockwork.FakeClock
	}
)

// NewRealTimeSource returns a TimeSource backed by the wall clock.
func NewRealTimeSource() TimeSource {
	return realTimeSource{Clock: clockwork.NewRealClock()}
}

// NewMockedTimeSource returns a TimeSource that stands still until the test
// calls Advance.
func NewMockedTimeSource() MockedTimeSource {
	return mockedTimeSource{FakeClock: clockwork.NewFakeClock()}
}

func (r realTimeSource) NewTicker(d time.Duration) Ticker {
	return r.Clock.NewTicker(d)
}

func (r realTimeSource) NewTimer(d time.Duration) Timer {
	return r.Clock.NewTimer(d)
}

func (m mockedTimeSource) NewTicker(d time.Duration) Ticker {
	return m.FakeClock.NewTicker(d)
}

func (m mockedTimeSource) NewTimer(d time.Duration) Timer {
	return m.FakeClock.NewTimer(d)
}
