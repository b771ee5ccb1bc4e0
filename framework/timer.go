package framework

import "time"

// Timer measures how long a test runs.
type Timer interface {
	Start()
	Elapsed() time.Duration
}

// MonotonicTimer is a Timer based on the monotonic clock reading of time.Now.
type MonotonicTimer struct {
	started time.Time
	now     func() time.Time
}

func NewMonotonicTimer() *MonotonicTimer {
	return &MonotonicTimer{now: time.Now}
}

func (t *MonotonicTimer) Start() {
	t.started = t.now()
}

// Elapsed returns the time since Start, or zero if Start was never called.
func (t *MonotonicTimer) Elapsed() time.Duration {
	if t.started.IsZero() {
		return 0
	}
	return t.now().Sub(t.started)
}
