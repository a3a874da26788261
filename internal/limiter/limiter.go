package limiter

import (
	"runtime"
	"time"
)

// CPULimiter keeps a sequential loop near a CPU budget by sleeping after each
// unit of work for a time proportional to the work just done.
type CPULimiter struct {
	maxPercent float64
	lastMark   time.Time
	now        func() time.Time
	sleep      func(time.Duration)
}

// NewCPULimiter creates a limiter; maxPercent <= 0 or >= 100 disables throttling
func NewCPULimiter(maxPercent float64) *CPULimiter {
	return &CPULimiter{
		maxPercent: maxPercent,
		lastMark:   time.Now(),
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// Enabled reports whether Throttle will ever sleep
func (l *CPULimiter) Enabled() bool {
	return l != nil && l.maxPercent > 0 && l.maxPercent < 100
}

// Throttle is called between units of work. With a budget of p percent it
// sleeps work*(100-p)/p, where work is the time since the previous call.
func (l *CPULimiter) Throttle() {
	if !l.Enabled() {
		return
	}

	now := l.now()
	work := now.Sub(l.lastMark)
	if work > 0 {
		pause := time.Duration(float64(work) * (100.0 - l.maxPercent) / l.maxPercent)
		l.sleep(pause)
	}
	runtime.Gosched()
	l.lastMark = l.now()
}

// SetMaxPercent updates the maximum CPU percentage
func (l *CPULimiter) SetMaxPercent(maxPercent float64) {
	l.maxPercent = maxPercent
}
