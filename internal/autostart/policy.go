package autostart

import "time"

// Policy bounds how long a start waits for its terminal to appear.
type Policy struct {
	// Delay between existence probes.
	Delay time.Duration
	// MaxAttempts is the total number of existence probes per run.
	MaxAttempts int
}

// DefaultPolicy probes every 150ms, ten times.
func DefaultPolicy() Policy {
	return Policy{Delay: 150 * time.Millisecond, MaxAttempts: 10}
}

func (p Policy) normalize() Policy {
	d := DefaultPolicy()
	if p.Delay <= 0 {
		p.Delay = d.Delay
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	return p
}

// Retry reports whether another probe may follow after attempts failed probes,
// and how long to wait before it.
func (p Policy) Retry(attempts int) (time.Duration, bool) {
	p = p.normalize()
	if attempts >= p.MaxAttempts {
		return 0, false
	}
	return p.Delay, true
}
