// Package timing records elapsed wall-clock durations for named
// pipeline stages.
package timing

import (
	"sync"
	"time"
)

// Stage is one timed section of work.
type Stage struct {
	Name     string
	Duration time.Duration
}

// Tracker accumulates stage durations. Safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	stages []Stage
}

// Track starts timing a stage and returns a function that stops the
// clock and records the result.
func (t *Tracker) Track(name string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		t.mu.Lock()
		t.stages = append(t.stages, Stage{Name: name, Duration: elapsed})
		t.mu.Unlock()
	}
}

// Stages returns the recorded stages in completion order.
func (t *Tracker) Stages() []Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Stage, len(t.stages))
	copy(out, t.stages)
	return out
}

// Total returns the sum of all recorded stage durations.
func (t *Tracker) Total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total time.Duration
	for _, s := range t.stages {
		total += s.Duration
	}
	return total
}
