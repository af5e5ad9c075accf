package cluster

import "time"

// Profiler receives timings for the engine's internal stages. It is passed
// in explicitly (see WithProfiler) rather than held in package state, so
// concurrent clustering runs never share instrumentation.
//
// Stage names currently emitted: "index_build", "grouping".
type Profiler interface {
	Observe(stage string, d time.Duration)
}

type nopProfiler struct{}

func (nopProfiler) Observe(string, time.Duration) {}

// timed runs fn and reports its duration to p under the given stage name.
func timed(p Profiler, stage string, fn func()) {
	start := time.Now()
	fn()
	p.Observe(stage, time.Since(start))
}
