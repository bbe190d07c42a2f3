// services/monitor/fault.go
package monitor

// instabilityRing tracks the timestamps of the last N instability events
// (confirmed transitions and read errors). When the ring is full and its
// oldest entry still falls inside the fault window, the input is churning
// faster than any sane hardware should and the HardwareFault flag is raised.
// Fixed capacity, no allocation after init.
type instabilityRing struct {
	ts   []int64
	head int // next write position; ts[head] is the oldest once full
	full bool
}

func (r *instabilityRing) init(threshold int) {
	if threshold < 2 {
		threshold = 2
	}
	r.ts = make([]int64, threshold)
	r.head = 0
	r.full = false
}

// push records an event at now (ms) and reports whether the fault threshold
// is exceeded within windowMs.
func (r *instabilityRing) push(now, windowMs int64) bool {
	var faulty bool
	if r.full {
		oldest := r.ts[r.head]
		faulty = now-oldest <= windowMs
	}
	r.ts[r.head] = now
	r.head++
	if r.head == len(r.ts) {
		r.head = 0
		r.full = true
	}
	return faulty
}
