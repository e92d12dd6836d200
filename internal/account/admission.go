package account

import "sync/atomic"

// DefaultAdmissionLimit bounds the number of concurrently outstanding
// asynchronous requests (transfer initiations on the sending side, inbound
// credits on the receiving side) admitted against a single account.
const DefaultAdmissionLimit = 10

// Admission is a per-actor admission controller: an atomic counting gate
// that rejects work immediately once the in-flight limit is reached, so a
// flood of requests against one account gets a cheap rejection instead of
// unbounded queuing.
type Admission struct {
	limit    int64
	inFlight atomic.Int64
}

// NewAdmission returns a controller with the given limit. A non-positive
// limit falls back to DefaultAdmissionLimit.
func NewAdmission(limit int) *Admission {
	if limit <= 0 {
		limit = DefaultAdmissionLimit
	}

	return &Admission{limit: int64(limit)}
}

// TryAdmit reports whether one more unit of work may proceed, atomically
// incrementing the in-flight count on admission. It never blocks.
func (a *Admission) TryAdmit() bool {
	for {
		n := a.inFlight.Load()
		if n >= a.limit {
			return false
		}

		if a.inFlight.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release returns an admission slot. It must be called exactly once per
// successful TryAdmit, on every exit path of the admitted work: a missed
// release leaks a slot until the limit permanently rejects everything, and
// an extra release silently disables the limit. An extra release is a
// programming error and panics.
func (a *Admission) Release() {
	if a.inFlight.Add(-1) < 0 {
		panic("account: admission slot released without a matching admit")
	}
}

// InFlight returns the number of admitted-but-not-yet-released requests.
func (a *Admission) InFlight() int {
	return int(a.inFlight.Load())
}

// Limit returns the configured admission limit.
func (a *Admission) Limit() int {
	return int(a.limit)
}
