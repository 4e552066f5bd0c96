package engine

// stepQuota counts the queue entries processed by one drain and enforces a
// maximum.
//
// Propagation has no built-in termination guarantee: a bidirectional ring of
// stream contacts or a gadget feeding its own input keeps the queue busy
// forever. The quota turns such a runaway drain into a QUOTA_EXCEEDED error.
// A limit of zero disables the check.
type stepQuota struct {
	maxSteps int
	current  int
}

func newStepQuota(maxSteps int) *stepQuota {
	return &stepQuota{maxSteps: maxSteps}
}

// Check increments the step counter and validates against the limit.
func (q *stepQuota) Check() error {
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return NewQuotaError(q.current, q.maxSteps)
	}
	return nil
}

// Current returns the current step count.
func (q *stepQuota) Current() int {
	return q.current
}
