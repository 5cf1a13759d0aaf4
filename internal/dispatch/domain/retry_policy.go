package domain

import "time"

// RetryPolicy bounds how a job kind is attempted.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff[i] is the wait after the (i+1)th failed attempt. The last entry repeats.
	// An empty schedule redelivers immediately.
	Backoff []time.Duration
	Timeout time.Duration
}

// Delay returns the wait before the attempt following the given number of failed attempts.
func (p RetryPolicy) Delay(failedAttempts int) time.Duration {
	if len(p.Backoff) == 0 || failedAttempts < 1 {
		return 0
	}
	if failedAttempts > len(p.Backoff) {
		return p.Backoff[len(p.Backoff)-1]
	}
	return p.Backoff[failedAttempts-1]
}

// PolicySet holds the retry policy of every job kind.
type PolicySet map[JobKind]RetryPolicy

// NewPolicySet builds the standard policies. Event, profile and list work backs off on the
// given schedule; identify and catalog work redeliver immediately, and catalog work gets
// the longer timeout.
func NewPolicySet(maxAttempts int, backoff []time.Duration, eventTimeout, catalogTimeout time.Duration) PolicySet {
	set := make(PolicySet, len(Kinds))
	for _, kind := range Kinds {
		policy := RetryPolicy{MaxAttempts: maxAttempts, Timeout: eventTimeout}
		switch {
		case kind.IsCatalog():
			policy.Timeout = catalogTimeout
		case kind == KindIdentify:
		default:
			policy.Backoff = append([]time.Duration(nil), backoff...)
		}
		set[kind] = policy
	}
	return set
}

// For returns the policy of kind, falling back to a single immediate attempt.
func (s PolicySet) For(kind JobKind) RetryPolicy {
	if policy, ok := s[kind]; ok {
		return policy
	}
	return RetryPolicy{MaxAttempts: 1}
}
