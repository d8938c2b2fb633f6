package onboarding

import "time"

const (
	// maxProviderBackoff caps the wait between retries of one provider call.
	maxProviderBackoff = 5 * time.Second
	lockHoldMargin     = 30 * time.Second
)

// Policy holds every tunable number the engine uses.
type Policy struct {
	// MaxAttempts is the number of counted failures a step may accumulate before
	// the applicant is rejected.
	MaxAttempts int

	OTPExpiry      time.Duration
	OTPMaxAttempts int

	ConsentExpiry time.Duration

	// NameMatchThreshold is the minimum similarity, in [0,1], between the settlement
	// account holder name and the verified business or director name.
	NameMatchThreshold float64

	// StepTimeBudget is how long a step may sit in progress without activity
	// before the applicant expires.
	StepTimeBudget time.Duration

	// AdminReviewSLA is how long an applicant may wait for review before it is escalated.
	AdminReviewSLA time.Duration

	ProviderRetries int
	ProviderBackoff time.Duration

	// ReverificationWindow expires verified steps older than it. Zero disables it.
	ReverificationWindow time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:          3,
		OTPExpiry:            10 * time.Minute,
		OTPMaxAttempts:       5,
		ConsentExpiry:        72 * time.Hour,
		NameMatchThreshold:   0.85,
		StepTimeBudget:       7 * 24 * time.Hour,
		AdminReviewSLA:       48 * time.Hour,
		ProviderRetries:      3,
		ProviderBackoff:      200 * time.Millisecond,
		ReverificationWindow: 0,
	}
}

// LockHold is the longest a single operation may hold an applicant lock. The
// director step makes two provider calls in a row, each retried with backoff.
func (p Policy) LockHold(providerTimeout time.Duration) time.Duration {
	tries := max(p.ProviderRetries, 1)
	perCall := time.Duration(tries) * (providerTimeout + maxProviderBackoff)
	return 2*perCall + lockHoldMargin
}
