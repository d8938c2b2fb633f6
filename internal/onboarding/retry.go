package onboarding

import (
	"context"

	"github.com/cenkalti/backoff/v5"
	"github.com/cradoe/skypay/internal/provider"
)

// callProvider retries transient provider failures with exponential backoff.
// Non-retryable failures are returned after the first attempt.
func callProvider[T any](ctx context.Context, policy Policy, call func() (*T, error)) (*T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.ProviderBackoff
	b.MaxInterval = maxProviderBackoff

	tries := policy.ProviderRetries
	if tries < 1 {
		tries = 1
	}

	return backoff.Retry(ctx, func() (*T, error) {
		result, err := call()
		if err != nil && !provider.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return result, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(tries)))
}
