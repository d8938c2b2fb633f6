package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cradoe/skypay/internal/onboarding"
	"github.com/cradoe/skypay/internal/provider"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, lockTTL time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	c := NewWithClient(client, lockTTL)
	c.lockPoll = 5 * time.Millisecond

	return c, mr
}

func TestIdempotencyStore(t *testing.T) {
	c, mr := newTestCache(t, 0)
	ctx := context.Background()

	_, err := c.Get(ctx, "idem:registry:k1")
	assert.ErrorIs(t, err, provider.ErrNotStored)

	require.NoError(t, c.Put(ctx, "idem:registry:k1", []byte(`{"reference":"cac_1"}`), time.Minute))

	value, err := c.Get(ctx, "idem:registry:k1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"reference":"cac_1"}`, string(value))

	mr.FastForward(2 * time.Minute)

	_, err = c.Get(ctx, "idem:registry:k1")
	assert.ErrorIs(t, err, provider.ErrNotStored)
}

func TestLock(t *testing.T) {
	c, mr := newTestCache(t, 30*time.Second)
	ctx := context.Background()

	unlock, err := c.Lock(ctx, "applicant-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:applicant-1"))

	t.Run("held lock times out", func(t *testing.T) {
		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()

		_, err := c.Lock(waitCtx, "applicant-1")
		assert.ErrorIs(t, err, ErrLockTimeout)
	})

	t.Run("other keys are free", func(t *testing.T) {
		other, err := c.Lock(ctx, "applicant-2")
		require.NoError(t, err)
		other()
	})

	unlock()
	assert.False(t, mr.Exists("lock:applicant-1"))

	t.Run("stale unlock leaves a new holder alone", func(t *testing.T) {
		first, err := c.Lock(ctx, "applicant-3")
		require.NoError(t, err)

		// the first holder's lock expires and someone else takes it
		mr.FastForward(time.Minute)
		_, err = c.Lock(ctx, "applicant-3")
		require.NoError(t, err)

		first()
		assert.True(t, mr.Exists("lock:applicant-3"))
	})
}

func TestLockCoversSlowProviderCalls(t *testing.T) {
	policy := onboarding.DefaultPolicy()
	c, mr := newTestCache(t, policy.LockHold(30*time.Second))
	ctx := context.Background()

	unlock, err := c.Lock(ctx, "applicant-1")
	require.NoError(t, err)
	defer unlock()

	// identity and liveness each retried against a 30s provider timeout
	mr.FastForward(2 * time.Minute)

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()

	_, err = c.Lock(waitCtx, "applicant-1")
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestLockIsRenewedWhileHeld(t *testing.T) {
	c, mr := newTestCache(t, 60*time.Millisecond)
	ctx := context.Background()

	unlock, err := c.Lock(ctx, "applicant-1")
	require.NoError(t, err)

	mr.FastForward(40 * time.Millisecond)
	assert.Eventually(t, func() bool {
		return mr.TTL("lock:applicant-1") == 60*time.Millisecond
	}, time.Second, 5*time.Millisecond)

	unlock()
	assert.False(t, mr.Exists("lock:applicant-1"))

	// a second unlock is harmless
	unlock()
}

func TestDefaultLockTTL(t *testing.T) {
	c, _ := newTestCache(t, 0)
	assert.Equal(t, defaultLockTTL, c.lockTTL)
}
