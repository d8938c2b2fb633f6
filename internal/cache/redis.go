package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cradoe/skypay/internal/provider"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

// defaultLockTTL is used when no hold time is configured.
const defaultLockTTL = 5 * time.Minute

// releaseScript deletes the lock only if it is still held by the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lock only if it is still held by the caller's token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type Cache struct {
	client *redis.Client

	lockTTL  time.Duration
	lockPoll time.Duration
}

// New connects to redis. lockTTL should cover the longest time an operation
// holds an applicant lock; held locks are renewed while their holder runs.
func New(redisAddr string, db int, lockTTL time.Duration) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   db,
	})

	return NewWithClient(client, lockTTL)
}

func NewWithClient(client *redis.Client, lockTTL time.Duration) *Cache {
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}

	return &Cache{
		client:   client,
		lockTTL:  lockTTL,
		lockPoll: 50 * time.Millisecond,
	}
}

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the stored value or provider.ErrNotStored.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, provider.ErrNotStored
	}
	return value, err
}

// Put stores a value with an expiration time
func (c *Cache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes a key from the cache
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Lock takes a lock shared by every instance of the service. The lock expires on
// its own if the holder dies, and unlock only releases a lock it still owns.
func (c *Cache) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(c.lockPoll)
	defer ticker.Stop()

	for {
		acquired, err := c.client.SetNX(ctx, lockKey, token, c.lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if acquired {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go c.renew(lockKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			// the caller's context may already be done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, c.client, []string{lockKey}, token).Err()
		})
	}, nil
}

// renew keeps a held lock from expiring until stop is closed or the lock is lost.
func (c *Cache) renew(lockKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.lockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		held, err := renewScript.Run(ctx, c.client, []string{lockKey}, token, c.lockTTL.Milliseconds()).Int()
		cancel()

		if err == nil && held == 0 {
			return
		}
	}
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}
