package provider

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrNotStored is returned by an IdempotencyStore for unknown keys.
var ErrNotStored = errors.New("idempotency key not stored")

// IdempotencyStore keeps the serialised result of a successful call per key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IdempotentClient memoises successful results by idempotency key so a retried
// request never repeats a billable lookup or issues a second consent link.
// Failures are not stored and may be retried with the same key.
type IdempotentClient struct {
	next  Client
	store IdempotencyStore
	ttl   time.Duration
}

func NewIdempotentClient(next Client, store IdempotencyStore, ttl time.Duration) *IdempotentClient {
	return &IdempotentClient{next: next, store: store, ttl: ttl}
}

func remember[T any](ctx context.Context, c *IdempotentClient, op, key string, call func() (*T, error)) (*T, error) {
	storeKey := "idem:" + op + ":" + key

	if raw, err := c.store.Get(ctx, storeKey); err == nil {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
	}

	result, err := call()
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(result); err == nil {
		// a failed write only costs a repeated provider call on the next retry
		_ = c.store.Put(ctx, storeKey, raw, c.ttl)
	}

	return result, nil
}

func (c *IdempotentClient) LookupRegistry(ctx context.Context, key, registryNumber string) (*RegistryRecord, error) {
	return remember(ctx, c, "registry", key, func() (*RegistryRecord, error) {
		return c.next.LookupRegistry(ctx, key, registryNumber)
	})
}

func (c *IdempotentClient) VerifyIdentity(ctx context.Context, key, identityNumber string) (*IdentityRecord, error) {
	return remember(ctx, c, "identity", key, func() (*IdentityRecord, error) {
		return c.next.VerifyIdentity(ctx, key, identityNumber)
	})
}

func (c *IdempotentClient) CheckLiveness(ctx context.Context, key, identityRef, selfieURL string) (*LivenessResult, error) {
	return remember(ctx, c, "liveness", key, func() (*LivenessResult, error) {
		return c.next.CheckLiveness(ctx, key, identityRef, selfieURL)
	})
}

func (c *IdempotentClient) ResolveAccount(ctx context.Context, key, accountNumber, bankCode string) (*AccountRecord, error) {
	return remember(ctx, c, "account", key, func() (*AccountRecord, error) {
		return c.next.ResolveAccount(ctx, key, accountNumber, bankCode)
	})
}

func (c *IdempotentClient) IssueConsentLink(ctx context.Context, key string, req ConsentRequest) (*ConsentLink, error) {
	return remember(ctx, c, "consent", key, func() (*ConsentLink, error) {
		return c.next.IssueConsentLink(ctx, key, req)
	})
}

// MemoryStore is an IdempotencyStore for tests and sandbox mode.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	nowF    func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		nowF:    time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || (!e.expiresAt.IsZero() && s.nowF().After(e.expiresAt)) {
		return nil, ErrNotStored
	}
	return e.value, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.nowF().Add(ttl)
	}
	s.entries[key] = e
	return nil
}
