package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://kyc.example.com"

func newTestHTTPClient() *HTTPClient {
	return NewHTTPClient(HTTPConfig{
		BaseURL: testBaseURL,
		AppID:   "app-id",
		APIKey:  "secret",
		Timeout: 5 * time.Second,
	})
}

func TestHTTPClientLookupRegistry(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", testBaseURL+"/api/v1/kyc/cac",
		func(r *http.Request) (*http.Response, error) {
			assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			return httpmock.NewJsonResponse(200, map[string]any{
				"entity": map[string]any{
					"reference":    "ref-1",
					"rc_number":    "RC123456",
					"company_name": "Acme Ltd",
					"address":      "1 Marina, Lagos",
				},
			})
		},
	)

	record, err := newTestHTTPClient().LookupRegistry(context.Background(), "key-1", "RC123456")
	require.NoError(t, err)
	require.Equal(t, "Acme Ltd", record.LegalName)
	require.Equal(t, "1 Marina, Lagos", record.Address)
	require.Equal(t, "ref-1", record.Reference)
}

func TestHTTPClientClassifiesFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		kind      Kind
		retryable bool
	}{
		{name: "Bad request", status: http.StatusBadRequest, kind: KindInvalidInput},
		{name: "Unprocessable", status: http.StatusUnprocessableEntity, kind: KindInvalidInput},
		{name: "Not found", status: http.StatusNotFound, kind: KindNotFound},
		{name: "Rate limited", status: http.StatusTooManyRequests, kind: KindRateLimited, retryable: true},
		{name: "Gateway timeout", status: http.StatusGatewayTimeout, kind: KindTimeout, retryable: true},
		{name: "Unavailable", status: http.StatusServiceUnavailable, kind: KindProviderUnavailable, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpmock.Activate()
			defer httpmock.DeactivateAndReset()

			httpmock.RegisterResponder("POST", testBaseURL+"/api/v1/kyc/bvn",
				func(r *http.Request) (*http.Response, error) {
					return httpmock.NewJsonResponse(tt.status, map[string]any{
						"error": "raw provider detail",
					})
				},
			)

			_, err := newTestHTTPClient().VerifyIdentity(context.Background(), "key", "12345678912")
			require.Error(t, err)

			var pErr *Error
			require.True(t, errors.As(err, &pErr))
			require.Equal(t, tt.kind, pErr.Kind)
			require.Equal(t, tt.retryable, pErr.Retryable())
			require.NotContains(t, pErr.Message, "raw provider detail")
		})
	}
}

func TestHTTPClientTransportFailure(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", testBaseURL+"/api/v1/kyc/nuban",
		httpmock.NewErrorResponder(errors.New("connection refused")),
	)

	_, err := newTestHTTPClient().ResolveAccount(context.Background(), "key", "0123456789", "058")
	require.Error(t, err)
	require.Equal(t, KindProviderUnavailable, KindOf(err))
	require.True(t, IsRetryable(err))
}

func TestSandboxClient(t *testing.T) {
	ctx := context.Background()
	client := NewSandboxClient(nil, "https://app.example.com")

	t.Run("registry", func(t *testing.T) {
		record, err := client.LookupRegistry(ctx, "k", "rc123456")
		require.NoError(t, err)
		require.Equal(t, "SkyPay Test Business 456", record.LegalName)
		require.Equal(t, "123 Lekki Phase 1, Lagos, Nigeria", record.Address)

		_, err = client.LookupRegistry(ctx, "k", "RC999999")
		require.Equal(t, KindNotFound, KindOf(err))

		_, err = client.LookupRegistry(ctx, "k", "XY12")
		require.Equal(t, KindInvalidInput, KindOf(err))
	})

	t.Run("identity", func(t *testing.T) {
		record, err := client.VerifyIdentity(ctx, "k", "10987654321")
		require.NoError(t, err)
		require.Equal(t, "John Adeyemi", record.FullName)
		require.Equal(t, "1985-05-15", record.DateOfBirth)

		_, err = client.VerifyIdentity(ctx, "k", "22222222222")
		require.Equal(t, KindNotFound, KindOf(err))

		_, err = client.VerifyIdentity(ctx, "k", "123")
		require.Equal(t, KindInvalidInput, KindOf(err))
	})

	t.Run("account", func(t *testing.T) {
		record, err := client.ResolveAccount(ctx, "k", "1234567890", "058")
		require.NoError(t, err)
		require.Equal(t, "John Adeyemi", record.HolderName)

		record, err = client.ResolveAccount(ctx, "k", "0000000456", "058")
		require.NoError(t, err)
		require.Equal(t, "SkyPay Test Business 456", record.HolderName)
	})

	t.Run("consent link", func(t *testing.T) {
		link, err := client.IssueConsentLink(ctx, "k", ConsentRequest{Token: "abc"})
		require.NoError(t, err)
		require.Equal(t, "https://app.example.com/consents/abc", link.URL)
	})
}

type countingClient struct {
	SandboxClient
	calls int
	fail  error
}

func (c *countingClient) LookupRegistry(ctx context.Context, key, registryNumber string) (*RegistryRecord, error) {
	c.calls++
	if c.fail != nil {
		return nil, c.fail
	}
	return c.SandboxClient.LookupRegistry(ctx, key, registryNumber)
}

func TestIdempotentClientMemoisesSuccess(t *testing.T) {
	ctx := context.Background()
	inner := &countingClient{}
	client := NewIdempotentClient(inner, NewMemoryStore(), time.Hour)

	first, err := client.LookupRegistry(ctx, "same-key", "RC123456")
	require.NoError(t, err)

	second, err := client.LookupRegistry(ctx, "same-key", "RC123456")
	require.NoError(t, err)

	require.Equal(t, 1, inner.calls)
	require.Equal(t, first.Reference, second.Reference)

	_, err = client.LookupRegistry(ctx, "other-key", "RC123456")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestIdempotentClientDoesNotMemoiseFailure(t *testing.T) {
	ctx := context.Background()
	inner := &countingClient{fail: newError("lookup registry", KindTimeout, "slow", nil)}
	client := NewIdempotentClient(inner, NewMemoryStore(), time.Hour)

	_, err := client.LookupRegistry(ctx, "key", "RC123456")
	require.Error(t, err)

	inner.fail = nil
	record, err := client.LookupRegistry(ctx, "key", "RC123456")
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, 2, inner.calls)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	store := NewMemoryStore()
	store.nowF = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "k", []byte("v"), time.Minute))

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotStored)
}
