package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	fastshot "github.com/opus-domini/fast-shot"
)

type HTTPConfig struct {
	BaseURL string
	AppID   string
	APIKey  string
	Timeout time.Duration
}

// HTTPClient talks to a Dojah-style KYC REST API.
type HTTPClient struct {
	cfg HTTPConfig
}

func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPClient{cfg: cfg}
}

type envelope[T any] struct {
	Entity T      `json:"entity"`
	Error  string `json:"error"`
}

// post sends body to path and decodes the entity of a successful response into out.
// A client is built per call because the idempotency key travels as a client header.
func (c *HTTPClient) post(ctx context.Context, op, path, key string, body any, out any) error {
	if err := ctx.Err(); err != nil {
		return newError(op, KindTimeout, "request cancelled before it was sent", err)
	}

	res, err := fastshot.NewClient(c.cfg.BaseURL).
		Config().SetTimeout(c.cfg.Timeout).
		Auth().BearerToken(c.cfg.APIKey).
		Header().Add("AppId", c.cfg.AppID).
		Header().Add("Idempotency-Key", key).
		Header().Add("Content-Type", "application/json").
		Build().POST(path).
		Body().AsJSON(body).
		Send()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			return newError(op, KindTimeout, "verification service did not respond in time", err)
		}
		return newError(op, KindProviderUnavailable, "verification service is unreachable", err)
	}
	defer res.RawResponse.Body.Close()

	raw, err := io.ReadAll(res.RawResponse.Body)
	if err != nil {
		return newError(op, KindProviderUnavailable, "failed to read verification response", err)
	}

	if kind, failed := classifyStatus(res.RawResponse.StatusCode); failed {
		var env envelope[json.RawMessage]
		_ = json.Unmarshal(raw, &env)
		return newError(op, kind, messageFor(kind), fmt.Errorf("status %d: %s", res.RawResponse.StatusCode, env.Error))
	}

	env := envelope[json.RawMessage]{}
	if err := json.Unmarshal(raw, &env); err != nil {
		return newError(op, KindProviderUnavailable, "verification service returned an unreadable response", err)
	}

	if err := json.Unmarshal(env.Entity, out); err != nil {
		return newError(op, KindProviderUnavailable, "verification service returned an unreadable response", err)
	}

	return nil
}

func classifyStatus(code int) (Kind, bool) {
	switch {
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return KindInvalidInput, true
	case code == http.StatusNotFound:
		return KindNotFound, true
	case code == http.StatusTooManyRequests:
		return KindRateLimited, true
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return KindTimeout, true
	case code >= 500:
		return KindProviderUnavailable, true
	case code >= 400:
		return KindInvalidInput, true
	}
	return "", false
}

func messageFor(kind Kind) string {
	switch kind {
	case KindInvalidInput:
		return "the details supplied were rejected by the verification service"
	case KindNotFound:
		return "no matching record was found"
	case KindRateLimited:
		return "too many verification requests, try again shortly"
	case KindTimeout:
		return "verification service did not respond in time"
	default:
		return "verification service is temporarily unavailable"
	}
}

func (c *HTTPClient) LookupRegistry(ctx context.Context, key, registryNumber string) (*RegistryRecord, error) {
	var record RegistryRecord
	err := c.post(ctx, "lookup registry", "/api/v1/kyc/cac", key, map[string]string{
		"rc_number": registryNumber,
	}, &record)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *HTTPClient) VerifyIdentity(ctx context.Context, key, identityNumber string) (*IdentityRecord, error) {
	var record IdentityRecord
	err := c.post(ctx, "verify identity", "/api/v1/kyc/bvn", key, map[string]string{
		"bvn": identityNumber,
	}, &record)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *HTTPClient) CheckLiveness(ctx context.Context, key, identityRef, selfieURL string) (*LivenessResult, error) {
	var result LivenessResult
	err := c.post(ctx, "check liveness", "/api/v1/kyc/liveness", key, map[string]string{
		"reference": identityRef,
		"image_url": selfieURL,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) ResolveAccount(ctx context.Context, key, accountNumber, bankCode string) (*AccountRecord, error) {
	var record AccountRecord
	err := c.post(ctx, "resolve account", "/api/v1/kyc/nuban", key, map[string]string{
		"account_number": accountNumber,
		"bank_code":      bankCode,
	}, &record)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *HTTPClient) IssueConsentLink(ctx context.Context, key string, req ConsentRequest) (*ConsentLink, error) {
	var link ConsentLink
	err := c.post(ctx, "issue consent link", "/api/v1/consents", key, req, &link)
	if err != nil {
		return nil, err
	}
	return &link, nil
}
