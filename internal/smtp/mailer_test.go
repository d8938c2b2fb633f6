package smtp

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type fakeMailClient struct {
	failures int
	calls    int
	sent     []*mail.Msg
}

func (c *fakeMailClient) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	c.calls++
	if c.calls <= c.failures {
		return errors.New("connection refused")
	}
	c.sent = append(c.sent, msgs...)
	return nil
}

func TestMailerSend(t *testing.T) {
	client := &fakeMailClient{}
	mailer := NewMailerWithClient(client, "SkyPay <no-reply@skypay.test>")

	err := mailer.Send("ada@acme.ng", map[string]any{
		"Code":      "123456",
		"ExpiresAt": time.Date(2024, 3, 1, 9, 10, 0, 0, time.UTC),
	}, "otp.tmpl")
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	msg := client.sent[0]
	assert.Equal(t, []string{"Your SkyPay verification code"}, msg.GetGenHeader(mail.HeaderSubject))

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "123456")
	assert.Contains(t, buf.String(), "ada@acme.ng")
}

func TestMailerRetries(t *testing.T) {
	client := &fakeMailClient{failures: 2}
	mailer := NewMailerWithClient(client, "no-reply@skypay.test")
	mailer.retryDelay = time.Millisecond

	err := mailer.Send("ada@acme.ng", map[string]any{"Reason": "documents look altered"}, "applicant-rejected.tmpl")
	require.NoError(t, err)
	assert.Equal(t, 3, client.calls)

	client = &fakeMailClient{failures: 3}
	mailer = NewMailerWithClient(client, "no-reply@skypay.test")
	mailer.retryDelay = time.Millisecond

	err = mailer.Send("ada@acme.ng", map[string]any{"Reason": "x"}, "applicant-rejected.tmpl")
	assert.EqualError(t, err, "connection refused")
}

func TestMailerUnknownTemplate(t *testing.T) {
	mailer := NewMailerWithClient(&fakeMailClient{}, "no-reply@skypay.test")

	err := mailer.Send("ada@acme.ng", nil, "missing.tmpl")
	assert.Error(t, err)
}

func TestMailerReusesParsedTemplates(t *testing.T) {
	client := &fakeMailClient{}
	mailer := NewMailerWithClient(client, "no-reply@skypay.test")

	data := map[string]any{"Code": "111111", "ExpiresAt": time.Date(2024, 3, 1, 9, 10, 0, 0, time.UTC)}
	require.NoError(t, mailer.Send("ada@acme.ng", data, "otp.tmpl"))

	data["Code"] = "222222"
	require.NoError(t, mailer.Send("bola@acme.ng", data, "otp.tmpl"))

	assert.Len(t, mailer.templates, 1)
	require.Len(t, client.sent, 2)

	var buf bytes.Buffer
	_, err := client.sent[1].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "222222")
	assert.NotContains(t, buf.String(), "111111")
}

func TestMailerRender(t *testing.T) {
	mailer := NewMailerWithClient(&fakeMailClient{}, "no-reply@skypay.test")

	out, err := mailer.render(map[string]any{"Code": "123456", "ExpiresAt": time.Date(2024, 3, 1, 9, 10, 0, 0, time.UTC)}, []string{"otp.tmpl"})
	require.NoError(t, err)
	assert.Equal(t, "Your SkyPay verification code", out.subject)
	assert.Contains(t, out.plain, "123456")
	assert.Contains(t, out.html, "123456")

	out, err = mailer.render(map[string]any{"Reason": "documents look altered"}, []string{"applicant-rejected.tmpl"})
	require.NoError(t, err)
	assert.Contains(t, out.plain, "documents look altered")
	assert.Empty(t, out.html)
}
