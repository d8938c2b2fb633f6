package smtp

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cradoe/skypay/assets"
	"github.com/cradoe/skypay/internal/funcs"

	"github.com/cenkalti/backoff/v5"
	"github.com/wneessen/go-mail"

	htmlTemplate "html/template"
	textTemplate "text/template"
)

const (
	dialTimeout  = 10 * time.Second
	sendAttempts = 3
)

// Config holds the SMTP relay settings. TLS upgrades the connection with
// STARTTLS when the relay offers it.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      bool
}

type MailClient interface {
	DialAndSendWithContext(ctx context.Context, msgs ...*mail.Msg) error
}

type MailerInterface interface {
	Send(recipient string, data any, patterns ...string) error
}

// Mailer delivers the templated emails under assets/emails. Parsed template
// sets are kept for the life of the process.
type Mailer struct {
	client     MailClient
	from       string
	retryDelay time.Duration

	mu        sync.Mutex
	templates map[string]*emailTemplate
}

type emailTemplate struct {
	text *textTemplate.Template
	html *htmlTemplate.Template
}

type rendered struct {
	subject string
	plain   string
	html    string
}

func NewMailer(cfg Config) (*Mailer, error) {
	policy := mail.NoTLS
	if cfg.TLS {
		policy = mail.TLSOpportunistic
	}

	client, err := mail.NewClient(
		cfg.Host,
		mail.WithTimeout(dialTimeout),
		mail.WithPort(cfg.Port),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(policy),
	)
	if err != nil {
		return nil, err
	}

	return NewMailerWithClient(client, cfg.From), nil
}

func NewMailerWithClient(client MailClient, from string) *Mailer {
	return &Mailer{
		client:     client,
		from:       from,
		retryDelay: 2 * time.Second,
		templates:  make(map[string]*emailTemplate),
	}
}

// Send renders the named templates and delivers the result to recipient.
// Every template must define "subject" and "plainBody"; "htmlBody" is optional.
func (m *Mailer) Send(recipient string, data any, patterns ...string) error {
	body, err := m.render(data, patterns)
	if err != nil {
		return err
	}

	msg, err := m.compose(recipient, body)
	if err != nil {
		return err
	}

	return m.deliver(context.Background(), msg)
}

func (m *Mailer) render(data any, patterns []string) (rendered, error) {
	tmpl, err := m.lookup(patterns)
	if err != nil {
		return rendered{}, err
	}

	var out rendered
	var buf bytes.Buffer

	if err := tmpl.text.ExecuteTemplate(&buf, "subject", data); err != nil {
		return rendered{}, err
	}
	out.subject = strings.TrimSpace(buf.String())

	buf.Reset()
	if err := tmpl.text.ExecuteTemplate(&buf, "plainBody", data); err != nil {
		return rendered{}, err
	}
	out.plain = buf.String()

	if tmpl.html != nil {
		buf.Reset()
		if err := tmpl.html.ExecuteTemplate(&buf, "htmlBody", data); err != nil {
			return rendered{}, err
		}
		out.html = buf.String()
	}

	return out, nil
}

// lookup returns the parsed template set for patterns, parsing it on first use.
func (m *Mailer) lookup(patterns []string) (*emailTemplate, error) {
	key := strings.Join(patterns, "|")

	m.mu.Lock()
	defer m.mu.Unlock()

	if tmpl, ok := m.templates[key]; ok {
		return tmpl, nil
	}

	paths := make([]string, 0, len(patterns))
	for _, p := range patterns {
		paths = append(paths, "emails/"+p)
	}

	text, err := textTemplate.New("").Funcs(funcs.TemplateFuncs).ParseFS(assets.EmbeddedFiles, paths...)
	if err != nil {
		return nil, err
	}

	tmpl := &emailTemplate{text: text}
	if text.Lookup("htmlBody") != nil {
		tmpl.html, err = htmlTemplate.New("").Funcs(funcs.TemplateFuncs).ParseFS(assets.EmbeddedFiles, paths...)
		if err != nil {
			return nil, err
		}
	}

	m.templates[key] = tmpl
	return tmpl, nil
}

func (m *Mailer) compose(recipient string, body rendered) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if err := msg.From(m.from); err != nil {
		return nil, err
	}
	if err := msg.To(recipient); err != nil {
		return nil, err
	}

	msg.Subject(body.subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body.plain)
	if body.html != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, body.html)
	}

	return msg, nil
}

// deliver hands msg to the relay, retrying at a fixed interval.
func (m *Mailer) deliver(ctx context.Context, msg *mail.Msg) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, m.client.DialAndSendWithContext(ctx, msg)
	}, backoff.WithBackOff(backoff.NewConstantBackOff(m.retryDelay)), backoff.WithMaxTries(sendAttempts))
	return err
}
