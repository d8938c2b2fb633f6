package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	fastshot "github.com/opus-domini/fast-shot"
)

type SMSConfig struct {
	BaseURL  string
	APIKey   string
	SenderID string
	Timeout  time.Duration
}

// HTTPSMS sends messages through a Termii-style SMS gateway.
type HTTPSMS struct {
	cfg SMSConfig
}

func NewHTTPSMS(cfg SMSConfig) *HTTPSMS {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &HTTPSMS{cfg: cfg}
}

type smsRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Body    string `json:"sms"`
	Channel string `json:"channel"`
}

func (s *HTTPSMS) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res, err := fastshot.NewClient(s.cfg.BaseURL).
		Config().SetTimeout(s.cfg.Timeout).
		Auth().BearerToken(s.cfg.APIKey).
		Header().Add("Content-Type", "application/json").
		Build().POST("/api/sms/send").
		Body().AsJSON(smsRequest{To: to, From: s.cfg.SenderID, Body: body, Channel: "dnd"}).
		Send()
	if err != nil {
		return fmt.Errorf("sending sms: %w", err)
	}
	defer res.RawResponse.Body.Close()

	if res.RawResponse.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.RawResponse.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", res.RawResponse.StatusCode, detail)
	}

	return nil
}

// LogSMS writes messages to the log instead of sending them. It backs sandbox mode.
type LogSMS struct {
	Logger *slog.Logger
}

func (s LogSMS) Send(ctx context.Context, to, body string) error {
	s.Logger.Info("sms not sent in sandbox mode", "to", to, "body", body)
	return nil
}
