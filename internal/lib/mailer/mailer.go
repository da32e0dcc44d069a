// Package mailer отправляет письма через HTTP API Resend или через SMTP-релей.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"gopkg.in/gomail.v2"
)

// ErrNotConfigured возвращается отправителем без необходимых настроек.
var ErrNotConfigured = errors.New("mailer is not configured")

// Message — письмо одному получателю.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender отправляет письма.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ResendClient отправляет письма через HTTP API Resend.
type ResendClient struct {
	httpClient *http.Client
	url        string
	apiKey     string
	from       string
}

// NewResendClient создаёт клиент Resend. Пустой apiKey делает клиент ненастроенным.
func NewResendClient(url, apiKey, from string, timeout time.Duration) *ResendClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ResendClient{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		apiKey:     apiKey,
		from:       from,
	}
}

// Configured сообщает, задан ли ключ API.
func (c *ResendClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// Send отправляет письмо. Любой ответ кроме 2xx считается ошибкой.
func (c *ResendClient) Send(ctx context.Context, msg Message) error {
	const op = "mailer.ResendClient.Send"
	if !c.Configured() {
		return fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	body, err := json.Marshal(resendRequest{
		From:    c.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: resend returned status %d: %s", op, resp.StatusCode, string(respBody))
	}
	return nil
}

// SMTPSender отправляет письма через SMTP-релей.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender создаёт отправителя для релея host:port.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	d := gomail.NewDialer(host, port, username, password)
	return &SMTPSender{dialer: d, from: from}
}

// Send отправляет письмо через релей.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	const op = "mailer.SMTPSender.Send"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.dialer.Host == "" {
		return fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		if msg.HTML != "" {
			m.AddAlternative("text/html", msg.HTML)
		}
	} else {
		m.SetBody("text/html", msg.HTML)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
