package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// DefaultWhatsAppBaseURL is the Twilio REST API root.
const DefaultWhatsAppBaseURL = "https://api.twilio.com/2010-04-01"

// WhatsAppConfig holds credentials for a Twilio-compatible messaging API.
type WhatsAppConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string // E.164 number registered for WhatsApp
	MaxRetries uint64
	RetryBase  time.Duration
}

// WhatsAppSender delivers WhatsApp messages over a Twilio-compatible REST API.
type WhatsAppSender struct {
	cfg    WhatsAppConfig
	client *http.Client
}

// NewWhatsAppSender creates a WhatsApp sender. Missing credentials are a
// configuration error.
func NewWhatsAppSender(cfg WhatsAppConfig, client *http.Client) (*WhatsAppSender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, fmt.Errorf("whatsapp: %w", ErrProviderNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultWhatsAppBaseURL
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WhatsAppSender{cfg: cfg, client: client}, nil
}

type twilioMessage struct {
	SID     string `json:"sid"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send implements Sender. 429 and 5xx responses are retried with backoff;
// other 4xx responses are permanent rejections.
func (s *WhatsAppSender) Send(ctx context.Context, msg Message) (string, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json",
		strings.TrimRight(s.cfg.BaseURL, "/"), url.PathEscape(s.cfg.AccountSID))
	body := msg.Body
	if msg.Title != "" {
		body = "*" + msg.Title + "*\n" + body
	}
	form := url.Values{
		"From": {"whatsapp:" + s.cfg.From},
		"To":   {"whatsapp:" + msg.To},
		"Body": {body},
	}

	backoff := retry.WithMaxRetries(s.cfg.MaxRetries, retry.NewExponential(s.cfg.RetryBase))

	var sid string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("whatsapp request: %w", err))
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("whatsapp response: %w", err))
		}

		var out twilioMessage
		_ = json.Unmarshal(raw, &out)

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("whatsapp provider returned %d", resp.StatusCode))
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return fmt.Errorf("whatsapp credentials rejected (%d): %w", resp.StatusCode, ErrProviderNotConfigured)
		case resp.StatusCode >= 400:
			return fmt.Errorf("whatsapp %d %s: %w", resp.StatusCode, out.Message, ErrProviderRejected)
		}
		if out.SID == "" {
			return fmt.Errorf("whatsapp response missing message sid")
		}
		sid = out.SID
		return nil
	})
	if err != nil {
		return "", err
	}
	return sid, nil
}
