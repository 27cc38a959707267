// Package notify wraps the Twilio API for caregiver text alerts in CareWatch.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier delivers route messages to a caregiver contact.
type Notifier interface {
	SendAlert(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the Twilio notifier.
type Opts struct {
	AccountSID string
	AuthToken  string
	From       string
}

// Option defines a configuration option for the Twilio notifier.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFrom sets the sender number.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// Client wraps the Twilio REST API for SMS alerts.
type Client struct {
	client *twilio.RestClient
	from   string
}

// NewClient builds a Twilio-backed notifier. Credentials fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER environment
// variables.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &Client{client: client, from: cfg.From}, nil
}

// SendAlert sends one text message through the Twilio API.
func (c *Client) SendAlert(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetBody(body)

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendAlert failed", "to", to, "error", err)
		return fmt.Errorf("failed to send alert to %s: %w", to, err)
	}

	slog.Debug("Twilio alert sent", "to", to)
	return nil
}

// MockClient records alerts for tests.
type MockClient struct {
	SentAlerts []SentAlert
}

// SentAlert is one recorded alert.
type SentAlert struct {
	To   string
	Body string
}

// NewMockClient creates an empty mock notifier.
func NewMockClient() *MockClient {
	return &MockClient{SentAlerts: []SentAlert{}}
}

// SendAlert records the alert without any network call.
func (m *MockClient) SendAlert(ctx context.Context, to string, body string) error {
	m.SentAlerts = append(m.SentAlerts, SentAlert{To: to, Body: body})
	return nil
}
