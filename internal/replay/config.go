// Package replay signs sample Stripe Connect events and posts them to a
// running service.
package replay

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// WebhookPath is where the service receives Connect events.
const WebhookPath = "/webhooks/connect/index-connect-data"

var (
	ErrInvalidConfig = errors.New("invalid replay config")
	ErrWaitTimeout   = errors.New("wait timed out")
)

// Config holds one replay run.
type Config struct {
	BaseURL     string        // service base url
	Secret      string        // webhook signing secret
	Account     string        // connected account the events belong to
	Type        string        // event type to generate
	Count       int           // distinct events
	Repeat      int           // deliveries per event; >1 exercises deduplication
	Concurrency int           // concurrent senders
	Timeout     time.Duration // per request

	Wait         time.Duration // 0 disables polling after the run
	PollInterval time.Duration
	JWTSecret    string // enables the payout count check
	JWTIssuer    string
}

// Validate checks c and fills defaults.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("%w: url: %v", ErrInvalidConfig, err)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.Account, "acct_") {
		return fmt.Errorf("%w: account must be an acct_ id", ErrInvalidConfig)
	}
	if !Supported(c.Type) {
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidConfig, c.Type)
	}
	if c.Count <= 0 {
		return fmt.Errorf("%w: count must be positive", ErrInvalidConfig)
	}
	if c.Repeat <= 0 {
		c.Repeat = 1
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.JWTIssuer == "" {
		c.JWTIssuer = "stripe-connect"
	}
	return nil
}

// Stats counts delivery outcomes.
type Stats struct {
	Sent         int
	Accepted     int
	Duplicate    int
	Backpressure int
	Rejected     int
	Duration     time.Duration
}
