// Package stripeapi wraps the Stripe Connect endpoints the service uses and
// converts Stripe objects into domain models.
package stripeapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/okian/stripe-connect/internal/domain/model"
	"github.com/okian/stripe-connect/pkg/logger"
	"github.com/okian/stripe-connect/pkg/metrics"
)

// Client calls Stripe on behalf of the platform account.
type Client struct {
	api           *client.API
	webhookSecret string
	log           logger.Logger

	mu        sync.RWMutex
	specs     map[string]model.CountrySpec
	specsList []model.CountrySpec
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	backends          *stripe.Backends
	maxNetworkRetries int64
	logger            logger.Logger
}

// WithBackends replaces the HTTP backends, used by tests.
func WithBackends(b *stripe.Backends) Option {
	return func(o *clientOptions) {
		o.backends = b
	}
}

// WithMaxNetworkRetries sets how often stripe-go retries failed requests.
func WithMaxNetworkRetries(n int) Option {
	return func(o *clientOptions) {
		if n >= 0 {
			o.maxNetworkRetries = int64(n)
		}
	}
}

// WithLogger sets the logger; defaults to the global one.
func WithLogger(l logger.Logger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// New constructs a Client for secretKey. webhookSecret verifies incoming events.
func New(secretKey, webhookSecret string, opts ...Option) *Client {
	o := clientOptions{maxNetworkRetries: 2}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get()
	}
	backends := o.backends
	if backends == nil {
		cfg := &stripe.BackendConfig{
			MaxNetworkRetries: stripe.Int64(o.maxNetworkRetries),
			LeveledLogger:     &leveledLogger{log: o.logger.Named("stripe-go")},
		}
		backends = &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
		}
	}
	return &Client{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
		log:           o.logger.Named("stripe"),
		specs:         make(map[string]model.CountrySpec),
	}
}

// observe records the outcome and latency of one Stripe call.
func (c *Client) observe(ctx context.Context, operation string, start time.Time, err error) {
	ms := float64(time.Since(start).Microseconds()) / 1000
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordStripeCall(operation, outcome, ms)
	if err != nil {
		c.log.Debug(ctx, "stripe call failed", logger.String("operation", operation), logger.Float64("ms", ms), logger.Error(err))
		return
	}
	c.log.Debug(ctx, "stripe call", logger.String("operation", operation), logger.Float64("ms", ms))
}

// write prepares params for a mutating call.
func write(ctx context.Context, p *stripe.Params) {
	p.Context = ctx
	p.SetIdempotencyKey(uuid.NewString())
}

// leveledLogger routes stripe-go's own logging into the service logger.
type leveledLogger struct {
	log logger.Logger
}

func (l *leveledLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Infof(format string, v ...interface{}) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn(context.Background(), fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Errorf(format string, v ...interface{}) {
	l.log.Error(context.Background(), fmt.Sprintf(format, v...))
}
