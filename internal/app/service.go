// Package service implements the Connect onboarding operations behind the
// HTTP API: account and person management, KYC staging and submission,
// payout listing and webhook indexing.
package service

import (
	"context"
	"runtime"
	"sync"

	eventqueue "github.com/okian/stripe-connect/internal/adapters/mq/queue"
	workerpool "github.com/okian/stripe-connect/internal/adapters/mq/worker"
	"github.com/okian/stripe-connect/internal/adapters/storage"
	"github.com/okian/stripe-connect/internal/adapters/stripeapi"
	"github.com/okian/stripe-connect/internal/domain/dedupe"
	"github.com/okian/stripe-connect/internal/domain/model"
	"github.com/okian/stripe-connect/pkg/logger"
	"github.com/okian/stripe-connect/pkg/metrics"
)

// Stripe is the subset of the Stripe API the service calls.
type Stripe interface {
	CreateAccount(ctx context.Context, accountID, businessType, country string) (model.StripeAccount, error)
	GetAccount(ctx context.Context, stripeID string) (model.StripeAccount, error)
	UpdateAccount(ctx context.Context, stripeID string, u stripeapi.Update) (model.StripeAccount, error)
	DeleteAccount(ctx context.Context, stripeID string) error
	RejectAccount(ctx context.Context, stripeID, reason string) (model.StripeAccount, error)

	CreatePerson(ctx context.Context, stripeID, role string, u stripeapi.Update) (model.Person, error)
	GetPerson(ctx context.Context, stripeID, personID string) (model.Person, error)
	UpdatePerson(ctx context.Context, stripeID, personID string, u stripeapi.Update) (model.Person, error)
	DeletePerson(ctx context.Context, stripeID, personID string) error
	ListPersons(ctx context.Context, stripeID, role string) ([]model.Person, error)

	GetPayout(ctx context.Context, stripeID, payoutID string) (model.Payout, error)
	ListPayouts(ctx context.Context, stripeID string, limit int) ([]model.Payout, error)

	GetCountrySpec(ctx context.Context, country string) (model.CountrySpec, error)
	ListCountrySpecs(ctx context.Context) ([]model.CountrySpec, error)

	ConstructEvent(payload []byte, signature string) (model.Event, error)
}

var _ Stripe = (*stripeapi.Client)(nil)

// Service implements the API dependencies for Connect onboarding.
type Service struct {
	mu sync.RWMutex

	stripe  Stripe
	store   storage.Backend
	deduper dedupe.Deduper
	queue   eventqueue.Queue
	pool    *workerpool.Pool

	workerCount int
	queueSize   int
	dedupeSize  int

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of webhook dispatch workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the webhook queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many webhook event ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service on a Stripe client and a storage backend.
func New(stripe Stripe, store storage.Backend, opts ...Option) *Service {
	s := &Service{
		stripe:      stripe,
		store:       store,
		workerCount: runtime.NumCPU(),
		queueSize:   10000,
		dedupeSize:  50000,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	return s
}

// Start starts the webhook dispatch workers. They outlive ctx and run
// until Stop drains the queue.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s, workerpool.WithLogger(s.logger.Named("worker")))
	s.pool.Start(context.WithoutCancel(ctx))
	s.started = true
	s.logger.Info(ctx, "connect service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the webhook queue and stops the workers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping connect service...")
	err := s.pool.Shutdown(ctx)
	s.started = false
	s.logger.Info(ctx, "connect service stopped")
	return err
}

// Stats returns service statistics for health reporting.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	queueLen := s.queue.Len(ctx)
	metrics.UpdateWebhookQueueSize(queueLen)
	return map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"queueLength": queueLen,
		"dedupeSize":  s.deduper.Size(),
	}
}
