package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/okian/stripe-connect/internal/adapters/http/auth"
	"github.com/okian/stripe-connect/pkg/logger"
)

// Outcome of one delivery.
const (
	OutcomeAccepted     = "accepted"
	OutcomeDuplicate    = "duplicate"
	OutcomeBackpressure = "backpressure"
	OutcomeRejected     = "rejected"
)

// Runner posts signed events to a service.
type Runner struct {
	cfg    Config
	client *http.Client
	log    logger.Logger
	now    func() time.Time
}

// New returns a Runner for a validated cfg.
func New(cfg Config, log logger.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, log: log, now: time.Now}, nil
}

// Run generates, signs and posts the events, then waits when configured.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	start := r.now()
	events, err := Generate(r.cfg.Type, r.cfg.Account, r.cfg.Count, start)
	if err != nil {
		return Stats{}, fmt.Errorf("generate events: %w", err)
	}

	baseline := -1
	if r.waitForPayouts() {
		if baseline, err = r.payoutCount(ctx); err != nil {
			return Stats{}, fmt.Errorf("read payout count: %w", err)
		}
	}

	r.log.Info(ctx, "replaying events",
		logger.String("url", r.cfg.BaseURL),
		logger.String("type", r.cfg.Type),
		logger.Int("count", len(events)),
		logger.Int("repeat", r.cfg.Repeat),
		logger.Int("concurrency", r.cfg.Concurrency),
	)
	stats := r.send(ctx, events)
	stats.Duration = time.Since(start)

	r.log.Info(ctx, "replay finished",
		logger.Int("sent", stats.Sent),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("backpressure", stats.Backpressure),
		logger.Int("rejected", stats.Rejected),
		logger.Duration("duration", stats.Duration),
	)

	if r.cfg.Wait > 0 {
		if err := r.wait(ctx, baseline, stats.Accepted); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// send fans deliveries out to cfg.Concurrency workers.
func (r *Runner) send(ctx context.Context, events []Event) Stats {
	var accepted, duplicate, backpressure, rejected, sent int64
	jobs := make(chan Event, r.cfg.Concurrency*2)
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				atomic.AddInt64(&sent, 1)
				switch r.deliver(ctx, e) {
				case OutcomeAccepted:
					atomic.AddInt64(&accepted, 1)
				case OutcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				case OutcomeBackpressure:
					atomic.AddInt64(&backpressure, 1)
				default:
					atomic.AddInt64(&rejected, 1)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for rep := 0; rep < r.cfg.Repeat; rep++ {
			for _, e := range events {
				select {
				case <-ctx.Done():
					return
				case jobs <- e:
				}
			}
		}
	}()
	wg.Wait()

	return Stats{
		Sent:         int(sent),
		Accepted:     int(accepted),
		Duplicate:    int(duplicate),
		Backpressure: int(backpressure),
		Rejected:     int(rejected),
	}
}

// deliver signs and posts one event.
func (r *Runner) deliver(ctx context.Context, e Event) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   e.Payload,
		Secret:    r.cfg.Secret,
		Timestamp: r.now(),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+WebhookPath, bytes.NewReader(e.Payload))
	if err != nil {
		return OutcomeRejected
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Debug(ctx, "delivery failed", logger.String("event", e.ID), logger.Error(err))
		return OutcomeRejected
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return classify(resp.StatusCode)
}

func classify(status int) string {
	switch status {
	case http.StatusAccepted:
		return OutcomeAccepted
	case http.StatusOK:
		return OutcomeDuplicate
	case http.StatusTooManyRequests:
		return OutcomeBackpressure
	}
	return OutcomeRejected
}

func (r *Runner) waitForPayouts() bool {
	return r.cfg.Wait > 0 && r.cfg.JWTSecret != "" && strings.HasPrefix(r.cfg.Type, "payout.")
}

// wait polls until the webhook queue drains and, for payout events with an
// administrator token available, until every accepted payout is indexed.
func (r *Runner) wait(ctx context.Context, baseline, accepted int) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Wait)
	defer cancel()

	done := func(ctx context.Context) (bool, error) {
		n, err := r.queueLength(ctx)
		if err != nil || n > 0 {
			return false, err
		}
		if baseline < 0 {
			return true, nil
		}
		count, err := r.payoutCount(ctx)
		if err != nil {
			return false, err
		}
		return count >= baseline+accepted, nil
	}

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		ok, err := done(ctx)
		if ok {
			r.log.Info(ctx, "events processed")
			return nil
		}
		if err != nil {
			r.log.Debug(ctx, "poll failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return ErrWaitTimeout
		case <-ticker.C:
		}
	}
}

func (r *Runner) queueLength(ctx context.Context) (int, error) {
	body, err := r.get(ctx, "/healthz", "")
	if err != nil {
		return 0, err
	}
	var health struct {
		Service struct {
			QueueLength int `json:"queueLength"`
		} `json:"service"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return 0, err
	}
	return health.Service.QueueLength, nil
}

// payoutCount reads the administrator payout count.
func (r *Runner) payoutCount(ctx context.Context) (int, error) {
	token, err := auth.New(r.cfg.JWTSecret, r.cfg.JWTIssuer).Issue("connect-replay", true, time.Minute)
	if err != nil {
		return 0, err
	}
	body, err := r.get(ctx, "/api/administrator/connect/payouts-count", token)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(body)))
}

func (r *Runner) get(ctx context.Context, path, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return body, nil
}
