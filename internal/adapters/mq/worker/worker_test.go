package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/stripe-connect/internal/adapters/mq/queue"
	worker "github.com/okian/stripe-connect/internal/adapters/mq/worker"
	model "github.com/okian/stripe-connect/internal/domain/model"
	logging "github.com/okian/stripe-connect/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type recordingHandler struct {
	mu   sync.Mutex
	seen []string
	fail map[string]bool
}

func (h *recordingHandler) Dispatch(ctx context.Context, e model.Event) (string, error) { //nolint:gocritic // hugeParam
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, e.ID)
	if e.Type == "panic" {
		panic("boom")
	}
	if h.fail[e.ID] {
		return "", errors.New("index write failed")
	}
	if e.Type == "customer.created" {
		return worker.OutcomeIgnored, nil
	}
	return worker.OutcomeProcessed, nil
}

func (h *recordingHandler) ids() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string{}, h.seen...)
}

func TestPool(t *testing.T) {
	_ = logging.InitWithWriter("text", discard{})

	convey.Convey("Given a pool of workers on a queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		h := &recordingHandler{fail: map[string]bool{"evt_bad": true}}
		pool := worker.NewPool(3, q, h, worker.WithLogger(logging.Nop()))
		pool.Start(ctx)

		convey.Convey("When events are queued and the pool shuts down", func() {
			for _, e := range []model.Event{
				{ID: "evt_1", Type: "payout.paid"},
				{ID: "evt_bad", Type: "payout.failed"},
				{ID: "evt_2", Type: "customer.created"},
				{ID: "evt_3", Type: "panic"},
				{ID: "evt_4", Type: "account.updated"},
			} {
				convey.So(q.Enqueue(ctx, e), convey.ShouldBeTrue)
			}
			sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			err := pool.Shutdown(sctx)

			convey.Convey("Then every event was dispatched, failures and panics included", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pool.Size(), convey.ShouldEqual, 3)
				convey.So(h.ids(), convey.ShouldHaveLength, 5)
				convey.So(h.ids(), convey.ShouldContain, "evt_4")
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestPoolOutlivesContext(t *testing.T) {
	convey.Convey("Given a pool started on a context that is then cancelled", t, func() {
		ctx, cancelRun := context.WithCancel(context.Background())
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		h := &recordingHandler{}
		pool := worker.NewPool(2, q, h, worker.WithLogger(logging.Nop()))
		pool.Start(ctx)
		cancelRun()

		for _, id := range []string{"evt_a", "evt_b", "evt_c"} {
			convey.So(q.Enqueue(context.Background(), model.Event{ID: id, Type: "payout.paid"}), convey.ShouldBeTrue)
		}
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		convey.So(pool.Shutdown(sctx), convey.ShouldBeNil)
		convey.So(h.ids(), convey.ShouldHaveLength, 3)
	})
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
