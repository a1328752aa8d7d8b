// Package gateway handles inbound event transport: a worker-pool scheduler
// which preserves arrival order per (community, actor) key while letting
// unrelated actors process fully concurrently.
package gateway

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tempestmod/tempest/automod/event"
)

// Scheduler runs event work on a fixed number of workers. Events sharing an
// ordering key are chained FIFO behind whichever worker currently owns the
// key; the sliding-window and escalation invariants depend on this.
type Scheduler struct {
	maxConcurrency int

	do func(context.Context, *event.Event) error

	feeder chan *consumerTask
	out    chan struct{}

	lk     sync.Mutex
	active map[string][]*consumerTask

	ident string

	// metrics
	itemsAdded     prometheus.Counter
	itemsProcessed prometheus.Counter
	workersActive  prometheus.Gauge

	log *slog.Logger
}

type consumerTask struct {
	key     string
	evt     *event.Event
	control string
}

func NewScheduler(maxC int, ident string, do func(context.Context, *event.Event) error) *Scheduler {
	s := &Scheduler{
		maxConcurrency: maxC,

		do: do,

		feeder: make(chan *consumerTask),
		active: make(map[string][]*consumerTask),
		out:    make(chan struct{}),

		ident: ident,

		itemsAdded:     workItemsAdded.WithLabelValues(ident),
		itemsProcessed: workItemsProcessed.WithLabelValues(ident),
		workersActive:  workersActive.WithLabelValues(ident),

		log: slog.Default().With("system", "gateway-scheduler"),
	}

	for i := 0; i < maxC; i++ {
		go s.worker()
	}
	s.workersActive.Set(float64(maxC))

	return s
}

func (s *Scheduler) Shutdown() {
	s.log.Info("shutting down gateway scheduler", "ident", s.ident)

	for i := 0; i < s.maxConcurrency; i++ {
		s.feeder <- &consumerTask{control: "stop"}
	}
	close(s.feeder)

	for i := 0; i < s.maxConcurrency; i++ {
		<-s.out
	}

	s.log.Info("gateway scheduler shutdown complete")
}

// AddWork enqueues one event. If another task with the same ordering key is
// in flight, the event is chained behind it instead of dispatched.
func (s *Scheduler) AddWork(ctx context.Context, evt *event.Event) error {
	s.itemsAdded.Inc()
	t := &consumerTask{
		key: evt.OrderingKey(),
		evt: evt,
	}
	s.lk.Lock()

	a, ok := s.active[t.key]
	if ok {
		s.active[t.key] = append(a, t)
		s.lk.Unlock()
		return nil
	}

	s.active[t.key] = []*consumerTask{}
	s.lk.Unlock()

	select {
	case s.feeder <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) worker() {
	for work := range s.feeder {
		for work != nil {
			if work.control == "stop" {
				s.out <- struct{}{}
				return
			}

			if err := s.do(context.TODO(), work.evt); err != nil {
				s.log.Error("event handler failed", "err", err, "key", work.key)
			}
			s.itemsProcessed.Inc()

			s.lk.Lock()
			rem, ok := s.active[work.key]
			if !ok {
				s.log.Error("should always have an 'active' entry if a worker is processing a job")
			}

			if len(rem) == 0 {
				delete(s.active, work.key)
				work = nil
			} else {
				work = rem[0]
				s.active[work.key] = rem[1:]
			}
			s.lk.Unlock()
		}
	}
}
