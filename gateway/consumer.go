package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tempestmod/tempest/automod/event"
)

// Frame is the wire envelope for one gateway event. Seq is a monotonically
// increasing cursor assigned by the gateway; consumers replay from their last
// persisted Seq after a restart.
type Frame struct {
	Seq   int64        `json:"seq"`
	Event *event.Event `json:"event"`
}

// Consumer reads the gateway event stream over a websocket and hands each
// event to the scheduler. It reconnects with backoff on stream errors.
type Consumer struct {
	Host      string
	Scheduler *Scheduler
	Logger    *slog.Logger

	lastSeq atomic.Int64
}

// LastSeq reports the sequence number of the most recently scheduled event,
// for cursor persistence. Returns 0 if nothing has been consumed yet.
func (c *Consumer) LastSeq() int64 {
	return c.lastSeq.Load()
}

// Run consumes the stream until ctx is cancelled. cursor is the sequence
// number to resume after; pass 0 to start from the live tail.
func (c *Consumer) Run(ctx context.Context, cursor int64) error {
	if cursor > 0 {
		c.lastSeq.Store(cursor)
	}

	var backoff time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.consumeOnce(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		backoff = backoff*2 + time.Second
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
		c.Logger.Warn("gateway stream failed, reconnecting", "err", err, "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context) error {
	u, err := url.Parse(c.Host)
	if err != nil {
		return fmt.Errorf("invalid gateway host: %w", err)
	}
	u.Path = "/v1/events"
	if seq := c.lastSeq.Load(); seq > 0 {
		u.RawQuery = "cursor=" + strconv.FormatInt(seq, 10)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), http.Header{
		"User-Agent": []string{"tempest"},
	})
	cancel()
	if err != nil {
		return fmt.Errorf("dialing gateway: %w", err)
	}
	defer conn.Close()
	c.Logger.Info("connected to gateway", "url", u.Redacted())

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading gateway frame: %w", err)
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			eventsDecodeErrors.Inc()
			c.Logger.Warn("skipping undecodable gateway frame", "err", err)
			continue
		}
		if frame.Event == nil {
			eventsDecodeErrors.Inc()
			continue
		}
		eventsReceived.WithLabelValues(string(frame.Event.Kind)).Inc()

		if err := c.Scheduler.AddWork(ctx, frame.Event); err != nil {
			return err
		}
		if frame.Seq > 0 {
			c.lastSeq.Store(frame.Seq)
		}
	}
}
