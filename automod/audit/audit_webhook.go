package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type webhookEnvelope struct {
	Type       string           `json:"type"`
	Violation  *ViolationEntry  `json:"violation,omitempty"`
	Decision   *DecisionEntry   `json:"decision,omitempty"`
	Transition *TransitionEntry `json:"transition,omitempty"`
}

// WebhookNotifier POSTs audit records to an operator webhook. Records are
// queued to an internal worker; when the queue is full they are dropped
// (with a log line), never blocking the caller.
type WebhookNotifier struct {
	URL    string
	Logger *slog.Logger
	client *http.Client
	queue  chan webhookEnvelope
}

var _ Notifier = (*WebhookNotifier)(nil)

func NewWebhookNotifier(url string, logger *slog.Logger) *WebhookNotifier {
	n := &WebhookNotifier{
		URL:    url,
		Logger: logger.With("system", "audit-webhook"),
		client: &http.Client{Timeout: 10 * time.Second},
		queue:  make(chan webhookEnvelope, 1024),
	}
	go n.run()
	return n
}

func (n *WebhookNotifier) run() {
	for env := range n.queue {
		raw, err := json.Marshal(env)
		if err != nil {
			n.Logger.Error("serializing audit record", "err", err)
			continue
		}
		resp, err := n.client.Post(n.URL, "application/json", bytes.NewReader(raw))
		if err != nil {
			n.Logger.Error("posting audit record", "err", err)
			continue
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			n.Logger.Error("posting audit record", "err", fmt.Errorf("status %d", resp.StatusCode))
		}
		resp.Body.Close()
	}
}

func (n *WebhookNotifier) enqueue(env webhookEnvelope) {
	select {
	case n.queue <- env:
	default:
		n.Logger.Warn("audit webhook queue full, dropping record", "type", env.Type)
	}
}

func (n *WebhookNotifier) Violation(ctx context.Context, e ViolationEntry) {
	n.enqueue(webhookEnvelope{Type: "violation", Violation: &e})
}

func (n *WebhookNotifier) Decision(ctx context.Context, e DecisionEntry) {
	n.enqueue(webhookEnvelope{Type: "decision", Decision: &e})
}

func (n *WebhookNotifier) Transition(ctx context.Context, e TransitionEntry) {
	n.enqueue(webhookEnvelope{Type: "transition", Transition: &e})
}
