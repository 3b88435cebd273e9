// Package notify delivers trigger outcomes to external channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	triggerapp "gridflow/internal/trigger/application"
)

const defaultRequestTimeout = 5 * time.Second

// WebhookNotifier posts triggered-execution events to a webhook URL.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	logger  *log.Logger
	timeout time.Duration
}

// Option customizes the notifier.
type Option func(*WebhookNotifier)

// WithRequestTimeout overrides the per-request timeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *WebhookNotifier) {
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

// NewWebhookNotifier constructs a webhook notifier.
func NewWebhookNotifier(url string, logger *log.Logger, opts ...Option) (*WebhookNotifier, error) {
	if url == "" {
		return nil, errors.New("trigger notify: empty webhook url")
	}
	if logger == nil {
		logger = log.Default()
	}
	notifier := &WebhookNotifier{
		url:     url,
		client:  &http.Client{},
		logger:  logger,
		timeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(notifier)
	}
	return notifier, nil
}

type webhookPayload struct {
	ThresholdID string `json:"threshold_id"`
	WorkflowID  string `json:"workflow_id"`
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
	MetricField string `json:"metric_field"`
	Description string `json:"description,omitempty"`
}

// NotifyTriggered posts the outcome. Delivery failures are logged, never
// propagated; notification is best-effort.
func (n *WebhookNotifier) NotifyTriggered(ctx context.Context, outcome triggerapp.Outcome) {
	if outcome.Execution == nil {
		return
	}
	payload := webhookPayload{
		ThresholdID: outcome.Threshold.ID,
		WorkflowID:  outcome.Threshold.WorkflowID,
		ExecutionID: outcome.Execution.ID,
		Status:      string(outcome.Execution.Status),
		MetricField: outcome.Threshold.MetricField,
		Description: outcome.Threshold.Description,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Printf("trigger notify: marshal: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Printf("trigger notify: request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Printf("trigger notify: post: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		n.logger.Printf("trigger notify: webhook returned %s", resp.Status)
	}
}

var _ triggerapp.Notifier = (*WebhookNotifier)(nil)

// String describes the notifier target for logs.
func (n *WebhookNotifier) String() string {
	return fmt.Sprintf("webhook(%s)", n.url)
}
