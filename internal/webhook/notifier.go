// Package webhook delivers decline alerts to the configured endpoints.
//
// Delivery happens off the request path; the caller runs Notify in a
// goroutine. Failed deliveries are logged and counted but not retried.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"payguard/risk-api/internal/domain"
	"payguard/risk-api/internal/metrics"
)

// EventHighRisk is the only event type emitted.
const EventHighRisk = "high_risk_transaction"

// Notifier posts alert payloads to a fixed list of URLs.
type Notifier struct {
	urls   []string
	client *http.Client
	logger *slog.Logger
}

// New creates a Notifier with a sensible default HTTP client timeout.
func New(urls []string, logger *slog.Logger) *Notifier {
	return &Notifier{
		urls: urls,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Enabled reports whether any endpoint is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.urls) > 0
}

// Notify sends the declined transaction to every endpoint and returns the
// joined delivery errors.
func (n *Notifier) Notify(ctx context.Context, tx *domain.AuditedTransaction) error {
	if !n.Enabled() {
		return nil
	}
	payload := domain.AlertPayload{
		Event:       EventHighRisk,
		TriggeredAt: time.Now().UTC(),
		Transaction: *tx,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	var errs []error
	for _, url := range n.urls {
		if err := n.send(ctx, url, body); err != nil {
			metrics.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
			n.logger.Warn("webhook: delivery failed", "url", url, "transaction_id", tx.TransactionID, "error", err)
			errs = append(errs, err)
			continue
		}
		metrics.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
		n.logger.Info("webhook: delivered",
			"url", url,
			"transaction_id", tx.TransactionID,
			"risk_score", tx.RiskScore,
		)
	}
	return errors.Join(errs...)
}

// send delivers a single webhook call.
func (n *Notifier) send(ctx context.Context, url string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-PayGuard-Event", EventHighRisk)

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s responded %d", url, resp.StatusCode)
	}
	return nil
}
