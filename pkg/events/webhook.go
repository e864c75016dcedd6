package events

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/fundopatronos/carreiras-api/pkg/httpclient"
	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"github.com/fundopatronos/carreiras-api/pkg/metrics"
	"go.uber.org/zap"
)

// WebhookPublisher POSTs each event as JSON to a URL in the background.
// Failures are logged and never block the caller.
type WebhookPublisher struct {
	url        string
	httpClient httpclient.Client
	wg         sync.WaitGroup
}

// NewWebhookPublisher creates a webhook publisher
func NewWebhookPublisher(url string, httpClient httpclient.Client) *WebhookPublisher {
	return &WebhookPublisher{url: url, httpClient: httpClient}
}

// Publish schedules delivery and returns immediately
func (p *WebhookPublisher) Publish(_ context.Context, event Event) error {
	if p.url == "" {
		return nil
	}

	payload, err := event.encode()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.deliver(event, payload)
	}()
	return nil
}

func (p *WebhookPublisher) deliver(event Event, payload []byte) {
	// Detached from the request context, which is usually done by now
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		logger.Error("Failed to build event webhook request", zap.Error(err), zap.String("event", event.Name))
		metrics.EventsPublished.WithLabelValues(event.Name, "error").Inc()
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		logger.Error("Failed to call event webhook",
			zap.Error(err),
			zap.String("event", event.Name),
			zap.String("event_id", event.ID))
		metrics.EventsPublished.WithLabelValues(event.Name, "error").Inc()
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		metrics.EventsPublished.WithLabelValues(event.Name, "success").Inc()
		return
	}

	logger.Warn("Event webhook returned non-success status",
		zap.String("event", event.Name),
		zap.String("event_id", event.ID),
		zap.Int("status_code", resp.StatusCode))
	metrics.EventsPublished.WithLabelValues(event.Name, "error").Inc()
}

// Close waits for in-flight deliveries
func (p *WebhookPublisher) Close() error {
	p.wg.Wait()
	return nil
}

var _ Publisher = (*WebhookPublisher)(nil)
