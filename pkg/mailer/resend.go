package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fundopatronos/carreiras-api/pkg/circuitbreaker"
	"github.com/fundopatronos/carreiras-api/pkg/httpclient"
	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"github.com/fundopatronos/carreiras-api/pkg/metrics"
	"github.com/fundopatronos/carreiras-api/pkg/retry"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const defaultResendURL = "https://api.resend.com/emails"

// ResendConfig configures the Resend client
type ResendConfig struct {
	APIKey      string
	APIURL      string
	FromAddress string
	// DefaultCC and DefaultBCC are added to every message that sets none
	DefaultCC  []string
	DefaultBCC []string
}

// ResendClient sends email via Resend with retry and a circuit breaker
type ResendClient struct {
	cfg        ResendConfig
	httpClient httpclient.Client
	breaker    *gobreaker.CircuitBreaker
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	CC      []string `json:"cc,omitempty"`
	BCC     []string `json:"bcc,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Name    string `json:"name"`
}

// providerError is a non-2xx answer from the provider
type providerError struct {
	status  int
	message string
}

func (e *providerError) Error() string {
	return fmt.Sprintf("resend returned %d: %s", e.status, e.message)
}

// temporary reports whether retrying could help
func (e *providerError) temporary() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

func isTemporary(err error) bool {
	var pe *providerError
	if errors.As(err, &pe) {
		return pe.temporary()
	}
	return !circuitbreaker.IsRejected(err)
}

// NewResendClient creates a Resend client
func NewResendClient(cfg ResendConfig, httpClient httpclient.Client) *ResendClient {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultResendURL
	}

	breakerCfg := circuitbreaker.DefaultConfig("resend")
	breakerCfg.IsSuccessful = func(err error) bool {
		var pe *providerError
		return err == nil || (errors.As(err, &pe) && !pe.temporary())
	}

	return &ResendClient{
		cfg:        cfg,
		httpClient: httpClient,
		breaker:    circuitbreaker.NewCircuitBreaker(breakerCfg),
	}
}

// Send delivers msg. Every failure wraps ErrDeliveryFailed.
func (c *ResendClient) Send(ctx context.Context, msg Message) (*SendResult, error) {
	start := time.Now()
	tag := msg.Tag
	if tag == "" {
		tag = "generic"
	}

	if len(msg.To) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrDeliveryFailed)
	}

	body := resendRequest{
		From:    c.cfg.FromAddress,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		CC:      msg.CC,
		BCC:     msg.BCC,
		ReplyTo: msg.ReplyTo,
	}
	if len(body.CC) == 0 {
		body.CC = c.cfg.DefaultCC
	}
	if len(body.BCC) == 0 {
		body.BCC = c.cfg.DefaultBCC
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	id, err := retry.DoWithResult(ctx, retry.EmailConfig(isTemporary), "resend_send", func() (string, error) {
		return circuitbreaker.Execute(c.breaker, func() (string, error) {
			return c.post(ctx, payload)
		})
	})

	duration := metrics.MeasureDuration(start)
	if err != nil {
		metrics.EmailDeliveryDuration.WithLabelValues(tag, "error").Observe(duration)
		metrics.EmailDeliveryTotal.WithLabelValues(tag, "error").Inc()
		logger.LogAPICall("resend", "send", "error", duration,
			zap.String("template", tag),
			zap.Int("recipients", len(msg.To)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	metrics.EmailDeliveryDuration.WithLabelValues(tag, "success").Observe(duration)
	metrics.EmailDeliveryTotal.WithLabelValues(tag, "success").Inc()
	logger.LogAPICall("resend", "send", "success", duration,
		zap.String("template", tag),
		zap.String("message_id", id))

	return &SendResult{ID: id}, nil
}

func (c *ResendClient) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("failed to read provider response: %w", err)
	}

	var decoded resendResponse
	_ = json.Unmarshal(raw, &decoded) //nolint:errcheck // error bodies are not always JSON

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := decoded.Message
		if message == "" {
			message = strings.TrimSpace(string(raw))
		}
		return "", &providerError{status: resp.StatusCode, message: message}
	}

	return decoded.ID, nil
}

var _ Sender = (*ResendClient)(nil)
