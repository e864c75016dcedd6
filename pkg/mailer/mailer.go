// Package mailer delivers transactional email through the Resend HTTP API.
package mailer

import (
	"context"
	"errors"
)

var (
	// ErrDeliveryFailed wraps every delivery failure
	ErrDeliveryFailed = errors.New("email delivery failed")

	// ErrNotConfigured is returned when no provider key is set
	ErrNotConfigured = errors.New("email service not configured")
)

// Message is one outbound email
type Message struct {
	To      []string
	Subject string
	HTML    string
	CC      []string
	BCC     []string
	ReplyTo string
	// Tag labels the message for metrics (e.g. "verification")
	Tag string
}

// SendResult is the provider's acknowledgement
type SendResult struct {
	ID string
}

// Sender delivers messages
type Sender interface {
	Send(ctx context.Context, msg Message) (*SendResult, error)
}

// DisabledSender fails every delivery with ErrNotConfigured. Callers then
// leave their "sent" flags unset so a later run can retry.
type DisabledSender struct{}

func (DisabledSender) Send(context.Context, Message) (*SendResult, error) {
	return nil, errors.Join(ErrDeliveryFailed, ErrNotConfigured)
}

var _ Sender = DisabledSender{}
