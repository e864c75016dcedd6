// Package events publishes analytics events about identity lifecycle and
// feedback collection. Publication is best effort: a failure is logged and
// counted, never returned to the user-facing operation.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event names
const (
	IdentityRegistered     = "identity_registered"
	IdentityApproved       = "identity_approved"
	IdentityRejected       = "identity_rejected"
	IdentityConfirmed      = "identity_confirmed"
	VerificationResent     = "verification_resent"
	PasswordResetRequested = "password_reset_requested"
	PasswordResetCompleted = "password_reset_completed"
	FeedbackRequestsSent   = "feedback_requests_sent"
	FeedbackSubmitted      = "feedback_submitted"
	FeedbackBatchProcessed = "feedback_batch_processed"
)

// Event is a single analytics record
type Event struct {
	ID         string         `json:"id"`
	Name       string         `json:"event"`
	SubjectID  string         `json:"subject_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

// New builds an event with a fresh id and the current time
func New(name, subjectID string, props map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Name:       name,
		SubjectID:  subjectID,
		OccurredAt: time.Now().UTC(),
		Properties: props,
	}
}

func (e Event) encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to an analytics sink
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}

var _ Publisher = NoopPublisher{}
