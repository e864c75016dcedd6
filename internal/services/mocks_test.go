package services_test

import (
	"context"
	"sync"

	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/pkg/events"
	"github.com/stretchr/testify/mock"
)

// MockNotifier is a mock implementation of services.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendVerification(ctx context.Context, to, name, token string) error {
	args := m.Called(ctx, to, name, token)
	return args.Error(0)
}

func (m *MockNotifier) SendApprovalConfirmation(ctx context.Context, to, name string) error {
	args := m.Called(ctx, to, name)
	return args.Error(0)
}

func (m *MockNotifier) SendPasswordReset(ctx context.Context, to, name, token string) error {
	args := m.Called(ctx, to, name, token)
	return args.Error(0)
}

func (m *MockNotifier) SendFeedbackRequest(ctx context.Context, req *models.FeedbackRequest, otherPartyName string) error {
	args := m.Called(ctx, req, otherPartyName)
	return args.Error(0)
}

// tokenArg returns the token passed to the n-th call of method
func (m *MockNotifier) tokenArg(method string, n int) string {
	var calls []mock.Call
	for _, c := range m.Calls {
		if c.Method == method {
			calls = append(calls, c)
		}
	}
	if n >= len(calls) {
		return ""
	}
	return calls[n].Arguments.String(3)
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Name)
	}
	return out
}
