package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fundopatronos/carreiras-api/pkg/httpclient"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	failures int
	messages []kafka.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failures > 0 {
		w.failures--
		return errors.New("leader not available")
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNew_AssignsIDAndTime(t *testing.T) {
	ev := New(IdentityApproved, "uid-1", map[string]any{"role": "mentor"})

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, IdentityApproved, ev.Name)
	assert.Equal(t, "uid-1", ev.SubjectID)
	assert.WithinDuration(t, time.Now().UTC(), ev.OccurredAt, time.Second)
	assert.NotEqual(t, ev.ID, New(IdentityApproved, "uid-1", nil).ID)
}

func TestKafkaPublisher_WritesKeyedMessage(t *testing.T) {
	w := &fakeWriter{failures: 1}
	p := NewKafkaPublisherWithWriter(w, time.Second)

	err := p.Publish(context.Background(), New(FeedbackSubmitted, "session-1_student", nil))
	require.NoError(t, err)

	require.Len(t, w.messages, 1)
	assert.Equal(t, "session-1_student", string(w.messages[0].Key))
	assert.Equal(t, "event", w.messages[0].Headers[0].Key)

	var decoded Event
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &decoded))
	assert.Equal(t, FeedbackSubmitted, decoded.Name)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher_RequiresBrokersAndTopic(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Topic: "analytics"})
	assert.Error(t, err)
}

func TestWebhookPublisher_PostsEvent(t *testing.T) {
	received := make(chan Event, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev Event
		_ = json.Unmarshal(body, &ev)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		received <- ev
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	p := NewWebhookPublisher(server.URL, httpclient.NewStandardClient())
	require.NoError(t, p.Publish(context.Background(), New(IdentityRejected, "uid-9", nil)))
	require.NoError(t, p.Close())

	select {
	case ev := <-received:
		assert.Equal(t, IdentityRejected, ev.Name)
		assert.Equal(t, "uid-9", ev.SubjectID)
	default:
		t.Fatal("webhook was not called")
	}
}

func TestWebhookPublisher_NoURLIsNoop(t *testing.T) {
	p := NewWebhookPublisher("", httpclient.NewStandardClient())
	assert.NoError(t, p.Publish(context.Background(), New(IdentityApproved, "uid", nil)))
	assert.NoError(t, p.Close())
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error {
	return f.err
}

func (f failingPublisher) Close() error {
	return nil
}

func TestFanout_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	f := Fanout{NoopPublisher{}, failingPublisher{err: boom}}

	err := f.Publish(context.Background(), New(IdentityApproved, "uid", nil))
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, f.Close())
}
