package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
)

type fakeRepo struct {
	mu     sync.Mutex
	events map[string]*OutboxEvent
	order  []string
}

func newFakeRepo(events ...*OutboxEvent) *fakeRepo {
	r := &fakeRepo{events: make(map[string]*OutboxEvent)}
	for _, e := range events {
		r.events[e.ID] = e
		r.order = append(r.order, e.ID)
	}
	return r
}

func (r *fakeRepo) FindUnpublished(_ context.Context, limit int) ([]*OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*OutboxEvent
	for _, id := range r.order {
		if e := r.events[id]; e.ShouldRetry() && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeRepo) MarkPublished(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.events[id].PublishedAt = &now
	return nil
}

func (r *fakeRepo) IncrementRetry(_ context.Context, id, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[id].RetryCount++
	r.events[id].LastError = msg
	return nil
}

func (r *fakeRepo) DeletePublished(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeProducer struct {
	fail   map[string]bool
	topics []string
}

func (p *fakeProducer) PublishEvent(_ context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	if p.fail[event.Subject] {
		return errors.New("broker unavailable")
	}
	p.topics = append(p.topics, topic)
	return nil
}

func newEvent(t *testing.T, subject string) *OutboxEvent {
	t.Helper()
	ce := cloudevents.NewEventFactory(cloudevents.SourceReconciliation).
		CreateEvent(context.Background(), cloudevents.PickRecorded, subject, map[string]int{"quantity": 1})
	e, err := NewOutboxEventFromCloudEvent("A-1", "SizeBucket", "wms.reconciliation.events", ce)
	require.NoError(t, err)
	return e
}

func TestPublisher_ProcessOnce(t *testing.T) {
	ok := newEvent(t, "assignment/A-1/size/M")
	bad := newEvent(t, "assignment/A-1/size/L")
	repo := newFakeRepo(ok, bad)
	producer := &fakeProducer{fail: map[string]bool{"assignment/A-1/size/L": true}}

	p := NewPublisher(repo, producer, logging.NewNop(), nil, nil)
	p.ProcessOnce(context.Background())

	assert.True(t, ok.IsPublished())
	assert.False(t, bad.IsPublished())
	assert.Equal(t, 1, bad.RetryCount)
	assert.Equal(t, "failed to publish to Kafka: broker unavailable", bad.LastError)
	assert.Equal(t, []string{"wms.reconciliation.events"}, producer.topics)
	assert.Equal(t, map[string]int{"published": 1, "failed": 1}, p.Stats())
}

func TestPublisher_StopsRetryingAfterMax(t *testing.T) {
	bad := newEvent(t, "assignment/A-1/size/L")
	bad.MaxRetries = 2
	repo := newFakeRepo(bad)
	producer := &fakeProducer{fail: map[string]bool{"assignment/A-1/size/L": true}}
	p := NewPublisher(repo, producer, logging.NewNop(), nil, nil)

	for i := 0; i < 5; i++ {
		p.ProcessOnce(context.Background())
	}

	assert.Equal(t, 2, bad.RetryCount)
	assert.False(t, bad.ShouldRetry())
}

func TestPublisher_StartStop(t *testing.T) {
	repo := newFakeRepo(newEvent(t, "assignment/A-1/size/M"))
	p := NewPublisher(repo, &fakeProducer{}, logging.NewNop(), nil, &PublisherConfig{PollInterval: 10 * time.Millisecond, BatchSize: 10})

	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))

	assert.Eventually(t, func() bool { return p.Stats()["published"] == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, p.Stop())
	assert.Error(t, p.Stop())
}
