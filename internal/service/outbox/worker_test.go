package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

func newWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, opts ...Option) *Worker {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)

	base := []Option{
		WithLogger(logger.WithField("component", "outbox-worker-test")),
		WithMetrics(metrics.NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	}
	return NewWorker(repo, publisher, append(base, opts...)...)
}

func enqueueDeskEvent(t *testing.T, repo *memory.OutboxRepository, deskID, eventType string) domain.OutboxMessage {
	t.Helper()

	msg, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "desk",
		AggregateID:   deskID,
		EventType:     eventType,
		Payload:       []byte(`{"desk_id":"` + deskID + `"}`),
	})
	require.NoError(t, err)
	return msg
}

func TestWorker_ProcessOnce_MarkSent(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	msg := enqueueDeskEvent(t, repo, "desk-1", domain.TimelineProductAdded)
	publisher := &stubPublisher{}

	newWorker(repo, publisher).ProcessOnce(context.Background())

	require.Equal(t, 1, publisher.calls())
	require.Equal(t, []string{msg.ID}, publisher.publishedIDs())
	require.Empty(t, repo.AllPending())
}

func TestWorker_ProcessOnce_PublishesInEnqueueOrder(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	first := enqueueDeskEvent(t, repo, "desk-1", domain.TimelineDeskOpened)
	second := enqueueDeskEvent(t, repo, "desk-1", domain.TimelineProductAdded)
	third := enqueueDeskEvent(t, repo, "desk-1", domain.TimelineCommandUndone)
	publisher := &stubPublisher{}

	newWorker(repo, publisher, WithBatchSize(2)).ProcessOnce(context.Background())
	require.Equal(t, []string{first.ID, second.ID}, publisher.publishedIDs())

	stats, err := repo.Stats()
	require.NoError(t, err)
	require.Equal(t, 1, stats.PendingCount)

	newWorker(repo, publisher, WithBatchSize(2)).ProcessOnce(context.Background())
	require.Equal(t, []string{first.ID, second.ID, third.ID}, publisher.publishedIDs())
}

func TestWorker_ProcessOnce_MarkFailedAndDLQAfterRetries(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	msg := enqueueDeskEvent(t, repo, "desk-2", domain.TimelineSnapshotRestored)
	publisher := &stubPublisher{err: errors.New("broker unavailable")}
	dlqPublisher := &stubPublisher{}

	newWorker(repo, publisher, WithDLQPublisher(dlqPublisher)).ProcessOnce(context.Background())

	require.Equal(t, 3, publisher.calls())
	require.Empty(t, repo.AllPending())
	require.Equal(t, 1, dlqPublisher.calls())

	dlqEvent := dlqPublisher.last()
	require.Equal(t, msg.ID, dlqEvent.ID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(dlqEvent.Payload, &payload))
	require.Equal(t, "desk-2", payload["aggregate_id"])
	require.Equal(t, "desk-2", payload["desk_id"])
	require.Equal(t, domain.TimelineSnapshotRestored, payload["event_type"])
	require.Equal(t, map[string]any{"desk_id": "desk-2"}, payload["payload"])
	require.Contains(t, payload["publish_error"], "broker unavailable")
}

func TestWorker_ProcessOnce_CancelDuringRetryKeepsEventPending(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	enqueueDeskEvent(t, repo, "desk-5", domain.TimelineMacroSaved)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	publisher := &stubPublisher{err: errors.New("broker unavailable"), onPublish: cancel}
	dlqPublisher := &stubPublisher{}

	newWorker(repo, publisher, WithDLQPublisher(dlqPublisher), WithRetryBaseDelay(time.Second)).ProcessOnce(ctx)

	require.Equal(t, 1, publisher.calls())
	require.Zero(t, dlqPublisher.calls())
	require.Len(t, repo.AllPending(), 1)
}

func TestWorker_ProcessOnce_SuccessAfterRetry(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	enqueueDeskEvent(t, repo, "desk-3", domain.TimelineCommandRedone)
	publisher := &stubPublisher{
		sequenceErrors: []error{
			errors.New("attempt 1"),
			errors.New("attempt 2"),
			nil,
		},
	}

	newWorker(repo, publisher).ProcessOnce(context.Background())

	require.Equal(t, 3, publisher.calls())
	require.Empty(t, repo.AllPending())
}

func TestWorker_ProcessOnce_CanceledContext(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	enqueueDeskEvent(t, repo, "desk-4", domain.TimelineDeskOpened)
	publisher := &stubPublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	newWorker(repo, publisher).ProcessOnce(ctx)

	require.Zero(t, publisher.calls())
	require.Len(t, repo.AllPending(), 1)
}

func TestWorker_RetryBackoff(t *testing.T) {
	t.Parallel()

	w := newWorker(memory.NewOutboxRepository(), &stubPublisher{}, WithRetryBaseDelay(10*time.Millisecond))

	require.Equal(t, 10*time.Millisecond, w.retryBackoff(1))
	require.Equal(t, 20*time.Millisecond, w.retryBackoff(2))
	require.Equal(t, 40*time.Millisecond, w.retryBackoff(3))
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	worker := newWorker(memory.NewOutboxRepository(), &stubPublisher{}, WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func TestWorker_Run_DisabledWithoutPublisher(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		newWorker(memory.NewOutboxRepository(), nil).Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker without publisher should return immediately")
	}
}

type stubPublisher struct {
	mu             sync.Mutex
	err            error
	sequenceErrors []error
	published      []domain.OutboxMessage
	callCount      int
	onPublish      func()
}

func (s *stubPublisher) Publish(event domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	if s.onPublish != nil {
		s.onPublish()
	}
	err := s.err
	if len(s.sequenceErrors) > 0 {
		err = s.sequenceErrors[0]
		s.sequenceErrors = s.sequenceErrors[1:]
	}
	if err == nil {
		s.published = append(s.published, event)
	}
	return err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

func (s *stubPublisher) publishedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.published))
	for _, event := range s.published {
		ids = append(ids, event.ID)
	}
	return ids
}

func (s *stubPublisher) last() domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published[len(s.published)-1]
}

var _ domain.OutboxPublisher = (*stubPublisher)(nil)
