package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

type memStore struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (s *memStore) Contains(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	return s.seen[id], nil
}

func (s *memStore) Add(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	s.seen[id] = true
	return nil
}

func mustEventMessage(t *testing.T, offset int64, eventType string) kafka.Message {
	t.Helper()
	ev, err := NewEvent(eventType, "ord-1", "order", "order-service", map[string]string{"status": "shipped"})
	require.NoError(t, err)
	b, err := ev.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: "orders.status_changed", Offset: offset, Key: []byte("ord-1"), Value: b}
}

func runConsumer(t *testing.T, c *Consumer, r *fakeReader, wantCommits int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.committed) >= wantCommits
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.True(t, r.closed)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "storefront.cart.updated", Topic("cart", "updated"))
	assert.Equal(t, "storefront.dlq.orders.status_changed", DLQTopic("orders.status_changed"))
}

func TestNewEvent_Envelope(t *testing.T) {
	ev, err := NewEvent("cart.updated", "sess-1", "cart", "storefront", map[string]int{"total_items": 2})
	require.NoError(t, err)

	assert.Len(t, ev.EventID, 36)
	assert.Equal(t, 1, ev.Version)
	assert.WithinDuration(t, time.Now().UTC(), ev.Timestamp, 2*time.Second)
	assert.JSONEq(t, `{"total_items":2}`, string(ev.Data))

	ev.WithCorrelationID("corr-1").WithMetadata("session_id", "sess-1")
	raw, err := ev.Marshal()
	require.NoError(t, err)

	back, err := UnmarshalEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "corr-1", back.CorrelationID)
	assert.Equal(t, "sess-1", back.Metadata["session_id"])

	var data map[string]int
	require.NoError(t, back.UnmarshalData(&data))
	assert.Equal(t, 2, data["total_items"])
}

func TestNewEvent_UnserializablePayload(t *testing.T) {
	_, err := NewEvent("x", "a", "b", "c", make(chan int))
	require.Error(t, err)
}

func TestUnmarshalEvent_RejectsMissingType(t *testing.T) {
	_, err := UnmarshalEvent([]byte(`{"event_id":"1"}`))
	require.Error(t, err)

	_, err = UnmarshalEvent([]byte(`not json`))
	require.Error(t, err)
}

func TestHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: "existing", Value: []byte("v1")}}
	c := NewHeaderCarrier(&headers)

	assert.Equal(t, "v1", c.Get("existing"))
	assert.Empty(t, c.Get("missing"))

	c.Set("traceparent", "00-abc")
	c.Set("existing", "v2")

	assert.Equal(t, "v2", c.Get("existing"))
	assert.ElementsMatch(t, []string{"existing", "traceparent"}, c.Keys())
	assert.Len(t, headers, 2)
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: discardLogger()}

	ev, err := NewEvent("order.placed", "ord-9", "order", "storefront", map[string]string{"order_id": "ord-9"})
	require.NoError(t, err)
	ev.WithCorrelationID("corr-7")

	require.NoError(t, p.Publish(context.Background(), Topic("order", "placed"), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "storefront.order.placed", msg.Topic)
	assert.Equal(t, "ord-9", string(msg.Key))
	c := NewHeaderCarrier(&msg.Headers)
	assert.Equal(t, "order.placed", c.Get("event_type"))
	assert.Equal(t, "corr-7", c.Get("correlation_id"))
}

func TestProducer_PublishError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("leader not available")}, logger: discardLogger()}

	ev, err := NewEvent("cart.cleared", "sess-1", "cart", "storefront", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "t", ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	require.Error(t, PingBrokers(context.Background(), nil))
}

func TestConsumer_ProcessesAndCommits(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{mustEventMessage(t, 1, "order.status_changed"), mustEventMessage(t, 2, "order.status_changed")}}

	var mu sync.Mutex
	var handled []string
	c := newConsumer(r, "orders.status_changed", "storefront", func(_ context.Context, ev *Event) error {
		mu.Lock()
		handled = append(handled, ev.EventType)
		mu.Unlock()
		return nil
	}, nil, discardLogger())

	runConsumer(t, c, r, 2)
	assert.Equal(t, []int64{1, 2}, r.committed)
	assert.Len(t, handled, 2)
}

func TestConsumer_RetriesThenDeadLetters(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{mustEventMessage(t, 5, "order.status_changed")}}
	dlqWriter := &fakeWriter{}
	dlq := &DLQProducer{writer: dlqWriter, logger: discardLogger()}

	var attempts int
	c := newConsumer(r, "orders.status_changed", "storefront", func(context.Context, *Event) error {
		attempts++
		return errors.New("db down")
	}, dlq, discardLogger())
	c.backoff = time.Millisecond

	runConsumer(t, c, r, 1)

	assert.Equal(t, maxHandlerRetries, attempts)
	require.Len(t, dlqWriter.msgs, 1)
	msg := dlqWriter.msgs[0]
	assert.Equal(t, "storefront.dlq.orders.status_changed", msg.Topic)
	hc := NewHeaderCarrier(&msg.Headers)
	assert.Equal(t, "db down", hc.Get("dlq.error"))
	assert.Equal(t, "5", hc.Get("dlq.original_offset"))
	assert.Equal(t, "storefront", hc.Get("dlq.consumer_group"))
}

func TestConsumer_PoisonMessageGoesToDLQ(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Topic: "orders.status_changed", Offset: 3, Value: []byte("{garbage")}}}
	dlqWriter := &fakeWriter{}

	called := false
	c := newConsumer(r, "orders.status_changed", "storefront", func(context.Context, *Event) error {
		called = true
		return nil
	}, &DLQProducer{writer: dlqWriter, logger: discardLogger()}, discardLogger())

	runConsumer(t, c, r, 1)
	assert.False(t, called)
	assert.Len(t, dlqWriter.msgs, 1)
}

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store := &memStore{}
	calls := 0
	h := IdempotentHandler(store, "t", "g", func(context.Context, *Event) error {
		calls++
		return nil
	}, discardLogger())

	ev := &Event{EventID: "evt-1", EventType: "order.status_changed"}
	require.NoError(t, h(context.Background(), ev))
	require.NoError(t, h(context.Background(), ev))
	assert.Equal(t, 1, calls)
}

func TestIdempotentHandler_FailureIsNotRecorded(t *testing.T) {
	store := &memStore{}
	fail := true
	h := IdempotentHandler(store, "t", "g", func(context.Context, *Event) error {
		if fail {
			return errors.New("transient")
		}
		return nil
	}, discardLogger())

	ev := &Event{EventID: "evt-2", EventType: "x"}
	require.Error(t, h(context.Background(), ev))
	fail = false
	require.NoError(t, h(context.Background(), ev))
	assert.True(t, store.seen["evt-2"])
}

func TestIdempotentHandler_StoreOutageStillProcesses(t *testing.T) {
	calls := 0
	h := IdempotentHandler(&memStore{err: errors.New("redis down")}, "t", "g", func(context.Context, *Event) error {
		calls++
		return nil
	}, discardLogger())

	require.NoError(t, h(context.Background(), &Event{EventID: "evt-3", EventType: "x"}))
	assert.Equal(t, 1, calls)
}
