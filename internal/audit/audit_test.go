package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-auth/internal/bucketing"
	"admin-auth/internal/models"
)

type memorySink struct {
	name   string
	err    error
	mu     sync.Mutex
	events []*models.SecurityEvent
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Write(ctx context.Context, e *models.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

type fakeProducer struct {
	key, value []byte
	headers    map[string]string
}

func (f *fakeProducer) ProduceMessage(ctx context.Context, key, value []byte, headers map[string]string) error {
	f.key, f.value, f.headers = key, value, headers
	return nil
}

type fakeIndexer struct {
	index, id string
	doc       interface{}
}

func (f *fakeIndexer) IndexDocument(ctx context.Context, index, id string, doc interface{}) error {
	f.index, f.id, f.doc = index, id, doc
	return nil
}

type fakeExecer struct {
	query string
	args  []interface{}
}

func (f *fakeExecer) Exec(ctx context.Context, query string, args ...interface{}) error {
	f.query, f.args = query, args
	return nil
}

func TestRecorder_FansOutAndMasks(t *testing.T) {
	ok := &memorySink{name: "ok"}
	broken := &memorySink{name: "broken", err: errors.New("down")}
	r := NewRecorder(bucketing.NewManager(16), ok, broken)
	r.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	ctx := WithRequest(context.Background(), "req-1", "10.0.0.1")
	r.Record(ctx, Entry{Type: models.EventOTPRejected, Identity: "alice@example.com", Reason: "invalid_credential"})
	require.NoError(t, r.Wait(context.Background()))

	require.Len(t, ok.events, 1)
	require.Len(t, broken.events, 1)

	e := ok.events[0]
	assert.Equal(t, models.EventOTPRejected, e.EventType)
	assert.Equal(t, "a***@example.com", e.Identity)
	assert.Equal(t, "invalid_credential", e.Reason)
	assert.Equal(t, "2026-03-01", e.EventDate)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "10.0.0.1", e.SourceIP)
	assert.NotEmpty(t, e.EventID)
	assert.Same(t, e, broken.events[0])
}

func TestRecorder_NoSinks(t *testing.T) {
	r := NewRecorder(bucketing.NewManager(1))
	assert.NotPanics(t, func() {
		r.Record(context.Background(), Entry{Type: models.EventOTPIssued, Identity: "a@x.com"})
	})
}

func TestRecorder_SurvivesCanceledRequest(t *testing.T) {
	sink := &memorySink{name: "m"}
	r := NewRecorder(bucketing.NewManager(1), sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Record(ctx, Entry{Type: models.EventOTPIssued, Identity: "a@x.com"})
	require.NoError(t, r.Wait(context.Background()))

	require.Len(t, sink.events, 1)
}

type blockingSink struct {
	release chan struct{}
	written chan *models.SecurityEvent
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Write(ctx context.Context, e *models.SecurityEvent) error {
	<-s.release
	s.written <- e
	return nil
}

func TestRecorder_SlowSinkDoesNotBlockCaller(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), written: make(chan *models.SecurityEvent, 1)}
	r := NewRecorder(bucketing.NewManager(1), sink)

	returned := make(chan struct{})
	go func() {
		r.Record(context.Background(), Entry{Type: models.EventOTPIssued, Identity: "a@x.com"})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Record waited for the sink")
	}

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(short), context.DeadlineExceeded)

	close(sink.release)
	require.NoError(t, r.Wait(context.Background()))
	e := <-sink.written
	assert.Equal(t, models.EventOTPIssued, e.EventType)
}

func TestKafkaSink(t *testing.T) {
	p := &fakeProducer{}
	event := &models.SecurityEvent{EventID: "e1", EventBucket: 7, EventType: models.EventOTPIssued}

	require.NoError(t, NewKafkaSink(p).Write(context.Background(), event))
	assert.Equal(t, []byte("7"), p.key)
	assert.Equal(t, models.EventOTPIssued, p.headers["event_type"])

	var decoded models.SecurityEvent
	require.NoError(t, json.Unmarshal(p.value, &decoded))
	assert.Equal(t, "e1", decoded.EventID)
}

func TestElasticsearchSink(t *testing.T) {
	idx := &fakeIndexer{}
	event := &models.SecurityEvent{EventID: "e1"}

	require.NoError(t, NewElasticsearchSink(idx, "auth-events").Write(context.Background(), event))
	assert.Equal(t, "auth-events", idx.index)
	assert.Equal(t, "e1", idx.id)
	assert.Same(t, event, idx.doc)
}

func TestClickhouseSink(t *testing.T) {
	ex := &fakeExecer{}
	event := &models.SecurityEvent{EventID: "e1", EventBucket: 3, EventType: models.EventOTPVerified, TokenID: "jti"}

	require.NoError(t, NewClickhouseSink(ex, "auth_events").Write(context.Background(), event))
	assert.Contains(t, ex.query, "INSERT INTO auth_events")
	require.Len(t, ex.args, 10)
	assert.Equal(t, "e1", ex.args[0])
	assert.Equal(t, uint16(3), ex.args[1])
	assert.Equal(t, "jti", ex.args[7])
}
