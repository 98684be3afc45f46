// Package audit records security events about OTP issuance and
// verification. Recording is best effort and never fails the caller.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"admin-auth/internal/bucketing"
	"admin-auth/internal/models"
	"admin-auth/internal/util"
)

const writeTimeout = 2 * time.Second

// Entry is what callers report; the recorder fills in the rest.
type Entry struct {
	Type     string
	Identity string
	Reason   string
	TokenID  string
}

type Auditor interface {
	Record(ctx context.Context, entry Entry)
}

// Sink persists events to one backend.
type Sink interface {
	Name() string
	Write(ctx context.Context, event *models.SecurityEvent) error
}

type requestMetaKey struct{}

type requestMeta struct {
	requestID string
	sourceIP  string
}

// WithRequest attaches request metadata that Record copies into events.
func WithRequest(ctx context.Context, requestID, sourceIP string) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, requestMeta{requestID: requestID, sourceIP: sourceIP})
}

// Recorder fans an event out to every sink in parallel, off the caller's
// goroutine. Wait drains writes still in flight.
type Recorder struct {
	sinks   []Sink
	buckets *bucketing.Manager
	now     func() time.Time
	pending sync.WaitGroup
}

func NewRecorder(buckets *bucketing.Manager, sinks ...Sink) *Recorder {
	return &Recorder{sinks: sinks, buckets: buckets, now: time.Now}
}

func (r *Recorder) Sinks() []Sink {
	return r.sinks
}

func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if len(r.sinks) == 0 {
		return
	}

	now := r.now().UTC()
	event := &models.SecurityEvent{
		EventID:     uuid.NewString(),
		EventBucket: r.buckets.EventBucket(entry.Identity),
		EventDate:   r.buckets.DateBucket(now),
		EventTime:   now,
		EventType:   entry.Type,
		Identity:    util.MaskEmail(entry.Identity),
		Reason:      entry.Reason,
		TokenID:     entry.TokenID,
	}
	if meta, ok := ctx.Value(requestMetaKey{}).(requestMeta); ok {
		event.RequestID = meta.requestID
		event.SourceIP = meta.sourceIP
	}

	// detached from the request so a finished response does not cancel writes
	writeCtx := context.WithoutCancel(ctx)

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		r.fanOut(writeCtx, event)
	}()
}

func (r *Recorder) fanOut(ctx context.Context, event *models.SecurityEvent) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	var g errgroup.Group
	for _, sink := range r.sinks {
		sink := sink
		g.Go(func() error {
			if err := sink.Write(ctx, event); err != nil {
				util.Warn("Audit sink write failed",
					util.String("sink", sink.Name()),
					util.String("event_type", event.EventType),
					util.ErrorField(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Wait blocks until every recorded event has been handed to its sinks or ctx
// is done.
func (r *Recorder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}
