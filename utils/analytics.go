package utils

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ecoguide/ecoguide/models"
)

// AnalyticsSink delivers classification events to the secondary store.
// Submit never blocks and never returns an error: the mirror is strictly
// fire-and-forget and its outcome is invisible to the request path.
type AnalyticsSink interface {
	Submit(ev models.AnalyticsEvent)
	Close()
}

// EventInserter is the slice of *mongo.Collection the sink needs.
type EventInserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

const sinkQueueSize = 256

// MongoSink mirrors events into a Mongo collection from a background worker.
// A full queue or a failed insert drops the event with a warn log; there is
// no retry and no back-pressure onto callers.
type MongoSink struct {
	events chan models.AnalyticsEvent
	coll   EventInserter
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewMongoSink starts the background worker and returns the sink.
func NewMongoSink(coll EventInserter) *MongoSink {
	s := &MongoSink{
		events: make(chan models.AnalyticsEvent, sinkQueueSize),
		coll:   coll,
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Submit enqueues an event without blocking. After Close it drops the event.
func (s *MongoSink) Submit(ev models.AnalyticsEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		if Sugar != nil {
			Sugar.Warnf("analytics queue full, dropping event usuario=%d residuo=%d", ev.UsuarioID, ev.ResiduoID)
		}
	}
}

// Close stops accepting events and waits for the worker to drain the queue.
// Safe to call more than once.
func (s *MongoSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()
	<-s.done
}

func (s *MongoSink) run() {
	defer close(s.done)
	for ev := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := s.coll.InsertOne(ctx, ev)
		cancel()
		if err != nil && Sugar != nil {
			Sugar.Warnf("analytics insert failed, dropping event usuario=%d residuo=%d: %v", ev.UsuarioID, ev.ResiduoID, err)
		}
	}
}

// DiscardSink drops every event. Used when the analytics store is not configured.
type DiscardSink struct{}

func (DiscardSink) Submit(models.AnalyticsEvent) {}
func (DiscardSink) Close()                       {}
