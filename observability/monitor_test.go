package observability

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu      sync.Mutex
	samples []event.MemoryUpdate
}

func (s *captureSink) Consume(e event.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sample, ok := e.(event.MemoryUpdate); ok {
		s.samples = append(s.samples, sample)
	}
}

func (s *captureSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func (s *captureSink) first() event.MemoryUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples[0]
}

func TestMemoryMonitor_First_Subscriber_Starts_Sampling(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	monitor := NewMemoryMonitor(ctx, log, 10*time.Millisecond)
	sink := &captureSink{}

	// When the first subscriber arrives
	monitor.Subscribe(domain.ConnID(uuid.NewString()), sink)

	// Then samples start flowing, carrying a positive RSS reading
	req.Eventually(func() bool { return sink.len() >= 2 }, 2*time.Second, 5*time.Millisecond)
	req.Greater(sink.first().Memory, 0.0)
	req.NotEmpty(sink.first().Time)
}

func TestMemoryMonitor_Unsubscribe_Stops_Delivery(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	monitor := NewMemoryMonitor(ctx, log, 10*time.Millisecond)
	conn := domain.ConnID(uuid.NewString())
	sink := &captureSink{}

	monitor.Subscribe(conn, sink)
	req.Eventually(func() bool { return sink.len() >= 1 }, 2*time.Second, 5*time.Millisecond)

	// When the subscriber goes away, delivery to it stops
	monitor.Unsubscribe(conn)
	seen := sink.len()
	time.Sleep(50 * time.Millisecond)
	req.Equal(seen, sink.len())
}
