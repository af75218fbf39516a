// Package observability holds the process telemetry side of the relay. It
// never touches the chat registries; monitor subscribers form their own
// audience, separate from the chat gateway.
package observability

import (
	"context"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/shirou/gopsutil/process"
)

// MemoryMonitor samples the process resident set size on a ticker and emits
// memory_update events to its subscribers. The sampler starts when the first
// subscriber arrives (check-and-set under the mutex) and runs until the base
// context is cancelled.
type MemoryMonitor struct {
	log      *slog.Logger
	interval time.Duration
	baseCtx  context.Context

	mu      sync.Mutex
	started bool
	subs    map[domain.ConnID]contract.EventSink
}

func NewMemoryMonitor(ctx context.Context, log *slog.Logger, interval time.Duration) *MemoryMonitor {
	return &MemoryMonitor{
		log:      log,
		interval: interval,
		baseCtx:  ctx,
		subs:     make(map[domain.ConnID]contract.EventSink),
	}
}

// Subscribe registers a monitor connection. The first subscriber starts the
// sampling loop exactly once.
func (m *MemoryMonitor) Subscribe(conn domain.ConnID, sink contract.EventSink) {
	m.mu.Lock()
	m.subs[conn] = sink
	alreadyStarted := m.started
	m.started = true
	m.mu.Unlock()

	if !alreadyStarted {
		m.log.Info("starting memory monitor", "interval", m.interval)
		go func() {
			if err := m.Run(m.baseCtx); err != nil {
				m.log.Error("memory monitor stopped", "err", err)
			}
		}()
	}
}

// Unsubscribe drops a monitor connection. The sampler keeps running; an
// audience of zero just means no one receives the samples.
func (m *MemoryMonitor) Unsubscribe(conn domain.ConnID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, conn)
}

// Run implements contract.Worker. It is normally started by the first
// Subscribe, but can be driven directly by a supervisor loop in tests.
func (m *MemoryMonitor) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Debug("context done, stopping memory monitor")
			return nil
		case <-ticker.C:
			memInfo, err := p.MemoryInfo()
			if err != nil {
				m.log.Warn("memory sampling failed", "err", err)
				continue
			}
			m.publish(event.MemoryUpdate{
				Memory: math.Round(float64(memInfo.RSS)/1024/1024*100) / 100,
				Time:   time.Now().Format("15:04:05"),
			})
		}
	}
}

func (m *MemoryMonitor) publish(e event.MemoryUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sink := range m.subs {
		sink.Consume(e)
	}
}
