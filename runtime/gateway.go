package runtime

import (
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
)

// Gateway fans events out to registered connection sinks. It is the only
// place that knows which sink belongs to which connection; room and global
// targeting are resolved by the coordinator into connection lists first.
type Gateway struct {
	mu    sync.RWMutex
	sinks map[domain.ConnID]contract.EventSink
}

func NewGateway() *Gateway {
	return &Gateway{sinks: make(map[domain.ConnID]contract.EventSink)}
}

func (g *Gateway) Register(conn domain.ConnID, sink contract.EventSink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sinks[conn] = sink
}

func (g *Gateway) Unregister(conn domain.ConnID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sinks, conn)
}

func (g *Gateway) ToConnection(conn domain.ConnID, e event.DomainEvent) {
	g.mu.RLock()
	sink, ok := g.sinks[conn]
	g.mu.RUnlock()

	if ok {
		sink.Consume(e)
	}
}

func (g *Gateway) ToConnections(conns []domain.ConnID, e event.DomainEvent) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, conn := range conns {
		if sink, ok := g.sinks[conn]; ok {
			sink.Consume(e)
		}
	}
}

func (g *Gateway) ToAll(e event.DomainEvent) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, sink := range g.sinks {
		sink.Consume(e)
	}
}
