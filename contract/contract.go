package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
)

// EventSink is one connection's outbound side. Enqueueing must not block
// the coordinator; the transport owns buffering and slow-client policy.
type EventSink interface {
	Consume(e event.DomainEvent)
}

// IGateway abstracts "send event X to connection Y / to these connections /
// to everyone". The coordinator never talks to the transport directly.
type IGateway interface {
	Register(conn domain.ConnID, sink EventSink)
	Unregister(conn domain.ConnID)
	ToConnection(conn domain.ConnID, e event.DomainEvent)
	ToConnections(conns []domain.ConnID, e event.DomainEvent)
	ToAll(e event.DomainEvent)
}

// IIdentityStore is the credential side of the system. Authenticate is a
// pure read.
type IIdentityStore interface {
	Register(name, secret string) error
	Authenticate(name, secret string) bool
}

// IPresence tracks which identity owns which live connection.
type IPresence interface {
	MarkOnline(name string, conn domain.ConnID)
	MarkOffline(conn domain.ConnID) (string, bool)
	Lookup(conn domain.ConnID) (string, bool)
	Resolve(name string) (domain.ConnID, bool)
	Snapshot() []string
}

// Worker is a long-running background task driven by the supervisor loop in
// main. It must return when the context is cancelled.
type Worker interface {
	Run(ctx context.Context) error
}
