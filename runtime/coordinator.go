package runtime

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

// Coordinator is the event-driven core of the relay. Each inbound connection
// event reads and mutates the presence and room registries, derives the
// outbound broadcasts, and hands them to the gateway.
//
// Every event is serialized under one coarse mutex so cross-registry
// sequences (the leave-then-offline path of a disconnect, the read-then-evict
// decision inside a leave) are atomic. The registries keep their own locks
// for readers outside the coordinator, such as the debug inspector.
type Coordinator struct {
	mu       sync.Mutex
	log      *slog.Logger
	presence contract.IPresence
	rooms    *Rooms
	gateway  contract.IGateway
}

func NewCoordinator(log *slog.Logger, presence contract.IPresence, rooms *Rooms, gateway contract.IGateway) *Coordinator {
	return &Coordinator{
		log:      log,
		presence: presence,
		rooms:    rooms,
		gateway:  gateway,
	}
}

// Connect accepts a new connection that the transport already authenticated.
// A connection without an identity is refused outright: no presence entry,
// no sink, no further events.
func (c *Coordinator) Connect(conn domain.ConnID, identity string, sink contract.EventSink) error {
	if identity == "" {
		return errors.ErrUnauthenticated
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.gateway.Register(conn, sink)
	c.presence.MarkOnline(identity, conn)
	c.log.Info("user connected", "user", identity, "conn", conn)

	c.gateway.ToAll(event.GlobalUserList{Users: c.presence.Snapshot()})
	c.gateway.ToAll(event.RoomList{Rooms: c.rooms.Listing()})
	return nil
}

// Disconnect converges the state to what an explicit leave followed by going
// offline would have produced. Room cleanup runs before the presence entry
// is removed; a second disconnect for the same connection changes nothing
// and emits nothing.
func (c *Coordinator) Disconnect(conn domain.ConnID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Room cleanup is keyed by connection, so it also converges a stale
	// connection whose identity has already reconnected elsewhere.
	c.runLeave(conn)

	identity, ok := c.presence.Lookup(conn)
	if !ok {
		c.gateway.Unregister(conn)
		return
	}

	c.presence.MarkOffline(conn)
	c.gateway.Unregister(conn)
	c.log.Info("user disconnected", "user", identity, "conn", conn)

	c.gateway.ToAll(event.GlobalUserList{Users: c.presence.Snapshot()})
}

// Dispatch routes one client command. Commands from connections without a
// presence entry are dropped silently; this is distinct from authenticated
// requests that fail, which get exactly one error reply.
func (c *Coordinator) Dispatch(conn domain.ConnID, cmd domain.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()

	identity, ok := c.presence.Lookup(conn)
	if !ok {
		c.log.Debug("dropping command from unauthenticated connection", "conn", conn)
		return
	}

	switch cmd := cmd.(type) {
	case domain.CreateCommand:
		c.handleCreate(conn, identity, cmd)
	case domain.JoinCommand:
		c.handleJoin(conn, identity, cmd)
	case domain.LeaveCommand:
		c.handleLeave(conn)
	case domain.TextCommand:
		c.handleText(identity, cmd)
	case domain.WhisperCommand:
		c.handleWhisper(conn, identity, cmd)
	}
}

func (c *Coordinator) handleCreate(conn domain.ConnID, identity string, cmd domain.CreateCommand) {
	if err := c.rooms.Create(cmd.Room, cmd.Password); err != nil {
		c.gateway.ToConnection(conn, event.Error{Msg: fmt.Sprintf("Room %q already exists.", cmd.Room)})
		return
	}

	c.log.Info("room created", "room", cmd.Room, "user", identity)
	c.gateway.ToConnection(conn, event.Status{Msg: fmt.Sprintf("Room %q created successfully.", cmd.Room)})
	c.gateway.ToAll(event.RoomList{Rooms: c.rooms.Listing()})
}

func (c *Coordinator) handleJoin(conn domain.ConnID, identity string, cmd domain.JoinCommand) {
	key, prior, err := c.rooms.Join(cmd.Room, cmd.Password, conn, identity)
	if err != nil {
		c.log.Debug("join refused", "room", cmd.Room, "user", identity, "err", err)
		c.gateway.ToConnection(conn, event.Error{Msg: fmt.Sprintf("Could not join room %q.", cmd.Room)})
		return
	}

	// Switching rooms carries an implicit leave of the previous one, which
	// is announced before anything about the new room.
	if prior != nil {
		c.announceLeave(*prior)
	}

	c.log.Info("user joined room", "room", cmd.Room, "user", identity)

	// The key must be enqueued on the joiner's sink before any room-wide
	// event announces the join.
	c.gateway.ToConnection(conn, event.RoomKey{Key: base64.StdEncoding.EncodeToString(key)})

	members, conns, _ := c.rooms.MemberView(cmd.Room)
	c.gateway.ToConnections(conns, event.Status{Msg: fmt.Sprintf("%s joined the room.", identity), Room: cmd.Room})
	c.gateway.ToConnections(conns, event.RoomUserList{Users: members})
}

func (c *Coordinator) handleLeave(conn domain.ConnID) {
	if !c.runLeave(conn) {
		return
	}

	// Refresh the leaver's own lobby view.
	c.gateway.ToConnection(conn, event.RoomList{Rooms: c.rooms.Listing()})
	c.gateway.ToConnection(conn, event.GlobalUserList{Users: c.presence.Snapshot()})
}

// runLeave removes conn from its room, if any, and interprets the result
// into broadcasts. The explicit leave handler and the disconnect path share
// it, so both converge to the same registry state; calling it for a
// connection that is not a member is a no-op.
func (c *Coordinator) runLeave(conn domain.ConnID) bool {
	res, ok := c.rooms.Leave(conn)
	if !ok {
		return false
	}

	c.announceLeave(res)
	return true
}

func (c *Coordinator) announceLeave(res LeaveResult) {
	c.log.Info("user left room", "room", res.Room, "user", res.Identity, "evicted", !res.Survived)
	c.gateway.ToConnections(res.RemainingConns, event.Status{Msg: fmt.Sprintf("%s left the room.", res.Identity), Room: res.Room})

	if res.Survived {
		c.gateway.ToConnections(res.RemainingConns, event.RoomUserList{Users: res.RemainingMembers})
	} else {
		c.gateway.ToAll(event.RoomList{Rooms: c.rooms.Listing()})
	}
}

func (c *Coordinator) handleText(identity string, cmd domain.TextCommand) {
	_, conns, ok := c.rooms.MemberView(cmd.Room)
	if !ok {
		return
	}
	// The payload is opaque ciphertext to this layer, relayed verbatim.
	c.gateway.ToConnections(conns, event.Message{Username: identity, Msg: cmd.Msg, ID: cmd.ID})
}

func (c *Coordinator) handleWhisper(conn domain.ConnID, identity string, cmd domain.WhisperCommand) {
	target, ok := c.presence.Resolve(cmd.Target)
	if !ok {
		c.gateway.ToConnection(conn, event.Error{Msg: fmt.Sprintf("User %q is not online.", cmd.Target)})
		return
	}

	msg := event.PrivateMessage{Sender: identity, Recipient: cmd.Target, Msg: cmd.Msg}
	c.gateway.ToConnection(target, msg)
	// Confirmation copy to the sender.
	c.gateway.ToConnection(conn, msg)
}
