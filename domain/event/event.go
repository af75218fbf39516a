// Package event defines the closed set of outbound events the relay emits.
// Every event the transport puts on the wire is one of these structs inside
// an {event, data} envelope; the payload shapes match the client protocol.
package event

import "chat-relay/domain"

// DomainEvent is implemented by every outbound event. EventName is the wire
// name placed in the envelope.
type DomainEvent interface {
	EventName() string
}

// GlobalUserList carries every online identity. Broadcast to all
// connections whenever presence changes.
type GlobalUserList struct {
	Users []string `json:"users"`
}

// RoomList carries the public room listing. Broadcast to all connections
// whenever a room appears or disappears.
type RoomList struct {
	Rooms []domain.RoomInfo `json:"rooms"`
}

// Status is a human-readable status line, targeted or room-wide.
type Status struct {
	Msg  string `json:"msg"`
	Room string `json:"room,omitempty"`
}

// Error is always targeted at the connection that caused it.
type Error struct {
	Msg string `json:"msg"`
}

// RoomKey delivers the room's symmetric key, base64-encoded, to exactly one
// connection after a successful join. Never broadcast.
type RoomKey struct {
	Key string `json:"key"`
}

// RoomUserList carries the member names of one room, broadcast to that room.
type RoomUserList struct {
	Users []string `json:"users"`
}

// Message relays a room payload. Msg is opaque ciphertext to the relay.
type Message struct {
	Username string `json:"username"`
	Msg      string `json:"msg"`
	ID       string `json:"id,omitempty"`
}

// PrivateMessage is a whisper, delivered to the recipient and echoed to the
// sender as a delivery confirmation.
type PrivateMessage struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Msg       string `json:"msg"`
}

// MemoryUpdate is the periodic process memory sample for monitor
// subscribers.
type MemoryUpdate struct {
	Memory float64 `json:"memory"`
	Time   string  `json:"time"`
}

func (GlobalUserList) EventName() string { return "global_user_list_update" }
func (RoomList) EventName() string       { return "room_list_update" }
func (Status) EventName() string         { return "status" }
func (Error) EventName() string          { return "error" }
func (RoomKey) EventName() string        { return "room_key" }
func (RoomUserList) EventName() string   { return "user_list_update" }
func (Message) EventName() string        { return "message" }
func (PrivateMessage) EventName() string { return "private_message" }
func (MemoryUpdate) EventName() string   { return "memory_update" }
