package runtime

import (
	"encoding/base64"
	"io"
	"log/slog"
	"sync"
	"testing"

	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// recordingSink captures every event delivered to one connection, in order.
type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordingSink) Consume(e event.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) all() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.DomainEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func eventsOf[T event.DomainEvent](s *recordingSink) []T {
	var out []T
	for _, e := range s.all() {
		if typed, ok := e.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

func lastOf[T event.DomainEvent](t *testing.T, s *recordingSink) T {
	t.Helper()
	matches := eventsOf[T](s)
	require.NotEmpty(t, matches)
	return matches[len(matches)-1]
}

func newTestCoordinator() (*Coordinator, *Rooms, *Presence) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	presence := NewPresence()
	rooms := NewRooms()
	return NewCoordinator(log, presence, rooms, NewGateway()), rooms, presence
}

func TestCoordinator_Connect_Broadcasts_Lobby_State(t *testing.T) {
	req := require.New(t)
	c, _, _ := newTestCoordinator()
	connA := domain.ConnID(uuid.NewString())
	connB := domain.ConnID(uuid.NewString())
	alice := &recordingSink{}
	bob := &recordingSink{}

	// When alice then bob connect
	req.NoError(c.Connect(connA, "alice", alice))
	req.NoError(c.Connect(connB, "bob", bob))

	// Then alice saw both presence broadcasts and the final list has both
	users := eventsOf[event.GlobalUserList](alice)
	req.Len(users, 2)
	req.ElementsMatch([]string{"alice", "bob"}, users[1].Users)

	// And everyone got a room listing
	req.NotEmpty(eventsOf[event.RoomList](bob))
}

func TestCoordinator_Connect_Without_Identity_Is_Refused(t *testing.T) {
	req := require.New(t)
	c, _, presence := newTestCoordinator()
	conn := domain.ConnID(uuid.NewString())
	sink := &recordingSink{}

	// An unauthenticated connect is refused outright
	req.Error(c.Connect(conn, "", sink))
	req.Empty(presence.Snapshot())

	// And further events on that connection are dropped silently
	c.Dispatch(conn, domain.CreateCommand{Room: "general"})
	req.Zero(sink.count())
}

func TestCoordinator_Create_Join_Leave_Scenario(t *testing.T) {
	req := require.New(t)
	c, rooms, _ := newTestCoordinator()
	connA := domain.ConnID(uuid.NewString())
	connB := domain.ConnID(uuid.NewString())
	alice := &recordingSink{}
	bob := &recordingSink{}

	// Given alice and bob are connected
	req.NoError(c.Connect(connA, "alice", alice))
	req.NoError(c.Connect(connB, "bob", bob))

	// When alice creates and joins "general"
	c.Dispatch(connA, domain.CreateCommand{Room: "general"})
	c.Dispatch(connA, domain.JoinCommand{Room: "general"})

	// Then she gets a private status confirmation and the 16-byte key
	req.NotEmpty(eventsOf[event.Status](alice))
	keyAlice, err := base64.StdEncoding.DecodeString(lastOf[event.RoomKey](t, alice).Key)
	req.NoError(err)
	req.Len(keyAlice, domain.RoomKeySize)

	// And bob never saw the key
	req.Empty(eventsOf[event.RoomKey](bob))

	// When bob joins with an empty password, he receives the same key
	c.Dispatch(connB, domain.JoinCommand{Room: "general"})
	keyBob, err := base64.StdEncoding.DecodeString(lastOf[event.RoomKey](t, bob).Key)
	req.NoError(err)
	req.Equal(keyAlice, keyBob)

	// And the room-wide member list shows both
	req.ElementsMatch([]string{"alice", "bob"}, lastOf[event.RoomUserList](t, alice).Users)

	// When bob disconnects, the remaining members see ["alice"]
	c.Disconnect(connB)
	req.ElementsMatch([]string{"alice"}, lastOf[event.RoomUserList](t, alice).Users)

	// When alice leaves, the room empties and disappears from the listing
	c.Dispatch(connA, domain.LeaveCommand{})
	req.Empty(lastOf[event.RoomList](t, alice).Rooms)
	req.Empty(rooms.Listing())
}

func TestCoordinator_Join_Key_Precedes_Member_Broadcast(t *testing.T) {
	req := require.New(t)
	c, _, _ := newTestCoordinator()
	conn := domain.ConnID(uuid.NewString())
	sink := &recordingSink{}

	req.NoError(c.Connect(conn, "alice", sink))
	c.Dispatch(conn, domain.CreateCommand{Room: "general"})
	c.Dispatch(conn, domain.JoinCommand{Room: "general"})

	// On the joiner's sink the key must be enqueued before the member list
	// that announces the join.
	keyIdx, listIdx := -1, -1
	for i, e := range sink.all() {
		switch e.(type) {
		case event.RoomKey:
			if keyIdx == -1 {
				keyIdx = i
			}
		case event.RoomUserList:
			if listIdx == -1 {
				listIdx = i
			}
		}
	}
	req.GreaterOrEqual(keyIdx, 0)
	req.GreaterOrEqual(listIdx, 0)
	req.Less(keyIdx, listIdx)
}

func TestCoordinator_Create_Duplicate_Room_Errors_Caller_Only(t *testing.T) {
	req := require.New(t)
	c, _, _ := newTestCoordinator()
	connA := domain.ConnID(uuid.NewString())
	connB := domain.ConnID(uuid.NewString())
	alice := &recordingSink{}
	bob := &recordingSink{}

	req.NoError(c.Connect(connA, "alice", alice))
	req.NoError(c.Connect(connB, "bob", bob))

	c.Dispatch(connA, domain.CreateCommand{Room: "general"})

	// When bob tries to create the same room
	c.Dispatch(connB, domain.CreateCommand{Room: "general"})

	// Then only bob gets an error and nothing else changes
	req.Len(eventsOf[event.Error](bob), 1)
	req.Empty(eventsOf[event.Error](alice))
}

func TestCoordinator_Join_Wrong_Password_Leaves_State_Unchanged(t *testing.T) {
	req := require.New(t)
	c, rooms, _ := newTestCoordinator()
	connA := domain.ConnID(uuid.NewString())
	connB := domain.ConnID(uuid.NewString())
	alice := &recordingSink{}
	mallory := &recordingSink{}

	req.NoError(c.Connect(connA, "alice", alice))
	req.NoError(c.Connect(connB, "mallory", mallory))

	c.Dispatch(connA, domain.CreateCommand{Room: "x", Password: "secret"})

	// When mallory joins with the wrong password
	c.Dispatch(connB, domain.JoinCommand{Room: "x", Password: "wrong"})

	// Then she gets one error, no key, and the member map is still empty
	req.Len(eventsOf[event.Error](mallory), 1)
	req.Empty(eventsOf[event.RoomKey](mallory))

	members, _, ok := rooms.MemberView("x")
	req.True(ok)
	req.Empty(members)
}

func TestCoordinator_Join_Second_Room_Moves_Connection(t *testing.T) {
	req := require.New(t)
	c, rooms, _ := newTestCoordinator()
	connA := domain.ConnID(uuid.NewString())
	connB := domain.ConnID(uuid.NewString())
	alice := &recordingSink{}
	bob := &recordingSink{}

	// Given alice and bob are both in "first"
	req.NoError(c.Connect(connA, "alice", alice))
	req.NoError(c.Connect(connB, "bob", bob))
	c.Dispatch(connA, domain.CreateCommand{Room: "first"})
	c.Dispatch(connA, domain.CreateCommand{Room: "second"})
	c.Dispatch(connA, domain.JoinCommand{Room: "first"})
	c.Dispatch(connB, domain.JoinCommand{Room: "first"})

	// When alice joins "second" without an explicit leave
	c.Dispatch(connA, domain.JoinCommand{Room: "second"})

	// Then she is a member of "second" only
	members, _, ok := rooms.MemberView("first")
	req.True(ok)
	req.ElementsMatch([]string{"bob"}, members)
	members, _, ok = rooms.MemberView("second")
	req.True(ok)
	req.ElementsMatch([]string{"alice"}, members)

	// And bob was told she left
	req.ElementsMatch([]string{"bob"}, lastOf[event.RoomUserList](t, bob).Users)

	// And her disconnect empties "second", leaving no ghost membership
	c.Disconnect(connA)
	members, _, ok = rooms.MemberView("first")
	req.True(ok)
	req.ElementsMatch([]string{"bob"}, members)
	_, _, ok = rooms.MemberView("second")
	req.False(ok)
}

func TestCoordinator_Stale_Connection_Disconnect_Leaves_Room(t *testing.T) {
	req := require.New(t)
	c, rooms, presence := newTestCoordinator()
	oldConn := domain.ConnID(uuid.NewString())
	newConn := domain.ConnID(uuid.NewString())
	connB := domain.ConnID(uuid.NewString())
	bob := &recordingSink{}

	// Given alice joined "general" on her first connection
	req.NoError(c.Connect(oldConn, "alice", &recordingSink{}))
	req.NoError(c.Connect(connB, "bob", bob))
	c.Dispatch(oldConn, domain.CreateCommand{Room: "general"})
	c.Dispatch(oldConn, domain.JoinCommand{Room: "general"})
	c.Dispatch(connB, domain.JoinCommand{Room: "general"})

	// When she reconnects elsewhere and the stale connection then drops
	req.NoError(c.Connect(newConn, "alice", &recordingSink{}))
	c.Disconnect(oldConn)

	// Then the stale membership is gone
	members, _, ok := rooms.MemberView("general")
	req.True(ok)
	req.ElementsMatch([]string{"bob"}, members)
	req.ElementsMatch([]string{"bob"}, lastOf[event.RoomUserList](t, bob).Users)

	// And alice stays online through the new connection
	req.Contains(presence.Snapshot(), "alice")
}

func TestCoordinator_Disconnect_Matches_Explicit_Leave(t *testing.T) {
	req := require.New(t)

	// Two identical worlds: in one bob leaves then disconnects, in the
	// other he just disconnects. Final registry state must be the same.
	run := func(explicitLeave bool) ([]domain.RoomInfo, []string) {
		c, rooms, presence := newTestCoordinator()
		connA := domain.ConnID(uuid.NewString())
		connB := domain.ConnID(uuid.NewString())

		require.NoError(t, c.Connect(connA, "alice", &recordingSink{}))
		require.NoError(t, c.Connect(connB, "bob", &recordingSink{}))
		c.Dispatch(connA, domain.CreateCommand{Room: "general"})
		c.Dispatch(connA, domain.JoinCommand{Room: "general"})
		c.Dispatch(connB, domain.JoinCommand{Room: "general"})

		if explicitLeave {
			c.Dispatch(connB, domain.LeaveCommand{})
		}
		c.Disconnect(connB)
		return rooms.Listing(), presence.Snapshot()
	}

	leaveRooms, leaveUsers := run(true)
	dropRooms, dropUsers := run(false)
	req.Equal(leaveRooms, dropRooms)
	req.ElementsMatch(leaveUsers, dropUsers)
}

func TestCoordinator_Double_Disconnect_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	c, _, _ := newTestCoordinator()
	connA := domain.ConnID(uuid.NewString())
	connB := domain.ConnID(uuid.NewString())
	alice := &recordingSink{}

	req.NoError(c.Connect(connA, "alice", alice))
	req.NoError(c.Connect(connB, "bob", &recordingSink{}))

	c.Disconnect(connB)
	seen := alice.count()

	// The transport firing disconnect twice changes nothing and emits no
	// further broadcasts.
	c.Disconnect(connB)
	req.Equal(seen, alice.count())
}

func TestCoordinator_Text_Relays_To_Room_Members_Only(t *testing.T) {
	req := require.New(t)
	c, _, _ := newTestCoordinator()
	connA := domain.ConnID(uuid.NewString())
	connB := domain.ConnID(uuid.NewString())
	connC := domain.ConnID(uuid.NewString())
	alice := &recordingSink{}
	bob := &recordingSink{}
	carol := &recordingSink{}

	req.NoError(c.Connect(connA, "alice", alice))
	req.NoError(c.Connect(connB, "bob", bob))
	req.NoError(c.Connect(connC, "carol", carol))

	c.Dispatch(connA, domain.CreateCommand{Room: "general"})
	c.Dispatch(connA, domain.JoinCommand{Room: "general"})
	c.Dispatch(connB, domain.JoinCommand{Room: "general"})

	// When alice sends ciphertext to the room
	c.Dispatch(connA, domain.TextCommand{Room: "general", Msg: "0xdeadbeef", ID: "42"})

	// Then members receive it verbatim, tagged with her name
	msg := lastOf[event.Message](t, bob)
	req.Equal("alice", msg.Username)
	req.Equal("0xdeadbeef", msg.Msg)
	req.Equal("42", msg.ID)
	req.NotEmpty(eventsOf[event.Message](alice))

	// And carol, outside the room, receives nothing
	req.Empty(eventsOf[event.Message](carol))
}

func TestCoordinator_Whisper(t *testing.T) {
	req := require.New(t)
	c, _, _ := newTestCoordinator()
	connA := domain.ConnID(uuid.NewString())
	connB := domain.ConnID(uuid.NewString())
	alice := &recordingSink{}
	bob := &recordingSink{}

	req.NoError(c.Connect(connA, "alice", alice))
	req.NoError(c.Connect(connB, "bob", bob))

	// When alice whispers to bob
	c.Dispatch(connA, domain.WhisperCommand{Target: "bob", Msg: "psst"})

	// Then bob receives it and alice gets a confirmation copy
	got := lastOf[event.PrivateMessage](t, bob)
	req.Equal(event.PrivateMessage{Sender: "alice", Recipient: "bob", Msg: "psst"}, got)
	req.Equal(got, lastOf[event.PrivateMessage](t, alice))
}

func TestCoordinator_Whisper_To_Offline_Identity(t *testing.T) {
	req := require.New(t)
	c, _, _ := newTestCoordinator()
	connA := domain.ConnID(uuid.NewString())
	connB := domain.ConnID(uuid.NewString())
	alice := &recordingSink{}
	bob := &recordingSink{}

	req.NoError(c.Connect(connA, "alice", alice))
	req.NoError(c.Connect(connB, "bob", bob))
	bobEvents := bob.count()

	// When alice whispers to an identity that is not online
	c.Dispatch(connA, domain.WhisperCommand{Target: "carol", Msg: "hello?"})

	// Then alice gets exactly one error event and nobody else gets anything
	req.Len(eventsOf[event.Error](alice), 1)
	req.Empty(eventsOf[event.PrivateMessage](alice))
	req.Equal(bobEvents, bob.count())
}
