package runtime

import (
	"crypto/rand"
	"fmt"
	"sync"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/samber/lo"
)

// Rooms is the room registry and key issuer. Each room gets its 16-byte
// symmetric key exactly once, at creation; the key never leaves this package
// except through a successful Join.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]*domain.Room)}
}

// Create allocates a fresh key and stores the room with zero members. A room
// is visible in listings from this point on; only leave-to-empty evicts it,
// never creation.
func (r *Rooms) Create(name, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[name]; ok {
		return errors.ErrRoomExists
	}

	key := make([]byte, domain.RoomKeySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("room key generation failed: %w", err)
	}

	r.rooms[name] = &domain.Room{
		Name:     name,
		Password: password,
		Key:      key,
		Members:  make(map[domain.ConnID]string),
	}
	return nil
}

// Join adds conn to the room and returns the room key for private delivery
// to that connection only. A room without a password accepts any supplied
// password; a non-empty password must match exactly. On any error the member
// maps are untouched.
//
// A connection holds at most one membership. Joining a second room removes
// the first membership in the same atomic step and reports it as a non-nil
// LeaveResult, so the caller can announce the departure. Rejoining the room
// the connection is already in only redelivers the key.
func (r *Rooms) Join(name, password string, conn domain.ConnID, identity string) ([]byte, *LeaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[name]
	if !ok {
		return nil, nil, errors.ErrNoSuchRoom
	}
	if room.HasPassword() && room.Password != password {
		return nil, nil, errors.ErrWrongPassword
	}
	if _, member := room.Members[conn]; member {
		return room.Key, nil, nil
	}

	var prior *LeaveResult
	if res, left := r.leaveLocked(conn); left {
		prior = &res
	}

	room.Members[conn] = identity
	return room.Key, prior, nil
}

// LeaveResult describes what a removal changed, for the caller to interpret
// into broadcasts. When Survived is false the room was evicted as part of
// the same operation and RemainingMembers is empty.
type LeaveResult struct {
	Room             string
	Identity         string
	Survived         bool
	RemainingMembers []string
	RemainingConns   []domain.ConnID
}

// Leave removes conn from the room containing it. A connection belongs to at
// most one room, so the first match is authoritative. Returns false if conn
// is not a member of any room, which makes a second removal for the same
// connection a safe no-op.
func (r *Rooms) Leave(conn domain.ConnID) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.leaveLocked(conn)
}

func (r *Rooms) leaveLocked(conn domain.ConnID) (LeaveResult, bool) {
	for name, room := range r.rooms {
		identity, ok := room.Members[conn]
		if !ok {
			continue
		}

		delete(room.Members, conn)
		res := LeaveResult{
			Room:     name,
			Identity: identity,
			Survived: len(room.Members) > 0,
		}
		if res.Survived {
			res.RemainingMembers = room.MemberNames()
			res.RemainingConns = lo.Keys(room.Members)
		} else {
			delete(r.rooms, name)
		}
		return res, true
	}
	return LeaveResult{}, false
}

// Listing returns the public view of every room, without keys or members.
func (r *Rooms) Listing() []domain.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.MapToSlice(r.rooms, func(name string, room *domain.Room) domain.RoomInfo {
		return domain.RoomInfo{Name: name, HasPassword: room.HasPassword()}
	})
}

// MemberView returns the member names and connections of a room. Reports
// false if the room does not exist.
func (r *Rooms) MemberView(name string) ([]string, []domain.ConnID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[name]
	if !ok {
		return nil, nil, false
	}
	return room.MemberNames(), lo.Keys(room.Members), true
}
