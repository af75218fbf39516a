package domain

// RoomKeySize is the size of the symmetric key issued once per room.
const RoomKeySize = 16

// Room is a named broadcast group. Key is generated exactly once at creation
// and never changes. Members maps each member connection to its identity
// name; a room with an empty member set only exists between creation and the
// first join, emptying it through Leave destroys it.
type Room struct {
	Name     string
	Password string
	Key      []byte
	Members  map[ConnID]string
}

// HasPassword reports whether joining requires a password.
func (r *Room) HasPassword() bool {
	return r.Password != ""
}

// MemberNames returns the identity names of the current members.
func (r *Room) MemberNames() []string {
	names := make([]string, 0, len(r.Members))
	for _, name := range r.Members {
		names = append(names, name)
	}
	return names
}

// RoomInfo is the public listing entry for a room. It never carries the key
// or the member set.
type RoomInfo struct {
	Name        string `json:"name"`
	HasPassword bool   `json:"has_password"`
}
