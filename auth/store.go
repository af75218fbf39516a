package auth

import (
	"sync"

	"chat-relay/domain"
	"chat-relay/errors"
)

// IdentityStore maps registered names to credential digests. All state is in
// memory and rebuilt from zero on restart; identities are never deleted.
type IdentityStore struct {
	mu         sync.RWMutex
	identities map[string]domain.Identity
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{identities: make(map[string]domain.Identity)}
}

// Register stores the digest of secret under name. Fails if the name is
// already taken.
func (s *IdentityStore) Register(name, secret string) error {
	hash, err := HashPassword(secret)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[name]; ok {
		return errors.ErrIdentityExists
	}
	s.identities[name] = domain.Identity{Name: name, CredentialHash: hash}
	return nil
}

// Authenticate reports whether name exists and secret matches its stored
// digest. Pure read.
func (s *IdentityStore) Authenticate(name, secret string) bool {
	s.mu.RLock()
	identity, ok := s.identities[name]
	s.mu.RUnlock()

	if !ok {
		return false
	}
	match, err := ComparePassword(secret, identity.CredentialHash)
	return err == nil && match
}
