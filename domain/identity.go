// Package domain contains core concepts of the relay: identities,
// connections, rooms and the inbound command union.
// No runtime, network, or UI logic should be added here.
package domain

// ConnID is the opaque handle of one live transport session. The transport
// picks the value (a UUID in practice); the engine only compares it.
type ConnID string

// Identity is a registered login name and its credential digest.
// Identities are immutable once registered and are never deleted.
type Identity struct {
	Name           string
	CredentialHash string
}
