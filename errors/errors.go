package errors

import "fmt"

var (
	ErrIdentityExists     = fmt.Errorf("identity already registered")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrRoomExists         = fmt.Errorf("room already exists")
	ErrNoSuchRoom         = fmt.Errorf("no such room")
	ErrWrongPassword      = fmt.Errorf("wrong room password")
	ErrRecipientOffline   = fmt.Errorf("recipient is offline")
	ErrUnauthenticated    = fmt.Errorf("connection is not authenticated")
)
