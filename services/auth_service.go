package services

import (
	"fmt"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/errors"
)

type IAuthService interface {
	Register(username, password string) (Token, error)
	Login(username, password string) (Token, error)
}

// Token is a signed session token. Presenting it at the WebSocket upgrade is
// what binds an authenticated identity to the connection.
type Token string

type AuthService struct {
	store  contract.IIdentityStore
	issuer *auth.TokenIssuer
}

func NewAuthService(store contract.IIdentityStore, issuer *auth.TokenIssuer) IAuthService {
	return &AuthService{store: store, issuer: issuer}
}

func (s *AuthService) Register(username, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Username: username,
		Password: password,
	}

	// Validate business rules before any expensive hashing.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	if err := s.store.Register(username, password); err != nil {
		return "", err // Propagates ErrIdentityExists if the name is taken.
	}

	token, err := s.issuer.Generate(username)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(username, password string) (Token, error) {
	// Generic error either way to prevent user enumeration.
	if !s.store.Authenticate(username, password) {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.issuer.Generate(username)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
