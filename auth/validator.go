package auth

import (
	"chat-relay/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RegisterRequest is the registration payload. The username doubles as the
// public chat handle, so it is kept short and printable.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=2,max=32,printascii,excludesall=0x20"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if req.Password == req.Username {
		return errors.ErrInvalidPassword
	}
	return nil
}
