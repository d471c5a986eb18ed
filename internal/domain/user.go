// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxUsernameLen = 36

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

// PrincipalID is the identity resolved by the authentication collaborator.
type PrincipalID string

type Principal struct {
	ID       PrincipalID `json:"id"`
	Username string      `json:"username"`
}

// NewGuest is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewGuest() *Principal {
	return &Principal{ID: PrincipalID(uuid.NewString()), Username: "guest"}
}

func (p *Principal) SetUsername(username string) error {
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	p.Username = username
	return nil
}
