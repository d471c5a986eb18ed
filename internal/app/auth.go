package app

import (
	"errors"
	"sync"

	"github.com/AhmedLyanov/VizorLite/internal/domain"
)

var ErrInvalidCredential = errors.New("invalid credential")

// Authenticator is the seam to the excluded identity service: a valid
// credential resolves to a principal, anything else is rejected.
type Authenticator interface {
	Verify(credential string) (*domain.Principal, error)
}

// TokenAuthenticator treats every client token as a guest identity,
// minting the principal on first sight. Stands in for the real user
// service during local runs and tests.
type TokenAuthenticator struct {
	mu    sync.Mutex
	known map[string]*domain.Principal
}

func NewTokenAuthenticator() *TokenAuthenticator {
	return &TokenAuthenticator{known: make(map[string]*domain.Principal)}
}

func (a *TokenAuthenticator) Verify(credential string) (*domain.Principal, error) {
	if credential == "" {
		return nil, ErrInvalidCredential
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.known[credential]; ok {
		return p, nil
	}
	p := domain.NewGuest()
	a.known[credential] = p
	return p, nil
}
