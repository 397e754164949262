// Package auth provides authentication support for catalog requests.
//
// Session acquisition (the actual login dance against the remote service) is
// out of scope; this package only stores an already-obtained session token
// and applies it to outgoing requests.
package auth

import "net/http"

// Authenticator defines the interface for applying authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request) error
	Type() Type
}

// Type represents the type of authentication.
type Type string

// Authentication types.
const (
	// SessionAuthType authenticates with a stored session token.
	SessionAuthType Type = "session"
	// NoAuthType performs unauthenticated requests (used in tests).
	NoAuthType Type = "none"
)

// SessionAuth authenticates requests with a bearer session token.
type SessionAuth struct {
	Token string
}

// Apply adds the session token to the HTTP request.
func (s SessionAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+s.Token)
	return nil
}

// Type returns the authentication type (SessionAuthType).
func (s SessionAuth) Type() Type { return SessionAuthType }

// NoAuth applies no authentication.
type NoAuth struct{}

// Apply is a no-op.
func (NoAuth) Apply(*http.Request) error { return nil }

// Type returns the authentication type (NoAuthType).
func (NoAuth) Type() Type { return NoAuthType }
