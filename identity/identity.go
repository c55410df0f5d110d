// Package identity defines the gateway that exchanges a one-time temporary
// credential for an identity and bearer artifact, and can permanently
// invalidate the temporary credential afterwards.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrUserNotFound is returned when no account matches the email.
	ErrUserNotFound = errors.New("identity: user not found")
	// ErrInvalidCredential is returned when the temporary credential is wrong.
	ErrInvalidCredential = errors.New("identity: invalid credential")
	// ErrNotSignedIn is returned by operations that require a live identity
	// session.
	ErrNotSignedIn = errors.New("identity: not signed in")
)

// Identity is an authenticated user plus the bearer artifact issued for it.
type Identity struct {
	UserID string
	Email  string
	// Token is the bearer artifact; the core only ever persists it encrypted.
	Token string
}

// Gateway is the identity collaborator contract.
type Gateway interface {
	// SignInWithTemporaryCredential exchanges a temporary credential for an
	// identity and bearer artifact.
	SignInWithTemporaryCredential(ctx context.Context, email, tempSecret string) (Identity, error)
	// ReplaceTemporaryCredential replaces the current account's credential
	// with newSecret, rendering the temporary one permanently unusable.
	ReplaceTemporaryCredential(ctx context.Context, newSecret string) error
	// CurrentIdentity returns the signed-in identity, if any.
	CurrentIdentity(ctx context.Context) (Identity, bool)
	// SignOut ends the identity session.
	SignOut(ctx context.Context) error
}
