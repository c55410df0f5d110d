// Package registry defines the remote device registry: the server-side record
// binding one physical device to one user, used for remote revocation.
package registry

import (
	"context"
	"errors"
)

var (
	// ErrBindingFailed indicates the registry rejected or could not create
	// the device binding.
	ErrBindingFailed = errors.New("registry: device binding failed")
	// ErrValidationFailed indicates the binding's status could not be read.
	ErrValidationFailed = errors.New("registry: device validation failed")
	// ErrNotBound indicates no binding exists for the user.
	ErrNotBound = errors.New("registry: device not bound")
)

// Registry is the device registry collaborator contract.
type Registry interface {
	// Bind registers this device under the user and returns the opaque
	// device id.
	Bind(ctx context.Context, userID string) (string, error)
	// Validate reports whether the user's binding is still active. An
	// inactive binding must force local sign-out on the next check.
	Validate(ctx context.Context, userID string) (bool, error)
	// Revoke removes the user's binding.
	Revoke(ctx context.Context, userID string) error
}
