package session

import "errors"

var (
	// ErrNotEnrolled indicates the device holds no complete enrollment.
	ErrNotEnrolled = errors.New("session: device not enrolled")
	// ErrNoSessionToken indicates the encrypted token is missing from the
	// session record.
	ErrNoSessionToken = errors.New("session: no stored session token")
	// ErrDeviceRevoked indicates the remote device binding is inactive; the
	// local session has been invalidated.
	ErrDeviceRevoked = errors.New("session: device revoked")
	// ErrOperationInFlight indicates an enrollment or authentication is
	// already running.
	ErrOperationInFlight = errors.New("session: operation already in flight")
	// ErrIdentityUnavailable indicates the identity gateway holds no current
	// identity for the decrypted session.
	ErrIdentityUnavailable = errors.New("session: no current identity")
)
