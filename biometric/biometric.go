// Package biometric defines the gate that converts a biometric proof into a
// one-time-usable cryptographic capability. The core consumes the Gate
// interface; platform integrations (fingerprint, face, Touch ID) implement it.
package biometric

import (
	"context"
	"errors"

	"github.com/jtmarsh/latchkey/keyvault"
)

var (
	// ErrHardwareAbsent is returned when the device has no biometric hardware.
	ErrHardwareAbsent = errors.New("biometric: hardware absent")
	// ErrHardwareUnavailable is returned when the hardware is temporarily busy.
	ErrHardwareUnavailable = errors.New("biometric: hardware unavailable")
	// ErrNoneEnrolled is returned when no biometric is enrolled on the device.
	ErrNoneEnrolled = errors.New("biometric: no biometric enrolled")
	// ErrUserCancelled is returned when the user dismisses the prompt.
	ErrUserCancelled = errors.New("biometric: user cancelled")
	// ErrTimeout is returned when the prompt times out.
	ErrTimeout = errors.New("biometric: prompt timed out")
	// ErrLockout is returned after too many failed attempts.
	ErrLockout = errors.New("biometric: too many attempts")
	// ErrAuthFailed is returned on a generic authentication failure.
	ErrAuthFailed = errors.New("biometric: authentication failed")
	// ErrInternal is returned on an internal crypto or platform error.
	ErrInternal = errors.New("biometric: internal error")
)

// IsUserAction reports whether err is the user declining (cancel or lockout)
// rather than a hard failure. Callers surface different guidance for the two,
// but both abort the operation in progress.
func IsUserAction(err error) bool {
	return errors.Is(err, ErrUserCancelled) || errors.Is(err, ErrLockout)
}

// PromptConfig describes the challenge shown to the user.
type PromptConfig struct {
	Title          string
	Subtitle       string
	NegativeButton string
}

// Gate presents a biometric challenge and, on success, binds the supplied
// cipher to the proof. Both methods block until the user completes or cancels
// the challenge, the context is cancelled, or a hardware error occurs. The
// returned cipher is usable for exactly one cryptographic operation.
type Gate interface {
	AuthenticateForEncryption(ctx context.Context, c *keyvault.Cipher, prompt PromptConfig) (*keyvault.BoundCipher, error)
	AuthenticateForDecryption(ctx context.Context, c *keyvault.Cipher, prompt PromptConfig) (*keyvault.BoundCipher, error)
}
