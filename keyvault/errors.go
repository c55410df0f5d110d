package keyvault

import "errors"

var (
	// ErrTierUnavailable is returned by a Provider when it cannot create keys
	// in the requested isolation tier.
	ErrTierUnavailable = errors.New("key tier unavailable")
	// ErrTierRequiredUnavailable indicates policy mandates the top isolation
	// tier and the hardware does not offer it.
	ErrTierRequiredUnavailable = errors.New("required key tier unavailable")
	// ErrKeyGenerationFailed indicates no supported tier could create the key.
	ErrKeyGenerationFailed = errors.New("key generation failed")
	// ErrKeyNotFound indicates no key exists for this installation.
	ErrKeyNotFound = errors.New("key not found")
	// ErrKeyExists indicates a key already exists and Generate was called.
	ErrKeyExists = errors.New("key already exists")
	// ErrKeyInvalidated indicates the key was permanently invalidated by a
	// change in the device's biometric enrollment.
	ErrKeyInvalidated = errors.New("key permanently invalidated")
	// ErrCipherConsumed indicates a bound cipher was used more than once.
	ErrCipherConsumed = errors.New("bound cipher already consumed")
)
