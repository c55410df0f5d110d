package keyvault

// Tier identifies the hardware isolation level backing a key.
type Tier int

const (
	// TierStrongBox is the highest isolation tier (dedicated secure element).
	TierStrongBox Tier = iota
	// TierHardware is the standard hardware-backed tier (TEE or equivalent).
	TierHardware
)

func (t Tier) String() string {
	switch t {
	case TierStrongBox:
		return "StrongBox"
	case TierHardware:
		return "Hardware"
	default:
		return "Unknown"
	}
}

// KeySpec describes a key to be created inside the hardware boundary.
type KeySpec struct {
	Alias string
	Tier  Tier
	// AuthBound keys require a fresh biometric proof per use, unless the
	// grace window set by AuthValiditySeconds is still open.
	AuthBound           bool
	AuthValiditySeconds int
	// InvalidateOnBiometricChange makes the key permanently unusable if the
	// device's biometric enrollment changes.
	InvalidateOnBiometricChange bool
}

// Provider is the hardware boundary: key material lives behind it and never
// crosses it. Implementations broker all cryptographic operations.
//
// Generate returns ErrTierUnavailable when the requested tier is not offered.
// Seal and Open return ErrKeyInvalidated once a biometric-change invalidation
// has fired for the key, and ErrKeyNotFound when the alias is absent.
type Provider interface {
	Generate(spec KeySpec) error
	Exists(alias string) (bool, error)
	Delete(alias string) error
	Seal(alias string, plaintext []byte) (ciphertext, iv []byte, err error)
	Open(alias string, ciphertext, iv []byte) ([]byte, error)
	// NotifyBiometricChange permanently invalidates every key created with
	// InvalidateOnBiometricChange.
	NotifyBiometricChange()
}
