// Package keyvault manages the lifecycle of the single hardware-protected
// symmetric key owned by an installation. The key is auth-bound (every use
// requires a fresh biometric proof unless a grace window is configured) and
// is permanently invalidated if the device's biometric enrollment changes.
package keyvault

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jtmarsh/latchkey/internal/util"
)

const defaultAlias = "latchkey.session.v1"

// Vault owns the zero-or-one installation key and brokers cipher creation.
type Vault struct {
	provider Provider
	alias    string

	requireTopTier      bool
	authValiditySeconds int

	mu        sync.Mutex
	lastProof time.Time
	now       func() time.Time
}

// Option configures a Vault.
type Option func(*Vault)

// WithAlias overrides the key alias.
func WithAlias(alias string) Option {
	return func(v *Vault) {
		v.alias = alias
	}
}

// WithRequireTopTier mandates the highest isolation tier: when set, key
// generation fails terminally if StrongBox is unavailable instead of falling
// back to the standard hardware tier.
func WithRequireTopTier(require bool) Option {
	return func(v *Vault) {
		v.requireTopTier = require
	}
}

// WithAuthValidity sets the grace window in seconds during which a biometric
// proof stays valid for further key uses. Zero (the default) requires a fresh
// proof per use.
func WithAuthValidity(seconds int) Option {
	return func(v *Vault) {
		v.authValiditySeconds = seconds
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) {
		v.now = now
	}
}

// New creates a Vault over the given provider.
func New(provider Provider, opts ...Option) *Vault {
	v := &Vault{
		provider: provider,
		alias:    defaultAlias,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// GenerateKey creates the installation key, trying the highest isolation tier
// first and falling back to the standard hardware tier unless top-tier policy
// forbids it. Fails with ErrKeyExists if a key is already present.
func (v *Vault) GenerateKey() error {
	exists, err := v.provider.Exists(v.alias)
	if err != nil {
		return fmt.Errorf("checking for existing key: %w", err)
	}
	if exists {
		return ErrKeyExists
	}

	spec := KeySpec{
		Alias:                       v.alias,
		Tier:                        TierStrongBox,
		AuthBound:                   true,
		AuthValiditySeconds:         v.authValiditySeconds,
		InvalidateOnBiometricChange: true,
	}

	err = v.provider.Generate(spec)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrTierUnavailable) {
		return fmt.Errorf("%w: %w", ErrKeyGenerationFailed, err)
	}
	if v.requireTopTier {
		return fmt.Errorf("%w: %w", ErrTierRequiredUnavailable, err)
	}

	spec.Tier = TierHardware
	if err := v.provider.Generate(spec); err != nil {
		return fmt.Errorf("%w: %w", ErrKeyGenerationFailed, err)
	}
	return nil
}

// HasKey reports whether the installation key exists.
func (v *Vault) HasKey() (bool, error) {
	return v.provider.Exists(v.alias)
}

// GetOrCreateKey generates the key if it does not already exist.
func (v *Vault) GetOrCreateKey() error {
	exists, err := v.provider.Exists(v.alias)
	if err != nil {
		return fmt.Errorf("checking for existing key: %w", err)
	}
	if exists {
		return nil
	}
	return v.GenerateKey()
}

// DeleteKey removes the installation key. Idempotent, and never requires a
// biometric proof.
func (v *Vault) DeleteKey() error {
	return v.provider.Delete(v.alias)
}

// CipherForEncrypt returns an unbound cipher for encryption. The cipher must
// be bound by a biometric gate before it can be used.
func (v *Vault) CipherForEncrypt() (*Cipher, error) {
	if err := v.requireKey(); err != nil {
		return nil, err
	}
	return &Cipher{vault: v}, nil
}

// CipherForDecrypt returns an unbound cipher for decryption with the given
// 12-byte IV.
func (v *Vault) CipherForDecrypt(iv []byte) (*Cipher, error) {
	if err := v.requireKey(); err != nil {
		return nil, err
	}
	if len(iv) != util.GCMIVSize {
		return nil, fmt.Errorf("invalid IV size: got %d, want %d", len(iv), util.GCMIVSize)
	}
	return &Cipher{vault: v, decrypt: true, iv: util.CopyBytes(iv)}, nil
}

// NotifyBiometricChange permanently invalidates the installation key. Called
// by biometric gates when device enrollment changes.
func (v *Vault) NotifyBiometricChange() {
	v.provider.NotifyBiometricChange()
}

// WithinAuthValidity reports whether the grace window from the last
// successful proof is still open. With a zero window it is always false,
// forcing a fresh proof per use.
func (v *Vault) WithinAuthValidity() bool {
	if v.authValiditySeconds <= 0 {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.lastProof.IsZero() {
		return false
	}
	return v.now().Sub(v.lastProof) <= time.Duration(v.authValiditySeconds)*time.Second
}

func (v *Vault) recordProof() {
	v.mu.Lock()
	v.lastProof = v.now()
	v.mu.Unlock()
}

func (v *Vault) requireKey() error {
	exists, err := v.provider.Exists(v.alias)
	if err != nil {
		return fmt.Errorf("checking for key: %w", err)
	}
	if !exists {
		return ErrKeyNotFound
	}
	return nil
}
