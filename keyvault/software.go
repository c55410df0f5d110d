package keyvault

import (
	"fmt"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/jtmarsh/latchkey/internal/util"
)

var hkdfInfo = []byte("latchkey:key:v1")

// SoftwareProvider implements Provider in process memory. The master seed is
// sealed in a memguard Enclave and per-alias keys are derived with HKDF on
// demand, so raw key bytes exist only transiently during an operation.
//
// It stands in for a real secure element; production deployments plug a
// TPM/Secure Enclave implementation behind the same interface.
type SoftwareProvider struct {
	mu     sync.Mutex
	master *memguard.Enclave
	keys   map[string]*softKey
	tiers  map[Tier]bool
}

type softKey struct {
	spec        KeySpec
	salt        []byte
	invalidated bool
}

// SoftwareOption configures a SoftwareProvider.
type SoftwareOption func(*SoftwareProvider)

// WithSupportedTiers overrides which isolation tiers the provider claims to
// offer. The default is TierHardware only.
func WithSupportedTiers(tiers ...Tier) SoftwareOption {
	return func(p *SoftwareProvider) {
		p.tiers = make(map[Tier]bool, len(tiers))
		for _, t := range tiers {
			p.tiers[t] = true
		}
	}
}

// NewSoftwareProvider creates a SoftwareProvider with a fresh random master
// seed.
func NewSoftwareProvider(opts ...SoftwareOption) (*SoftwareProvider, error) {
	seed, err := util.RandomBytes(util.AESKeySize)
	if err != nil {
		return nil, fmt.Errorf("generating master seed: %w", err)
	}

	p := &SoftwareProvider{
		master: memguard.NewEnclave(seed),
		keys:   make(map[string]*softKey),
		tiers:  map[Tier]bool{TierHardware: true},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *SoftwareProvider) Generate(spec KeySpec) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.tiers[spec.Tier] {
		return fmt.Errorf("%w: %s", ErrTierUnavailable, spec.Tier)
	}

	salt, err := util.RandomBytes(16)
	if err != nil {
		return fmt.Errorf("generating key salt: %w", err)
	}

	p.keys[spec.Alias] = &softKey{spec: spec, salt: salt}
	return nil
}

func (p *SoftwareProvider) Exists(alias string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.keys[alias]
	return ok, nil
}

// Delete is a no-op when the alias is absent, and never requires a
// biometric proof.
func (p *SoftwareProvider) Delete(alias string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.keys, alias)
	return nil
}

func (p *SoftwareProvider) Seal(alias string, plaintext []byte) ([]byte, []byte, error) {
	rawKey, err := p.deriveKey(alias)
	if err != nil {
		return nil, nil, err
	}
	defer util.WipeBytes(rawKey)

	return util.SealAES(plaintext, rawKey)
}

func (p *SoftwareProvider) Open(alias string, ciphertext, iv []byte) ([]byte, error) {
	rawKey, err := p.deriveKey(alias)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(rawKey)

	return util.OpenAES(ciphertext, iv, rawKey)
}

func (p *SoftwareProvider) NotifyBiometricChange() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range p.keys {
		if k.spec.InvalidateOnBiometricChange {
			k.invalidated = true
		}
	}
}

func (p *SoftwareProvider) deriveKey(alias string) ([]byte, error) {
	p.mu.Lock()
	k, ok := p.keys[alias]
	if !ok {
		p.mu.Unlock()
		return nil, ErrKeyNotFound
	}
	if k.invalidated {
		p.mu.Unlock()
		return nil, ErrKeyInvalidated
	}
	salt := util.CopyBytes(k.salt)
	p.mu.Unlock()

	buf, err := p.master.Open()
	if err != nil {
		return nil, fmt.Errorf("opening master seed enclave: %w", err)
	}
	defer buf.Destroy()

	info := append(util.CopyBytes(hkdfInfo), []byte(":"+alias)...)
	rawKey, err := util.HKDF(buf.Bytes(), salt, info)
	if err != nil {
		return nil, fmt.Errorf("deriving key for alias %q: %w", alias, err)
	}
	return rawKey, nil
}

var _ Provider = (*SoftwareProvider)(nil)
