package keyvault

import "github.com/jtmarsh/latchkey/internal/util"

// Cipher is an uninitialized-for-use cipher referencing the installation key.
// It carries no key material and exposes no cryptographic operations; a
// biometric gate converts it into a BoundCipher after a successful proof.
type Cipher struct {
	vault   *Vault
	decrypt bool
	iv      []byte
}

// Decrypt reports whether this cipher was requested for decryption.
func (c *Cipher) Decrypt() bool {
	return c.decrypt
}

// IV returns the IV the cipher was initialized with (decrypt mode only).
func (c *Cipher) IV() []byte {
	return util.CopyBytes(c.iv)
}

// Bind converts a Cipher into a single-use BoundCipher. It is intended to be
// called by biometric gate implementations after a successful proof;
// application code obtains BoundCiphers only through a gate.
func Bind(c *Cipher) *BoundCipher {
	c.vault.recordProof()
	return &BoundCipher{cipher: c}
}

// BoundCipher is a cipher authorized by a biometric proof, usable for exactly
// one cryptographic operation.
type BoundCipher struct {
	cipher *Cipher
	used   bool
}

// Seal encrypts plaintext with the installation key, returning the ciphertext
// and the generated IV.
func (b *BoundCipher) Seal(plaintext []byte) (ciphertext, iv []byte, err error) {
	if b.used {
		return nil, nil, ErrCipherConsumed
	}
	b.used = true
	return b.cipher.vault.provider.Seal(b.cipher.vault.alias, plaintext)
}

// Open decrypts ciphertext with the installation key and the IV the cipher
// was initialized with. Tampered input fails authentication.
func (b *BoundCipher) Open(ciphertext []byte) ([]byte, error) {
	if b.used {
		return nil, ErrCipherConsumed
	}
	b.used = true
	return b.cipher.vault.provider.Open(b.cipher.vault.alias, ciphertext, b.cipher.iv)
}
