// Package cryptogate provides authenticated encryption of session artifacts
// over the installation key, gated by a biometric proof. Confidentiality and
// integrity come from a single AEAD primitive; there is no separate MAC.
package cryptogate

import (
	"context"
	"errors"
	"fmt"

	"github.com/jtmarsh/latchkey/biometric"
	"github.com/jtmarsh/latchkey/keyvault"
)

var (
	// ErrEmptyPlaintext is returned before any key material is touched.
	ErrEmptyPlaintext = errors.New("cryptogate: empty plaintext")
	// ErrEmptyBlob is returned for a blob with missing ciphertext or IV.
	ErrEmptyBlob = errors.New("cryptogate: empty ciphertext or IV")
	// ErrTamperDetected is returned when AEAD authentication fails; the blob
	// was modified or encrypted under a different key.
	ErrTamperDetected = errors.New("cryptogate: tamper detected")
)

// Gate encrypts and decrypts through the KeyVault, obtaining biometric-bound
// ciphers from the configured gate.
type Gate struct {
	vault  *keyvault.Vault
	bio    biometric.Gate
	prompt biometric.PromptConfig
}

// Option configures a Gate.
type Option func(*Gate)

// WithPrompt sets the prompt shown for biometric challenges.
func WithPrompt(prompt biometric.PromptConfig) Option {
	return func(g *Gate) {
		g.prompt = prompt
	}
}

// New creates a Gate over the given vault and biometric gate.
func New(vault *keyvault.Vault, bio biometric.Gate, opts ...Option) *Gate {
	g := &Gate{
		vault: vault,
		bio:   bio,
		prompt: biometric.PromptConfig{
			Title:          "Confirm it's you",
			NegativeButton: "Cancel",
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Encrypt seals plaintext under the installation key after a successful
// biometric proof.
func (g *Gate) Encrypt(ctx context.Context, plaintext []byte) (Blob, error) {
	if len(plaintext) == 0 {
		return Blob{}, ErrEmptyPlaintext
	}

	c, err := g.vault.CipherForEncrypt()
	if err != nil {
		return Blob{}, err
	}

	bound, err := g.bio.AuthenticateForEncryption(ctx, c, g.prompt)
	if err != nil {
		return Blob{}, err
	}

	ciphertext, iv, err := bound.Seal(plaintext)
	if err != nil {
		return Blob{}, fmt.Errorf("sealing plaintext: %w", err)
	}
	return Blob{Ciphertext: ciphertext, IV: iv}, nil
}

// Decrypt opens a blob after a successful biometric proof. A modified blob
// fails with ErrTamperDetected; wrong plaintext is never returned silently.
func (g *Gate) Decrypt(ctx context.Context, blob Blob) ([]byte, error) {
	if len(blob.Ciphertext) == 0 || len(blob.IV) == 0 {
		return nil, ErrEmptyBlob
	}

	c, err := g.vault.CipherForDecrypt(blob.IV)
	if err != nil {
		return nil, err
	}

	bound, err := g.bio.AuthenticateForDecryption(ctx, c, g.prompt)
	if err != nil {
		return nil, err
	}

	plaintext, err := bound.Open(blob.Ciphertext)
	if err != nil {
		if errors.Is(err, keyvault.ErrKeyInvalidated) || errors.Is(err, keyvault.ErrKeyNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrTamperDetected, err)
	}
	return plaintext, nil
}

// EncryptToBase64 is Encrypt with the blob rendered in its wire form.
func (g *Gate) EncryptToBase64(ctx context.Context, plaintext []byte) (string, error) {
	blob, err := g.Encrypt(ctx, plaintext)
	if err != nil {
		return "", err
	}
	return blob.Base64(), nil
}

// DecryptFromBase64 is Decrypt over the wire form.
func (g *Gate) DecryptFromBase64(ctx context.Context, encoded string) ([]byte, error) {
	blob, err := FromBase64(encoded)
	if err != nil {
		return nil, err
	}
	return g.Decrypt(ctx, blob)
}
