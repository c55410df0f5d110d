package cryptogate

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/jtmarsh/latchkey/biometric"
	"github.com/jtmarsh/latchkey/keyvault"
)

func newTestGate(t *testing.T) (*Gate, *biometric.SimGate) {
	t.Helper()
	provider, err := keyvault.NewSoftwareProvider()
	if err != nil {
		t.Fatalf("NewSoftwareProvider failed: %v", err)
	}
	vault := keyvault.New(provider)
	if err := vault.GenerateKey(); err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	sim := biometric.NewSimGate(vault)
	return New(vault, sim), sim
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	for _, plain := range [][]byte{
		[]byte("a"),
		[]byte("bearer-token-artifact"),
		bytes.Repeat([]byte{0xAB}, 4096),
	} {
		blob, err := g.Encrypt(ctx, plain)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		out, err := g.Decrypt(ctx, blob)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if !bytes.Equal(out, plain) {
			t.Errorf("round trip mismatch for %d-byte plaintext", len(plain))
		}
	}
}

func TestEncrypt_EmptyPlaintext(t *testing.T) {
	g, _ := newTestGate(t)
	if _, err := g.Encrypt(context.Background(), nil); !errors.Is(err, ErrEmptyPlaintext) {
		t.Fatalf("expected ErrEmptyPlaintext, got %v", err)
	}
}

func TestDecrypt_EmptyBlob(t *testing.T) {
	g, _ := newTestGate(t)
	if _, err := g.Decrypt(context.Background(), Blob{}); !errors.Is(err, ErrEmptyBlob) {
		t.Fatalf("expected ErrEmptyBlob, got %v", err)
	}
	if _, err := g.Decrypt(context.Background(), Blob{Ciphertext: []byte("x")}); !errors.Is(err, ErrEmptyBlob) {
		t.Fatalf("expected ErrEmptyBlob for missing IV, got %v", err)
	}
}

func TestDecrypt_TamperDetected(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	blob, err := g.Encrypt(ctx, []byte("integrity matters"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	for i := range blob.Ciphertext {
		mangled := Blob{
			IV:         blob.IV,
			Ciphertext: append([]byte(nil), blob.Ciphertext...),
		}
		mangled.Ciphertext[i] ^= 0x01
		if _, err := g.Decrypt(ctx, mangled); !errors.Is(err, ErrTamperDetected) {
			t.Fatalf("expected ErrTamperDetected at byte %d, got %v", i, err)
		}
	}
}

func TestDecrypt_BiometricFailurePropagates(t *testing.T) {
	g, sim := newTestGate(t)
	ctx := context.Background()

	blob, err := g.Encrypt(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	sim.Script(biometric.ErrLockout)
	if _, err := g.Decrypt(ctx, blob); !errors.Is(err, biometric.ErrLockout) {
		t.Fatalf("expected ErrLockout, got %v", err)
	}
}

func TestBlob_Base64RoundTrip(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	encoded, err := g.EncryptToBase64(ctx, []byte("wire format"))
	if err != nil {
		t.Fatalf("EncryptToBase64 failed: %v", err)
	}
	out, err := g.DecryptFromBase64(ctx, encoded)
	if err != nil {
		t.Fatalf("DecryptFromBase64 failed: %v", err)
	}
	if string(out) != "wire format" {
		t.Errorf("expected %q, got %q", "wire format", out)
	}
}

func TestFromBase64_Invalid(t *testing.T) {
	for _, s := range []string{"", "!!!not-base64!!!", "c2hvcnQ="} {
		if _, err := FromBase64(s); err == nil {
			t.Errorf("FromBase64(%q) expected error", s)
		}
	}
}

func TestBlob_IVLayout(t *testing.T) {
	blob := Blob{IV: bytes.Repeat([]byte{1}, 12), Ciphertext: []byte("ct")}
	parsed, err := FromBase64(blob.Base64())
	if err != nil {
		t.Fatalf("FromBase64 failed: %v", err)
	}
	if !bytes.Equal(parsed.IV, blob.IV) || !bytes.Equal(parsed.Ciphertext, blob.Ciphertext) {
		t.Error("wire layout must be iv(12) followed by ciphertext")
	}
}
