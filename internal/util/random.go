package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	secretUpper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	secretLower   = "abcdefghijkmnpqrstuvwxyz"
	secretDigits  = "23456789"
	secretSymbols = "!@#$%^&*()-_=+[]{}<>?"
)

var secretAlphabet = secretUpper + secretLower + secretDigits + secretSymbols

// MinSecretLength is the smallest acceptable replacement-secret length.
const MinSecretLength = 32

// RandomSecret generates a high-entropy secret of n characters drawn from a
// mixed alphabet (upper, lower, digits, symbols), with at least one character
// from each class. Used to permanently replace temporary credentials; the
// result must never be persisted or displayed.
func RandomSecret(n int) (string, error) {
	if n < MinSecretLength {
		return "", fmt.Errorf("secret length %d below minimum %d", n, MinSecretLength)
	}

	buf := make([]byte, n)
	classes := []string{secretUpper, secretLower, secretDigits, secretSymbols}
	for i, class := range classes {
		c, err := randomFrom(class)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}
	for i := len(classes); i < n; i++ {
		c, err := randomFrom(secretAlphabet)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}

	// Fisher-Yates so the per-class characters don't sit at fixed positions.
	for i := n - 1; i > 0; i-- {
		j, err := RandomIntn(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf), nil
}

func randomFrom(alphabet string) (byte, error) {
	idx, err := RandomIntn(len(alphabet))
	if err != nil {
		return 0, fmt.Errorf("generating random char index: %w", err)
	}
	return alphabet[idx], nil
}

func RandomIntn(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("generating random number: %w", err)
	}
	return int(n.Int64()), nil
}

func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}

// ContainsAllClasses reports whether s has at least one upper, lower, digit,
// and symbol character from the secret alphabet.
func ContainsAllClasses(s string) bool {
	for _, class := range []string{secretUpper, secretLower, secretDigits, secretSymbols} {
		if !strings.ContainsAny(s, class) {
			return false
		}
	}
	return true
}
