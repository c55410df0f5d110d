package cryptogate

import (
	"fmt"

	"github.com/jtmarsh/latchkey/internal/util"
)

// Blob is an immutable encrypted value. Wire form: base64(iv[12] ++ ciphertext).
type Blob struct {
	Ciphertext []byte
	IV         []byte
}

// Base64 renders the blob in its wire form.
func (b Blob) Base64() string {
	buf := make([]byte, 0, len(b.IV)+len(b.Ciphertext))
	buf = append(buf, b.IV...)
	buf = append(buf, b.Ciphertext...)
	return util.Base64Encode(buf)
}

// FromBase64 parses the wire form back into a Blob.
func FromBase64(encoded string) (Blob, error) {
	if encoded == "" {
		return Blob{}, ErrEmptyBlob
	}
	raw, err := util.Base64Decode(encoded)
	if err != nil {
		return Blob{}, fmt.Errorf("decoding blob: %w", err)
	}
	if len(raw) <= util.GCMIVSize {
		return Blob{}, fmt.Errorf("blob too short: %d bytes", len(raw))
	}
	return Blob{
		IV:         util.CopyBytes(raw[:util.GCMIVSize]),
		Ciphertext: util.CopyBytes(raw[util.GCMIVSize:]),
	}, nil
}
