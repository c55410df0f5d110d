// Package sessionstore provides local persistence for the session record:
// four named opaque entries, no policy. The token entry arrives already
// encrypted; the store never sees plaintext secrets.
package sessionstore

import "context"

// Field names of the persisted session record.
const (
	FieldEncryptedToken = "encrypted_token"
	FieldDeviceID       = "device_id"
	FieldUserID         = "user_id"
	FieldLastActivity   = "last_activity"
)

// Fields lists every session record entry, in write order.
var Fields = []string{FieldEncryptedToken, FieldDeviceID, FieldUserID, FieldLastActivity}

// Store is a simple keyed string store over the named session fields.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes the value for key.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Absent keys are a no-op.
	Delete(ctx context.Context, key string) error
}

// ClearAll deletes every session record field.
func ClearAll(ctx context.Context, s Store) error {
	for _, f := range Fields {
		if err := s.Delete(ctx, f); err != nil {
			return err
		}
	}
	return nil
}
