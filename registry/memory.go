package registry

import (
	"context"
	"sync"

	"github.com/jtmarsh/latchkey/internal/uuid"
)

// MemoryRegistry is an in-process Registry for tests and demos.
type MemoryRegistry struct {
	mu       sync.Mutex
	bindings map[string]*binding

	// BindErr, ValidateErr and RevokeErr, when set, are returned by the
	// corresponding method before any state change. Used to inject faults.
	BindErr     error
	ValidateErr error
	RevokeErr   error
}

type binding struct {
	deviceID string
	active   bool
}

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{bindings: make(map[string]*binding)}
}

func (r *MemoryRegistry) Bind(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.BindErr != nil {
		return "", r.BindErr
	}

	b := &binding{deviceID: uuid.New(), active: true}
	r.bindings[userID] = b
	return b.deviceID, nil
}

func (r *MemoryRegistry) Validate(ctx context.Context, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ValidateErr != nil {
		return false, r.ValidateErr
	}

	b, ok := r.bindings[userID]
	if !ok {
		return false, nil
	}
	return b.active, nil
}

func (r *MemoryRegistry) Revoke(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.RevokeErr != nil {
		return r.RevokeErr
	}
	delete(r.bindings, userID)
	return nil
}

// Deactivate flips the user's binding to inactive without removing it,
// simulating a remote administrator disabling the device.
func (r *MemoryRegistry) Deactivate(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bindings[userID]; ok {
		b.active = false
	}
}

// Bound reports whether a binding exists for the user.
func (r *MemoryRegistry) Bound(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.bindings[userID]
	return ok
}

var _ Registry = (*MemoryRegistry)(nil)
