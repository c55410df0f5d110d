package registry

import (
	"context"
	"errors"
	"testing"
)

func TestBindValidateRevoke(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()

	deviceID, err := r.Bind(ctx, "user-1")
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if deviceID == "" {
		t.Error("device id must be non-empty")
	}

	active, err := r.Validate(ctx, "user-1")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !active {
		t.Error("fresh binding should be active")
	}

	if err := r.Revoke(ctx, "user-1"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	active, err = r.Validate(ctx, "user-1")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if active {
		t.Error("revoked binding should not be active")
	}
}

func TestDeactivate(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()

	if _, err := r.Bind(ctx, "user-1"); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	r.Deactivate("user-1")

	active, err := r.Validate(ctx, "user-1")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if active {
		t.Error("deactivated binding should not be active")
	}
	if !r.Bound("user-1") {
		t.Error("deactivated binding should still exist")
	}
}

func TestFaultInjection(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	r.BindErr = ErrBindingFailed

	if _, err := r.Bind(ctx, "user-1"); !errors.Is(err, ErrBindingFailed) {
		t.Fatalf("expected ErrBindingFailed, got %v", err)
	}
	if r.Bound("user-1") {
		t.Error("failed bind must not leave a binding")
	}
}
