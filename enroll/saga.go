// Package enroll implements the enrollment saga: the multi-step,
// rollback-capable transaction that exchanges a one-time temporary credential
// for a hardware-protected, biometric-gated session. Each step has a
// compensating action; on failure or cancellation the compensations of every
// completed step run in reverse order, so no partial session record, orphaned
// key, or orphaned remote binding ever survives a failed run.
package enroll

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/jtmarsh/latchkey/cryptogate"
	"github.com/jtmarsh/latchkey/identity"
	"github.com/jtmarsh/latchkey/internal/flight"
	"github.com/jtmarsh/latchkey/internal/util"
	"github.com/jtmarsh/latchkey/keyvault"
	"github.com/jtmarsh/latchkey/registry"
	"github.com/jtmarsh/latchkey/sessionstore"
)

// Deps are the collaborators the saga drives.
type Deps struct {
	Vault    *keyvault.Vault
	Crypto   *cryptogate.Gate
	Identity identity.Gateway
	Registry registry.Registry
	Store    sessionstore.Store
}

// Manager runs enrollment sagas and owns the enrollment lifecycle
// (IsDeviceEnrolled, Unenroll).
type Manager struct {
	deps  Deps
	guard *flight.Guard
	log   *slog.Logger
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger. If not set, a default JSON logger
// writing to stderr is used.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithFlightGuard sets the single-flight guard shared with the session
// manager, serializing enrollment against authentication.
func WithFlightGuard(g *flight.Guard) Option {
	return func(m *Manager) {
		m.guard = g
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a Manager.
func New(deps Deps, opts ...Option) *Manager {
	m := &Manager{
		deps:  deps,
		guard: &flight.Guard{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return m
}

// FlightGuard returns the single-flight guard, for sharing with the session
// manager.
func (m *Manager) FlightGuard() *flight.Guard {
	return m.guard
}

// attempt carries the artifacts produced by completed steps of one run.
type attempt struct {
	user     identity.Identity
	blob     cryptogate.Blob
	deviceID string
}

type sagaStep struct {
	// step is the state emitted when the action starts. Consecutive actions
	// may share a state.
	step       Step
	run        func(ctx context.Context, a *attempt) error
	compensate func(ctx context.Context, a *attempt)
}

// Enroll starts one enrollment attempt and returns its progress stream. The
// stream emits every state as it is entered, ends with exactly one terminal
// state, and is then closed. Cancelling ctx aborts the run; compensation for
// completed steps still executes before the terminal state is emitted.
func (m *Manager) Enroll(ctx context.Context, email, tempSecret string) <-chan State {
	// Buffer fits every state of a run so the saga never blocks on a slow
	// consumer.
	ch := make(chan State, int(StepFailed)+1)
	go func() {
		defer close(ch)
		m.run(ctx, email, tempSecret, ch)
	}()
	return ch
}

func (m *Manager) run(ctx context.Context, email, tempSecret string, ch chan<- State) {
	if !m.guard.TryAcquire() {
		ch <- State{Step: StepFailed, Err: ErrInProgress, FailedAt: StepIdle}
		return
	}
	defer m.guard.Release()

	ch <- State{Step: StepIdle}

	if m.isDeviceEnrolled(ctx) {
		ch <- State{Step: StepFailed, Err: ErrAlreadyEnrolled, FailedAt: StepIdle}
		return
	}

	a := &attempt{}
	steps := m.steps(email, tempSecret)

	// Compensations of completed steps, unwound in reverse on failure.
	var done []sagaStep

	fail := func(at Step, err error) {
		m.log.Warn("enrollment failed, compensating",
			slog.String("step", at.String()), slog.Any("error", err))
		m.unwind(ctx, done, a)
		ch <- State{Step: StepFailed, Err: err, FailedAt: at}
	}

	prev := StepIdle
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			fail(prev, fmt.Errorf("%w: %w", ErrCancelled, err))
			return
		}

		if s.step != prev {
			ch <- State{Step: s.step}
			prev = s.step
		}

		if err := s.run(ctx, a); err != nil {
			fail(s.step, err)
			return
		}
		if s.compensate != nil {
			done = append(done, s)
		}
	}

	m.log.Info("enrollment complete",
		slog.String("user_id", a.user.UserID), slog.String("device_id", a.deviceID))
	ch <- State{Step: StepSuccess, User: a.user}
}

func (m *Manager) steps(email, tempSecret string) []sagaStep {
	return []sagaStep{
		{
			step: StepValidatingCredentials,
			run: func(ctx context.Context, a *attempt) (err error) {
				a.user, err = m.deps.Identity.SignInWithTemporaryCredential(ctx, email, tempSecret)
				return err
			},
			compensate: func(ctx context.Context, _ *attempt) {
				if err := m.deps.Identity.SignOut(ctx); err != nil {
					m.log.Warn("compensation: sign-out failed", slog.Any("error", err))
				}
			},
		},
		{
			// The temporary credential is replaced with a fresh high-entropy
			// secret that is never persisted or surfaced; from here on only
			// the biometric-gated key unlocks the session.
			step: StepInvalidatingTemporaryCredential,
			run: func(ctx context.Context, _ *attempt) error {
				secret, err := util.RandomSecret(util.MinSecretLength)
				if err != nil {
					return fmt.Errorf("generating replacement secret: %w", err)
				}
				return m.deps.Identity.ReplaceTemporaryCredential(ctx, secret)
			},
		},
		{
			step: StepGeneratingKey,
			run: func(ctx context.Context, _ *attempt) error {
				return m.deps.Vault.GetOrCreateKey()
			},
			compensate: func(_ context.Context, _ *attempt) {
				if err := m.deps.Vault.DeleteKey(); err != nil {
					m.log.Warn("compensation: key deletion failed", slog.Any("error", err))
				}
			},
		},
		{
			step: StepAwaitingBiometric,
			run: func(ctx context.Context, a *attempt) (err error) {
				a.blob, err = m.deps.Crypto.Encrypt(ctx, []byte(a.user.Token))
				return err
			},
		},
		{
			step: StepBindingDevice,
			run: func(ctx context.Context, a *attempt) (err error) {
				a.deviceID, err = m.deps.Registry.Bind(ctx, a.user.UserID)
				return err
			},
			compensate: func(ctx context.Context, a *attempt) {
				if err := m.deps.Registry.Revoke(ctx, a.user.UserID); err != nil {
					m.log.Warn("compensation: binding revoke failed",
						slog.String("user_id", a.user.UserID), slog.Any("error", err))
				}
			},
		},
		{
			// Persisting the session record is the final action of the
			// BindingDevice state.
			step: StepBindingDevice,
			run:  m.persistRecord,
		},
	}
}

func (m *Manager) unwind(ctx context.Context, done []sagaStep, a *attempt) {
	// Compensation must run even when the caller's context is already
	// cancelled.
	ctx = context.WithoutCancel(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		done[i].compensate(ctx, a)
	}
}

// persistRecord writes all four session record fields; on any failure it
// clears whatever subset was written so the all-or-nothing invariant holds.
func (m *Manager) persistRecord(ctx context.Context, a *attempt) error {
	entries := []struct{ key, value string }{
		{sessionstore.FieldEncryptedToken, a.blob.Base64()},
		{sessionstore.FieldDeviceID, a.deviceID},
		{sessionstore.FieldUserID, a.user.UserID},
		{sessionstore.FieldLastActivity, epochMillis(m.now())},
	}
	for _, e := range entries {
		if err := m.deps.Store.Set(ctx, e.key, e.value); err != nil {
			if cerr := sessionstore.ClearAll(context.WithoutCancel(ctx), m.deps.Store); cerr != nil {
				m.log.Warn("clearing partial session record", slog.Any("error", cerr))
			}
			return fmt.Errorf("persisting %s: %w", e.key, err)
		}
	}
	return nil
}

// IsDeviceEnrolled reports whether a complete enrollment exists: the
// installation key and the user id are both present. The encrypted token is
// deliberately not part of the predicate, because logout and remote
// revocation clear the token while preserving enrollment. A broken subset
// (artifacts present without the key/user core) is treated as not enrolled
// and cleaned up.
func (m *Manager) IsDeviceEnrolled(ctx context.Context) bool {
	return m.isDeviceEnrolled(ctx)
}

func (m *Manager) isDeviceEnrolled(ctx context.Context) bool {
	_, hasToken, err := m.deps.Store.Get(ctx, sessionstore.FieldEncryptedToken)
	if err != nil {
		m.log.Warn("reading encrypted token", slog.Any("error", err))
		return false
	}
	_, hasUser, err := m.deps.Store.Get(ctx, sessionstore.FieldUserID)
	if err != nil {
		m.log.Warn("reading user id", slog.Any("error", err))
		return false
	}
	hasKey, err := m.deps.Vault.HasKey()
	if err != nil {
		m.log.Warn("checking for key", slog.Any("error", err))
		return false
	}

	if hasKey && hasUser {
		return true
	}
	if hasToken || hasUser || hasKey {
		// Leftovers from an interrupted run; clean them up.
		m.log.Warn("partial enrollment state detected, cleaning up")
		m.cleanupLocal(ctx)
	}
	return false
}

// Unenroll tears the enrollment down: remote binding revoked (best effort),
// key deleted, all session record fields cleared, identity session ended.
// Local cleanup proceeds even when the remote revoke fails, since a disabled
// remote device must not remain usable locally.
func (m *Manager) Unenroll(ctx context.Context) error {
	userID, ok, err := m.deps.Store.Get(ctx, sessionstore.FieldUserID)
	if err != nil {
		return fmt.Errorf("reading user id: %w", err)
	}
	if ok {
		if err := m.deps.Registry.Revoke(ctx, userID); err != nil {
			m.log.Warn("unenroll: remote revoke failed, continuing with local cleanup",
				slog.String("user_id", userID), slog.Any("error", err))
		}
	}

	m.cleanupLocal(ctx)

	if err := m.deps.Identity.SignOut(ctx); err != nil {
		m.log.Warn("unenroll: identity sign-out failed", slog.Any("error", err))
	}
	return nil
}

func (m *Manager) cleanupLocal(ctx context.Context) {
	if err := m.deps.Vault.DeleteKey(); err != nil {
		m.log.Warn("deleting key", slog.Any("error", err))
	}
	if err := sessionstore.ClearAll(ctx, m.deps.Store); err != nil {
		m.log.Warn("clearing session record", slog.Any("error", err))
	}
}

func epochMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
