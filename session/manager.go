// Package session owns the process-wide authentication state: crypto-gated
// login against the enrolled key, device-binding validation, and
// timeout-based invalidation on foreground transitions.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/jtmarsh/latchkey/cryptogate"
	"github.com/jtmarsh/latchkey/identity"
	"github.com/jtmarsh/latchkey/internal/flight"
	"github.com/jtmarsh/latchkey/registry"
	"github.com/jtmarsh/latchkey/sessionstore"
)

// DefaultTimeoutMinutes is the inactivity window applied when no explicit
// timeout policy is configured.
const DefaultTimeoutMinutes = 5

// EnrollmentChecker reports whether a complete enrollment exists. Satisfied
// by the enroll.Manager.
type EnrollmentChecker interface {
	IsDeviceEnrolled(ctx context.Context) bool
}

// Deps are the collaborators the manager drives.
type Deps struct {
	Crypto     *cryptogate.Gate
	Identity   identity.Gateway
	Registry   registry.Registry
	Store      sessionstore.Store
	Enrollment EnrollmentChecker
}

// Manager is the authentication state machine. It is the single writer of
// the Result; observers read it via Current, IsAuthenticated, or Subscribe.
type Manager struct {
	deps  Deps
	guard *flight.Guard
	log   *slog.Logger
	now   func() time.Time

	// timeoutMinutes: 0 requires a fresh proof on every foreground
	// transition, positive values open a grace window, negative disables
	// the check entirely (test-only).
	timeoutMinutes int

	mu         sync.RWMutex
	current    Result
	justAuthed bool
	subs       map[int]chan Result
	nextSub    int
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

// WithTimeoutMinutes sets the session timeout policy.
func WithTimeoutMinutes(minutes int) Option {
	return func(m *Manager) {
		m.timeoutMinutes = minutes
	}
}

// WithFlightGuard sets the single-flight guard shared with the enrollment
// manager, so authentication never overlaps a running saga.
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

// New creates a Manager in the Loading state.
func New(deps Deps, opts ...Option) *Manager {
	m := &Manager{
		deps:           deps,
		guard:          &flight.Guard{},
		now:            time.Now,
		timeoutMinutes: DefaultTimeoutMinutes,
		current:        Result{Kind: KindLoading},
		subs:           make(map[int]chan Result),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return m
}

// Authenticate performs a biometric-gated login against the enrolled key.
// It never panics past its boundary: every failure is returned as a typed
// error and also reflected into the Result for passive observers.
func (m *Manager) Authenticate(ctx context.Context) (identity.Identity, error) {
	if !m.guard.TryAcquire() {
		return identity.Identity{}, ErrOperationInFlight
	}
	defer m.guard.Release()

	if !m.deps.Enrollment.IsDeviceEnrolled(ctx) {
		m.setResult(Result{Kind: KindUnauthenticated})
		return identity.Identity{}, ErrNotEnrolled
	}

	encoded, haveToken, err := m.deps.Store.Get(ctx, sessionstore.FieldEncryptedToken)
	if err != nil {
		m.setResult(Result{Kind: KindError, Err: err})
		return identity.Identity{}, fmt.Errorf("reading session token: %w", err)
	}

	if haveToken {
		// Biometric proof and decryption in one pass; any biometric or
		// crypto failure surfaces here. The decrypted bearer artifact is
		// the proof of key possession.
		if _, err := m.deps.Crypto.DecryptFromBase64(ctx, encoded); err != nil {
			m.setResult(Result{Kind: KindError, Err: err})
			return identity.Identity{}, err
		}
	}

	user, ok := m.deps.Identity.CurrentIdentity(ctx)
	if !ok {
		if !haveToken {
			// Logged out and no identity session to re-mint the token
			// from; a fresh enrollment is the only way back in.
			m.setResult(Result{Kind: KindUnauthenticated})
			return identity.Identity{}, ErrNoSessionToken
		}
		m.setResult(Result{Kind: KindError, Err: ErrIdentityUnavailable})
		return identity.Identity{}, ErrIdentityUnavailable
	}

	active, err := m.deps.Registry.Validate(ctx, user.UserID)
	if err != nil {
		err = fmt.Errorf("%w: %w", registry.ErrValidationFailed, err)
		m.setResult(Result{Kind: KindError, Err: err})
		return identity.Identity{}, err
	}
	if !active {
		// Sole remote revocation mechanism: force local sign-out, keep the
		// enrollment artifacts other than the token.
		m.log.Warn("device binding inactive, invalidating local session",
			slog.String("user_id", user.UserID))
		m.clearSession(ctx)
		m.setResult(Result{Kind: KindUnauthenticated})
		return identity.Identity{}, ErrDeviceRevoked
	}

	if !haveToken {
		// Token cleared by an earlier logout; re-mint it under a fresh
		// biometric proof so the session record is whole again.
		blob, err := m.deps.Crypto.Encrypt(ctx, []byte(user.Token))
		if err != nil {
			m.setResult(Result{Kind: KindError, Err: err})
			return identity.Identity{}, err
		}
		if err := m.deps.Store.Set(ctx, sessionstore.FieldEncryptedToken, blob.Base64()); err != nil {
			m.setResult(Result{Kind: KindError, Err: err})
			return identity.Identity{}, fmt.Errorf("storing session token: %w", err)
		}
	}

	if err := m.deps.Store.Set(ctx, sessionstore.FieldLastActivity, epochMillis(m.now())); err != nil {
		m.log.Warn("recording last activity", slog.Any("error", err))
	}

	m.mu.Lock()
	m.current = Result{Kind: KindAuthenticated, User: user}
	m.justAuthed = true
	m.mu.Unlock()
	m.broadcast()

	return user, nil
}

// Logout revokes the current session while preserving enrollment: only the
// encrypted token and last-activity are cleared, the key and device binding
// stay, so the next Authenticate succeeds with biometrics alone.
func (m *Manager) Logout(ctx context.Context) error {
	m.clearSession(ctx)
	m.mu.Lock()
	m.current = Result{Kind: KindUnauthenticated}
	m.justAuthed = false
	m.mu.Unlock()
	m.broadcast()
	return nil
}

// IsAuthenticated is a point-in-time read of the in-memory state; it does
// not re-verify anything remotely.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Kind == KindAuthenticated
}

// Current returns the current Result.
func (m *Manager) Current() Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Subscribe registers an observer of Result transitions. The returned cancel
// function must be called to release the subscription. Slow observers miss
// intermediate transitions rather than blocking the writer.
func (m *Manager) Subscribe() (<-chan Result, func()) {
	ch := make(chan Result, 16)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

// OnAppBackground records the transition time and closes the
// just-authenticated grace.
func (m *Manager) OnAppBackground(ctx context.Context) {
	if err := m.deps.Store.Set(ctx, sessionstore.FieldLastActivity, epochMillis(m.now())); err != nil {
		m.log.Warn("recording last activity on background", slog.Any("error", err))
	}
	m.mu.Lock()
	m.justAuthed = false
	m.mu.Unlock()
}

// OnAppForeground applies the timeout policy. Invalidation sets
// Unauthenticated only; enrollment artifacts are untouched, so the next
// Authenticate needs just a fresh biometric proof.
func (m *Manager) OnAppForeground(ctx context.Context) {
	m.mu.Lock()
	if m.justAuthed {
		// A foreground transition directly after a successful Authenticate
		// in this process must not immediately re-invalidate the session.
		m.justAuthed = false
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	switch {
	case m.timeoutMinutes == 0:
		m.invalidate()
	case m.timeoutMinutes < 0:
		// Disabled; test-only regime.
	default:
		raw, ok, err := m.deps.Store.Get(ctx, sessionstore.FieldLastActivity)
		if err != nil {
			m.log.Warn("reading last activity", slog.Any("error", err))
			return
		}
		if !ok {
			m.invalidate()
			return
		}
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			m.log.Warn("parsing last activity", slog.String("value", raw), slog.Any("error", err))
			m.invalidate()
			return
		}
		elapsed := m.now().Sub(time.UnixMilli(millis))
		if elapsed > time.Duration(m.timeoutMinutes)*time.Minute {
			m.invalidate()
		}
	}
}

func (m *Manager) invalidate() {
	m.mu.Lock()
	changed := m.current.Kind != KindUnauthenticated
	m.current = Result{Kind: KindUnauthenticated}
	m.mu.Unlock()
	if changed {
		m.broadcast()
	}
}

func (m *Manager) clearSession(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if err := m.deps.Store.Delete(ctx, sessionstore.FieldEncryptedToken); err != nil {
		m.log.Warn("clearing session token", slog.Any("error", err))
	}
	if err := m.deps.Store.Delete(ctx, sessionstore.FieldLastActivity); err != nil {
		m.log.Warn("clearing last activity", slog.Any("error", err))
	}
}

func (m *Manager) setResult(r Result) {
	m.mu.Lock()
	m.current = r
	m.mu.Unlock()
	m.broadcast()
}

func (m *Manager) broadcast() {
	m.mu.RLock()
	r := m.current
	for _, ch := range m.subs {
		select {
		case ch <- r:
		default:
		}
	}
	m.mu.RUnlock()
}

func epochMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
