package enroll

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtmarsh/latchkey/biometric"
	"github.com/jtmarsh/latchkey/cryptogate"
	"github.com/jtmarsh/latchkey/identity"
	"github.com/jtmarsh/latchkey/keyvault"
	"github.com/jtmarsh/latchkey/registry"
	"github.com/jtmarsh/latchkey/sessionstore"
)

type fixture struct {
	manager  *Manager
	vault    *keyvault.Vault
	sim      *biometric.SimGate
	idp      *identity.MemoryGateway
	registry *registry.MemoryRegistry
	store    *sessionstore.MemoryStore
	userID   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	provider, err := keyvault.NewSoftwareProvider()
	require.NoError(t, err)
	vault := keyvault.New(provider)
	sim := biometric.NewSimGate(vault)
	idp := identity.NewMemoryGateway()
	userID := idp.Register("a@b.com", "Temp1")
	reg := registry.NewMemoryRegistry()
	store := sessionstore.NewMemoryStore()

	m := New(Deps{
		Vault:    vault,
		Crypto:   cryptogate.New(vault, sim),
		Identity: idp,
		Registry: reg,
		Store:    store,
	})
	return &fixture{manager: m, vault: vault, sim: sim, idp: idp, registry: reg, store: store, userID: userID}
}

func drain(t *testing.T, ch <-chan State) []State {
	t.Helper()
	var states []State
	for s := range ch {
		states = append(states, s)
	}
	require.NotEmpty(t, states)
	require.True(t, states[len(states)-1].Terminal(), "stream must end with a terminal state")
	return states
}

func steps(states []State) []Step {
	out := make([]Step, len(states))
	for i, s := range states {
		out[i] = s.Step
	}
	return out
}

func (f *fixture) assertNoLocalArtifacts(t *testing.T) {
	t.Helper()
	hasKey, err := f.vault.HasKey()
	require.NoError(t, err)
	assert.False(t, hasKey, "no key may survive a failed run")
	assert.Equal(t, 0, f.store.Len(), "no session record field may survive a failed run")
}

func TestEnroll_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	states := drain(t, f.manager.Enroll(ctx, "a@b.com", "Temp1"))

	assert.Equal(t, []Step{
		StepIdle,
		StepValidatingCredentials,
		StepInvalidatingTemporaryCredential,
		StepGeneratingKey,
		StepAwaitingBiometric,
		StepBindingDevice,
		StepSuccess,
	}, steps(states))

	final := states[len(states)-1]
	assert.Equal(t, "a@b.com", final.User.Email)
	assert.NotEmpty(t, final.User.UserID)

	assert.True(t, f.manager.IsDeviceEnrolled(ctx))
	for _, field := range sessionstore.Fields {
		_, ok, err := f.store.Get(ctx, field)
		require.NoError(t, err)
		assert.True(t, ok, "field %s must be written", field)
	}
	assert.True(t, f.registry.Bound(final.User.UserID))
}

func TestEnroll_TemporaryCredentialUnusableAfterSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	states := drain(t, f.manager.Enroll(ctx, "a@b.com", "Temp1"))
	require.Equal(t, StepSuccess, states[len(states)-1].Step)

	_, err := f.idp.SignInWithTemporaryCredential(ctx, "a@b.com", "Temp1")
	assert.ErrorIs(t, err, identity.ErrInvalidCredential)
}

func TestEnroll_NotEnrolledBeforeAnyRun(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.manager.IsDeviceEnrolled(context.Background()))
}

func TestEnroll_InvalidCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	states := drain(t, f.manager.Enroll(ctx, "a@b.com", "wrong"))
	final := states[len(states)-1]

	assert.Equal(t, StepFailed, final.Step)
	assert.ErrorIs(t, final.Err, identity.ErrInvalidCredential)
	assert.Equal(t, StepValidatingCredentials, final.FailedAt)
	f.assertNoLocalArtifacts(t)
}

func TestEnroll_ReplaceCredentialFails_SignsOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	injected := errors.New("upstream rejected replacement")
	f.idp.ReplaceErr = injected

	states := drain(t, f.manager.Enroll(ctx, "a@b.com", "Temp1"))
	final := states[len(states)-1]

	assert.Equal(t, StepFailed, final.Step)
	assert.ErrorIs(t, final.Err, injected)
	assert.Equal(t, StepInvalidatingTemporaryCredential, final.FailedAt)

	_, signedIn := f.idp.CurrentIdentity(ctx)
	assert.False(t, signedIn, "compensation must sign the identity session out")
	f.assertNoLocalArtifacts(t)
}

func TestEnroll_BiometricCancelled_RollsBackKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.sim.Script(biometric.ErrUserCancelled)

	states := drain(t, f.manager.Enroll(ctx, "a@b.com", "Temp1"))
	final := states[len(states)-1]

	assert.Equal(t, StepFailed, final.Step)
	assert.ErrorIs(t, final.Err, biometric.ErrUserCancelled)
	assert.Equal(t, StepAwaitingBiometric, final.FailedAt)

	_, signedIn := f.idp.CurrentIdentity(ctx)
	assert.False(t, signedIn)
	f.assertNoLocalArtifacts(t)
}

func TestEnroll_BiometricLockout_RollsBackKey(t *testing.T) {
	f := newFixture(t)
	f.sim.Script(biometric.ErrLockout)

	states := drain(t, f.manager.Enroll(context.Background(), "a@b.com", "Temp1"))
	final := states[len(states)-1]

	assert.ErrorIs(t, final.Err, biometric.ErrLockout)
	f.assertNoLocalArtifacts(t)
}

func TestEnroll_BindFails_FullRollback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.registry.BindErr = registry.ErrBindingFailed

	states := drain(t, f.manager.Enroll(ctx, "a@b.com", "Temp1"))
	final := states[len(states)-1]

	assert.Equal(t, StepFailed, final.Step)
	assert.ErrorIs(t, final.Err, registry.ErrBindingFailed)
	assert.Equal(t, StepBindingDevice, final.FailedAt)

	_, signedIn := f.idp.CurrentIdentity(ctx)
	assert.False(t, signedIn)
	f.assertNoLocalArtifacts(t)
}

func TestEnroll_PersistFails_RevokesBindingAndRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	injected := errors.New("disk full")
	f.store.SetErr = injected
	f.store.SetErrKey = sessionstore.FieldUserID

	states := drain(t, f.manager.Enroll(ctx, "a@b.com", "Temp1"))
	final := states[len(states)-1]

	assert.Equal(t, StepFailed, final.Step)
	assert.ErrorIs(t, final.Err, injected)

	f.store.SetErr = nil
	f.assertNoLocalArtifacts(t)

	assert.False(t, f.registry.Bound(f.userID), "binding must be revoked")
	_, signedIn := f.idp.CurrentIdentity(ctx)
	assert.False(t, signedIn)
}

func TestEnroll_AlreadyEnrolled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	states := drain(t, f.manager.Enroll(ctx, "a@b.com", "Temp1"))
	require.Equal(t, StepSuccess, states[len(states)-1].Step)

	states = drain(t, f.manager.Enroll(ctx, "a@b.com", "Temp1"))
	final := states[len(states)-1]
	assert.Equal(t, StepFailed, final.Step)
	assert.ErrorIs(t, final.Err, ErrAlreadyEnrolled)
}

func TestEnroll_SingleFlight(t *testing.T) {
	f := newFixture(t)

	require.True(t, f.manager.FlightGuard().TryAcquire())
	defer f.manager.FlightGuard().Release()

	states := drain(t, f.manager.Enroll(context.Background(), "a@b.com", "Temp1"))
	final := states[len(states)-1]
	assert.Equal(t, StepFailed, final.Step)
	assert.ErrorIs(t, final.Err, ErrInProgress)
}

func TestEnroll_CancelledBeforeFirstStep(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	states := drain(t, f.manager.Enroll(ctx, "a@b.com", "Temp1"))
	final := states[len(states)-1]
	assert.Equal(t, StepFailed, final.Step)
	assert.ErrorIs(t, final.Err, ErrCancelled)
	f.assertNoLocalArtifacts(t)
}

// cancellingRegistry cancels the run mid-flight from inside Bind, simulating
// the caller abandoning the saga while a remote call is pending.
type cancellingRegistry struct {
	*registry.MemoryRegistry
	cancel context.CancelFunc
}

func (r *cancellingRegistry) Bind(ctx context.Context, userID string) (string, error) {
	r.cancel()
	return "", ctx.Err()
}

func TestEnroll_CancelledMidFlight_StillCompensates(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.manager.deps.Registry = &cancellingRegistry{MemoryRegistry: f.registry, cancel: cancel}

	states := drain(t, f.manager.Enroll(ctx, "a@b.com", "Temp1"))
	final := states[len(states)-1]

	assert.Equal(t, StepFailed, final.Step)
	assert.ErrorIs(t, final.Err, context.Canceled)

	_, signedIn := f.idp.CurrentIdentity(context.Background())
	assert.False(t, signedIn, "sign-out compensation must run despite cancellation")
	f.assertNoLocalArtifacts(t)
}

func TestIsDeviceEnrolled_PartialStateCleanedUp(t *testing.T) {
	ctx := context.Background()

	t.Run("UserWithoutKey", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Set(ctx, sessionstore.FieldUserID, "user-1"))

		assert.False(t, f.manager.IsDeviceEnrolled(ctx))
		assert.Equal(t, 0, f.store.Len(), "partial cleanup must clear the record")
	})

	t.Run("KeyAndTokenWithoutUser", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.GenerateKey())
		require.NoError(t, f.store.Set(ctx, sessionstore.FieldEncryptedToken, "blob"))

		assert.False(t, f.manager.IsDeviceEnrolled(ctx))

		hasKey, err := f.vault.HasKey()
		require.NoError(t, err)
		assert.False(t, hasKey, "partial cleanup must delete the key")
		assert.Equal(t, 0, f.store.Len())
	})

	t.Run("TokenClearedButCoreIntact", func(t *testing.T) {
		// Logout and remote revocation leave exactly this shape; it is a
		// valid enrolled state, not a partial one.
		f := newFixture(t)
		states := drain(t, f.manager.Enroll(ctx, "a@b.com", "Temp1"))
		require.Equal(t, StepSuccess, states[len(states)-1].Step)
		require.NoError(t, f.store.Delete(ctx, sessionstore.FieldEncryptedToken))

		assert.True(t, f.manager.IsDeviceEnrolled(ctx))
		hasKey, err := f.vault.HasKey()
		require.NoError(t, err)
		assert.True(t, hasKey, "enrollment artifacts must survive")
	})
}

func TestUnenroll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	states := drain(t, f.manager.Enroll(ctx, "a@b.com", "Temp1"))
	final := states[len(states)-1]
	require.Equal(t, StepSuccess, final.Step)

	require.NoError(t, f.manager.Unenroll(ctx))

	assert.False(t, f.manager.IsDeviceEnrolled(ctx))
	assert.False(t, f.registry.Bound(final.User.UserID))
	_, signedIn := f.idp.CurrentIdentity(ctx)
	assert.False(t, signedIn)
	f.assertNoLocalArtifacts(t)
}

func TestUnenroll_RemoteRevokeFails_StillClearsLocal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	states := drain(t, f.manager.Enroll(ctx, "a@b.com", "Temp1"))
	require.Equal(t, StepSuccess, states[len(states)-1].Step)

	f.registry.RevokeErr = errors.New("network partition")

	require.NoError(t, f.manager.Unenroll(ctx), "remote revoke failure is non-fatal")
	assert.False(t, f.manager.IsDeviceEnrolled(ctx))
	f.assertNoLocalArtifacts(t)
}
