package latchkey_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtmarsh/latchkey"
	"github.com/jtmarsh/latchkey/enroll"
	"github.com/jtmarsh/latchkey/identity"
)

func TestCoreEndToEnd(t *testing.T) {
	core, err := latchkey.New()
	require.NoError(t, err)
	ctx := context.Background()

	idp, ok := core.Identity.(*identity.MemoryGateway)
	require.True(t, ok)
	userID := idp.Register("a@b.com", "Temp1")

	var final enroll.State
	for s := range core.Enroll.Enroll(ctx, "a@b.com", "Temp1") {
		final = s
	}
	require.Equal(t, enroll.StepSuccess, final.Step)
	assert.Equal(t, userID, final.User.UserID)
	assert.True(t, core.Enroll.IsDeviceEnrolled(ctx))

	user, err := core.Session.Authenticate(ctx)
	require.NoError(t, err)
	assert.Equal(t, userID, user.UserID)
	assert.True(t, core.Session.IsAuthenticated())

	require.NoError(t, core.Session.Logout(ctx))
	assert.False(t, core.Session.IsAuthenticated())
	assert.True(t, core.Enroll.IsDeviceEnrolled(ctx))

	require.NoError(t, core.Enroll.Unenroll(ctx))
	assert.False(t, core.Enroll.IsDeviceEnrolled(ctx))
}

// The enrollment saga and the session manager share one single-flight guard,
// so an authentication cannot start while an enrollment is running.
func TestCoreSharesFlightGuard(t *testing.T) {
	core, err := latchkey.New()
	require.NoError(t, err)

	require.True(t, core.Enroll.FlightGuard().TryAcquire())
	defer core.Enroll.FlightGuard().Release()

	_, err = core.Session.Authenticate(context.Background())
	assert.Error(t, err)
}
