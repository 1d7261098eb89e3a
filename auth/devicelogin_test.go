package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flammablebunny/nixcraft/client"
)

// fakeClock drives the poll loop deterministically: every sleep advances the
// clock by exactly the requested duration.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	cancel context.CancelFunc
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	if c.cancel != nil {
		// Simulate cancellation arriving mid-sleep.
		c.cancel()
		c.cancel = nil
		return ctx.Err()
	}
	return nil
}

func deviceOpts(clock *fakeClock) DeviceLoginOptions {
	return DeviceLoginOptions{Sleep: clock.Sleep, Now: clock.Now}
}

func pendingAuth(interval, lifetime time.Duration) *client.DeviceAuth {
	return &client.DeviceAuth{
		DeviceCode:      "dev-123",
		UserCode:        "ABCD1234",
		VerificationURI: "https://login.example/link",
		Interval:        interval,
		ExpiresIn:       lifetime,
	}
}

func TestDeviceLogin_PendingThenSuccess(t *testing.T) {
	const pendingPolls = 3
	ex := newMockExchanger()
	ex.deviceAuth = pendingAuth(5*time.Second, 15*time.Minute)
	for i := 0; i < pendingPolls; i++ {
		ex.redeemResults = append(ex.redeemResults, redeemResult{err: client.ErrAuthorizationPending})
	}
	ex.redeemResults = append(ex.redeemResults, redeemResult{token: &client.MsaToken{AccessToken: "ms-access", ExpiresIn: time.Hour}})

	clock := newFakeClock()
	tok, err := DeviceLogin(context.Background(), ex, deviceOpts(clock))
	require.NoError(t, err)
	assert.Equal(t, "ms-access", tok.AccessToken)
	assert.Equal(t, pendingPolls+1, ex.redeemCalls, "one poll per pending answer plus the successful one")
	for _, slept := range clock.slept {
		assert.GreaterOrEqual(t, slept, 5*time.Second, "polls must respect the declared interval")
	}
}

func TestDeviceLogin_SlowDownGrowsInterval(t *testing.T) {
	ex := newMockExchanger()
	ex.deviceAuth = pendingAuth(5*time.Second, 15*time.Minute)
	ex.redeemResults = []redeemResult{
		{err: client.ErrSlowDown},
		{err: client.ErrAuthorizationPending},
		{token: &client.MsaToken{AccessToken: "ms-access", ExpiresIn: time.Hour}},
	}

	clock := newFakeClock()
	_, err := DeviceLogin(context.Background(), ex, deviceOpts(clock))
	require.NoError(t, err)
	require.Len(t, clock.slept, 3)
	assert.Equal(t, 5*time.Second, clock.slept[0])
	assert.Equal(t, 10*time.Second, clock.slept[1], "slow_down adds five seconds")
	assert.Equal(t, 10*time.Second, clock.slept[2])
}

func TestDeviceLogin_ExpiresAtDeclaredLifetime(t *testing.T) {
	ex := newMockExchanger()
	// 30s lifetime, 10s interval: at most 3 polls fit before the deadline.
	ex.deviceAuth = pendingAuth(10*time.Second, 30*time.Second)

	clock := newFakeClock()
	_, err := DeviceLogin(context.Background(), ex, deviceOpts(clock))
	require.Error(t, err)

	var chainErr *ChainError
	require.ErrorAs(t, err, &chainErr)
	assert.Equal(t, StageIdentity, chainErr.Stage)
	assert.ErrorIs(t, err, client.ErrCodeExpired)
	assert.LessOrEqual(t, ex.redeemCalls, 3, "no polls may happen past the declared lifetime")
}

func TestDeviceLogin_ProviderSaysExpired(t *testing.T) {
	ex := newMockExchanger()
	ex.deviceAuth = pendingAuth(5*time.Second, 15*time.Minute)
	ex.redeemResults = []redeemResult{{err: client.ErrCodeExpired}}

	clock := newFakeClock()
	_, err := DeviceLogin(context.Background(), ex, deviceOpts(clock))
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrCodeExpired)
	assert.Equal(t, 1, ex.redeemCalls)
}

func TestDeviceLogin_UserDeclined(t *testing.T) {
	ex := newMockExchanger()
	ex.deviceAuth = pendingAuth(5*time.Second, 15*time.Minute)
	ex.redeemResults = []redeemResult{
		{err: client.ErrAuthorizationPending},
		{err: client.ErrAccessDenied},
	}

	clock := newFakeClock()
	_, err := DeviceLogin(context.Background(), ex, deviceOpts(clock))
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrAccessDenied)
}

func TestDeviceLogin_CancelledContextStopsPolling(t *testing.T) {
	ex := newMockExchanger()
	ex.deviceAuth = pendingAuth(5*time.Second, 15*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	clock := newFakeClock()
	clock.cancel = cancel // cancel fires during the first sleep

	_, err := DeviceLogin(ctx, ex, deviceOpts(clock))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, ex.redeemCalls)
}

func TestDeviceLogin_ReportsCodeToCallback(t *testing.T) {
	ex := newMockExchanger()
	ex.deviceAuth = pendingAuth(5*time.Second, 15*time.Minute)
	ex.redeemResults = []redeemResult{{token: &client.MsaToken{AccessToken: "ms-access", ExpiresIn: time.Hour}}}

	var gotURI, gotCode string
	opts := deviceOpts(newFakeClock())
	opts.OnCode = func(verificationURI, userCode string, expiresIn time.Duration) {
		gotURI = verificationURI
		gotCode = userCode
	}

	_, err := DeviceLogin(context.Background(), ex, opts)
	require.NoError(t, err)
	assert.Equal(t, "https://login.example/link", gotURI)
	assert.Equal(t, "ABCD1234", gotCode)
}
