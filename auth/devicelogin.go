package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flammablebunny/nixcraft/client"
)

// slowDownStep is added to the poll interval on a slow_down answer
// (RFC 8628 §3.5).
const slowDownStep = 5 * time.Second

// DeviceLoginOptions carries the presentation callbacks and the injection
// points the tests use to run the poll loop against a fake clock.
type DeviceLoginOptions struct {
	// OnCode is called once with the verification URL and user code the
	// user must enter. Required for a useful CLI, optional for tests.
	OnCode func(verificationURI, userCode string, expiresIn time.Duration)
	// OnPoll is called before each poll with the time left until the
	// device code expires.
	OnPoll func(remaining time.Duration)
	// Sleep waits between polls. Defaults to a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
	// Now supplies the current time. Defaults to time.Now.
	Now func() time.Time
}

// DeviceLogin obtains the first identity token via the device-code flow: it
// requests a device code, presents it, then polls the token endpoint at the
// provider interval until the user completes authorization, the code's
// declared lifetime runs out, or the context is cancelled. Nothing is
// persisted here; a cancelled or failed login leaves no partial credential.
func DeviceLogin(ctx context.Context, ex Exchanger, opts DeviceLoginOptions) (*client.MsaToken, error) {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	da, err := ex.RequestDeviceCode(ctx)
	if err != nil {
		return nil, stageErr(StageIdentity, fmt.Errorf("failed to request device code: %w", err))
	}

	deadline := now().Add(da.ExpiresIn)
	if opts.OnCode != nil {
		opts.OnCode(da.VerificationURI, da.UserCode, da.ExpiresIn)
	}
	log.Info().Str("user_code", da.UserCode).Msg("Waiting for the user to authorize the device code")

	interval := da.Interval
	for {
		remaining := deadline.Sub(now())
		if remaining <= 0 {
			return nil, stageErr(StageIdentity, client.ErrCodeExpired)
		}
		if opts.OnPoll != nil {
			opts.OnPoll(remaining)
		}
		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}

		token, err := ex.RedeemDeviceCode(ctx, da.DeviceCode)
		switch {
		case err == nil:
			log.Info().Msg("Device code authorized")
			return token, nil
		case errors.Is(err, client.ErrAuthorizationPending):
			continue
		case errors.Is(err, client.ErrSlowDown):
			interval += slowDownStep
			log.Debug().Dur("interval", interval).Msg("Provider asked to slow down polling")
		case errors.Is(err, client.ErrCodeExpired), errors.Is(err, client.ErrAccessDenied):
			return nil, stageErr(StageIdentity, err)
		default:
			return nil, stageErr(StageIdentity, err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
