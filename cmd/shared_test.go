package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/flammablebunny/nixcraft/auth"
	"github.com/flammablebunny/nixcraft/cache"
	"github.com/flammablebunny/nixcraft/client"
	"github.com/flammablebunny/nixcraft/pkg/clierr"
)

// stubExchanger satisfies auth.Exchanger for command tests. The commands under
// test here never reach the network on the happy path, so every hop fails
// loudly unless a canned value is set.
type stubExchanger struct {
	refreshToken *client.MsaToken
	refreshErr   error
	calls        int
}

func (s *stubExchanger) RequestDeviceCode(ctx context.Context) (*client.DeviceAuth, error) {
	s.calls++
	return nil, errors.New("unexpected device code request")
}

func (s *stubExchanger) RedeemDeviceCode(ctx context.Context, deviceCode string) (*client.MsaToken, error) {
	s.calls++
	return nil, errors.New("unexpected device code redemption")
}

func (s *stubExchanger) RefreshIdentity(ctx context.Context, refreshToken string) (*client.MsaToken, error) {
	s.calls++
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	if s.refreshToken != nil {
		return s.refreshToken, nil
	}
	return nil, errors.New("unexpected identity refresh")
}

func (s *stubExchanger) XblAuthenticate(ctx context.Context, msAccessToken string) (*client.XblToken, error) {
	s.calls++
	return nil, errors.New("unexpected xbl call")
}

func (s *stubExchanger) XstsAuthorize(ctx context.Context, xbl *client.XblToken) (*client.XstsToken, error) {
	s.calls++
	return nil, errors.New("unexpected xsts call")
}

func (s *stubExchanger) MinecraftLogin(ctx context.Context, xsts *client.XstsToken) (*cache.GameToken, error) {
	s.calls++
	return nil, errors.New("unexpected minecraft login")
}

func (s *stubExchanger) FetchProfile(ctx context.Context, gameAccessToken string) (*cache.PlayerProfile, error) {
	s.calls++
	return nil, errors.New("unexpected profile fetch")
}

// installTestService swaps newServiceFn for one backed by an in-memory store
// and the stub exchanger, and restores it when the test ends.
func installTestService(t *testing.T) (*cache.Store, *stubExchanger) {
	t.Helper()
	store := cache.NewStore(afero.NewMemMapFs(), "/data/auth")
	ex := &stubExchanger{}
	orig := newServiceFn
	newServiceFn = func() (*auth.Service, error) {
		return auth.NewService(store, ex), nil
	}
	t.Cleanup(func() { newServiceFn = orig })
	return store, ex
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := createRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func validRecord() *cache.Record {
	now := time.Now()
	return &cache.Record{
		Version: cache.RecordVersion,
		Identity: &cache.IdentityToken{
			AccessToken:  "ms-access",
			RefreshToken: "ms-refresh",
			ExpiresAt:    now.Add(time.Hour).UTC().Format(time.RFC3339),
		},
		Game: &cache.GameToken{
			AccessToken: "mc-access",
			ExpiresAt:   now.Add(time.Hour).UTC().Format(time.RFC3339),
		},
		Profile: &cache.PlayerProfile{
			Username: "Steve",
			UUID:     "069a79f4-44e9-4726-a5be-fca90e38aaf5",
		},
	}
}

func TestAsCliError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want clierr.Type
	}{
		{
			name: "auth required",
			err:  fmt.Errorf("no record: %w", auth.ErrAuthRequired),
			want: clierr.AuthRequired,
		},
		{
			name: "corrupt record",
			err:  fmt.Errorf("%w: bad json", cache.ErrCorrupt),
			want: clierr.Corrupt,
		},
		{
			name: "network failure inside the chain",
			err:  &auth.ChainError{Stage: auth.StageXbox, Err: &client.Error{Kind: client.KindNetwork, Message: "dial failed"}},
			want: clierr.Network,
		},
		{
			name: "rejection inside the chain",
			err:  &auth.ChainError{Stage: auth.StageXsts, Err: &client.Error{Kind: client.KindAuthRejected, Status: 401, Message: "no xbox profile"}},
			want: clierr.AuthFailed,
		},
		{
			name: "anything else",
			err:  errors.New("boom"),
			want: clierr.Internal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := asCliError(tt.err)
			var cerr *clierr.Error
			if !errors.As(got, &cerr) {
				t.Fatalf("expected a *clierr.Error, got %T", got)
			}
			if cerr.Type != tt.want {
				t.Errorf("expected type %v, got %v", tt.want, cerr.Type)
			}
		})
	}

	t.Run("nil passes through", func(t *testing.T) {
		if asCliError(nil) != nil {
			t.Error("expected nil for a nil error")
		}
	})

	t.Run("existing cli error is not rewrapped", func(t *testing.T) {
		orig := clierr.New(clierr.Validation, "bad profile name", nil)
		if got := asCliError(orig); !errors.Is(got, orig) {
			t.Error("expected the original cli error back")
		}
	})

	t.Run("chain rejection carries the stage hint", func(t *testing.T) {
		err := asCliError(&auth.ChainError{
			Stage: auth.StageXsts,
			Err:   &client.Error{Kind: client.KindAuthRejected, Status: 401, Message: "denied"},
		})
		if !strings.Contains(err.Error(), auth.StageXsts.Hint()) {
			t.Errorf("expected the XSTS hint in %q", err.Error())
		}
	})
}

func TestCheckProfileName(t *testing.T) {
	if err := checkProfileName("default"); err != nil {
		t.Fatalf("unexpected error for a valid name: %v", err)
	}

	err := checkProfileName("../escape")
	var cerr *clierr.Error
	if !errors.As(err, &cerr) || cerr.Type != clierr.Validation {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if clierr.ExitCode(err) != 1 {
		t.Errorf("expected exit code 1, got %d", clierr.ExitCode(err))
	}
}
