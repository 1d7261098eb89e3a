package auth

import (
	"context"

	"github.com/flammablebunny/nixcraft/cache"
	"github.com/flammablebunny/nixcraft/client"
)

// Exchanger defines the contract for the component that performs the network
// hops of the exchange chain, one call per hop.
type Exchanger interface {
	RequestDeviceCode(ctx context.Context) (*client.DeviceAuth, error)
	RedeemDeviceCode(ctx context.Context, deviceCode string) (*client.MsaToken, error)
	RefreshIdentity(ctx context.Context, refreshToken string) (*client.MsaToken, error)
	XblAuthenticate(ctx context.Context, msAccessToken string) (*client.XblToken, error)
	XstsAuthorize(ctx context.Context, xbl *client.XblToken) (*client.XstsToken, error)
	MinecraftLogin(ctx context.Context, xsts *client.XstsToken) (*cache.GameToken, error)
	FetchProfile(ctx context.Context, gameAccessToken string) (*cache.PlayerProfile, error)
}

// Storer defines the contract for the component that persists credential
// records.
type Storer interface {
	Load(profile string) (*cache.Record, error)
	Put(profile string, rec *cache.Record) error
	Clear(profile string) error
	WriteLauncherToken(profile, accessToken string) error
	LauncherTokenPath(profile string) string
}
