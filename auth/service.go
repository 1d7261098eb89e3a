package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flammablebunny/nixcraft/cache"
	"github.com/flammablebunny/nixcraft/client"
)

// ErrAuthRequired means there is no usable credential path left without user
// interaction: no record, no refresh token, or the refresh token was revoked.
var ErrAuthRequired = errors.New("interactive login required")

// ExpiryMargin is the safety buffer applied to token expiries: a token
// within this margin of expiring is treated as expired.
const ExpiryMargin = 5 * time.Minute

// Service orchestrates the credential lifecycle over its dependencies: the
// cache store and the exchange client.
type Service struct {
	Store     Storer
	Exchanger Exchanger

	now func() time.Time
}

// NewService is the constructor for the auth service.
func NewService(store Storer, ex Exchanger) *Service {
	return &Service{Store: store, Exchanger: ex, now: time.Now}
}

// plan is the reuse/refresh/re-login decision. It is a pure function of the
// current time and the record, so it is testable without any I/O.
type plan int

const (
	planUseCached plan = iota
	planTailChain
	planFullRefresh
	planLoginRequired
)

func decidePlan(now time.Time, rec *cache.Record) plan {
	if rec == nil || rec.Identity == nil {
		// A game token without its authenticating identity is invalid
		// regardless of its own expiry.
		return planLoginRequired
	}
	if rec.Game.ValidAt(now, ExpiryMargin) {
		return planUseCached
	}
	if rec.Identity.ValidAt(now, ExpiryMargin) {
		return planTailChain
	}
	if rec.Identity.RefreshToken != "" {
		return planFullRefresh
	}
	return planLoginRequired
}

// EnsureValid yields a currently-valid game token and profile for the given
// profile name, refreshing through the chain as needed. It returns
// ErrAuthRequired when only an interactive login can help, and a *ChainError
// when a chain hop failed. The launcher glue calls this (via the refresh and
// token commands) before starting the game.
func (s *Service) EnsureValid(ctx context.Context, profile string, allowInteractive bool) (*cache.GameToken, *cache.PlayerProfile, error) {
	rec, err := s.Store.Load(profile)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, nil, fmt.Errorf("profile %q has never logged in: %w", profile, ErrAuthRequired)
		}
		return nil, nil, err
	}

	switch decidePlan(s.now(), rec) {
	case planUseCached:
		log.Debug().Str("profile", profile).Msg("Cached game token is still valid")
		return rec.Game, rec.Profile, nil

	case planTailChain:
		log.Info().Str("profile", profile).Msg("Game token expired, rerunning chain with cached identity token")
		res, err := RunChain(ctx, s.Exchanger, rec.Identity.AccessToken)
		if err != nil {
			return nil, nil, err
		}
		rec.Game = res.Game
		rec.Profile = res.Profile
		if err := s.persist(profile, rec); err != nil {
			return nil, nil, err
		}
		return rec.Game, rec.Profile, nil

	case planFullRefresh:
		log.Info().Str("profile", profile).Msg("Identity token expired, refreshing with stored refresh token")
		msa, err := s.Exchanger.RefreshIdentity(ctx, rec.Identity.RefreshToken)
		if err != nil {
			if client.IsKind(err, client.KindAuthRejected) && allowInteractive {
				// Revoked refresh token. The stale record stays so
				// status can still report the last known identity.
				return nil, nil, fmt.Errorf("refresh token was rejected: %w", ErrAuthRequired)
			}
			return nil, nil, stageErr(StageIdentity, err)
		}
		res, err := RunChain(ctx, s.Exchanger, msa.AccessToken)
		if err != nil {
			return nil, nil, err
		}
		rec.Identity = identityFromMsa(msa, s.now())
		rec.Game = res.Game
		rec.Profile = res.Profile
		if err := s.persist(profile, rec); err != nil {
			return nil, nil, err
		}
		return rec.Game, rec.Profile, nil

	default:
		return nil, nil, fmt.Errorf("profile %q has no usable refresh path: %w", profile, ErrAuthRequired)
	}
}

// Login runs the device-code flow and the full chain, then persists the
// resulting record, replacing any previous one.
func (s *Service) Login(ctx context.Context, profile string, opts DeviceLoginOptions) (*cache.Record, error) {
	msa, err := DeviceLogin(ctx, s.Exchanger, opts)
	if err != nil {
		return nil, err
	}

	res, err := RunChain(ctx, s.Exchanger, msa.AccessToken)
	if err != nil {
		return nil, err
	}

	rec := &cache.Record{
		Version:  cache.RecordVersion,
		Identity: identityFromMsa(msa, s.now()),
		Game:     res.Game,
		Profile:  res.Profile,
	}
	if err := s.persist(profile, rec); err != nil {
		return nil, err
	}
	log.Info().Str("profile", profile).Str("username", res.Profile.Username).Msg("Login complete")
	return rec, nil
}

// Logout removes the persisted record. Clearing an unknown profile is fine.
func (s *Service) Logout(profile string) error {
	return s.Store.Clear(profile)
}

// StatusInfo is the offline view of a record that the status command prints.
type StatusInfo struct {
	Present         bool
	Username        string
	UUID            string
	SkinVariant     string
	GameExpiresAt   string
	GameValid       bool
	IdentityExpires string
	IdentityValid   bool
	HasRefreshToken bool
}

// Status inspects the record without performing any network calls.
func (s *Service) Status(profile string) (*StatusInfo, error) {
	rec, err := s.Store.Load(profile)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return &StatusInfo{}, nil
		}
		return nil, err
	}

	now := s.now()
	info := &StatusInfo{Present: true}
	if rec.Profile != nil {
		info.Username = rec.Profile.Username
		info.UUID = rec.Profile.UUID
		info.SkinVariant = rec.Profile.SkinVariant
	}
	if rec.Game != nil {
		info.GameExpiresAt = rec.Game.ExpiresAt
		info.GameValid = rec.Identity != nil && rec.Game.ValidAt(now, ExpiryMargin)
	}
	if rec.Identity != nil {
		info.IdentityExpires = rec.Identity.ExpiresAt
		info.IdentityValid = rec.Identity.ValidAt(now, ExpiryMargin)
		info.HasRefreshToken = rec.Identity.RefreshToken != ""
	}
	return info, nil
}

// persist stores the record and rewrites the launcher token file.
func (s *Service) persist(profile string, rec *cache.Record) error {
	if err := s.Store.Put(profile, rec); err != nil {
		return fmt.Errorf("failed to save credential record: %w", err)
	}
	if err := s.Store.WriteLauncherToken(profile, rec.Game.AccessToken); err != nil {
		return fmt.Errorf("failed to write launcher token file: %w", err)
	}
	return nil
}

func identityFromMsa(msa *client.MsaToken, now time.Time) *cache.IdentityToken {
	return &cache.IdentityToken{
		AccessToken:  msa.AccessToken,
		RefreshToken: msa.RefreshToken,
		ExpiresAt:    cache.FormatExpiry(now, msa.ExpiresIn),
		Scope:        msa.Scope,
	}
}
