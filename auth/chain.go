package auth

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/flammablebunny/nixcraft/cache"
)

// Stage identifies one hop of the exchange chain. Failures are attributed to
// the stage they occurred at, because each stage needs different user
// remediation.
type Stage string

const (
	StageIdentity Stage = "identity"
	StageXbox     Stage = "xbox_live"
	StageXsts     Stage = "xsts"
	StageGame     Stage = "minecraft"
	StageProfile  Stage = "profile"
)

// Hint returns the remediation line the CLI prints for a failure at this
// stage.
func (s Stage) Hint() string {
	switch s {
	case StageIdentity:
		return "Microsoft sign-in failed. Run 'nixcraft-auth login' to sign in again."
	case StageXbox:
		return "Xbox Live could not verify the Microsoft account. Try 'nixcraft-auth login' again."
	case StageXsts:
		return "The account cannot use Xbox Live services. See the error above for what to fix."
	case StageGame:
		return "Minecraft services rejected the session. The account may own no Minecraft license."
	case StageProfile:
		return "No Minecraft profile was found. Make sure this account owns Minecraft and has created a player profile."
	}
	return "Authentication failed."
}

// ChainError is a stage-tagged terminal failure of one chain run.
type ChainError struct {
	Stage Stage
	Err   error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *ChainError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) *ChainError {
	return &ChainError{Stage: stage, Err: err}
}

// ChainResult is the terminal success state of a chain run.
type ChainResult struct {
	Game    *cache.GameToken
	Profile *cache.PlayerProfile
}

// RunChain drives the dependent hops that follow a valid Microsoft access
// token: Xbox Live, XSTS, Minecraft login, profile. It short-circuits on the
// first failure, tagging it with the originating stage, and never retries.
// Both entry modes of the orchestrator end up here: a full chain supplies a
// token freshly obtained from a device-code or refresh grant, a tail chain
// supplies the still-valid cached one.
func RunChain(ctx context.Context, ex Exchanger, msAccessToken string) (*ChainResult, error) {
	log.Debug().Msg("Authenticating with Xbox Live")
	xbl, err := ex.XblAuthenticate(ctx, msAccessToken)
	if err != nil {
		return nil, stageErr(StageXbox, err)
	}

	log.Debug().Msg("Requesting XSTS authorization")
	xsts, err := ex.XstsAuthorize(ctx, xbl)
	if err != nil {
		return nil, stageErr(StageXsts, err)
	}

	log.Debug().Msg("Logging in to Minecraft services")
	game, err := ex.MinecraftLogin(ctx, xsts)
	if err != nil {
		return nil, stageErr(StageGame, err)
	}

	log.Debug().Msg("Fetching player profile")
	profile, err := ex.FetchProfile(ctx, game.AccessToken)
	if err != nil {
		return nil, stageErr(StageProfile, err)
	}

	return &ChainResult{Game: game, Profile: profile}, nil
}
