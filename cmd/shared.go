package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/flammablebunny/nixcraft/auth"
	"github.com/flammablebunny/nixcraft/cache"
	"github.com/flammablebunny/nixcraft/client"
	"github.com/flammablebunny/nixcraft/pkg/clierr"
	"github.com/flammablebunny/nixcraft/pkg/validation"
)

const defaultProfile = "default"

// newServiceFn builds the auth service; tests replace it to inject mocks.
var newServiceFn = newService

func newService() (*auth.Service, error) {
	dir, err := cache.DefaultDir()
	if err != nil {
		return nil, clierr.New(clierr.Internal, "could not resolve the credential directory", err)
	}
	store := cache.NewStore(afero.NewOsFs(), dir)
	return auth.NewService(store, client.New()), nil
}

func addProfileFlag(cmd *cobra.Command, profile *string) {
	cmd.Flags().StringVarP(profile, "profile", "p", defaultProfile, "Account profile name")
}

func checkProfileName(profile string) error {
	if err := validation.ValidateProfileName(profile); err != nil {
		return clierr.New(clierr.Validation, err.Error(), err)
	}
	return nil
}

// asCliError maps auth/cache failures onto structured CLI errors with the
// stage-specific hint attached.
func asCliError(err error) error {
	if err == nil {
		return nil
	}
	var cerr *clierr.Error
	if errors.As(err, &cerr) {
		return err
	}
	if errors.Is(err, auth.ErrAuthRequired) {
		return clierr.New(clierr.AuthRequired, "no usable session; run 'nixcraft-auth login'", err)
	}
	if errors.Is(err, cache.ErrCorrupt) {
		return clierr.New(clierr.Corrupt, "the stored credential record is corrupt; run 'nixcraft-auth login' to replace it", err)
	}
	var chainErr *auth.ChainError
	if errors.As(err, &chainErr) {
		if client.IsKind(err, client.KindNetwork) {
			return clierr.New(clierr.Network, fmt.Sprintf("network failure during the %s stage; check your connection and retry", chainErr.Stage), err)
		}
		return clierr.New(clierr.AuthFailed, fmt.Sprintf("%v\n%s", chainErr.Err, chainErr.Stage.Hint()), err)
	}
	return clierr.New(clierr.Internal, err.Error(), err)
}
