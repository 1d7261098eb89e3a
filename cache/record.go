package cache

import (
	"fmt"
	"time"
)

// RecordVersion is the current on-disk format version. Records carrying any
// other version fail validation and are reported as corrupt, never misparsed.
const RecordVersion = 1

// IdentityToken holds the Microsoft account tokens. It is the only token
// with a refresh grant; everything else in the chain derives from it.
type IdentityToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    string `json:"expires_at"`
	Scope        string `json:"scope,omitempty"`
}

// GameToken is the Minecraft services access token consumed by the launcher.
// Its expiry is independent of the identity token's.
type GameToken struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

// PlayerProfile is the player identity fetched with a valid game token.
type PlayerProfile struct {
	Username    string `json:"username"`
	UUID        string `json:"uuid"`
	SkinURL     string `json:"skin_url,omitempty"`
	SkinVariant string `json:"skin_variant,omitempty"`
	CapeURL     string `json:"cape_url,omitempty"`
}

// Record is the persisted credential record for one profile name.
type Record struct {
	Version  int            `json:"version"`
	Identity *IdentityToken `json:"microsoft,omitempty"`
	Game     *GameToken     `json:"minecraft,omitempty"`
	Profile  *PlayerProfile `json:"profile,omitempty"`
}

// ValidAt reports whether the token is usable at the given instant, with the
// margin subtracted from the stored expiry. An unparsable expiry counts as
// expired.
func (t *IdentityToken) ValidAt(now time.Time, margin time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return validAt(t.ExpiresAt, now, margin)
}

// ValidAt reports whether the game token is usable at the given instant.
func (t *GameToken) ValidAt(now time.Time, margin time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return validAt(t.ExpiresAt, now, margin)
}

func validAt(expiresAt string, now time.Time, margin time.Duration) bool {
	exp, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return false
	}
	return now.Add(margin).Before(exp)
}

// Validate checks the structural invariants of a loaded record. A record
// that fails here must be treated as corrupt in its entirety.
func (r *Record) Validate() error {
	if r.Version != RecordVersion {
		return fmt.Errorf("unsupported record version %d (expected %d)", r.Version, RecordVersion)
	}
	if r.Identity != nil {
		if r.Identity.AccessToken == "" {
			return fmt.Errorf("identity token is missing its access token")
		}
		if _, err := time.Parse(time.RFC3339, r.Identity.ExpiresAt); err != nil {
			return fmt.Errorf("identity token has malformed expiry %q: %w", r.Identity.ExpiresAt, err)
		}
	}
	if r.Game != nil {
		if r.Game.AccessToken == "" {
			return fmt.Errorf("game token is missing its access token")
		}
		if _, err := time.Parse(time.RFC3339, r.Game.ExpiresAt); err != nil {
			return fmt.Errorf("game token has malformed expiry %q: %w", r.Game.ExpiresAt, err)
		}
	}
	return nil
}

// FormatExpiry converts a provider lifetime into the persisted RFC 3339 form.
func FormatExpiry(now time.Time, expiresIn time.Duration) string {
	return now.Add(expiresIn).UTC().Format(time.RFC3339)
}
