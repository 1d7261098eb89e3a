package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/flammablebunny/nixcraft/cache"
)

// Minecraft session tokens default to one day when the service does not say
// otherwise and the token carries no readable exp claim.
const defaultGameTokenLifetime = 24 * time.Hour

// MinecraftLogin exchanges an XSTS token for a Minecraft services access
// token.
func (c *Client) MinecraftLogin(ctx context.Context, xsts *XstsToken) (*cache.GameToken, error) {
	payload := map[string]string{
		"identityToken": fmt.Sprintf("XBL3.0 x=%s;%s", xsts.UserHash, xsts.Token),
	}
	body, status, err := c.postJSON(ctx, c.McLoginURL, payload)
	if err != nil {
		return nil, err
	}
	if status == 401 || status == 403 {
		return nil, rejectedErr(status, "Minecraft services rejected the XSTS token")
	}
	if status != 200 {
		return nil, httpErr(status, body)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, malformedErr("failed to parse Minecraft login response", err)
	}
	if result.AccessToken == "" {
		return nil, malformedErr("Minecraft login response is missing access_token", nil)
	}

	now := time.Now()
	expiresAt := now.Add(time.Duration(result.ExpiresIn) * time.Second)
	if result.ExpiresIn <= 0 {
		expiresAt = gameTokenExpiry(result.AccessToken, now)
	}
	log.Debug().Time("expires_at", expiresAt).Msg("Minecraft access token obtained")
	return &cache.GameToken{
		AccessToken: result.AccessToken,
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// gameTokenExpiry recovers the expiry from the token's exp claim when the
// login response omits expires_in. The token is not validated here; only the
// game service can do that, we just need the timestamp.
func gameTokenExpiry(accessToken string, now time.Time) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return now.Add(defaultGameTokenLifetime)
}

// FetchProfile retrieves the player profile for a game access token. A 404
// means the account owns no Minecraft license.
func (c *Client) FetchProfile(ctx context.Context, gameAccessToken string) (*cache.PlayerProfile, error) {
	body, status, err := c.getBearer(ctx, c.McProfileURL, gameAccessToken)
	if err != nil {
		return nil, err
	}
	switch {
	case status == 404:
		return nil, rejectedErr(status, "this Microsoft account owns no Minecraft license")
	case status == 401 || status == 403:
		return nil, rejectedErr(status, "Minecraft services rejected the access token")
	case status != 200:
		return nil, httpErr(status, body)
	}

	var result struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Skins []struct {
			State   string `json:"state"`
			URL     string `json:"url"`
			Variant string `json:"variant"`
		} `json:"skins"`
		Capes []struct {
			State string `json:"state"`
			URL   string `json:"url"`
		} `json:"capes"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, malformedErr("failed to parse profile response", err)
	}
	if result.ID == "" || result.Name == "" {
		return nil, malformedErr("profile response is missing id or name", nil)
	}

	profile := &cache.PlayerProfile{
		Username: result.Name,
		UUID:     canonicalUUID(result.ID),
	}
	for _, skin := range result.Skins {
		if skin.State == "ACTIVE" {
			profile.SkinURL = skin.URL
			profile.SkinVariant = skin.Variant
			break
		}
	}
	for _, cape := range result.Capes {
		if cape.State == "ACTIVE" {
			profile.CapeURL = cape.URL
			break
		}
	}
	log.Debug().Str("username", profile.Username).Msg("Player profile fetched")
	return profile, nil
}

// canonicalUUID converts the undashed profile id into the dashed canonical
// form. The raw id is kept if it does not parse.
func canonicalUUID(id string) string {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return parsed.String()
}
