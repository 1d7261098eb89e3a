package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// XblToken is the Xbox Live user token plus the user hash needed for the
// later hops. It is an intermediate chain artifact and is never persisted.
type XblToken struct {
	Token    string
	UserHash string
}

// XstsToken is the XSTS authorization token. Like XblToken it lives only in
// memory for the duration of one chain run.
type XstsToken struct {
	Token    string
	UserHash string
}

type xboxTokenBody struct {
	Token         string `json:"Token"`
	DisplayClaims struct {
		Xui []struct {
			Uhs string `json:"uhs"`
		} `json:"xui"`
	} `json:"DisplayClaims"`
}

// XblAuthenticate exchanges a Microsoft access token for an Xbox Live token.
func (c *Client) XblAuthenticate(ctx context.Context, msAccessToken string) (*XblToken, error) {
	payload := map[string]any{
		"Properties": map[string]any{
			"AuthMethod": "RPS",
			"SiteName":   "user.auth.xboxlive.com",
			"RpsTicket":  "d=" + msAccessToken,
		},
		"RelyingParty": "http://auth.xboxlive.com",
		"TokenType":    "JWT",
	}
	body, status, err := c.postJSON(ctx, c.XblURL, payload)
	if err != nil {
		return nil, err
	}
	if status == 401 || status == 403 {
		return nil, rejectedErr(status, "Xbox Live rejected the Microsoft token")
	}
	if status != 200 {
		return nil, httpErr(status, body)
	}

	var result xboxTokenBody
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, malformedErr("failed to parse Xbox Live response", err)
	}
	if result.Token == "" || len(result.DisplayClaims.Xui) == 0 || result.DisplayClaims.Xui[0].Uhs == "" {
		return nil, malformedErr("Xbox Live response is missing token or user hash", nil)
	}
	log.Debug().Msg("Xbox Live token obtained")
	return &XblToken{Token: result.Token, UserHash: result.DisplayClaims.Xui[0].Uhs}, nil
}

// Known XSTS denial codes. These indicate account-level restrictions, which
// need different user remediation than transport failures.
const (
	xerrNoXboxAccount      = 2148916233
	xerrRegionUnsupported  = 2148916235
	xerrAdultVerification  = 2148916236
	xerrAdultVerification2 = 2148916237
	xerrChildAccount       = 2148916238
)

// XstsAuthorize exchanges an Xbox Live token for an XSTS token scoped to the
// Minecraft services relying party.
func (c *Client) XstsAuthorize(ctx context.Context, xbl *XblToken) (*XstsToken, error) {
	payload := map[string]any{
		"Properties": map[string]any{
			"SandboxId":  "RETAIL",
			"UserTokens": []string{xbl.Token},
		},
		"RelyingParty": "rp://api.minecraftservices.com/",
		"TokenType":    "JWT",
	}
	body, status, err := c.postJSON(ctx, c.XstsURL, payload)
	if err != nil {
		return nil, err
	}
	if status == 401 {
		var denial struct {
			XErr    uint64 `json:"XErr"`
			Message string `json:"Message"`
		}
		if jsonErr := json.Unmarshal(body, &denial); jsonErr == nil && denial.XErr != 0 {
			return nil, rejectedErr(status, xstsDenialMessage(denial.XErr, denial.Message))
		}
		return nil, rejectedErr(status, "XSTS authorization denied")
	}
	if status != 200 {
		return nil, httpErr(status, body)
	}

	var result xboxTokenBody
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, malformedErr("failed to parse XSTS response", err)
	}
	if result.Token == "" {
		return nil, malformedErr("XSTS response is missing token", nil)
	}
	userHash := xbl.UserHash
	if len(result.DisplayClaims.Xui) > 0 && result.DisplayClaims.Xui[0].Uhs != "" {
		userHash = result.DisplayClaims.Xui[0].Uhs
	}
	log.Debug().Msg("XSTS token obtained")
	return &XstsToken{Token: result.Token, UserHash: userHash}, nil
}

func xstsDenialMessage(xerr uint64, providerMsg string) string {
	switch xerr {
	case xerrNoXboxAccount:
		return "this Microsoft account has no Xbox Live profile; sign in to xbox.com once to create one"
	case xerrRegionUnsupported:
		return "Xbox Live is not available in this account's region"
	case xerrAdultVerification, xerrAdultVerification2:
		return "this account needs adult verification on the Xbox page"
	case xerrChildAccount:
		return "this is a child account and must be added to a family by an adult"
	}
	if providerMsg != "" {
		return fmt.Sprintf("XSTS authorization denied (XErr %d): %s", xerr, providerMsg)
	}
	return fmt.Sprintf("XSTS authorization denied (XErr %d)", xerr)
}
