package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// Terminal and non-terminal poll outcomes of the device-code grant, per
// RFC 8628 §3.5.
var (
	ErrAuthorizationPending = errors.New("authorization pending")
	ErrSlowDown             = errors.New("polling too fast")
	ErrCodeExpired          = errors.New("device code expired")
	ErrAccessDenied         = errors.New("user declined authorization")
)

// DeviceAuth is the provider's answer to a device-code request.
type DeviceAuth struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	Interval        time.Duration
	ExpiresIn       time.Duration
}

// MsaToken is a Microsoft account token response (device redeem or refresh).
type MsaToken struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresIn    time.Duration
}

type oauthErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// RequestDeviceCode starts a device-code authorization.
func (c *Client) RequestDeviceCode(ctx context.Context) (*DeviceAuth, error) {
	form := url.Values{
		"client_id":     {c.ClientID},
		"scope":         {c.Scope},
		"response_type": {"device_code"},
	}
	body, status, err := c.postForm(ctx, c.DeviceCodeURL, form)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		if msg := oauthErrorMessage(body); msg != "" {
			return nil, rejectedErr(status, msg)
		}
		return nil, httpErr(status, body)
	}

	var result struct {
		DeviceCode      string `json:"device_code"`
		UserCode        string `json:"user_code"`
		VerificationURI string `json:"verification_uri"`
		Interval        int64  `json:"interval"`
		ExpiresIn       int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, malformedErr("failed to parse device code response", err)
	}
	if result.DeviceCode == "" || result.UserCode == "" || result.VerificationURI == "" {
		return nil, malformedErr("device code response is missing required fields", nil)
	}
	if result.Interval <= 0 {
		result.Interval = 5
	}
	if result.ExpiresIn <= 0 {
		result.ExpiresIn = 900
	}
	log.Debug().Str("user_code", result.UserCode).Msg("Device code issued")
	return &DeviceAuth{
		DeviceCode:      result.DeviceCode,
		UserCode:        result.UserCode,
		VerificationURI: result.VerificationURI,
		Interval:        time.Duration(result.Interval) * time.Second,
		ExpiresIn:       time.Duration(result.ExpiresIn) * time.Second,
	}, nil
}

// RedeemDeviceCode polls the token endpoint once for the device-code grant.
// While the user has not finished signing in it returns
// ErrAuthorizationPending (or ErrSlowDown); the poll loop lives in the login
// flow, not here.
func (c *Client) RedeemDeviceCode(ctx context.Context, deviceCode string) (*MsaToken, error) {
	form := url.Values{
		"client_id":   {c.ClientID},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"device_code": {deviceCode},
	}
	return c.requestToken(ctx, form, true)
}

// RefreshIdentity exchanges a refresh token for a new identity token.
func (c *Client) RefreshIdentity(ctx context.Context, refreshToken string) (*MsaToken, error) {
	form := url.Values{
		"client_id":     {c.ClientID},
		"scope":         {c.Scope},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return c.requestToken(ctx, form, false)
}

func (c *Client) requestToken(ctx context.Context, form url.Values, devicePoll bool) (*MsaToken, error) {
	body, status, err := c.postForm(ctx, c.TokenURL, form)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		var oerr oauthErrorBody
		if jsonErr := json.Unmarshal(body, &oerr); jsonErr != nil || oerr.Error == "" {
			return nil, httpErr(status, body)
		}
		if devicePoll {
			switch oerr.Error {
			case "authorization_pending":
				return nil, ErrAuthorizationPending
			case "slow_down":
				return nil, ErrSlowDown
			case "expired_token":
				return nil, ErrCodeExpired
			case "authorization_declined", "access_denied":
				return nil, ErrAccessDenied
			}
		}
		return nil, rejectedErr(status, providerMessage(oerr))
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		Scope        string `json:"scope"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, malformedErr("failed to parse token response", err)
	}
	if result.AccessToken == "" {
		return nil, malformedErr("token response is missing access_token", nil)
	}
	if result.ExpiresIn <= 0 {
		result.ExpiresIn = 3600
	}
	return &MsaToken{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		Scope:        result.Scope,
		ExpiresIn:    time.Duration(result.ExpiresIn) * time.Second,
	}, nil
}

func oauthErrorMessage(body []byte) string {
	var oerr oauthErrorBody
	if err := json.Unmarshal(body, &oerr); err != nil || oerr.Error == "" {
		return ""
	}
	return providerMessage(oerr)
}

func providerMessage(oerr oauthErrorBody) string {
	if oerr.ErrorDescription != "" {
		return fmt.Sprintf("%s: %s", oerr.Error, oerr.ErrorDescription)
	}
	return oerr.Error
}
