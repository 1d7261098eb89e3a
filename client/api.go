package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind classifies an exchange failure. Retry policy belongs to the caller:
// this layer never retries.
type Kind string

const (
	// KindNetwork marks transport-level failures (DNS, connect, timeout).
	KindNetwork Kind = "network"
	// KindHTTPStatus marks an unexpected HTTP status with no recognizable
	// provider error payload.
	KindHTTPStatus Kind = "http_status"
	// KindMalformed marks a response that violates the service's wire
	// contract (unparsable body, missing required fields).
	KindMalformed Kind = "malformed_response"
	// KindAuthRejected marks a credential-level rejection by the provider.
	KindAuthRejected Kind = "auth_rejected"
)

// Error is a classified exchange failure.
type Error struct {
	Kind    Kind
	Status  int // HTTP status, when one was received
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a classified exchange error of the given kind.
func IsKind(err error, kind Kind) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.Kind == kind
}

func netErr(msg string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: msg, Err: err}
}

func httpErr(status int, body []byte) *Error {
	return &Error{
		Kind:    KindHTTPStatus,
		Status:  status,
		Message: fmt.Sprintf("unexpected HTTP status %d %s: %s", status, http.StatusText(status), preview(body)),
	}
}

func malformedErr(msg string, err error) *Error {
	return &Error{Kind: KindMalformed, Message: msg, Err: err}
}

func rejectedErr(status int, msg string) *Error {
	return &Error{Kind: KindAuthRejected, Status: status, Message: msg}
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// Client issues the fixed network calls of the exchange chain, one method per
// hop. It is stateless; endpoints are fields so tests can point them at local
// servers.
type Client struct {
	http *http.Client

	ClientID string
	Scope    string

	DeviceCodeURL string
	TokenURL      string
	XblURL        string
	XstsURL       string
	McLoginURL    string
	McProfileURL  string
}

// New returns a Client wired to the production endpoints.
func New() *Client {
	return &Client{
		http:          &http.Client{Timeout: 30 * time.Second},
		ClientID:      launcherClientID,
		Scope:         xboxLiveScope,
		DeviceCodeURL: "https://login.live.com/oauth20_connect.srf",
		TokenURL:      "https://login.live.com/oauth20_token.srf",
		XblURL:        "https://user.auth.xboxlive.com/user/authenticate",
		XstsURL:       "https://xsts.auth.xboxlive.com/xsts/authorize",
		McLoginURL:    "https://api.minecraftservices.com/authentication/login_with_xbox",
		McProfileURL:  "https://api.minecraftservices.com/minecraft/profile",
	}
}

const (
	// Official Minecraft launcher client ID (public).
	launcherClientID = "00000000402b5328"
	xboxLiveScope    = "service::user.auth.xboxlive.com::MBI_SSL"
)

// postForm sends a form-encoded POST and returns the body and status.
// Transport and read failures come back classified; status handling is up to
// the hop, since each endpoint signals errors differently.
func (c *Client) postForm(ctx context.Context, urlStr string, form url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request for %s: %w", urlStr, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(req)
}

// postJSON sends a JSON POST with the standard Accept header pair.
func (c *Client) postJSON(ctx context.Context, urlStr string, payload any) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode request for %s: %w", urlStr, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request for %s: %w", urlStr, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.send(req)
}

// getBearer sends a GET with bearer authorization.
func (c *Client) getBearer(ctx context.Context, urlStr, accessToken string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request for %s: %w", urlStr, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	return c.send(req)
}

func (c *Client) send(req *http.Request) ([]byte, int, error) {
	log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Msg("Sending HTTP request")
	resp, err := c.http.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", req.URL.String()).Msg("HTTP request failed")
		return nil, 0, netErr(fmt.Sprintf("request to %s failed", req.URL.Host), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error().Err(err).Str("url", req.URL.String()).Msg("Failed to read response body")
		return nil, resp.StatusCode, netErr("failed to read response body", err)
	}
	log.Debug().Str("url", req.URL.String()).Int("status", resp.StatusCode).Msg("HTTP response received")
	return body, resp.StatusCode, nil
}
