package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/linkhub/linkhub/internal/errors"
)

// Endpoints describes a provider's token endpoint and client credentials.
// RevokeURL is optional; providers without one skip remote revocation.
type Endpoints struct {
	TokenURL     string
	RevokeURL    string
	ClientID     string
	ClientSecret string
}

// TokenResponse is the wire shape of a token or refresh exchange. Providers
// routinely omit refresh_token and scope on refresh; callers must preserve
// the previous values for omitted fields.
type TokenResponse struct {
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token"`
	ExpiresIn      int64  `json:"expires_in"`
	Scope          string `json:"scope"`
	ProviderUserID string `json:"user_id"`
}

// Client talks to one provider's OAuth token endpoint.
type Client struct {
	provider string
	ep       Endpoints
	http     *http.Client
}

// NewClient creates a token-endpoint client with a bounded timeout.
func NewClient(provider string, ep Endpoints, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		provider: provider,
		ep:       ep,
		http:     &http.Client{Timeout: timeout},
	}
}

// ExchangeCode swaps an authorization code for a credential tuple.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}

	resp, err := c.postForm(ctx, form)
	if err != nil {
		return nil, &errors.ErrOAuthAuthentication{Provider: c.provider, Reason: "token exchange request failed", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &errors.ErrRateLimit{Provider: c.provider, RetryAfter: RetryAfter(resp.Header)}
	case resp.StatusCode >= 500:
		return nil, &errors.ErrProviderAPI{Provider: c.provider, Status: resp.StatusCode}
	default:
		return nil, &errors.ErrOAuthAuthentication{
			Provider: c.provider,
			Reason:   fmt.Sprintf("token endpoint returned status %d", resp.StatusCode),
		}
	}

	return decodeToken(c.provider, resp)
}

// Refresh swaps a refresh token for a new credential tuple. A 400/401 from
// the endpoint is non-retryable: the user must reconnect.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	resp, err := c.postForm(ctx, form)
	if err != nil {
		return nil, &errors.ErrRefreshToken{Provider: c.provider, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		return nil, &errors.ErrRefreshToken{Provider: c.provider, Status: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &errors.ErrRateLimit{Provider: c.provider, RetryAfter: RetryAfter(resp.Header)}
	case resp.StatusCode >= 500:
		return nil, &errors.ErrProviderAPI{Provider: c.provider, Status: resp.StatusCode}
	default:
		return nil, &errors.ErrRefreshToken{Provider: c.provider, Status: resp.StatusCode}
	}

	return decodeToken(c.provider, resp)
}

// Revoke invalidates a token at the provider. Best-effort: callers treat a
// failure as advisory, since the credential is deleted locally regardless.
func (c *Client) Revoke(ctx context.Context, token string) error {
	if c.ep.RevokeURL == "" {
		return nil
	}

	form := url.Values{}
	form.Set("token", token)
	form.Set("access_token", token)
	form.Set("client_id", c.ep.ClientID)
	if c.ep.ClientSecret != "" {
		form.Set("client_secret", c.ep.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ep.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return &errors.ErrProviderAPI{Provider: c.provider, Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, form url.Values) (*http.Response, error) {
	form.Set("client_id", c.ep.ClientID)
	if c.ep.ClientSecret != "" {
		form.Set("client_secret", c.ep.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ep.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	return c.http.Do(req)
}

func decodeToken(provider string, resp *http.Response) (*TokenResponse, error) {
	var parsed TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &errors.ErrOAuthAuthentication{Provider: provider, Reason: "token response is not valid JSON", Err: err}
	}
	if parsed.AccessToken == "" {
		return nil, &errors.ErrOAuthAuthentication{Provider: provider, Reason: "token response missing access_token"}
	}
	return &parsed, nil
}

// RetryAfter parses a Retry-After header as either delta-seconds or an HTTP
// date. Returns 0 when absent or unparseable.
func RetryAfter(headers http.Header) time.Duration {
	value := headers.Get("Retry-After")
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
