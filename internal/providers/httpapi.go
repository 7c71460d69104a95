package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/linkhub/linkhub/internal/errors"
	"github.com/linkhub/linkhub/internal/oauth"
)

// apiClient wraps provider REST calls with the shared status-to-error
// mapping: 401/403 invalid token, 429 rate limited with retry-after,
// 5xx provider outage, anything else a sync failure.
type apiClient struct {
	provider string
	http     *http.Client
}

func newAPIClient(provider string, timeout time.Duration) *apiClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &apiClient{provider: provider, http: &http.Client{Timeout: timeout}}
}

func (c *apiClient) getJSON(ctx context.Context, url, bearer string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &errors.ErrDataSync{Provider: c.provider, Err: err}
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *apiClient) postJSON(ctx context.Context, url string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return &errors.ErrDataSync{Provider: c.provider, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return &errors.ErrDataSync{Provider: c.provider, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *apiClient) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &errors.ErrDataSync{Provider: c.provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.FromFetchStatus(c.provider, resp.StatusCode, oauth.RetryAfter(resp.Header))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &errors.ErrDataSync{Provider: c.provider, Err: err}
	}
	return nil
}
