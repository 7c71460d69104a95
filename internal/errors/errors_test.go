package errors

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeProviderNotFound, http.StatusNotFound},
		{CodeProviderNotConnected, http.StatusBadRequest},
		{CodeOAuthAuthFailed, http.StatusUnauthorized},
		{CodeInvalidToken, http.StatusUnauthorized},
		{CodeRefreshTokenFailed, http.StatusUnauthorized},
		{CodeProviderAPIError, http.StatusBadGateway},
		{CodeDataSyncFailed, http.StatusInternalServerError},
		{CodeMissingConfiguration, http.StatusInternalServerError},
		{CodeInvalidCallback, http.StatusBadRequest},
		{CodeRateLimitExceeded, http.StatusTooManyRequests},
		{CodeUserDataNotFound, http.StatusNotFound},
		{CodeInsufficientPermissions, http.StatusForbidden},
		{CodeInvalidUploadToken, http.StatusUnauthorized},
		{CodeDataValidationFailed, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.code))
		})
	}
}

func TestFromFetchStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   Code
	}{
		{"unauthorized", 401, CodeInvalidToken},
		{"forbidden", 403, CodeInvalidToken},
		{"rate limited", 429, CodeRateLimitExceeded},
		{"server error", 500, CodeProviderAPIError},
		{"bad gateway", 502, CodeProviderAPIError},
		{"unexpected", 418, CodeDataSyncFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromFetchStatus("strava", tt.status, 0)
			ie, ok := AsIntegration(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, ie.Code())
			assert.Equal(t, "strava", ie.ProviderName())
		})
	}
}

func TestFromFetchStatusRetryAfter(t *testing.T) {
	err := FromFetchStatus("spotify", 429, 42*time.Second)

	var rl *ErrRateLimit
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 42*time.Second, rl.RetryAfter)
	assert.Contains(t, rl.Error(), "42s")
}

func TestAsIntegrationWrapped(t *testing.T) {
	inner := &ErrInvalidToken{Provider: "plaid", Reason: "no credential"}
	wrapped := fmt.Errorf("sync aborted: %w", inner)

	ie, ok := AsIntegration(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidToken, ie.Code())
}

func TestAsIntegrationPlainError(t *testing.T) {
	_, ok := AsIntegration(fmt.Errorf("boom"))
	assert.False(t, ok)
}

func TestConfigurationErrorMessage(t *testing.T) {
	err := &ErrConfiguration{Provider: "strava", Missing: []string{"client_id", "client_secret"}}
	assert.Contains(t, err.Error(), "client_id, client_secret")
	assert.Equal(t, CodeMissingConfiguration, err.Code())
}
