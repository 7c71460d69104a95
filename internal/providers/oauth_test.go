package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/linkhub/linkhub/internal/config"
	"github.com/linkhub/linkhub/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStrava stands in for both the OAuth endpoints and the activities API.
type fakeStrava struct {
	server     *httptest.Server
	exchanges  int
	fetches    int
	revokes    int
	revokeCode int
	activities []map[string]interface{}
	fetchCode  int
	retryAfter string
}

func newFakeStrava(t *testing.T) *fakeStrava {
	t.Helper()
	fake := &fakeStrava{fetchCode: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("grant_type") == "authorization_code" && r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		fake.exchanges++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    21600,
			"scope":         "activity:read_all",
		})
	})
	mux.HandleFunc("/oauth/deauthorize", func(w http.ResponseWriter, r *http.Request) {
		fake.revokes++
		if fake.revokeCode != 0 {
			w.WriteHeader(fake.revokeCode)
		}
	})
	mux.HandleFunc("/athlete/activities", func(w http.ResponseWriter, r *http.Request) {
		fake.fetches++
		if fake.fetchCode != http.StatusOK {
			if fake.retryAfter != "" {
				w.Header().Set("Retry-After", fake.retryAfter)
			}
			w.WriteHeader(fake.fetchCode)
			return
		}
		if r.URL.Query().Get("page") != "1" {
			json.NewEncoder(w).Encode([]interface{}{})
			return
		}
		json.NewEncoder(w).Encode(fake.activities)
	})
	fake.server = httptest.NewServer(mux)
	t.Cleanup(fake.server.Close)
	return fake
}

func (f *fakeStrava) config() config.ProviderConfig {
	return config.ProviderConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example.com/cb",
		AuthURL:      f.server.URL + "/oauth/authorize",
		TokenURL:     f.server.URL + "/oauth/token",
		RevokeURL:    f.server.URL + "/oauth/deauthorize",
		BaseURL:      f.server.URL,
		Scopes:       []string{"read", "activity:read_all"},
		WindowDays:   30,
	}
}

func activityJSON(id int, name, kind string, start time.Time) map[string]interface{} {
	return map[string]interface{}{
		"id":          id,
		"name":        name,
		"type":        kind,
		"start_date":  start.UTC().Format(time.RFC3339),
		"distance":    5000.0,
		"moving_time": 1500,
	}
}

func TestOAuthConnectCallbackSync(t *testing.T) {
	env := newTestEnv(t)
	fake := newFakeStrava(t)
	fake.activities = []map[string]interface{}{
		activityJSON(1, "Morning Run", "Run", time.Now().Add(-2*time.Hour)),
		activityJSON(2, "Lunch Ride", "Ride", time.Now().Add(-time.Hour)),
	}

	adapter := NewStrava(fake.config(), env.deps, env.states)
	ctx := context.Background()

	conn, err := adapter.CreateConnection(ctx, "user-1")
	require.NoError(t, err)
	parsed, err := url.Parse(conn.AuthURL)
	require.NoError(t, err)
	query := parsed.Query()
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, conn.State, query.Get("state"))
	assert.True(t, strings.HasPrefix(query.Get("state"), "strava-user-1-"))

	userID, err := adapter.HandleCallback(ctx, CallbackPayload{State: conn.State, Code: "good-code"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, 1, fake.exchanges)
	// The callback triggers an initial sync.
	assert.GreaterOrEqual(t, fake.fetches, 1)

	cred, ok, err := env.tokens.Get("user-1", "strava")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "access-1", cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken)

	status, err := adapter.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.NotNil(t, status.LastSyncedAt)

	// Re-running the sync upserts the same activities in place.
	result, err := adapter.Sync(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, result.OK)

	integration, _, err := env.store.GetIntegration("strava")
	require.NoError(t, err)
	require.NotNil(t, integration)
	lc, err := env.store.EnsureListAndCategory("user-1", "Workouts", "Running")
	require.NoError(t, err)
	count, err := env.store.CountListItems(lc.List.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestOAuthCallbackDenied(t *testing.T) {
	env := newTestEnv(t)
	fake := newFakeStrava(t)
	adapter := NewStrava(fake.config(), env.deps, env.states)

	_, err := adapter.HandleCallback(context.Background(), CallbackPayload{
		State: env.states.Encode("strava", "user-1"),
		Error: "access_denied",
	})
	ie, ok := errors.AsIntegration(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeOAuthAuthFailed, ie.Code())
}

func TestOAuthCallbackRejectsForeignState(t *testing.T) {
	env := newTestEnv(t)
	fake := newFakeStrava(t)
	adapter := NewStrava(fake.config(), env.deps, env.states)

	_, err := adapter.HandleCallback(context.Background(), CallbackPayload{
		State: env.states.Encode("spotify", "user-1"),
		Code:  "good-code",
	})
	ie, ok := errors.AsIntegration(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeInvalidCallback, ie.Code())
	assert.Equal(t, 0, fake.exchanges, "no exchange on a bad state token")
}

func TestOAuthCreateConnectionMissingConfig(t *testing.T) {
	env := newTestEnv(t)
	adapter := NewStrava(config.ProviderConfig{}, env.deps, env.states)

	_, err := adapter.CreateConnection(context.Background(), "user-1")
	ie, ok := errors.AsIntegration(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeMissingConfiguration, ie.Code())
	var ce *errors.ErrConfiguration
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Missing, "client_id")
}

func TestOAuthSyncNotConnected(t *testing.T) {
	env := newTestEnv(t)
	fake := newFakeStrava(t)
	adapter := NewStrava(fake.config(), env.deps, env.states)

	_, err := adapter.Sync(context.Background(), "user-1")
	ie, ok := errors.AsIntegration(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeProviderNotConnected, ie.Code())
}

func TestOAuthSyncRateLimited(t *testing.T) {
	env := newTestEnv(t)
	fake := newFakeStrava(t)
	adapter := NewStrava(fake.config(), env.deps, env.states)
	ctx := context.Background()

	conn, err := adapter.CreateConnection(ctx, "user-1")
	require.NoError(t, err)
	_, err = adapter.HandleCallback(ctx, CallbackPayload{State: conn.State, Code: "good-code"})
	require.NoError(t, err)

	fake.fetchCode = http.StatusTooManyRequests
	fake.retryAfter = "42"
	_, err = adapter.Sync(ctx, "user-1")

	var rl *errors.ErrRateLimit
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 42*time.Second, rl.RetryAfter)
}

func TestOAuthDisconnect(t *testing.T) {
	env := newTestEnv(t)
	fake := newFakeStrava(t)
	adapter := NewStrava(fake.config(), env.deps, env.states)
	ctx := context.Background()

	conn, err := adapter.CreateConnection(ctx, "user-1")
	require.NoError(t, err)
	_, err = adapter.HandleCallback(ctx, CallbackPayload{State: conn.State, Code: "good-code"})
	require.NoError(t, err)

	require.NoError(t, adapter.Disconnect(ctx, "user-1"))
	assert.Equal(t, 1, fake.revokes, "disconnect revokes the token upstream")

	status, err := adapter.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, status.Connected)

	_, ok, err := env.tokens.Get("user-1", "strava")
	require.NoError(t, err)
	assert.False(t, ok, "credential is gone after disconnect")

	_, err = adapter.Sync(ctx, "user-1")
	ie, ok := errors.AsIntegration(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeProviderNotConnected, ie.Code())
}

func TestDisconnectSurvivesFailedRevoke(t *testing.T) {
	env := newTestEnv(t)
	fake := newFakeStrava(t)
	adapter := NewStrava(fake.config(), env.deps, env.states)
	ctx := context.Background()

	conn, err := adapter.CreateConnection(ctx, "user-1")
	require.NoError(t, err)
	_, err = adapter.HandleCallback(ctx, CallbackPayload{State: conn.State, Code: "good-code"})
	require.NoError(t, err)

	// The provider refuses the revoke; local cleanup still happens.
	fake.revokeCode = http.StatusInternalServerError
	require.NoError(t, adapter.Disconnect(ctx, "user-1"))

	_, ok, err := env.tokens.Get("user-1", "strava")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatusUnknownUserNotConnected(t *testing.T) {
	env := newTestEnv(t)
	fake := newFakeStrava(t)
	adapter := NewStrava(fake.config(), env.deps, env.states)

	status, err := adapter.Status(context.Background(), "stranger")
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Nil(t, status.LastSyncedAt)
}

func TestStatusConnectedLinkWithoutCredential(t *testing.T) {
	env := newTestEnv(t)
	fake := newFakeStrava(t)
	adapter := NewStrava(fake.config(), env.deps, env.states)
	ctx := context.Background()

	conn, err := adapter.CreateConnection(ctx, "user-1")
	require.NoError(t, err)
	_, err = adapter.HandleCallback(ctx, CallbackPayload{State: conn.State, Code: "good-code"})
	require.NoError(t, err)

	// Credential vanished but the link row is still CONNECTED.
	require.NoError(t, env.tokens.Delete("user-1", "strava"))

	status, err := adapter.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, status.Connected)
}
