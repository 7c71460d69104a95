package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/linkhub/linkhub/internal/config"
	"github.com/linkhub/linkhub/internal/logging"
	"github.com/linkhub/linkhub/internal/metrics"
	"github.com/linkhub/linkhub/internal/orchestrator"
	"github.com/linkhub/linkhub/internal/providers"
	"github.com/linkhub/linkhub/internal/statetoken"
	"github.com/linkhub/linkhub/internal/store"
	"github.com/linkhub/linkhub/internal/syncengine"
	"github.com/linkhub/linkhub/internal/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, apiCfg config.APIConfig) *Server {
	t.Helper()

	st := store.NewMemoryStore()
	logger := logging.NewLogger(logging.WithLevel(logging.LevelError), logging.WithOutput(io.Discard))
	deps := providers.Deps{
		Store:       st,
		Tokens:      tokenstore.NewMemoryStore(),
		Engine:      syncengine.NewEngine(st, logger),
		Logger:      logger,
		HTTPTimeout: 5 * time.Second,
	}
	cfg := &config.Config{Providers: map[string]config.ProviderConfig{
		"plaid": {ClientID: "id", ClientSecret: "secret", UseMockData: true, WindowDays: 30},
	}}
	registry := providers.BuildRegistry(cfg, deps, statetoken.New("secret"))
	orch := orchestrator.New(registry, logger, nil, nil)

	if apiCfg.BasePath == "" {
		apiCfg.BasePath = "/api/v1"
	}
	if apiCfg.RateLimit.RequestsPerMinute == 0 {
		apiCfg.RateLimit.RequestsPerMinute = 1000
	}
	if apiCfg.RateLimit.Burst == 0 {
		apiCfg.RateLimit.Burst = 100
	}
	serverCfg := config.ServerConfig{Host: "127.0.0.1", HTTPPort: 8080, ShutdownTimeout: 5 * time.Second}

	return NewServer(serverCfg, apiCfg, orch, metrics.NewMetrics("apitest"), logger)
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	w := doJSON(t, srv, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["providers"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	w := doJSON(t, srv, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "apitest_")
}

func TestConnectCallbackStatusFlow(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/integrations/plaid/connect?user_id=user-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var conn providers.ConnectionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conn))
	require.NotEmpty(t, conn.LinkToken)
	require.NotEmpty(t, conn.State)

	w = doJSON(t, srv, http.MethodPost, "/api/v1/integrations/plaid/callback", map[string]string{
		"state":        conn.State,
		"public_token": "public-1",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var cb map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cb))
	assert.Equal(t, true, cb["connected"])
	assert.Equal(t, "user-1", cb["user_id"])

	w = doJSON(t, srv, http.MethodGet, "/api/v1/integrations/plaid/status?user_id=user-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, true, status["connected"])
}

func TestConnectUserIDFromBody(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/integrations/plaid/connect", map[string]string{"user_id": "user-9"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var conn providers.ConnectionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conn))
	assert.Contains(t, conn.State, "plaid-user-9-")
}

func TestConnectMissingUserID(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/integrations/plaid/connect", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusBadRequest, body.StatusCode)
	assert.Equal(t, "INVALID_CALLBACK", body.ErrorCode)
	assert.Equal(t, "Integration Error", body.Error)
	assert.Equal(t, "plaid", body.Provider)
	assert.NotEmpty(t, body.Timestamp)
}

func TestUnknownProviderReturns404(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/integrations/myspace/connect?user_id=user-1", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "PROVIDER_NOT_FOUND", body.ErrorCode)
	assert.Equal(t, "myspace", body.Provider)
}

func TestSyncNotConnectedReturns400(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/integrations/plaid/sync?user_id=user-1", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "PROVIDER_NOT_CONNECTED", body.ErrorCode)
}

func TestStatusAllListsEveryProvider(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	w := doJSON(t, srv, http.MethodGet, "/api/v1/integrations?user_id=user-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Integrations []map[string]interface{} `json:"integrations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Integrations, 8)
}

func TestDisconnectFlow(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/integrations/plaid/connect?user_id=user-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var conn providers.ConnectionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conn))

	w = doJSON(t, srv, http.MethodPost, "/api/v1/integrations/plaid/callback", map[string]string{
		"state":        conn.State,
		"public_token": "public-1",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodDelete, "/api/v1/integrations/plaid?user_id=user-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/integrations/plaid/status?user_id=user-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, false, status["connected"])
}

func TestAPIKeyAuthRequired(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{
		Auth: config.AuthConfig{Enabled: true, APIKeys: []string{"secret-key"}},
	})

	w := doJSON(t, srv, http.MethodGet, "/api/v1/integrations?user_id=user-1", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/integrations?user_id=user-1", nil, map[string]string{
		"X-API-Key": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/integrations?user_id=user-1", nil, map[string]string{
		"X-API-Key": "secret-key",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// Health stays open regardless of auth.
	w = doJSON(t, srv, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitKicksIn(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{
		RateLimit: config.RateLimitConfig{RequestsPerMinute: 60, Burst: 3},
	})

	var last int
	for i := 0; i < 5; i++ {
		w := doJSON(t, srv, http.MethodGet, "/health", nil, nil)
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestCorrelationIDEchoed(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	w := doJSON(t, srv, http.MethodGet, "/health", nil, map[string]string{
		"X-Correlation-ID": "corr-123",
	})
	assert.Equal(t, "corr-123", w.Header().Get("X-Correlation-ID"))

	w = doJSON(t, srv, http.MethodGet, "/health", nil, nil)
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestCallbackGETBindsQuery(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	// A denied OAuth redirect arrives as a GET with error set.
	w := doJSON(t, srv, http.MethodGet, "/api/v1/integrations/strava/callback?error=access_denied", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "OAUTH_AUTH_FAILED", body.ErrorCode)
}
