package providers

import (
	"context"
	"testing"

	"github.com/linkhub/linkhub/internal/config"
	"github.com/linkhub/linkhub/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockConfig(windowDays int) config.ProviderConfig {
	return config.ProviderConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		BaseURL:      "https://unused.example.com",
		WindowDays:   windowDays,
		UseMockData:  true,
	}
}

func TestPlaidLinkFlowMockMode(t *testing.T) {
	env := newTestEnv(t)
	adapter := NewPlaid(mockConfig(30), env.deps, env.states)
	ctx := context.Background()

	conn, err := adapter.CreateConnection(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, conn.LinkToken)
	assert.Empty(t, conn.AuthURL)

	userID, err := adapter.HandleCallback(ctx, CallbackPayload{State: conn.State, PublicToken: "public-sandbox-1"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	status, err := adapter.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, status.Connected)

	lc, err := env.store.EnsureListAndCategory("user-1", "Finances", "Groceries")
	require.NoError(t, err)
	item, ok := env.store.Item(lc.List.ID, "plaid", "txn-1")
	require.True(t, ok)
	assert.Equal(t, "WHOLE FOODS", item.Title)
	assert.Equal(t, 42.17, item.Attributes["amount"])
}

func TestPlaidCallbackMissingPublicToken(t *testing.T) {
	env := newTestEnv(t)
	adapter := NewPlaid(mockConfig(30), env.deps, env.states)

	_, err := adapter.HandleCallback(context.Background(), CallbackPayload{
		State: env.states.Encode("plaid", "user-1"),
	})
	ie, ok := errors.AsIntegration(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeInvalidCallback, ie.Code())
}

func TestPlaidMissingConfig(t *testing.T) {
	env := newTestEnv(t)
	adapter := NewPlaid(config.ProviderConfig{}, env.deps, env.states)

	_, err := adapter.CreateConnection(context.Background(), "user-1")
	ie, ok := errors.AsIntegration(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeMissingConfiguration, ie.Code())
}

func TestBooksScrapedCredentialFlowMockMode(t *testing.T) {
	env := newTestEnv(t)
	browser := NewBrowserClient(false, env.deps.HTTPTimeout)
	adapter := NewBooks(mockConfig(365), env.deps, env.states, browser)
	ctx := context.Background()

	conn, err := adapter.CreateConnection(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, conn.State)
	assert.Empty(t, conn.AuthURL)

	userID, err := adapter.HandleCallback(ctx, CallbackPayload{
		State:    conn.State,
		Username: "reader",
		Password: "shelf-secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	// Site credentials are stored like any other credential tuple.
	cred, ok, err := env.tokens.Get("user-1", "books")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "reader", cred.ProviderUserID)

	lc, err := env.store.EnsureListAndCategory("user-1", "Books", "Science Fiction")
	require.NoError(t, err)
	item, ok := env.store.Item(lc.List.ID, "books", "bk-1")
	require.True(t, ok)
	assert.Equal(t, "The Left Hand of Darkness", item.Title)

	// Create-only: a second sync skips everything already shelved.
	result, err := adapter.Sync(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, result.Details.Fetched, result.Details.Skipped)
}

func TestBooksCallbackMissingCredentials(t *testing.T) {
	env := newTestEnv(t)
	browser := NewBrowserClient(false, env.deps.HTTPTimeout)
	adapter := NewBooks(mockConfig(365), env.deps, env.states, browser)

	_, err := adapter.HandleCallback(context.Background(), CallbackPayload{
		State:    env.states.Encode("books", "user-1"),
		Username: "reader",
	})
	ie, ok := errors.AsIntegration(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeInvalidCallback, ie.Code())
}

func TestGmailMockSyncClassifiesBySenderDomain(t *testing.T) {
	env := newTestEnv(t)
	fake := newFakeStrava(t) // reuse the token endpoint shape
	cfg := mockConfig(30)
	cfg.RedirectURI = "https://app.example.com/cb"
	cfg.AuthURL = fake.server.URL + "/oauth/authorize"
	cfg.TokenURL = fake.server.URL + "/oauth/token"
	adapter := NewGmail(cfg, env.deps, env.states)
	ctx := context.Background()

	conn, err := adapter.CreateConnection(ctx, "user-1")
	require.NoError(t, err)
	_, err = adapter.HandleCallback(ctx, CallbackPayload{State: conn.State, Code: "good-code"})
	require.NoError(t, err)

	lc, err := env.store.EnsureListAndCategory("user-1", "Mail", "Development")
	require.NoError(t, err)
	item, ok := env.store.Item(lc.List.ID, "gmail", "msg-1")
	require.True(t, ok)
	assert.Equal(t, "PR merged", item.Title)
	assert.Equal(t, "notifications@github.com", item.Attributes["from"])
}

func TestRegistryDispatch(t *testing.T) {
	env := newTestEnv(t)
	cfg := &config.Config{Providers: map[string]config.ProviderConfig{}}
	registry := BuildRegistry(cfg, env.deps, env.states)

	for _, name := range []string{"plaid", "strava", "spotify", "healthkit", "contacts", "gmail", "location", "books"} {
		adapter, err := registry.Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, adapter.Name())
	}

	_, err := registry.Get("myspace")
	ie, ok := errors.AsIntegration(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeProviderNotFound, ie.Code())
	assert.Len(t, registry.Names(), 8)
}

func TestClassifySenderDomain(t *testing.T) {
	cases := map[string]string{
		"Build Bot <ci@github.com>": "Development",
		"jobs@linkedin.com":         "Career",
		"orders@amazon.com":         "Shopping",
		"alerts@chase.com":          "Finance",
		"friend@example.com":        "",
		"no-at-sign":                "",
	}
	for from, want := range cases {
		assert.Equal(t, want, classifySenderDomain(from), from)
	}
}
