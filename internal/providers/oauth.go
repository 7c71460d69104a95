package providers

import (
	"context"
	"net/url"
	"strings"

	"github.com/linkhub/linkhub/internal/config"
	"github.com/linkhub/linkhub/internal/errors"
	"github.com/linkhub/linkhub/internal/models"
	"github.com/linkhub/linkhub/internal/oauth"
	"github.com/linkhub/linkhub/internal/statetoken"
	"github.com/linkhub/linkhub/internal/syncengine"
)

// oauthAdapter implements the authorization-code flow shared by every OAuth
// provider. Provider files supply the data source and any authorize-URL
// extras; everything else is common.
type oauthAdapter struct {
	base
	states    *statetoken.Codec
	client    *oauth.Client
	creds     *oauth.Manager
	source    syncengine.Source
	policy    syncengine.WritePolicy
	extraAuth url.Values
}

func newOAuthAdapter(name string, cfg config.ProviderConfig, deps Deps, states *statetoken.Codec, source syncengine.Source, policy syncengine.WritePolicy, extraAuth url.Values) *oauthAdapter {
	client := oauth.NewClient(name, oauth.Endpoints{
		TokenURL:     cfg.TokenURL,
		RevokeURL:    cfg.RevokeURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}, deps.HTTPTimeout)
	return &oauthAdapter{
		base:      newBase(name, cfg, deps),
		states:    states,
		client:    client,
		creds:     oauth.NewManager(name, deps.Tokens, client, deps.Logger),
		source:    source,
		policy:    policy,
		extraAuth: extraAuth,
	}
}

func (o *oauthAdapter) CreateConnection(ctx context.Context, userID string) (*ConnectionResult, error) {
	if err := o.requireConfig(
		"client_id", o.cfg.ClientID,
		"client_secret", o.cfg.ClientSecret,
		"redirect_uri", o.cfg.RedirectURI,
		"auth_url", o.cfg.AuthURL,
		"token_url", o.cfg.TokenURL,
	); err != nil {
		return nil, err
	}

	state := o.states.Encode(o.name, userID)

	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", o.cfg.ClientID)
	params.Set("redirect_uri", o.cfg.RedirectURI)
	params.Set("state", state)
	if len(o.cfg.Scopes) > 0 {
		params.Set("scope", strings.Join(o.cfg.Scopes, " "))
	}
	for key, values := range o.extraAuth {
		for _, value := range values {
			params.Add(key, value)
		}
	}

	separator := "?"
	if strings.Contains(o.cfg.AuthURL, "?") {
		separator = "&"
	}

	o.deps.Logger.InfoWithContext(ctx, "connection flow started", "provider", o.name, "user_id", userID)
	return &ConnectionResult{
		AuthURL: o.cfg.AuthURL + separator + params.Encode(),
		State:   state,
	}, nil
}

func (o *oauthAdapter) HandleCallback(ctx context.Context, payload CallbackPayload) (string, error) {
	if payload.Error != "" {
		return "", &errors.ErrOAuthAuthentication{Provider: o.name, Reason: "provider denied authorization: " + payload.Error}
	}
	if payload.State == "" {
		return "", &errors.ErrInvalidCallback{Provider: o.name, Reason: "callback is missing state"}
	}
	if payload.Code == "" {
		return "", &errors.ErrInvalidCallback{Provider: o.name, Reason: "callback is missing authorization code"}
	}

	userID, err := o.states.Decode(o.name, payload.State)
	if err != nil {
		return "", err
	}

	resp, err := o.client.ExchangeCode(ctx, payload.Code, o.cfg.RedirectURI)
	if err != nil {
		return "", err
	}
	if err := o.deps.Tokens.Set(userID, o.name, oauth.FromTokenResponse(resp)); err != nil {
		return "", err
	}
	if err := o.markConnected(userID); err != nil {
		return "", err
	}

	o.deps.Logger.InfoWithContext(ctx, "provider connected", "provider", o.name, "user_id", userID)
	o.syncAfterConnect(ctx, userID, o.Sync)
	return userID, nil
}

func (o *oauthAdapter) Sync(ctx context.Context, userID string) (*models.SyncResult, error) {
	if err := o.requireConnected(userID); err != nil {
		return nil, err
	}
	return o.deps.Engine.Run(ctx, userID, o.source, syncengine.Options{
		Provider:   o.name,
		WindowDays: o.cfg.WindowDays,
		Policy:     o.policy,
	})
}

func (o *oauthAdapter) Status(ctx context.Context, userID string) (*models.ConnectionStatus, error) {
	return o.status(ctx, userID, true)
}

// Disconnect revokes the token at the provider when a revoke endpoint is
// configured, then drops the local credential and link. Remote revocation is
// best-effort: a failed revoke never blocks the local cleanup.
func (o *oauthAdapter) Disconnect(ctx context.Context, userID string) error {
	if cred, ok, err := o.deps.Tokens.Get(userID, o.name); err == nil && ok {
		if err := o.client.Revoke(ctx, cred.AccessToken); err != nil {
			o.deps.Logger.WarnWithContext(ctx, "remote token revocation failed",
				"provider", o.name, "user_id", userID, "error", err.Error())
		}
	}
	return o.disconnect(ctx, userID)
}
