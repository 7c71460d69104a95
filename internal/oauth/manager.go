package oauth

import (
	"context"
	"sync"
	"time"

	"github.com/linkhub/linkhub/internal/errors"
	"github.com/linkhub/linkhub/internal/logging"
	"github.com/linkhub/linkhub/internal/models"
	"github.com/linkhub/linkhub/internal/tokenstore"
)

// DefaultExpiryMargin is how close to expiry a cached access token may get
// before a refresh is forced.
const DefaultExpiryMargin = 60 * time.Second

// Manager owns the credential lifecycle for one provider: cached access
// while fresh, refresh near expiry, reconnect when refresh is impossible.
// Refreshes are serialized per user so concurrent callers cannot burn a
// provider's refresh-token rotation.
type Manager struct {
	provider string
	tokens   tokenstore.Store
	client   *Client
	logger   *logging.Logger
	margin   time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a credential manager for provider.
func NewManager(provider string, tokens tokenstore.Store, client *Client, logger *logging.Logger) *Manager {
	return &Manager{
		provider: provider,
		tokens:   tokens,
		client:   client,
		logger:   logger,
		margin:   DefaultExpiryMargin,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[userID] = lock
	}
	return lock
}

// EnsureValidAccessToken returns a usable access token for userID, refreshing
// if the stored one is expired or inside the safety margin. Fields the
// refresh response omits (an unrotated refresh token, scope) are preserved
// from the previous tuple.
func (m *Manager) EnsureValidAccessToken(ctx context.Context, userID string) (string, error) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	cred, ok, err := m.tokens.Get(userID, m.provider)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &errors.ErrInvalidToken{Provider: m.provider, Reason: "no stored credential"}
	}

	if !cred.ExpiresWithin(m.margin) {
		return cred.AccessToken, nil
	}

	if cred.RefreshToken == "" {
		return "", &errors.ErrInvalidToken{Provider: m.provider, Reason: "access token expired and no refresh token is stored"}
	}

	resp, err := m.client.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return "", err
	}

	updated := mergeRefreshed(cred, resp)
	if err := m.tokens.Set(userID, m.provider, updated); err != nil {
		return "", err
	}

	m.logger.InfoWithContext(ctx, "access token refreshed", "provider", m.provider, "user_id", userID)
	return updated.AccessToken, nil
}

// mergeRefreshed folds a refresh response into the previous credential,
// keeping whatever the response omitted.
func mergeRefreshed(prev *models.Credential, resp *TokenResponse) *models.Credential {
	updated := &models.Credential{
		AccessToken:    resp.AccessToken,
		RefreshToken:   resp.RefreshToken,
		Scope:          resp.Scope,
		ProviderUserID: prev.ProviderUserID,
	}
	if updated.RefreshToken == "" {
		updated.RefreshToken = prev.RefreshToken
	}
	if updated.Scope == "" {
		updated.Scope = prev.Scope
	}
	if resp.ExpiresIn > 0 {
		updated.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix()
	}
	return updated
}

// FromTokenResponse builds a credential from an initial exchange response.
func FromTokenResponse(resp *TokenResponse) *models.Credential {
	cred := &models.Credential{
		AccessToken:    resp.AccessToken,
		RefreshToken:   resp.RefreshToken,
		Scope:          resp.Scope,
		ProviderUserID: resp.ProviderUserID,
	}
	if resp.ExpiresIn > 0 {
		cred.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix()
	}
	return cred
}
