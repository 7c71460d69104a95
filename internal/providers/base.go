package providers

import (
	"context"
	"time"

	"github.com/linkhub/linkhub/internal/config"
	"github.com/linkhub/linkhub/internal/errors"
	"github.com/linkhub/linkhub/internal/logging"
	"github.com/linkhub/linkhub/internal/models"
	"github.com/linkhub/linkhub/internal/store"
	"github.com/linkhub/linkhub/internal/syncengine"
	"github.com/linkhub/linkhub/internal/tokenstore"
)

// Deps bundles the shared infrastructure every adapter is built on.
type Deps struct {
	Store  store.Store
	Tokens tokenstore.Store
	Engine *syncengine.Engine
	Logger *logging.Logger
	// HTTPTimeout bounds outbound provider calls.
	HTTPTimeout time.Duration
	// PageCap bounds how many pages a paginated fetch will follow.
	PageCap int
}

func (d Deps) pageCap() int {
	if d.PageCap <= 0 {
		return 20
	}
	return d.PageCap
}

// base carries the behavior all adapters share: status policy, disconnect,
// connection bookkeeping, and the post-callback opportunistic sync.
type base struct {
	name string
	cfg  config.ProviderConfig
	deps Deps
}

func newBase(name string, cfg config.ProviderConfig, deps Deps) base {
	return base{name: name, cfg: cfg, deps: deps}
}

func (b *base) Name() string { return b.name }

// status implements the shared policy: a missing link or missing stored
// credential reads as connected=false; any other failure propagates so an
// outage is not misreported as "not connected".
func (b *base) status(ctx context.Context, userID string, needsCredential bool) (*models.ConnectionStatus, error) {
	result := &models.ConnectionStatus{Provider: b.name}

	integration, ok, err := b.deps.Store.GetIntegration(b.name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return result, nil
	}

	link, ok, err := b.deps.Store.GetUserIntegration(userID, integration.ID)
	if err != nil {
		return nil, err
	}
	if !ok || link.Status != models.LinkConnected {
		return result, nil
	}
	result.LastSyncedAt = link.LastSyncedAt

	if needsCredential {
		_, ok, err := b.deps.Tokens.Get(userID, b.name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return result, nil
		}
	}

	result.Connected = true
	return result, nil
}

// disconnect drops the credential and flips the link. Both steps are
// idempotent so a retry after a partial failure converges.
func (b *base) disconnect(ctx context.Context, userID string) error {
	if err := b.deps.Tokens.Delete(userID, b.name); err != nil {
		return err
	}
	integration, ok, err := b.deps.Store.GetIntegration(b.name)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := b.deps.Store.MarkDisconnected(userID, integration.ID); err != nil {
		return err
	}
	b.deps.Logger.InfoWithContext(ctx, "provider disconnected", "provider", b.name, "user_id", userID)
	return nil
}

// markConnected records the link as usable after a completed callback.
func (b *base) markConnected(userID string) error {
	integration, err := b.deps.Store.EnsureIntegration(b.name)
	if err != nil {
		return err
	}
	return b.deps.Store.MarkConnected(userID, integration.ID)
}

// requireConnected gates sync on an established link.
func (b *base) requireConnected(userID string) error {
	integration, ok, err := b.deps.Store.GetIntegration(b.name)
	if err != nil {
		return err
	}
	if !ok {
		return &errors.ErrProviderNotConnected{Provider: b.name, UserID: userID}
	}
	link, ok, err := b.deps.Store.GetUserIntegration(userID, integration.ID)
	if err != nil {
		return err
	}
	if !ok || link.Status != models.LinkConnected {
		return &errors.ErrProviderNotConnected{Provider: b.name, UserID: userID}
	}
	return nil
}

// syncAfterConnect runs a best-effort first sync right after a callback
// completes. The connection already succeeded; a sync failure here is logged
// and swallowed so it cannot fail the callback.
func (b *base) syncAfterConnect(ctx context.Context, userID string, run func(context.Context, string) (*models.SyncResult, error)) {
	if _, err := run(ctx, userID); err != nil {
		b.deps.Logger.WarnWithContext(ctx, "initial sync after connect failed",
			"provider", b.name, "user_id", userID, "error", err.Error())
	}
}

// requireConfig returns MissingConfiguration listing every absent key.
func (b *base) requireConfig(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return &errors.ErrConfiguration{Provider: b.name, Missing: missing}
	}
	return nil
}
