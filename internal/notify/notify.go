package notify

import (
	"context"
	"fmt"

	"github.com/linkhub/linkhub/internal/logging"
)

// Notifier receives operational events worth a human's attention. It is
// best-effort: implementations never return errors to the caller.
type Notifier interface {
	ProviderConnected(ctx context.Context, provider, userID string)
	SyncFailed(ctx context.Context, provider, userID string, err error)
}

// Noop discards every event.
type Noop struct{}

func (Noop) ProviderConnected(context.Context, string, string) {}
func (Noop) SyncFailed(context.Context, string, string, error) {}

// LogOnly writes events to the structured log. It backs deployments without
// a configured alert channel.
type LogOnly struct {
	Logger *logging.Logger
}

func (l LogOnly) ProviderConnected(ctx context.Context, provider, userID string) {
	l.Logger.InfoWithContext(ctx, "provider connected", "provider", provider, "user_id", userID)
}

func (l LogOnly) SyncFailed(ctx context.Context, provider, userID string, err error) {
	l.Logger.WarnWithContext(ctx, "sync failed", "provider", provider, "user_id", userID, "error", fmt.Sprintf("%v", err))
}
