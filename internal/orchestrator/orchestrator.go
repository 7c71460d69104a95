package orchestrator

import (
	"context"
	"time"

	"github.com/linkhub/linkhub/internal/errors"
	"github.com/linkhub/linkhub/internal/logging"
	"github.com/linkhub/linkhub/internal/metrics"
	"github.com/linkhub/linkhub/internal/models"
	"github.com/linkhub/linkhub/internal/notify"
	"github.com/linkhub/linkhub/internal/providers"
)

// Orchestrator fronts the adapter registry: it resolves provider names,
// fans status queries across all adapters, and feeds operational events to
// the notifier. The HTTP layer talks only to this type.
type Orchestrator struct {
	registry *providers.Registry
	logger   *logging.Logger
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

// New creates an orchestrator. A nil notifier degrades to Noop; a nil
// metrics handle disables recording.
func New(registry *providers.Registry, logger *logging.Logger, notifier notify.Notifier, m *metrics.Metrics) *Orchestrator {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Orchestrator{registry: registry, logger: logger, notifier: notifier, metrics: m}
}

func (o *Orchestrator) recordError(provider string, err error) {
	if o.metrics == nil {
		return
	}
	if ie, ok := errors.AsIntegration(err); ok {
		o.metrics.RecordError(string(ie.Code()), provider)
	}
}

// Providers lists the registered provider names.
func (o *Orchestrator) Providers() []string {
	return o.registry.Names()
}

// Connect starts a connection flow for userID with the named provider.
func (o *Orchestrator) Connect(ctx context.Context, provider, userID string) (*providers.ConnectionResult, error) {
	adapter, err := o.registry.Get(provider)
	if err != nil {
		return nil, err
	}
	result, err := adapter.CreateConnection(ctx, userID)
	if err != nil {
		o.recordError(provider, err)
		return nil, err
	}
	// Device integrations are connected the moment the upload token is minted.
	if o.metrics != nil && result.UploadToken != "" {
		o.metrics.IncConnectedLinks(provider)
	}
	return result, nil
}

// Callback completes a connection flow and reports the connect event.
func (o *Orchestrator) Callback(ctx context.Context, provider string, payload providers.CallbackPayload) (string, error) {
	adapter, err := o.registry.Get(provider)
	if err != nil {
		return "", err
	}
	userID, err := adapter.HandleCallback(ctx, payload)
	if err != nil {
		o.recordError(provider, err)
		if o.metrics != nil {
			o.metrics.RecordCallback(provider, "failure")
		}
		return "", err
	}
	if o.metrics != nil {
		o.metrics.RecordCallback(provider, "success")
		// Sample uploads reuse the callback path; only connection-establishing
		// callbacks move the gauge.
		if len(payload.Samples) == 0 {
			o.metrics.IncConnectedLinks(provider)
		}
	}
	o.notifier.ProviderConnected(ctx, provider, userID)
	return userID, nil
}

// Sync runs one sync and reports failures to the notifier before
// propagating them.
func (o *Orchestrator) Sync(ctx context.Context, provider, userID string) (*models.SyncResult, error) {
	adapter, err := o.registry.Get(provider)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	result, err := adapter.Sync(ctx, userID)
	if err != nil {
		o.recordError(provider, err)
		if o.metrics != nil {
			o.metrics.RecordSyncRun(provider, "failure", time.Since(start).Seconds())
		}
		o.notifier.SyncFailed(ctx, provider, userID, err)
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.RecordSyncRun(provider, "success", time.Since(start).Seconds())
		o.metrics.RecordSyncRecords(provider, result.Details.Processed, result.Details.Skipped)
	}
	return result, nil
}

// Status answers for one provider.
func (o *Orchestrator) Status(ctx context.Context, provider, userID string) (*models.ConnectionStatus, error) {
	adapter, err := o.registry.Get(provider)
	if err != nil {
		return nil, err
	}
	return adapter.Status(ctx, userID)
}

// StatusAll answers for every registered provider in name order.
func (o *Orchestrator) StatusAll(ctx context.Context, userID string) ([]models.ConnectionStatus, error) {
	names := o.registry.Names()
	statuses := make([]models.ConnectionStatus, 0, len(names))
	for _, name := range names {
		adapter, err := o.registry.Get(name)
		if err != nil {
			return nil, err
		}
		status, err := adapter.Status(ctx, userID)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, *status)
	}
	return statuses, nil
}

// Disconnect severs the named provider for userID.
func (o *Orchestrator) Disconnect(ctx context.Context, provider, userID string) error {
	adapter, err := o.registry.Get(provider)
	if err != nil {
		return err
	}
	if err := adapter.Disconnect(ctx, userID); err != nil {
		o.recordError(provider, err)
		return err
	}
	if o.metrics != nil {
		o.metrics.DecConnectedLinks(provider)
	}
	return nil
}
