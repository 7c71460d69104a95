package providers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linkhub/linkhub/internal/config"
	"github.com/linkhub/linkhub/internal/errors"
	"github.com/linkhub/linkhub/internal/models"
	"github.com/linkhub/linkhub/internal/statetoken"
	"github.com/linkhub/linkhub/internal/syncengine"
)

// uploadQueue buffers device-posted samples until the next sync drains them.
// The queue is the bridge that lets push-style device data flow through the
// same pull-style sync engine as API providers.
type uploadQueue struct {
	mu      sync.Mutex
	pending map[string][]syncengine.Record
}

func newUploadQueue() *uploadQueue {
	return &uploadQueue{pending: make(map[string][]syncengine.Record)}
}

func (q *uploadQueue) push(userID string, records []syncengine.Record) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[userID] = append(q.pending[userID], records...)
}

func (q *uploadQueue) drain(userID string) []syncengine.Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	records := q.pending[userID]
	delete(q.pending, userID)
	return records
}

func (q *uploadQueue) requeue(userID string, records []syncengine.Record) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[userID] = append(records, q.pending[userID]...)
}

// deviceAdapter serves providers whose data originates on the user's device.
// CreateConnection mints an upload token and a capability descriptor telling
// the device what to capture; the device then posts sample batches to the
// callback, authenticated by that token.
type deviceAdapter struct {
	base
	states     *statetoken.Codec
	queue      *uploadQueue
	capability map[string]interface{}
	translate  func(sample map[string]interface{}) (syncengine.Record, error)
	source     *deviceSource
	policy     syncengine.WritePolicy
}

func newDeviceAdapter(
	name string,
	cfg config.ProviderConfig,
	deps Deps,
	states *statetoken.Codec,
	listName string,
	capability map[string]interface{},
	translate func(sample map[string]interface{}) (syncengine.Record, error),
	classify func(rec syncengine.Record) string,
	policy syncengine.WritePolicy,
) *deviceAdapter {
	queue := newUploadQueue()
	adapter := &deviceAdapter{
		base:       newBase(name, cfg, deps),
		states:     states,
		queue:      queue,
		capability: capability,
		translate:  translate,
		policy:     policy,
	}
	adapter.source = &deviceSource{
		listName: listName,
		queue:    queue,
		classify: classify,
	}
	return adapter
}

// CreateConnection mints the upload token, stores it as the device
// credential, and marks the link connected: a device integration is usable
// as soon as the token is handed out.
func (d *deviceAdapter) CreateConnection(ctx context.Context, userID string) (*ConnectionResult, error) {
	token := uuid.New().String()
	if err := d.deps.Tokens.Set(userID, d.name, &models.Credential{AccessToken: token}); err != nil {
		return nil, err
	}
	if err := d.markConnected(userID); err != nil {
		return nil, err
	}

	d.deps.Logger.InfoWithContext(ctx, "device upload token issued", "provider", d.name, "user_id", userID)
	return &ConnectionResult{
		State:       d.states.Encode(d.name, userID),
		UploadToken: token,
		Capability:  d.capability,
	}, nil
}

// HandleCallback accepts a sample batch from the device. The upload token
// must match the stored credential exactly; a stale or foreign token is
// rejected before any sample is parsed.
func (d *deviceAdapter) HandleCallback(ctx context.Context, payload CallbackPayload) (string, error) {
	if payload.State == "" {
		return "", &errors.ErrInvalidCallback{Provider: d.name, Reason: "upload is missing state"}
	}
	userID, err := d.states.Decode(d.name, payload.State)
	if err != nil {
		return "", err
	}

	cred, ok, err := d.deps.Tokens.Get(userID, d.name)
	if err != nil {
		return "", err
	}
	if !ok || payload.DeviceToken == "" || payload.DeviceToken != cred.AccessToken {
		return "", &errors.ErrInvalidUploadToken{Provider: d.name}
	}

	records := make([]syncengine.Record, 0, len(payload.Samples))
	for _, sample := range payload.Samples {
		rec, err := d.translate(sample)
		if err != nil {
			return "", err
		}
		records = append(records, rec)
	}
	d.queue.push(userID, records)

	d.deps.Logger.InfoWithContext(ctx, "device samples accepted",
		"provider", d.name, "user_id", userID, "samples", len(records))
	d.syncAfterConnect(ctx, userID, d.Sync)
	return userID, nil
}

func (d *deviceAdapter) Sync(ctx context.Context, userID string) (*models.SyncResult, error) {
	if err := d.requireConnected(userID); err != nil {
		return nil, err
	}
	src := &userSource{userID: userID, inner: d.source}
	result, err := d.deps.Engine.Run(ctx, userID, src, syncengine.Options{
		Provider:   d.name,
		WindowDays: d.cfg.WindowDays,
		Policy:     d.policy,
	})
	if err != nil {
		// Put the drained batch back so the next sync retries it.
		d.queue.requeue(userID, src.drained)
		return nil, err
	}
	return result, nil
}

func (d *deviceAdapter) Status(ctx context.Context, userID string) (*models.ConnectionStatus, error) {
	return d.status(ctx, userID, true)
}

func (d *deviceAdapter) Disconnect(ctx context.Context, userID string) error {
	d.queue.drain(userID)
	return d.disconnect(ctx, userID)
}

// deviceSource drains the upload queue. If the engine fails mid-run the
// records are requeued by the wrapper so a later sync retries them.
type deviceSource struct {
	listName string
	queue    *uploadQueue
	classify func(rec syncengine.Record) string
}

// userSource pins a device source to one user so a failed run can requeue
// exactly what it drained.
type userSource struct {
	userID  string
	inner   *deviceSource
	drained []syncengine.Record
}

func (u *userSource) ListName() string { return u.inner.listName }

func (u *userSource) Fetch(ctx context.Context, _ string, since time.Time) ([]syncengine.Record, error) {
	u.drained = u.inner.queue.drain(u.userID)
	return u.drained, nil
}

func (u *userSource) Classify(rec syncengine.Record) string {
	return u.inner.classify(rec)
}
