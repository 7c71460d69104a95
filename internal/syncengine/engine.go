package syncengine

import (
	"context"
	"time"

	"github.com/linkhub/linkhub/internal/errors"
	"github.com/linkhub/linkhub/internal/logging"
	"github.com/linkhub/linkhub/internal/models"
	"github.com/linkhub/linkhub/internal/store"
	"golang.org/x/sync/singleflight"
)

// CategoryOther is where records land when a source cannot classify them.
const CategoryOther = "Other"

// Record is one provider-native datum after normalization but before
// persistence. Timestamp drives the incremental watermark.
type Record struct {
	ExternalID     string
	ExternalType   string
	Title          string
	Timestamp      time.Time
	Attributes     map[string]interface{}
	AttributeTypes map[string]models.DataType
}

// Source is the provider-side half of a sync run: fetch records newer than
// a point in time and assign each to a category.
type Source interface {
	// ListName names the list records are written into, e.g. "Workouts".
	ListName() string
	// Fetch returns records with Timestamp after since. Implementations map
	// provider HTTP failures to integration errors before returning.
	Fetch(ctx context.Context, userID string, since time.Time) ([]Record, error)
	// Classify returns the category name for a record, or "" for Other.
	Classify(rec Record) string
}

// WritePolicy selects how records that collide on the natural key
// (provider, external ID) are handled.
type WritePolicy int

const (
	// PolicyUpsert replaces a colliding record in place. Suits providers
	// whose records mutate after first sight, like settling transactions.
	PolicyUpsert WritePolicy = iota
	// PolicyCreateOnly skips records already persisted. Suits append-only
	// feeds where re-fetch overlap is the only source of collisions.
	PolicyCreateOnly
)

// Options tunes one sync run.
type Options struct {
	Provider   string
	WindowDays int
	Policy     WritePolicy
}

// Engine runs incremental syncs: window selection, classification,
// dedup-policy writes, and watermark advancement. Runs for the same
// (user, provider) pair are collapsed via singleflight so concurrent
// triggers share one execution and its result.
type Engine struct {
	store  store.Store
	logger *logging.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewEngine creates a sync engine over the given persistence facade.
func NewEngine(st store.Store, logger *logging.Logger) *Engine {
	return &Engine{store: st, logger: logger, now: time.Now}
}

// Run executes one sync for userID against src. The watermark only advances
// after every record in the batch is written; a partial failure leaves it
// untouched so the next run re-covers the same window.
func (e *Engine) Run(ctx context.Context, userID string, src Source, opts Options) (*models.SyncResult, error) {
	key := opts.Provider + ":" + userID
	value, err, shared := e.group.Do(key, func() (interface{}, error) {
		return e.run(ctx, userID, src, opts)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		e.logger.DebugWithContext(ctx, "sync run shared with concurrent caller", "provider", opts.Provider, "user_id", userID)
	}
	return value.(*models.SyncResult), nil
}

func (e *Engine) run(ctx context.Context, userID string, src Source, opts Options) (*models.SyncResult, error) {
	integration, err := e.store.EnsureIntegration(opts.Provider)
	if err != nil {
		return nil, err
	}
	link, err := e.store.EnsureUserIntegration(userID, integration.ID)
	if err != nil {
		return nil, err
	}

	since := e.sinceFor(link, opts.WindowDays)
	e.logger.InfoWithContext(ctx, "sync started",
		"provider", opts.Provider, "user_id", userID, "since", since.Format(time.RFC3339))

	records, err := src.Fetch(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	now := e.now()
	if len(records) == 0 {
		// Nothing new is still a successful pass over the window.
		if err := e.store.MarkSynced(link.ID, now); err != nil {
			return nil, err
		}
		return &models.SyncResult{OK: true, SyncedAt: now}, nil
	}

	details := models.SyncDetails{Fetched: len(records)}
	counts := make(map[string]int)
	var newest time.Time

	for _, rec := range records {
		category := src.Classify(rec)
		if category == "" {
			category = CategoryOther
		}

		lc, err := e.store.EnsureListAndCategory(userID, src.ListName(), category)
		if err != nil {
			return nil, e.wrapWrite(opts.Provider, err)
		}

		item := &models.NormalizedItem{
			ListID:         lc.List.ID,
			CategoryID:     lc.Category.ID,
			Title:          rec.Title,
			Attributes:     rec.Attributes,
			AttributeTypes: rec.AttributeTypes,
			Provider:       opts.Provider,
			ExternalID:     rec.ExternalID,
			ExternalType:   rec.ExternalType,
		}

		switch opts.Policy {
		case PolicyCreateOnly:
			exists, err := e.store.ItemExists(lc.List.ID, opts.Provider, rec.ExternalID)
			if err != nil {
				return nil, e.wrapWrite(opts.Provider, err)
			}
			if exists {
				details.Skipped++
			} else {
				if err := e.store.CreateListItem(item); err != nil {
					return nil, e.wrapWrite(opts.Provider, err)
				}
				details.Processed++
				counts[category]++
			}
		default:
			if err := e.store.UpsertListItem(item); err != nil {
				return nil, e.wrapWrite(opts.Provider, err)
			}
			details.Processed++
			counts[category]++
		}

		if rec.Timestamp.After(newest) {
			newest = rec.Timestamp
		}
	}

	watermark := newest
	if watermark.IsZero() {
		watermark = now
	}
	if err := e.store.MarkSynced(link.ID, watermark); err != nil {
		return nil, err
	}

	e.logger.InfoWithContext(ctx, "sync finished",
		"provider", opts.Provider, "user_id", userID,
		"fetched", details.Fetched, "processed", details.Processed, "skipped", details.Skipped)

	return &models.SyncResult{OK: true, SyncedAt: watermark, Details: details, Counts: counts}, nil
}

// sinceFor picks the incremental window start: the stored watermark when one
// exists, otherwise now minus the provider's backfill window.
func (e *Engine) sinceFor(link *models.Link, windowDays int) time.Time {
	if link.LastSyncedAt != nil {
		return *link.LastSyncedAt
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	return e.now().AddDate(0, 0, -windowDays)
}

func (e *Engine) wrapWrite(provider string, err error) error {
	if _, ok := errors.AsIntegration(err); ok {
		return err
	}
	return &errors.ErrDataSync{Provider: provider, Err: err}
}
