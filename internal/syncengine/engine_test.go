package syncengine

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/linkhub/linkhub/internal/errors"
	"github.com/linkhub/linkhub/internal/logging"
	"github.com/linkhub/linkhub/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	list    string
	records []Record
	err     error
	fetches int
	since   time.Time
}

func (f *fakeSource) ListName() string { return f.list }

func (f *fakeSource) Fetch(ctx context.Context, userID string, since time.Time) ([]Record, error) {
	f.fetches++
	f.since = since
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeSource) Classify(rec Record) string {
	if strings.HasPrefix(rec.Title, "run") {
		return "Running"
	}
	return ""
}

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	logger := logging.NewLogger(logging.WithLevel(logging.LevelError), logging.WithOutput(io.Discard))
	return NewEngine(st, logger), st
}

func rec(id, title string, at time.Time) Record {
	return Record{ExternalID: id, Title: title, Timestamp: at}
}

func TestRunWritesAndAdvancesWatermark(t *testing.T) {
	engine, st := newTestEngine(t)
	newest := time.Now().Add(-time.Hour).Truncate(time.Second)
	src := &fakeSource{list: "Workouts", records: []Record{
		rec("a-1", "run in the park", newest.Add(-2*time.Hour)),
		rec("a-2", "yoga", newest),
	}}

	result, err := engine.Run(context.Background(), "user-1", src, Options{Provider: "strava", WindowDays: 30})
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Equal(t, 2, result.Details.Fetched)
	assert.Equal(t, 2, result.Details.Processed)
	assert.Equal(t, 0, result.Details.Skipped)
	assert.Equal(t, 1, result.Counts["Running"])
	assert.Equal(t, 1, result.Counts[CategoryOther])
	// Watermark is the newest record timestamp, not wall-clock now.
	assert.Equal(t, newest, result.SyncedAt)

	integration, _, err := st.GetIntegration("strava")
	require.NoError(t, err)
	got, err := st.GetLastSyncedAt("user-1", integration.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newest, *got)
}

func TestRunFirstSyncUsesBackfillWindow(t *testing.T) {
	engine, _ := newTestEngine(t)
	src := &fakeSource{list: "Workouts"}

	_, err := engine.Run(context.Background(), "user-1", src, Options{Provider: "strava", WindowDays: 90})
	require.NoError(t, err)

	expected := time.Now().AddDate(0, 0, -90)
	assert.WithinDuration(t, expected, src.since, 5*time.Second)
}

func TestRunSecondSyncResumesFromWatermark(t *testing.T) {
	engine, _ := newTestEngine(t)
	mark := time.Now().Add(-30 * time.Minute).Truncate(time.Second)
	src := &fakeSource{list: "Workouts", records: []Record{rec("a-1", "run", mark)}}

	_, err := engine.Run(context.Background(), "user-1", src, Options{Provider: "strava", WindowDays: 30})
	require.NoError(t, err)

	src.records = nil
	_, err = engine.Run(context.Background(), "user-1", src, Options{Provider: "strava", WindowDays: 30})
	require.NoError(t, err)
	assert.Equal(t, mark, src.since)
}

func TestRunEmptyFetchIsSuccess(t *testing.T) {
	engine, st := newTestEngine(t)
	src := &fakeSource{list: "Workouts"}

	result, err := engine.Run(context.Background(), "user-1", src, Options{Provider: "strava", WindowDays: 30})
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Zero(t, result.Details.Fetched)
	assert.WithinDuration(t, time.Now(), result.SyncedAt, 5*time.Second)

	integration, _, err := st.GetIntegration("strava")
	require.NoError(t, err)
	got, err := st.GetLastSyncedAt("user-1", integration.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestRunUpsertIsIdempotent(t *testing.T) {
	engine, st := newTestEngine(t)
	at := time.Now().Add(-time.Hour)
	src := &fakeSource{list: "Finances", records: []Record{rec("txn-1", "coffee", at)}}
	opts := Options{Provider: "plaid", WindowDays: 30, Policy: PolicyUpsert}

	_, err := engine.Run(context.Background(), "user-1", src, opts)
	require.NoError(t, err)
	result, err := engine.Run(context.Background(), "user-1", src, opts)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Details.Processed)

	lc, err := st.EnsureListAndCategory("user-1", "Finances", CategoryOther)
	require.NoError(t, err)
	count, err := st.CountListItems(lc.List.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunCreateOnlySkipsDuplicates(t *testing.T) {
	engine, st := newTestEngine(t)
	at := time.Now().Add(-time.Hour)
	src := &fakeSource{list: "Music", records: []Record{
		rec("track-1", "song one", at),
		rec("track-2", "song two", at.Add(time.Minute)),
	}}
	opts := Options{Provider: "spotify", WindowDays: 30, Policy: PolicyCreateOnly}

	first, err := engine.Run(context.Background(), "user-1", src, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Details.Processed)

	second, err := engine.Run(context.Background(), "user-1", src, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Details.Fetched)
	assert.Equal(t, 0, second.Details.Processed)
	assert.Equal(t, 2, second.Details.Skipped)

	lc, err := st.EnsureListAndCategory("user-1", "Music", CategoryOther)
	require.NoError(t, err)
	count, err := st.CountListItems(lc.List.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRunProcessedPlusSkippedEqualsFetched(t *testing.T) {
	engine, _ := newTestEngine(t)
	at := time.Now().Add(-time.Hour)
	src := &fakeSource{list: "Music", records: []Record{
		rec("track-1", "song one", at),
	}}
	opts := Options{Provider: "spotify", WindowDays: 30, Policy: PolicyCreateOnly}

	_, err := engine.Run(context.Background(), "user-1", src, opts)
	require.NoError(t, err)

	src.records = append(src.records, rec("track-2", "song two", at.Add(time.Minute)))
	result, err := engine.Run(context.Background(), "user-1", src, opts)
	require.NoError(t, err)
	assert.Equal(t, result.Details.Fetched, result.Details.Processed+result.Details.Skipped)
}

func TestRunPartialFailureLeavesWatermark(t *testing.T) {
	engine, st := newTestEngine(t)
	src := &fakeSource{list: "Workouts", records: []Record{
		rec("a-1", "run", time.Now().Add(-time.Hour)),
	}}

	st.FailCreates = true
	_, err := engine.Run(context.Background(), "user-1", src, Options{Provider: "strava", WindowDays: 30})
	ie, ok := errors.AsIntegration(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeDataSyncFailed, ie.Code())

	integration, _, err := st.GetIntegration("strava")
	require.NoError(t, err)
	got, err := st.GetLastSyncedAt("user-1", integration.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "watermark must not advance after a partial failure")

	// The next run re-covers the same window and succeeds.
	st.FailCreates = false
	result, err := engine.Run(context.Background(), "user-1", src, Options{Provider: "strava", WindowDays: 30})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Details.Processed)
}

func TestRunFetchErrorPropagates(t *testing.T) {
	engine, _ := newTestEngine(t)
	src := &fakeSource{list: "Workouts", err: &errors.ErrRateLimit{Provider: "strava", RetryAfter: 30 * time.Second}}

	_, err := engine.Run(context.Background(), "user-1", src, Options{Provider: "strava", WindowDays: 30})
	ie, ok := errors.AsIntegration(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeRateLimitExceeded, ie.Code())
}
