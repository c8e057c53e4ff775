package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dday/internal/clock"
	"dday/internal/dday"
	"dday/internal/model"
	"dday/internal/shared"
)

type recordingReloader struct {
	all   int
	kinds []string
}

func (r *recordingReloader) ReloadAllTimelines()         { r.all++ }
func (r *recordingReloader) ReloadTimelines(kind string) { r.kinds = append(r.kinds, kind) }

type fixedSort struct {
	opt   model.SortOption
	order []string
	err   error
}

func (f *fixedSort) SortSettings(context.Context) (model.SortOption, []string, error) {
	return f.opt, f.order, f.err
}

type failingStore struct{ Store }

func (failingStore) Set(string, []byte) error { return errors.New("suite unavailable") }

var base = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

func event(title string, days int) model.Event {
	return model.Event{
		ID:         uuid.New(),
		Title:      title,
		TargetDate: dday.StartOfDay(base).AddDate(0, 0, days),
		Kind:       model.KindCountdown,
	}
}

type fixture struct {
	sync     *Synchronizer
	store    *shared.Defaults
	reloader *recordingReloader
	sorting  *fixedSort
	clock    *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := shared.Open(t.TempDir(), "")
	require.NoError(t, err)
	f := &fixture{
		store:    st,
		reloader: &recordingReloader{},
		sorting:  &fixedSort{opt: model.SortAscending},
		clock:    clock.NewFake(base),
	}
	f.sync = NewSynchronizer(st, f.reloader, f.sorting, f.clock, dday.English)
	return f
}

func TestReplaceAllRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events := []model.Event{event("b", 3), event("a", 1), event("c", -2)}

	require.NoError(t, f.sync.ReplaceAll(ctx, events, model.SortAscending, nil))

	got, err := f.sync.Load()
	require.NoError(t, err)
	require.Len(t, got, 3)

	type triple struct {
		id, title string
		date      int64
	}
	want := map[triple]bool{}
	for _, ev := range events {
		want[triple{ev.ID.String(), ev.Title, ev.TargetDate.Unix()}] = true
	}
	for _, sn := range got {
		assert.True(t, want[triple{sn.ID, sn.Title, sn.TargetDate.Unix()}], sn.Title)
	}

	assert.Equal(t, []string{"c", "a", "b"}, titles(got))
	assert.Equal(t, []string{"3 days", "D-1", "D-3"}, labels(got))
	assert.Equal(t, 1, f.reloader.all)
}

func TestReplaceAllDescendingReversesAscending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events := []model.Event{event("b", 3), event("a", 1), event("c", 7)}

	require.NoError(t, f.sync.ReplaceAll(ctx, events, model.SortAscending, nil))
	asc, _ := f.sync.Load()
	require.NoError(t, f.sync.ReplaceAll(ctx, events, model.SortDescending, nil))
	desc, _ := f.sync.Load()

	assert.Equal(t, []string{"a", "b", "c"}, titles(asc))
	assert.Equal(t, []string{"c", "b", "a"}, titles(desc))
}

func TestUpsertAppendsWhenAbsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := event("a", 1), event("b", 5)
	require.NoError(t, f.sync.ReplaceAll(ctx, []model.Event{a}, model.SortAscending, nil))

	require.NoError(t, f.sync.Upsert(ctx, b))

	got, _ := f.sync.Load()
	assert.Equal(t, []string{"a", "b"}, titles(got))
	assert.Equal(t, []string{model.WidgetKind}, f.reloader.kinds)
}

func TestUpsertReplacesInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := event("a", 1), event("b", 2), event("c", 3)
	f.sorting.opt = model.SortUserDefined
	f.sorting.order = []string{c.ID.String(), a.ID.String(), b.ID.String()}
	require.NoError(t, f.sync.ReplaceAll(ctx, []model.Event{a, b, c}, f.sorting.opt, f.sorting.order))

	a.Title = "a renamed"
	a.TargetDate = a.TargetDate.AddDate(0, 0, 10)
	require.NoError(t, f.sync.Upsert(ctx, a))

	got, _ := f.sync.Load()
	assert.Equal(t, []string{"c", "a renamed", "b"}, titles(got))
	assert.Equal(t, "D-11", got[1].DDayText)
	assert.Len(t, got, 3)
}

func TestUpsertResortsByDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := event("a", 1), event("b", 2)
	require.NoError(t, f.sync.ReplaceAll(ctx, []model.Event{a, b}, model.SortAscending, nil))

	a.TargetDate = a.TargetDate.AddDate(0, 0, 5)
	require.NoError(t, f.sync.Upsert(ctx, a))

	got, _ := f.sync.Load()
	assert.Equal(t, []string{"b", "a"}, titles(got))
}

func TestRemoveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := event("a", 1), event("b", 2)
	require.NoError(t, f.sync.ReplaceAll(ctx, []model.Event{a, b}, model.SortAscending, nil))

	require.NoError(t, f.sync.Remove(ctx, a.ID.String()))
	after1, _, _ := f.store.Data(Key)
	reloads := f.reloader.all

	require.NoError(t, f.sync.Remove(ctx, a.ID.String()))
	after2, _, _ := f.store.Data(Key)

	assert.Equal(t, after1, after2)
	assert.Equal(t, reloads, f.reloader.all)
	got, _ := f.sync.Load()
	assert.Equal(t, []string{"b"}, titles(got))
}

func TestRemoveMatchesExactID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := event("a", 1)
	require.NoError(t, f.sync.ReplaceAll(ctx, []model.Event{a}, model.SortAscending, nil))

	// a prefix of a real id must not match
	require.NoError(t, f.sync.Remove(ctx, a.ID.String()[:8]))
	got, _ := f.sync.Load()
	assert.Len(t, got, 1)
}

func TestWriteFailureIsReportedNotFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := NewSynchronizer(failingStore{f.store}, f.reloader, f.sorting, f.clock, dday.English)

	err := s.ReplaceAll(ctx, []model.Event{event("a", 1)}, model.SortAscending, nil)
	assert.Error(t, err)
	assert.Zero(t, f.reloader.all)

	_, ok, _ := f.store.Data(Key)
	assert.False(t, ok)
}

func TestLabelsFollowClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := event("Birthday", 5)

	require.NoError(t, f.sync.ReplaceAll(ctx, []model.Event{ev}, model.SortAscending, nil))
	got, _ := f.sync.Load()
	assert.Equal(t, "D-5", got[0].DDayText)

	f.clock.AdvanceDays(5)
	require.NoError(t, f.sync.ReplaceAll(ctx, []model.Event{ev}, model.SortAscending, nil))
	got, _ = f.sync.Load()
	assert.Equal(t, "Today", got[0].DDayText)

	f.clock.AdvanceDays(1)
	require.NoError(t, f.sync.ReplaceAll(ctx, []model.Event{ev}, model.SortAscending, nil))
	got, _ = f.sync.Load()
	assert.Equal(t, "2 days", got[0].DDayText)
}

func TestDecodeWireFormat(t *testing.T) {
	raw := `[{"id":"x","title":"t","dDayText":"D-1","targetDate":"2025-03-11T00:00:00Z"}]`
	got, err := Decode([]byte(raw))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].ID)
	assert.Equal(t, "D-1", got[0].DDayText)

	_, err = Decode([]byte("not json"))
	assert.Error(t, err)
}

func titles(snaps []model.Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.Title
	}
	return out
}

func labels(snaps []model.Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.DDayText
	}
	return out
}
