package widget

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dday/internal/clock"
	"dday/internal/model"
	"dday/internal/shared"
	"dday/internal/snapshot"
)

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newShared(t *testing.T) *shared.Defaults {
	t.Helper()
	st, err := shared.Open(t.TempDir(), "")
	require.NoError(t, err)
	return st
}

func TestTimelinePlaceholderWhenKeyMissing(t *testing.T) {
	p := NewProvider(newShared(t), clock.NewFake(now), 0)
	tl := p.Timeline(model.WidgetKind)

	entry := tl.Current()
	assert.True(t, entry.Placeholder)
	require.Len(t, entry.Events, 3)
	assert.Equal(t, "Event 1", entry.Events[0].Title)
	assert.Equal(t, "D-15", entry.Events[2].DDayText)
	assert.Equal(t, now.Add(DefaultPolicy), tl.Next)
}

func TestTimelineEmptyWhenUndecodable(t *testing.T) {
	st := newShared(t)
	require.NoError(t, st.Set(snapshot.Key, []byte("{broken")))

	tl := NewProvider(st, clock.NewFake(now), time.Minute).Timeline(model.WidgetKind)
	entry := tl.Current()
	assert.False(t, entry.Placeholder)
	assert.Empty(t, entry.Events)
	assert.Equal(t, now.Add(time.Minute), tl.Next)
}

func TestTimelineMissingTargetDateUsesReadTime(t *testing.T) {
	st := newShared(t)
	require.NoError(t, st.Set(snapshot.Key, []byte(`[{"id":"a","title":"t","dDayText":"D-1"}]`)))

	entry := NewProvider(st, clock.NewFake(now), 0).Timeline(model.WidgetKind).Current()
	require.Len(t, entry.Events, 1)
	assert.True(t, entry.Events[0].TargetDate.Equal(now))
}

func TestFamilyLimits(t *testing.T) {
	events := make([]model.Snapshot, 5)
	entry := Entry{Events: events}
	assert.Len(t, entry.Visible(FamilySmall), 1)
	assert.Len(t, entry.Visible(FamilyMedium), 3)
	assert.Len(t, Entry{Events: events[:2]}.Visible(FamilyMedium), 2)

	assert.Equal(t, FamilySmall, ParseFamily("small"))
	assert.Equal(t, FamilyMedium, ParseFamily(""))
	assert.Equal(t, FamilyMedium, ParseFamily("large"))
}

func TestBuildViewAndRender(t *testing.T) {
	tl := Timeline{
		Kind: model.WidgetKind,
		Next: now.Add(DefaultPolicy),
		Entries: []Entry{{Date: now, Events: []model.Snapshot{
			{ID: "1", Title: "Exam", DDayText: "D-3", TargetDate: time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)},
			{ID: "2", Title: "Trip", DDayText: "D-9", TargetDate: time.Date(2025, 3, 19, 0, 0, 0, 0, time.UTC)},
		}}},
	}

	small := BuildView(tl, FamilySmall, "ko")
	require.Len(t, small.Items, 1)
	assert.Equal(t, "2025.03.13", small.Items[0].DateText)

	html, err := RenderHTML(small)
	require.NoError(t, err)
	assert.Contains(t, string(html), `data-ready="true"`)
	assert.Contains(t, string(html), "Exam")
	assert.NotContains(t, string(html), "Trip")

	medium, err := RenderHTML(BuildView(tl, FamilyMedium, "ko"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(medium), `class="row"`))
}

func TestBuildViewEmptyText(t *testing.T) {
	tl := Timeline{Kind: model.WidgetKind, Entries: []Entry{{Date: now}}}

	ko := BuildView(tl, FamilyMedium, "ko")
	assert.Equal(t, "디데이 정보가 없습니다.", ko.EmptyText)
	en := BuildView(tl, FamilyMedium, "en")
	assert.Equal(t, "No D-day events.", en.EmptyText)

	html, err := RenderHTML(ko)
	require.NoError(t, err)
	assert.Contains(t, string(html), "디데이 정보가 없습니다.")
}
