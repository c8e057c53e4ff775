package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dday/internal/model"
)

type item struct {
	id   string
	date time.Time
}

func (i item) SortID() string      { return i.id }
func (i item) SortDate() time.Time { return i.date }

func day(n int) time.Time {
	return time.Date(2025, 1, n, 0, 0, 0, 0, time.UTC)
}

func TestAscendingDescendingAreReversed(t *testing.T) {
	items := []item{{"a", day(5)}, {"b", day(1)}, {"c", day(9)}, {"d", day(3)}}

	asc := IDs(Sort(items, model.SortAscending, nil))
	desc := IDs(Sort(items, model.SortDescending, nil))

	assert.Equal(t, []string{"b", "d", "a", "c"}, asc)
	assert.Equal(t, []string{"c", "a", "d", "b"}, desc)
	// input untouched
	assert.Equal(t, "a", items[0].id)
}

func TestStableForTies(t *testing.T) {
	items := []item{{"x", day(2)}, {"y", day(2)}, {"z", day(1)}}

	assert.Equal(t, []string{"z", "x", "y"}, IDs(Sort(items, model.SortAscending, nil)))
	assert.Equal(t, []string{"x", "y", "z"}, IDs(Sort(items, model.SortDescending, nil)))
}

func TestUserDefinedAppendsUnknownByDate(t *testing.T) {
	a := item{"A", day(2)}
	b := item{"B", day(3)}
	c := item{"C", day(1)}

	got := IDs(Sort([]item{a, b, c}, model.SortUserDefined, []string{"C", "A"}))
	assert.Equal(t, []string{"C", "A", "B"}, got)

	d := item{"D", day(1)}
	got = IDs(Sort([]item{a, b, c, d}, model.SortUserDefined, []string{"B"}))
	assert.Equal(t, []string{"B", "C", "D", "A"}, got)
}

func TestUserDefinedUsesExactMatch(t *testing.T) {
	// "ab" contains "a" and "b"; substring matching would misplace it.
	items := []item{{"ab", day(1)}, {"a", day(3)}, {"b", day(2)}}

	got := IDs(Sort(items, model.SortUserDefined, []string{"b", "a"}))
	assert.Equal(t, []string{"b", "a", "ab"}, got)
}

func TestUserDefinedIgnoresStaleAndDuplicateIDs(t *testing.T) {
	items := []item{{"a", day(1)}, {"b", day(2)}}

	got := IDs(Sort(items, model.SortUserDefined, []string{"gone", "b", "b", "a"}))
	assert.Equal(t, []string{"b", "a"}, got)
}

func TestUserDefinedWithoutOrderFallsBackToAscending(t *testing.T) {
	items := []item{{"a", day(4)}, {"b", day(2)}}
	assert.Equal(t, []string{"b", "a"}, IDs(Sort(items, model.SortUserDefined, nil)))
}

func TestSortsSnapshotsAndEvents(t *testing.T) {
	snaps := []model.Snapshot{
		{ID: "1", TargetDate: day(3)},
		{ID: "2", TargetDate: day(1)},
	}
	assert.Equal(t, []string{"2", "1"}, IDs(Sort(snaps, model.SortAscending, nil)))
}
