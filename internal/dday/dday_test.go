package dday

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func seoul(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestLabelSameDayIgnoresTimeOfDay(t *testing.T) {
	loc := seoul(t)
	ref := time.Date(2025, 3, 10, 23, 59, 0, 0, loc)
	target := time.Date(2025, 3, 10, 0, 0, 1, 0, loc)

	assert.Equal(t, "Today", English.Label(target, ref))
	assert.Equal(t, "오늘", Korean.Label(target, ref))
	assert.Equal(t, "Today", English.Label(ref, target))
}

func TestLabelCountdown(t *testing.T) {
	loc := seoul(t)
	ref := time.Date(2025, 3, 10, 18, 0, 0, 0, loc)

	for n := 1; n <= 400; n += 37 {
		target := ref.AddDate(0, 0, n).Add(-17 * time.Hour)
		assert.Equal(t, "D-"+strconv.Itoa(n), English.Label(target, ref), "n=%d", n)
	}
	assert.Equal(t, "D-1", Korean.Label(time.Date(2025, 3, 11, 0, 0, 0, 0, loc), ref))
}

func TestLabelElapsedKeepsPlusOneOffset(t *testing.T) {
	loc := seoul(t)
	ref := time.Date(2025, 3, 10, 9, 0, 0, 0, loc)

	assert.Equal(t, "2 days", English.Label(ref.AddDate(0, 0, -1), ref))
	assert.Equal(t, "3 days", English.Label(ref.AddDate(0, 0, -2), ref))
	assert.Equal(t, "101 days", English.Label(ref.AddDate(0, 0, -100), ref))
	assert.Equal(t, "2일", Korean.Label(ref.AddDate(0, 0, -1), ref))
}

func TestDaysBetweenAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2025-03-09 is a 23 hour day in New York.
	ref := time.Date(2025, 3, 8, 12, 0, 0, 0, ny)
	target := time.Date(2025, 3, 10, 0, 30, 0, 0, ny)
	assert.Equal(t, 2, DaysBetween(ref, target))

	// 2025-11-02 is a 25 hour day.
	ref = time.Date(2025, 11, 1, 23, 0, 0, 0, ny)
	target = time.Date(2025, 11, 3, 0, 0, 0, 0, ny)
	assert.Equal(t, 2, DaysBetween(ref, target))
}

func TestDaysBetweenUsesReferenceLocation(t *testing.T) {
	loc := seoul(t)
	ref := time.Date(2025, 3, 10, 8, 0, 0, 0, loc)
	// 2025-03-10 20:00 UTC is already 2025-03-11 in Seoul.
	target := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(ref, target))
}

func TestNextMidnight(t *testing.T) {
	loc := seoul(t)
	now := time.Date(2025, 12, 31, 22, 30, 0, 0, loc)

	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, loc), NextMidnight(now))
	assert.Equal(t, 90*time.Minute, UntilNextMidnight(now))

	exact := time.Date(2025, 6, 1, 0, 0, 0, 0, loc)
	assert.Equal(t, 24*time.Hour, UntilNextMidnight(exact))
}

func TestExpired(t *testing.T) {
	loc := seoul(t)
	ref := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)
	assert.False(t, Expired(ref, ref))
	assert.False(t, Expired(ref.AddDate(0, 0, 1), ref))
	assert.True(t, Expired(ref.Add(-time.Second), ref))
}

func TestLabelsFor(t *testing.T) {
	assert.Equal(t, "Today", LabelsFor("en").Today)
	assert.Equal(t, "오늘", LabelsFor("ko").Today)
	assert.Equal(t, "오늘", LabelsFor("").Today)
}
