package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHandler struct {
	periodic atomic.Int32
	midnight atomic.Int32
	err      error
}

func (h *countingHandler) Refresh(context.Context) error {
	h.periodic.Add(1)
	return h.err
}

func (h *countingHandler) MidnightTick(context.Context) error {
	h.midnight.Add(1)
	return h.err
}

func TestMidnightScheduleNext(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Skip("tzdata not available")
	}
	m := midnight{loc: loc}

	// 23:30 in Seoul, expressed in UTC
	at := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	next := m.Next(at)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, loc), next)

	// exactly midnight rolls to the following day
	assert.Equal(t, time.Date(2025, 3, 12, 0, 0, 0, 0, loc), m.Next(next))
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("every now and then", time.UTC, &countingHandler{})
	assert.Error(t, err)

	s, err := New("", time.UTC, &countingHandler{})
	require.NoError(t, err)
	assert.Equal(t, DefaultSpec, s.spec)
}

func TestRunTicksCallHandler(t *testing.T) {
	h := &countingHandler{}
	s, err := New("@hourly", time.UTC, h)
	require.NoError(t, err)

	s.RunPeriodic(context.Background())
	s.RunMidnight(context.Background())
	s.RunMidnight(context.Background())

	assert.EqualValues(t, 1, h.periodic.Load())
	assert.EqualValues(t, 2, h.midnight.Load())
}

func TestRunTickErrorIsNotFatal(t *testing.T) {
	h := &countingHandler{err: errors.New("disk full")}
	s, err := New("@hourly", time.UTC, h)
	require.NoError(t, err)

	assert.NotPanics(t, func() { s.RunPeriodic(context.Background()) })
	assert.EqualValues(t, 1, h.periodic.Load())
}

func TestSuspendResume(t *testing.T) {
	h := &countingHandler{}
	s, err := New("@every 1s", time.UTC, h)
	require.NoError(t, err)

	s.Start(context.Background())
	assert.True(t, s.Running())

	require.Eventually(t, func() bool { return h.periodic.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	s.Suspend()
	assert.False(t, s.Running())
	fired := h.periodic.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, fired, h.periodic.Load())

	s.Resume(context.Background())
	defer s.Suspend()
	assert.True(t, s.Running())
}

func TestSuspendWhenStoppedIsNoop(t *testing.T) {
	s, err := New("", time.UTC, &countingHandler{})
	require.NoError(t, err)
	assert.NotPanics(t, s.Suspend)
}
