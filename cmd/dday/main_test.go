package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dday/internal/app"
	"dday/internal/config"
	"dday/internal/ics"
	"dday/internal/model"
	"dday/internal/shared"
	"dday/internal/snapshot"
	"dday/internal/widget"
)

var now = time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

type nopReloader struct{}

func (nopReloader) ReloadAllTimelines()    {}
func (nopReloader) ReloadTimelines(string) {}

func testRuntime(t *testing.T) *runtime {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.SharedDir = filepath.Join(cfg.DataDir, "shared")
	cfg.Locale = "en"

	rt, err := openRuntime(cfg, time.UTC, func(*shared.Defaults) snapshot.Reloader { return nopReloader{} })
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	return rt
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2025-04-01", "2025.04.01", "20250401"} {
		got, err := parseDate(in, now)
		require.NoError(t, err, in)
		assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), got, in)
	}

	got, err := parseDate("today", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDate("내일", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), got)

	_, err = parseDate("next week", now)
	assert.Error(t, err)
}

func TestResolveTarget(t *testing.T) {
	got, err := resolveTarget("", 5, true, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), got)

	got, err = resolveTarget("", -2, true, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), got)

	_, err = resolveTarget("2025-04-01", 1, true, now)
	assert.Error(t, err)
	_, err = resolveTarget("", 0, false, now)
	assert.Error(t, err)
}

func TestParseSortArg(t *testing.T) {
	cases := map[string]model.SortOption{
		"asc":                  model.SortAscending,
		"targetDateAscending":  model.SortAscending,
		"DESC":                 model.SortDescending,
		"targetDateDescending": model.SortDescending,
		"user":                 model.SortUserDefined,
		"userDefined":          model.SortUserDefined,
	}
	for in, want := range cases {
		got, err := parseSortArg(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseSortArg("random")
	assert.Error(t, err)
}

func TestParseToggle(t *testing.T) {
	for in, want := range map[string]bool{"on": true, "off": false, "true": true, "0": false, "켜기": true} {
		got, err := parseToggle(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseToggle("maybe")
	assert.Error(t, err)
}

func TestWriteRows(t *testing.T) {
	id := uuid.New()
	rows := []app.Row{{
		Event: model.Event{ID: id, Title: "Exam", TargetDate: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), Kind: model.KindCountdown},
		Label: "D-5",
	}}

	var buf bytes.Buffer
	require.NoError(t, writeRows(&buf, rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "LABEL"))
	assert.Contains(t, lines[1], "D-5")
	assert.Contains(t, lines[1], "2025-03-15")
	assert.Contains(t, lines[1], id.String())

	buf.Reset()
	require.NoError(t, writeRowsJSON(&buf, rows, now))
	var out []rowJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, 5, out[0].DaysLeft)
	assert.Equal(t, "countdown", out[0].Kind)
}

func TestImportDraftsSkipsExisting(t *testing.T) {
	rt := testRuntime(t)
	ctx := context.Background()
	day := time.Date(2030, 1, 5, 0, 0, 0, 0, time.UTC)

	ev, err := rt.svc.Create(ctx, "Exam", day, model.KindCountdown)
	require.NoError(t, err)

	drafts := []ics.Draft{
		{UID: ev.ID.String(), Title: "Renamed", TargetDate: day.AddDate(0, 0, 1), Kind: model.KindCountdown},
		{UID: "foreign-1@example.com", Title: " exam ", TargetDate: day, Kind: model.KindCountdown},
		{UID: "foreign-2@example.com", Title: "Trip", TargetDate: day.AddDate(0, 1, 0), Kind: model.KindDateCounter},
		{UID: "foreign-3@example.com", Title: "Trip", TargetDate: day.AddDate(0, 1, 0), Kind: model.KindDateCounter},
	}

	var buf bytes.Buffer
	created, skipped, err := importDrafts(ctx, rt, drafts, true, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 3, skipped)
	assert.Contains(t, buf.String(), "would import")

	stored, err := rt.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "dry run must not write")

	created, skipped, err = importDrafts(ctx, rt, drafts, false, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 3, skipped)

	stored, err = rt.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
}

func TestExportImportRoundTripIsIdempotent(t *testing.T) {
	rt := testRuntime(t)
	ctx := context.Background()
	_, err := rt.svc.Create(ctx, "Anniversary", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), model.KindDateCounter)
	require.NoError(t, err)

	stored, err := rt.store.List(ctx)
	require.NoError(t, err)
	body := ics.Export(stored, time.UTC, now)

	parsed, err := ics.ParseICS(ics.Source{ID: "export"}, []byte(body), time.UTC)
	require.NoError(t, err)
	drafts := ics.Drafts(parsed, now)
	require.Len(t, drafts, 1)
	assert.Equal(t, model.KindDateCounter, drafts[0].Kind)

	created, skipped, err := importDrafts(ctx, rt, drafts, false, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Equal(t, 1, skipped)
}

func TestNewCapturer(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Nil(t, newCapturer(cfg))

	cfg.Widget.Capture.Enabled = true
	cfg.Widget.BasicAuth = &config.BasicAuthConfig{Username: "u", Password: "p"}
	c, ok := newCapturer(cfg).(widget.ChromeCapturer)
	require.True(t, ok)
	assert.Equal(t, "http://u:p@127.0.0.1:8080", c.BaseURL)
	assert.Equal(t, 360, c.Width)
	assert.Equal(t, cfg.Widget.Capture.OutputDir, c.OutputDir)
}
