// Package widget is the read-only side of the snapshot: it builds widget
// timelines from the shared store and serves them over HTTP.
package widget

import (
	"time"

	"dday/internal/clock"
	appLog "dday/internal/log"
	"dday/internal/model"
	"dday/internal/snapshot"
)

// Family is the widget size.
type Family string

const (
	FamilySmall  Family = "small"
	FamilyMedium Family = "medium"
)

// ParseFamily maps a query value to a Family; unknown values are medium.
func ParseFamily(s string) Family {
	if s == string(FamilySmall) {
		return FamilySmall
	}
	return FamilyMedium
}

// Limit is how many events the family shows.
func (f Family) Limit() int {
	if f == FamilySmall {
		return 1
	}
	return 3
}

// DefaultPolicy is how long a timeline stays valid.
const DefaultPolicy = 15 * time.Minute

// Entry is one point on a timeline.
type Entry struct {
	Date        time.Time
	Events      []model.Snapshot
	Placeholder bool
}

// Visible returns the events the family has room for.
func (e Entry) Visible(f Family) []model.Snapshot {
	if len(e.Events) <= f.Limit() {
		return e.Events
	}
	return e.Events[:f.Limit()]
}

// Timeline is what the host renders until Next.
type Timeline struct {
	Kind    string
	Entries []Entry
	Next    time.Time
}

// Current is the entry being displayed.
func (t Timeline) Current() Entry {
	if len(t.Entries) == 0 {
		return Entry{}
	}
	return t.Entries[0]
}

// Provider reads the snapshot on behalf of a widget kind. It never writes.
type Provider struct {
	store  snapshot.Store
	clock  clock.Clock
	policy time.Duration
}

func NewProvider(store snapshot.Store, clk clock.Clock, policy time.Duration) *Provider {
	if clk == nil {
		clk = clock.Real{}
	}
	if policy <= 0 {
		policy = DefaultPolicy
	}
	return &Provider{store: store, clock: clk, policy: policy}
}

// Placeholder is the sample content shown before any data exists.
func (p *Provider) Placeholder() Entry {
	now := p.clock.Now()
	return Entry{
		Date:        now,
		Placeholder: true,
		Events: []model.Snapshot{
			{ID: "placeholder-1", Title: "Event 1", DDayText: "D-5", TargetDate: now.AddDate(0, 0, 5)},
			{ID: "placeholder-2", Title: "Event 2", DDayText: "D-10", TargetDate: now.AddDate(0, 0, 10)},
			{ID: "placeholder-3", Title: "Event 3", DDayText: "D-15", TargetDate: now.AddDate(0, 0, 15)},
		},
	}
}

// Timeline reads the snapshot once and returns a single-entry timeline that
// expires after the policy interval.
//
//   - key absent: placeholder entry
//   - undecodable value: empty entry
//   - entry without targetDate: read time is used
func (p *Provider) Timeline(kind string) Timeline {
	now := p.clock.Now()
	tl := Timeline{Kind: kind, Next: now.Add(p.policy)}

	raw, ok, err := p.store.Data(snapshot.Key)
	switch {
	case err != nil:
		appLog.Error("widget: read snapshot failed", err, "kind", kind)
		tl.Entries = []Entry{{Date: now, Events: []model.Snapshot{}}}
		return tl
	case !ok:
		tl.Entries = []Entry{p.Placeholder()}
		return tl
	}

	events, err := snapshot.Decode(raw)
	if err != nil {
		appLog.Warn("widget: snapshot undecodable; showing empty list", "kind", kind, "error", err)
		tl.Entries = []Entry{{Date: now, Events: []model.Snapshot{}}}
		return tl
	}
	for i := range events {
		if events[i].TargetDate.IsZero() {
			events[i].TargetDate = now
		}
	}
	tl.Entries = []Entry{{Date: now, Events: events}}
	return tl
}
