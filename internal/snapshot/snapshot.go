// Package snapshot mirrors the sorted event list into the shared store the
// widget host reads, and asks the host to re-render afterwards.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"dday/internal/clock"
	"dday/internal/dday"
	appLog "dday/internal/log"
	"dday/internal/model"
	"dday/internal/order"
)

// Key is the shared-store key holding the encoded snapshot list.
const Key = "ddayList"

// Store is the cross-process key/value store (shared.Defaults).
type Store interface {
	Data(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
}

// Reloader is the widget host's reload API.
type Reloader interface {
	ReloadAllTimelines()
	ReloadTimelines(kind string)
}

// SortSource supplies the current sort policy for operations that re-sort
// without being handed one.
type SortSource interface {
	SortSettings(ctx context.Context) (model.SortOption, []string, error)
}

// Synchronizer is the single writer of the snapshot.
//
// Every operation is a read-modify-write of one key; mu serializes them so
// concurrent callers cannot interleave. Failures are logged and returned but
// never rolled back or retried: the event store stays authoritative and the
// next sync overwrites whatever the widget has.
type Synchronizer struct {
	store    Store
	reloader Reloader
	sorting  SortSource
	clock    clock.Clock
	labels   dday.Labels

	mu sync.Mutex
}

// NewSynchronizer wires a Synchronizer. reloader may be nil when no widget
// host is running.
func NewSynchronizer(store Store, reloader Reloader, sorting SortSource, clk clock.Clock, labels dday.Labels) *Synchronizer {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Synchronizer{
		store:    store,
		reloader: reloader,
		sorting:  sorting,
		clock:    clk,
		labels:   labels,
	}
}

// FromEvent builds the snapshot entry for one event.
func (s *Synchronizer) FromEvent(ev model.Event) model.Snapshot {
	return model.Snapshot{
		ID:         ev.ID.String(),
		Title:      ev.Title,
		DDayText:   s.labels.Label(ev.TargetDate, s.clock.Now()),
		TargetDate: ev.TargetDate,
	}
}

// ReplaceAll recomputes every label, sorts, writes the whole list and asks the
// widget host to reload everything.
func (s *Synchronizer) ReplaceAll(ctx context.Context, events []model.Event, opt model.SortOption, userOrder []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := make([]model.Snapshot, 0, len(events))
	for _, ev := range events {
		snaps = append(snaps, s.FromEvent(ev))
	}
	snaps = order.Sort(snaps, opt, userOrder)

	if err := s.write("replace_all", snaps); err != nil {
		return err
	}
	s.reloadAll()
	appLog.Debug("snapshot replaced", "count", len(snaps), "sort", string(opt))
	return nil
}

// Upsert recomputes ev's label and replaces its entry in place, or appends it
// when absent, then re-sorts and writes. Only the D-day widget kind is
// reloaded.
func (s *Synchronizer) Upsert(ctx context.Context, ev model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := s.loadForWrite()
	entry := s.FromEvent(ev)

	if i := indexOf(snaps, entry.ID); i >= 0 {
		snaps[i] = entry
	} else {
		snaps = append(snaps, entry)
	}

	snaps, err := s.resort(ctx, snaps)
	if err != nil {
		writesTotal.WithLabelValues("upsert", "error").Inc()
		return err
	}
	if err := s.write("upsert", snaps); err != nil {
		return err
	}
	if s.reloader != nil {
		s.reloader.ReloadTimelines(model.WidgetKind)
	}
	return nil
}

// Remove deletes the entry whose id equals id. A missing entry means there is
// nothing to do; the stored snapshot is left untouched.
func (s *Synchronizer) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := s.loadForWrite()
	i := indexOf(snaps, id)
	if i < 0 {
		appLog.Debug("snapshot remove: entry not present", "id", id)
		writesTotal.WithLabelValues("remove", "noop").Inc()
		return nil
	}
	snaps = slices.Delete(snaps, i, i+1)

	snaps, err := s.resort(ctx, snaps)
	if err != nil {
		writesTotal.WithLabelValues("remove", "error").Inc()
		return err
	}
	if err := s.write("remove", snaps); err != nil {
		return err
	}
	s.reloadAll()
	return nil
}

// Load returns the currently stored snapshot. A missing key yields an empty
// list.
func (s *Synchronizer) Load() ([]model.Snapshot, error) {
	return Read(s.store)
}

// Read decodes the snapshot list from store. It is what the widget side uses.
func Read(store Store) ([]model.Snapshot, error) {
	b, ok, err := store.Data(Key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []model.Snapshot{}, nil
	}
	return Decode(b)
}

// Decode parses an encoded snapshot list.
func Decode(b []byte) ([]model.Snapshot, error) {
	var snaps []model.Snapshot
	if err := json.Unmarshal(b, &snaps); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	if snaps == nil {
		snaps = []model.Snapshot{}
	}
	return snaps, nil
}

// loadForWrite reads the current list; an unreadable snapshot is treated as
// empty because it is re-derivable and about to be overwritten.
func (s *Synchronizer) loadForWrite() []model.Snapshot {
	snaps, err := Read(s.store)
	if err != nil {
		appLog.Error("snapshot load failed; starting from empty list", err)
		return []model.Snapshot{}
	}
	return snaps
}

func (s *Synchronizer) resort(ctx context.Context, snaps []model.Snapshot) ([]model.Snapshot, error) {
	if s.sorting == nil {
		return order.Sort(snaps, model.SortAscending, nil), nil
	}
	opt, userOrder, err := s.sorting.SortSettings(ctx)
	if err != nil {
		appLog.Error("snapshot: read sort settings failed", err)
		return nil, fmt.Errorf("snapshot: sort settings: %w", err)
	}
	return order.Sort(snaps, opt, userOrder), nil
}

func (s *Synchronizer) write(op string, snaps []model.Snapshot) error {
	if s.store == nil {
		return errors.New("snapshot: store is nil")
	}
	b, err := json.Marshal(snaps)
	if err != nil {
		writesTotal.WithLabelValues(op, "error").Inc()
		appLog.Error("snapshot encode failed", err, "op", op)
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	if err := s.store.Set(Key, b); err != nil {
		writesTotal.WithLabelValues(op, "error").Inc()
		appLog.Error("snapshot write failed; widget keeps stale data", err, "op", op)
		return fmt.Errorf("snapshot: write: %w", err)
	}
	writesTotal.WithLabelValues(op, "ok").Inc()
	entries.Set(float64(len(snaps)))
	return nil
}

func (s *Synchronizer) reloadAll() {
	if s.reloader != nil {
		s.reloader.ReloadAllTimelines()
	}
}

func indexOf(snaps []model.Snapshot, id string) int {
	return slices.IndexFunc(snaps, func(sn model.Snapshot) bool { return sn.ID == id })
}
