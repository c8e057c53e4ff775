// Package app is the single coordinator between the event store, the widget
// snapshot and local notifications. Every mutation goes through a Service so
// the three never drift apart.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dday/internal/clock"
	"dday/internal/dday"
	appLog "dday/internal/log"
	"dday/internal/model"
	"dday/internal/order"
)

// ErrEmptyTitle is returned when an event would be saved without a title.
var ErrEmptyTitle = errors.New("app: title is empty")

// EventStore is the authoritative event and preference storage (store.Store).
type EventStore interface {
	List(ctx context.Context) ([]model.Event, error)
	Get(ctx context.Context, id uuid.UUID) (model.Event, error)
	Insert(ctx context.Context, ev model.Event) error
	Update(ctx context.Context, ev model.Event) error
	Delete(ctx context.Context, id uuid.UUID) error

	Preferences(ctx context.Context) (model.Preferences, error)
	SetSortOption(ctx context.Context, opt model.SortOption) error
	SetUserOrder(ctx context.Context, ids []string) error
	SetAutoDeletePast(ctx context.Context, on bool) error
	SetNotificationsEnabled(ctx context.Context, on bool) error
}

// Synchronizer mirrors events into the widget snapshot (snapshot.Synchronizer).
type Synchronizer interface {
	ReplaceAll(ctx context.Context, events []model.Event, opt model.SortOption, userOrder []string) error
	Upsert(ctx context.Context, ev model.Event) error
	Remove(ctx context.Context, id string) error
}

// Notifier schedules per-event alerts (notify.Scheduler).
type Notifier interface {
	Schedule(ctx context.Context, ev model.Event) error
	Cancel(ev model.Event)
	CancelAll(events []model.Event)
	Clear()
	Authorized(ctx context.Context) bool
}

// Timers are the background refresh triggers (refresh.Scheduler).
type Timers interface {
	Suspend()
	Resume(ctx context.Context)
}

// Row is one line of the event list: the event plus its label as of now.
type Row struct {
	Event model.Event
	Label string
}

// Patch carries the fields an edit changes; nil means unchanged.
type Patch struct {
	Title      *string
	TargetDate *time.Time
	Kind       *model.EventKind
}

// Settings is the user-facing preference view.
type Settings struct {
	SortOption     model.SortOption
	UserOrder      []string
	AutoDeletePast bool
	// NotificationsEnabled is the effective toggle: the stored preference and
	// the current OS authorization.
	NotificationsEnabled bool
	NotificationsWanted  bool
	Authorized           bool
}

type Service struct {
	events   EventStore
	snapshot Synchronizer
	notifier Notifier
	clock    clock.Clock
	labels   dday.Labels

	// mu serializes every operation; the service behaves as one execution
	// context regardless of how many goroutines call into it.
	mu     sync.Mutex
	timers Timers
}

func New(events EventStore, snap Synchronizer, notifier Notifier, clk clock.Clock, labels dday.Labels) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{
		events:   events,
		snapshot: snap,
		notifier: notifier,
		clock:    clk,
		labels:   labels,
	}
}

// AttachTimers lets Suspend/Resume drive the background refresh.
func (s *Service) AttachTimers(t Timers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = t
}

// --- events ---

// Create validates and stores a new event, schedules its alert and adds it to
// the snapshot.
func (s *Service) Create(ctx context.Context, title string, target time.Time, kind model.EventKind) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	title = strings.TrimSpace(title)
	if title == "" {
		return model.Event{}, ErrEmptyTitle
	}
	if kind == "" {
		kind = model.KindCountdown
	}

	now := s.clock.Now()
	ev := model.Event{
		ID:         uuid.New(),
		Title:      title,
		TargetDate: dday.StartOfDay(target),
		Kind:       kind,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.events.Insert(ctx, ev); err != nil {
		appLog.Error("event save failed", err, "title", title)
		return model.Event{}, fmt.Errorf("app: create: %w", err)
	}

	if s.notificationsOn(ctx) {
		_ = s.notifier.Schedule(ctx, ev)
	}
	_ = s.snapshot.Upsert(ctx, ev)

	appLog.Info("event created", "id", ev.ID.String(), "title", ev.Title, "target", ev.TargetDate.Format("2006-01-02"), "kind", string(ev.Kind))
	return ev, nil
}

// Update edits an event in place. The alert is always cancelled and, when
// enabled, scheduled again for the new date.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p Patch) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.events.Get(ctx, id)
	if err != nil {
		return model.Event{}, fmt.Errorf("app: update: %w", err)
	}
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return model.Event{}, ErrEmptyTitle
		}
		ev.Title = t
	}
	if p.TargetDate != nil {
		ev.TargetDate = dday.StartOfDay(*p.TargetDate)
	}
	if p.Kind != nil {
		ev.Kind = *p.Kind
	}
	ev.UpdatedAt = s.clock.Now()

	if err := s.events.Update(ctx, ev); err != nil {
		appLog.Error("event save failed", err, "id", id.String())
		return model.Event{}, fmt.Errorf("app: update: %w", err)
	}

	s.notifier.Cancel(ev)
	if s.notificationsOn(ctx) {
		_ = s.notifier.Schedule(ctx, ev)
	}
	_ = s.snapshot.Upsert(ctx, ev)

	appLog.Info("event updated", "id", ev.ID.String())
	return ev, nil
}

// Delete removes an event, its alert and its snapshot entry.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.events.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("app: delete: %w", err)
	}
	if err := s.deleteLocked(ctx, ev); err != nil {
		return err
	}
	appLog.Info("event deleted", "id", id.String())
	return nil
}

func (s *Service) deleteLocked(ctx context.Context, ev model.Event) error {
	if err := s.events.Delete(ctx, ev.ID); err != nil {
		appLog.Error("event delete failed", err, "id", ev.ID.String())
		return fmt.Errorf("app: delete: %w", err)
	}
	s.notifier.Cancel(ev)
	_ = s.snapshot.Remove(ctx, ev.ID.String())
	return nil
}

// Get returns one event.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.Get(ctx, id)
}

// List returns the events in the current sort order with labels computed
// against the clock right now.
func (s *Service) List(ctx context.Context) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, prefs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	sorted := order.Sort(events, prefs.SortOption, prefs.UserOrder)
	rows := make([]Row, 0, len(sorted))
	for _, ev := range sorted {
		rows = append(rows, Row{Event: ev, Label: s.labels.Label(ev.TargetDate, now)})
	}
	return rows, nil
}

// --- preferences ---

// Settings returns the preferences, re-querying notification authorization.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settingsLocked(ctx)
}

func (s *Service) settingsLocked(ctx context.Context) (Settings, error) {
	prefs, err := s.events.Preferences(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("app: settings: %w", err)
	}
	authorized := s.notifier.Authorized(ctx)
	return Settings{
		SortOption:           prefs.SortOption,
		UserOrder:            prefs.UserOrder,
		AutoDeletePast:       prefs.AutoDeletePast,
		NotificationsEnabled: prefs.NotificationsEnabled && authorized,
		NotificationsWanted:  prefs.NotificationsEnabled,
		Authorized:           authorized,
	}, nil
}

// SetSortOption persists the policy and resynchronizes the snapshot.
func (s *Service) SetSortOption(ctx context.Context, opt model.SortOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.events.SetSortOption(ctx, opt); err != nil {
		return fmt.Errorf("app: set sort option: %w", err)
	}
	appLog.Info("sort option changed", "sort", string(opt))
	return s.replaceAllLocked(ctx)
}

// Reorder applies a manual order. ids is resolved against the current events
// (unknown and duplicate ids dropped, missing events appended by date) and the
// full resulting order becomes the canonical user order.
func (s *Service) Reorder(ctx context.Context, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: reorder: %w", err)
	}
	canonical := order.IDs(order.Sort(events, model.SortUserDefined, ids))

	if err := s.events.SetUserOrder(ctx, canonical); err != nil {
		return nil, fmt.Errorf("app: reorder: %w", err)
	}
	if err := s.events.SetSortOption(ctx, model.SortUserDefined); err != nil {
		return nil, fmt.Errorf("app: reorder: %w", err)
	}
	if err := s.replaceAllLocked(ctx); err != nil {
		return nil, err
	}
	return canonical, nil
}

// SetAutoDelete stores the toggle. Turning it on prunes right away.
func (s *Service) SetAutoDelete(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.events.SetAutoDeletePast(ctx, on); err != nil {
		return fmt.Errorf("app: set auto delete: %w", err)
	}
	if !on {
		return nil
	}
	if _, err := s.pruneLocked(ctx); err != nil {
		return err
	}
	return nil
}

// SetNotificationsEnabled stores the preference and reconciles pending alerts
// with the effective state: off cancels everything, on schedules every event.
// The returned settings reflect actual authorization, so asking for "on"
// while the OS denies permission comes back as off.
func (s *Service) SetNotificationsEnabled(ctx context.Context, on bool) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.events.SetNotificationsEnabled(ctx, on); err != nil {
		return Settings{}, fmt.Errorf("app: set notifications: %w", err)
	}
	events, err := s.events.List(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("app: set notifications: %w", err)
	}

	settings, err := s.settingsLocked(ctx)
	if err != nil {
		return Settings{}, err
	}
	if settings.NotificationsEnabled {
		for _, ev := range events {
			_ = s.notifier.Schedule(ctx, ev)
		}
	} else {
		s.notifier.CancelAll(events)
	}
	appLog.Info("notifications toggled", "wanted", on, "authorized", settings.Authorized)
	return settings, nil
}

// --- refresh ---

// Refresh recomputes every label and rewrites the snapshot.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceAllLocked(ctx)
}

// MidnightTick prunes expired countdowns when auto-delete is on, then
// resynchronizes.
func (s *Service) MidnightTick(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rolloverLocked(ctx)
}

// Resume is the foreground transition: same work as a midnight tick, then the
// background timers are re-armed.
func (s *Service) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.rolloverLocked(ctx)
	if nerr := s.resyncNotificationsLocked(ctx); err == nil {
		err = nerr
	}
	if s.timers != nil {
		s.timers.Resume(ctx)
	}
	return err
}

// Reconcile rewrites the whole snapshot from the store and rebuilds pending
// alerts. The long-running process calls it whenever another process reports
// a change, so an entry that process upserted cannot be lost to a full
// rewrite here that started from an older event list.
func (s *Service) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.replaceAllLocked(ctx)
	if nerr := s.resyncNotificationsLocked(ctx); err == nil {
		err = nerr
	}
	return err
}

// ResyncNotifications rebuilds pending alerts from the store: every pending
// alert is dropped, then each event is scheduled again when notifications are
// effectively on. Events changed by another process are picked up this way.
func (s *Service) ResyncNotifications(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resyncNotificationsLocked(ctx)
}

func (s *Service) resyncNotificationsLocked(ctx context.Context) error {
	events, err := s.events.List(ctx)
	if err != nil {
		return fmt.Errorf("app: resync notifications: %w", err)
	}
	s.notifier.Clear()
	if !s.notificationsOn(ctx) {
		return nil
	}
	for _, ev := range events {
		_ = s.notifier.Schedule(ctx, ev)
	}
	return nil
}

// Suspend stops the background timers.
func (s *Service) Suspend() {
	s.mu.Lock()
	t := s.timers
	s.mu.Unlock()
	if t != nil {
		t.Suspend()
	}
}

// PruneExpired deletes countdown events whose day is before today. Date
// counters are never pruned.
func (s *Service) PruneExpired(ctx context.Context) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(ctx)
}

func (s *Service) rolloverLocked(ctx context.Context) error {
	prefs, err := s.events.Preferences(ctx)
	if err != nil {
		return fmt.Errorf("app: rollover: %w", err)
	}
	if prefs.AutoDeletePast {
		if _, err := s.pruneLocked(ctx); err != nil {
			return err
		}
	}
	return s.replaceAllLocked(ctx)
}

func (s *Service) pruneLocked(ctx context.Context) ([]model.Event, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: prune: %w", err)
	}
	now := s.clock.Now()

	var pruned []model.Event
	for _, ev := range events {
		if ev.Kind != model.KindCountdown || !dday.Expired(ev.TargetDate, now) {
			continue
		}
		if err := s.deleteLocked(ctx, ev); err != nil {
			return pruned, err
		}
		pruned = append(pruned, ev)
	}
	if len(pruned) > 0 {
		appLog.Info("expired countdowns pruned", "count", len(pruned))
	}
	return pruned, nil
}

// replaceAllLocked rewrites the snapshot. A snapshot failure is already logged
// by the synchronizer and only leaves the widget stale, so it is not returned.
func (s *Service) replaceAllLocked(ctx context.Context) error {
	events, prefs, err := s.load(ctx)
	if err != nil {
		return err
	}
	_ = s.snapshot.ReplaceAll(ctx, events, prefs.SortOption, prefs.UserOrder)
	return nil
}

func (s *Service) load(ctx context.Context) ([]model.Event, model.Preferences, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, model.Preferences{}, fmt.Errorf("app: list events: %w", err)
	}
	prefs, err := s.events.Preferences(ctx)
	if err != nil {
		return nil, model.Preferences{}, fmt.Errorf("app: preferences: %w", err)
	}
	return events, prefs, nil
}

func (s *Service) notificationsOn(ctx context.Context) bool {
	prefs, err := s.events.Preferences(ctx)
	if err != nil {
		appLog.Error("read notification preference failed", err)
		return false
	}
	return prefs.NotificationsEnabled && s.notifier.Authorized(ctx)
}
