package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"dday/internal/model"
)

// ErrNotFound is returned when no event has the requested ID.
var ErrNotFound = errors.New("store: event not found")

const dateLayout = "2006-01-02"

// Preference keys in app_state.
const (
	KeySortOption           = "sortOption"
	KeyUserDefinedOrder     = "userDefinedOrder"
	KeyAutoDeletePast       = "autoDeletePast"
	KeyNotificationsEnabled = "notificationsEnabled"
)

// Store provides SQLite-backed persistence for events and preferences.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

// Open opens (or creates) a SQLite database at path with WAL enabled and
// applies the schema.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("open db: path is empty")
	}
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open db: ping: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New returns a Store bound to an existing database handle. loc is the zone
// in which stored calendar dates are interpreted.
func New(db *sql.DB, loc *time.Location) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if loc == nil {
		loc = time.Local
	}
	return &Store{db: db, loc: loc}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// List returns every event in insertion order. Ordering for display is the
// sort engine's job.
func (s *Store) List(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, target_date, kind, created_at, updated_at FROM events ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list events: query: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		ev, err := s.scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: rows: %w", err)
	}
	return events, nil
}

// Get returns a single event.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (model.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, target_date, kind, created_at, updated_at FROM events WHERE id = ?`, id.String())
	ev, err := s.scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Event{}, ErrNotFound
		}
		return model.Event{}, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// Insert stores a new event. ID and timestamps must already be set.
func (s *Store) Insert(ctx context.Context, ev model.Event) error {
	if ev.ID == uuid.Nil {
		return fmt.Errorf("insert event: id is nil")
	}
	if ev.Title == "" {
		return fmt.Errorf("insert event: title is empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, title, target_date, kind, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID.String(), ev.Title, s.formatDate(ev.TargetDate), string(ev.Kind),
		ev.CreatedAt.UTC().Format(time.RFC3339Nano), ev.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Update overwrites title, date and kind of an existing event in place.
func (s *Store) Update(ctx context.Context, ev model.Event) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET title = ?, target_date = ?, kind = ?, updated_at = ? WHERE id = ?`,
		ev.Title, s.formatDate(ev.TargetDate), string(ev.Kind),
		ev.UpdatedAt.UTC().Format(time.RFC3339Nano), ev.ID.String())
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return expectOneRow(res, "update event")
}

// Delete removes an event.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return expectOneRow(res, "delete event")
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanEvent(sc scanner) (model.Event, error) {
	var ev model.Event
	var idStr, dateStr, kindStr, createdStr, updStr string
	if err := sc.Scan(&idStr, &ev.Title, &dateStr, &kindStr, &createdStr, &updStr); err != nil {
		return model.Event{}, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return model.Event{}, fmt.Errorf("parse id %q: %w", idStr, err)
	}
	ev.ID = id

	ev.TargetDate, err = time.ParseInLocation(dateLayout, dateStr, s.loc)
	if err != nil {
		return model.Event{}, fmt.Errorf("parse target_date: %w", err)
	}
	ev.Kind, err = model.ParseEventKind(kindStr)
	if err != nil {
		return model.Event{}, err
	}
	ev.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return model.Event{}, fmt.Errorf("parse created_at: %w", err)
	}
	ev.UpdatedAt, err = time.Parse(time.RFC3339Nano, updStr)
	if err != nil {
		return model.Event{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return ev, nil
}

func (s *Store) formatDate(t time.Time) string {
	return t.In(s.loc).Format(dateLayout)
}

// --- preferences ---

// Preferences reads all user-facing toggles, filling defaults for unset keys.
func (s *Store) Preferences(ctx context.Context) (model.Preferences, error) {
	prefs := model.DefaultPreferences()

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM app_state`)
	if err != nil {
		return prefs, fmt.Errorf("preferences: query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return prefs, fmt.Errorf("preferences: scan: %w", err)
		}
		switch key {
		case KeySortOption:
			prefs.SortOption = model.ParseSortOption(value)
		case KeyUserDefinedOrder:
			var ids []string
			if err := json.Unmarshal([]byte(value), &ids); err != nil {
				return prefs, fmt.Errorf("preferences: decode %s: %w", key, err)
			}
			prefs.UserOrder = ids
		case KeyAutoDeletePast:
			prefs.AutoDeletePast, _ = strconv.ParseBool(value)
		case KeyNotificationsEnabled:
			if b, err := strconv.ParseBool(value); err == nil {
				prefs.NotificationsEnabled = b
			}
		}
	}
	if err := rows.Err(); err != nil {
		return prefs, fmt.Errorf("preferences: rows: %w", err)
	}
	return prefs, nil
}

// SortSettings returns the current sort policy and manual order; it lets the
// snapshot synchronizer re-sort without the caller passing them.
func (s *Store) SortSettings(ctx context.Context) (model.SortOption, []string, error) {
	prefs, err := s.Preferences(ctx)
	if err != nil {
		return model.SortAscending, nil, err
	}
	return prefs.SortOption, prefs.UserOrder, nil
}

func (s *Store) SetSortOption(ctx context.Context, opt model.SortOption) error {
	return s.setState(ctx, KeySortOption, string(opt))
}

// SetUserOrder persists the canonical manual order as a JSON array of ids.
func (s *Store) SetUserOrder(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("set user order: %w", err)
	}
	return s.setState(ctx, KeyUserDefinedOrder, string(b))
}

func (s *Store) SetAutoDeletePast(ctx context.Context, on bool) error {
	return s.setState(ctx, KeyAutoDeletePast, strconv.FormatBool(on))
}

func (s *Store) SetNotificationsEnabled(ctx context.Context, on bool) error {
	return s.setState(ctx, KeyNotificationsEnabled, strconv.FormatBool(on))
}

func (s *Store) setState(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
