package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventKind distinguishes events that expire from events that keep counting.
type EventKind string

const (
	// KindCountdown events become irrelevant once their date passes and may
	// be pruned automatically.
	KindCountdown EventKind = "countdown"
	// KindDateCounter events count elapsed days indefinitely and are never pruned.
	KindDateCounter EventKind = "dateCounter"
)

// ParseEventKind accepts the stored raw value (case-insensitive).
func ParseEventKind(s string) (EventKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "countdown":
		return KindCountdown, nil
	case "datecounter", "date_counter", "counter":
		return KindDateCounter, nil
	default:
		return "", fmt.Errorf("model: unknown event kind %q", s)
	}
}

// Event is the authoritative D-day record owned by the main application.
//
// ID is assigned once at creation and never derived from a storage-internal
// token. The display label is intentionally not a field: it is a function of
// TargetDate and the current day and is always computed on demand.
type Event struct {
	ID         uuid.UUID
	Title      string
	TargetDate time.Time
	Kind       EventKind

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SortID and SortDate let the sort engine order events and snapshots alike.
func (e Event) SortID() string      { return e.ID.String() }
func (e Event) SortDate() time.Time { return e.TargetDate }

// Snapshot is the widget-facing projection of one Event. Field names on the
// wire are stable: id, title, dDayText, targetDate.
type Snapshot struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	DDayText   string    `json:"dDayText"`
	TargetDate time.Time `json:"targetDate"`
}

func (s Snapshot) SortID() string      { return s.ID }
func (s Snapshot) SortDate() time.Time { return s.TargetDate }

// SortOption selects how the list (and therefore the widget) is ordered.
// The raw values are what gets persisted.
type SortOption string

const (
	SortAscending   SortOption = "targetDateAscending"
	SortDescending  SortOption = "targetDateDescending"
	SortUserDefined SortOption = "userDefined"
)

// AllSortOptions lists the options in menu order.
var AllSortOptions = []SortOption{SortAscending, SortDescending, SortUserDefined}

// ParseSortOption maps a stored raw value onto a SortOption. Unknown or empty
// values fall back to ascending, matching a fresh install.
func ParseSortOption(s string) SortOption {
	switch SortOption(strings.TrimSpace(s)) {
	case SortDescending:
		return SortDescending
	case SortUserDefined:
		return SortUserDefined
	default:
		return SortAscending
	}
}

// DisplayName is the label shown in the sort menu.
func (o SortOption) DisplayName() string {
	switch o {
	case SortDescending:
		return "날짜 내림차순"
	case SortUserDefined:
		return "사용자 지정 순서"
	default:
		return "날짜 오름차순"
	}
}

// Preferences are the user-facing toggles. They are stored next to the events,
// not in the config file.
type Preferences struct {
	SortOption           SortOption
	UserOrder            []string
	AutoDeletePast       bool
	NotificationsEnabled bool
}

// DefaultPreferences matches a fresh install.
func DefaultPreferences() Preferences {
	return Preferences{
		SortOption:           SortAscending,
		UserOrder:            nil,
		AutoDeletePast:       false,
		NotificationsEnabled: true,
	}
}

// WidgetKind is the kind string the widget host registers its timeline under.
const WidgetKind = "DDayWidget"
