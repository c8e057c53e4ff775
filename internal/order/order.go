// Package order sorts events (and their widget snapshots) by one of the
// three user-selectable policies.
package order

import (
	"slices"
	"time"

	"dday/internal/model"
)

// Item is anything that can be placed in the list: model.Event and
// model.Snapshot both qualify.
type Item interface {
	SortID() string
	SortDate() time.Time
}

// Sort returns a new slice ordered by opt. The input is not modified.
//
//   - SortAscending / SortDescending: by target date, stable for ties.
//   - SortUserDefined: items whose id appears in userOrder come first in that
//     relative order; the rest are appended in ascending date order.
//
// Ids are matched by exact string equality.
func Sort[T Item](items []T, opt model.SortOption, userOrder []string) []T {
	out := slices.Clone(items)
	switch opt {
	case model.SortDescending:
		slices.SortStableFunc(out, func(a, b T) int {
			return b.SortDate().Compare(a.SortDate())
		})
	case model.SortUserDefined:
		out = byUserOrder(out, userOrder)
	default:
		sortAscending(out)
	}
	return out
}

func sortAscending[T Item](items []T) {
	slices.SortStableFunc(items, func(a, b T) int {
		return a.SortDate().Compare(b.SortDate())
	})
}

func byUserOrder[T Item](items []T, userOrder []string) []T {
	if len(userOrder) == 0 {
		sortAscending(items)
		return items
	}

	byID := make(map[string]int, len(items))
	for i, it := range items {
		byID[it.SortID()] = i
	}

	placed := make([]bool, len(items))
	out := make([]T, 0, len(items))
	for _, id := range userOrder {
		i, ok := byID[id]
		if !ok || placed[i] {
			continue
		}
		placed[i] = true
		out = append(out, items[i])
	}

	rest := make([]T, 0, len(items)-len(out))
	for i, it := range items {
		if !placed[i] {
			rest = append(rest, it)
		}
	}
	sortAscending(rest)
	return append(out, rest...)
}

// IDs returns the ids of items in order. Persisting IDs(sorted) after a manual
// reorder makes the order canonical across restarts.
func IDs[T Item](items []T) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.SortID()
	}
	return ids
}
