package query

import (
	"slices"
	"strings"

	"github.com/Makepad-fr/tada/internal/model"
)

// Predicate selects items. A nil Predicate matches everything.
type Predicate func(model.Item) bool

// Field names a sortable item attribute.
type Field string

const (
	ByCreationDate Field = "creation_date"
	ByTitle        Field = "title"
	ByID           Field = "id"
)

// SortKey orders items by a single field.
type SortKey struct {
	Field      Field
	Descending bool
}

// DefaultOrder is the Fetch order: newest first, then title ascending
// (byte-wise, so case-sensitive). The id key only breaks exact ties.
var DefaultOrder = []SortKey{
	{Field: ByCreationDate, Descending: true},
	{Field: ByTitle},
	{Field: ByID},
}

// TitleContains matches items whose title contains filter, ignoring case
// and diacritics. An empty filter yields a nil Predicate.
func TitleContains(filter string) Predicate {
	if filter == "" {
		return nil
	}
	folded := Fold(filter)
	return func(it model.Item) bool {
		return strings.Contains(Fold(it.Title), folded)
	}
}

// Compare orders a and b by keys, returning -1, 0 or +1.
func Compare(a, b model.Item, keys []SortKey) int {
	for _, k := range keys {
		var c int
		switch k.Field {
		case ByCreationDate:
			c = a.CreationDate.Compare(b.CreationDate)
		case ByTitle:
			c = strings.Compare(a.Title, b.Title)
		case ByID:
			c = strings.Compare(a.ID.String(), b.ID.String())
		}
		if k.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// Sort orders items in place.
func Sort(items []model.Item, keys []SortKey) {
	slices.SortStableFunc(items, func(a, b model.Item) int {
		return Compare(a, b, keys)
	})
}

// Filter returns the items matching pred in a new slice.
func Filter(items []model.Item, pred Predicate) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if pred == nil || pred(it) {
			out = append(out, it)
		}
	}
	return out
}

// Apply filters and sorts into a fresh slice; items is left untouched.
func Apply(items []model.Item, pred Predicate, keys []SortKey) []model.Item {
	out := Filter(items, pred)
	if len(keys) > 0 {
		Sort(out, keys)
	}
	return out
}
