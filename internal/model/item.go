package model

import (
	"time"

	"github.com/google/uuid"
)

// Item is the domain model for a todo entry.
// ID and CreationDate are fixed at creation; only IsChecked changes afterwards.
type Item struct {
	ID           uuid.UUID `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	CreationDate time.Time `json:"creation_date" yaml:"creation_date"`
	IsChecked    bool      `json:"is_checked" yaml:"is_checked"`
}

// New builds an unchecked item with a fresh random id.
func New(title string, created time.Time) Item {
	return Item{
		ID:           uuid.New(),
		Title:        title,
		CreationDate: created,
	}
}

// Toggled returns a copy of the item with IsChecked flipped.
func (i Item) Toggled() Item {
	i.IsChecked = !i.IsChecked
	return i
}

// Stats counts checked and unchecked items.
func Stats(items []Item) (done, pending int) {
	for _, it := range items {
		if it.IsChecked {
			done++
		} else {
			pending++
		}
	}
	return
}
