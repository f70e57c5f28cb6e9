package ui

import (
	"fmt"
	"time"

	"github.com/Makepad-fr/tada/internal/model"
)

// DateLayout matches a medium date with a short time.
const DateLayout = "Jan 2, 2006 15:04"

// MaxTitleWidth is where list titles get truncated.
const MaxTitleWidth = 80

// FormatDate renders a creation date in local time.
func FormatDate(t time.Time) string {
	return t.Local().Format(DateLayout)
}

// Truncate shortens s to at most n runes, ending in "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// Header is the summary line above a list.
func Header(items []model.Item) string {
	t := Current()
	d, p := model.Stats(items)
	return fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		C(t.Title, "Todos"),
		C(t.Success, t.SymDone), d,
		C(t.Pending, t.SymUnchecked), p,
		C(t.Accent, "Total"), len(items),
	)
}

// ListLines renders items with their 1-based position in items, so the
// numbers stay valid as references even when grouped.
func ListLines(items []model.Item, group bool) []string {
	if !group {
		return flatLines(items)
	}
	t := Current()
	var pend, done []int
	for i, it := range items {
		if it.IsChecked {
			done = append(done, i)
		} else {
			pend = append(pend, i)
		}
	}
	var lines []string
	lines = append(lines, C(t.Accent, "Pending"))
	lines = append(lines, indexedLines(items, pend)...)
	lines = append(lines, "")
	lines = append(lines, C(t.Accent, "Done"))
	lines = append(lines, indexedLines(items, done)...)
	return lines
}

func indexedLines(items []model.Item, idx []int) []string {
	if len(idx) == 0 {
		return []string{C(Current().Muted, "(none)")}
	}
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, line(i+1, items[i]))
	}
	return out
}

func flatLines(items []model.Item) []string {
	if len(items) == 0 {
		return []string{C(Current().Muted, "no items")}
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		out = append(out, line(i+1, it))
	}
	return out
}

func line(n int, it model.Item) string {
	t := Current()
	box, color := t.BoxUnchecked, t.Muted
	if it.IsChecked {
		box, color = t.BoxChecked, t.Success
	}
	return fmt.Sprintf("%s %s %s  %s",
		Dim(fmt.Sprintf("%2d.", n)),
		C(color, box),
		Truncate(it.Title, MaxTitleWidth),
		C(t.Muted, FormatDate(it.CreationDate)))
}
