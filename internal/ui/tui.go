package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/repository"
)

// listItem adapts model.Item to bubbles/list.Item
type listItem struct {
	model.Item
}

func (i listItem) FilterValue() string { return i.Title }

// Custom delegate to control how items render (single line)
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	t := Current()
	box := mutedStyle.Render(t.BoxUnchecked)
	text := Truncate(it.Title, MaxTitleWidth)
	if it.IsChecked {
		box = successStyle.Render(t.BoxChecked)
		text = doneStyle.Render(text)
	}
	line := fmt.Sprintf("%s %s  %s", box, text, mutedStyle.Render(FormatDate(it.CreationDate)))
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+line)
}

// changedMsg tells the model the repository committed something.
type changedMsg struct{}

// waitForChange blocks until the repository reports a change or done is
// closed.
func waitForChange(ch <-chan struct{}, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ch:
			return changedMsg{}
		case <-done:
			return nil
		}
	}
}

type modelTUI struct {
	ctx     context.Context
	repo    *repository.Repository
	changes chan struct{}
	done    chan struct{}

	list   list.Model
	items  []model.Item // last fetched snapshot, in list order
	filter string
	width  int
	height int
	err    string

	// Inline add and search share one text input
	adding    bool
	searching bool
	ti        textinput.Model
	addErr    string

	// Undo support (single-level)
	undoItem *model.Item
}

var (
	addBind    = key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add"))
	toggleBind = key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle"))
	deleteBind = key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete"))
	undoBind   = key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo"))
	searchBind = key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search"))
)

func newModel(ctx context.Context, repo *repository.Repository, filter string) modelTUI {
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	// Filtering goes through the repository, not the list's fuzzy matcher.
	l.SetFilteringEnabled(false)
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.SetStatusBarItemName("item", "items")
	binds := func() []key.Binding {
		return []key.Binding{toggleBind, deleteBind, addBind, undoBind, searchBind}
	}
	l.AdditionalShortHelpKeys = binds
	l.AdditionalFullHelpKeys = binds

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200

	m := modelTUI{
		ctx:     ctx,
		repo:    repo,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
		list:    l,
		filter:  filter,
		width:   80,
		height:  24,
		ti:      ti,
	}
	m.reload()
	return m
}

// notify is the repository subscriber. It never blocks: one pending
// signal is enough to trigger a reload.
func (m modelTUI) notify(repository.Change) {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

// reload re-fetches the snapshot and rebuilds the list.
func (m *modelTUI) reload() {
	items, err := m.repo.Fetch(m.ctx, m.filter)
	if err != nil {
		m.err = err.Error()
		return
	}
	m.items = items
	li := make([]list.Item, 0, len(items))
	for _, it := range items {
		li = append(li, listItem{it})
	}
	idx := m.list.Index()
	m.list.SetItems(li)
	if idx >= len(li) {
		idx = len(li) - 1
	}
	if idx >= 0 {
		m.list.Select(idx)
	}
	m.list.Title = m.header()
}

func (m modelTUI) header() string {
	dn, pn := model.Stats(m.items)
	h := fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		titleStyle.Render("Todos"),
		successStyle.Render(symCheck), dn,
		pendingStyle.Render("•"), pn,
		accentStyle.Render("Total"), len(m.items),
	)
	if m.filter != "" {
		h += "   " + mutedStyle.Render("/ "+m.filter)
	}
	return h
}

func (m modelTUI) selected() (model.Item, bool) {
	li, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return model.Item{}, false
	}
	return li.Item, true
}

// Update and View implement Bubble Tea's Model on modelTUI
func (m modelTUI) Init() tea.Cmd { return waitForChange(m.changes, m.done) }

func (m modelTUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case changedMsg:
		m.reload()
		return m, waitForChange(m.changes, m.done)
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	}

	if m.adding {
		return m.updateAdding(msg)
	}
	if m.searching {
		return m.updateSearching(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		m.err = ""
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.filter != "" {
				m.filter = ""
				m.reload()
				return m, nil
			}
			return m, tea.Quit
		case " ":
			if it, ok := m.selected(); ok {
				if _, err := m.repo.Toggle(m.ctx, it.ID); err != nil {
					m.err = err.Error()
				}
			}
			return m, nil
		case "d":
			if it, ok := m.selected(); ok {
				if err := m.repo.Delete(m.ctx, it.ID); err != nil {
					m.err = err.Error()
					return m, nil
				}
				m.undoItem = &it
			}
			return m, nil
		case "u":
			if m.undoItem != nil {
				restored, err := m.restore(*m.undoItem)
				if restored {
					m.undoItem = nil
				}
				if err != nil {
					m.err = err.Error()
				}
			}
			return m, nil
		case "a":
			m.adding = true
			m.addErr = ""
			m.ti.SetValue("")
			m.ti.Placeholder = "New item title..."
			m.ti.Focus()
			return m, textinput.Blink
		case "/":
			m.searching = true
			m.ti.SetValue(m.filter)
			m.ti.CursorEnd()
			m.ti.Placeholder = "Search titles..."
			m.ti.Focus()
			return m, textinput.Blink
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// restore brings back a deleted item as a new item with the same title,
// creation date and check state. restored reports whether the item exists
// again, even if its check state could not be put back.
func (m modelTUI) restore(it model.Item) (restored bool, err error) {
	created, err := m.repo.CreateAt(m.ctx, it.Title, it.CreationDate)
	if err != nil {
		return false, err
	}
	if it.IsChecked {
		if _, err := m.repo.Toggle(m.ctx, created.ID); err != nil {
			return true, fmt.Errorf("restored %q but could not mark it done: %w", it.Title, err)
		}
	}
	return true, nil
}

func (m modelTUI) updateAdding(msg tea.Msg) (tea.Model, tea.Cmd) {
	if x, ok := msg.(tea.KeyMsg); ok {
		switch x.String() {
		case "enter":
			title := strings.TrimSpace(m.ti.Value())
			if title == "" {
				m.addErr = "Title cannot be empty"
				return m, nil
			}
			if _, err := m.repo.Create(m.ctx, title); err != nil {
				m.addErr = err.Error()
				return m, nil
			}
			m.adding = false
			m.ti.SetValue("")
			m.ti.Blur()
			return m, nil
		case "esc":
			m.adding = false
			m.ti.SetValue("")
			m.ti.Blur()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

// updateSearching filters live as the query is typed.
func (m modelTUI) updateSearching(msg tea.Msg) (tea.Model, tea.Cmd) {
	if x, ok := msg.(tea.KeyMsg); ok {
		switch x.String() {
		case "enter":
			m.searching = false
			m.ti.Blur()
			return m, nil
		case "esc":
			m.searching = false
			m.filter = ""
			m.ti.SetValue("")
			m.ti.Blur()
			m.reload()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	if v := m.ti.Value(); v != m.filter {
		m.filter = v
		m.reload()
	}
	return m, cmd
}

func (m modelTUI) View() string {
	listHeight := m.height - 4
	if m.adding || m.searching {
		listHeight = m.height - 7
	}
	if listHeight < 3 {
		listHeight = 3
	}
	m.list.SetSize(m.width-4, listHeight)

	content := m.list.View()
	if m.adding || m.searching {
		title := "Add new item"
		if m.searching {
			title = "Search"
		}
		if m.addErr != "" && m.adding {
			title += ": " + errorStyle.Render(m.addErr)
		}
		content += "\n" + panelString(title+"\n"+m.ti.View())
	}
	if m.err != "" {
		content += "\n" + errorStyle.Render(symCross+" "+m.err)
	}
	return panelString(content)
}

// Options tune the interactive list.
type Options struct {
	Filter string
	Output io.Writer
	Input  io.Reader
}

// Run starts the interactive list over repo and blocks until the user
// quits. Every action commits immediately; there is nothing to save on
// exit.
func Run(ctx context.Context, repo *repository.Repository, opts Options) error {
	m := newModel(ctx, repo, opts.Filter)
	unsubscribe := repo.Subscribe(m.notify)
	defer unsubscribe()
	// Releases the pending waitForChange once the program is gone.
	defer close(m.done)

	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if _, err := tea.NewProgram(m, progOpts...).Run(); err != nil {
		return fmt.Errorf("run interactive list: %w", err)
	}
	return nil
}
