package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Zuo-Peng/wa-chat-viewer/internal/index"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/search"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const debounceDelay = 200 * time.Millisecond

type tuiMode int

const (
	modeSearch tuiMode = iota
	modeList
)

// message types

type searchResultMsg struct {
	query   string
	results []search.Result
	err     error
}

type debounceTickMsg struct {
	query string
}

// model

type model struct {
	db          *index.DB
	searchOpts  search.Options
	viewer      string
	mode        tuiMode
	query       string
	results     []search.Result
	cursor      int
	listOffset  int
	filterInput textinput.Model
	preview     viewport.Model
	previewKey  string // "chatKey:seq" to avoid duplicate renders
	width       int
	height      int
	ready       bool
	quitting    bool
	openResult  *search.Result
}

func newFilterInput(placeholder, value string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Focus()
	ti.SetValue(value)
	ti.Prompt = "> "
	ti.PromptStyle = styleInputPrompt
	ti.TextStyle = styleInput
	ti.CharLimit = 256
	return ti
}

func initialModel(db *index.DB, query string, opts search.Options, viewer string) model {
	return model{
		db:          db,
		searchOpts:  opts,
		viewer:      viewer,
		query:       query,
		filterInput: newFilterInput("Search...", query),
		preview:     viewport.New(0, 0),
	}
}

// Run starts the search TUI and blocks until it exits. Selecting a result
// opens the chat in the conversation viewer, scrolled to the hit.
func Run(db *index.DB, query string, opts search.Options, chatOpts ChatOptions) error {
	return runBrowser(db, initialModel(db, query, opts, chatOpts.Viewer), chatOpts)
}

// RunList starts the TUI in list mode, showing all chats sorted by last activity.
func RunList(db *index.DB, opts search.Options, chatOpts ChatOptions) error {
	m := initialModel(db, "", opts, chatOpts.Viewer)
	m.mode = modeList
	m.filterInput = newFilterInput("Filter...", "")
	return runBrowser(db, m, chatOpts)
}

func runBrowser(db *index.DB, m model, chatOpts ChatOptions) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}

	fm := finalModel.(model)
	if fm.openResult == nil {
		return nil
	}
	src, err := LoadChat(db, fm.openResult.ChatKey, fm.openResult.Seq)
	if err != nil {
		return err
	}
	return RunChat(src, chatOpts)
}

// LoadChat reads a cached chat into a viewer source.
func LoadChat(db *index.DB, chatKey string, hitSeq int) (ChatSource, error) {
	chat, conv, err := db.LoadConversation(chatKey)
	if err != nil {
		return ChatSource{}, fmt.Errorf("load chat: %w", err)
	}
	return ChatSource{
		Title:  chat.Title,
		Path:   chat.FilePath,
		Conv:   conv,
		HitSeq: hitSeq,
	}, nil
}

// Init triggers the initial search/list load.
func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.mode == modeList {
		cmds = append(cmds, m.doListAll(""))
	} else if m.query != "" {
		cmds = append(cmds, m.doSearch(m.query))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.preview = newViewport(m.layout().preview, m.layout().panel)
		// the old render was for another width
		m.previewKey = ""
		return m, m.loadCurrentPreview()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case debounceTickMsg:
		// stale tick: the query moved on since it was scheduled
		if msg.query != m.query {
			return m, nil
		}
		if m.mode == modeList {
			return m, m.doListAll(msg.query)
		}
		return m, m.doSearch(msg.query)

	case searchResultMsg:
		if msg.query != m.query {
			return m, nil
		}
		m.cursor = 0
		m.listOffset = 0
		m.previewKey = ""
		if msg.err != nil {
			m.results = nil
			m.preview.SetContent("Error: " + msg.err.Error())
			return m, nil
		}
		m.results = msg.results
		if len(m.results) == 0 {
			m.preview.SetContent("")
			return m, nil
		}
		return m, m.loadCurrentPreview()

	case previewRenderedMsg:
		return m.applyPreview(msg), nil
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	panel := m.layout().panel

	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Enter):
		if r, ok := m.selected(); ok {
			m.openResult = &r
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case key.Matches(msg, keys.Up):
		return m.moveCursor(m.cursor - 1)

	case key.Matches(msg, keys.Down):
		return m.moveCursor(m.cursor + 1)

	case key.Matches(msg, keys.PreviewUp):
		m.preview.LineUp(panel / 2)
		return m, nil

	case key.Matches(msg, keys.PreviewDn):
		m.preview.LineDown(panel / 2)
		return m, nil

	case key.Matches(msg, keys.PageUp):
		m.preview.LineUp(panel)
		return m, nil

	case key.Matches(msg, keys.PageDown):
		m.preview.LineDown(panel)
		return m, nil
	}

	// everything else edits the query
	var cmds []tea.Cmd
	var tiCmd tea.Cmd
	m.filterInput, tiCmd = m.filterInput.Update(msg)
	cmds = append(cmds, tiCmd)

	if q := m.filterInput.Value(); q != m.query {
		m.query = q
		cmds = append(cmds, m.scheduleDebouncedSearch(q))
	}
	return m, tea.Batch(cmds...)
}

func (m model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if !m.ready || len(m.results) == 0 {
		return m, nil
	}

	region, itemIdx := m.hitTest(msg.X, msg.Y)
	wheel := msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown

	switch {
	case region == regionList && msg.Button == tea.MouseButtonWheelUp:
		m.listOffset = max(m.listOffset-1, 0)

	case region == regionList && msg.Button == tea.MouseButtonWheelDown:
		visibleItems := m.layout().panel / linesPerItem
		m.listOffset = min(m.listOffset+1, max(len(m.results)-visibleItems, 0))

	case region == regionList && msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
		if itemIdx != m.cursor {
			return m.moveCursor(itemIdx)
		}

	case region == regionPreview && wheel:
		var vpCmd tea.Cmd
		m.preview, vpCmd = m.preview.Update(msg)
		return m, vpCmd
	}
	return m, nil
}

// moveCursor selects result i when it exists and loads its preview.
func (m model) moveCursor(i int) (tea.Model, tea.Cmd) {
	if i < 0 || i >= len(m.results) || i == m.cursor {
		return m, nil
	}
	m.cursor = i
	m.adjustListScroll(m.layout().panel)
	return m, m.loadCurrentPreview()
}

func (m model) selected() (search.Result, bool) {
	if m.cursor < 0 || m.cursor >= len(m.results) {
		return search.Result{}, false
	}
	return m.results[m.cursor], true
}

// applyPreview shows a finished render unless the selection moved on.
func (m model) applyPreview(msg previewRenderedMsg) model {
	pk := previewCacheKey(msg.chatKey, msg.seq)
	if pk == m.previewKey {
		return m
	}
	if r, ok := m.selected(); ok && previewCacheKey(r.ChatKey, r.Seq) != pk {
		return m
	}
	if msg.err != nil {
		m.preview.SetContent("Preview error: " + msg.err.Error())
	} else {
		m.preview.SetContent(msg.content)
		if msg.hitLine > 0 {
			m.preview.SetYOffset(msg.hitLine)
		} else if msg.seq < 0 {
			// whole chat: start at the latest messages
			m.preview.GotoBottom()
		} else {
			m.preview.GotoTop()
		}
	}
	m.previewKey = pk
	return m
}

// View renders the full TUI.
func (m model) View() string {
	if m.quitting || !m.ready {
		return ""
	}

	lay := m.layout()

	listPanel := stylePanelBorder.
		Width(lay.list).
		Height(lay.panel).
		Render(m.renderList(lay.list, lay.panel))

	m.preview.Width = lay.preview
	m.preview.Height = lay.panel
	previewPanel := styleActiveBorder.
		Width(lay.preview).
		Height(lay.panel).
		Render(m.preview.View())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, listPanel, previewPanel)

	return lipgloss.JoinVertical(lipgloss.Left, m.filterInput.View(), panels, m.statusBar())
}

// layout holds the content sizes of the two panels, borders excluded.
type layout struct {
	list    int
	preview int
	panel   int
}

func (m model) layout() layout {
	if m.width <= 0 || m.height <= 0 {
		return layout{list: 40, preview: 60, panel: 20}
	}
	return layout{
		// 35/65 split, minus border padding
		list:    max(m.width*35/100-4, 20),
		preview: max(m.width*65/100-4, 20),
		// input row (1) + status bar (1) + borders (4)
		panel: max(m.height-6, 5),
	}
}

type mouseRegion int

const (
	regionNone mouseRegion = iota
	regionList
	regionPreview
)

// hitTest maps terminal coordinates to a panel region and list item index.
func (m model) hitTest(x, y int) (mouseRegion, int) {
	lay := m.layout()
	top := 2 // input row (1) + top border (1)
	if y < top || y >= top+lay.panel {
		return regionNone, -1
	}

	// col 0 is the border, 1..list the content, list+1 the border
	switch {
	case x >= 1 && x <= lay.list:
		return regionList, m.listOffset + (y-top)/linesPerItem
	case x > lay.list+2:
		return regionPreview, -1
	}
	return regionNone, -1
}

func (m model) statusBar() string {
	noun := "results"
	if m.mode == modeList && m.query == "" {
		noun = "chats"
	}
	parts := []string{
		fmt.Sprintf("%d %s", len(m.results), noun),
		"click/up/dn navigate",
		"scroll/C-u/C-d preview",
		"Enter open chat",
		"Esc quit",
	}
	return styleStatusBar.Render(strings.Join(parts, " | "))
}

func (m model) doSearch(query string) tea.Cmd {
	db := m.db
	opts := m.searchOpts
	opts.Query = query
	return func() tea.Msg {
		if query == "" {
			return searchResultMsg{query: query}
		}
		results, err := search.Search(db, opts)
		return searchResultMsg{query: query, results: results, err: err}
	}
}

// doListAll lists every chat, or searches message text once there is input.
func (m model) doListAll(filter string) tea.Cmd {
	db := m.db
	opts := m.searchOpts
	opts.Query = filter
	return func() tea.Msg {
		var results []search.Result
		var err error
		if filter == "" {
			results, err = search.ListAll(db, opts)
		} else {
			results, err = search.Search(db, opts)
		}
		return searchResultMsg{query: filter, results: results, err: err}
	}
}

func (m model) scheduleDebouncedSearch(query string) tea.Cmd {
	return tea.Tick(debounceDelay, func(time.Time) tea.Msg {
		return debounceTickMsg{query: query}
	})
}

func (m model) loadCurrentPreview() tea.Cmd {
	r, ok := m.selected()
	if !ok || previewCacheKey(r.ChatKey, r.Seq) == m.previewKey {
		return nil
	}
	return loadPreviewCmd(m.db, r, m.query, m.viewer, m.layout().preview)
}

func previewCacheKey(chatKey string, seq int) string {
	return fmt.Sprintf("%s:%d", chatKey, seq)
}
