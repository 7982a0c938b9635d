package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Zuo-Peng/wa-chat-viewer/internal/logging"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/parse"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/render"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/search"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// defaultDraftSender signs drafts when no viewer name is configured.
const defaultDraftSender = "You"

// ChatSource is a conversation to show in the viewer.
type ChatSource struct {
	Title  string
	Path   string // export file, "" when the chat has no file behind it
	Conv   parse.Conversation
	HitSeq int // message to scroll to, -1 for the bottom
}

type ChatOptions struct {
	Viewer string
	Follow bool // reload when the export file changes
}

type focusArea int

const (
	focusFilter focusArea = iota
	focusComposer
)

// message types

type fileChangedMsg struct{}

type watchErrMsg struct {
	err error
}

type chatReloadedMsg struct {
	conv parse.Conversation
	err  error
}

type chatModel struct {
	src      ChatSource
	viewer   string
	drafts   []parse.Message
	filter   textinput.Model
	composer textinput.Model
	focus    focusArea
	vp       viewport.Model
	shown    []parse.Message
	status   string
	width    int
	height   int
	ready    bool
	placed   bool // initial scroll position applied
	watcher  *fsnotify.Watcher
	now      func() time.Time
	copyText func(string) error
}

func newChatModel(src ChatSource, opts ChatOptions) chatModel {
	filter := textinput.New()
	filter.Placeholder = "Search messages..."
	filter.Prompt = "/ "
	filter.PromptStyle = styleInputPrompt
	filter.TextStyle = styleInput
	filter.CharLimit = 256

	composer := textinput.New()
	composer.Placeholder = "Type a message"
	composer.Prompt = "> "
	composer.PromptStyle = styleComposerPrompt
	composer.CharLimit = 4096
	composer.Focus()

	m := chatModel{
		src:      src,
		viewer:   opts.Viewer,
		filter:   filter,
		composer: composer,
		focus:    focusComposer,
		vp:       viewport.New(0, 0),
		now:      time.Now,
		copyText: clipboard.WriteAll,
	}
	m.shown = m.visible()
	return m
}

// RunChat opens the conversation viewer and blocks until it exits.
func RunChat(src ChatSource, opts ChatOptions) error {
	m := newChatModel(src, opts)
	if opts.Follow && src.Path != "" {
		w, err := watchFile(src.Path)
		if err != nil {
			return err
		}
		defer w.Close()
		m.watcher = w
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// watchFile watches the directory of path. Editors and exporters often
// replace the file instead of writing it in place.
func watchFile(path string) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	logging.L().Debug("following export", zap.String("path", path))
	return w, nil
}

// waitForChange blocks until the watched file changes.
func waitForChange(w *fsnotify.Watcher, path string) tea.Cmd {
	target := filepath.Clean(path)
	return func() tea.Msg {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					logging.L().Debug("export changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
					return fileChangedMsg{}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				return watchErrMsg{err: err}
			}
		}
	}
}

func reloadCmd(path string) tea.Cmd {
	return func() tea.Msg {
		res, err := parse.ParseFile(path, "")
		if err != nil {
			return chatReloadedMsg{err: err}
		}
		return chatReloadedMsg{conv: res.Conversation}
	}
}

func (m chatModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.watcher != nil {
		cmds = append(cmds, waitForChange(m.watcher, m.src.Path))
	}
	return tea.Batch(cmds...)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = m.viewWidth()
		m.vp.Height = m.viewHeight()
		m.ready = true
		m.refresh(false)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, chatKeys.Quit):
			return m, tea.Quit

		case key.Matches(msg, chatKeys.Focus):
			m.toggleFocus()
			return m, nil

		case key.Matches(msg, chatKeys.Send) && m.focus == focusComposer:
			m.send(m.composer.Value())
			return m, nil

		case key.Matches(msg, chatKeys.Copy):
			m.copyShown()
			return m, nil

		case key.Matches(msg, chatKeys.Up):
			m.vp.LineUp(1)
			return m, nil

		case key.Matches(msg, chatKeys.Down):
			m.vp.LineDown(1)
			return m, nil

		case key.Matches(msg, chatKeys.HalfUp):
			m.vp.HalfViewUp()
			return m, nil

		case key.Matches(msg, chatKeys.HalfDown):
			m.vp.HalfViewDown()
			return m, nil

		case key.Matches(msg, chatKeys.PageUp):
			m.vp.ViewUp()
			return m, nil

		case key.Matches(msg, chatKeys.PageDown):
			m.vp.ViewDown()
			return m, nil
		}

		var tiCmd tea.Cmd
		if m.focus == focusFilter {
			before := m.filter.Value()
			m.filter, tiCmd = m.filter.Update(msg)
			if m.filter.Value() != before {
				m.refresh(false)
			}
		} else {
			m.composer, tiCmd = m.composer.Update(msg)
		}
		return m, tiCmd

	case tea.MouseMsg:
		var vpCmd tea.Cmd
		m.vp, vpCmd = m.vp.Update(msg)
		return m, vpCmd

	case fileChangedMsg:
		return m, reloadCmd(m.src.Path)

	case chatReloadedMsg:
		if msg.err != nil {
			logging.L().Warn("reload export", zap.String("path", m.src.Path), zap.Error(msg.err))
			m.status = "Reload failed: " + msg.err.Error()
		} else {
			added := len(msg.conv.Messages) - len(m.src.Conv.Messages)
			m.src.Conv = msg.conv
			m.refresh(m.vp.AtBottom())
			if added > 0 {
				m.status = fmt.Sprintf("%d new messages", added)
			}
		}
		if m.watcher != nil {
			cmds = append(cmds, waitForChange(m.watcher, m.src.Path))
		}
		return m, tea.Batch(cmds...)

	case watchErrMsg:
		logging.L().Warn("watch export", zap.String("path", m.src.Path), zap.Error(msg.err))
		m.status = "Watch error: " + msg.err.Error()
		if m.watcher != nil {
			cmds = append(cmds, waitForChange(m.watcher, m.src.Path))
		}
		return m, tea.Batch(cmds...)
	}

	// cursor blink and friends go to the focused input
	var tiCmd tea.Cmd
	if m.focus == focusFilter {
		m.filter, tiCmd = m.filter.Update(msg)
	} else {
		m.composer, tiCmd = m.composer.Update(msg)
	}
	return m, tiCmd
}

func (m *chatModel) toggleFocus() {
	if m.focus == focusComposer {
		m.focus = focusFilter
		m.composer.Blur()
		m.filter.Focus()
		return
	}
	m.focus = focusComposer
	m.filter.Blur()
	m.composer.Focus()
}

// send appends a draft signed by the viewer. Drafts live only as long as
// the viewer does.
func (m *chatModel) send(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if strings.TrimSpace(m.viewer) == "" {
		m.viewer = defaultDraftSender
	}
	m.drafts = append(m.drafts, parse.Message{
		Timestamp: parse.WallClock(m.now()).Truncate(time.Minute),
		Sender:    m.viewer,
		Text:      text,
	})
	m.composer.SetValue("")
	m.filter.SetValue("")
	m.status = ""
	m.refresh(true)
}

func (m *chatModel) copyShown() {
	if len(m.shown) == 0 {
		m.status = "Nothing to copy"
		return
	}
	if err := m.copyText(render.Transcript(m.shown)); err != nil {
		m.status = "Copy failed: " + err.Error()
		return
	}
	m.status = fmt.Sprintf("Copied %d messages", len(m.shown))
}

// conversation is the parsed chat followed by the local drafts.
func (m chatModel) conversation() parse.Conversation {
	conv := parse.Conversation{
		Messages: make([]parse.Message, 0, len(m.src.Conv.Messages)+len(m.drafts)),
		IsGroup:  m.src.Conv.IsGroup,
	}
	conv.Messages = append(conv.Messages, m.src.Conv.Messages...)
	for _, d := range m.drafts {
		conv.Append(d)
	}
	return conv
}

func (m chatModel) visible() []parse.Message {
	return search.FilterMessages(m.conversation().Messages, m.filter.Value())
}

// refresh re-renders the viewport. The first render lands on the hit
// message, or the bottom when there is none.
func (m *chatModel) refresh(toBottom bool) {
	conv := m.conversation()
	query := strings.TrimSpace(m.filter.Value())
	m.shown = search.FilterMessages(conv.Messages, query)

	hitSeq := -1
	if query == "" && !m.placed {
		hitSeq = m.src.HitSeq
	}
	content, hitLine := render.Render(parse.Conversation{Messages: m.shown, IsGroup: conv.IsGroup}, render.Options{
		Viewer: m.viewer,
		HitSeq: hitSeq,
		Width:  m.vp.Width,
		Query:  query,
	})
	if len(m.shown) == 0 {
		content = lipgloss.NewStyle().Foreground(colorDim).Render("No messages")
	}
	m.vp.SetContent(content)

	switch {
	case !m.placed && m.ready:
		m.placed = true
		if hitLine >= 0 {
			m.vp.SetYOffset(hitLine)
		} else {
			m.vp.GotoBottom()
		}
	case toBottom || query != "":
		m.vp.GotoBottom()
	}
}

func (m chatModel) View() string {
	if !m.ready {
		return ""
	}

	header := styleTitle.Render(m.header())
	body := styleActiveBorder.
		Width(m.vp.Width).
		Height(m.vp.Height).
		Render(m.vp.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		m.filter.View(),
		m.composer.View(),
		m.statusBar(),
	)
}

func (m chatModel) header() string {
	title := m.src.Title
	if title == "" {
		title = "Chat"
	}
	senders := m.src.Conv.Senders()
	if m.src.Conv.IsGroup {
		return fmt.Sprintf("%s  (group, %d participants)", title, len(senders))
	}
	return fmt.Sprintf("%s  (%s)", title, strings.Join(senders, ", "))
}

func (m chatModel) statusBar() string {
	total := len(m.src.Conv.Messages) + len(m.drafts)
	var parts []string
	if len(m.shown) != total {
		parts = append(parts, fmt.Sprintf("%d of %d messages", len(m.shown), total))
	} else {
		parts = append(parts, fmt.Sprintf("%d messages", total))
	}
	if len(m.drafts) > 0 {
		parts = append(parts, fmt.Sprintf("%d drafts", len(m.drafts)))
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	parts = append(parts, "tab search/compose")
	parts = append(parts, "C-y copy")
	parts = append(parts, "Esc quit")
	return styleStatusBar.Render(strings.Join(parts, " | "))
}

func (m chatModel) viewWidth() int {
	if m.width <= 0 {
		return 80
	}
	// minus border
	return max(m.width-2, 20)
}

func (m chatModel) viewHeight() int {
	if m.height <= 0 {
		return 20
	}
	// Subtract header, filter, composer, status (4) + borders (2)
	return max(m.height-6, 3)
}
