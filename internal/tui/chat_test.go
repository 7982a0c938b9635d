package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Zuo-Peng/wa-chat-viewer/internal/parse"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/render"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func longChat(n int) parse.Conversation {
	var lines []string
	for i := range n {
		sender := "Alice"
		if i%2 == 1 {
			sender = "Bob"
		}
		lines = append(lines, fmt.Sprintf("7/4/23, 9:%02d AM - %s: message %d", i%60, sender, i))
	}
	lines = append(lines, "7/4/23, 10:00 AM - Alice: bring bread")
	return parse.Parse(strings.Join(lines, "\n"))
}

func update(t *testing.T, m chatModel, msgs ...tea.Msg) chatModel {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(chatModel)
		require.True(t, ok)
	}
	return m
}

func typeText(s string) tea.Msg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var windowSize = tea.WindowSizeMsg{Width: 60, Height: 12}

func TestChatModel_OpensAtBottom(t *testing.T) {
	m := newChatModel(ChatSource{Conv: longChat(30), HitSeq: -1}, ChatOptions{Viewer: "Bob"})
	m = update(t, m, windowSize)

	assert.True(t, m.ready)
	assert.Equal(t, 58, m.vp.Width)
	assert.Equal(t, 6, m.vp.Height)
	assert.True(t, m.vp.AtBottom())
	assert.Len(t, m.shown, 31)
}

func TestChatModel_OpensAtHit(t *testing.T) {
	m := newChatModel(ChatSource{Conv: longChat(30), HitSeq: 0}, ChatOptions{})
	m = update(t, m, windowSize)

	// day separator, blank line, then the hit header
	assert.Equal(t, 2, m.vp.YOffset)
	assert.False(t, m.vp.AtBottom())
}

func TestChatModel_SendDraft(t *testing.T) {
	now := time.Date(2024, time.May, 1, 18, 30, 45, 0, time.Local)

	t.Run("defaults the sender", func(t *testing.T) {
		m := newChatModel(ChatSource{Conv: longChat(3), HitSeq: -1}, ChatOptions{})
		m.now = func() time.Time { return now }
		m = update(t, m, windowSize, typeText("on my way"), tea.KeyMsg{Type: tea.KeyEnter})

		require.Len(t, m.drafts, 1)
		d := m.drafts[0]
		assert.Equal(t, "You", d.Sender)
		assert.Equal(t, "on my way", d.Text)
		assert.Equal(t, time.Date(2024, time.May, 1, 18, 30, 0, 0, parse.WallZone), d.Timestamp)
		assert.False(t, d.IsSystem)
		assert.Equal(t, "You", m.viewer)
		assert.Equal(t, "", m.composer.Value())

		assert.Equal(t, d, m.shown[len(m.shown)-1])
		assert.True(t, m.vp.AtBottom())
		// the parsed chat is untouched
		assert.Len(t, m.src.Conv.Messages, 4)
	})

	t.Run("signs with the viewer", func(t *testing.T) {
		m := newChatModel(ChatSource{Conv: longChat(3), HitSeq: -1}, ChatOptions{Viewer: "Bob"})
		m = update(t, m, windowSize, typeText("ok"), tea.KeyMsg{Type: tea.KeyEnter})
		require.Len(t, m.drafts, 1)
		assert.Equal(t, "Bob", m.drafts[0].Sender)
		assert.True(t, m.drafts[0].FromViewer(m.viewer))
	})

	t.Run("ignores blank input", func(t *testing.T) {
		m := newChatModel(ChatSource{Conv: longChat(3), HitSeq: -1}, ChatOptions{})
		m = update(t, m, windowSize, typeText("   "), tea.KeyMsg{Type: tea.KeyEnter})
		assert.Empty(t, m.drafts)
		assert.Equal(t, "", m.viewer)
	})
}

func TestChatModel_Filter(t *testing.T) {
	m := newChatModel(ChatSource{Conv: longChat(10), HitSeq: -1}, ChatOptions{})
	m = update(t, m, windowSize, tea.KeyMsg{Type: tea.KeyTab}, typeText("BREAD"))

	assert.Equal(t, focusFilter, m.focus)
	require.Len(t, m.shown, 1)
	assert.Equal(t, "bring bread", m.shown[0].Text)
	assert.Contains(t, m.statusBar(), "1 of 11 messages")

	// sending a draft clears the filter
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab}, typeText("thanks"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, focusComposer, m.focus)
	assert.Equal(t, "", m.filter.Value())
	assert.Len(t, m.shown, 12)
}

func TestChatModel_Copy(t *testing.T) {
	var copied string
	m := newChatModel(ChatSource{Conv: longChat(2), HitSeq: -1}, ChatOptions{})
	m.copyText = func(s string) error {
		copied = s
		return nil
	}
	m = update(t, m, windowSize, tea.KeyMsg{Type: tea.KeyCtrlY})

	assert.Equal(t, render.Transcript(m.shown), copied)
	assert.Equal(t, "Copied 3 messages", m.status)
}

func TestChatModel_ReloadKeepsDrafts(t *testing.T) {
	m := newChatModel(ChatSource{Conv: longChat(2), HitSeq: -1}, ChatOptions{Viewer: "Bob"})
	m = update(t, m, windowSize, typeText("draft"), tea.KeyMsg{Type: tea.KeyEnter})

	m = update(t, m, chatReloadedMsg{conv: longChat(4)})
	assert.Len(t, m.src.Conv.Messages, 5)
	assert.Len(t, m.shown, 6)
	assert.Equal(t, "draft", m.shown[5].Text)
	assert.Equal(t, "2 new messages", m.status)

	m = update(t, m, chatReloadedMsg{err: os.ErrNotExist})
	assert.Contains(t, m.status, "Reload failed")
	assert.Len(t, m.src.Conv.Messages, 5)
}

func TestChatModel_Header(t *testing.T) {
	m := newChatModel(ChatSource{Title: "Mum", Conv: parse.Parse("7/4/23, 9:05 AM - Mum: hi\n7/4/23, 9:06 AM - Me: hey")}, ChatOptions{})
	assert.Equal(t, "Mum  (Mum, Me)", m.header())

	m = newChatModel(ChatSource{Title: "Friends", Conv: parse.Parse("7/4/23, 9:05 AM - A: x\n7/4/23, 9:06 AM - B: y\n7/4/23, 9:07 AM - C: z")}, ChatOptions{})
	assert.Equal(t, "Friends  (group, 3 participants)", m.header())
}

func TestWaitForChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "WhatsApp Chat with Mum.txt")
	require.NoError(t, os.WriteFile(path, []byte("7/4/23, 9:05 AM - Mum: hi\n"), 0o644))

	w, err := watchFile(path)
	require.NoError(t, err)
	defer w.Close()

	got := make(chan tea.Msg, 1)
	go func() { got <- waitForChange(w, path)() }()

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("7/4/23, 9:05 AM - Mum: hi\n7/4/23, 9:06 AM - Mum: there\n"), 0o644))

	select {
	case msg := <-got:
		assert.IsType(t, fileChangedMsg{}, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event")
	}

	reloaded := reloadCmd(path)().(chatReloadedMsg)
	require.NoError(t, reloaded.err)
	assert.Len(t, reloaded.conv.Messages, 2)
}
