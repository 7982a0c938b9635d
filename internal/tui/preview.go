package tui

import (
	"github.com/Zuo-Peng/wa-chat-viewer/internal/index"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/render"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/search"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// previewRenderedMsg is sent when an async preview render completes.
type previewRenderedMsg struct {
	chatKey string
	seq     int
	content string
	hitLine int
	err     error
}

// loadPreviewCmd returns a tea.Cmd that renders the chat preview async.
func loadPreviewCmd(db *index.DB, r search.Result, query, viewer string, width int) tea.Cmd {
	return func() tea.Msg {
		content, hitLine, err := render.RenderChat(db, r.ChatKey, render.Options{
			Viewer:  viewer,
			HitSeq:  r.Seq,
			Context: -1,
			Width:   width,
			Query:   query,
		})
		return previewRenderedMsg{
			chatKey: r.ChatKey,
			seq:     r.Seq,
			content: content,
			hitLine: hitLine,
			err:     err,
		}
	}
}

// newViewport creates a new viewport model with the given dimensions.
func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.Style = stylePanelBorder
	return vp
}
