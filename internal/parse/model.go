package parse

import (
	"strings"
	"time"
)

// WallZone holds message timestamps. Exports carry a bare wall clock, so
// the fields are kept as written; a local zone would move times that fall
// in a DST gap.
var WallZone = time.UTC

// WallClock re-expresses the wall-clock reading of t in WallZone.
func WallClock(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), WallZone)
}

// Message is one entry of a chat timeline.
type Message struct {
	Timestamp time.Time // wall clock in WallZone, minute precision
	Sender    string    // empty for system/meta lines
	Text      string    // may contain "\n" for multi-line bodies
	IsSystem  bool
	Line      int // 1-based line of the start line in the source text
}

// FromViewer reports whether the message was sent by viewer.
func (m Message) FromViewer(viewer string) bool {
	return SameName(m.Sender, viewer)
}

// SameName compares two display names ignoring case and surrounding
// whitespace. An empty name never matches.
func SameName(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}

// Conversation is the finalized output of a parse.
type Conversation struct {
	Messages []Message
	IsGroup  bool
}

// Senders returns the distinct non-empty senders in order of first appearance.
func (c Conversation) Senders() []string {
	return senders(c.Messages)
}

// Append adds a locally authored message to the end of the timeline.
// The group flag is left as parsed.
func (c *Conversation) Append(m Message) {
	c.Messages = append(c.Messages, m)
}

type ChatMeta struct {
	ChatKey      string
	Title        string
	FilePath     string
	Participants []string
	IsGroup      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Summary      string
	Mtime        time.Time
	Size         int64
}

type ParseResult struct {
	Meta         ChatMeta
	Conversation Conversation
}

func senders(msgs []Message) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range msgs {
		if m.Sender == "" {
			continue
		}
		if _, ok := seen[m.Sender]; ok {
			continue
		}
		seen[m.Sender] = struct{}{}
		out = append(out, m.Sender)
	}
	return out
}
