package search

import (
	"strings"

	"github.com/Zuo-Peng/wa-chat-viewer/internal/parse"
)

// FilterMessages keeps the messages whose text or sender contains query,
// ignoring case. A blank query returns msgs unchanged.
func FilterMessages(msgs []parse.Message, query string) []parse.Message {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return msgs
	}
	var out []parse.Message
	for _, m := range msgs {
		content := m.Text + " " + m.Sender
		if strings.Contains(strings.ToLower(content), q) {
			out = append(out, m)
		}
	}
	return out
}
