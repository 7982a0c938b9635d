package parse

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// Parse turns the text of a chat export into a conversation. It never
// fails: lines it cannot place are folded into the previous message or
// dropped.
func Parse(text string) Conversation {
	// a strings.Reader never fails
	conv, _ := parseLines(strings.NewReader(text))
	return conv
}

// ParseReader is Parse over a stream. Only read errors are returned.
func ParseReader(r io.Reader) (Conversation, error) {
	conv, err := parseLines(r)
	if err != nil {
		return Conversation{}, fmt.Errorf("read export: %w", err)
	}
	return conv, nil
}

func parseLines(r io.Reader) (Conversation, error) {
	var msgs []Message
	lineNum := 0
	err := eachLine(r, func(raw string) {
		lineNum++
		line := normalizeLine(raw)
		if line == "" {
			return
		}

		if msg, ok := parseStartLine(line); ok {
			msg.Line = lineNum
			msgs = append(msgs, msg)
			return
		}

		// continuation of the previous message
		if len(msgs) > 0 {
			last := &msgs[len(msgs)-1]
			last.Text += "\n" + normalizeMedia(line)
		}
	})
	if err != nil {
		return Conversation{}, err
	}
	return Finalize(msgs), nil
}

// Finalize orders messages by time, keeping input order for equal
// timestamps, and derives the group flag. The slice is sorted in place.
func Finalize(msgs []Message) Conversation {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return Conversation{
		Messages: msgs,
		IsGroup:  len(senders(msgs)) > 2,
	}
}
