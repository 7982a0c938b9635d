package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Markers substituted for placeholders of media left out of an export.
const (
	MediaOmittedMarker   = "📎 Media omitted"
	StickerOmittedMarker = "🏷 Sticker omitted"
)

// grammar is one recognized start-line layout. Every pattern captures, in
// order: first date field, second date field, year, hour, minute,
// optional AM/PM marker and the rest of the line.
type grammar struct {
	name string
	re   *regexp.Regexp
}

// ws also admits the no-break spaces exporters put before AM/PM.
const ws = `[\s\x{00A0}\x{202F}]`

const dateTime = `(\d{1,2})[/-](\d{1,2})[/-](\d{2,4}),?` + ws + `+(\d{1,2}):(\d{2})(?:` + ws + `*((?i:[ap]m)))?`

// grammars are tried in order; the first match wins.
var grammars = []grammar{
	// 12/31/23, 10:22 PM - Sender: Message
	{name: "inline-dash", re: regexp.MustCompile(`^` + dateTime + ws + `?[-–—]` + ws + `?(.*)$`)},
	// [12/31/23, 10:22 PM] Sender: Message
	{name: "bracketed", re: regexp.MustCompile(`^\[` + dateTime + `\]\s(.*)$`)},
}

var senderRe = regexp.MustCompile(`^([^:]+):\s(.*)$`)

type placeholder struct {
	re     *regexp.Regexp
	marker string
}

var placeholders = []placeholder{
	{re: regexp.MustCompile(`(?i)<media omitted>`), marker: MediaOmittedMarker},
	{re: regexp.MustCompile(`(?i)<sticker omitted>`), marker: StickerOmittedMarker},
}

// systemPhrases mark event lines that carry no sender. Matched as
// lower-case substrings.
var systemPhrases = []string{
	"messages and calls are end-to-end encrypted",
	"security code changed",
	"you created group",
	"created group",
	"you were added",
	"you added",
	"you removed",
	"you left",
	"you changed this group's icon",
	"deleted this group's icon",
	"you changed the subject",
	"changed the subject",
	"changed the group description",
	"joined using this group's invite link",
	"missed voice call",
	"missed video call",
	"was added",
	"was removed",
	"added",
	"removed",
	"left",
}

// match extracts the timestamp and the remainder of a start line.
func (g grammar) match(line string) (time.Time, string, bool) {
	m := g.re.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, "", false
	}
	first, _ := strconv.Atoi(m[1])
	second, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])

	// No locale tag in the export: a first field above 12 cannot be a
	// month, otherwise month-first is assumed. 03/04/23 stays March 4.
	month, day := first, second
	if month > 12 {
		month, day = day, month
	}
	if year < 100 {
		year += 2000
	}
	switch strings.ToUpper(m[6]) {
	case "PM":
		if hour < 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}

	ts := time.Date(year, time.Month(month), day, hour, minute, 0, 0, WallZone)
	return ts, m[7], true
}

// parseStartLine returns the message begun by line, or false when line
// matches none of the grammars.
func parseStartLine(line string) (Message, bool) {
	for _, g := range grammars {
		ts, rest, ok := g.match(line)
		if !ok {
			continue
		}
		msg := Message{Timestamp: ts, Text: rest}
		if sm := senderRe.FindStringSubmatch(rest); sm != nil {
			msg.Sender = strings.TrimSpace(sm[1])
			msg.Text = sm[2]
		}
		msg.Text = normalizeMedia(msg.Text)
		msg.IsSystem = msg.Sender == "" && isSystemLine(rest)
		return msg, true
	}
	return Message{}, false
}

func normalizeMedia(text string) string {
	for _, p := range placeholders {
		text = p.re.ReplaceAllLiteralString(text, p.marker)
	}
	return text
}

func isSystemLine(content string) bool {
	lower := strings.ToLower(content)
	for _, p := range systemPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
