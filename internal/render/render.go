package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Zuo-Peng/wa-chat-viewer/internal/index"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/parse"
	"github.com/mattn/go-runewidth"
)

const (
	colorReset   = "\033[0m"
	colorSender  = "\033[1;36m" // bold cyan
	colorSent    = "\033[32m"   // green
	colorTick    = "\033[1;34m" // bold blue
	colorDim     = "\033[2m"
	colorHit     = "\033[43m"   // yellow background
	colorBoldRed = "\033[1;31m" // bold red for keyword highlights
)

// DeliveredMark follows the time of messages sent by the viewer.
const DeliveredMark = "✓✓"

type Options struct {
	Viewer  string    // display name whose messages render as sent
	Title   string    // optional header line
	HitSeq  int       // index of the message to highlight, -1 for none
	Context int       // messages before/after hit to show
	Width   int       // wrap/align width (0 = no wrap)
	Query   string    // search query for keyword highlighting
	Plain   bool      // no ANSI escapes
	Now     time.Time // reference for Today/Yesterday, zero = time.Now()
}

type palette struct {
	reset, sender, sent, tick, dim, hit, keyword string
}

func newPalette(plain bool) palette {
	if plain {
		return palette{}
	}
	return palette{
		reset:   colorReset,
		sender:  colorSender,
		sent:    colorSent,
		tick:    colorTick,
		dim:     colorDim,
		hit:     colorHit,
		keyword: colorBoldRed,
	}
}

// fts5Operators are FTS5 operators that should not be highlighted as keywords.
var fts5Operators = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "NEAR": true,
	"and": true, "or": true, "not": true, "near": true,
}

// highlightKeywords wraps case-insensitive matches of query terms in on/off codes.
func highlightKeywords(text, query, on, off string) string {
	if query == "" || on == "" {
		return text
	}
	terms := strings.Fields(query)
	var filtered []string
	for _, t := range terms {
		if !fts5Operators[t] {
			filtered = append(filtered, strings.Trim(t, `"*`))
		}
	}
	for _, term := range filtered {
		if term == "" {
			continue
		}
		i := 0
		for i < len(text) {
			start, end := indexFold(text[i:], term)
			if start < 0 {
				break
			}
			start, end = i+start, i+end
			replacement := on + text[start:end] + off
			text = text[:start] + replacement + text[end:]
			i = start + len(replacement)
		}
	}
	return text
}

// indexFold finds the first case-insensitive match of term in s and returns
// its byte bounds in s, or -1, -1. Matching is rune by rune so the bounds
// stay valid when folding changes a rune's encoded length.
func indexFold(s, term string) (int, int) {
	n := utf8.RuneCountInString(term)
	for i := 0; i < len(s); {
		j := i
		for k := 0; k < n && j < len(s); k++ {
			_, size := utf8.DecodeRuneInString(s[j:])
			j += size
		}
		if strings.EqualFold(s[i:j], term) {
			return i, j
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1, -1
}

// skipANSI returns the end of the escape sequence starting at i, or i.
func skipANSI(line string, i int) int {
	if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
		j := i + 2
		for j < len(line) && line[j] != 'm' {
			j++
		}
		if j < len(line) {
			j++ // include 'm'
		}
		return j
	}
	return i
}

// visibleWidth measures line in terminal columns, ignoring ANSI escapes.
func visibleWidth(line string) int {
	w := 0
	for i := 0; i < len(line); {
		if j := skipANSI(line, i); j > i {
			i = j
			continue
		}
		r, size := utf8.DecodeRuneInString(line[i:])
		w += runewidth.RuneWidth(r)
		i += size
	}
	return w
}

// wrapLine breaks a single line into multiple lines that fit within maxWidth
// visible columns, correctly skipping ANSI escape sequences when measuring width.
func wrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	i := 0
	for i < len(line) {
		if j := skipANSI(line, i); j > i {
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)

		if visW+rw > maxWidth && visW > 0 {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}

		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}

	if len(result) == 0 {
		return []string{""}
	}
	return result
}

// DayLabel names the calendar day of t relative to now.
func DayLabel(t, now time.Time) string {
	y, m, d := t.Date()
	ny, nm, nd := now.Date()
	if y == ny && m == nm && d == nd {
		return "Today"
	}
	py, pm, pd := now.AddDate(0, 0, -1).Date()
	if y == py && m == pm && d == pd {
		return "Yesterday"
	}
	if y != ny {
		return t.Format("January 2, 2006")
	}
	return t.Format("January 2")
}

// TimeLabel formats the wall-clock time of a message.
func TimeLabel(t time.Time) string {
	return t.Format("3:04 PM")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// writer accumulates output lines and tracks their count.
type writer struct {
	b     strings.Builder
	lines int
	width int
}

func (w *writer) line(s string) {
	for _, wl := range wrapLine(s, w.width) {
		w.b.WriteString(wl)
		w.b.WriteString("\n")
		w.lines++
	}
}

// centered writes s in the middle of the line when a width is known.
func (w *writer) centered(s string) {
	if w.width > 0 {
		if pad := (w.width - visibleWidth(s)) / 2; pad > 0 {
			s = strings.Repeat(" ", pad) + s
		}
	}
	w.line(s)
}

// right writes s flush with the right edge when a width is known.
func (w *writer) right(s string) {
	if w.width > 0 {
		if pad := w.width - visibleWidth(s); pad > 0 {
			s = strings.Repeat(" ", pad) + s
		}
	}
	w.line(s)
}

type window struct {
	msgs    []parse.Message
	isGroup bool
	hitIdx  int
	before  int
	after   int
}

// Render draws a conversation as text. It returns the output and the
// 0-based line of the hit message header (-1 if there is none).
func Render(conv parse.Conversation, opts Options) (string, int) {
	win := window{msgs: conv.Messages, isGroup: conv.IsGroup, hitIdx: -1}
	if opts.HitSeq >= 0 && opts.HitSeq < len(conv.Messages) {
		win.hitIdx = opts.HitSeq
		if opts.Context > 0 {
			start := max(opts.HitSeq-opts.Context, 0)
			end := min(opts.HitSeq+opts.Context+1, len(conv.Messages))
			win.msgs = conv.Messages[start:end]
			win.hitIdx = opts.HitSeq - start
			win.before = start
			win.after = len(conv.Messages) - end
		}
	}
	return renderWindow(win, opts)
}

// RenderChat renders a cached chat, windowed around opts.HitSeq.
func RenderChat(db *index.DB, chatKey string, opts Options) (string, int, error) {
	if opts.Context == 0 {
		opts.Context = 10
	}
	if opts.Context < 0 {
		opts.Context = 1000000 // no limit
	}

	chat, err := db.GetChatByKey(chatKey)
	if err != nil {
		return "", -1, fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		return "", -1, fmt.Errorf("chat not found: %s", chatKey)
	}

	rows, hitIdx, startPos, totalCount, err := db.GetMessagesWindow(chatKey, opts.HitSeq, opts.Context)
	if err != nil {
		return "", -1, fmt.Errorf("get messages: %w", err)
	}

	if totalCount == 0 {
		return "(empty chat)", -1, nil
	}

	win := window{
		isGroup: chat.IsGroup,
		hitIdx:  hitIdx,
		before:  startPos,
		after:   totalCount - startPos - len(rows),
	}
	for _, r := range rows {
		win.msgs = append(win.msgs, r.Message())
	}
	if opts.Title == "" {
		opts.Title = ChatTitle(chat)
	}

	out, hitLine := renderWindow(win, opts)
	return out, hitLine, nil
}

// ChatTitle is the header shown above a cached chat.
func ChatTitle(chat *index.ChatRow) string {
	kind := "chat"
	if chat.IsGroup {
		kind = "group"
	}
	return fmt.Sprintf("%s [%s, %d participants]", chat.Title, kind, len(chat.Participants))
}

func renderWindow(win window, opts Options) (string, int) {
	p := newPalette(opts.Plain)
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = parse.WallClock(now)

	w := &writer{width: opts.Width}
	bodyWidth := 0
	if opts.Width > 0 {
		bodyWidth = max(opts.Width*3/4, 10)
	}
	hitLine := -1

	if opts.Title != "" {
		w.line(fmt.Sprintf("%s--- %s ---%s", p.dim, opts.Title, p.reset))
	}
	if win.before > 0 {
		w.line(fmt.Sprintf("%s... (%d messages before) ...%s", p.dim, win.before, p.reset))
	}

	var lastDay time.Time
	for i, m := range win.msgs {
		if i == 0 || !sameDay(m.Timestamp, lastDay) {
			w.centered(fmt.Sprintf("%s[ %s ]%s", p.dim, DayLabel(m.Timestamp, now), p.reset))
			w.line("")
			lastDay = m.Timestamp
		}

		isHit := i == win.hitIdx
		if isHit {
			hitLine = w.lines
		}

		if m.IsSystem {
			text := highlightKeywords(m.Text, opts.Query, p.keyword, p.reset+p.dim)
			for _, l := range strings.Split(text, "\n") {
				if isHit {
					w.centered(fmt.Sprintf("%s>> %s <<%s", p.hit, l, p.reset))
				} else {
					w.centered(fmt.Sprintf("%s[ %s ]%s", p.dim, l, p.reset))
				}
			}
			w.line("")
			continue
		}

		sent := m.FromViewer(opts.Viewer)

		var header string
		switch {
		case sent:
			header = fmt.Sprintf("%s%s%s %s%s%s", p.dim, TimeLabel(m.Timestamp), p.reset, p.tick, DeliveredMark, p.reset)
		case win.isGroup && m.Sender != "":
			header = fmt.Sprintf("%s%s%s %s%s%s", p.sender, m.Sender, p.reset, p.dim, TimeLabel(m.Timestamp), p.reset)
		default:
			header = fmt.Sprintf("%s%s%s", p.dim, TimeLabel(m.Timestamp), p.reset)
		}
		if isHit {
			header = fmt.Sprintf("%s>>%s %s", p.hit, p.reset, header)
		}

		text := highlightKeywords(m.Text, opts.Query, p.keyword, p.reset)
		if sent {
			w.right(header)
			for _, l := range strings.Split(text, "\n") {
				for _, wl := range wrapLine(l, bodyWidth) {
					w.right(p.sent + wl + p.reset)
				}
			}
		} else {
			w.line(header)
			for _, l := range strings.Split(text, "\n") {
				for _, wl := range wrapLine(l, bodyWidth) {
					w.line("  " + wl)
				}
			}
		}
		w.line("") // blank line after message
	}

	if win.after > 0 {
		w.line(fmt.Sprintf("%s... (%d messages after) ...%s", p.dim, win.after, p.reset))
	}

	return w.b.String(), hitLine
}

// Transcript renders messages as plain export-style lines, one
// "date, time - sender: text" entry per message.
func Transcript(msgs []parse.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Timestamp.Format("1/2/06, 3:04 PM"))
		b.WriteString(" - ")
		if m.Sender != "" {
			b.WriteString(m.Sender)
			b.WriteString(": ")
		}
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	return b.String()
}
