package parse

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, WallZone)
}

func TestParseStartLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Message
	}{
		{
			name: "inline dash with AM",
			line: "7/4/23, 9:05 AM - Alice: Hello",
			want: Message{Timestamp: at(2023, time.July, 4, 9, 5), Sender: "Alice", Text: "Hello"},
		},
		{
			name: "bracketed with PM",
			line: "[7/4/23, 9:05 PM] Bob: Hi",
			want: Message{Timestamp: at(2023, time.July, 4, 21, 5), Sender: "Bob", Text: "Hi"},
		},
		{
			name: "first field above 12 is the day",
			line: "25/12/23, 14:30 - Carol: Merry Christmas",
			want: Message{Timestamp: at(2023, time.December, 25, 14, 30), Sender: "Carol", Text: "Merry Christmas"},
		},
		{
			name: "ambiguous fields read month first",
			line: "03/04/23, 08:00 - Dan: hey",
			want: Message{Timestamp: at(2023, time.March, 4, 8, 0), Sender: "Dan", Text: "hey"},
		},
		{
			name: "four digit year",
			line: "1/2/2024, 10:00 - Eve: new year",
			want: Message{Timestamp: at(2024, time.January, 2, 10, 0), Sender: "Eve", Text: "new year"},
		},
		{
			name: "12 AM is midnight",
			line: "1/2/24, 12:15 AM - Eve: late",
			want: Message{Timestamp: at(2024, time.January, 2, 0, 15), Sender: "Eve", Text: "late"},
		},
		{
			name: "12 PM is noon",
			line: "1/2/24, 12:15 PM - Eve: lunch",
			want: Message{Timestamp: at(2024, time.January, 2, 12, 15), Sender: "Eve", Text: "lunch"},
		},
		{
			name: "lower case marker after narrow no-break space",
			line: "1/2/24, 3:07\u202fpm - Eve: tea",
			want: Message{Timestamp: at(2024, time.January, 2, 15, 7), Sender: "Eve", Text: "tea"},
		},
		{
			name: "en dash",
			line: "1/2/24, 3:07 PM – Eve: dash",
			want: Message{Timestamp: at(2024, time.January, 2, 15, 7), Sender: "Eve", Text: "dash"},
		},
		{
			name: "em dash without spaces",
			line: "1/2/24, 3:07 PM—Eve: tight",
			want: Message{Timestamp: at(2024, time.January, 2, 15, 7), Sender: "Eve", Text: "tight"},
		},
		{
			name: "dashes as date separator",
			line: "1-2-24, 7:00 - Eve: dashes",
			want: Message{Timestamp: at(2024, time.January, 2, 7, 0), Sender: "Eve", Text: "dashes"},
		},
		{
			name: "sender name is trimmed and body keeps colons",
			line: "[1/2/24, 7:00 AM] Frank Ocean : time: 7:00",
			want: Message{Timestamp: at(2024, time.January, 2, 7, 0), Sender: "Frank Ocean", Text: "time: 7:00"},
		},
		{
			name: "encryption notice is a system line",
			line: "1/2/24, 7:00 AM - Messages and calls are end-to-end encrypted. No one outside of this chat can read them.",
			want: Message{
				Timestamp: at(2024, time.January, 2, 7, 0),
				Text:      "Messages and calls are end-to-end encrypted. No one outside of this chat can read them.",
				IsSystem:  true,
			},
		},
		{
			name: "membership change is a system line",
			line: "1/2/24, 7:01 AM - Alice added Bob",
			want: Message{Timestamp: at(2024, time.January, 2, 7, 1), Text: "Alice added Bob", IsSystem: true},
		},
		{
			name: "system phrase matched case-insensitively",
			line: "1/2/24, 7:02 AM - MISSED VOICE CALL",
			want: Message{Timestamp: at(2024, time.January, 2, 7, 2), Text: "MISSED VOICE CALL", IsSystem: true},
		},
		{
			name: "unknown sender-less line is not a system line",
			line: "1/2/24, 7:03 AM - something odd happened",
			want: Message{Timestamp: at(2024, time.January, 2, 7, 3), Text: "something odd happened"},
		},
		{
			name: "system phrase inside a sent message keeps the sender",
			line: "1/2/24, 7:04 AM - Alice: I left early",
			want: Message{Timestamp: at(2024, time.January, 2, 7, 4), Sender: "Alice", Text: "I left early"},
		},
		{
			name: "media placeholder is normalized",
			line: "1/2/24, 7:05 AM - Alice: <media OMITTED>",
			want: Message{Timestamp: at(2024, time.January, 2, 7, 5), Sender: "Alice", Text: MediaOmittedMarker},
		},
		{
			name: "sticker placeholder is normalized",
			line: "1/2/24, 7:06 AM - Alice: <Sticker omitted>",
			want: Message{Timestamp: at(2024, time.January, 2, 7, 6), Sender: "Alice", Text: StickerOmittedMarker},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseStartLine(tt.line)
			require.True(t, ok)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseStartLine mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseStartLine_NoMatch(t *testing.T) {
	for _, line := range []string{
		"just some text",
		"7/4/23 9:05 AM Alice: missing dash",
		"[7/4/23, 9:05 AM]Bob: no space after bracket",
		"7/4/23, 9:5 AM - Alice: one digit minute",
		"7/4/23, 9:05 XM - Alice: bad marker",
		"",
	} {
		_, ok := parseStartLine(line)
		assert.False(t, ok, "line %q", line)
	}
}

func TestParse_Continuation(t *testing.T) {
	input := "7/4/23, 9:05 AM - Alice: first line\n" +
		"second line\n" +
		"<Media omitted> in a caption\n" +
		"7/4/23, 9:06 AM - Bob: reply"

	conv := Parse(input)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "first line\nsecond line\n"+MediaOmittedMarker+" in a caption", conv.Messages[0].Text)
	assert.Equal(t, "reply", conv.Messages[1].Text)
	assert.Equal(t, 1, conv.Messages[0].Line)
	assert.Equal(t, 4, conv.Messages[1].Line)
}

func TestParse_LeadingNonStartLinesDropped(t *testing.T) {
	conv := Parse("header text\nmore header\n7/4/23, 9:05 AM - Alice: hi")
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "hi", conv.Messages[0].Text)
}

func TestParse_BlankLinesIgnored(t *testing.T) {
	conv := Parse("7/4/23, 9:05 AM - Alice: one\n\n   \ntwo\n\n7/4/23, 9:06 AM - Bob: three\n")
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "one\ntwo", conv.Messages[0].Text)
}

func TestParse_LineEndingsAndMarks(t *testing.T) {
	input := "\u200e7/4/23, 9:05 AM - Alice: one  \r\n" +
		"wrapped\u200e\u200f\r" +
		"[7/4/23, 9:06 AM] Bob: \u200e<Media omitted>\r\n"

	conv := Parse(input)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "one\nwrapped", conv.Messages[0].Text)
	assert.Equal(t, "Bob", conv.Messages[1].Sender)
	assert.Equal(t, MediaOmittedMarker, conv.Messages[1].Text)
	assert.Equal(t, 3, conv.Messages[1].Line)

	t.Run("right-to-left marks", func(t *testing.T) {
		conv := Parse("\u200f[25/12/23, 14:30] \u200fCarol\u200f: \u200fhi\u200f\n\u200fthere")
		require.Len(t, conv.Messages, 1)
		m := conv.Messages[0]
		assert.Equal(t, "Carol", m.Sender)
		assert.Equal(t, "hi\nthere", m.Text)
		assert.Equal(t, at(2023, time.December, 25, 14, 30), m.Timestamp)
	})
}

func TestParse_SortedStable(t *testing.T) {
	input := strings.Join([]string{
		"7/4/23, 9:10 AM - Alice: c",
		"7/4/23, 9:05 AM - Bob: a",
		"7/4/23, 9:07 AM - Alice: b1",
		"7/4/23, 9:07 AM - Bob: b2",
		"7/4/23, 9:07 AM - Alice: b3",
	}, "\n")

	conv := Parse(input)
	var texts []string
	for i, m := range conv.Messages {
		texts = append(texts, m.Text)
		if i > 0 {
			assert.False(t, m.Timestamp.Before(conv.Messages[i-1].Timestamp))
		}
	}
	assert.Equal(t, []string{"a", "b1", "b2", "b3", "c"}, texts)
}

func TestParse_IsGroup(t *testing.T) {
	tests := []struct {
		name    string
		senders []string
		want    bool
	}{
		{"one sender", []string{"Alice", "Alice"}, false},
		{"two senders", []string{"Alice", "Bob", "Alice"}, false},
		{"three senders", []string{"Alice", "Bob", "Carol"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lines []string
			for _, s := range tt.senders {
				lines = append(lines, "7/4/23, 9:05 AM - "+s+": hi")
			}
			// system lines never count as senders
			lines = append(lines, "7/4/23, 9:06 AM - Dave left")
			assert.Equal(t, tt.want, Parse(strings.Join(lines, "\n")).IsGroup)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	for _, input := range []string{"", "\n\n", "no timestamps here\nat all"} {
		conv := Parse(input)
		assert.Empty(t, conv.Messages)
		assert.False(t, conv.IsGroup)
	}
}

func TestParse_Deterministic(t *testing.T) {
	input := "25/12/23, 14:30 - Carol: x\n7/4/23, 9:05 AM - Alice: y\ncont\n[7/4/23, 9:05 PM] Bob: z"
	if diff := cmp.Diff(Parse(input), Parse(input)); diff != "" {
		t.Errorf("re-parse differs (-first +second):\n%s", diff)
	}
}

func TestParseReader(t *testing.T) {
	conv, err := ParseReader(strings.NewReader("7/4/23, 9:05 AM - Alice: Hello\n"))
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "Alice", conv.Messages[0].Sender)
}

func TestParseReader_ReadError(t *testing.T) {
	_, err := ParseReader(iotest.ErrReader(errors.New("disk gone")))
	assert.ErrorContains(t, err, "disk gone")
}

func TestParse_DSTGapKeepsWallClock(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("no tz database")
	}
	saved := time.Local
	time.Local = loc
	t.Cleanup(func() { time.Local = saved })

	// 2:30 AM does not exist in New York on that day
	conv := Parse("3/12/23, 2:30 AM - Alice: first")
	require.Len(t, conv.Messages, 1)
	ts := conv.Messages[0].Timestamp
	assert.Equal(t, 2, ts.Hour())
	assert.Equal(t, 30, ts.Minute())
	assert.Equal(t, "2:30 AM", ts.Format("3:04 PM"))
}

func TestWallClock(t *testing.T) {
	loc := time.FixedZone("UTC+5:30", 5*3600+1800)
	got := WallClock(time.Date(2024, time.May, 1, 18, 30, 0, 0, loc))
	assert.Equal(t, at(2024, time.May, 1, 18, 30), got)
}

func TestSameName(t *testing.T) {
	assert.True(t, SameName("Alice", "alice"))
	assert.True(t, SameName("  Alice ", "ALICE"))
	assert.False(t, SameName("Alice", "Alicia"))
	assert.False(t, SameName("", ""))
	assert.False(t, SameName("Alice", "  "))

	m := Message{Sender: "Bob"}
	assert.True(t, m.FromViewer(" bob"))
	assert.False(t, Message{}.FromViewer("bob"))
}

func TestConversationAppend(t *testing.T) {
	conv := Parse("7/4/23, 9:05 AM - Alice: a\n7/4/23, 9:06 AM - Bob: b")
	conv.Append(Message{Timestamp: time.Now(), Sender: "Carol", Text: "draft"})
	assert.Len(t, conv.Messages, 3)
	assert.False(t, conv.IsGroup)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, conv.Senders())
}

func TestParseFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "family")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "WhatsApp Chat with Mum.txt")
	content := "7/4/23, 9:00 AM - Messages and calls are end-to-end encrypted.\n" +
		"7/4/23, 9:05 AM - Mum: Dinner at 7?\nbring bread\n" +
		"7/5/23, 6:00 PM - Me: on my way\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	res, err := ParseFile(path, root)
	require.NoError(t, err)

	assert.Equal(t, "wa:family/WhatsApp Chat with Mum", res.Meta.ChatKey)
	assert.Equal(t, "Mum", res.Meta.Title)
	assert.Equal(t, []string{"Mum", "Me"}, res.Meta.Participants)
	assert.False(t, res.Meta.IsGroup)
	assert.Equal(t, "Dinner at 7? bring bread", res.Meta.Summary)
	assert.Equal(t, at(2023, time.July, 4, 9, 0), res.Meta.CreatedAt)
	assert.Equal(t, at(2023, time.July, 5, 18, 0), res.Meta.UpdatedAt)
	assert.Equal(t, int64(len(content)), res.Meta.Size)
	assert.Len(t, res.Conversation.Messages, 3)
}

func TestParseFile_OversizedLine(t *testing.T) {
	long := strings.Repeat("x", 11*1024*1024)
	path := filepath.Join(t.TempDir(), "WhatsApp Chat with Bob.txt")
	content := "7/4/23, 9:05 AM - Alice: start\n" + long + "\n7/4/23, 9:06 AM - Bob: after\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	res, err := ParseFile(path, "")
	require.NoError(t, err)
	require.Len(t, res.Conversation.Messages, 2)
	assert.Equal(t, "start\n"+long, res.Conversation.Messages[0].Text)
	assert.Equal(t, "after", res.Conversation.Messages[1].Text)
	assert.Equal(t, 3, res.Conversation.Messages[1].Line)
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.txt"), "")
	assert.Error(t, err)
}

func TestTitleFromPath(t *testing.T) {
	assert.Equal(t, "Book Club", TitleFromPath("/x/WhatsApp Chat with Book Club.txt"))
	assert.Equal(t, "Team", TitleFromPath("WhatsApp Chat - Team.txt"))
	assert.Equal(t, "_chat", TitleFromPath("/exports/_chat.txt"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	// "é" is two bytes; never cut inside it
	assert.Equal(t, "a", truncate("aé", 2))
}
