package parse

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const maxSummary = 200

// title prefixes the exporter puts in front of the chat name
var titlePrefixes = []string{
	"WhatsApp Chat with ",
	"WhatsApp Chat - ",
}

// ParseFile parses an export file and derives its chat metadata. The chat
// key is the path relative to root without the .txt extension.
func ParseFile(filePath, root string) (*ParseResult, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	conv, err := ParseReader(f)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Meta: ChatMeta{
			ChatKey:      KeyForPath(filePath, root),
			Title:        TitleFromPath(filePath),
			FilePath:     filePath,
			Participants: conv.Senders(),
			IsGroup:      conv.IsGroup,
			Mtime:        info.ModTime(),
			Size:         info.Size(),
		},
		Conversation: conv,
	}

	if n := len(conv.Messages); n > 0 {
		result.Meta.CreatedAt = conv.Messages[0].Timestamp
		result.Meta.UpdatedAt = conv.Messages[n-1].Timestamp
	}

	for _, m := range conv.Messages {
		if m.IsSystem {
			continue
		}
		result.Meta.Summary = strings.ReplaceAll(truncate(m.Text, maxSummary), "\n", " ")
		break
	}

	return result, nil
}

// KeyForPath builds the chat key of an export: "wa:" and the path relative
// to root without the .txt extension. Files outside root use their base name.
func KeyForPath(filePath, root string) string {
	rel := filepath.Base(filePath)
	if root != "" {
		if r, err := filepath.Rel(root, filePath); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		}
	}
	return "wa:" + strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
}

// TitleFromPath derives the chat name from the export file name.
func TitleFromPath(filePath string) string {
	name := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	for _, p := range titlePrefixes {
		if t, ok := strings.CutPrefix(name, p); ok && t != "" {
			return t
		}
	}
	return name
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
