package search

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/Zuo-Peng/wa-chat-viewer/internal/index"
)

type Result struct {
	ChatKey   string
	Seq       int // -1 when the result is a whole chat
	UpdatedAt string
	Title     string
	Summary   string
	Snippet   string
	Sender    string
	IsGroup   bool
	Rank      float64
}

type Options struct {
	Query     string
	Sender    string // "" = all
	Since     string // "" = no filter, e.g. "2024-01-01"
	GroupOnly bool
	Limit     int
}

// containsCJK returns true if the string contains any CJK Unified Ideograph.
func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// makeSnippet extracts a snippet around the first occurrence of query in text.
func makeSnippet(text, query string, contextChars int) string {
	lower := strings.ToLower(text)
	qLower := strings.ToLower(query)
	idx := strings.Index(lower, qLower)
	if idx < 0 || len(lower) != len(text) {
		// no match (or case folding changed byte offsets), return head
		if len([]rune(text)) > contextChars*2 {
			return string([]rune(text)[:contextChars*2]) + "..."
		}
		return text
	}
	runes := []rune(text)
	qRunes := []rune(query)
	// find rune position of idx
	runePos := len([]rune(text[:idx]))
	start := max(runePos-contextChars, 0)
	end := min(runePos+len(qRunes)+contextChars, len(runes))
	prefix := ""
	suffix := ""
	if start > 0 {
		prefix = "..."
	}
	if end < len(runes) {
		suffix = "..."
	}
	// wrap the matched part with markers
	snippet := string(runes[start:runePos]) +
		">>>" + string(runes[runePos:runePos+len(qRunes)]) + "<<<" +
		string(runes[runePos+len(qRunes):end])
	return prefix + snippet + suffix
}

// Search runs a full-text query over all cached messages and returns the
// best hit per chat.
func Search(db *index.DB, opts Options) ([]Result, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	// Fetch more results before dedup so we still have enough after
	origLimit := opts.Limit
	opts.Limit = origLimit * 3

	var results []Result
	var err error
	if containsCJK(opts.Query) {
		results, err = searchLike(db, opts)
	} else {
		results, err = searchFTS(db, opts)
	}
	if err != nil {
		return nil, err
	}

	// Deduplicate: keep only the best-ranked result per chat
	seen := make(map[string]bool)
	var deduped []Result
	for _, r := range results {
		if seen[r.ChatKey] {
			continue
		}
		seen[r.ChatKey] = true
		deduped = append(deduped, r)
		if len(deduped) >= origLimit {
			break
		}
	}
	return deduped, nil
}

// filters builds the shared WHERE conditions for sender, since and group.
func filters(opts Options) ([]string, []any) {
	var conditions []string
	var args []any

	if opts.Sender != "" {
		conditions = append(conditions, "m.sender = ? COLLATE NOCASE")
		args = append(args, strings.TrimSpace(opts.Sender))
	}
	if opts.Since != "" {
		conditions = append(conditions, "m.ts >= ?")
		args = append(args, opts.Since)
	}
	if opts.GroupOnly {
		conditions = append(conditions, "c.is_group = 1")
	}
	return conditions, args
}

func searchFTS(db *index.DB, opts Options) ([]Result, error) {
	conditions := []string{"messages_fts MATCH ?"}
	args := []any{opts.Query}

	more, moreArgs := filters(opts)
	conditions = append(conditions, more...)
	args = append(args, moreArgs...)

	where := strings.Join(conditions, " AND ")

	query := fmt.Sprintf(`
		SELECT
			m.chat_key,
			m.seq,
			c.updated_at,
			c.title,
			c.summary,
			snippet(messages_fts, 0, '>>>','<<<', '...', 40) as snip,
			m.sender,
			c.is_group,
			bm25(messages_fts, 1.0, 0.5) as rank
		FROM messages_fts
		JOIN messages m ON messages_fts.rowid = m.rowid
		JOIN chats c ON m.chat_key = c.chat_key
		WHERE %s
		ORDER BY rank
		LIMIT ?
	`, where)

	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

func searchLike(db *index.DB, opts Options) ([]Result, error) {
	// LIKE match for CJK substring search
	conditions := []string{"m.text LIKE ?"}
	args := []any{"%" + opts.Query + "%"}

	more, moreArgs := filters(opts)
	conditions = append(conditions, more...)
	args = append(args, moreArgs...)

	where := strings.Join(conditions, " AND ")

	query := fmt.Sprintf(`
		SELECT
			m.chat_key,
			m.seq,
			c.updated_at,
			c.title,
			c.summary,
			m.text,
			m.sender,
			c.is_group
		FROM messages m
		JOIN chats c ON m.chat_key = c.chat_key
		WHERE %s
		ORDER BY m.ts DESC
		LIMIT ?
	`, where)

	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var fullText string
		if err := rows.Scan(
			&r.ChatKey, &r.Seq, &r.UpdatedAt,
			&r.Title, &r.Summary,
			&fullText, &r.Sender, &r.IsGroup,
		); err != nil {
			return nil, err
		}
		r.Snippet = makeSnippet(fullText, opts.Query, 30)
		results = append(results, r)
	}
	return results, rows.Err()
}

func scanResults(rows *sql.Rows) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(
			&r.ChatKey, &r.Seq, &r.UpdatedAt,
			&r.Title, &r.Summary,
			&r.Snippet, &r.Sender, &r.IsGroup, &r.Rank,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListAll returns every cached chat, most recent first. A non-empty
// opts.Query keeps only chats whose title or participants contain it.
func ListAll(db *index.DB, opts Options) ([]Result, error) {
	chats, err := db.ListChats()
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	q := strings.ToLower(strings.TrimSpace(opts.Query))
	var results []Result
	for _, c := range chats {
		if opts.GroupOnly && !c.IsGroup {
			continue
		}
		if opts.Since != "" && c.UpdatedAt < opts.Since {
			continue
		}
		who := strings.Join(c.Participants, ", ")
		if q != "" && !strings.Contains(strings.ToLower(c.Title+" "+who), q) {
			continue
		}
		results = append(results, Result{
			ChatKey:   c.ChatKey,
			Seq:       -1,
			UpdatedAt: c.UpdatedAt,
			Title:     c.Title,
			Summary:   c.Summary,
			Snippet:   who,
			IsGroup:   c.IsGroup,
		})
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}
	}
	return results, nil
}
