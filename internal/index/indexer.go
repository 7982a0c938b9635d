package index

import (
	"fmt"
	"strings"

	"github.com/Zuo-Peng/wa-chat-viewer/internal/logging"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/parse"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/scan"
	"go.uber.org/zap"
)

type Stats struct {
	Scanned int
	Updated int
	Skipped int
	Pruned  int
	Errors  int
}

func (s Stats) String() string {
	return fmt.Sprintf("scanned=%d updated=%d skipped=%d pruned=%d errors=%d",
		s.Scanned, s.Updated, s.Skipped, s.Pruned, s.Errors)
}

// IndexAll brings the cache in line with the exports under root: new and
// changed files are re-parsed, unchanged ones skipped, vanished ones pruned.
func IndexAll(db *DB, root string) (Stats, error) {
	var stats Stats
	log := logging.L()

	files, err := scan.ScanRoot(root)
	if err != nil {
		return stats, fmt.Errorf("scan: %w", err)
	}
	stats.Scanned = len(files)

	// track which files we see, for pruning
	seenKeys := make(map[string]struct{})

	for _, fi := range files {
		key := parse.KeyForPath(fi.Path, root)
		seenKeys[key] = struct{}{}

		needs, err := needsUpdate(db, key, fi.Mtime, fi.Size)
		if err != nil {
			stats.Errors++
			log.Warn("check chat", zap.String("path", fi.Path), zap.Error(err))
			continue
		}
		if !needs {
			stats.Skipped++
			continue
		}

		result, err := parse.ParseFile(fi.Path, root)
		if err != nil {
			stats.Errors++
			log.Warn("parse export", zap.String("path", fi.Path), zap.Error(err))
			continue
		}
		if len(result.Conversation.Messages) == 0 {
			log.Debug("no messages, skipping", zap.String("path", fi.Path))
			delete(seenKeys, key)
			continue
		}

		if err := IndexChat(db, result); err != nil {
			stats.Errors++
			log.Warn("index export", zap.String("path", fi.Path), zap.Error(err))
			continue
		}
		log.Debug("indexed", zap.String("chat", key), zap.Int("messages", len(result.Conversation.Messages)))
		stats.Updated++
	}

	// prune chats whose files no longer exist
	pruned, err := pruneChats(db, seenKeys)
	if err != nil {
		return stats, fmt.Errorf("prune: %w", err)
	}
	stats.Pruned = pruned

	return stats, nil
}

func needsUpdate(db *DB, chatKey string, mtime, size int64) (bool, error) {
	info, err := db.GetChatInfo(chatKey)
	if err != nil {
		return false, err
	}
	if info == nil {
		return true, nil // new chat
	}
	return info.Mtime != mtime || info.Size != size, nil
}

// IndexChat replaces the cached copy of one parsed export.
func IndexChat(db *DB, result *parse.ParseResult) error {
	// delete old data first
	if err := db.DeleteChat(result.Meta.ChatKey); err != nil {
		return err
	}

	tx, err := db.Raw().Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	meta := result.Meta
	_, err = tx.Exec(
		`INSERT INTO chats (chat_key, title, file_path, participants, is_group, created_at, updated_at, summary, mtime, size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ChatKey,
		meta.Title,
		meta.FilePath,
		strings.Join(meta.Participants, participantSep),
		meta.IsGroup,
		meta.CreatedAt.Format(TimeLayout),
		meta.UpdatedAt.Format(TimeLayout),
		meta.Summary,
		meta.Mtime.Unix(),
		meta.Size,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO messages (chat_key, seq, ts, sender, is_system, text, line_number)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for seq, m := range result.Conversation.Messages {
		_, err := stmt.Exec(
			meta.ChatKey,
			seq,
			m.Timestamp.Format(TimeLayout),
			m.Sender,
			m.IsSystem,
			m.Text,
			m.Line,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func pruneChats(db *DB, seenKeys map[string]struct{}) (int, error) {
	allKeys, err := db.AllChatKeys()
	if err != nil {
		return 0, err
	}

	pruned := 0
	for key := range allKeys {
		if _, ok := seenKeys[key]; !ok {
			if err := db.DeleteChat(key); err != nil {
				return pruned, err
			}
			pruned++
		}
	}
	return pruned, nil
}
