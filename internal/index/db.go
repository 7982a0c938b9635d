package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Zuo-Peng/wa-chat-viewer/internal/logging"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/parse"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// TimeLayout is the wall-clock format of stored timestamps. It sorts
// lexically, so "since" filters can compare against a date prefix.
const TimeLayout = "2006-01-02T15:04:05"

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA cache_size = -64000;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS chats (
    chat_key     TEXT PRIMARY KEY,
    title        TEXT NOT NULL DEFAULT '',
    file_path    TEXT NOT NULL,
    participants TEXT NOT NULL DEFAULT '',
    is_group     INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL DEFAULT '',
    updated_at   TEXT NOT NULL DEFAULT '',
    summary      TEXT NOT NULL DEFAULT '',
    mtime        INTEGER NOT NULL DEFAULT 0,
    size         INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS messages (
    chat_key    TEXT NOT NULL,
    seq         INTEGER NOT NULL,
    ts          TEXT NOT NULL,
    sender      TEXT NOT NULL DEFAULT '',
    is_system   INTEGER NOT NULL DEFAULT 0,
    text        TEXT NOT NULL,
    line_number INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (chat_key, seq)
);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    text,
    sender,
    content=messages,
    content_rowid=rowid,
    tokenize='unicode61'
);

-- triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, text, sender) VALUES (new.rowid, new.text, new.sender);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, text, sender) VALUES('delete', old.rowid, old.text, old.sender);
END;

CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, text, sender) VALUES('delete', old.rowid, old.text, old.sender);
    INSERT INTO messages_fts(rowid, text, sender) VALUES (new.rowid, new.text, new.sender);
END;

CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);
`

// participants are stored joined by this separator; names never contain it
const participantSep = "\n"

type DB struct {
	db *sql.DB
}

func OpenDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrateSchemaVersion(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// schemaVersion should be bumped whenever message parsing logic changes
// to force a full re-index.
const schemaVersion = "1"

func (d *DB) migrateSchemaVersion() error {
	var ver string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&ver)
	if err == nil && ver == schemaVersion {
		return nil
	}
	// force re-index by resetting all chat mtime/size to 0
	if _, err := d.db.Exec("UPDATE chats SET mtime = 0, size = 0"); err != nil {
		return err
	}
	_, err = d.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion)
	return err
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Raw() *sql.DB {
	return d.db
}

type ChatInfo struct {
	Mtime int64
	Size  int64
}

func (d *DB) GetChatInfo(chatKey string) (*ChatInfo, error) {
	var info ChatInfo
	err := d.db.QueryRow(
		"SELECT mtime, size FROM chats WHERE chat_key = ?",
		chatKey,
	).Scan(&info.Mtime, &info.Size)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (d *DB) AllChatKeys() (map[string]struct{}, error) {
	rows, err := d.db.Query("SELECT chat_key FROM chats")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}

func (d *DB) DeleteChat(chatKey string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages WHERE chat_key = ?", chatKey); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM chats WHERE chat_key = ?", chatKey); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) ChatCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM chats").Scan(&n)
	return n, err
}

func (d *DB) MessageCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&n)
	return n, err
}

// FTSCount returns the number of rows in the full-text index.
func (d *DB) FTSCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM messages_fts").Scan(&n)
	return n, err
}

type ChatRow struct {
	ChatKey      string
	Title        string
	FilePath     string
	Participants []string
	IsGroup      bool
	CreatedAt    string
	UpdatedAt    string
	Summary      string
}

const chatColumns = "chat_key, title, file_path, participants, is_group, created_at, updated_at, summary"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(r rowScanner) (ChatRow, error) {
	var c ChatRow
	var participants string
	err := r.Scan(&c.ChatKey, &c.Title, &c.FilePath, &participants, &c.IsGroup, &c.CreatedAt, &c.UpdatedAt, &c.Summary)
	if participants != "" {
		c.Participants = strings.Split(participants, participantSep)
	}
	return c, err
}

func (d *DB) GetChatByKey(chatKey string) (*ChatRow, error) {
	c, err := scanChat(d.db.QueryRow("SELECT "+chatColumns+" FROM chats WHERE chat_key = ?", chatKey))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChats returns all chats, most recently active first.
func (d *DB) ListChats() ([]ChatRow, error) {
	rows, err := d.db.Query("SELECT " + chatColumns + " FROM chats ORDER BY updated_at DESC, chat_key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []ChatRow
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

type MessageRow struct {
	ChatKey    string
	Seq        int
	Ts         string
	Sender     string
	IsSystem   bool
	Text       string
	LineNumber int
}

// Message converts the row back into a parsed message. A timestamp that
// does not parse is logged and left zero.
func (r MessageRow) Message() parse.Message {
	ts, err := time.ParseInLocation(TimeLayout, r.Ts, parse.WallZone)
	if err != nil {
		logging.L().Warn("bad message timestamp",
			zap.String("chat", r.ChatKey),
			zap.Int("seq", r.Seq),
			zap.String("ts", r.Ts),
			zap.Error(err))
	}
	return parse.Message{
		Timestamp: ts,
		Sender:    r.Sender,
		Text:      r.Text,
		IsSystem:  r.IsSystem,
		Line:      r.LineNumber,
	}
}

const messageColumns = "chat_key, seq, ts, sender, is_system, text, line_number"

func scanMessages(rows *sql.Rows) ([]MessageRow, error) {
	var msgs []MessageRow
	for rows.Next() {
		var m MessageRow
		if err := rows.Scan(&m.ChatKey, &m.Seq, &m.Ts, &m.Sender, &m.IsSystem, &m.Text, &m.LineNumber); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (d *DB) GetMessages(chatKey string) ([]MessageRow, error) {
	rows, err := d.db.Query(
		"SELECT "+messageColumns+" FROM messages WHERE chat_key = ? ORDER BY seq",
		chatKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// LoadConversation rebuilds the parsed conversation of a cached chat.
func (d *DB) LoadConversation(chatKey string) (*ChatRow, parse.Conversation, error) {
	chat, err := d.GetChatByKey(chatKey)
	if err != nil {
		return nil, parse.Conversation{}, fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		return nil, parse.Conversation{}, fmt.Errorf("chat not found: %s", chatKey)
	}
	rows, err := d.GetMessages(chatKey)
	if err != nil {
		return nil, parse.Conversation{}, fmt.Errorf("get messages: %w", err)
	}
	conv := parse.Conversation{IsGroup: chat.IsGroup}
	for _, r := range rows {
		conv.Messages = append(conv.Messages, r.Message())
	}
	return chat, conv, nil
}

// GetMessagesWindow returns a window of messages around a hit message.
// startPos is the number of messages before the returned window,
// totalCount the number of messages in the chat.
func (d *DB) GetMessagesWindow(chatKey string, hitSeq, context int) (msgs []MessageRow, hitIdx int, startPos int, totalCount int, err error) {
	err = d.db.QueryRow(
		"SELECT COUNT(*) FROM messages WHERE chat_key = ?", chatKey,
	).Scan(&totalCount)
	if err != nil {
		return nil, -1, 0, 0, err
	}

	// seq is dense and 0-based, so it is also the row position
	startPos = 0
	limit := totalCount
	if hitSeq >= 0 && hitSeq < totalCount {
		startPos = max(hitSeq-context, 0)
		endPos := min(hitSeq+context+1, totalCount)
		limit = endPos - startPos
	}

	rows, err := d.db.Query(
		"SELECT "+messageColumns+" FROM messages WHERE chat_key = ? ORDER BY seq LIMIT ? OFFSET ?",
		chatKey, limit, startPos,
	)
	if err != nil {
		return nil, -1, 0, 0, err
	}
	defer rows.Close()

	result, err := scanMessages(rows)
	if err != nil {
		return nil, -1, 0, 0, err
	}
	hitIdx = -1
	for i, m := range result {
		if m.Seq == hitSeq {
			hitIdx = i
		}
	}
	return result, hitIdx, startPos, totalCount, nil
}
