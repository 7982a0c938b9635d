package open

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Zuo-Peng/wa-chat-viewer/internal/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditorCommand(t *testing.T) {
	tests := []struct {
		editor string
		want   []string
	}{
		{"vim", []string{"vim", "+12", "chat.txt"}},
		{"/usr/bin/nvim", []string{"/usr/bin/nvim", "+12", "chat.txt"}},
		{"code", []string{"code", "--goto", "chat.txt:12"}},
		{"less", []string{"less", "+12", "chat.txt"}},
		{"nano", []string{"nano", "chat.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.editor, func(t *testing.T) {
			cmd := editorCommand(tt.editor, "chat.txt", 12)
			assert.Equal(t, tt.want, cmd.Args)
		})
	}
}

func TestLineForSeq(t *testing.T) {
	msgs := []index.MessageRow{
		{Seq: 0, LineNumber: 1},
		{Seq: 1, LineNumber: 4},
		{Seq: 2, LineNumber: 0},
	}
	assert.Equal(t, 4, lineForSeq(msgs, 1))
	assert.Equal(t, 1, lineForSeq(msgs, 2))
	assert.Equal(t, 1, lineForSeq(msgs, 9))
}

func TestOpenChat_Errors(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "WhatsApp Chat with Mum.txt")
	require.NoError(t, os.WriteFile(path, []byte("7/5/23, 8:00 PM - Mum: call me\n"), 0o644))

	db, err := index.OpenDB(filepath.Join(t.TempDir(), "wcv.db"))
	require.NoError(t, err)
	defer db.Close()
	_, err = index.IndexAll(db, root)
	require.NoError(t, err)

	err = OpenChat(db, "wa:nobody", -1)
	assert.ErrorContains(t, err, "chat not found")

	require.NoError(t, os.Remove(path))
	err = OpenChat(db, "wa:WhatsApp Chat with Mum", 0)
	assert.ErrorContains(t, err, "file not found")
}
