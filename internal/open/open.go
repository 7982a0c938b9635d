package open

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Zuo-Peng/wa-chat-viewer/internal/index"
)

// OpenChat opens the export file of a cached chat in $EDITOR, at the
// source line of message hitSeq when it is set.
func OpenChat(db *index.DB, chatKey string, hitSeq int) error {
	chat, err := db.GetChatByKey(chatKey)
	if err != nil {
		return fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		return fmt.Errorf("chat not found: %s", chatKey)
	}

	filePath := chat.FilePath
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("file not found: %s", filePath)
	}

	lineNum := 1
	if hitSeq >= 0 {
		msgs, err := db.GetMessages(chatKey)
		if err == nil {
			lineNum = lineForSeq(msgs, hitSeq)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "less"
	}

	return editorCommand(editor, filePath, lineNum).Run()
}

// lineForSeq finds the source line of message seq, or 1.
func lineForSeq(msgs []index.MessageRow, seq int) int {
	for _, m := range msgs {
		if m.Seq == seq && m.LineNumber > 0 {
			return m.LineNumber
		}
	}
	return 1
}

func editorCommand(editor, filePath string, lineNum int) *exec.Cmd {
	var cmd *exec.Cmd

	switch {
	case strings.Contains(editor, "vim") || strings.Contains(editor, "nvim"):
		cmd = exec.Command(editor, fmt.Sprintf("+%d", lineNum), filePath)
	case strings.Contains(editor, "code"):
		cmd = exec.Command(editor, "--goto", filePath+":"+strconv.Itoa(lineNum))
	case strings.Contains(editor, "less"):
		cmd = exec.Command(editor, "+"+strconv.Itoa(lineNum), filePath)
	default:
		cmd = exec.Command(editor, filePath)
	}

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}
