package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Zuo-Peng/wa-chat-viewer/internal/parse"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/render"
	"github.com/spf13/cobra"
)

// timestamps are wall clock with no zone, as in the export
const jsonTimeLayout = "2006-01-02T15:04:05"

type jsonMessage struct {
	Timestamp string `json:"timestamp"`
	Sender    string `json:"sender,omitempty"`
	Text      string `json:"text"`
	IsSystem  bool   `json:"is_system"`
	Line      int    `json:"line"`
}

type jsonChat struct {
	Title        string        `json:"title"`
	Participants []string      `json:"participants"`
	IsGroup      bool          `json:"is_group"`
	Messages     []jsonMessage `json:"messages"`
}

func printCmd() *cobra.Command {
	var asJSON, plain bool
	var viewer string
	var width int

	cmd := &cobra.Command{
		Use:   "print <file>",
		Short: "Parse an export file and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			res, err := parse.ParseFile(args[0], "")
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			if asJSON {
				return writeJSON(os.Stdout, res)
			}

			if viewer == "" {
				viewer = cfg.ViewerName
			}
			out, _ := render.Render(res.Conversation, render.Options{
				Viewer: viewer,
				Title:  res.Meta.Title,
				HitSeq: -1,
				Width:  width,
				Plain:  plain || !isTerminal(),
			})
			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Dump the parsed messages as JSON")
	cmd.Flags().BoolVar(&plain, "plain", false, "No colors")
	cmd.Flags().StringVar(&viewer, "viewer", "", "Your display name (default viewer_name)")
	cmd.Flags().IntVar(&width, "width", 0, "Wrap and align to this width (0 = no wrap)")

	return cmd
}

func writeJSON(w io.Writer, res *parse.ParseResult) error {
	out := jsonChat{
		Title:        res.Meta.Title,
		Participants: res.Meta.Participants,
		IsGroup:      res.Conversation.IsGroup,
		Messages:     make([]jsonMessage, 0, len(res.Conversation.Messages)),
	}
	if out.Participants == nil {
		out.Participants = []string{}
	}
	for _, m := range res.Conversation.Messages {
		out.Messages = append(out.Messages, jsonMessage{
			Timestamp: m.Timestamp.Format(jsonTimeLayout),
			Sender:    m.Sender,
			Text:      m.Text,
			IsSystem:  m.IsSystem,
			Line:      m.Line,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
