package main

import (
	"fmt"
	"os"

	"github.com/Zuo-Peng/wa-chat-viewer/internal/config"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/parse"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/render"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/tui"
	"github.com/spf13/cobra"
)

func viewCmd() *cobra.Command {
	var viewer string
	var follow bool
	var hitSeq int

	cmd := &cobra.Command{
		Use:   "view <file|chatKey>",
		Short: "Read a chat in the conversation viewer",
		Long: `Opens an export file, or a chat from the index by its key, in a
scrollable viewer with a message filter and a composer for local drafts.
Drafts are never written back. When stdout is not a terminal the chat is
printed as plain text instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if viewer == "" {
				viewer = cfg.ViewerName
			}

			src, err := loadSource(cfg, args[0], hitSeq)
			if err != nil {
				return err
			}

			if !isTerminal() {
				out, _ := render.Render(src.Conv, render.Options{
					Viewer: viewer,
					Title:  src.Title,
					HitSeq: -1,
					Plain:  true,
				})
				fmt.Print(out)
				return nil
			}

			return tui.RunChat(src, tui.ChatOptions{Viewer: viewer, Follow: follow})
		},
	}

	cmd.Flags().StringVar(&viewer, "viewer", "", "Your display name (default viewer_name)")
	cmd.Flags().BoolVar(&follow, "follow", false, "Reload when the export file changes")
	cmd.Flags().IntVar(&hitSeq, "hit", -1, "Message index to open at")

	return cmd
}

// loadSource reads arg as an export file when it exists on disk, and as a
// chat key otherwise.
func loadSource(cfg *config.Config, arg string, hitSeq int) (tui.ChatSource, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		res, err := parse.ParseFile(arg, cfg.ExportsRoot)
		if err != nil {
			return tui.ChatSource{}, fmt.Errorf("parse %s: %w", arg, err)
		}
		return tui.ChatSource{
			Title:  res.Meta.Title,
			Path:   res.Meta.FilePath,
			Conv:   res.Conversation,
			HitSeq: hitSeq,
		}, nil
	}

	db, err := openCache(cfg)
	if err != nil {
		return tui.ChatSource{}, err
	}
	defer db.Close()
	return tui.LoadChat(db, arg, hitSeq)
}
