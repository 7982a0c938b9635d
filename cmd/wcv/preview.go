package main

import (
	"fmt"

	"github.com/Zuo-Peng/wa-chat-viewer/internal/index"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/render"
	"github.com/spf13/cobra"
)

func previewCmd() *cobra.Command {
	var hitSeq int
	var context int
	var width int
	var query string
	var viewer string

	cmd := &cobra.Command{
		Use:   "preview <chatKey>",
		Short: "Preview a chat with context around a hit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if viewer == "" {
				viewer = cfg.ViewerName
			}
			out, _, err := render.RenderChat(db, args[0], render.Options{
				Viewer:  viewer,
				HitSeq:  hitSeq,
				Context: context,
				Width:   width,
				Query:   query,
			})
			if err != nil {
				return err
			}

			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().IntVar(&hitSeq, "hit", -1, "Message index to highlight")
	cmd.Flags().IntVar(&context, "context", 10, "Messages before/after hit to show")
	cmd.Flags().IntVar(&width, "width", 0, "Wrap and align to this width (0 = no wrap)")
	cmd.Flags().StringVar(&query, "query", "", "Search query for keyword highlighting")
	cmd.Flags().StringVar(&viewer, "viewer", "", "Your display name (default viewer_name)")

	return cmd
}
