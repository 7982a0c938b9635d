package main

import (
	"fmt"

	"github.com/Zuo-Peng/wa-chat-viewer/internal/search"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/tui"
	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	var since, viewer string
	var group bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Browse all chats sorted by last activity",
		Long:  `Opens a TUI panel showing all indexed chats sorted by last activity (newest first). Type to search message text. When stdout is not a terminal, prints one TSV line per chat.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if viewer == "" {
				viewer = cfg.ViewerName
			}
			opts := search.Options{
				Since:     since,
				GroupOnly: group,
				Limit:     limit,
			}

			if isTerminal() {
				return tui.RunList(db, opts, tui.ChatOptions{Viewer: viewer})
			}

			results, err := search.ListAll(db, opts)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Printf("%s\t%s\t%s\t%s\t%s\n",
					r.ChatKey,
					r.UpdatedAt,
					colorizeKind(r.IsGroup),
					tsvField(r.Title),
					tsvField(r.Snippet),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "Only chats active since date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&group, "group", false, "Only group chats")
	cmd.Flags().StringVar(&viewer, "viewer", "", "Your display name (default viewer_name)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (0 = no limit)")

	return cmd
}
