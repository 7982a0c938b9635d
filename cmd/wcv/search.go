package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Zuo-Peng/wa-chat-viewer/internal/search"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	sColorReset   = "\033[0m"
	sColorBoldRed = "\033[1;31m"
	sColorBlue    = "\033[1;34m"
	sColorGreen   = "\033[1;32m"
	sColorDim     = "\033[2m"
)

func colorizeKind(isGroup bool) string {
	if isGroup {
		return sColorGreen + "group" + sColorReset
	}
	return sColorBlue + "chat" + sColorReset
}

func colorizeSnippet(snippet string) string {
	snippet = strings.ReplaceAll(snippet, ">>>", sColorBoldRed)
	snippet = strings.ReplaceAll(snippet, "<<<", sColorReset)
	return snippet
}

// tsvField flattens s into a single TSV cell.
func tsvField(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func searchCmd() *cobra.Command {
	var sender, since, viewer string
	var group bool
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across indexed chats",
		Long: `Search indexed chats using FTS5. Output is TSV for fzf integration:
  chatKey, seq, lastActivity, kind, title, sender, snippet

Recommended shell function (add to .zshrc):
  wcvf() {
    wcv search "$*" | fzf \
      --ansi \
      --delimiter='\t' --with-nth=3.. \
      --preview 'wcv preview {1} --hit {2} --context 5 --query {q}' \
      --preview-window=right:60%:wrap \
      --preview-debounce=150 \
      --bind 'enter:execute(wcv view {1} --hit {2})'
  }`,
		Args: cobra.ExactArgs(1),
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
				Sender:    sender,
				Since:     since,
				GroupOnly: group,
				Limit:     limit,
			}

			// Interactive TUI when stdout is a terminal; TSV output for pipes
			if isTerminal() {
				return tui.Run(db, args[0], opts, tui.ChatOptions{Viewer: viewer})
			}

			opts.Query = args[0]
			results, err := search.Search(db, opts)
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Fprintln(os.Stderr, "No results found.")
				return nil
			}

			for _, r := range results {
				from := r.Sender
				if from == "" {
					from = "-"
				}
				// first two fields (chatKey, seq) stay plain for fzf {1} {2}
				fmt.Printf("%s\t%d\t%s%s%s\t%s\t%s\t%s\t%s\n",
					r.ChatKey,
					r.Seq,
					sColorDim, r.UpdatedAt, sColorReset,
					colorizeKind(r.IsGroup),
					tsvField(r.Title),
					tsvField(from),
					colorizeSnippet(tsvField(r.Snippet)),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "", "Only messages from this sender")
	cmd.Flags().StringVar(&since, "since", "", "Only messages since date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&group, "group", false, "Only group chats")
	cmd.Flags().StringVar(&viewer, "viewer", "", "Your display name (default viewer_name)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")

	return cmd
}
