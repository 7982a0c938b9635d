package main

import (
	"github.com/Zuo-Peng/wa-chat-viewer/internal/index"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/open"
	"github.com/spf13/cobra"
)

func openCmd() *cobra.Command {
	var hitSeq int

	cmd := &cobra.Command{
		Use:   "open <chatKey>",
		Short: "Open the export file in $EDITOR at the hit line",
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

			return open.OpenChat(db, args[0], hitSeq)
		},
	}

	cmd.Flags().IntVar(&hitSeq, "hit", -1, "Message index to jump to")

	return cmd
}
