package main

import (
	"fmt"
	"os"

	"github.com/Zuo-Peng/wa-chat-viewer/internal/config"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/index"
	"github.com/Zuo-Peng/wa-chat-viewer/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// optional .env next to the binary's working directory
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:     "wcv",
		Short:   "WhatsApp chat viewer - search and read exported WhatsApp chats",
		Version: version,
	}

	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(viewCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(printCmd())
	rootCmd.AddCommand(openCmd())
	rootCmd.AddCommand(doctorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logging.L().Sync()
		os.Exit(1)
	}
}

// loadConfig reads the config and applies its log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// openCache opens the search cache and brings it up to date with the
// exports root.
func openCache(cfg *config.Config) (*index.DB, error) {
	db, err := index.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// stale results are still useful, so a failed refresh is not fatal
	if _, err := index.IndexAll(db, cfg.ExportsRoot); err != nil {
		fmt.Fprintf(os.Stderr, "index: %v\n", err)
	}
	return db, nil
}
