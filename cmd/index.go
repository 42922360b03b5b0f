package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"codescout/internal/index"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a workspace for search",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			cfg.WorkspacePath = args[0]
		}
		root, err := filepath.Abs(cfg.WorkspacePath)
		if err != nil {
			return err
		}
		cfg.WorkspacePath = root

		idx, err := index.New(cfg)
		if err != nil {
			return err
		}
		defer idx.Close()

		fmt.Printf("Indexing %s...\n", root)
		start := time.Now()

		var bar *progressbar.ProgressBar
		onProgress := func(phase string, done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription(phase),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}
			bar.Set(done)
		}

		stats, err := idx.Index(cmd.Context(), root, onProgress)
		elapsed := time.Since(start)

		if stats != nil {
			fmt.Printf("\nDone in %s\n", elapsed.Round(time.Millisecond))
			fmt.Printf("  Files:   %d total, %d indexed, %d skipped, %d pruned\n",
				stats.FilesTotal, stats.FilesIndexed, stats.FilesSkipped, stats.FilesPruned)
			fmt.Printf("  Blocks:  %d\n", stats.BlocksTotal)
		}
		if cfg.Debug {
			for _, rec := range idx.Errors().Recent() {
				fmt.Printf("  absorbed: [%s] %s.%s: %v\n", rec.Category, rec.Context.Component, rec.Context.Operation, rec.Err)
			}
		}

		return err
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
