package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"codescout/internal/index"
)

var flagSearchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the indexed workspace",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flagSearchLimit > 0 {
			cfg.SearchMaxResults = flagSearchLimit
		}

		idx, err := index.New(cfg)
		if err != nil {
			return err
		}
		defer idx.Close()

		query := strings.Join(args, " ")
		results, err := idx.Search(cmd.Context(), query)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Printf("No results for %q\n", query)
			return nil
		}

		for i, r := range results {
			b := r.Block
			header := b.FilePath
			if b.Identifier != "" {
				header += " " + b.Identifier
			}
			fmt.Printf("%d. %s (%s, lines %d-%d, score %.3f)\n", i+1, header, b.Type, b.StartLine, b.EndLine, r.Score)
			fmt.Println(indent(snippet(b.Content, 8), "   "))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&flagSearchLimit, "limit", 0, "maximum results (default from config)")
	rootCmd.AddCommand(searchCmd)
}

func snippet(content string, maxLines int) string {
	lines := strings.Split(content, "\n")
	if len(lines) > maxLines {
		lines = append(lines[:maxLines], "...")
	}
	return strings.Join(lines, "\n")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}
