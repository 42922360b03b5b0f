package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"codescout/internal/index"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove everything from the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		idx, err := index.New(cfg)
		if err != nil {
			return err
		}
		defer idx.Close()

		if err := idx.Clear(); err != nil {
			return err
		}
		fmt.Println("Index cleared.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
