package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codescout/internal/config"
)

var (
	flagConfig    string
	flagDB        string
	flagOllama    string
	flagModel     string
	flagWorkspace string
	flagDebug     bool
)

var rootCmd = &cobra.Command{
	Use:   "codescout",
	Short: "Semantic code search over a local workspace",
	Long: `codescout walks a code workspace, splits source files into semantic
blocks, embeds them with a local Ollama model, and serves vector search over
the result.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default <workspace>/.codescout/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default <workspace>/.codescout/index.db)")
	rootCmd.PersistentFlags().StringVar(&flagOllama, "ollama", "", "ollama base URL")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "embedding model")
	rootCmd.PersistentFlags().StringVar(&flagWorkspace, "workspace", "", "workspace root (default current directory)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "print absorbed chunking failures to stderr")
}

// loadConfig layers flags over the config file and environment.
func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		if ws := flagWorkspace; ws != "" {
			path = ws + "/.codescout/config.yaml"
		} else {
			path = ".codescout/config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flagWorkspace != "" {
		cfg.WorkspacePath = flagWorkspace
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	if flagOllama != "" {
		cfg.OllamaBaseURL = flagOllama
	}
	if flagModel != "" {
		cfg.OllamaModel = flagModel
	}
	if flagDebug {
		cfg.Debug = true
	}
	return cfg, nil
}
