package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"codescout/internal/index"
	"codescout/internal/store"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing workspace search tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dbPath := cfg.ResolveDBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("index not found at %s\nRun 'codescout index <path>' first to build the index", dbPath)
	}

	idx, err := index.New(cfg)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer idx.Close()

	s := mcpserver.NewMCPServer("codescout", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(searchTool(), makeSearchHandler(idx))
	s.AddTool(listFilesTool(), makeListFilesHandler(idx))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchTool() mcp.Tool {
	return mcp.NewTool("search_codebase",
		mcp.WithDescription("Semantically search the indexed workspace. Returns relevant code blocks with file paths, line numbers, and similarity scores."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword query to search the workspace"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of blocks to return (default from config)"),
		),
	)
}

func listFilesTool() mcp.Tool {
	return mcp.NewTool("list_indexed_files",
		mcp.WithDescription("List all files currently in the index."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func makeSearchHandler(idx *index.Indexer) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		results, err := idx.Search(ctx, query)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if limit := req.GetInt("limit", 0); limit > 0 && limit < len(results) {
			results = results[:limit]
		}
		return mcp.NewToolResultText(formatSearchResults(query, results)), nil
	}
}

func makeListFilesHandler(idx *index.Indexer) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		paths, err := idx.ListPaths()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list files failed: %v", err)), nil
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "## Indexed files (%d)\n\n", len(paths))
		for _, p := range paths {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func formatSearchResults(query string, results []store.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d blocks)\n\n", query, len(results))
	for i, r := range results {
		b := r.Block
		fmt.Fprintf(&sb, "### Result %d: `%s`\n\n", i+1, b.FilePath)
		fmt.Fprintf(&sb, "**Type:** %s  \n**Identifier:** %s  \n**Lines:** %d-%d  \n**Score:** %.3f\n\n",
			b.Type, b.Identifier, b.StartLine, b.EndLine, r.Score)
		fmt.Fprintf(&sb, "```\n%s\n```\n\n", b.Content)
	}
	return sb.String()
}
