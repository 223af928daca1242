package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/stash/internal/core/domain"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search saved links and notes",
	Long: `Performs hybrid search across your links and notes.
Combines fuzzy keyword matching with semantic (embedding) similarity.

Queries may carry filters:
  from Reading        - only documents in the "Reading" folder
  #golang             - only documents tagged "golang"
  last week           - only documents updated in the last 7 days
  notes about caching - only notes

Use --semantic to rank by embedding similarity alone.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntP("limit", "n", 10, "maximum number of results")
	searchCmd.Flags().Bool("semantic", false, "rank by embedding similarity only")
	searchCmd.Flags().Float64("threshold", domain.DefaultSemanticThreshold, "minimum similarity for --semantic")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return fmt.Errorf("search %w", errNotConfigured)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	semantic, _ := cmd.Flags().GetBool("semantic")
	if semantic {
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		return runSemanticSearch(cmd, args[0], limit, threshold)
	}

	results, intent, err := searchService.Search(cmd.Context(), userID, args[0], domain.SearchOptions{Limit: limit})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput {
		if results == nil {
			results = []domain.SearchResult{}
		}
		return printJSON(cmd, map[string]any{"results": results, "intent": intent})
	}
	return outputSearchTable(cmd, results, intent)
}

func runSemanticSearch(cmd *cobra.Command, query string, limit int, threshold float64) error {
	results, err := searchService.SemanticSearch(cmd.Context(), userID, query,
		domain.SemanticSearchOptions{Limit: limit, Threshold: threshold})
	if err != nil {
		return fmt.Errorf("semantic search failed: %w", err)
	}

	if jsonOutput {
		if results == nil {
			results = []domain.SemanticResult{}
		}
		return printJSON(cmd, map[string]any{"results": results})
	}
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	width := terminalWidth()
	for i := range results {
		r := &results[i]
		title, location := describe(r.Link, r.Note)
		cmd.Printf("[%d] %s %s\n", i+1, defaultTheme.titleStyle().Render(title),
			defaultTheme.hintStyle().Render(fmt.Sprintf("(%.2f)", r.Similarity)))
		if location != "" {
			cmd.Println("    " + location)
		}
		if r.ChunkText != "" {
			cmd.Println("    " + ellipsis(r.ChunkText, width-4))
		}
	}
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult, intent *domain.QueryIntent) error {
	if intent != nil && intent.HasFilters() {
		cmd.Println(defaultTheme.hintStyle().Render(describeIntent(intent)))
	}
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	width := terminalWidth()
	for i := range results {
		// Format: [N] Title (score)
		r := &results[i]
		title, location := describe(r.Link, r.Note)
		cmd.Printf("[%d] %s %s\n", i+1, defaultTheme.titleStyle().Render(title),
			defaultTheme.hintStyle().Render(fmt.Sprintf("(%.2f)", r.CombinedScore)))
		if location != "" {
			cmd.Println("    " + location)
		}
		for _, m := range r.Matches {
			if m.Excerpt != "" {
				cmd.Println("    " + ellipsis(m.Excerpt, width-4))
				break
			}
		}
	}
	return nil
}

// describe returns a display title and, for links, the URL.
func describe(link *domain.Link, note *domain.Note) (title, location string) {
	switch {
	case link != nil:
		title = link.DisplayTitle()
		if title == "" {
			title = link.URL
		}
		return title, link.URL
	case note != nil:
		title = note.Title
		if title == "" {
			title = ellipsis(note.Content, 60)
		}
		return title, ""
	}
	return "", ""
}

func describeIntent(intent *domain.QueryIntent) string {
	switch {
	case intent.Folder != "":
		return fmt.Sprintf("in folder %q", intent.Folder)
	case intent.Tag != "":
		return fmt.Sprintf("tagged %q", intent.Tag)
	case intent.DateRange != nil:
		return fmt.Sprintf("updated %s to %s",
			intent.DateRange.From.Format("2006-01-02"), intent.DateRange.To.Format("2006-01-02"))
	case intent.Type != "":
		return fmt.Sprintf("%ss only", intent.Type)
	}
	return ""
}
