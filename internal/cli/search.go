package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Hybrid search over committed recipes",
	Long: `Ranks recipes by vector similarity and weighted keyword match, the same
way GET /recipes/search does.

Examples:
  recipectl search "spicy noodles"
  recipectl search "chickpeas" -n 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Search.Search(ctx, args[0], searchLimit)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, "No results found.")
			return nil
		}
		fmt.Fprintf(out, "Found %d results:\n\n", len(results))
		for i, m := range results {
			fmt.Fprintf(out, "%d. %s  score=%.3f (semantic %.3f, keyword %.3f)\n",
				i+1, m.Recipe.Name, m.Score, m.Similarity, m.KeywordScore)
			if verbose && len(m.Recipe.Tags) > 0 {
				fmt.Fprintf(out, "   tags: %s\n", strings.Join(m.Recipe.Tags, ", "))
			}
			fmt.Fprintf(out, "   id: %s\n", m.Recipe.ID)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "max results")
}
