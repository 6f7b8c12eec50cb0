package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/image-search/internal/config"
	"github.com/kozaktomas/image-search/internal/engine"
	"github.com/kozaktomas/image-search/internal/ranking"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Query the stored corpus",
	Long: `Query the corpus built by 'image-search index'.

Examples:
  # Images whose category contains a keyword
  image-search search category eiffel

  # Images bucketed under a named colour
  image-search search color blue

  # Images that look like a given image
  image-search search similar eiffel/1.jpg --limit 10 --metric euclidean

  # Images with the most pixels of a palette colour
  image-search search dominant green --json`,
}

var searchCategoryCmd = &cobra.Command{
	Use:   "category <substring>",
	Short: "Find images whose category contains a substring",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearchCategory,
}

var searchColorCmd = &cobra.Command{
	Use:   "color <name>",
	Short: "List images whose dominant colour is nearest to a named colour",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearchColor,
}

var searchSimilarCmd = &cobra.Command{
	Use:   "similar <id>",
	Short: "Rank images by colour-moment distance to an indexed image",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearchSimilar,
}

var searchDominantCmd = &cobra.Command{
	Use:   "dominant <palette-color>",
	Short: "Rank images by their share of a histogram palette colour",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearchDominant,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.AddCommand(searchCategoryCmd, searchColorCmd, searchSimilarCmd, searchDominantCmd)

	searchCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	searchCategoryCmd.Flags().Int("limit", 0, "Maximum results (default keyword_limit)")
	searchSimilarCmd.Flags().Int("limit", 0, "Maximum results (default shown_results)")
	searchSimilarCmd.Flags().Float64("max-distance", 0, "Only return results within this distance (unset = no threshold)")
	searchSimilarCmd.Flags().String("metric", ranking.MetricMeanAbsolute, "Distance metric: mean-abs, euclidean or cosine")
	searchDominantCmd.Flags().Int("limit", 0, "Maximum results (default shown_results)")
}

// withEngine restores the stored corpus and runs fn against it.
func withEngine(cmd *cobra.Command, fn func(cfg *config.Config, eng *engine.Engine, jsonOutput bool) error) error {
	jsonOutput := mustGetBool(cmd, "json")
	cfg := config.Load()
	eng, err := loadEngine(context.Background(), cfg, true)
	defer closeStore()
	if err != nil {
		return err
	}
	return fn(cfg, eng, jsonOutput)
}

func limitOrDefault(cmd *cobra.Command, fallback int) int {
	if limit := mustGetInt(cmd, "limit"); limit > 0 {
		return limit
	}
	return fallback
}

// IDsResult is the JSON output of the category and color searches
type IDsResult struct {
	Query string   `json:"query"`
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// RankedResult is the JSON output of the similar and dominant searches
type RankedResult struct {
	Query   string           `json:"query"`
	Metric  string           `json:"metric,omitempty"`
	Results []ranking.Result `json:"results"`
	Count   int              `json:"count"`
}

func printIDs(query string, ids []string, jsonOutput bool) error {
	if jsonOutput {
		return outputJSON(IDsResult{Query: query, IDs: ids, Count: len(ids)})
	}
	if len(ids) == 0 {
		fmt.Printf("No images match %q\n", query)
		return nil
	}
	fmt.Printf("%d images match %q:\n", len(ids), query)
	for _, id := range ids {
		fmt.Printf("  %s\n", id)
	}
	return nil
}

func printRanked(result RankedResult, jsonOutput bool) error {
	if jsonOutput {
		return outputJSON(result)
	}
	if len(result.Results) == 0 {
		fmt.Printf("No results for %q\n", result.Query)
		return nil
	}
	fmt.Printf("Top %d results for %q:\n", len(result.Results), result.Query)
	for i, r := range result.Results {
		fmt.Printf("  %3d. %-50s %.6f\n", i+1, r.ID, r.Score)
	}
	return nil
}

func runSearchCategory(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(cfg *config.Config, eng *engine.Engine, jsonOutput bool) error {
		ids, err := eng.ByCategory(args[0], limitOrDefault(cmd, cfg.Search.KeywordLimit))
		if err != nil {
			return err
		}
		return printIDs(args[0], ids, jsonOutput)
	})
}

func runSearchColor(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(cfg *config.Config, eng *engine.Engine, jsonOutput bool) error {
		if _, ok := eng.NamedPalette().Lookup(args[0]); !ok && !jsonOutput {
			fmt.Printf("Warning: %q is not a named colour\n", args[0])
		}
		ids, err := eng.ByColor(args[0])
		if err != nil {
			return err
		}
		return printIDs(args[0], ids, jsonOutput)
	})
}

func runSearchSimilar(cmd *cobra.Command, args []string) error {
	metric, err := ranking.ParseMetric(mustGetString(cmd, "metric"))
	if err != nil {
		return err
	}
	var maxDistance *float64
	if cmd.Flags().Changed("max-distance") {
		d := mustGetFloat64(cmd, "max-distance")
		if d < 0 {
			return fmt.Errorf("--max-distance must not be negative")
		}
		maxDistance = &d
	}

	return withEngine(cmd, func(cfg *config.Config, eng *engine.Engine, jsonOutput bool) error {
		results, err := eng.Similar(engine.SimilarQuery{
			ID:          args[0],
			Limit:       limitOrDefault(cmd, cfg.Search.ShownResults),
			MaxDistance: maxDistance,
			Metric:      metric,
		})
		if err != nil {
			return err
		}
		return printRanked(RankedResult{Query: args[0], Metric: metric.Name(), Results: results, Count: len(results)}, jsonOutput)
	})
}

func runSearchDominant(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(cfg *config.Config, eng *engine.Engine, jsonOutput bool) error {
		results, err := eng.MostOfColor(args[0], limitOrDefault(cmd, cfg.Search.ShownResults))
		if err != nil {
			return err
		}
		return printRanked(RankedResult{Query: args[0], Results: results, Count: len(results)}, jsonOutput)
	})
}
