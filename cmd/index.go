package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/image-search/internal/config"
	"github.com/kozaktomas/image-search/internal/database"
	"github.com/kozaktomas/image-search/internal/dataset"
	"github.com/kozaktomas/image-search/internal/engine"
)

var indexCmd = &cobra.Command{
	Use:   "index <dataset.json>",
	Short: "Build the search corpus from an image dataset",
	Long: `Decode every image listed in a dataset manifest, extract its colour
histogram and colour moments, normalize the corpus and store the result.

The manifest has the form {"images":[{"path","class","dominantcolor"}]}.
Image paths are resolved against IMAGES_ROOT.

Examples:
  # Index the whole dataset
  image-search index images.json

  # One image per configured category
  image-search index images.json --per-category 1

  # Two images each of selected categories, without storing the result
  image-search index images.json --per-category 2 --category "eiffel tower" --category "taj mahal" --dry-run

  # Skip unreadable images instead of failing
  image-search index images.json --allow-partial --json`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().Int("per-category", 0, "Keep at most N images per category (0 = all images)")
	indexCmd.Flags().StringSlice("category", nil, "Categories used with --per-category (default SEARCH_CATEGORIES)")
	indexCmd.Flags().Int("concurrency", 0, "Number of parallel decodes (default INGEST_WORKERS)")
	indexCmd.Flags().Bool("allow-partial", false, "Skip images that cannot be decoded")
	indexCmd.Flags().Bool("strict", false, "Fail when the dataset exceeds the corpus bound instead of truncating")
	indexCmd.Flags().Bool("dry-run", false, "Build the corpus without storing it")
	indexCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

// IndexResult represents the result of an index run
type IndexResult struct {
	Success       bool             `json:"success"`
	Dataset       string           `json:"dataset"`
	Records       int              `json:"records"`
	Items         int              `json:"items"`
	Generation    uint64           `json:"generation"`
	Saved         bool             `json:"saved"`
	Skipped       []engine.Skipped `json:"skipped"`
	Overflow      int              `json:"overflow"`
	DurationMs    int64            `json:"duration_ms"`
	DurationHuman string           `json:"duration_human,omitempty"`
}

func runIndex(cmd *cobra.Command, args []string) error {
	perCategory := mustGetInt(cmd, "per-category")
	concurrency := mustGetInt(cmd, "concurrency")
	jsonOutput := mustGetBool(cmd, "json")
	dryRun := mustGetBool(cmd, "dry-run")

	cfg := config.Load()
	if concurrency <= 0 {
		concurrency = cfg.Ingest.Workers
	}

	ds, err := dataset.Load(args[0])
	if err != nil {
		return err
	}
	if perCategory > 0 {
		categories := mustGetStringSlice(cmd, "category")
		if len(categories) == 0 {
			categories = cfg.Search.Categories
		}
		ds = ds.Select(categories, perCategory)
	}
	records := ds.Records()
	if len(records) == 0 {
		return fmt.Errorf("dataset %s has no images to index", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	var store database.SnapshotWriter
	if !dryRun {
		store, err = openStore(ctx, cfg, jsonOutput)
		if err != nil {
			return err
		}
		defer closeStore()
	}

	if !jsonOutput {
		fmt.Printf("Indexing %d images from %s\n\n", len(records), args[0])
	}

	// Create progress bar (only for non-JSON output)
	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(records),
			progressbar.OptionSetDescription("Decoding"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	startTime := time.Now()
	report, err := eng.Ingest(ctx, records, engine.IngestOptions{
		Workers:        concurrency,
		DecodeTimeout:  cfg.Ingest.DecodeTimeout,
		AllowPartial:   mustGetBool(cmd, "allow-partial"),
		StrictCapacity: mustGetBool(cmd, "strict"),
		OnProgress: func(p engine.Progress) {
			if bar == nil {
				return
			}
			switch p.Phase {
			case engine.PhaseDecode:
				_ = bar.Set(p.Current)
			case engine.PhaseNormalize:
				bar.Describe("Normalizing")
			case engine.PhaseIndex:
				bar.Describe("Indexing")
			case engine.PhaseDone:
				_ = bar.Finish()
			}
		},
	})
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if store != nil {
		if err := eng.Save(ctx, store); err != nil {
			return err
		}
	}

	duration := time.Since(startTime)
	result := IndexResult{
		Success:       true,
		Dataset:       args[0],
		Records:       len(records),
		Items:         report.Items,
		Generation:    report.Generation,
		Saved:         store != nil,
		Skipped:       report.Skipped,
		Overflow:      report.Overflow,
		DurationMs:    duration.Milliseconds(),
		DurationHuman: formatDuration(duration),
	}

	if jsonOutput {
		// Remove human-readable duration for JSON output
		result.DurationHuman = ""
		return outputJSON(result)
	}

	fmt.Println("\nIndex complete!")
	fmt.Printf("  Images indexed: %d\n", result.Items)
	if len(result.Skipped) > 0 {
		fmt.Printf("  Skipped:        %d\n", len(result.Skipped))
		for _, s := range result.Skipped {
			fmt.Printf("    %s: %s\n", s.ID, s.Reason)
		}
	}
	if result.Overflow > 0 {
		fmt.Printf("  Over the bound: %d (dropped)\n", result.Overflow)
	}
	if !result.Saved {
		fmt.Println("  Not stored (--dry-run)")
	}
	fmt.Printf("  Duration:       %s\n", result.DurationHuman)
	return nil
}
