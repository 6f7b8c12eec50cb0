package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/image-search/internal/config"
	"github.com/kozaktomas/image-search/internal/engine"
)

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "Show how many images each named colour holds",
	RunE:  runBuckets,
}

func init() {
	rootCmd.AddCommand(bucketsCmd)

	bucketsCmd.Flags().Bool("json", false, "Output as JSON")
	bucketsCmd.Flags().Bool("ids", false, "List the images of every bucket")
}

// BucketInfo is one colour bucket in the JSON output
type BucketInfo struct {
	Name  string   `json:"name"`
	Hex   string   `json:"hex"`
	Count int      `json:"count"`
	IDs   []string `json:"ids,omitempty"`
}

func runBuckets(cmd *cobra.Command, args []string) error {
	showIDs := mustGetBool(cmd, "ids")

	return withEngine(cmd, func(cfg *config.Config, eng *engine.Engine, jsonOutput bool) error {
		buckets, err := eng.Buckets()
		if err != nil {
			return err
		}

		// Report in palette order rather than map order.
		infos := make([]BucketInfo, 0, len(buckets))
		for _, c := range eng.NamedPalette().Colors() {
			ids := buckets[c.Name]
			info := BucketInfo{Name: c.Name, Hex: c.RGB.Hex(), Count: len(ids)}
			if showIDs || jsonOutput {
				info.IDs = ids
			}
			infos = append(infos, info)
		}

		if jsonOutput {
			return outputJSON(infos)
		}

		status := eng.Status()
		fmt.Printf("Colour buckets (%d images, generation %d):\n", status.Items, status.Generation)
		for _, info := range infos {
			fmt.Printf("  %-10s %s  %5d\n", info.Name, info.Hex, info.Count)
			if showIDs {
				for _, id := range info.IDs {
					fmt.Printf("      %s\n", id)
				}
			}
		}
		return nil
	})
}
