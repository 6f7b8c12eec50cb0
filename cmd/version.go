package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/image-search/internal/database"
)

// Build metadata, set with -ldflags "-X .../cmd.Version=..." at release time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// VersionInfo is the --json form of the version command.
type VersionInfo struct {
	Version        string `json:"version"`
	Commit         string `json:"commit"`
	Built          string `json:"built"`
	SnapshotFormat int    `json:"snapshot_format"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := VersionInfo{
			Version:        Version,
			Commit:         CommitSHA,
			Built:          BuildDate,
			SnapshotFormat: database.SnapshotVersion,
		}
		if mustGetBool(cmd, "json") {
			return outputJSON(info)
		}
		fmt.Printf("image-search %s\n", info.Version)
		fmt.Printf("  Commit:   %s\n", info.Commit)
		fmt.Printf("  Built:    %s\n", info.Built)
		fmt.Printf("  Snapshot: v%d\n", info.SnapshotFormat)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("json", false, "Output as JSON")
}
