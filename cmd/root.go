package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// envFile is the dotenv file read before any command runs.
var envFile string

var rootCmd = &cobra.Command{
	Use:   "image-search",
	Short: "A content-based image search engine",
	Long: `Image Search indexes a labelled image collection by colour and layout
and answers keyword, colour-bucket, "most of colour" and
similar-image queries from the command line or over HTTP.

Configuration is read from the environment and from the dotenv file
given by --env-file (default .env, optional).`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file to load")
}

func initConfig() {
	if err := godotenv.Load(envFile); err != nil && envFile != ".env" {
		// The default file is optional.
		fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", envFile, err)
	}
}
