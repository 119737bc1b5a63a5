package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "jira-harvest",
		Short: "Scrape Jira issue trackers into LLM training datasets",
		Long: `jira-harvest scrapes public Jira issue trackers and converts the
collected issues into newline-delimited JSON training records. Runs are
resumable: completed issues are tracked in a state file and never
re-fetched, so an interrupted scrape picks up where it left off.`,
		Version:       version,
		SilenceUsage:  true, // Don't show usage on error
		SilenceErrors: true, // We'll handle error printing ourselves
	}

	rootCmd.AddCommand(newScrapeCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
