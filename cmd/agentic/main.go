package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	verbose   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "agentic",
	Short: "Research a prompt and download the documents found along the way",
	Long: `agentic talks to a research server. It turns a prompt into a report built from
web search and crawled pages, and can package the discovered documents into a zip archive.`,
	SilenceUsage: true,
}

func init() {
	defaultURL := os.Getenv("AGENTIC_SERVER_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultURL, "Research server URL (or set AGENTIC_SERVER_URL env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print progress to stderr")

	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(archiveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
