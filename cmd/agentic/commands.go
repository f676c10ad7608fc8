package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/eternisai/agentic-research/internal/client"
	"github.com/eternisai/agentic-research/models"
	"github.com/spf13/cobra"
)

var (
	streamProgress bool
	printJSON      bool
	outputPath     string
)

var researchCmd = &cobra.Command{
	Use:   "research <prompt>",
	Short: "Generate a research report for a prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResearch,
}

var archiveCmd = &cobra.Command{
	Use:   "archive <prompt>",
	Short: "Download the documents discovered for a prompt as a zip archive",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runArchive,
}

func init() {
	researchCmd.Flags().BoolVar(&streamProgress, "stream", false, "Follow server progress over a websocket")
	researchCmd.Flags().BoolVar(&printJSON, "json", false, "Print the full response as JSON")

	archiveCmd.Flags().StringVarP(&outputPath, "output", "o", "agentic-downloads.zip", "Archive destination, - for stdout")
}

func runResearch(cmd *cobra.Command, args []string) error {
	var opts []client.SessionOption
	if streamProgress {
		opts = append(opts, client.WithProgressStream())
	}
	session := client.NewSession(client.NewClient(serverURL, nil), opts...)
	session.SetPrompt(strings.Join(args, " "))

	// Ctrl-C cancels the run instead of killing the process.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		if _, ok := <-sigs; ok {
			session.Cancel()
		}
	}()

	done := make(chan struct{})
	if verbose {
		go reportProgress(cmd.ErrOrStderr(), session, done)
	}

	err := session.Run(cmd.Context())
	close(done)
	if err != nil {
		msg := session.Snapshot().Error
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("research failed: %s", msg)
	}

	result := session.Snapshot().Result
	if printJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printReport(cmd.OutOrStdout(), result)
	return nil
}

// reportProgress prints label changes until done is closed.
func reportProgress(w io.Writer, session *client.Session, done <-chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	last := ""
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if label := session.Snapshot().Progress; label != last {
				fmt.Fprintf(w, "Status: %s\n", label)
				last = label
			}
		}
	}
}

func printReport(w io.Writer, resp *models.ResearchResponse) {
	fmt.Fprintln(w, resp.Report)

	if len(resp.Results) > 0 {
		fmt.Fprintln(w, "\nWeb results:")
		for _, r := range resp.Results {
			fmt.Fprintf(w, "  - %s\n    %s\n", titleOr(r.Title, r.URL), r.URL)
		}
	}
	if len(resp.Crawled) > 0 {
		fmt.Fprintln(w, "\nCrawled pages:")
		for _, p := range resp.Crawled {
			fmt.Fprintf(w, "  - %s\n", titleOr(p.Title, p.URL))
		}
	}
	if len(resp.Documents) > 0 {
		fmt.Fprintln(w, "\nDocuments:")
		for _, d := range resp.Documents {
			fmt.Fprintf(w, "  - %s -> %s\n", d.Filename, d.URL)
		}
	}
	if resp.UsedPremiumBackend {
		fmt.Fprintln(w, "\nReport written by the language model backend.")
	} else {
		fmt.Fprintln(w, "\nReport written by the local summarizer.")
	}
}

func titleOr(title, fallback string) string {
	if title != "" {
		return title
	}
	return fallback
}

func runArchive(cmd *cobra.Command, args []string) error {
	session := client.NewSession(client.NewClient(serverURL, nil))
	session.SetPrompt(strings.Join(args, " "))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var out io.Writer = cmd.OutOrStdout()
	if outputPath != "-" {
		f, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck
		out = f
	}

	archive, err := session.DownloadArchive(ctx, out)
	if err != nil {
		if outputPath != "-" {
			_ = os.Remove(outputPath)
		}
		return fmt.Errorf("archive failed: %w", err)
	}

	if outputPath != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%d of %d documents included)\n", outputPath, archive.Included, archive.Attempted)
	}
	return nil
}

