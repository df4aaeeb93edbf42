package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mapachekurt/llm-council/internal/council"
	"github.com/mapachekurt/llm-council/internal/export"
	"github.com/mapachekurt/llm-council/internal/webfetch"
)

var (
	askFormat   string
	askOutput   string
	askCouncil  []string
	askChairman string
	askURLs     []string
	askQuiet    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Run one deliberation and print the result",
	Long: `Run the three council stages for a single question.

Examples:
  llm-council ask "What is the capital of France?"
  llm-council ask "Summarize this article" --url https://example.com/post
  llm-council ask "Compare Go and Rust" --council openai/gpt-5,google/gemini-3-pro --chairman openai/gpt-5
  llm-council ask "Explain CRDTs" --format pdf --output crdts.pdf
  llm-council ask "Explain CRDTs" --format pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askFormat, "format", "f", string(export.FormatMarkdown), "Output format: "+export.FormatNames())
	askCmd.Flags().StringVarP(&askOutput, "output", "o", "", "Write the result to this file instead of stdout (pdf defaults to llm-council-<time>.pdf)")
	askCmd.Flags().StringSliceVar(&askCouncil, "council", nil, "Council models (comma separated), overrides config")
	askCmd.Flags().StringVar(&askChairman, "chairman", "", "Chairman model, overrides config")
	askCmd.Flags().StringSliceVar(&askURLs, "url", nil, "Fetch these pages and add their text as context")
	askCmd.Flags().BoolVarP(&askQuiet, "quiet", "q", false, "Do not print stage progress")
}

func runAsk(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(askFormat)
	if err != nil {
		return err
	}
	output := askOutput
	if format == export.FormatPDF && output == "" {
		output = defaultOutput(format, time.Now())
	}

	a, err := newApp(appConfig)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	question := strings.Join(args, " ")
	pages, err := fetchPages(ctx, a.fetcher, askURLs)
	if err != nil {
		return err
	}
	prompt := withContext(question, pages)

	req := council.Request{
		Question:      prompt,
		CouncilModels: a.cfg.CouncilModels,
		ChairmanModel: a.cfg.ChairmanModel,
		APIKey:        a.cfg.APIKey,
	}
	if len(askCouncil) > 0 {
		req.CouncilModels = askCouncil
	}
	if askChairman != "" {
		req.ChairmanModel = askChairman
	}

	progress := cmd.ErrOrStderr()
	if askQuiet {
		progress = io.Discard
	}
	result, err := a.engine.DeliberateWithHooks(ctx, req, progressHooks(progress))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, question, result); err != nil {
		return fmt.Errorf("failed to export result: %w", err)
	}
	if output == "" {
		_, err = cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintf(progress, "Saved %s export to %s\n", format, output)
	return nil
}

// defaultOutput names the export file for formats that cannot go to a terminal.
func defaultOutput(format export.Format, now time.Time) string {
	return fmt.Sprintf("llm-council-%s.%s", now.Format("20060102-150405"), format.Extension())
}

// progressHooks prints a line to w as each stage completes.
func progressHooks(w io.Writer) *council.Hooks {
	return &council.Hooks{
		OnStage1: func(stage1 []council.Stage1Response) {
			fmt.Fprintf(w, "Stage 1: %d responses\n", len(stage1))
		},
		OnStage2: func(stage2 []council.Evaluation, metadata council.Metadata) {
			fmt.Fprintf(w, "Stage 2: %d evaluations\n", len(stage2))
			for i, entry := range metadata.AggregateRankings {
				fmt.Fprintf(w, "  %d. %s (avg %.2f, %d votes)\n", i+1, entry.Model, entry.AverageScore, entry.Votes)
			}
		},
		OnStage3: func(stage3 council.FinalAnswer) {
			if stage3.Model == "" {
				fmt.Fprintln(w, "Stage 3: chairman failed")
				return
			}
			fmt.Fprintf(w, "Stage 3: synthesized by %s\n", stage3.Model)
		},
	}
}

func fetchPages(ctx context.Context, f *webfetch.Fetcher, urls []string) ([]*webfetch.Page, error) {
	pages := make([]*webfetch.Page, 0, len(urls))
	for _, u := range urls {
		page, err := f.Fetch(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", u, err)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// withContext appends the text of each page to question.
func withContext(question string, pages []*webfetch.Page) string {
	if len(pages) == 0 {
		return question
	}
	var b strings.Builder
	b.WriteString(question)
	for _, page := range pages {
		b.WriteString("\n\n---\n")
		if page.Title != "" {
			fmt.Fprintf(&b, "Context from %s (%s):\n\n", page.Title, page.URL)
		} else {
			fmt.Fprintf(&b, "Context from %s:\n\n", page.URL)
		}
		b.WriteString(page.Content)
	}
	return b.String()
}
