package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mapachekurt/llm-council/internal/council"
)

var errNilResult = errors.New("nil result")

// Markdown writes result as a Markdown document: final answer first, then the
// leaderboard, the label map, stage 1 answers and stage 2 evaluations.
func Markdown(w io.Writer, question string, result *council.Result) error {
	if result == nil {
		return errNilResult
	}
	var sb strings.Builder

	sb.WriteString("# LLM Council\n\n")
	sb.WriteString("## Question\n\n")
	sb.WriteString(question)
	sb.WriteString("\n\n")

	sb.WriteString("## Final Answer\n\n")
	if result.Stage3.Model != "" {
		fmt.Fprintf(&sb, "*Chairman: %s*\n\n", result.Stage3.Model)
	}
	sb.WriteString(result.Stage3.Content)
	sb.WriteString("\n\n")

	sb.WriteString("## Aggregate Rankings\n\n")
	if len(result.Metadata.AggregateRankings) == 0 {
		sb.WriteString("*No rankings could be parsed.*\n\n")
	} else {
		sb.WriteString("| Rank | Model | Average Score | Votes |\n")
		sb.WriteString("|---:|---|---:|---:|\n")
		for i, entry := range result.Metadata.AggregateRankings {
			fmt.Fprintf(&sb, "| %d | %s | %s | %d |\n", i+1, entry.Model, scoreText(entry.AverageScore), entry.Votes)
		}
		sb.WriteString("\n")
	}

	labels := result.Metadata.LabelToModel
	if labels.Len() > 0 {
		sb.WriteString("## Anonymization\n\n")
		for _, label := range labels.Labels() {
			model, _ := labels.Model(label)
			fmt.Fprintf(&sb, "- **%s:** %s\n", label, model)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Stage 1: Individual Responses\n\n")
	for _, resp := range result.Stage1 {
		fmt.Fprintf(&sb, "### %s\n\n", responseHeading(resp.Model, labels))
		sb.WriteString(resp.Content)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Stage 2: Peer Evaluations\n\n")
	if len(result.Stage2) == 0 {
		sb.WriteString("*No evaluations were returned.*\n\n")
	}
	for _, ev := range result.Stage2 {
		fmt.Fprintf(&sb, "### %s\n\n", ev.Model)
		sb.WriteString(ev.EvaluationText)
		sb.WriteString("\n\n")
		if len(ev.ParsedRanking) > 0 {
			sb.WriteString("**Extracted ranking:**\n\n")
			for i, label := range ev.ParsedRanking {
				fmt.Fprintf(&sb, "%d. %s\n", i+1, rankingLine(label, labels))
			}
			sb.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
