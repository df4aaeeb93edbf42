// Package export renders a deliberation result as Markdown, PDF or JSON.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/mapachekurt/llm-council/internal/council"
)

// Format is an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatJSON     Format = "json"
)

// Formats lists the supported formats.
var Formats = []Format{FormatMarkdown, FormatJSON, FormatPDF}

// FormatNames returns the supported format names joined by ", ".
func FormatNames() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// ParseFormat accepts a format name or a common alias ("md").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "pdf":
		return FormatPDF, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q, want one of: %s", s, FormatNames())
	}
}

// Extension returns the file extension for f.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// Write renders result in format f.
func Write(w io.Writer, f Format, question string, result *council.Result) error {
	switch f {
	case FormatMarkdown:
		return Markdown(w, question, result)
	case FormatPDF:
		return PDF(w, question, result)
	case FormatJSON:
		return JSON(w, question, result)
	default:
		return fmt.Errorf("unsupported export format: %s", f)
	}
}

// rankingLine renders "Response B (vendor/model)", or the bare label when it
// is not in the map.
func rankingLine(label string, labels council.LabelMap) string {
	if model, ok := labels.Model(label); ok {
		return fmt.Sprintf("%s (%s)", label, model)
	}
	return label
}

// responseHeading renders "vendor/model (Response B)" for a stage 1 answer.
func responseHeading(model string, labels council.LabelMap) string {
	if label, ok := labels.Label(model); ok {
		return fmt.Sprintf("%s (%s)", model, label)
	}
	return model
}

// scoreText formats an average score with two decimals.
func scoreText(score float64) string {
	return fmt.Sprintf("%.2f", score)
}
