package export

import (
	"encoding/json"
	"io"

	"github.com/mapachekurt/llm-council/internal/council"
)

// Document is the JSON export structure.
type Document struct {
	Question string          `json:"question"`
	Result   *council.Result `json:"result"`
}

// JSON writes the question and result as indented JSON.
func JSON(w io.Writer, question string, result *council.Result) error {
	if result == nil {
		return errNilResult
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(Document{Question: question, Result: result})
}
