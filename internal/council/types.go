package council

import "encoding/json"

// Request describes one deliberation.
type Request struct {
	Question      string
	CouncilModels []string
	ChairmanModel string
	APIKey        string
}

// Stage1Response is one council member's independent answer.
type Stage1Response struct {
	Model     string          `json:"model"`
	Content   string          `json:"content"`
	Reasoning json.RawMessage `json:"reasoning_details,omitempty"`
}

// Evaluation is one council member's peer review of the anonymized answers.
type Evaluation struct {
	Model          string   `json:"model"`
	EvaluationText string   `json:"evaluation_text"`
	ParsedRanking  []string `json:"parsed_ranking"`
}

// AggregateEntry is one row of the peer-review leaderboard.
type AggregateEntry struct {
	Model        string  `json:"model"`
	AverageScore float64 `json:"average_score"`
	Votes        int     `json:"votes"`
}

// FinalAnswer is the chairman's synthesis. Model is empty when the chairman
// failed and Content holds ChairmanFailedMessage.
type FinalAnswer struct {
	Model     string          `json:"model,omitempty"`
	Content   string          `json:"content"`
	Reasoning json.RawMessage `json:"reasoning_details,omitempty"`
}

// Metadata carries the de-anonymization map and the leaderboard.
type Metadata struct {
	LabelToModel      LabelMap         `json:"label_to_model"`
	AggregateRankings []AggregateEntry `json:"aggregate_rankings"`
}

// Result is everything a deliberation produced.
type Result struct {
	Stage1   []Stage1Response `json:"stage1"`
	Stage2   []Evaluation     `json:"stage2"`
	Stage3   FinalAnswer      `json:"stage3"`
	Metadata Metadata         `json:"metadata"`
}

// Hooks are called synchronously as each stage completes.
type Hooks struct {
	OnStage1 func(stage1 []Stage1Response)
	OnStage2 func(stage2 []Evaluation, metadata Metadata)
	OnStage3 func(stage3 FinalAnswer)
}

func (h *Hooks) stage1(stage1 []Stage1Response) {
	if h != nil && h.OnStage1 != nil {
		h.OnStage1(stage1)
	}
}

func (h *Hooks) stage2(stage2 []Evaluation, metadata Metadata) {
	if h != nil && h.OnStage2 != nil {
		h.OnStage2(stage2, metadata)
	}
}

func (h *Hooks) stage3(stage3 FinalAnswer) {
	if h != nil && h.OnStage3 != nil {
		h.OnStage3(stage3)
	}
}
