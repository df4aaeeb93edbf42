// Package council runs the three-stage deliberation: every council model
// answers, the council peer-reviews the anonymized answers, and a chairman
// model synthesizes the final answer.
package council

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"github.com/mapachekurt/llm-council/internal/logger"
	"github.com/mapachekurt/llm-council/internal/metrics"
	"github.com/mapachekurt/llm-council/internal/openrouter"
)

const (
	// ChairmanFailedMessage replaces the final answer when the chairman returns nothing.
	ChairmanFailedMessage = "The chairman failed to generate a response."

	// DefaultTitle is returned when no title could be generated.
	DefaultTitle = "New Conversation"

	// DefaultTitleModel generates conversation titles.
	DefaultTitleModel = "anthropic/claude-sonnet-4-5"
)

// ErrNoResponses is returned when no council model answered in stage 1.
var ErrNoResponses = errors.New("no responses from stage 1")

// Dispatcher sends one prompt to several models in parallel. Failed calls are
// left out of the result and the order of models is kept.
type Dispatcher interface {
	Fanout(ctx context.Context, models []string, prompt, apiKey string) []openrouter.Completion
}

// Shuffler permutes n elements by calling swap, like rand.Shuffle.
type Shuffler func(n int, swap func(i, j int))

// Engine runs deliberations. It holds no per-deliberation state and is safe
// for concurrent use.
type Engine struct {
	dispatcher Dispatcher
	shuffle    Shuffler
	titleModel string
	logger     *zap.Logger
	metrics    *metrics.Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithShuffler replaces the random shuffle used for anonymization.
func WithShuffler(s Shuffler) Option {
	return func(e *Engine) {
		if s != nil {
			e.shuffle = s
		}
	}
}

// WithTitleModel sets the model used by Title.
func WithTitleModel(model string) Option {
	return func(e *Engine) {
		if model != "" {
			e.titleModel = model
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine on top of d.
func New(d Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		dispatcher: d,
		shuffle:    rand.Shuffle,
		titleModel: DefaultTitleModel,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logger.OrNop(e.logger).Named("council")
	return e
}

// Deliberate runs all three stages.
func (e *Engine) Deliberate(ctx context.Context, req Request) (*Result, error) {
	return e.DeliberateWithHooks(ctx, req, nil)
}

// DeliberateWithHooks runs all three stages, calling hooks after each one.
// The only failure besides cancellation is ErrNoResponses; failed evaluators
// and a failed chairman are absorbed into the result.
func (e *Engine) DeliberateWithHooks(ctx context.Context, req Request, hooks *Hooks) (*Result, error) {
	log := e.logger.With(
		zap.Int("council_size", len(req.CouncilModels)),
		zap.String("chairman", req.ChairmanModel),
	)

	log.Info("stage 1: collecting responses")
	stage1 := e.CollectResponses(ctx, req)
	if err := ctx.Err(); err != nil {
		e.metrics.ObserveDeliberation(metrics.DeliberationError)
		return nil, fmt.Errorf("stage 1: %w", err)
	}
	if len(stage1) == 0 {
		log.Error("stage 1: no council member responded")
		e.metrics.ObserveDeliberation(metrics.DeliberationNoResponses)
		return nil, ErrNoResponses
	}
	log.Info("stage 1: complete", zap.Int("responses", len(stage1)))
	hooks.stage1(stage1)

	log.Info("stage 2: collecting peer evaluations")
	stage2, labels := e.CollectEvaluations(ctx, req, stage1)
	if err := ctx.Err(); err != nil {
		e.metrics.ObserveDeliberation(metrics.DeliberationError)
		return nil, fmt.Errorf("stage 2: %w", err)
	}
	metadata := Metadata{
		LabelToModel:      labels,
		AggregateRankings: Aggregate(stage2, labels),
	}
	log.Info("stage 2: complete", zap.Int("evaluations", len(stage2)))
	hooks.stage2(stage2, metadata)

	log.Info("stage 3: synthesizing final answer")
	stage3 := e.Synthesize(ctx, req, stage1, stage2)
	if err := ctx.Err(); err != nil {
		e.metrics.ObserveDeliberation(metrics.DeliberationError)
		return nil, fmt.Errorf("stage 3: %w", err)
	}
	log.Info("stage 3: complete", zap.Bool("chairman_failed", stage3.Model == ""))
	hooks.stage3(stage3)

	e.metrics.ObserveDeliberation(metrics.DeliberationOK)
	return &Result{
		Stage1:   stage1,
		Stage2:   stage2,
		Stage3:   stage3,
		Metadata: metadata,
	}, nil
}

// CollectResponses sends the question to every council model.
func (e *Engine) CollectResponses(ctx context.Context, req Request) []Stage1Response {
	replies := e.dispatcher.Fanout(ctx, req.CouncilModels, req.Question, req.APIKey)
	stage1 := make([]Stage1Response, len(replies))
	for i, r := range replies {
		stage1[i] = Stage1Response(r)
	}
	e.metrics.ObserveStage("stage1", len(stage1))
	return stage1
}

// CollectEvaluations shuffles and labels stage1, asks every council model to
// rank the labelled answers, and parses the replies. Replies without content
// are dropped.
func (e *Engine) CollectEvaluations(ctx context.Context, req Request, stage1 []Stage1Response) ([]Evaluation, LabelMap) {
	shuffled := make([]Stage1Response, len(stage1))
	copy(shuffled, stage1)
	e.shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	models := make([]string, len(shuffled))
	for k, resp := range shuffled {
		models[k] = resp.Model
	}
	labels := NewLabelMap(models)

	prompt := evaluationPrompt(req.Question, labels, shuffled)
	replies := e.dispatcher.Fanout(ctx, req.CouncilModels, prompt, req.APIKey)

	parser := NewRankingParser(labels.Labels())
	evaluations := make([]Evaluation, 0, len(replies))
	for _, r := range replies {
		if r.Content == "" {
			continue
		}
		ranked, raw := parser.Parse(r.Content)
		if len(ranked) == 0 {
			e.logger.Debug("no ranking found in evaluation", zap.String("model", r.Model))
		}
		evaluations = append(evaluations, Evaluation{
			Model:          r.Model,
			EvaluationText: raw,
			ParsedRanking:  ranked,
		})
	}
	e.metrics.ObserveStage("stage2", len(evaluations))
	return evaluations, labels
}

// Synthesize asks the chairman for the final answer. A failed chairman yields
// ChairmanFailedMessage with no model.
func (e *Engine) Synthesize(ctx context.Context, req Request, stage1 []Stage1Response, stage2 []Evaluation) FinalAnswer {
	prompt := synthesisPrompt(req.Question, stage1, stage2)
	replies := e.dispatcher.Fanout(ctx, []string{req.ChairmanModel}, prompt, req.APIKey)
	e.metrics.ObserveStage("stage3", len(replies))
	if len(replies) == 0 {
		e.logger.Warn("chairman failed to respond", zap.String("chairman", req.ChairmanModel))
		return FinalAnswer{Content: ChairmanFailedMessage}
	}
	r := replies[0]
	return FinalAnswer{Model: r.Model, Content: r.Content, Reasoning: r.Reasoning}
}

// Title asks the title model for a short conversation title. It returns
// DefaultTitle when the call fails or the reply is blank.
func (e *Engine) Title(ctx context.Context, prompt, apiKey string) string {
	replies := e.dispatcher.Fanout(ctx, []string{e.titleModel}, titlePrompt(prompt), apiKey)
	if len(replies) == 0 {
		return DefaultTitle
	}
	title := strings.TrimSpace(replies[0].Content)
	if title == "" {
		return DefaultTitle
	}
	return title
}
