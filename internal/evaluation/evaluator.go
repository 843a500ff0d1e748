package evaluation

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/logger"
)

// Evaluator aggregates scores and, when a Summarizer is set, adds a summary.
type Evaluator struct {
	summarizer *Summarizer
	logger     *zap.Logger
}

// NewEvaluator creates an Evaluator. summarizer may be nil.
func NewEvaluator(summarizer *Summarizer, log *zap.Logger) *Evaluator {
	return &Evaluator{summarizer: summarizer, logger: logger.OrNop(log)}
}

// Evaluate aggregates categories. A failing summary is logged and left empty;
// it never fails the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, categories []Category, c Context, withSummary bool) (*Result, error) {
	result, err := Aggregate(categories)
	if err != nil {
		e.logger.Error("malformed evaluation", zap.Error(err))
		return nil, err
	}

	if !withSummary || e.summarizer == nil || len(result.Evaluations) == 0 {
		return result, nil
	}

	summary, err := e.summarizer.Summarize(ctx, result, c)
	if err != nil {
		e.logger.Warn("evaluation summary failed", zap.Error(err))
		return result, nil
	}
	result.EvaluationSummary = summary

	return result, nil
}
