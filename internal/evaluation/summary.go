package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/ai"
	"github.com/spigell/cv-screener/internal/logger"
	"github.com/spigell/cv-screener/internal/utils"
)

const (
	defaultSummaryTimeout = 30 * time.Second

	summarySystem = `You write short hiring summaries for recruiters.
Answer with a JSON object {"summary": "..."} and nothing else.
The summary has at most four sentences, names the strongest and the weakest categories and never invents facts beyond the scores given.`
)

// Context describes what was evaluated, for the summary prompt.
type Context struct {
	JobTitle      string
	CandidateName string
}

// Summarizer writes the narrative evaluationSummary.
type Summarizer struct {
	generator ai.Generator
	timeout   time.Duration
	maxLogLen int
	logger    *zap.Logger
}

// NewSummarizer creates a Summarizer. A nil generator yields nil.
func NewSummarizer(generator ai.Generator, timeout time.Duration, maxLogLen int, log *zap.Logger) *Summarizer {
	if generator == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = defaultSummaryTimeout
	}
	if maxLogLen <= 0 {
		maxLogLen = 200
	}
	return &Summarizer{
		generator: generator,
		timeout:   timeout,
		maxLogLen: maxLogLen,
		logger:    logger.WithAIFields(log, "", generator.Model()),
	}
}

// Summarize asks the model for a narrative of r.
func (s *Summarizer) Summarize(ctx context.Context, r *Result, c Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	message := buildSummaryMessage(r, c)
	s.logger.Debug("summary request",
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(utils.CollapseWhitespace(message), s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, summarySystem, message)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}

	s.logger.Debug("summary response", zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)))

	var payload struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(ai.ExtractJSON(raw)), &payload); err != nil {
		return "", fmt.Errorf("parse summary: %w", err)
	}

	summary := strings.TrimSpace(payload.Summary)
	if summary == "" {
		return "", errors.New("model returned an empty summary")
	}

	return summary, nil
}

func buildSummaryMessage(r *Result, c Context) string {
	var sb strings.Builder
	if c.JobTitle != "" {
		fmt.Fprintf(&sb, "Job: %s\n", c.JobTitle)
	}
	if c.CandidateName != "" {
		fmt.Fprintf(&sb, "Candidate: %s\n", c.CandidateName)
	}
	fmt.Fprintf(&sb, "Overall score: %d/100\n\n", r.TotalEvaluationScore)

	for _, cat := range r.Evaluations {
		fmt.Fprintf(&sb, "%s: %g/%g\n", cat.Name, cat.TotalScore, cat.ScoreBase)
		for _, it := range cat.Items {
			fmt.Fprintf(&sb, "  - %s: %g/%g\n", it.Name, it.Score, it.ScoreBase)
		}
	}

	return sb.String()
}
