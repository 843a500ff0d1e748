// Package evaluation aggregates rubric scores into one normalized result.
package evaluation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spigell/cv-screener/internal/apperr"
)

// Item is one scored rubric criterion.
type Item struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	ScoreBase float64 `json:"scoreBase"`
}

// Category groups items. TotalScore and ScoreBase are computed by Aggregate.
type Category struct {
	Name       string  `json:"name"`
	Items      []Item  `json:"items"`
	TotalScore float64 `json:"totalScore"`
	ScoreBase  float64 `json:"scoreBase"`
}

// Result is the outcome of one screening.
type Result struct {
	Evaluations          []Category `json:"evaluations"`
	TotalEvaluationScore int        `json:"totalEvaluationScore"`
	EvaluationSummary    string     `json:"evaluationSummary,omitempty"`
}

// Record is a stored result with its context. Records are never updated: a
// re-evaluation inserts a new record and the latest one is current.
type Record struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	ProfileID     string    `json:"profileId,omitempty"`
	JobID         string    `json:"jobId,omitempty"`
	JobTitle      string    `json:"jobTitle,omitempty"`
	CandidateName string    `json:"candidateName,omitempty"`
	Result        Result    `json:"result"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Clone returns a copy that shares no memory with r, so a record handed out
// can be changed without touching the stored or cached one.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Result.Evaluations != nil {
		c.Result.Evaluations = make([]Category, len(r.Result.Evaluations))
		for i, cat := range r.Result.Evaluations {
			if cat.Items != nil {
				cat.Items = append(make([]Item, 0, len(cat.Items)), cat.Items...)
			}
			c.Result.Evaluations[i] = cat
		}
	}
	return &c
}

// Aggregate computes category totals and the overall 0-100 score:
// round(100 * sum(score) / sum(scoreBase)), or 0 when the bases sum to 0.
// Items outside [0, scoreBase] are rejected, not clamped.
func Aggregate(categories []Category) (*Result, error) {
	result := &Result{Evaluations: make([]Category, 0, len(categories))}

	var total, base float64
	for ci, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, malformed(fmt.Sprintf("category #%d has no name", ci+1))
		}

		out := Category{Name: name, Items: make([]Item, 0, len(c.Items))}
		for ii, it := range c.Items {
			if err := validateItem(name, ii, it); err != nil {
				return nil, err
			}
			out.Items = append(out.Items, Item{Name: strings.TrimSpace(it.Name), Score: it.Score, ScoreBase: it.ScoreBase})
			out.TotalScore += it.Score
			out.ScoreBase += it.ScoreBase
		}

		total += out.TotalScore
		base += out.ScoreBase
		result.Evaluations = append(result.Evaluations, out)
	}

	if base > 0 {
		result.TotalEvaluationScore = int(math.Round(100 * total / base))
	}

	return result, nil
}

func validateItem(category string, idx int, it Item) error {
	name := strings.TrimSpace(it.Name)
	if name == "" {
		return malformed(fmt.Sprintf("item #%d of category %q has no name", idx+1, category))
	}

	switch {
	case math.IsNaN(it.Score) || math.IsInf(it.Score, 0) || math.IsNaN(it.ScoreBase) || math.IsInf(it.ScoreBase, 0):
		return malformed(fmt.Sprintf("item %q of category %q is not a finite number", name, category))
	case it.ScoreBase < 0:
		return malformed(fmt.Sprintf("item %q of category %q has a negative score base %g", name, category, it.ScoreBase))
	case it.Score < 0 || it.Score > it.ScoreBase:
		return malformed(fmt.Sprintf("item %q of category %q scored %g outside [0, %g]", name, category, it.Score, it.ScoreBase))
	}

	return nil
}

func malformed(msg string) error {
	return apperr.New(apperr.KindMalformedEvaluation, msg)
}
