package evaluation

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/cv-screener/internal/apperr"
)

func TestAggregate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		categories []Category
		want       int
	}{
		{name: "no categories", categories: nil, want: 0},
		{name: "zero bases", categories: []Category{{Name: "x", Items: []Item{{Name: "a", Score: 0, ScoreBase: 0}}}}, want: 0},
		{name: "empty category", categories: []Category{{Name: "x"}}, want: 0},
		{
			name: "all items at base",
			categories: []Category{
				{Name: "skills", Items: []Item{{Name: "go", Score: 5, ScoreBase: 5}, {Name: "sql", Score: 3, ScoreBase: 3}}},
				{Name: "culture", Items: []Item{{Name: "communication", Score: 10, ScoreBase: 10}}},
			},
			want: 100,
		},
		{
			name: "weighted by base not by category",
			categories: []Category{
				{Name: "skills", Items: []Item{{Name: "go", Score: 9, ScoreBase: 10}}},
				{Name: "culture", Items: []Item{{Name: "fit", Score: 0, ScoreBase: 30}}},
			},
			want: 23,
		},
		{
			name:       "half rounds away from zero",
			categories: []Category{{Name: "x", Items: []Item{{Name: "a", Score: 1, ScoreBase: 8}}}},
			want:       13,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := Aggregate(tt.categories)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.TotalEvaluationScore)
			assert.NotNil(t, res.Evaluations)
		})
	}
}

func TestAggregateCategoryTotals(t *testing.T) {
	t.Parallel()

	res, err := Aggregate([]Category{
		{Name: " skills ", Items: []Item{{Name: "go", Score: 4, ScoreBase: 5}, {Name: "k8s", Score: 1.5, ScoreBase: 5}}},
	})
	require.NoError(t, err)

	require.Len(t, res.Evaluations, 1)
	c := res.Evaluations[0]
	assert.Equal(t, "skills", c.Name)
	assert.InDelta(t, 5.5, c.TotalScore, 1e-9)
	assert.InDelta(t, 10, c.ScoreBase, 1e-9)
	assert.Equal(t, 55, res.TotalEvaluationScore)
}

func TestAggregateRejectsMalformedItems(t *testing.T) {
	t.Parallel()

	tests := map[string]Item{
		"above base":    {Name: "go", Score: 6, ScoreBase: 5},
		"negative":      {Name: "go", Score: -1, ScoreBase: 5},
		"negative base": {Name: "go", Score: 0, ScoreBase: -5},
		"nan":           {Name: "go", Score: math.NaN(), ScoreBase: 5},
		"inf base":      {Name: "go", Score: 1, ScoreBase: math.Inf(1)},
		"unnamed":       {Name: " ", Score: 1, ScoreBase: 5},
	}

	for name, item := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Aggregate([]Category{{Name: "skills", Items: []Item{item}}})
			require.Error(t, err)
			assert.Equal(t, apperr.KindMalformedEvaluation, apperr.KindOf(err))
		})
	}

	_, err := Aggregate([]Category{{Name: ""}})
	assert.Equal(t, apperr.KindMalformedEvaluation, apperr.KindOf(err))
}

func TestAggregateErrorNamesCategoryAndItem(t *testing.T) {
	t.Parallel()

	_, err := Aggregate([]Category{{Name: "skills", Items: []Item{{Name: "golang", Score: 7, ScoreBase: 5}}}})
	require.Error(t, err)
	assert.Contains(t, apperr.Public(err).Message, `"golang"`)
	assert.Contains(t, apperr.Public(err).Message, `"skills"`)
}

func TestAggregateStaysWithinBounds(t *testing.T) {
	t.Parallel()

	for base := 1; base <= 20; base++ {
		for score := 0; score <= base; score++ {
			res, err := Aggregate([]Category{{Name: "c", Items: []Item{{Name: "i", Score: float64(score), ScoreBase: float64(base)}}}})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, res.TotalEvaluationScore, 0)
			assert.LessOrEqual(t, res.TotalEvaluationScore, 100)
		}
	}
}

type stubGenerator struct {
	response string
	err      error
	message  string
}

func (s *stubGenerator) GenerateContent(_ context.Context, _, message string) (string, error) {
	s.message = message
	return s.response, s.err
}

func (s *stubGenerator) Model() string { return "stub" }

var sample = []Category{
	{Name: "skills", Items: []Item{{Name: "go", Score: 4, ScoreBase: 5}}},
	{Name: "experience", Items: []Item{{Name: "years", Score: 2, ScoreBase: 5}}},
}

func TestEvaluatorAddsSummary(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{response: "```json\n{\"summary\": \"Strong Go skills, limited experience.\"}\n```"}
	e := NewEvaluator(NewSummarizer(stub, 0, 0, nil), nil)

	res, err := e.Evaluate(context.Background(), sample, Context{JobTitle: "Go Developer", CandidateName: "Jane"}, true)
	require.NoError(t, err)
	assert.Equal(t, "Strong Go skills, limited experience.", res.EvaluationSummary)
	assert.Equal(t, 60, res.TotalEvaluationScore)

	assert.Contains(t, stub.message, "Job: Go Developer")
	assert.Contains(t, stub.message, "skills: 4/5")
}

func TestEvaluatorSummaryFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.WarnLevel)
	for _, stub := range []*stubGenerator{
		{err: errors.New("provider down")},
		{response: "not json"},
		{response: `{"summary": "  "}`},
	} {
		e := NewEvaluator(NewSummarizer(stub, 0, 0, nil), zap.New(core))
		res, err := e.Evaluate(context.Background(), sample, Context{}, true)
		require.NoError(t, err)
		assert.Empty(t, res.EvaluationSummary)
		assert.Equal(t, 60, res.TotalEvaluationScore)
	}

	assert.Equal(t, 3, observed.FilterMessage("evaluation summary failed").Len())
}

func TestEvaluatorWithoutSummarizer(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewSummarizer(nil, 0, 0, nil))

	res, err := NewEvaluator(nil, nil).Evaluate(context.Background(), sample, Context{}, true)
	require.NoError(t, err)
	assert.Empty(t, res.EvaluationSummary)

	_, err = NewEvaluator(nil, nil).Evaluate(context.Background(), []Category{{Name: "x", Items: []Item{{Name: "a", Score: 2, ScoreBase: 1}}}}, Context{}, false)
	assert.Equal(t, apperr.KindMalformedEvaluation, apperr.KindOf(err))
}

func TestRecordCloneIsDeep(t *testing.T) {
	t.Parallel()

	var nilRecord *Record
	assert.Nil(t, nilRecord.Clone())

	r := &Record{ID: "r1", Result: Result{Evaluations: []Category{{
		Name:  "Experience",
		Items: []Item{{Name: "Go", Score: 8, ScoreBase: 10}},
	}}}}

	c := r.Clone()
	c.Result.Evaluations[0].Items[0].Score = 999
	c.Result.Evaluations[0].Items = append(c.Result.Evaluations[0].Items, Item{Name: "SQL"})
	c.Result.Evaluations[0].Name = "changed"

	assert.Equal(t, 8.0, r.Result.Evaluations[0].Items[0].Score)
	assert.Len(t, r.Result.Evaluations[0].Items, 1)
	assert.Equal(t, "Experience", r.Result.Evaluations[0].Name)
}
