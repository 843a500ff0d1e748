package ranking

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spigell/cv-screener/internal/evaluation"
)

// Candidates is the working set of evaluation records.
type Candidates struct {
	Items []*evaluation.Record
}

// NewCandidates wraps records; the slice is copied.
func NewCandidates(records []*evaluation.Record) *Candidates {
	return &Candidates{Items: append([]*evaluation.Record(nil), records...)}
}

func (c *Candidates) Len() int {
	return len(c.Items)
}

// Exclude removes every record matching drop and returns their application ids.
func (c *Candidates) Exclude(drop func(*evaluation.Record) bool) []string {
	var excluded []string
	kept := c.Items[:0]
	for _, r := range c.Items {
		if drop(r) {
			excluded = append(excluded, r.ApplicationID)
			continue
		}
		kept = append(kept, r)
	}
	c.Items = kept
	return excluded
}

// Rank orders by total score, highest first. Equal scores keep the earlier
// evaluation first, then the application id decides.
func (c *Candidates) Rank() {
	sort.SliceStable(c.Items, func(i, j int) bool {
		a, b := c.Items[i], c.Items[j]
		if a.Result.TotalEvaluationScore != b.Result.TotalEvaluationScore {
			return a.Result.TotalEvaluationScore > b.Result.TotalEvaluationScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ApplicationID < b.ApplicationID
	})
}

// ApplicationIDs returns ids in the current order.
func (c *Candidates) ApplicationIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, r := range c.Items {
		ids = append(ids, r.ApplicationID)
	}
	return ids
}

// ReportByJob groups the candidates by job for display.
func (c *Candidates) ReportByJob() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for i, r := range c.Items {
		key := r.JobTitle
		if r.JobID != "" {
			key = fmt.Sprintf("%s (%s)", r.JobTitle, r.JobID)
		}
		report[key] = append(report[key], map[string]string{
			"rank":        strconv.Itoa(i + 1),
			"application": r.ApplicationID,
			"candidate":   r.CandidateName,
			"score":       strconv.Itoa(r.Result.TotalEvaluationScore),
			"summary":     r.Result.EvaluationSummary,
		})
	}
	return report
}
