package ranking

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/evaluation"
)

type minScoreFilter struct {
	disabled bool
	reason   string
	min      int
}

// NewMinScore drops candidates scoring below the configured minimum.
func NewMinScore() Filter {
	return &minScoreFilter{}
}

func (f *minScoreFilter) Name() string { return "min_score" }

func (f *minScoreFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *minScoreFilter) IsEnabled() bool { return !f.disabled }

func (f *minScoreFilter) Validate(cfg *Config) error {
	f.min = 0
	if cfg != nil {
		f.min = cfg.MinScore
	}
	if f.min < 0 || f.min > 100 {
		return fmt.Errorf("minimum score must be within 0..100, got %d", f.min)
	}
	return nil
}

func (f *minScoreFilter) Apply(_ context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	if f.min == 0 {
		return c, Step{Initial: initial, Left: initial}, nil
	}

	excluded := c.Exclude(func(r *evaluation.Record) bool {
		return r.Result.TotalEvaluationScore < f.min
	})
	if len(excluded) > 0 {
		deps.Logger.Info("excluding candidates below minimum score",
			zap.Int("min_score", f.min),
			zap.Strings("excluded_applications", excluded),
			zap.Int("candidates_left", c.Len()),
		)
	}
	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *minScoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"min_score": strconv.Itoa(f.min)},
	}
}

type excludeFileFilter struct {
	path string
}

// NewExcludeFile drops applications listed in the exclude file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(string) {}

func (f *excludeFileFilter) IsEnabled() bool { return true }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	if f.path == "" {
		return c, Step{Initial: initial, Left: initial}, nil
	}

	excluded, err := LoadExcluded(f.path)
	if err != nil {
		return c, Step{}, fmt.Errorf("getting excluded applications from file: %w", err)
	}

	ids := make(map[string]struct{}, len(excluded.Items))
	for _, id := range excluded.IDs() {
		ids[id] = struct{}{}
	}

	removed := c.Exclude(func(r *evaluation.Record) bool {
		_, ok := ids[r.ApplicationID]
		return ok
	})
	if len(removed) > 0 {
		deps.Logger.Info("excluding applications based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_applications", removed),
			zap.Int("candidates_left", c.Len()),
		)
	}
	return c, Step{Initial: initial, Dropped: len(removed), Left: c.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type jobTitleFilter struct {
	title string
}

// NewJobTitle keeps candidates whose job title contains the configured text,
// case-insensitively.
func NewJobTitle() Filter {
	return &jobTitleFilter{}
}

func (f *jobTitleFilter) Name() string { return "job_title" }

func (f *jobTitleFilter) Disable(string) {}

func (f *jobTitleFilter) IsEnabled() bool { return true }

func (f *jobTitleFilter) Validate(cfg *Config) error {
	f.title = ""
	if cfg != nil {
		f.title = strings.ToLower(strings.TrimSpace(cfg.JobTitle))
	}
	return nil
}

func (f *jobTitleFilter) Apply(_ context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	if f.title == "" {
		return c, Step{Initial: initial, Left: initial}, nil
	}

	excluded := c.Exclude(func(r *evaluation.Record) bool {
		return !strings.Contains(strings.ToLower(r.JobTitle), f.title)
	})
	if len(excluded) > 0 {
		deps.Logger.Info("excluding candidates by job title",
			zap.String("job_title", f.title),
			zap.Strings("excluded_applications", excluded),
			zap.Int("candidates_left", c.Len()),
		)
	}
	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *jobTitleFilter) Status() Status {
	details := map[string]string{}
	if f.title != "" {
		details["job_title"] = f.title
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
