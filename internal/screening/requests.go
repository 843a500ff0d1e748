package screening

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spigell/cv-screener/internal/apperr"
	"github.com/spigell/cv-screener/internal/conversation"
	"github.com/spigell/cv-screener/internal/evaluation"
	"github.com/spigell/cv-screener/internal/profile"
	"github.com/spigell/cv-screener/internal/render"
)

// IngestRequest carries one document. At least one of Data, Path or URL is set.
type IngestRequest struct {
	Name string `validate:"max=255"`
	URL  string `validate:"omitempty,url"`
	Path string
	Data []byte `validate:"required_without_all=Path URL"`
}

// Ingestion is the outcome of a profile ingestion.
type Ingestion struct {
	ProfileID   string           `json:"profileId"`
	DocumentRef string           `json:"documentRef"`
	Profile     *profile.Profile `json:"profile"`
}

// TurnRequest is one conversation input. An empty SessionID starts a session.
type TurnRequest struct {
	SessionID    string `json:"sessionId" validate:"omitempty,max=128"`
	LanguageHint string `json:"languageHint,omitempty" validate:"omitempty,max=35"`
	UserInput    string `json:"userInput" validate:"max=8000"`
}

// EditRequest replaces one collected field.
type EditRequest struct {
	SessionID string `validate:"required"`
	Field     string `validate:"required"`
	Value     string `validate:"required"`
}

// TurnResponse is the externally visible state after a turn.
type TurnResponse struct {
	SessionID       string              `json:"sessionId"`
	Step            string              `json:"step"`
	PromptText      string              `json:"promptText"`
	CollectedFields conversation.Fields `json:"collectedFields"`
	Language        string              `json:"language"`
	RecordID        string              `json:"recordId,omitempty"`
	Failure         *apperr.PublicError `json:"failure,omitempty"`
}

// EvaluateRequest carries rubric scores for one application. The category
// list is atomic: it is aggregated as a whole or rejected.
type EvaluateRequest struct {
	ApplicationID string                `json:"applicationId" validate:"required"`
	ProfileID     string                `json:"profileId,omitempty"`
	JobID         string                `json:"jobId,omitempty"`
	JobTitle      string                `json:"jobTitle,omitempty"`
	CandidateName string                `json:"candidateName,omitempty"`
	Categories    []evaluation.Category `json:"categories"`
	WithSummary   bool                  `json:"withSummary,omitempty"`
}

// ExportRequest selects a profile by id or carries it inline.
type ExportRequest struct {
	ProfileID string           `validate:"required_without=Profile"`
	Profile   *profile.Profile `validate:"required_without=ProfileID"`
	Format    render.Format
}

// SectionRequest replaces one profile section with raw JSON.
type SectionRequest struct {
	ProfileID string `validate:"required"`
	Section   string `validate:"required"`
	Value     []byte `validate:"required"`
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// validationError maps validator output onto KindInvalidInput.
func validationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return apperr.Wrap(apperr.KindInvalidInput, "invalid request", err)
	}

	parts := make([]string, 0, len(ves))
	for _, ve := range ves {
		parts = append(parts, fmt.Sprintf("%s: %s", ve.Namespace(), ve.Tag()))
	}
	return apperr.Wrap(apperr.KindInvalidInput, "invalid request: "+strings.Join(parts, ", "), err)
}
