// Package screening is the facade the commands use: profile ingestion,
// conversation turns, evaluation reads and writes, document export and
// candidate ranking.
package screening

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/apperr"
	"github.com/spigell/cv-screener/internal/cache"
	"github.com/spigell/cv-screener/internal/conversation"
	"github.com/spigell/cv-screener/internal/evaluation"
	"github.com/spigell/cv-screener/internal/export"
	"github.com/spigell/cv-screener/internal/extract"
	"github.com/spigell/cv-screener/internal/logger"
	"github.com/spigell/cv-screener/internal/profile"
	"github.com/spigell/cv-screener/internal/ranking"
	"github.com/spigell/cv-screener/internal/render"
	"github.com/spigell/cv-screener/internal/store"
)

// Extractor reads documents.
type Extractor interface {
	Extract(ctx context.Context, h extract.Handle) (*extract.Extraction, error)
}

// Structurer turns extracted text into a profile.
type Structurer interface {
	Structure(ctx context.Context, ext *extract.Extraction) (*profile.Profile, error)
}

// Renderer renders a profile for download.
type Renderer interface {
	Render(ctx context.Context, p *profile.Profile, format render.Format) (*render.Document, error)
}

// Caches is the process cache of the service.
type Caches = cache.SessionCache[*conversation.Session, *evaluation.Record]

// NewCaches creates the caches with the given lifetimes.
func NewCaches(ttls cache.TTLs, opts ...cache.Option) *Caches {
	return cache.NewSessionCache[*conversation.Session, *evaluation.Record](ttls, opts...)
}

// Deps are the collaborators of a Service. Engine must share Caches.
type Deps struct {
	Extractor   Extractor
	Structurer  Structurer
	Renderer    Renderer
	Engine      *conversation.Engine
	Evaluator   *evaluation.Evaluator
	Profiles    store.ProfileStore
	Evaluations store.EvaluationStore
	Caches      *Caches
	Now         func() time.Time
}

// Service implements the external operations of the pipeline.
type Service struct {
	deps     Deps
	validate *validator.Validate
	newID    func() string
	logger   *zap.Logger
}

// New creates a Service.
func New(deps Deps, log *zap.Logger) (*Service, error) {
	switch {
	case deps.Extractor == nil, deps.Structurer == nil:
		return nil, errors.New("extractor and structurer are required")
	case deps.Engine == nil:
		return nil, errors.New("conversation engine is required")
	case deps.Profiles == nil, deps.Evaluations == nil:
		return nil, errors.New("profile and evaluation stores are required")
	case deps.Renderer == nil:
		return nil, errors.New("renderer is required")
	}
	if deps.Evaluator == nil {
		deps.Evaluator = evaluation.NewEvaluator(nil, log)
	}
	if deps.Caches == nil {
		deps.Caches = NewCaches(cache.TTLs{})
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Service{
		deps:     deps,
		validate: newValidator(),
		newID:    uuid.NewString,
		logger:   logger.OrNop(log),
	}, nil
}

// Ingest extracts, structures and stores a document.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*Ingestion, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	handle := extract.Handle{Name: req.Name, URL: req.URL, Path: req.Path, Data: req.Data}
	log := s.logger.With(zap.String(logger.FieldDocument, handle.Ref()))

	ext, err := s.deps.Extractor.Extract(ctx, handle)
	if err != nil {
		log.Warn("document extraction failed", zap.Error(err))
		return nil, err
	}

	p, err := s.deps.Structurer.Structure(ctx, ext)
	if err != nil {
		log.Warn("profile structuring failed", zap.Error(err))
		return nil, err
	}

	now := s.deps.Now()
	stored := &store.StoredProfile{
		ID:          s.newID(),
		DocumentRef: handle.Ref(),
		Profile:     p,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.deps.Profiles.SaveProfile(ctx, stored); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "could not store the profile", err)
	}

	log.Info("profile ingested",
		zap.String(logger.FieldProfileID, stored.ID),
		zap.Int("fragments", ext.FragmentCount),
	)
	return &Ingestion{ProfileID: stored.ID, DocumentRef: stored.DocumentRef, Profile: p}, nil
}

// Profile returns a stored profile.
func (s *Service) Profile(ctx context.Context, id string) (*store.StoredProfile, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "profile id is required")
	}
	p, err := s.deps.Profiles.GetProfile(ctx, id)
	if err != nil {
		return nil, storeError(err, "profile")
	}
	return p, nil
}

// ReplaceSection swaps one section of a stored profile.
func (s *Service) ReplaceSection(ctx context.Context, req SectionRequest) (*store.StoredProfile, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	p, err := s.deps.Profiles.ReplaceSection(ctx, req.ProfileID, req.Section, req.Value)
	if errors.Is(err, store.ErrNotFound) {
		return nil, storeError(err, "profile")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, fmt.Sprintf("could not replace section %q", req.Section), err)
	}
	return p, nil
}

// Turn applies one conversation input.
func (s *Service) Turn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	res, err := s.deps.Engine.Turn(ctx, conversation.TurnInput{
		SessionID:    req.SessionID,
		LanguageHint: req.LanguageHint,
		UserInput:    req.UserInput,
	})
	if err != nil {
		return nil, err
	}
	return toResponse(res), nil
}

// Edit replaces one collected field of a session.
func (s *Service) Edit(ctx context.Context, req EditRequest) (*TurnResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	field, err := conversation.ParseField(req.Field)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, "unknown field", err)
	}

	res, err := s.deps.Engine.Edit(ctx, req.SessionID, field, req.Value)
	if err != nil {
		return nil, err
	}
	return toResponse(res), nil
}

// Restart sends a session back to the initial step.
func (s *Service) Restart(ctx context.Context, sessionID string) (*TurnResponse, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "session id is required")
	}
	res, err := s.deps.Engine.Restart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return toResponse(res), nil
}

// Session reads one session through the short-lived cache.
func (s *Service) Session(ctx context.Context, id string) (*conversation.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "session id is required")
	}
	return s.deps.Engine.Session(ctx, id)
}

// Sessions lists sessions through the long-lived cache.
func (s *Service) Sessions(ctx context.Context) ([]*conversation.Session, error) {
	return s.deps.Engine.Sessions(ctx)
}

func toResponse(res *conversation.TurnResult) *TurnResponse {
	session := res.Session
	return &TurnResponse{
		SessionID:       session.ID,
		Step:            session.Step.String(),
		PromptText:      res.Prompt,
		CollectedFields: session.Fields,
		Language:        string(session.Language),
		RecordID:        session.RecordID,
		Failure:         res.Failure,
	}
}

// Evaluate aggregates scores and stores a new immutable record.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) (*evaluation.Record, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	if req.CandidateName == "" && req.ProfileID != "" {
		if p, err := s.deps.Profiles.GetProfile(ctx, req.ProfileID); err == nil && p.Profile != nil {
			req.CandidateName = p.Profile.Basics.Name
		} else if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("could not load profile for evaluation context",
				zap.String(logger.FieldProfileID, req.ProfileID), zap.Error(err))
		}
	}

	result, err := s.deps.Evaluator.Evaluate(ctx, req.Categories,
		evaluation.Context{JobTitle: req.JobTitle, CandidateName: req.CandidateName}, req.WithSummary)
	if err != nil {
		return nil, err
	}

	record := &evaluation.Record{
		ID:            s.newID(),
		ApplicationID: req.ApplicationID,
		ProfileID:     req.ProfileID,
		JobID:         req.JobID,
		JobTitle:      req.JobTitle,
		CandidateName: req.CandidateName,
		Result:        *result,
		CreatedAt:     s.deps.Now(),
	}
	if err := s.deps.Evaluations.InsertEvaluation(ctx, record); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "could not store the evaluation", err)
	}
	s.deps.Caches.Evaluations.Invalidate(req.ApplicationID)

	s.logger.Info("evaluation stored",
		zap.String(logger.FieldApplicationID, req.ApplicationID),
		zap.Int("total_score", result.TotalEvaluationScore),
	)
	return record.Clone(), nil
}

// ReadEvaluation returns the current evaluation of an application, served
// from cache while it has not changed.
func (s *Service) ReadEvaluation(ctx context.Context, applicationID string) (*evaluation.Record, error) {
	if strings.TrimSpace(applicationID) == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "application id is required")
	}

	record, err := s.deps.Caches.Evaluations.GetOrFetch(ctx, applicationID, func(ctx context.Context) (*evaluation.Record, error) {
		r, err := s.deps.Evaluations.LatestEvaluation(ctx, applicationID)
		if err != nil {
			return nil, storeError(err, "evaluation")
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	return record.Clone(), nil
}

// Export renders a profile.
func (s *Service) Export(ctx context.Context, req ExportRequest) (*render.Document, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	p := req.Profile
	if p == nil {
		stored, err := s.Profile(ctx, req.ProfileID)
		if err != nil {
			return nil, err
		}
		p = stored.Profile
	}
	profile.Normalize(p)

	format := req.Format
	if format == "" {
		format = render.FormatPDF
	}
	return s.deps.Renderer.Render(ctx, p, format)
}

// Rank filters and orders the current evaluations.
func (s *Service) Rank(ctx context.Context, cfg *ranking.Config, steps []ranking.Filter) (*ranking.Candidates, error) {
	if cfg == nil {
		cfg = &ranking.Config{}
	}
	if err := s.validate.Struct(cfg); err != nil {
		return nil, validationError(err)
	}
	if steps == nil {
		steps = ranking.Default()
	}

	records, err := s.deps.Evaluations.ListEvaluations(ctx, cfg.JobID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "could not list evaluations", err)
	}

	ranked, err := ranking.Run(ctx, cfg, ranking.Deps{Logger: s.logger}, steps, ranking.NewCandidates(records))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, "could not rank candidates", err)
	}
	return ranked, nil
}

// Workbook writes the ranked candidates as an Excel workbook.
func (s *Service) Workbook(ctx context.Context, cfg *ranking.Config, title string, w io.Writer) error {
	ranked, err := s.Rank(ctx, cfg, nil)
	if err != nil {
		return err
	}
	return export.Write(w, export.Report{Title: title, GeneratedAt: s.deps.Now(), Records: ranked.Items})
}

func storeError(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, what+" not found", err)
	}
	return apperr.Wrap(apperr.KindInternal, "could not load the "+what, err)
}
