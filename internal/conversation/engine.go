// Package conversation drives the multi-step collection of a job posting.
//
// A session only moves forward through the fixed step order. The only
// backward move is an explicit Restart. Concurrent turns on one session are
// serialised through the session cache write slot.
package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/apperr"
	"github.com/spigell/cv-screener/internal/cache"
	"github.com/spigell/cv-screener/internal/language"
	"github.com/spigell/cv-screener/internal/logger"
	"github.com/spigell/cv-screener/internal/prompts"
)

// ErrNotFound is returned by a SessionStore for unknown ids.
var ErrNotFound = errors.New("session not found")

// SessionStore persists sessions.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*Session, error)
	SaveSession(ctx context.Context, s *Session) error
	ListSessions(ctx context.Context) ([]*Session, error)
}

// Posting is the record created when the actor confirms.
type Posting struct {
	SessionID string
	Language  language.Tag
	Fields
}

// Record identifies a created posting.
type Record struct {
	ID    string
	Title string
}

// RecordCreator creates the downstream job posting.
type RecordCreator interface {
	CreatePosting(ctx context.Context, p Posting) (Record, error)
}

// TurnInput is one actor message. An empty SessionID starts a new session.
type TurnInput struct {
	SessionID    string
	LanguageHint string
	UserInput    string
}

// TurnResult is the engine answer to one input.
type TurnResult struct {
	Session *Session
	Prompt  string
	// Failure is set when the turn was accepted but its action failed, such
	// as a posting that could not be created.
	Failure *apperr.PublicError
}

// Caches are the two cache classes the engine keeps current.
type Caches struct {
	Sessions *cache.Cache[*Session]
	Lists    *cache.Cache[[]*Session]
}

// Engine runs conversation turns.
type Engine struct {
	store           SessionStore
	records         RecordCreator
	catalog         *prompts.Catalog
	caches          Caches
	defaultLanguage language.Tag
	now             func() time.Time
	newID           func() string
	logger          *zap.Logger
}

// Options configure an Engine.
type Options struct {
	DefaultLanguage language.Tag
	Now             func() time.Time
}

// NewEngine wires an Engine. Nil caches get fresh defaults.
func NewEngine(store SessionStore, records RecordCreator, catalog *prompts.Catalog, caches Caches, opts Options, log *zap.Logger) *Engine {
	if caches.Sessions == nil {
		caches.Sessions = cache.New[*Session](cache.DefaultSessionTTL)
	}
	if caches.Lists == nil {
		caches.Lists = cache.New[[]*Session](cache.DefaultListTTL)
	}
	if !language.IsSupported(opts.DefaultLanguage) {
		opts.DefaultLanguage = language.Default
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		store:           store,
		records:         records,
		catalog:         catalog,
		caches:          caches,
		defaultLanguage: opts.DefaultLanguage,
		now:             opts.Now,
		newID:           uuid.NewString,
		logger:          logger.OrNop(log),
	}
}

// Start creates a session at the initial step and returns the greeting.
func (e *Engine) Start(ctx context.Context, languageHint string) (*TurnResult, error) {
	lang := e.defaultLanguage
	if hint, ok := language.ParseHint(languageHint); ok {
		lang = hint
	}

	now := e.now()
	s := &Session{
		ID:        e.newID(),
		Language:  lang,
		Step:      StepInitial,
		History:   []Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	prompt := e.catalog.Render(s.Language, StepInitial.String(), "")
	e.record(s, RoleAssistant, prompt)

	if err := e.store.SaveSession(ctx, s); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "could not start the conversation", err)
	}

	e.caches.Sessions.Put(s.ID, s.Clone())
	e.caches.Lists.Invalidate(cache.ListKey)
	e.logger.Info("conversation started", logger.SessionFields(s.ID, string(s.Language), s.Step.String())...)

	return &TurnResult{Session: s.Clone(), Prompt: prompt}, nil
}

// Turn applies one actor input. Without a session id a session is started
// first and a non-blank input is applied to it.
func (e *Engine) Turn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		started, err := e.Start(ctx, in.LanguageHint)
		if err != nil || strings.TrimSpace(in.UserInput) == "" {
			return started, err
		}
		in.SessionID = started.Session.ID
	}

	return e.mutate(ctx, in.SessionID, func(s *Session) (*TurnResult, error) {
		return e.advance(ctx, s, in), nil
	})
}

// Edit replaces one collected field without moving the step. Completed
// sessions are read only.
func (e *Engine) Edit(ctx context.Context, sessionID string, field Field, value string) (*TurnResult, error) {
	if _, err := ParseField(string(field)); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, "unknown field", err)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "the new value must not be empty")
	}

	return e.mutate(ctx, sessionID, func(s *Session) (*TurnResult, error) {
		if s.Completed() {
			return nil, apperr.New(apperr.KindInvalidInput, "the posting has already been created")
		}

		s.Fields.set(field, value)
		e.record(s, RoleUser, value)

		prompt := e.promptFor(s)
		e.record(s, RoleAssistant, prompt)
		return &TurnResult{Session: s, Prompt: prompt}, nil
	})
}

// Restart returns the session to the initial step with an empty draft.
func (e *Engine) Restart(ctx context.Context, sessionID string) (*TurnResult, error) {
	return e.mutate(ctx, sessionID, func(s *Session) (*TurnResult, error) {
		s.Step = StepInitial
		s.Fields = Fields{}
		s.RecordID, s.RecordTitle = "", ""

		prompt := e.catalog.Render(s.Language, StepInitial.String(), "")
		e.record(s, RoleAssistant, prompt)
		return &TurnResult{Session: s, Prompt: prompt}, nil
	})
}

// Session returns one session, from cache when fresh.
func (e *Engine) Session(ctx context.Context, id string) (*Session, error) {
	s, err := e.caches.Sessions.GetOrFetch(ctx, id, func(ctx context.Context) (*Session, error) {
		return e.load(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// Sessions lists every session, from cache when fresh.
func (e *Engine) Sessions(ctx context.Context) ([]*Session, error) {
	list, err := e.caches.Lists.GetOrFetch(ctx, cache.ListKey, func(ctx context.Context) ([]*Session, error) {
		sessions, err := e.store.ListSessions(ctx)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "could not list conversations", err)
		}
		return sessions, nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*Session, 0, len(list))
	for _, s := range list {
		out = append(out, s.Clone())
	}
	return out, nil
}

func (e *Engine) load(ctx context.Context, id string) (*Session, error) {
	s, err := e.store.GetSession(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, apperr.Wrap(apperr.KindSessionNotFound, "conversation not found", err)
	case err != nil:
		return nil, apperr.Wrap(apperr.KindInternal, "could not load the conversation", err)
	case s == nil:
		return nil, apperr.New(apperr.KindSessionNotFound, "conversation not found")
	}
	return s, nil
}

// mutate holds the session write slot while apply runs, then persists and
// publishes the new state before releasing it.
func (e *Engine) mutate(ctx context.Context, id string, apply func(*Session) (*TurnResult, error)) (*TurnResult, error) {
	w, err := e.caches.Sessions.BeginWrite(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "the conversation is busy, please retry", err)
	}

	s, err := e.load(ctx, id)
	if err != nil {
		w.Abort()
		return nil, err
	}

	before := s.Step
	result, err := apply(s)
	if err != nil {
		w.Abort()
		return nil, err
	}

	s.UpdatedAt = e.now()
	if err := e.store.SaveSession(ctx, s); err != nil {
		w.Abort()
		return nil, apperr.Wrap(apperr.KindInternal, "could not save the conversation", err)
	}

	w.Commit(s.Clone())
	e.caches.Lists.Invalidate(cache.ListKey)

	fields := logger.SessionFields(s.ID, string(s.Language), s.Step.String())
	if before != s.Step {
		fields = append(fields, zap.Stringer("from", before))
	}
	e.logger.Debug("conversation turn applied", fields...)

	result.Session = s.Clone()
	return result, nil
}

func (e *Engine) advance(ctx context.Context, s *Session, in TurnInput) *TurnResult {
	input := strings.TrimSpace(in.UserInput)
	e.resolveLanguage(s, in.LanguageHint, input)
	if input != "" {
		e.record(s, RoleUser, input)
	}

	result := &TurnResult{}

	switch step := s.Step; {
	case step == StepInitial && input == "":
		s.Step = StepCollectingTitle
		result.Prompt = e.promptFor(s)

	case collects[step] != "":
		if input == "" {
			result.Prompt = e.join(e.catalog.Render(s.Language, prompts.KeyInvalidInput, ""), e.promptFor(s))
			break
		}
		s.Fields.set(collects[step], input)
		s.Step = step.Next()
		if step == StepInitial {
			s.Step = StepCollectingDescription
		}
		result.Prompt = e.promptFor(s)

	case step == StepReadyToCreate:
		if !isAffirmative(input) {
			result.Prompt = e.join(e.catalog.Render(s.Language, prompts.KeyConfirmReprompt, ""), e.promptFor(s))
			break
		}

		rec, err := e.records.CreatePosting(ctx, Posting{SessionID: s.ID, Language: s.Language, Fields: s.Fields})
		if err != nil {
			e.logger.Warn("failed to create posting", append(logger.SessionFields(s.ID, string(s.Language), s.Step.String()), zap.Error(err))...)
			msg := reason(err)
			result.Prompt = e.catalog.Render(s.Language, prompts.KeyCreationFailed, msg)
			if msg == "" {
				msg = "the posting could not be created"
			}
			result.Failure = &apperr.PublicError{Kind: apperr.KindRecordCreationFailed, Message: msg}
			break
		}

		s.RecordID = rec.ID
		s.RecordTitle = rec.Title
		if s.RecordTitle == "" {
			s.RecordTitle = s.Fields.Title
		}
		s.Step = StepCompletion
		e.logger.Info("posting created", zap.String("record_id", rec.ID), zap.String(logger.FieldSessionID, s.ID))
		result.Prompt = e.promptFor(s)

	default:
		// Completion is idempotent: the stored record is shown again.
		result.Prompt = e.promptFor(s)
	}

	e.record(s, RoleAssistant, result.Prompt)
	return result
}

// resolveLanguage applies the sticky rule: an explicit hint always wins,
// otherwise the language only changes when a script rule matched the input.
// A broad block match (plain Cyrillic, plain Han) does not move a session
// that is already in a language of that block.
func (e *Engine) resolveLanguage(s *Session, hint, input string) {
	if tag, ok := language.ParseHint(hint); ok {
		s.Language = tag
		return
	}
	if !language.IsSupported(s.Language) {
		s.Language = e.defaultLanguage
	}
	if input == "" {
		return
	}
	r := language.DetectResult(input)
	if r.Matched && r.Tag != s.Language && !(r.Broad && language.SameFamily(r.Tag, s.Language)) {
		e.logger.Debug("conversation language switched",
			zap.String(logger.FieldSessionID, s.ID),
			zap.String("from", string(s.Language)),
			zap.String("to", string(r.Tag)),
		)
		s.Language = r.Tag
	}
}

func (e *Engine) promptFor(s *Session) string {
	value := ""
	switch s.Step {
	case StepReadyToCreate:
		value = s.Fields.Title
	case StepCompletion:
		value = s.RecordTitle
	}
	return e.catalog.Render(s.Language, s.Step.String(), value)
}

func (e *Engine) join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func (e *Engine) record(s *Session, role Role, text string) {
	s.History = append(s.History, Turn{Role: role, Text: text, Step: s.Step, At: e.now()})
}

// reason is the actor-safe part of a creation error.
func reason(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind != apperr.KindInternal {
		return ae.Message
	}
	return ""
}
