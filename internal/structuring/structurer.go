// Package structuring converts extracted resume text into a Candidate Profile
// with a single generation request.
package structuring

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/ai"
	"github.com/spigell/cv-screener/internal/apperr"
	"github.com/spigell/cv-screener/internal/extract"
	"github.com/spigell/cv-screener/internal/logger"
	"github.com/spigell/cv-screener/internal/profile"
	"github.com/spigell/cv-screener/internal/utils"
)

const (
	DefaultTimeout      = 60 * time.Second
	defaultMaxLogLength = 200

	failedMessage = "we could not read the resume right now, please try again later"
)

//go:embed prompt.md
var promptTemplate string

// Options configure a Structurer.
type Options struct {
	Timeout      time.Duration
	MaxLogLength int
}

// Structurer asks a Generator for a profile and validates the answer.
type Structurer struct {
	generator ai.Generator
	timeout   time.Duration
	maxLogLen int
	logger    *zap.Logger
	system    string
}

// New creates a Structurer.
func New(generator ai.Generator, opts Options, log *zap.Logger) *Structurer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}

	model := ""
	if generator != nil {
		model = generator.Model()
	}

	return &Structurer{
		generator: generator,
		timeout:   opts.Timeout,
		maxLogLen: opts.MaxLogLength,
		logger:    logger.WithFields(log, logger.AIFields("", model)...),
		system:    buildSystemPrompt(),
	}
}

// Structure returns a complete profile for ext. Generation, parse and schema
// failures are reported as apperr.KindStructuringFailed with a generic message.
func (s *Structurer) Structure(ctx context.Context, ext *extract.Extraction) (*profile.Profile, error) {
	if ext == nil || strings.TrimSpace(ext.Text) == "" {
		return nil, apperr.New(apperr.KindDocumentUnreadable, "the document contains no text")
	}
	if s.generator == nil {
		return nil, apperr.Wrap(apperr.KindStructuringFailed, failedMessage, errors.New("no generator configured"))
	}

	message := "Resume text:\n" + ext.Text

	s.logger.Debug("structuring request",
		zap.Int("fragments", ext.FragmentCount),
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(utils.CollapseWhitespace(message), s.maxLogLen)),
	)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	raw, err := s.generator.GenerateContent(ctx, s.system, message)
	if err != nil {
		s.logger.Warn("structuring call failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStructuringFailed, failedMessage, err)
	}

	s.logger.Debug("structuring response",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	p, err := parseResponse(raw)
	if err != nil {
		s.logger.Warn("structuring response rejected", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStructuringFailed, failedMessage, err)
	}

	return p, nil
}

func buildSystemPrompt() string {
	prompt := strings.ReplaceAll(promptTemplate, "{{SCHEMA_DESCRIPTION}}", profile.SchemaDescription())
	return strings.ReplaceAll(prompt, "{{SCHEMA_JSON}}", profile.SchemaJSON())
}

func parseResponse(raw string) (*profile.Profile, error) {
	cleaned := ai.ExtractJSON(raw)
	if cleaned == "" {
		return nil, errors.New("response contains no json object")
	}

	p, err := profile.Parse([]byte(cleaned))
	if err != nil {
		return nil, fmt.Errorf("parse structuring response: %w", err)
	}

	return p, nil
}
