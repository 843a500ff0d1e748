// Package render turns a Candidate Profile back into a downloadable document.
package render

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/apperr"
	"github.com/spigell/cv-screener/internal/logger"
	"github.com/spigell/cv-screener/internal/profile"
)

// Format is an output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"

	DefaultTimeout = 30 * time.Second

	unavailableMessage = "the document renderer is unavailable, please try again later"
)

// ParseFormat maps "" to PDF and rejects unknown formats.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// Paper is a page size.
type Paper string

const (
	PaperA4     Paper = "a4"
	PaperLetter Paper = "letter"
)

// dimensions returns width and height in inches.
func (p Paper) dimensions() (float64, float64) {
	if p == PaperLetter {
		return 8.5, 11
	}
	return 8.27, 11.69
}

// Document is a rendered file.
type Document struct {
	Bytes       []byte
	ContentType string
	Filename    string
}

// Backend prints HTML to PDF.
type Backend interface {
	PrintPDF(ctx context.Context, html string, paper Paper) ([]byte, error)
}

//go:embed templates/*.tmpl
var templateFiles embed.FS

// Options configure a Renderer.
type Options struct {
	Timeout time.Duration
	Paper   Paper
}

// Renderer binds profiles to the resume template.
type Renderer struct {
	backend Backend
	tmpl    *template.Template
	timeout time.Duration
	paper   Paper
	logger  *zap.Logger
}

// New creates a Renderer. backend may be nil, in which case only HTML can be rendered.
func New(backend Backend, opts Options, log *zap.Logger) (*Renderer, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Paper != PaperLetter {
		opts.Paper = PaperA4
	}

	paper := opts.Paper
	tmpl, err := template.New("resume.html.tmpl").Funcs(template.FuncMap{
		"paper":    func() string { return string(paper) },
		"dates":    dates,
		"join":     func(items []string) string { return strings.Join(items, ", ") },
		"location": location,
	}).ParseFS(templateFiles, "templates/resume.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse resume template: %w", err)
	}

	return &Renderer{
		backend: backend,
		tmpl:    tmpl,
		timeout: opts.Timeout,
		paper:   opts.Paper,
		logger:  logger.OrNop(log),
	}, nil
}

// Render produces the document in format. Backend failures and timeouts are
// reported as apperr.KindRenderUnavailable and are not retried.
func (r *Renderer) Render(ctx context.Context, p *profile.Profile, format Format) (*Document, error) {
	if p == nil {
		return nil, apperr.New(apperr.KindInvalidInput, "profile is required")
	}

	html, err := r.HTML(p)
	if err != nil {
		return nil, err
	}

	base := filename(p.Basics.Name)
	if format == FormatHTML {
		return &Document{Bytes: []byte(html), ContentType: "text/html; charset=utf-8", Filename: base + ".html"}, nil
	}

	if r.backend == nil {
		return nil, apperr.Wrap(apperr.KindRenderUnavailable, unavailableMessage, errors.New("no pdf backend configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	pdf, err := r.backend.PrintPDF(ctx, html, r.paper)
	if err == nil && len(pdf) == 0 {
		err = errors.New("backend returned an empty document")
	}
	if err != nil {
		r.logger.Warn("pdf rendering failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindRenderUnavailable, unavailableMessage, err)
	}

	r.logger.Debug("pdf rendered", zap.Int("bytes", len(pdf)), zap.Duration("elapsed", time.Since(started)))

	return &Document{Bytes: pdf, ContentType: "application/pdf", Filename: base + ".pdf"}, nil
}

// HTML binds p to the template.
func (r *Renderer) HTML(p *profile.Profile) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, p); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "could not render the profile", err)
	}
	return buf.String(), nil
}

func dates(start, end string) string {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	switch {
	case start == "" && end == "":
		return ""
	case end == "":
		return start + " – present"
	case start == "":
		return end
	default:
		return start + " – " + end
	}
}

func location(l profile.Location) string {
	parts := make([]string, 0, 3)
	for _, v := range []string{l.City, l.Region, l.CountryCode} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

var nonSlug = regexp.MustCompile(`[^\p{L}\p{N}]+`)

func filename(name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "resume"
	}
	return slug
}
