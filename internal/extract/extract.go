// Package extract turns an uploaded resume document into plain text fragments.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/apperr"
	"github.com/spigell/cv-screener/internal/logger"
)

const (
	DefaultTimeout  = 20 * time.Second
	DefaultMaxBytes = 10 << 20

	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain"

	unreadableMessage = "the document could not be read, please upload a PDF, DOCX or plain text file"
)

// Handle points at a document. Data wins over Path, Path wins over URL.
type Handle struct {
	Name string
	URL  string
	Path string
	Data []byte
}

// Ref is the stored document reference handed back to callers.
func (h Handle) Ref() string {
	switch {
	case h.URL != "":
		return h.URL
	case h.Path != "":
		return h.Path
	default:
		return h.Name
	}
}

// Extraction is the text of a document in reading order.
type Extraction struct {
	Text          string
	Fragments     []string
	FragmentCount int
	MIME          string
	Bytes         int
}

// Options configure an Extractor.
type Options struct {
	Timeout    time.Duration
	MaxBytes   int64
	HTTPClient *http.Client
}

// Extractor reads PDF, DOCX and plain text documents.
type Extractor struct {
	timeout    time.Duration
	maxBytes   int64
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates an Extractor with defaults for zero options.
func New(opts Options, log *zap.Logger) *Extractor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Extractor{
		timeout:    opts.Timeout,
		maxBytes:   opts.MaxBytes,
		httpClient: opts.HTTPClient,
		logger:     logger.OrNop(log),
	}
}

// Extract loads the document behind h and returns its text. Every failure is
// reported as apperr.KindDocumentUnreadable.
func (e *Extractor) Extract(ctx context.Context, h Handle) (*Extraction, error) {
	log := e.logger.With(zap.String(logger.FieldDocument, h.Ref()))

	data, err := e.load(ctx, h)
	if err != nil {
		log.Warn("failed to load document", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindDocumentUnreadable, unreadableMessage, err)
	}

	ext, err := Parse(data)
	if err != nil {
		log.Warn("failed to extract document text", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindDocumentUnreadable, unreadableMessage, err)
	}

	log.Debug("document extracted",
		zap.String("mime", ext.MIME),
		zap.Int("bytes", ext.Bytes),
		zap.Int("fragments", ext.FragmentCount),
	)

	return ext, nil
}

func (e *Extractor) load(ctx context.Context, h Handle) ([]byte, error) {
	switch {
	case len(h.Data) > 0:
		if int64(len(h.Data)) > e.maxBytes {
			return nil, fmt.Errorf("document is larger than %d bytes", e.maxBytes)
		}
		return h.Data, nil
	case h.Path != "":
		info, err := os.Stat(h.Path)
		if err != nil {
			return nil, err
		}
		if info.Size() > e.maxBytes {
			return nil, fmt.Errorf("document is larger than %d bytes", e.maxBytes)
		}
		return os.ReadFile(h.Path)
	case h.URL != "":
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		return e.fetch(ctx, h.URL)
	default:
		return nil, errors.New("empty document handle")
	}
}

// Parse sniffs data and dispatches to the matching reader. Reader panics on
// malformed binaries are returned as errors.
func Parse(data []byte) (ext *Extraction, err error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("document is empty")
	}

	defer func() {
		if r := recover(); r != nil {
			ext = nil
			err = fmt.Errorf("document parser panicked: %v", r)
		}
	}()

	detected := mimetype.Detect(data)

	var fragments []string
	switch {
	case detected.Is(mimePDF):
		fragments, err = pdfFragments(data)
	case detected.Is(mimeDOCX):
		fragments, err = docxFragments(data)
	case isText(detected):
		fragments, err = textFragments(data)
	default:
		return nil, fmt.Errorf("unsupported document type %s", detected.String())
	}
	if err != nil {
		return nil, err
	}

	fragments = compact(fragments)
	if len(fragments) == 0 {
		return nil, fmt.Errorf("no text found in %s document", detected.String())
	}

	return &Extraction{
		Text:          strings.Join(fragments, "\n\n"),
		Fragments:     fragments,
		FragmentCount: len(fragments),
		MIME:          detected.String(),
		Bytes:         len(data),
	}, nil
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(mimeText) {
			return true
		}
	}
	return false
}

var spaceRun = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)

func compact(fragments []string) []string {
	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		lines := strings.Split(f, "\n")
		kept := lines[:0]
		for _, line := range lines {
			line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
			if line != "" {
				kept = append(kept, line)
			}
		}
		if len(kept) > 0 {
			out = append(out, strings.Join(kept, "\n"))
		}
	}
	return out
}
