package extract

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// pdfFragments returns one fragment per page.
func pdfFragments(data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		pages = append(pages, text)
	}

	return pages, nil
}

var (
	paragraphEnd = regexp.MustCompile(`</w:p>`)
	lineBreak    = regexp.MustCompile(`<w:(?:br|cr)[^>]*/>`)
	tab          = regexp.MustCompile(`<w:tab[^>]*/>`)
	xmlTag       = regexp.MustCompile(`<[^>]+>`)
)

// docxFragments returns one fragment per paragraph of word/document.xml.
func docxFragments(data []byte) ([]string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()

	paragraphs := paragraphEnd.Split(content, -1)
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = lineBreak.ReplaceAllString(p, "\n")
		p = tab.ReplaceAllString(p, " ")
		p = html.UnescapeString(xmlTag.ReplaceAllString(p, ""))
		out = append(out, p)
	}

	return out, nil
}

var (
	blankLine = regexp.MustCompile(`\n[ \t]*\n`)
	utf16LE   = []byte{0xFF, 0xFE}
	utf16BE   = []byte{0xFE, 0xFF}
)

// textFragments decodes UTF-8, or UTF-16 with a byte order mark, and splits
// paragraphs on blank lines.
func textFragments(data []byte) ([]string, error) {
	hasBOM := bytes.HasPrefix(data, utf16LE) || bytes.HasPrefix(data, utf16BE)
	if !hasBOM && !utf8.Valid(data) {
		return nil, fmt.Errorf("unsupported text encoding")
	}

	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return nil, fmt.Errorf("decode text: %w", err)
	}

	text := strings.ReplaceAll(string(decoded), "\r\n", "\n")
	return blankLine.Split(text, -1), nil
}
