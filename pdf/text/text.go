// Package text extracts the text of PDF pages from their content streams.
//
// Each page yields one string in content order together with spans that
// tie byte ranges of the string to the text-showing operations that
// produced them.
package text

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/georgepadayatti/zkpdf/pdf/fonts"
	"github.com/georgepadayatti/zkpdf/pdf/reader"
)

// ErrPageOutOfRange is returned for a page index outside the document.
var ErrPageOutOfRange = reader.ErrPageOutOfRange

const (
	// DefaultTJSpaceThreshold is the TJ adjustment, in thousandths of a
	// text space unit, beyond which a space is inserted.
	DefaultTJSpaceThreshold = 200

	// DefaultMaxXObjectDepth bounds nesting of form XObjects.
	DefaultMaxXObjectDepth = 16

	maxWarnings = 100
)

// Span maps the byte range [Start, End) of a page's text to the operation
// that produced it. OpIndex counts operations across all content streams
// of the page, including those of form XObjects.
type Span struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Op      string `json:"op"`
	OpIndex int    `json:"op_index"`
}

// ExtractedPage is the text of one page.
type ExtractedPage struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Spans []Span `json:"spans,omitempty"`
}

// Locate returns the span containing a byte offset of Text.
func (p *ExtractedPage) Locate(offset int) (Span, bool) {
	i := sort.Search(len(p.Spans), func(i int) bool { return p.Spans[i].End > offset })
	if i < len(p.Spans) && p.Spans[i].Start <= offset {
		return p.Spans[i], true
	}
	return Span{}, false
}

// MatchAt reports whether substring occurs in Text at exactly the given
// byte offset.
func (p *ExtractedPage) MatchAt(substring string, offset int) bool {
	if offset < 0 || offset > len(p.Text) {
		return false
	}
	return strings.HasPrefix(p.Text[offset:], substring)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTJSpaceThreshold sets the TJ adjustment that counts as a word gap.
func WithTJSpaceThreshold(threshold float64) Option {
	return func(e *Extractor) {
		if threshold > 0 {
			e.tjSpaceThreshold = threshold
		}
	}
}

// WithMaxXObjectDepth bounds form XObject nesting.
func WithMaxXObjectDepth(depth int) Option {
	return func(e *Extractor) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithFontResolver shares a font resolver with other consumers of the
// document.
func WithFontResolver(res *fonts.Resolver) Option {
	return func(e *Extractor) {
		e.fonts = res
	}
}

// WithLogger sets the logger used for debug events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Extractor extracts and caches page text of one document. It is not safe
// for concurrent use.
type Extractor struct {
	doc    *reader.Document
	fonts  *fonts.Resolver
	logger *slog.Logger

	tjSpaceThreshold float64
	maxDepth         int

	pages    map[int]*ExtractedPage
	warnings []string
}

// NewExtractor creates an extractor for doc.
func NewExtractor(doc *reader.Document, opts ...Option) *Extractor {
	e := &Extractor{
		doc:              doc,
		logger:           slog.New(slog.DiscardHandler),
		tjSpaceThreshold: DefaultTJSpaceThreshold,
		maxDepth:         DefaultMaxXObjectDepth,
		pages:            make(map[int]*ExtractedPage),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fonts == nil {
		e.fonts = fonts.NewResolver(doc, e.logger)
	}
	return e
}

// Warnings returns the non-fatal problems met so far: skipped syntax,
// missing fonts, unreadable streams.
func (e *Extractor) Warnings() []string {
	return e.warnings
}

func (e *Extractor) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.logger.Debug(msg)
	if len(e.warnings) < maxWarnings {
		e.warnings = append(e.warnings, msg)
	}
}

// Page extracts the page at a zero-based index.
func (e *Extractor) Page(index int) (*ExtractedPage, error) {
	if p, ok := e.pages[index]; ok {
		return p, nil
	}
	page, err := e.doc.Page(index)
	if err != nil {
		return nil, err
	}
	return e.ExtractPage(page)
}

// ExtractPage extracts the text of page. Content that cannot be read is
// skipped with a warning.
func (e *Extractor) ExtractPage(page *reader.Page) (*ExtractedPage, error) {
	if p, ok := e.pages[page.Index]; ok {
		return p, nil
	}

	var data [][]byte
	for i, stream := range page.ContentStreams() {
		decoded, err := e.doc.DecodeStream(stream)
		if err != nil {
			e.warn("page %d content stream %d: %v", page.Index, i, err)
		}
		data = append(data, decoded)
	}

	in := newInterpreter(e)
	in.run(joinContent(data), page.Resources, 0)
	text, spans := normalize(in.out, in.spans)

	p := &ExtractedPage{Index: page.Index, Text: text, Spans: spans}
	e.pages[page.Index] = p
	return p, nil
}

// joinContent concatenates the content streams of a page. A newline
// separates two streams only when the first one ends between tokens, so a
// string literal split across streams stays intact.
func joinContent(parts [][]byte) []byte {
	var out []byte
	for i, part := range parts {
		if i > 0 && !endsInString(parts[i-1]) {
			out = append(out, '\n')
		}
		out = append(out, part...)
	}
	return out
}

// endsInString reports whether data ends inside an unterminated literal
// string.
func endsInString(data []byte) bool {
	depth := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		if depth > 0 {
			switch c {
			case '\\':
				i++
			case '(':
				depth++
			case ')':
				depth--
			}
			continue
		}
		switch c {
		case '(':
			depth = 1
		case '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		}
	}
	return depth > 0
}

// ExtractAll extracts every page in document order.
func (e *Extractor) ExtractAll() ([]*ExtractedPage, error) {
	pages, err := e.doc.Pages()
	if err != nil {
		return nil, err
	}
	out := make([]*ExtractedPage, 0, len(pages))
	for _, page := range pages {
		p, err := e.ExtractPage(page)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Texts returns the text of each page.
func Texts(pages []*ExtractedPage) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.Text
	}
	return out
}
