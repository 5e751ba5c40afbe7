// Package claim answers the questions a prover asks of a signed PDF: what
// text does each page carry, is the signature valid, and does a given
// substring appear at a given byte offset of a page.
//
// All work for one input happens in a Session, which owns the parsed
// document and its font and page caches. The package-level functions open
// a fresh Session per call.
package claim

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/georgepadayatti/zkpdf/config"
	"github.com/georgepadayatti/zkpdf/pdf/fonts"
	"github.com/georgepadayatti/zkpdf/pdf/reader"
	"github.com/georgepadayatti/zkpdf/pdf/text"
	"github.com/georgepadayatti/zkpdf/sign/fields"
	"github.com/georgepadayatti/zkpdf/sign/validation"
)

var (
	// ErrEmptySubstring is returned by VerifyClaim for an empty substring.
	ErrEmptySubstring = errors.New("substring must not be empty")

	// ErrPageOutOfRange is returned for a page index outside the document.
	ErrPageOutOfRange = text.ErrPageOutOfRange
)

// ClaimResult is the outcome of a claim. Signature is always populated;
// Pages only in extract-all mode.
type ClaimResult struct {
	SubstringMatches bool                          `json:"substring_matches"`
	Signature        validation.VerificationResult `json:"signature"`
	Pages            []string                      `json:"pages,omitempty"`

	Page      int    `json:"page"`
	Offset    int    `json:"offset"`
	Substring string `json:"substring,omitempty"`
}

// Verified reports whether the signature is valid and the substring
// matched.
func (r *ClaimResult) Verified() bool {
	return r.Signature.IsValid && r.SubstringMatches
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger for the session and everything it opens.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLimits bounds decompression, object streams and content recursion.
func WithLimits(limits config.LimitsConfig) Option {
	return func(s *Session) {
		limits.SetDefaults()
		s.limits = limits
	}
}

// Session holds the state for one document. It is not safe for concurrent
// use; separate sessions are independent.
type Session struct {
	data   []byte
	limits config.LimitsConfig
	logger *slog.Logger

	opened    bool
	doc       *reader.Document
	openErr   error
	extractor *text.Extractor

	verified  bool
	signature validation.VerificationResult
	sigErr    error

	warnings []string
}

// NewSession creates a session over data. Nothing is parsed until the
// first operation.
func NewSession(data []byte, opts ...Option) *Session {
	s := &Session{
		data:   data,
		limits: config.Default().Limits,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Document parses the document on first use.
func (s *Session) Document() (*reader.Document, error) {
	if s.opened {
		return s.doc, s.openErr
	}
	s.opened = true
	s.doc, s.openErr = reader.Open(s.data,
		reader.WithMaxDecompressedSize(s.limits.MaxDecompressedSize),
		reader.WithMaxObjectStreamObjects(s.limits.MaxObjectStreamObjects),
		reader.WithLogger(s.logger))
	if s.openErr != nil {
		s.logger.Debug("document could not be parsed", slog.Any("error", s.openErr))
		return nil, s.openErr
	}
	s.extractor = text.NewExtractor(s.doc,
		text.WithFontResolver(fonts.NewResolver(s.doc, s.logger)),
		text.WithTJSpaceThreshold(s.limits.TJSpaceThreshold),
		text.WithMaxXObjectDepth(s.limits.MaxXObjectDepth),
		text.WithLogger(s.logger))
	return s.doc, nil
}

// PageCount returns the number of pages.
func (s *Session) PageCount() (int, error) {
	doc, err := s.Document()
	if err != nil {
		return 0, err
	}
	return doc.PageCount()
}

// Page extracts one page.
func (s *Session) Page(index int) (*text.ExtractedPage, error) {
	if _, err := s.Document(); err != nil {
		return nil, err
	}
	return s.extractor.Page(index)
}

// ExtractAll extracts every page in document order.
func (s *Session) ExtractAll() ([]*text.ExtractedPage, error) {
	if _, err := s.Document(); err != nil {
		return nil, err
	}
	return s.extractor.ExtractAll()
}

// VerifySignature locates and verifies the most recent signature. The
// result is computed once per session.
func (s *Session) VerifySignature() (validation.VerificationResult, error) {
	if !s.verified {
		s.verified = true
		s.signature, s.sigErr = s.verifySignature()
	}
	return s.signature, s.sigErr
}

func (s *Session) verifySignature() (validation.VerificationResult, error) {
	sig, err := s.locate()
	if err != nil {
		return validation.VerificationResult{}, err
	}
	res, err := validation.NewVerifier(s.logger).Verify(sig)
	if err != nil {
		return validation.VerificationResult{}, err
	}
	if !res.IsValid {
		s.logger.Debug("signature invalid", slog.String("failure", res.Failure))
	}
	return res, nil
}

// locate finds the signature through the object graph, falling back to a
// textual scan when the graph is unreadable or has no signature field.
func (s *Session) locate() (*fields.Signature, error) {
	doc, openErr := s.Document()
	if openErr == nil {
		sig, err := fields.Locate(doc)
		if !errors.Is(err, fields.ErrSignatureNotFound) {
			return sig, err
		}
	}
	sig, err := fields.ScanBytes(s.data)
	if err != nil {
		if errors.Is(err, fields.ErrSignatureNotFound) && openErr != nil {
			return nil, openErr
		}
		return nil, err
	}
	s.warn("signature located by textual scan")
	return sig, nil
}

// ExtractAndVerify extracts the text of every page and verifies the
// signature.
func (s *Session) ExtractAndVerify() (*ClaimResult, error) {
	pages, err := s.ExtractAll()
	if err != nil {
		return nil, err
	}
	sig, err := s.VerifySignature()
	if err != nil {
		return nil, err
	}
	return &ClaimResult{Signature: sig, Pages: text.Texts(pages)}, nil
}

// VerifyClaim checks that substring occurs at byte offset of the text of
// page and verifies the signature. Only the requested page is extracted.
// An invalid signature does not prevent matching; an out-of-range page is
// an error whatever the signature.
func (s *Session) VerifyClaim(page int, substring string, offset int) (*ClaimResult, error) {
	if substring == "" {
		return nil, ErrEmptySubstring
	}
	count, err := s.PageCount()
	if err != nil {
		return nil, err
	}
	if page < 0 || page >= count {
		return nil, fmt.Errorf("%w: %d (document has %d pages)", ErrPageOutOfRange, page, count)
	}

	sig, err := s.VerifySignature()
	if err != nil {
		return nil, err
	}
	extracted, err := s.Page(page)
	if err != nil {
		return nil, err
	}

	res := &ClaimResult{
		SubstringMatches: extracted.MatchAt(substring, offset),
		Signature:        sig,
		Page:             page,
		Offset:           offset,
		Substring:        substring,
	}
	s.logger.Debug("claim checked",
		slog.Int("page", page),
		slog.Int("offset", offset),
		slog.Bool("substring_matches", res.SubstringMatches),
		slog.Bool("signature_valid", sig.IsValid))
	return res, nil
}

// Warnings returns the non-fatal problems met so far by the reader, the
// text extractor and the session.
func (s *Session) Warnings() []string {
	var out []string
	if s.doc != nil {
		out = append(out, s.doc.Warnings()...)
	}
	if s.extractor != nil {
		out = append(out, s.extractor.Warnings()...)
	}
	return append(out, s.warnings...)
}

func (s *Session) warn(msg string) {
	s.logger.Debug(msg)
	s.warnings = append(s.warnings, msg)
}

// ExtractAndVerify extracts all page text of data and verifies its
// signature.
func ExtractAndVerify(data []byte, opts ...Option) (*ClaimResult, error) {
	return NewSession(data, opts...).ExtractAndVerify()
}

// VerifyClaim checks that substring occurs at offset on page of data and
// verifies the signature.
func VerifyClaim(data []byte, page int, substring string, offset int, opts ...Option) (*ClaimResult, error) {
	return NewSession(data, opts...).VerifyClaim(page, substring, offset)
}

// ExtractText returns the text of every page of data.
func ExtractText(data []byte, opts ...Option) ([]string, error) {
	pages, err := NewSession(data, opts...).ExtractAll()
	if err != nil {
		return nil, err
	}
	return text.Texts(pages), nil
}

// VerifySignature verifies the most recent signature of data.
func VerifySignature(data []byte, opts ...Option) (validation.VerificationResult, error) {
	return NewSession(data, opts...).VerifySignature()
}
