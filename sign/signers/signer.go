package signers

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/georgepadayatti/zkpdf/pdf/generic"
	"github.com/georgepadayatti/zkpdf/pdf/metadata"
	"github.com/georgepadayatti/zkpdf/pdf/reader"
	"github.com/georgepadayatti/zkpdf/pdf/writer"
	"github.com/georgepadayatti/zkpdf/sign/cms"
	"github.com/georgepadayatti/zkpdf/sign/fields"
)

// Common errors
var (
	ErrSignerRequired     = errors.New("signer is required")
	ErrNoSignatureField   = errors.New("signature field not found")
	ErrFieldAlreadySigned = errors.New("signature field is already signed")
)

// SigningError represents an error during the signing process.
type SigningError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *SigningError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *SigningError) Unwrap() error {
	return e.Cause
}

// SignOptions carries per-signature parameters to a Signer.
type SignOptions struct {
	SigningTime time.Time
	SubFilter   fields.SubFilter
}

// Signer is the interface for signing operations.
type Signer interface {
	// Sign signs the given data and returns the CMS signature.
	Sign(data []byte, opts SignOptions) ([]byte, error)
	// GetCertificate returns the signing certificate.
	GetCertificate() *x509.Certificate
	// GetCertificateChain returns the certificate chain.
	GetCertificateChain() []*x509.Certificate
	// GetSignatureSize returns the estimated signature size.
	GetSignatureSize() int
}

// SimpleSigner implements Signer using a certificate and private key.
type SimpleSigner struct {
	Certificate *x509.Certificate
	CertChain   []*x509.Certificate
	PrivateKey  crypto.Signer
	Algorithm   cms.SignatureAlgorithm
}

// NewSimpleSigner creates a new SimpleSigner.
func NewSimpleSigner(cert *x509.Certificate, key crypto.Signer, alg cms.SignatureAlgorithm) *SimpleSigner {
	return &SimpleSigner{
		Certificate: cert,
		PrivateKey:  key,
		Algorithm:   alg,
	}
}

// SetCertificateChain sets the certificate chain.
func (s *SimpleSigner) SetCertificateChain(chain []*x509.Certificate) {
	s.CertChain = chain
}

// Sign implements Signer. For adbe.pkcs7.sha1 the digest of data is
// encapsulated and signed without signed attributes.
func (s *SimpleSigner) Sign(data []byte, opts SignOptions) ([]byte, error) {
	builder := cms.NewBuilder(s.Certificate, s.PrivateKey, s.Algorithm)
	builder.SetCertificateChain(s.CertChain)
	if !opts.SigningTime.IsZero() {
		builder.SetSigningTime(opts.SigningTime)
	}
	if opts.SubFilter == fields.SubFilterAdobePKCS7SHA1 {
		builder.SignedAttributes = false
		builder.EncapsulateDigest = true
	}
	return builder.Sign(data)
}

// GetCertificate implements Signer.
func (s *SimpleSigner) GetCertificate() *x509.Certificate {
	return s.Certificate
}

// GetCertificateChain implements Signer.
func (s *SimpleSigner) GetCertificateChain() []*x509.Certificate {
	return s.CertChain
}

// GetSignatureSize implements Signer.
func (s *SimpleSigner) GetSignatureSize() int {
	size := baseSignatureSize
	size += len(s.Certificate.Raw)
	for _, cert := range s.CertChain {
		size += len(cert.Raw)
	}
	return size
}

// SignatureMetadata contains metadata for the signature.
type SignatureMetadata struct {
	FieldName   string
	Reason      string
	Location    string
	ContactInfo string
	Name        string
	SubFilter   fields.SubFilter
}

// NewSignatureMetadata creates new signature metadata.
func NewSignatureMetadata(fieldName string) *SignatureMetadata {
	return &SignatureMetadata{
		FieldName: fieldName,
		SubFilter: DefaultSigSubFilter,
	}
}

// PdfSigner signs PDF documents.
type PdfSigner struct {
	Signer            Signer
	Metadata          *SignatureMetadata
	SignatureFieldBox *generic.Rectangle
	PageNumber        int

	// UpdateInfo stamps /ModDate and /Producer in the information
	// dictionary of the update.
	UpdateInfo bool

	// StreamXRefs forces the cross-reference format of the update;
	// nil keeps the format of the signed document.
	StreamXRefs *bool

	clock  clockwork.Clock
	logger *slog.Logger
}

// Option configures a PdfSigner.
type Option func(*PdfSigner)

// WithClock sets the clock used for signing times.
func WithClock(clock clockwork.Clock) Option {
	return func(p *PdfSigner) {
		p.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *PdfSigner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPdfSigner creates a new PDF signer.
func NewPdfSigner(signer Signer, meta *SignatureMetadata, opts ...Option) *PdfSigner {
	if meta == nil {
		meta = NewSignatureMetadata("")
	}
	p := &PdfSigner{
		Signer:   signer,
		Metadata: meta,
		clock:    clockwork.NewRealClock(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetSignatureAppearance sets the widget page and rectangle.
func (p *PdfSigner) SetSignatureAppearance(page int, rect *generic.Rectangle) {
	p.PageNumber = page
	p.SignatureFieldBox = rect
}

// SignBytes parses and signs a PDF.
func (p *PdfSigner) SignBytes(data []byte, opts ...reader.Option) ([]byte, error) {
	doc, err := reader.Open(data, opts...)
	if err != nil {
		return nil, &SigningError{Message: "failed to read PDF", Cause: err}
	}
	return p.SignPdf(doc)
}

// SignPdf adds a new signature field to doc and signs it.
func (p *PdfSigner) SignPdf(doc *reader.Document) ([]byte, error) {
	if p.Signer == nil {
		return nil, ErrSignerRequired
	}
	w, err := writer.NewIncremental(doc)
	if err != nil {
		return nil, &SigningError{Message: "failed to start update", Cause: err}
	}

	existing, err := fields.EnumerateSignatureFields(doc)
	if err != nil && !errors.Is(err, fields.ErrNoAcroForm) {
		return nil, &SigningError{Message: "failed to read signature fields", Cause: err}
	}
	name := p.Metadata.FieldName
	if name == "" {
		name = uniqueFieldName(existing)
	}
	for _, f := range existing {
		if f.FullName == name {
			return nil, &SigningError{Message: fmt.Sprintf("field %q", name), Cause: ErrFieldAlreadySigned}
		}
	}

	_, field, err := w.AddSignatureField(name, p.PageNumber, p.SignatureFieldBox)
	if err != nil {
		return nil, &SigningError{Message: "failed to add signature field", Cause: err}
	}
	return p.sign(w, doc, field)
}

// SignExistingField signs the empty signature field named fieldName.
func (p *PdfSigner) SignExistingField(doc *reader.Document, fieldName string) ([]byte, error) {
	if p.Signer == nil {
		return nil, ErrSignerRequired
	}
	existing, err := fields.EnumerateSignatureFields(doc)
	if err != nil {
		return nil, &SigningError{Message: "failed to read signature fields", Cause: err}
	}
	var target *fields.SignatureFormField
	for _, f := range existing {
		if f.FullName == fieldName {
			target = f
			break
		}
	}
	if target == nil || target.FieldRef == nil {
		return nil, &SigningError{Message: fmt.Sprintf("field %q", fieldName), Cause: ErrNoSignatureField}
	}
	if target.IsSigned() {
		return nil, &SigningError{Message: fmt.Sprintf("field %q", fieldName), Cause: ErrFieldAlreadySigned}
	}

	w, err := writer.NewIncremental(doc)
	if err != nil {
		return nil, &SigningError{Message: "failed to start update", Cause: err}
	}
	field := target.FieldDict.Clone()
	w.UpdateObject(*target.FieldRef, field)
	return p.sign(w, doc, field)
}

func (p *PdfSigner) sign(w *writer.IncrementalWriter, doc *reader.Document, field *generic.DictionaryObject) ([]byte, error) {
	now := p.clock.Now()
	if p.StreamXRefs != nil {
		w.SetStreamXRefs(*p.StreamXRefs)
	}

	subFilter := p.Metadata.SubFilter
	if subFilter == "" {
		subFilter = DefaultSigSubFilter
	}
	sigDict := generic.NewDictionary()
	sigDict.Set("SubFilter", generic.NameObject(subFilter))
	setText := func(key, value string) {
		if value != "" {
			sigDict.Set(key, generic.NewTextString(value))
		}
	}
	setText("Name", p.Metadata.Name)
	setText("Reason", p.Metadata.Reason)
	setText("Location", p.Metadata.Location)
	setText("ContactInfo", p.Metadata.ContactInfo)
	sigDict.Set("M", generic.NewLiteralString(metadata.FormatPDFDate(now)))

	contentsSize := p.Signer.GetSignatureSize()
	placeholder := w.PrepareSignature(field, sigDict, contentsSize)

	if p.UpdateInfo {
		info := metadata.NewDocumentMetadata(now).ViewOver(metadata.FromDocument(doc))
		w.SetInfo(info.InfoDict())
	}

	var buf bytes.Buffer
	sigInfo, err := w.WriteWithSignature(&buf, placeholder)
	if err != nil {
		return nil, &SigningError{Message: "failed to write PDF with placeholder", Cause: err}
	}

	signature, err := p.Signer.Sign(sigInfo.GetDataToSign(), SignOptions{SigningTime: now, SubFilter: subFilter})
	if err != nil {
		return nil, &SigningError{Message: "failed to sign", Cause: err}
	}
	signed, err := sigInfo.EmbedSignature(signature)
	if err != nil {
		return nil, &SigningError{Message: "failed to embed signature", Cause: err}
	}

	p.logger.Debug("document signed",
		slog.String("sub_filter", string(subFilter)),
		slog.Any("byte_range", sigInfo.ByteRange),
		slog.Int("signature_size", len(signature)),
		slog.Int("reserved", contentsSize))
	return signed, nil
}

func uniqueFieldName(existing []*fields.SignatureFormField) string {
	used := make(map[string]bool, len(existing))
	for _, f := range existing {
		used[f.FullName] = true
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s%d", DefaultFieldName, i)
		if !used[name] {
			return name
		}
	}
}
