// Package validation checks the integrity and authenticity of PDF
// signatures.
package validation

import (
	"crypto/rsa"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/georgepadayatti/zkpdf/pdf/reader"
	"github.com/georgepadayatti/zkpdf/sign/cms"
	"github.com/georgepadayatti/zkpdf/sign/fields"
)

// Failure reasons reported on invalid signatures.
const (
	FailureDigestMismatch   = "message digest does not match the signed bytes"
	FailureSignatureInvalid = "signature does not verify with the signer public key"
)

// CoverageStatus indicates what the signature covers.
type CoverageStatus int

const (
	CoverageUnknown CoverageStatus = iota
	CoverageEntireFile
	CoverageContiguous
	CoveragePartial
)

// String returns the coverage name.
func (c CoverageStatus) String() string {
	switch c {
	case CoverageEntireFile:
		return "ENTIRE_FILE"
	case CoverageContiguous:
		return "CONTIGUOUS"
	case CoveragePartial:
		return "PARTIAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the coverage as its name.
func (c CoverageStatus) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a coverage name.
func (c *CoverageStatus) UnmarshalText(text []byte) error {
	for _, s := range []CoverageStatus{CoverageUnknown, CoverageEntireFile, CoverageContiguous, CoveragePartial} {
		if s.String() == string(text) {
			*c = s
			return nil
		}
	}
	return fmt.Errorf("unknown coverage %q", text)
}

// VerificationResult is the outcome of verifying one signature. An invalid
// signature is reported here, not as an error.
type VerificationResult struct {
	IsValid        bool `json:"is_valid"`
	DigestValid    bool `json:"digest_valid"`
	SignatureValid bool `json:"signature_valid"`

	// SignerInfo describes the signer certificate subject.
	SignerInfo         string     `json:"signer_info"`
	SignatureAlgorithm string     `json:"signature_algorithm"`
	SigningTime        *time.Time `json:"signing_time,omitempty"`

	// MessageDigest is the digest the signer claims for the signed bytes.
	MessageDigest []byte `json:"message_digest"`

	// PublicKey is the signer key as PKCS #1 RSAPublicKey DER.
	PublicKey []byte `json:"public_key"`

	CoversWholeDocument bool             `json:"covers_whole_document"`
	Coverage            CoverageStatus   `json:"coverage"`
	ByteRange           fields.ByteRange `json:"byte_range"`
	FieldName           string           `json:"field_name,omitempty"`
	SubFilter           string           `json:"sub_filter,omitempty"`

	Failure  string   `json:"failure,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Verifier verifies located signatures.
type Verifier struct {
	logger *slog.Logger
}

// NewVerifier creates a verifier logging to logger, or nowhere when nil.
func NewVerifier(logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Verifier{logger: logger}
}

var defaultVerifier = NewVerifier(nil)

// Verify checks a located signature.
func Verify(sig *fields.Signature) (VerificationResult, error) {
	return defaultVerifier.Verify(sig)
}

// VerifyPDF locates the most recent signature of a PDF and checks it.
func VerifyPDF(data []byte, opts ...reader.Option) (VerificationResult, error) {
	return defaultVerifier.VerifyPDF(data, opts...)
}

// VerifyAll checks every signature of a document, oldest first.
func VerifyAll(doc *reader.Document) ([]VerificationResult, error) {
	return defaultVerifier.VerifyAll(doc)
}

// VerifyPDF locates the most recent signature of a PDF and checks it.
func (v *Verifier) VerifyPDF(data []byte, opts ...reader.Option) (VerificationResult, error) {
	sig, err := fields.LocateBytes(data, opts...)
	if err != nil {
		return VerificationResult{}, err
	}
	return v.Verify(sig)
}

// VerifyAll checks every signature of doc, oldest first.
func (v *Verifier) VerifyAll(doc *reader.Document) ([]VerificationResult, error) {
	sigs, err := fields.LocateAll(doc)
	if err != nil {
		return nil, err
	}
	results := make([]VerificationResult, 0, len(sigs))
	for _, sig := range sigs {
		res, err := v.Verify(sig)
		if err != nil {
			return nil, fmt.Errorf("signature field %q: %w", sig.FieldName, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// Verify checks a located signature: the digest of its signed bytes
// against the claimed message digest, then the RSA signature over the
// signed attributes. Decoding failures are returned as errors.
func (v *Verifier) Verify(sig *fields.Signature) (VerificationResult, error) {
	if sig == nil {
		return VerificationResult{}, fields.ErrSignatureNotFound
	}
	if err := sig.ByteRange.Validate(sig.FileLength); err != nil {
		return VerificationResult{}, err
	}

	info, err := cms.Decode(sig.Contents)
	if err != nil {
		return VerificationResult{}, err
	}

	result := VerificationResult{
		SignerInfo:          info.Signer,
		SignatureAlgorithm:  info.Algorithm.Name,
		PublicKey:           info.PublicKeyDER,
		CoversWholeDocument: sig.CoversWholeDocument(),
		Coverage:            checkCoverage(sig),
		ByteRange:           sig.ByteRange,
		FieldName:           sig.FieldName,
		SubFilter:           sig.SubFilter,
		SigningTime:         info.SigningTime,
	}
	if result.SigningTime == nil {
		result.SigningTime = sig.SigningTime
	}

	computed, err := cms.Digest(info.Hash(), sig.SignedBytes)
	if err != nil {
		return VerificationResult{}, err
	}

	// The claimed digest is the messageDigest attribute, or the
	// encapsulated content for signers without signed attributes.
	claimed := info.MessageDigest
	if claimed == nil {
		claimed = info.EncapsulatedContent
	}
	if claimed == nil {
		claimed = computed
	}
	result.MessageDigest = claimed
	result.DigestValid = len(claimed) == len(computed) && subtle.ConstantTimeCompare(claimed, computed) == 1

	var input []byte
	switch {
	case info.SignedAttributes != nil:
		input = info.SignedAttributes
	case info.EncapsulatedContent != nil:
		input = info.EncapsulatedContent
	}
	digest := computed
	if input != nil {
		if digest, err = cms.Digest(info.Hash(), input); err != nil {
			return VerificationResult{}, err
		}
	}
	sigErr := rsa.VerifyPKCS1v15(info.PublicKey, info.Hash(), digest, info.Signature)
	result.SignatureValid = sigErr == nil

	result.IsValid = result.DigestValid && result.SignatureValid
	switch {
	case !result.DigestValid:
		result.Failure = FailureDigestMismatch
	case !result.SignatureValid:
		result.Failure = FailureSignatureInvalid
	}

	result.Warnings = diagnose(sig, info, result.SigningTime)

	v.logger.Debug("signature verified",
		slog.String("field", sig.FieldName),
		slog.String("algorithm", result.SignatureAlgorithm),
		slog.Bool("digest_valid", result.DigestValid),
		slog.Bool("signature_valid", result.SignatureValid),
		slog.String("coverage", result.Coverage.String()))
	if sigErr != nil && !errors.Is(sigErr, rsa.ErrVerification) {
		v.logger.Debug("rsa verification error", slog.Any("error", sigErr))
	}
	return result, nil
}

// checkCoverage reports what the signature covers.
func checkCoverage(sig *fields.Signature) CoverageStatus {
	br := sig.ByteRange
	if br.End() == sig.FileLength && br.Start1 == 0 {
		return CoverageEntireFile
	}
	if br.Start1 == 0 {
		return CoverageContiguous
	}
	return CoveragePartial
}
