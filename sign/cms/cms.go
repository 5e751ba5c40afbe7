// Package cms decodes and builds the CMS (PKCS #7) SignedData containers
// embedded in PDF signatures.
package cms

import (
	"crypto"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/asn1"
	"errors"
	"fmt"
	"hash"
	"math/big"
	"strings"
)

// OIDs for CMS and signature algorithms
var (
	// Content types
	OIDData       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	OIDSignedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}

	// Digest algorithms
	OIDMD5    = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 5}
	OIDSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	OIDSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	OIDSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	OIDSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}

	// Signature algorithms
	OIDRSAEncryption   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	OIDSHA1WithRSA     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}
	OIDSHA256WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	OIDSHA384WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	OIDSHA512WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}
	OIDRSAPSS          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}
	OIDECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}

	// Signed attributes
	OIDContentType          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	OIDMessageDigest        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	OIDSigningTime          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
	OIDSigningCertificateV2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 47}

	// Certificate extensions
	OIDSubjectKeyIdentifier = asn1.ObjectIdentifier{2, 5, 29, 14}
)

// Common errors
var (
	// ErrMalformedSignature reports a container that violates the
	// SignedData structure.
	ErrMalformedSignature = errors.New("malformed signature container")

	// ErrUnsupportedAlgorithm reports a digest, signature or key algorithm
	// other than RSA PKCS #1 v1.5 with SHA-1/256/384/512.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	ErrMissingCertificate = errors.New("missing signer certificate")
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedSignature, fmt.Sprintf(format, args...))
}

// AlgorithmIdentifier represents an algorithm identifier.
type AlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

// ContentInfo represents a CMS ContentInfo structure.
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,optional,tag:0"`
}

// SignedData represents a CMS SignedData structure.
type SignedData struct {
	Version          int
	DigestAlgorithms []AlgorithmIdentifier `asn1:"set"`
	EncapContentInfo EncapsulatedContentInfo
	Certificates     []asn1.RawValue `asn1:"optional,implicit,tag:0,set"`
	CRLs             []asn1.RawValue `asn1:"optional,implicit,tag:1"`
	SignerInfos      []SignerInfo    `asn1:"set"`
}

// EncapsulatedContentInfo represents encapsulated content.
type EncapsulatedContentInfo struct {
	EContentType asn1.ObjectIdentifier
	EContent     asn1.RawValue `asn1:"explicit,optional,tag:0"`
}

// SignerInfo represents a signer's information as written by Builder.
type SignerInfo struct {
	Version int
	// SID is an encoded IssuerAndSerialNumber or [0] SubjectKeyIdentifier.
	SID                asn1.RawValue
	DigestAlgorithm    AlgorithmIdentifier
	SignedAttrs        []Attribute `asn1:"optional,implicit,tag:0,set"`
	SignatureAlgorithm AlgorithmIdentifier
	Signature          []byte
	UnsignedAttrs      []Attribute `asn1:"optional,implicit,tag:1,set"`
}

// signerInfoRaw keeps the signer identifier and the signed attributes as
// found on the wire.
type signerInfoRaw struct {
	Version            int
	SID                asn1.RawValue
	DigestAlgorithm    AlgorithmIdentifier
	SignedAttrs        asn1.RawValue `asn1:"optional,tag:0"`
	SignatureAlgorithm AlgorithmIdentifier
	Signature          []byte
	UnsignedAttrs      asn1.RawValue `asn1:"optional,tag:1"`
}

type signedDataRaw struct {
	Version          int
	DigestAlgorithms asn1.RawValue
	EncapContentInfo EncapsulatedContentInfo
	Certificates     []asn1.RawValue `asn1:"optional,implicit,tag:0,set"`
	CRLs             asn1.RawValue   `asn1:"optional,tag:1"`
	SignerInfos      []asn1.RawValue `asn1:"set"`
}

// IssuerAndSerialNumber identifies a certificate by issuer and serial.
type IssuerAndSerialNumber struct {
	Issuer       asn1.RawValue
	SerialNumber *big.Int
}

// issuerAndSerialRaw keeps the serial's content octets so that serials
// crypto/x509 would reject still compare.
type issuerAndSerialRaw struct {
	Issuer       asn1.RawValue
	SerialNumber asn1.RawValue
}

// Attribute represents a CMS attribute.
type Attribute struct {
	Type   asn1.ObjectIdentifier
	Values []asn1.RawValue `asn1:"set"`
}

// SigningCertificateV2 represents the signing certificate attribute.
type SigningCertificateV2 struct {
	Certs []ESSCertIDv2
}

// ESSCertIDv2 represents a certificate identifier.
type ESSCertIDv2 struct {
	HashAlgorithm AlgorithmIdentifier `asn1:"optional"`
	CertHash      []byte
	IssuerSerial  IssuerSerial `asn1:"optional"`
}

// IssuerSerial identifies a certificate by issuer and serial.
type IssuerSerial struct {
	Issuer       GeneralNames
	SerialNumber *big.Int
}

// GeneralNames represents a sequence of GeneralName.
type GeneralNames struct {
	Names []asn1.RawValue
}

// SignatureAlgorithm represents a signature algorithm with its hash.
type SignatureAlgorithm struct {
	Name               string
	DigestAlgorithm    asn1.ObjectIdentifier
	SignatureAlgorithm asn1.ObjectIdentifier
	Hash               crypto.Hash
}

// String returns the algorithm name.
func (a SignatureAlgorithm) String() string {
	return a.Name
}

// Supported signature algorithms
var (
	SHA1WithRSA = SignatureAlgorithm{
		Name:               "sha1WithRSAEncryption",
		DigestAlgorithm:    OIDSHA1,
		SignatureAlgorithm: OIDSHA1WithRSA,
		Hash:               crypto.SHA1,
	}
	SHA256WithRSA = SignatureAlgorithm{
		Name:               "sha256WithRSAEncryption",
		DigestAlgorithm:    OIDSHA256,
		SignatureAlgorithm: OIDSHA256WithRSA,
		Hash:               crypto.SHA256,
	}
	SHA384WithRSA = SignatureAlgorithm{
		Name:               "sha384WithRSAEncryption",
		DigestAlgorithm:    OIDSHA384,
		SignatureAlgorithm: OIDSHA384WithRSA,
		Hash:               crypto.SHA384,
	}
	SHA512WithRSA = SignatureAlgorithm{
		Name:               "sha512WithRSAEncryption",
		DigestAlgorithm:    OIDSHA512,
		SignatureAlgorithm: OIDSHA512WithRSA,
		Hash:               crypto.SHA512,
	}
)

var rsaAlgorithms = []SignatureAlgorithm{SHA1WithRSA, SHA256WithRSA, SHA384WithRSA, SHA512WithRSA}

// AlgorithmForHash returns the RSA algorithm using h.
func AlgorithmForHash(h crypto.Hash) (SignatureAlgorithm, error) {
	for _, alg := range rsaAlgorithms {
		if alg.Hash == h {
			return alg, nil
		}
	}
	return SignatureAlgorithm{}, fmt.Errorf("%w: hash %v", ErrUnsupportedAlgorithm, h)
}

// AlgorithmByName returns the RSA algorithm for a hash name such as
// "sha256" or "SHA-256".
func AlgorithmByName(name string) (SignatureAlgorithm, error) {
	switch strings.ReplaceAll(strings.ToLower(name), "-", "") {
	case "sha1":
		return SHA1WithRSA, nil
	case "sha256", "":
		return SHA256WithRSA, nil
	case "sha384":
		return SHA384WithRSA, nil
	case "sha512":
		return SHA512WithRSA, nil
	}
	return SignatureAlgorithm{}, fmt.Errorf("%w: hash %q", ErrUnsupportedAlgorithm, name)
}

// hashForDigestOID returns the hash named by a digest algorithm OID.
func hashForDigestOID(oid asn1.ObjectIdentifier) (crypto.Hash, error) {
	for _, alg := range rsaAlgorithms {
		if oid.Equal(alg.DigestAlgorithm) {
			return alg.Hash, nil
		}
	}
	return 0, fmt.Errorf("%w: digest algorithm %v", ErrUnsupportedAlgorithm, oid)
}

// algorithmFor resolves the signature algorithm OID of a signer info
// against its digest hash. A bare rsaEncryption takes the digest hash; a
// combined OID must name the same hash.
func algorithmFor(sigOID asn1.ObjectIdentifier, h crypto.Hash) (SignatureAlgorithm, error) {
	if sigOID.Equal(OIDRSAEncryption) {
		return AlgorithmForHash(h)
	}
	for _, alg := range rsaAlgorithms {
		if sigOID.Equal(alg.SignatureAlgorithm) {
			if alg.Hash != h {
				return SignatureAlgorithm{}, fmt.Errorf("%w: %s with %v digest", ErrUnsupportedAlgorithm, alg.Name, h)
			}
			return alg, nil
		}
	}
	return SignatureAlgorithm{}, fmt.Errorf("%w: signature algorithm %v", ErrUnsupportedAlgorithm, sigOID)
}

// NewHash returns a hash.Hash for one of the supported hashes.
func NewHash(h crypto.Hash) (hash.Hash, error) {
	switch h {
	case crypto.SHA1:
		return sha1.New(), nil
	case crypto.SHA256:
		return sha256.New(), nil
	case crypto.SHA384:
		return sha512.New384(), nil
	case crypto.SHA512:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("%w: hash %v", ErrUnsupportedAlgorithm, h)
}

// Digest hashes data with h.
func Digest(h crypto.Hash, data []byte) ([]byte, error) {
	hh, err := NewHash(h)
	if err != nil {
		return nil, err
	}
	hh.Write(data)
	return hh.Sum(nil), nil
}
