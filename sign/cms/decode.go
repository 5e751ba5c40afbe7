package cms

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"time"
)

// SignedDataInfo is the decoded content of a detached SignedData with its
// first signer.
type SignedDataInfo struct {
	// Algorithm is the signer's RSA signature algorithm.
	Algorithm SignatureAlgorithm

	DigestOID    asn1.ObjectIdentifier
	SignatureOID asn1.ObjectIdentifier

	// MessageDigest is the messageDigest signed attribute, nil when the
	// signer has no signed attributes.
	MessageDigest []byte

	// SignedAttributes is the DER encoding of the signed attributes as a
	// SET, the form the signature is computed over. Nil when absent.
	SignedAttributes []byte

	// EncapsulatedContent is the eContent octets, nil for detached data.
	EncapsulatedContent []byte
	ContentType         asn1.ObjectIdentifier

	Signature []byte

	// Certificate is the signer certificate as parsed by crypto/x509, nil
	// when crypto/x509 rejects it.
	Certificate    *x509.Certificate
	CertificateDER []byte

	PublicKey *rsa.PublicKey
	// PublicKeyDER is the PKCS #1 RSAPublicKey encoding of PublicKey.
	PublicKeyDER []byte

	SigningTime *time.Time

	// Signer describes the signer certificate subject.
	Signer string
}

// Hash returns the digest hash of the signer.
func (s *SignedDataInfo) Hash() crypto.Hash {
	return s.Algorithm.Hash
}

// certEntry is a certificate from the SignedData certificate set. The
// fields needed for signer matching are read without crypto/x509 so that
// certificates it refuses still match.
type certEntry struct {
	raw     []byte
	issuer  []byte
	serial  []byte
	subject string
	ski     []byte
	spki    []byte
}

type certificateRaw struct {
	TBS                asn1.RawValue
	SignatureAlgorithm asn1.RawValue
	Signature          asn1.RawValue
}

type tbsCertificateRaw struct {
	Version         int `asn1:"optional,explicit,default:0,tag:0"`
	SerialNumber    asn1.RawValue
	Signature       asn1.RawValue
	Issuer          asn1.RawValue
	Validity        asn1.RawValue
	Subject         asn1.RawValue
	PublicKey       asn1.RawValue
	IssuerUniqueID  asn1.RawValue `asn1:"optional,tag:1"`
	SubjectUniqueID asn1.RawValue `asn1:"optional,tag:2"`
	Extensions      asn1.RawValue `asn1:"optional,explicit,tag:3"`
}

type subjectPublicKeyInfo struct {
	Algorithm AlgorithmIdentifier
	PublicKey asn1.BitString
}

// Decode parses a DER (or BER) ContentInfo holding SignedData and extracts
// the first signer's digest, signature and RSA public key.
func Decode(der []byte) (*SignedDataInfo, error) {
	if len(der) == 0 {
		return nil, malformed("empty container")
	}
	var ci ContentInfo
	if _, err := asn1.Unmarshal(der, &ci); err != nil {
		normalized, berErr := normalizeBER(der)
		if berErr != nil {
			return nil, malformed("ContentInfo: %v", err)
		}
		if _, err := asn1.Unmarshal(normalized, &ci); err != nil {
			return nil, malformed("ContentInfo: %v", err)
		}
	}
	if !ci.ContentType.Equal(OIDSignedData) {
		return nil, malformed("content type %v is not signedData", ci.ContentType)
	}
	if len(ci.Content.Bytes) == 0 {
		return nil, malformed("missing SignedData content")
	}

	var sd signedDataRaw
	if _, err := asn1.Unmarshal(ci.Content.Bytes, &sd); err != nil {
		return nil, malformed("SignedData: %v", err)
	}
	if len(sd.SignerInfos) == 0 {
		return nil, malformed("no signer infos")
	}
	var si signerInfoRaw
	if _, err := asn1.Unmarshal(sd.SignerInfos[0].FullBytes, &si); err != nil {
		return nil, malformed("SignerInfo: %v", err)
	}

	h, err := hashForDigestOID(si.DigestAlgorithm.Algorithm)
	if err != nil {
		return nil, err
	}
	alg, err := algorithmFor(si.SignatureAlgorithm.Algorithm, h)
	if err != nil {
		return nil, err
	}

	info := &SignedDataInfo{
		Algorithm:    alg,
		DigestOID:    si.DigestAlgorithm.Algorithm,
		SignatureOID: si.SignatureAlgorithm.Algorithm,
		ContentType:  sd.EncapContentInfo.EContentType,
		Signature:    si.Signature,
	}
	if len(si.Signature) == 0 {
		return nil, malformed("empty signature value")
	}

	if len(sd.EncapContentInfo.EContent.Bytes) > 0 {
		var content []byte
		if _, err := asn1.Unmarshal(sd.EncapContentInfo.EContent.Bytes, &content); err != nil {
			return nil, malformed("eContent: %v", err)
		}
		info.EncapsulatedContent = content
	}

	if len(si.SignedAttrs.FullBytes) > 0 {
		if err := info.readSignedAttributes(si.SignedAttrs); err != nil {
			return nil, err
		}
	}

	candidates, err := findSigner(sd.Certificates, si.SID)
	if err != nil {
		return nil, err
	}
	if err := info.selectSigner(candidates); err != nil {
		return nil, err
	}
	return info, nil
}

// selectSigner sets the signer certificate. When several certificates
// match the signer identifier, the one whose key verifies the signature
// wins; otherwise the first candidate is used.
func (s *SignedDataInfo) selectSigner(candidates []*certEntry) error {
	input := s.SignedAttributes
	if input == nil {
		input = s.EncapsulatedContent
	}
	if len(candidates) > 1 && input != nil {
		if digest, err := Digest(s.Hash(), input); err == nil {
			for _, e := range candidates {
				key, err := rsaPublicKey(e.spki)
				if err == nil && rsa.VerifyPKCS1v15(key, s.Hash(), digest, s.Signature) == nil {
					return s.setSigner(e)
				}
			}
		}
	}
	return s.setSigner(candidates[0])
}

func (s *SignedDataInfo) readSignedAttributes(raw asn1.RawValue) error {
	set := append([]byte(nil), raw.FullBytes...)
	set[0] = 0x31
	s.SignedAttributes = set

	var attrs []Attribute
	if _, err := asn1.UnmarshalWithParams(set, &attrs, "set"); err != nil {
		return malformed("signed attributes: %v", err)
	}
	for _, attr := range attrs {
		if len(attr.Values) == 0 {
			continue
		}
		value := attr.Values[0].FullBytes
		switch {
		case attr.Type.Equal(OIDMessageDigest):
			var digest []byte
			if _, err := asn1.Unmarshal(value, &digest); err != nil {
				return malformed("messageDigest: %v", err)
			}
			s.MessageDigest = digest
		case attr.Type.Equal(OIDSigningTime):
			var t time.Time
			if _, err := asn1.Unmarshal(value, &t); err == nil {
				t = t.UTC()
				s.SigningTime = &t
			}
		case attr.Type.Equal(OIDContentType):
			var oid asn1.ObjectIdentifier
			if _, err := asn1.Unmarshal(value, &oid); err == nil {
				s.ContentType = oid
			}
		}
	}
	if s.MessageDigest == nil {
		return malformed("signed attributes without messageDigest")
	}
	return nil
}

func (s *SignedDataInfo) setSigner(entry *certEntry) error {
	s.CertificateDER = entry.raw
	s.Signer = entry.subject
	if cert, err := x509.ParseCertificate(entry.raw); err == nil {
		s.Certificate = cert
		if s.Signer == "" {
			s.Signer = cert.Subject.String()
		}
	}

	key, err := rsaPublicKey(entry.spki)
	if err != nil {
		return err
	}
	s.PublicKey = key
	s.PublicKeyDER = x509.MarshalPKCS1PublicKey(key)
	return nil
}

func rsaPublicKey(spki []byte) (*rsa.PublicKey, error) {
	if pub, err := x509.ParsePKIXPublicKey(spki); err == nil {
		key, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: %T signer key", ErrUnsupportedAlgorithm, pub)
		}
		return key, nil
	}
	var info subjectPublicKeyInfo
	if _, err := asn1.Unmarshal(spki, &info); err != nil {
		return nil, malformed("subject public key info: %v", err)
	}
	if !info.Algorithm.Algorithm.Equal(OIDRSAEncryption) {
		return nil, fmt.Errorf("%w: key algorithm %v", ErrUnsupportedAlgorithm, info.Algorithm.Algorithm)
	}
	key, err := x509.ParsePKCS1PublicKey(info.PublicKey.Bytes)
	if err != nil {
		return nil, malformed("RSA public key: %v", err)
	}
	return key, nil
}

func parseCertEntry(raw []byte) (*certEntry, error) {
	var cert certificateRaw
	if _, err := asn1.Unmarshal(raw, &cert); err != nil {
		return nil, err
	}
	var tbs tbsCertificateRaw
	if _, err := asn1.Unmarshal(cert.TBS.FullBytes, &tbs); err != nil {
		return nil, err
	}
	entry := &certEntry{
		raw:    raw,
		issuer: tbs.Issuer.FullBytes,
		serial: tbs.SerialNumber.Bytes,
		spki:   tbs.PublicKey.FullBytes,
	}

	var rdn pkix.RDNSequence
	if _, err := asn1.Unmarshal(tbs.Subject.FullBytes, &rdn); err == nil {
		var name pkix.Name
		name.FillFromRDNSequence(&rdn)
		entry.subject = name.String()
	}

	if len(tbs.Extensions.Bytes) > 0 {
		var exts []pkix.Extension
		if _, err := asn1.Unmarshal(tbs.Extensions.Bytes, &exts); err == nil {
			for _, ext := range exts {
				if ext.Id.Equal(OIDSubjectKeyIdentifier) {
					var ski []byte
					if _, err := asn1.Unmarshal(ext.Value, &ski); err == nil {
						entry.ski = ski
					}
				}
			}
		}
	}
	return entry, nil
}

// findSigner returns the certificates named by sid: an
// IssuerAndSerialNumber, or a [0] SubjectKeyIdentifier. Exact issuer and
// serial matches come before matches on the serial alone.
func findSigner(certs []asn1.RawValue, sid asn1.RawValue) ([]*certEntry, error) {
	var entries []*certEntry
	for _, c := range certs {
		entry, err := parseCertEntry(c.FullBytes)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSignature, ErrMissingCertificate)
	}

	var candidates []*certEntry
	switch {
	case sid.Class == asn1.ClassUniversal && sid.Tag == asn1.TagSequence:
		var ias issuerAndSerialRaw
		if _, err := asn1.Unmarshal(sid.FullBytes, &ias); err != nil {
			return nil, malformed("signer identifier: %v", err)
		}
		for _, e := range entries {
			if bytes.Equal(e.issuer, ias.Issuer.FullBytes) && bytes.Equal(e.serial, ias.SerialNumber.Bytes) {
				candidates = append(candidates, e)
			}
		}
		for _, e := range entries {
			if !bytes.Equal(e.issuer, ias.Issuer.FullBytes) && bytes.Equal(e.serial, ias.SerialNumber.Bytes) {
				candidates = append(candidates, e)
			}
		}
		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w: %w: serial %s", ErrMalformedSignature, ErrMissingCertificate,
				hex.EncodeToString(ias.SerialNumber.Bytes))
		}
	case sid.Class == asn1.ClassContextSpecific && sid.Tag == 0:
		var ski []byte
		if _, err := asn1.UnmarshalWithParams(sid.FullBytes, &ski, "tag:0"); err != nil {
			return nil, malformed("subject key identifier: %v", err)
		}
		for _, e := range entries {
			if len(e.ski) > 0 && bytes.Equal(e.ski, ski) {
				candidates = append(candidates, e)
			}
		}
		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w: %w: key identifier %s", ErrMalformedSignature, ErrMissingCertificate,
				hex.EncodeToString(ski))
		}
	default:
		return nil, malformed("unknown signer identifier tag %d", sid.Tag)
	}
	return candidates, nil
}
