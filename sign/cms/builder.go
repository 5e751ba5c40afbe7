package cms

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Builder creates detached CMS SignedData with RSA PKCS #1 v1.5
// signatures.
type Builder struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.Signer
	CertChain   []*x509.Certificate
	Algorithm   SignatureAlgorithm
	SigningTime time.Time

	// SignedAttributes controls whether signed attributes are included.
	// Without them the signature is computed over the content digest.
	SignedAttributes bool

	// SubjectKeyID identifies the signer by subject key identifier
	// instead of issuer and serial number.
	SubjectKeyID bool

	// EncapsulateDigest stores the content digest as eContent, the
	// adbe.pkcs7.sha1 layout.
	EncapsulateDigest bool
}

// NewBuilder creates a builder with signed attributes enabled.
func NewBuilder(cert *x509.Certificate, key crypto.Signer, alg SignatureAlgorithm) *Builder {
	return &Builder{
		Certificate:      cert,
		PrivateKey:       key,
		Algorithm:        alg,
		SigningTime:      time.Now().UTC(),
		SignedAttributes: true,
	}
}

// SetCertificateChain sets the certificate chain.
func (b *Builder) SetCertificateChain(chain []*x509.Certificate) {
	b.CertChain = chain
}

// SetSigningTime sets the signing time.
func (b *Builder) SetSigningTime(t time.Time) {
	b.SigningTime = t.UTC()
}

// Sign creates a ContentInfo holding SignedData over data.
func (b *Builder) Sign(data []byte) ([]byte, error) {
	if b.Certificate == nil || b.PrivateKey == nil {
		return nil, errors.New("certificate and private key are required")
	}
	if _, ok := b.PrivateKey.Public().(*rsa.PublicKey); !ok {
		return nil, fmt.Errorf("%w: %T signing key", ErrUnsupportedAlgorithm, b.PrivateKey.Public())
	}

	digest, err := Digest(b.Algorithm.Hash, data)
	if err != nil {
		return nil, err
	}

	encap := EncapsulatedContentInfo{EContentType: OIDData}
	toSign := digest
	if b.EncapsulateDigest {
		octets, err := asn1.Marshal(digest)
		if err != nil {
			return nil, err
		}
		encap.EContent = asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: octets}
		if toSign, err = Digest(b.Algorithm.Hash, digest); err != nil {
			return nil, err
		}
	}

	var signedAttrs []Attribute
	if b.SignedAttributes {
		content := data
		if b.EncapsulateDigest {
			content = digest
		}
		var set []byte
		signedAttrs, set, err = b.SignedAttributesForSigning(content)
		if err != nil {
			return nil, err
		}
		if toSign, err = Digest(b.Algorithm.Hash, set); err != nil {
			return nil, err
		}
	}

	signature, err := b.signDigest(toSign)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	sid, version, err := b.signerIdentifier()
	if err != nil {
		return nil, err
	}
	signerInfo := SignerInfo{
		Version: version,
		SID:     sid,
		DigestAlgorithm: AlgorithmIdentifier{
			Algorithm:  b.Algorithm.DigestAlgorithm,
			Parameters: asn1.RawValue{Tag: asn1.TagNull},
		},
		SignedAttrs: signedAttrs,
		SignatureAlgorithm: AlgorithmIdentifier{
			Algorithm:  b.Algorithm.SignatureAlgorithm,
			Parameters: signatureAlgorithmParameters(b.Algorithm.SignatureAlgorithm),
		},
		Signature: signature,
	}

	signedData := SignedData{
		Version: 1,
		DigestAlgorithms: []AlgorithmIdentifier{
			{
				Algorithm:  b.Algorithm.DigestAlgorithm,
				Parameters: asn1.RawValue{Tag: asn1.TagNull},
			},
		},
		EncapContentInfo: encap,
		SignerInfos:      []SignerInfo{signerInfo},
	}
	if version == 3 {
		signedData.Version = 3
	}

	signedData.Certificates = append(signedData.Certificates,
		asn1.RawValue{FullBytes: b.Certificate.Raw})
	for _, cert := range b.CertChain {
		signedData.Certificates = append(signedData.Certificates,
			asn1.RawValue{FullBytes: cert.Raw})
	}

	signedDataBytes, err := asn1.Marshal(signedData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signed data: %w", err)
	}

	contentInfo := ContentInfo{
		ContentType: OIDSignedData,
		Content:     asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: signedDataBytes},
	}
	return asn1.Marshal(contentInfo)
}

// SignedAttributesForSigning returns signed attributes and the DER-encoded
// SET bytes used for signature generation.
func (b *Builder) SignedAttributesForSigning(data []byte) ([]Attribute, []byte, error) {
	messageDigest, err := Digest(b.Algorithm.Hash, data)
	if err != nil {
		return nil, nil, err
	}

	signedAttrs, err := b.buildSignedAttributes(messageDigest)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build signed attributes: %w", err)
	}
	signedAttrs = derSortAttributes(signedAttrs)

	signedAttrsBytes, err := asn1.Marshal(signedAttrs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal signed attributes: %w", err)
	}
	signedAttrsBytes[0] = 0x31 // SET tag
	return signedAttrs, signedAttrsBytes, nil
}

func (b *Builder) signerIdentifier() (asn1.RawValue, int, error) {
	if b.SubjectKeyID {
		if len(b.Certificate.SubjectKeyId) == 0 {
			return asn1.RawValue{}, 0, errors.New("certificate has no subject key identifier")
		}
		raw, err := asn1.MarshalWithParams(b.Certificate.SubjectKeyId, "tag:0")
		if err != nil {
			return asn1.RawValue{}, 0, err
		}
		return asn1.RawValue{FullBytes: raw}, 3, nil
	}
	raw, err := asn1.Marshal(IssuerAndSerialNumber{
		Issuer:       asn1.RawValue{FullBytes: b.Certificate.RawIssuer},
		SerialNumber: b.Certificate.SerialNumber,
	})
	if err != nil {
		return asn1.RawValue{}, 0, err
	}
	return asn1.RawValue{FullBytes: raw}, 1, nil
}

func signatureAlgorithmParameters(oid asn1.ObjectIdentifier) asn1.RawValue {
	switch {
	case oid.Equal(OIDSHA1WithRSA),
		oid.Equal(OIDSHA256WithRSA),
		oid.Equal(OIDSHA384WithRSA),
		oid.Equal(OIDSHA512WithRSA),
		oid.Equal(OIDRSAEncryption):
		return asn1.RawValue{Tag: asn1.TagNull}
	default:
		return asn1.RawValue{} // omit
	}
}

func (b *Builder) buildSignedAttributes(messageDigest []byte) ([]Attribute, error) {
	var attrs []Attribute

	contentTypeValue, err := asn1.Marshal(OIDData)
	if err != nil {
		return nil, err
	}
	attrs = append(attrs, Attribute{
		Type:   OIDContentType,
		Values: []asn1.RawValue{{FullBytes: contentTypeValue}},
	})

	digestValue, err := asn1.Marshal(messageDigest)
	if err != nil {
		return nil, err
	}
	attrs = append(attrs, Attribute{
		Type:   OIDMessageDigest,
		Values: []asn1.RawValue{{FullBytes: digestValue}},
	})

	signingTimeValue, err := asn1.Marshal(b.SigningTime.UTC())
	if err != nil {
		return nil, err
	}
	attrs = append(attrs, Attribute{
		Type:   OIDSigningTime,
		Values: []asn1.RawValue{{FullBytes: signingTimeValue}},
	})

	// ESS signing-certificate-v2
	certHash, err := Digest(b.Algorithm.Hash, b.Certificate.Raw)
	if err != nil {
		return nil, err
	}
	signingCert := SigningCertificateV2{
		Certs: []ESSCertIDv2{
			{
				HashAlgorithm: AlgorithmIdentifier{
					Algorithm:  b.Algorithm.DigestAlgorithm,
					Parameters: asn1.RawValue{Tag: asn1.TagNull},
				},
				CertHash: certHash,
				IssuerSerial: IssuerSerial{
					Issuer: GeneralNames{
						Names: []asn1.RawValue{
							{
								Class:      asn1.ClassContextSpecific,
								Tag:        4, // directoryName
								IsCompound: true,
								Bytes:      b.Certificate.RawIssuer,
							},
						},
					},
					SerialNumber: b.Certificate.SerialNumber,
				},
			},
		},
	}
	signingCertValue, err := asn1.Marshal(signingCert)
	if err != nil {
		return nil, err
	}
	attrs = append(attrs, Attribute{
		Type:   OIDSigningCertificateV2,
		Values: []asn1.RawValue{{FullBytes: signingCertValue}},
	})

	return attrs, nil
}

func (b *Builder) signDigest(digest []byte) ([]byte, error) {
	switch key := b.PrivateKey.(type) {
	case *rsa.PrivateKey:
		return rsa.SignPKCS1v15(rand.Reader, key, b.Algorithm.Hash, digest)
	default:
		return b.PrivateKey.Sign(rand.Reader, digest, b.Algorithm.Hash)
	}
}

// derSortAttributes orders attributes by their DER encoding, as a DER SET
// OF requires.
func derSortAttributes(attrs []Attribute) []Attribute {
	type encoded struct {
		attr Attribute
		der  []byte
	}
	items := make([]encoded, 0, len(attrs))
	for _, a := range attrs {
		der, err := asn1.Marshal(a)
		if err != nil {
			return attrs
		}
		items = append(items, encoded{a, der})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return string(items[i].der) < string(items[j].der)
	})
	out := make([]Attribute, len(items))
	for i, it := range items {
		out[i] = it.attr
	}
	return out
}
