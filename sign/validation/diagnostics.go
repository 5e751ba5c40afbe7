package validation

import (
	"crypto"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"time"

	"github.com/georgepadayatti/zkpdf/sign/cms"
	"github.com/georgepadayatti/zkpdf/sign/fields"
)

// OIDExtKeyUsageDocumentSigning is the RFC 9336 document signing purpose.
var OIDExtKeyUsageDocumentSigning = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 36}

// WeakHashes are digests accepted for verification but reported.
var WeakHashes = map[crypto.Hash]bool{
	crypto.SHA1: true,
}

// Warning texts. They describe the signature without affecting IsValid.
const (
	WarningPartialCoverage   = "signature does not cover the whole document"
	WarningWeakDigest        = "digest algorithm %s is considered weak"
	WarningUnparsedCert      = "signer certificate could not be fully parsed"
	WarningNoDigitalSig      = "signer certificate lacks the digitalSignature key usage"
	WarningNotYetValid       = "signer certificate was not yet valid at signing time"
	WarningExpired           = "signer certificate had expired at signing time"
	WarningNoDocSigningEKU   = "signer certificate extended key usage does not allow document signing"
	WarningTrustNotEvaluated = "certificate trust is not evaluated"
)

// diagnose collects informational warnings. The list depends only on the
// signature, never on the current time.
func diagnose(sig *fields.Signature, info *cms.SignedDataInfo, signingTime *time.Time) []string {
	var warnings []string
	if !sig.CoversWholeDocument() {
		warnings = append(warnings, WarningPartialCoverage)
	}
	if WeakHashes[info.Hash()] {
		warnings = append(warnings, fmt.Sprintf(WarningWeakDigest, info.Hash()))
	}

	cert := info.Certificate
	if cert == nil {
		warnings = append(warnings, WarningUnparsedCert)
	} else {
		warnings = append(warnings, certificateWarnings(cert, signingTime)...)
	}
	return append(warnings, WarningTrustNotEvaluated)
}

func certificateWarnings(cert *x509.Certificate, signingTime *time.Time) []string {
	var warnings []string
	if cert.KeyUsage != 0 && cert.KeyUsage&(x509.KeyUsageDigitalSignature|x509.KeyUsageContentCommitment) == 0 {
		warnings = append(warnings, WarningNoDigitalSig)
	}
	if signingTime != nil {
		if signingTime.Before(cert.NotBefore) {
			warnings = append(warnings, WarningNotYetValid)
		}
		if signingTime.After(cert.NotAfter) {
			warnings = append(warnings, WarningExpired)
		}
	}
	if !extKeyUsageAllowsSigning(cert) {
		warnings = append(warnings, WarningNoDocSigningEKU)
	}
	return warnings
}

// extKeyUsageAllowsSigning accepts certificates without the extension,
// and otherwise document signing, email protection, client auth or any.
func extKeyUsageAllowsSigning(cert *x509.Certificate) bool {
	if len(cert.ExtKeyUsage) == 0 && len(cert.UnknownExtKeyUsage) == 0 {
		return true
	}
	for _, eku := range cert.ExtKeyUsage {
		switch eku {
		case x509.ExtKeyUsageAny, x509.ExtKeyUsageEmailProtection, x509.ExtKeyUsageClientAuth:
			return true
		}
	}
	for _, oid := range cert.UnknownExtKeyUsage {
		if oid.Equal(OIDExtKeyUsageDocumentSigning) {
			return true
		}
	}
	return false
}
