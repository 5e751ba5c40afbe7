// Package signtest produces signing credentials and signed PDF files for
// tests.
package signtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/georgepadayatti/zkpdf/internal/pdftest"
	"github.com/georgepadayatti/zkpdf/sign/cms"
	"github.com/georgepadayatti/zkpdf/sign/signers"
)

// SigningTime is the clock time of every signature made here.
var SigningTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	once sync.Once
	key  *rsa.PrivateKey
	cert *x509.Certificate
	err  error
)

// Credential returns a self-signed RSA 2048 certificate and its key. The
// pair is generated once per test binary.
func Credential(t testing.TB) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	once.Do(func() {
		key, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return
		}
		template := &x509.Certificate{
			SerialNumber: big.NewInt(4242),
			Subject: pkix.Name{
				CommonName:   "Test Signer",
				Organization: []string{"zkpdf"},
			},
			NotBefore:             time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			NotAfter:              time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC),
			KeyUsage:              x509.KeyUsageDigitalSignature,
			BasicConstraintsValid: true,
		}
		var der []byte
		der, err = x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
		if err != nil {
			return
		}
		cert, err = x509.ParseCertificate(der)
	})
	if err != nil {
		t.Fatalf("signtest: failed to create credential: %v", err)
	}
	return cert, key
}

// Signer returns a PDF signer for the test credential with a fixed clock.
func Signer(t testing.TB, alg cms.SignatureAlgorithm) *signers.PdfSigner {
	t.Helper()
	c, k := Credential(t)
	meta := signers.NewSignatureMetadata("")
	meta.Reason = "Test"
	return signers.NewPdfSigner(signers.NewSimpleSigner(c, k, alg), meta,
		signers.WithClock(clockwork.NewFakeClockAt(SigningTime)))
}

// Sign signs data with RSA-SHA256 over the whole file.
func Sign(t testing.TB, data []byte) []byte {
	t.Helper()
	signed, err := Signer(t, cms.SHA256WithRSA).SignBytes(data)
	if err != nil {
		t.Fatalf("signtest: failed to sign: %v", err)
	}
	return signed
}

// TextPDF returns a signed document with one page per entry.
func TextPDF(t testing.TB, pages ...[]string) []byte {
	t.Helper()
	return Sign(t, pdftest.TextPDF(pages...))
}
