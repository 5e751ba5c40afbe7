package cli

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/georgepadayatti/zkpdf/claim"
	"github.com/georgepadayatti/zkpdf/commitment"
	"github.com/georgepadayatti/zkpdf/internal/pdftest"
	"github.com/georgepadayatti/zkpdf/internal/signtest"
	"github.com/georgepadayatti/zkpdf/sign/fields"
	"github.com/georgepadayatti/zkpdf/sign/validation"
)

const sample = "Sample Signed PDF Document"

// capture redirects the command output streams for the duration of t.
func capture(t *testing.T) (out, errOut *bytes.Buffer) {
	t.Helper()
	out, errOut = &bytes.Buffer{}, &bytes.Buffer{}
	oldOut, oldErr := stdout, stderr
	stdout, stderr = out, errOut
	t.Cleanup(func() {
		stdout, stderr = oldOut, oldErr
	})
	return out, errOut
}

func stubExit(t *testing.T) *int {
	t.Helper()
	code := -1
	old := osExit
	osExit = func(c int) { code = c }
	t.Cleanup(func() { osExit = old })
	return &code
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRun(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
		out  string
	}{
		{"no command", []string{"zkpdf"}, ExitError, "Commands:"},
		{"help", []string{"zkpdf", "help"}, -1, "Commands:"},
		{"unknown", []string{"zkpdf", "frobnicate"}, ExitError, "Unknown command: frobnicate"},
		{"missing argument", []string{"zkpdf", "verify"}, ExitError, "expected 1 argument"},
		{"command help", []string{"zkpdf", "extract", "-h"}, -1, "Usage: zkpdf extract"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut := capture(t)
			code := stubExit(t)
			Run(tt.args)
			assert.Equal(t, tt.code, *code)
			assert.Contains(t, errOut.String(), tt.out)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, _ := capture(t)
	require.NoError(t, VersionCommand(nil))
	assert.Contains(t, out.String(), "zkpdf version "+Version)
}

func TestExtractCommand(t *testing.T) {
	path := writeFile(t, "doc.pdf", pdftest.TextPDF([]string{"first page", "second line"}, []string{"page two"}))

	out, _ := capture(t)
	require.NoError(t, ExtractCommand([]string{path}))
	assert.Equal(t, "first page\nsecond line\fpage two\n", out.String())

	out.Reset()
	require.NoError(t, ExtractCommand([]string{"--page", "1", "--format", "json", path}))
	var got ExtractOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got.Pages, 1)
	assert.Equal(t, 1, got.Pages[0].Index)
	assert.Equal(t, "page two", got.Pages[0].Text)
	assert.Empty(t, got.Pages[0].Spans)

	out.Reset()
	require.NoError(t, ExtractCommand([]string{"--page", "0", "--format", "json", "--spans", path}))
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.NotEmpty(t, got.Pages[0].Spans)
}

func TestExtractCommandErrors(t *testing.T) {
	path := writeFile(t, "doc.pdf", pdftest.TextPDF([]string{"only"}))
	capture(t)

	assert.ErrorIs(t, ExtractCommand([]string{"--page", "3", path}), claim.ErrPageOutOfRange)
	assert.Error(t, ExtractCommand([]string{"--format", "xml", path}))
	assert.Error(t, ExtractCommand([]string{filepath.Join(t.TempDir(), "missing.pdf")}))
}

func TestExtractCommandStdin(t *testing.T) {
	old := stdin
	stdin = bytes.NewReader(pdftest.TextPDF([]string{"piped"}))
	t.Cleanup(func() { stdin = old })

	out, _ := capture(t)
	require.NoError(t, ExtractCommand([]string{"-"}))
	assert.Equal(t, "piped\n", out.String())
}

func TestVerifyCommand(t *testing.T) {
	signed := signtest.TextPDF(t, []string{sample})
	path := writeFile(t, "signed.pdf", signed)

	out, _ := capture(t)
	require.NoError(t, VerifyCommand([]string{path}))
	var res validation.VerificationResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.True(t, res.IsValid)

	tampered := bytes.Replace(signed, []byte("(Sample Signed"), []byte("(Simple Signed"), 1)
	out.Reset()
	err := VerifyCommand([]string{writeFile(t, "tampered.pdf", tampered)})
	assert.ErrorIs(t, err, errNegative)
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.False(t, res.IsValid)
	assert.Equal(t, validation.FailureDigestMismatch, res.Failure)

	out.Reset()
	require.NoError(t, VerifyCommand([]string{"--all", path}))
	var all []validation.VerificationResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &all))
	assert.Len(t, all, 1)
}

func TestVerifyCommandUnsigned(t *testing.T) {
	capture(t)
	err := VerifyCommand([]string{writeFile(t, "plain.pdf", pdftest.TextPDF([]string{"x"}))})
	assert.ErrorIs(t, err, fields.ErrSignatureNotFound)
}

func TestClaimCommand(t *testing.T) {
	path := writeFile(t, "signed.pdf", signtest.TextPDF(t, []string{sample}))

	out, _ := capture(t)
	require.NoError(t, ClaimCommand([]string{"--page", "0", "--substring", "Signed", "--offset", "7", "--commit", path}))

	var got ClaimOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.NotNil(t, got.Claim)
	assert.True(t, got.Claim.SubstringMatches)
	assert.True(t, got.Claim.Signature.IsValid)
	require.NotNil(t, got.Commitment)
	assert.Equal(t, commitment.Keccak256([]byte("Signed")), got.Commitment.SubstringHash)
	assert.Len(t, got.ABI, 2+2*commitment.EncodedSize)

	out.Reset()
	err := ClaimCommand([]string{"--substring", "Signed", "--offset", "8", path})
	assert.ErrorIs(t, err, errNegative)
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.False(t, got.Claim.SubstringMatches)
}

func TestClaimCommandErrors(t *testing.T) {
	path := writeFile(t, "signed.pdf", signtest.TextPDF(t, []string{sample}))
	capture(t)

	assert.ErrorIs(t, ClaimCommand([]string{"--offset", "0", path}), claim.ErrEmptySubstring)
	assert.ErrorIs(t, ClaimCommand([]string{"--page", "2", "--substring", "x", path}), claim.ErrPageOutOfRange)
}

func TestCommitCommand(t *testing.T) {
	data := signtest.TextPDF(t, []string{sample})
	path := writeFile(t, "signed.pdf", data)

	out, _ := capture(t)
	require.NoError(t, CommitCommand([]string{"--substring", "Sample", path}))

	var got ClaimOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Nil(t, got.Claim)
	require.NotNil(t, got.Commitment)

	res, err := claim.VerifyClaim(data, 0, "Sample", 0)
	require.NoError(t, err)
	want, err := commitment.Build(res)
	require.NoError(t, err)
	assert.Equal(t, want, *got.Commitment)
	assert.True(t, strings.HasPrefix(got.ABI, "0x"+strings.Repeat("0", 63)+"1"))
}

func TestRunNegativeExitCode(t *testing.T) {
	path := writeFile(t, "signed.pdf", signtest.TextPDF(t, []string{sample}))
	capture(t)
	code := stubExit(t)

	Run([]string{"zkpdf", "commit", "--substring", "Sample", "--offset", "1", path})
	assert.Equal(t, ExitNegative, *code)
}

func TestSignCommandPEM(t *testing.T) {
	cert, key := signtest.Credential(t)
	certPath := writeFile(t, "cert.pem", pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}))
	keyPath := writeFile(t, "key.pem", pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	input := writeFile(t, "in.pdf", pdftest.TextPDF([]string{sample}))
	output := filepath.Join(t.TempDir(), "out.pdf")

	_, errOut := capture(t)
	require.NoError(t, SignCommand([]string{
		"--cert", certPath, "--key", keyPath,
		"--hash", "sha384", "--reason", "Approved", "--field", "Approval",
		input, output,
	}))
	assert.Contains(t, errOut.String(), "Successfully signed PDF")

	signed, err := os.ReadFile(output)
	require.NoError(t, err)
	sig, err := fields.LocateBytes(signed)
	require.NoError(t, err)
	assert.Equal(t, "Approval", sig.FieldName)
	assert.Equal(t, "Approved", sig.Reason)

	res, err := claim.VerifyClaim(signed, 0, sample, 0)
	require.NoError(t, err)
	assert.True(t, res.Verified())
	assert.Equal(t, "sha384WithRSAEncryption", res.Signature.SignatureAlgorithm)
}

func TestSignCommandPKCS12(t *testing.T) {
	cert, key := signtest.Credential(t)
	pfx, err := pkcs12.Modern.Encode(key, cert, nil, "secret")
	require.NoError(t, err)
	pfxPath := writeFile(t, "id.p12", pfx)
	input := writeFile(t, "in.pdf", pdftest.TextPDF([]string{sample}))
	output := filepath.Join(t.TempDir(), "out.pdf")

	capture(t)
	require.NoError(t, SignCommand([]string{"--p12", pfxPath, "--password", "secret", input, output}))

	signed, err := os.ReadFile(output)
	require.NoError(t, err)
	res, err := claim.VerifySignature(signed)
	require.NoError(t, err)
	assert.True(t, res.IsValid)

	err = SignCommand([]string{"--p12", pfxPath, "--password", "wrong", input, output})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--password")
}

func TestSignCommandNoCredential(t *testing.T) {
	input := writeFile(t, "in.pdf", pdftest.TextPDF([]string{sample}))
	capture(t)

	err := SignCommand([]string{input, filepath.Join(t.TempDir(), "out.pdf")})
	require.Error(t, err)
	assert.False(t, errors.Is(err, errNegative))
}
