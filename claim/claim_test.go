package claim

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgepadayatti/zkpdf/config"
	"github.com/georgepadayatti/zkpdf/internal/pdftest"
	"github.com/georgepadayatti/zkpdf/internal/signtest"
	"github.com/georgepadayatti/zkpdf/sign/fields"
	"github.com/georgepadayatti/zkpdf/sign/validation"
)

const sample = "Sample Signed PDF Document"

func tamper(t *testing.T, data []byte) []byte {
	t.Helper()
	out := bytes.Replace(data, []byte("(Sample Signed"), []byte("(Simple Signed"), 1)
	require.NotEqual(t, data, out)
	return out
}

func TestVerifyClaim(t *testing.T) {
	data := signtest.TextPDF(t, []string{sample})

	tests := []struct {
		name      string
		substring string
		offset    int
		want      bool
	}{
		{"whole text", sample, 0, true},
		{"inner word", "Signed", 7, true},
		{"wrong offset", "Signed", 6, false},
		{"absent", "Unsigned", 0, false},
		{"offset past end", "Sample", 1000, false},
		{"negative offset", "Sample", -1, false},
		{"runs past end", "Document!", 18, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := VerifyClaim(data, 0, tt.substring, tt.offset)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.SubstringMatches)
			assert.True(t, res.Signature.IsValid)
			assert.Equal(t, tt.want, res.Verified())
			assert.Equal(t, tt.offset, res.Offset)
			assert.Empty(t, res.Pages)
		})
	}
}

func TestVerifyClaimEmptySubstring(t *testing.T) {
	_, err := VerifyClaim([]byte("not a pdf"), 0, "", 0)
	assert.ErrorIs(t, err, ErrEmptySubstring)
}

func TestVerifyClaimPageOutOfRange(t *testing.T) {
	valid := signtest.TextPDF(t, []string{sample})

	for name, data := range map[string][]byte{
		"valid":    valid,
		"tampered": tamper(t, valid),
	} {
		t.Run(name, func(t *testing.T) {
			for _, page := range []int{-1, 1, 7} {
				_, err := VerifyClaim(data, page, "Sample", 0)
				assert.ErrorIs(t, err, ErrPageOutOfRange, "page %d", page)
			}
		})
	}
}

func TestVerifyClaimTampered(t *testing.T) {
	data := tamper(t, signtest.TextPDF(t, []string{sample}))

	res, err := VerifyClaim(data, 0, "Simple Signed", 0)
	require.NoError(t, err)
	assert.True(t, res.SubstringMatches)
	assert.False(t, res.Signature.IsValid)
	assert.False(t, res.Signature.DigestValid)
	assert.Equal(t, validation.FailureDigestMismatch, res.Signature.Failure)
	assert.False(t, res.Verified())
}

func TestVerifyClaimSecondPage(t *testing.T) {
	data := signtest.TextPDF(t, []string{"first page", "second line"}, []string{"page two"})

	res, err := VerifyClaim(data, 1, "two", 5)
	require.NoError(t, err)
	assert.True(t, res.SubstringMatches)
	assert.Equal(t, 1, res.Page)

	res, err = VerifyClaim(data, 0, "second", 11)
	require.NoError(t, err)
	assert.True(t, res.SubstringMatches)
}

func TestVerifyClaimUnsigned(t *testing.T) {
	_, err := VerifyClaim(pdftest.TextPDF([]string{sample}), 0, "Sample", 0)
	assert.ErrorIs(t, err, fields.ErrSignatureNotFound)
}

func TestVerifyClaimUnparseable(t *testing.T) {
	_, err := VerifyClaim([]byte("%PDF-1.7\ngarbage"), 0, "Sample", 0)
	assert.Error(t, err)
}

func TestVerifySignatureOverflowingByteRange(t *testing.T) {
	data := []byte("%PDF-1.4\n1 0 obj << /ByteRange [1 9223372036854775807 10 5] /Contents <3003020100> >> endobj\n")
	data = append(data, bytes.Repeat([]byte{' '}, 64)...)

	_, err := VerifySignature(data)
	assert.ErrorIs(t, err, fields.ErrInvalidByteRange)
}

func TestExtractAndVerify(t *testing.T) {
	data := signtest.TextPDF(t, []string{"first page", "second line"}, []string{"page two"})

	res, err := ExtractAndVerify(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"first page\nsecond line", "page two"}, res.Pages)
	assert.True(t, res.Signature.IsValid)
	assert.False(t, res.SubstringMatches)
}

func TestExtractText(t *testing.T) {
	pages, err := ExtractText(pdftest.TextPDF([]string{"a"}, []string{"b"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, pages)
}

func TestVerifySignature(t *testing.T) {
	res, err := VerifySignature(signtest.TextPDF(t, []string{sample}))
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Equal(t, "Signature1", res.FieldName)
}

func TestSessionCachesSignature(t *testing.T) {
	s := NewSession(signtest.TextPDF(t, []string{sample}))

	first, err := s.VerifySignature()
	require.NoError(t, err)
	res, err := s.VerifyClaim(0, "PDF", 14)
	require.NoError(t, err)
	assert.True(t, res.SubstringMatches)
	assert.Equal(t, first, res.Signature)

	doc, err := s.Document()
	require.NoError(t, err)
	again, err := s.Document()
	require.NoError(t, err)
	assert.Same(t, doc, again)
}

func TestSessionWithLimits(t *testing.T) {
	limits := config.LimitsConfig{MaxXObjectDepth: 2}
	s := NewSession(signtest.TextPDF(t, []string{sample}), WithLimits(limits), WithLogger(nil))
	res, err := s.VerifyClaim(0, sample, 0)
	require.NoError(t, err)
	assert.True(t, res.Verified())
	assert.Equal(t, 2, s.limits.MaxXObjectDepth)
	assert.NotZero(t, s.limits.MaxDecompressedSize)
}

func TestClaimResultJSONDeterministic(t *testing.T) {
	data := signtest.TextPDF(t, []string{sample})

	encode := func() []byte {
		res, err := VerifyClaim(data, 0, "Signed", 7)
		require.NoError(t, err)
		out, err := json.Marshal(res)
		require.NoError(t, err)
		return out
	}
	first := encode()
	assert.Equal(t, first, encode())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(first, &decoded))
	assert.Equal(t, true, decoded["substring_matches"])
	assert.Equal(t, "Signed", decoded["substring"])
	assert.NotContains(t, decoded, "pages")
	sig, ok := decoded["signature"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, sig["is_valid"])
	assert.Equal(t, "ENTIRE_FILE", sig["coverage"])
}
