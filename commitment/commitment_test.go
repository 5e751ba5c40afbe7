package commitment

import (
	"encoding/hex"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgepadayatti/zkpdf/claim"
	"github.com/georgepadayatti/zkpdf/internal/signtest"
	"github.com/georgepadayatti/zkpdf/sign/validation"
)

func mustHash(t *testing.T, s string) Hash {
	t.Helper()
	var h Hash
	require.NoError(t, h.UnmarshalText([]byte(s)))
	return h
}

func TestKeccak256(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{"abc", "0x4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Keccak256([]byte(tt.in)).String(), "keccak256(%q)", tt.in)
	}
	assert.Equal(t, Keccak256([]byte("abc")), Keccak256([]byte("a"), []byte("bc")))
}

func TestNullifierPreimage(t *testing.T) {
	md, key, sub := Keccak256([]byte("md")), Keccak256([]byte("key")), Keccak256([]byte("sub"))

	preimage := []byte(NullifierDomain)
	preimage = append(preimage, md[:]...)
	preimage = append(preimage, key[:]...)
	preimage = append(preimage, sub[:]...)
	preimage = append(preimage, 3, 0x01, 0x02, 0x03, 0x04)

	assert.Equal(t, Keccak256(preimage), Nullifier(md, key, sub, 3, 0x01020304))
	assert.NotEqual(t, Nullifier(md, key, sub, 3, 0), Nullifier(md, key, sub, 4, 0))
	assert.NotEqual(t, Nullifier(md, key, sub, 0, 1), Nullifier(md, key, sub, 0, 2))
}

func verified() *claim.ClaimResult {
	return &claim.ClaimResult{
		SubstringMatches: true,
		Signature: validation.VerificationResult{
			IsValid:       true,
			MessageDigest: []byte{1, 2, 3},
			PublicKey:     []byte{4, 5, 6},
		},
		Page:      2,
		Offset:    10,
		Substring: "Signed",
	}
}

func TestBuild(t *testing.T) {
	c, err := Build(verified())
	require.NoError(t, err)

	assert.True(t, c.SubstringMatches)
	assert.Equal(t, Keccak256([]byte{1, 2, 3}), c.MessageDigestHash)
	assert.Equal(t, Keccak256([]byte{4, 5, 6}), c.SignerKeyHash)
	assert.Equal(t, Keccak256([]byte("Signed")), c.SubstringHash)
	assert.Equal(t, Nullifier(c.MessageDigestHash, c.SignerKeyHash, c.SubstringHash, 2, 10), c.Nullifier)
}

func TestBuildZeroOnFailure(t *testing.T) {
	invalid := verified()
	invalid.Signature.IsValid = false
	invalidUnmatched := verified()
	invalidUnmatched.Signature.IsValid = false
	invalidUnmatched.SubstringMatches = false

	for name, res := range map[string]*claim.ClaimResult{
		"nil":               nil,
		"invalid":           invalid,
		"invalid unmatched": invalidUnmatched,
	} {
		t.Run(name, func(t *testing.T) {
			c, err := Build(res)
			require.NoError(t, err)
			assert.Equal(t, PublicCommitment{}, c)
			assert.True(t, c.Nullifier.IsZero())
		})
	}
}

func TestBuildUnmatched(t *testing.T) {
	res := verified()
	res.SubstringMatches = false

	c, err := Build(res)
	require.NoError(t, err)
	assert.False(t, c.SubstringMatches)
	assert.Equal(t, Keccak256([]byte{1, 2, 3}), c.MessageDigestHash)
	assert.Equal(t, Keccak256([]byte{4, 5, 6}), c.SignerKeyHash)
	assert.Equal(t, Keccak256([]byte("Signed")), c.SubstringHash)
	assert.Equal(t, Nullifier(c.MessageDigestHash, c.SignerKeyHash, c.SubstringHash, 2, 10), c.Nullifier)

	matched, err := Build(verified())
	require.NoError(t, err)
	assert.Equal(t, matched.Nullifier, c.Nullifier)
	assert.NotEqual(t, matched.ABIEncode(), c.ABIEncode())
}

func TestBuildParameterRange(t *testing.T) {
	tests := []struct {
		name   string
		page   int
		offset int
	}{
		{"page too large", 256, 0},
		{"negative page", -1, 0},
		{"negative offset", 0, -1},
		{"offset too large", 0, math.MaxUint32 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := verified()
			res.Page, res.Offset = tt.page, tt.offset
			_, err := Build(res)
			assert.ErrorIs(t, err, ErrParameterRange)
		})
	}
}

func TestBuildFromClaim(t *testing.T) {
	data := signtest.TextPDF(t, []string{"Sample Signed PDF Document"})

	res, err := claim.VerifyClaim(data, 0, "Signed", 7)
	require.NoError(t, err)
	c, err := Build(res)
	require.NoError(t, err)
	assert.True(t, c.SubstringMatches)
	assert.False(t, c.MessageDigestHash.IsZero())

	again, err := claim.VerifyClaim(data, 0, "Signed", 7)
	require.NoError(t, err)
	c2, err := Build(again)
	require.NoError(t, err)
	assert.Equal(t, c, c2)

	other, err := claim.VerifyClaim(data, 0, "Sample", 0)
	require.NoError(t, err)
	c3, err := Build(other)
	require.NoError(t, err)
	assert.Equal(t, c.MessageDigestHash, c3.MessageDigestHash)
	assert.Equal(t, c.SignerKeyHash, c3.SignerKeyHash)
	assert.NotEqual(t, c.SubstringHash, c3.SubstringHash)
	assert.NotEqual(t, c.Nullifier, c3.Nullifier)
}

func TestBuildUnmatchedDistinctDocuments(t *testing.T) {
	a := signtest.TextPDF(t, []string{"Sample Signed PDF Document"})
	b := signtest.TextPDF(t, []string{"Another Signed PDF"})

	resA, err := claim.VerifyClaim(a, 0, "Sample", 1)
	require.NoError(t, err)
	resB, err := claim.VerifyClaim(b, 0, "Zzz", 3)
	require.NoError(t, err)
	require.True(t, resA.Signature.IsValid)
	require.True(t, resB.Signature.IsValid)
	require.False(t, resA.SubstringMatches)
	require.False(t, resB.SubstringMatches)

	ca, err := Build(resA)
	require.NoError(t, err)
	cb, err := Build(resB)
	require.NoError(t, err)

	assert.False(t, ca.SubstringMatches)
	assert.False(t, ca.MessageDigestHash.IsZero())
	assert.False(t, ca.Nullifier.IsZero())
	assert.NotEqual(t, ca.MessageDigestHash, cb.MessageDigestHash)
	assert.NotEqual(t, ca.SubstringHash, cb.SubstringHash)
	assert.NotEqual(t, ca.Nullifier, cb.Nullifier)
}

func TestABIEncode(t *testing.T) {
	c, err := Build(verified())
	require.NoError(t, err)

	enc := c.ABIEncode()
	require.Len(t, enc, EncodedSize)
	assert.Equal(t, "0000000000000000000000000000000000000000000000000000000000000001", hex.EncodeToString(enc[:32]))
	assert.Equal(t, c.MessageDigestHash[:], enc[32:64])
	assert.Equal(t, c.Nullifier[:], enc[128:])

	dec, err := ABIDecode(enc)
	require.NoError(t, err)
	assert.Equal(t, c, dec)

	zero := PublicCommitment{}.ABIEncode()
	assert.Equal(t, make([]byte, EncodedSize), zero)
}

func TestABIDecodeErrors(t *testing.T) {
	valid := PublicCommitment{SubstringMatches: true}.ABIEncode()

	twoWord := append([]byte(nil), valid...)
	twoWord[31] = 2
	highByte := append([]byte(nil), valid...)
	highByte[0] = 1

	for name, data := range map[string][]byte{
		"empty":     nil,
		"short":     valid[:EncodedSize-1],
		"long":      append(append([]byte(nil), valid...), 0),
		"bool two":  twoWord,
		"high byte": highByte,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ABIDecode(data)
			assert.ErrorIs(t, err, ErrInvalidEncoding)
		})
	}
}

func TestJSON(t *testing.T) {
	c, err := Build(verified())
	require.NoError(t, err)

	out, err := json.Marshal(c)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(out, &fields))
	assert.Equal(t, true, fields["substring_matches"])
	assert.Equal(t, c.SubstringHash.String(), fields["substring_hash"])

	var decoded PublicCommitment
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, c, decoded)
}

func TestHashUnmarshalText(t *testing.T) {
	h := mustHash(t, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	assert.Equal(t, Keccak256(nil), h)

	var bad Hash
	assert.ErrorIs(t, bad.UnmarshalText([]byte("0x1234")), ErrInvalidEncoding)
	assert.ErrorIs(t, bad.UnmarshalText([]byte("0x"+string(make([]byte, 64)))), ErrInvalidEncoding)
}
