// Package commitment derives the public values of a claim: keccak-256
// hashes of the message digest, signer key and substring, a nullifier
// binding them to the claim parameters, and the match flag.
package commitment

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/georgepadayatti/zkpdf/claim"
)

// NullifierDomain separates nullifier preimages from other keccak inputs.
const NullifierDomain = "zkpdf-nullifier-v0"

// EncodedSize is the length of an ABI-encoded commitment.
const EncodedSize = 5 * 32

var (
	// ErrParameterRange is returned when a claim page does not fit in a
	// byte or its offset in 32 bits.
	ErrParameterRange = errors.New("claim parameter out of range")

	// ErrInvalidEncoding is returned by ABIDecode.
	ErrInvalidEncoding = errors.New("invalid commitment encoding")
)

// Hash is a keccak-256 digest. It encodes as 0x-prefixed hex.
type Hash [32]byte

// Keccak256 hashes the concatenation of parts.
func Keccak256(parts ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// IsZero reports whether h is all zero bytes.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// MarshalText encodes h as 0x-prefixed hex.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes 64 hex digits with an optional 0x prefix.
func (h *Hash) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(string(text), "0x")
	if len(s) != 2*len(h) {
		return fmt.Errorf("%w: hash must be %d hex digits", ErrInvalidEncoding, 2*len(h))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return nil
}

// PublicCommitment is the only data of a claim exposed outside the
// prover: hashes and the match flag.
type PublicCommitment struct {
	SubstringMatches  bool `json:"substring_matches"`
	MessageDigestHash Hash `json:"message_digest_hash"`
	SignerKeyHash     Hash `json:"signer_key_hash"`
	SubstringHash     Hash `json:"substring_hash"`
	Nullifier         Hash `json:"nullifier"`
}

// Nullifier binds a document and signer to one claim. Identical claims
// against the same signed content produce the same nullifier.
func Nullifier(messageDigestHash, signerKeyHash, substringHash Hash, page uint8, offset uint32) Hash {
	var params [5]byte
	params[0] = page
	binary.BigEndian.PutUint32(params[1:], offset)
	return Keccak256([]byte(NullifierDomain),
		messageDigestHash[:], signerKeyHash[:], substringHash[:], params[:])
}

// Build derives the commitment of a claim. A claim whose signature is
// invalid yields the zero commitment. A substring that did not match still
// commits to the document and claim, with the match flag false.
func Build(res *claim.ClaimResult) (PublicCommitment, error) {
	if res == nil || !res.Signature.IsValid {
		return PublicCommitment{}, nil
	}
	if res.Page < 0 || res.Page > math.MaxUint8 {
		return PublicCommitment{}, fmt.Errorf("%w: page %d", ErrParameterRange, res.Page)
	}
	if res.Offset < 0 || int64(res.Offset) > math.MaxUint32 {
		return PublicCommitment{}, fmt.Errorf("%w: offset %d", ErrParameterRange, res.Offset)
	}

	c := PublicCommitment{
		SubstringMatches:  res.SubstringMatches,
		MessageDigestHash: Keccak256(res.Signature.MessageDigest),
		SignerKeyHash:     Keccak256(res.Signature.PublicKey),
		SubstringHash:     Keccak256([]byte(res.Substring)),
	}
	c.Nullifier = Nullifier(c.MessageDigestHash, c.SignerKeyHash, c.SubstringHash,
		uint8(res.Page), uint32(res.Offset))
	return c, nil
}

// ABIEncode lays c out as the static tuple
// (bool, bytes32, bytes32, bytes32, bytes32).
func (c PublicCommitment) ABIEncode() []byte {
	out := make([]byte, EncodedSize)
	if c.SubstringMatches {
		out[31] = 1
	}
	copy(out[32:], c.MessageDigestHash[:])
	copy(out[64:], c.SignerKeyHash[:])
	copy(out[96:], c.SubstringHash[:])
	copy(out[128:], c.Nullifier[:])
	return out
}

// ABIDecode parses the output of ABIEncode. The bool word must be
// canonical: 31 zero bytes then 0 or 1.
func ABIDecode(data []byte) (PublicCommitment, error) {
	var c PublicCommitment
	if len(data) != EncodedSize {
		return c, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidEncoding, len(data), EncodedSize)
	}
	if !bytes.Equal(data[:31], make([]byte, 31)) || data[31] > 1 {
		return c, fmt.Errorf("%w: non-canonical bool word", ErrInvalidEncoding)
	}
	c.SubstringMatches = data[31] == 1
	copy(c.MessageDigestHash[:], data[32:64])
	copy(c.SignerKeyHash[:], data[64:96])
	copy(c.SubstringHash[:], data[96:128])
	copy(c.Nullifier[:], data[128:160])
	return c, nil
}
