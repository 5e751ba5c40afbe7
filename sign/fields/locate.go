package fields

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
	"golang.org/x/text/unicode/norm"

	"github.com/georgepadayatti/zkpdf/pdf/generic"
	"github.com/georgepadayatti/zkpdf/pdf/metadata"
	"github.com/georgepadayatti/zkpdf/pdf/reader"
)

var (
	// ErrSignatureNotFound is returned when a document holds no signature
	// dictionary with /ByteRange and /Contents.
	ErrSignatureNotFound = errors.New("signature not found")

	// ErrInvalidByteRange is returned for byte ranges that are not four
	// non-negative, ordered integers inside the file.
	ErrInvalidByteRange = errors.New("invalid byte range")
)

// ByteRange is the /ByteRange of a signature: the two file regions the
// signature covers, around the /Contents hex string.
type ByteRange struct {
	Start1, Len1 int64
	Start2, Len2 int64
}

// Array returns the range as [Start1, Len1, Start2, Len2].
func (br ByteRange) Array() [4]int64 {
	return [4]int64{br.Start1, br.Len1, br.Start2, br.Len2}
}

// End returns the offset after the second region.
func (br ByteRange) End() int64 {
	return br.Start2 + br.Len2
}

// Validate checks the range against a file length.
func (br ByteRange) Validate(fileLength int64) error {
	fail := func(reason string) error {
		return &ByteRangeError{Range: br, FileLength: fileLength, Reason: reason}
	}
	for _, v := range br.Array() {
		if v < 0 {
			return fail("negative value")
		}
	}
	if br.Start1 > fileLength || br.Len1 > fileLength-br.Start1 ||
		br.Start2 > fileLength || br.Len2 > fileLength-br.Start2 {
		return fail("beyond end of file")
	}
	if br.Start1+br.Len1 > br.Start2 {
		return fail("regions overlap")
	}
	return nil
}

// CoversWholeDocument reports whether the range starts at the beginning
// of the file and ends at its end.
func (br ByteRange) CoversWholeDocument(fileLength int64) bool {
	return br.Start1 == 0 && br.End() == fileLength
}

// Extract concatenates the two regions of data. The range must be valid
// for data.
func (br ByteRange) Extract(data []byte) []byte {
	out := make([]byte, 0, br.Len1+br.Len2)
	out = append(out, data[br.Start1:br.Start1+br.Len1]...)
	return append(out, data[br.Start2:br.Start2+br.Len2]...)
}

// MarshalJSON encodes the range as a four-element array.
func (br ByteRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(br.Array())
}

// UnmarshalJSON decodes a four-element array.
func (br *ByteRange) UnmarshalJSON(data []byte) error {
	var arr [4]int64
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	*br = ByteRange{arr[0], arr[1], arr[2], arr[3]}
	return nil
}

// ByteRangeError describes a rejected byte range.
type ByteRangeError struct {
	Range      ByteRange
	FileLength int64
	Reason     string
}

func (e *ByteRangeError) Error() string {
	return fmt.Sprintf("%s %v (file length %d): %s", ErrInvalidByteRange, e.Range.Array(), e.FileLength, e.Reason)
}

// Is reports whether target is ErrInvalidByteRange.
func (e *ByteRangeError) Is(target error) bool {
	return target == ErrInvalidByteRange
}

// Signature is a located signature with the bytes it covers.
type Signature struct {
	ByteRange ByteRange `json:"byte_range"`

	// Contents is the signature container, trimmed of padding.
	Contents []byte `json:"contents"`

	// SignedBytes is the concatenation of the byte range regions.
	SignedBytes []byte `json:"-"`

	FieldName   string     `json:"field_name,omitempty"`
	SubFilter   string     `json:"sub_filter,omitempty"`
	Name        string     `json:"name,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Location    string     `json:"location,omitempty"`
	ContactInfo string     `json:"contact_info,omitempty"`
	SigningTime *time.Time `json:"signing_time,omitempty"`

	// FileLength is the length of the file the signature was found in.
	FileLength int64 `json:"file_length"`
}

// CoversWholeDocument reports whether the signature covers the whole file
// apart from its own contents.
func (s *Signature) CoversWholeDocument() bool {
	return s.ByteRange.CoversWholeDocument(s.FileLength)
}

// Locate returns the most recent signature of doc, the one whose byte
// range ends last.
func Locate(doc *reader.Document) (*Signature, error) {
	sigs, err := LocateAll(doc)
	if err != nil {
		return nil, err
	}
	return sigs[len(sigs)-1], nil
}

// LocateAll returns every signature of doc ordered by the end of its byte
// range, oldest first. A signature dictionary with a malformed byte range
// fails the whole lookup.
func LocateAll(doc *reader.Document) ([]*Signature, error) {
	fields, err := EnumerateSignatureFields(doc)
	if err != nil && !errors.Is(err, ErrNoAcroForm) {
		return nil, err
	}

	data := doc.Data()
	seen := make(map[generic.Reference]bool)
	var sigs []*Signature
	for _, f := range fields {
		if f.Value == nil || !f.Value.Has("ByteRange") || !f.Value.Has("Contents") {
			continue
		}
		if f.ValueRef != nil {
			if seen[*f.ValueRef] {
				continue
			}
			seen[*f.ValueRef] = true
		}
		sig, err := fromDictionary(doc, f.Value, data)
		if err != nil {
			return nil, fmt.Errorf("signature field %q: %w", f.FullName, err)
		}
		sig.FieldName = f.FullName
		sigs = append(sigs, sig)
	}
	if len(sigs) == 0 {
		return nil, ErrSignatureNotFound
	}
	sort.SliceStable(sigs, func(i, j int) bool {
		return sigs[i].ByteRange.End() < sigs[j].ByteRange.End()
	})
	return sigs, nil
}

// LocateBytes parses data and locates its most recent signature. When the
// object graph cannot be read, or holds no signature, the raw bytes are
// scanned for the first /ByteRange and its /Contents.
func LocateBytes(data []byte, opts ...reader.Option) (*Signature, error) {
	doc, openErr := reader.Open(data, opts...)
	if openErr == nil {
		sig, err := Locate(doc)
		if !errors.Is(err, ErrSignatureNotFound) {
			return sig, err
		}
	}
	sig, err := ScanBytes(data)
	if errors.Is(err, ErrSignatureNotFound) && openErr != nil {
		return nil, openErr
	}
	return sig, err
}

func fromDictionary(r reader.ObjectResolver, dict *generic.DictionaryObject, data []byte) (*Signature, error) {
	fileLength := int64(len(data))
	arr := reader.ResolveArray(r, dict.Get("ByteRange"))
	if len(arr) != 4 {
		return nil, &ByteRangeError{FileLength: fileLength, Reason: fmt.Sprintf("%d entries", len(arr))}
	}
	var values [4]int64
	for i, item := range arr {
		v, ok := reader.ResolveInt(r, item)
		if !ok {
			return nil, &ByteRangeError{FileLength: fileLength, Reason: fmt.Sprintf("entry %d is not an integer", i)}
		}
		values[i] = v
	}
	br := ByteRange{values[0], values[1], values[2], values[3]}
	if err := br.Validate(fileLength); err != nil {
		return nil, err
	}

	contents := reader.ResolveString(r, dict.Get("Contents"))
	if contents == nil {
		return nil, fmt.Errorf("%w: /Contents is not a string", ErrSignatureNotFound)
	}

	text := func(key string) string {
		if s := reader.ResolveString(r, dict.Get(key)); s != nil {
			return norm.NFC.String(s.Text())
		}
		return ""
	}
	sig := &Signature{
		ByteRange:   br,
		Contents:    TrimContents(contents.Value),
		SignedBytes: br.Extract(data),
		SubFilter:   reader.ResolveName(r, dict.Get("SubFilter")),
		Name:        text("Name"),
		Reason:      text("Reason"),
		Location:    text("Location"),
		ContactInfo: text("ContactInfo"),
		FileLength:  fileLength,
	}
	if m := text("M"); m != "" {
		if t, err := metadata.ParsePDFDate(m); err == nil {
			sig.SigningTime = t
		}
	}
	return sig, nil
}

// TrimContents cuts a signature container to the DER length of its outer
// SEQUENCE. Contents that do not start with a definite-length SEQUENCE
// lose their trailing zero bytes instead.
func TrimContents(contents []byte) []byte {
	s := cryptobyte.String(contents)
	var element cryptobyte.String
	if s.ReadASN1Element(&element, cbasn1.SEQUENCE) {
		return []byte(element)
	}
	return bytes.TrimRight(contents, "\x00")
}

var (
	byteRangeKey = []byte("/ByteRange")
	contentsKey  = []byte("/Contents")
)

// ScanBytes locates a signature without parsing the object graph: the
// first /ByteRange array, and the /Contents hex string after it or,
// failing that, the nearest one before it.
func ScanBytes(data []byte) (*Signature, error) {
	pos := bytes.Index(data, byteRangeKey)
	if pos < 0 {
		return nil, ErrSignatureNotFound
	}
	fileLength := int64(len(data))

	open := bytes.IndexByte(data[pos:], '[')
	if open < 0 {
		return nil, &ByteRangeError{FileLength: fileLength, Reason: "no array after /ByteRange"}
	}
	open += pos
	end := bytes.IndexByte(data[open:], ']')
	if end < 0 {
		return nil, &ByteRangeError{FileLength: fileLength, Reason: "unterminated array"}
	}
	fields := bytes.Fields(data[open+1 : open+end])
	if len(fields) != 4 {
		return nil, &ByteRangeError{FileLength: fileLength, Reason: fmt.Sprintf("%d entries", len(fields))}
	}
	var values [4]int64
	for i, f := range fields {
		v, err := strconv.ParseInt(string(f), 10, 64)
		if err != nil {
			return nil, &ByteRangeError{FileLength: fileLength, Reason: fmt.Sprintf("entry %d is not an integer", i)}
		}
		values[i] = v
	}
	br := ByteRange{values[0], values[1], values[2], values[3]}
	if err := br.Validate(fileLength); err != nil {
		return nil, err
	}

	contents, ok := scanContents(data, pos)
	if !ok {
		return nil, fmt.Errorf("%w: no /Contents hex string", ErrSignatureNotFound)
	}
	return &Signature{
		ByteRange:   br,
		Contents:    TrimContents(contents),
		SignedBytes: br.Extract(data),
		FileLength:  fileLength,
	}, nil
}

func scanContents(data []byte, from int) ([]byte, bool) {
	for i := from; ; {
		idx := bytes.Index(data[i:], contentsKey)
		if idx < 0 {
			break
		}
		if v, ok := hexAfter(data, i+idx+len(contentsKey)); ok {
			return v, true
		}
		i += idx + len(contentsKey)
	}
	for i := from; i > 0; {
		idx := bytes.LastIndex(data[:i], contentsKey)
		if idx < 0 {
			break
		}
		if v, ok := hexAfter(data, idx+len(contentsKey)); ok {
			return v, true
		}
		i = idx
	}
	return nil, false
}

// hexAfter decodes the hex string starting after optional whitespace at
// pos. Whitespace inside the string is ignored and an odd final digit is
// padded with zero.
func hexAfter(data []byte, pos int) ([]byte, bool) {
	for pos < len(data) && generic.IsWhitespace(data[pos]) {
		pos++
	}
	if pos >= len(data) || data[pos] != '<' {
		return nil, false
	}
	end := bytes.IndexByte(data[pos:], '>')
	if end < 0 {
		return nil, false
	}
	digits := make([]byte, 0, end)
	for _, c := range data[pos+1 : pos+end] {
		if !generic.IsWhitespace(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	if _, err := hex.Decode(out, digits); err != nil {
		return nil, false
	}
	return out, true
}
