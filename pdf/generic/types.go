// Package generic provides the PDF object model and the object parser.
//
// Objects form a closed set: NullObject, BooleanObject, IntegerObject,
// RealObject, NameObject, *StringObject, ArrayObject, *DictionaryObject,
// *StreamObject and Reference. Links between indirect objects are always
// Reference values; resolving them is the job of the reader package.
package generic

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strconv"
)

// PdfObject is implemented by every PDF object variant.
type PdfObject interface {
	// Write serializes the object in PDF syntax.
	Write(w io.Writer) error
	pdfObject()
}

// Reference is an indirect reference to a PDF object.
type Reference struct {
	ObjectNumber     int
	GenerationNumber int
}

// NewReference creates a new reference.
func NewReference(objNum, genNum int) Reference {
	return Reference{ObjectNumber: objNum, GenerationNumber: genNum}
}

// Write implements PdfObject.
func (r Reference) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%d %d R", r.ObjectNumber, r.GenerationNumber)
	return err
}

func (Reference) pdfObject() {}

// String returns the string representation.
func (r Reference) String() string {
	return fmt.Sprintf("%d %d R", r.ObjectNumber, r.GenerationNumber)
}

// IndirectObject is an object definition ("N G obj ... endobj") as found
// in the file body. It is a parse result, not an object variant.
type IndirectObject struct {
	ObjectNumber     int
	GenerationNumber int
	Object           PdfObject
}

// NewIndirectObject creates a new indirect object.
func NewIndirectObject(objNum, genNum int, obj PdfObject) *IndirectObject {
	return &IndirectObject{
		ObjectNumber:     objNum,
		GenerationNumber: genNum,
		Object:           obj,
	}
}

// Write serializes the object definition.
func (i *IndirectObject) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%d %d obj\n", i.ObjectNumber, i.GenerationNumber); err != nil {
		return err
	}
	if i.Object != nil {
		if err := i.Object.Write(w); err != nil {
			return err
		}
	} else if err := (NullObject{}).Write(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\nendobj\n")
	return err
}

// Reference returns a reference to this object.
func (i *IndirectObject) Reference() Reference {
	return Reference{ObjectNumber: i.ObjectNumber, GenerationNumber: i.GenerationNumber}
}

// NullObject is the PDF null value.
type NullObject struct{}

// Write implements PdfObject.
func (NullObject) Write(w io.Writer) error {
	_, err := io.WriteString(w, "null")
	return err
}

func (NullObject) pdfObject() {}

// BooleanObject is a PDF boolean.
type BooleanObject bool

// Write implements PdfObject.
func (b BooleanObject) Write(w io.Writer) error {
	_, err := io.WriteString(w, strconv.FormatBool(bool(b)))
	return err
}

func (BooleanObject) pdfObject() {}

// IntegerObject is a PDF integer.
type IntegerObject int64

// Write implements PdfObject.
func (i IntegerObject) Write(w io.Writer) error {
	_, err := io.WriteString(w, strconv.FormatInt(int64(i), 10))
	return err
}

func (IntegerObject) pdfObject() {}

// RealObject is a PDF real number.
type RealObject float64

// Write implements PdfObject.
func (r RealObject) Write(w io.Writer) error {
	_, err := io.WriteString(w, strconv.FormatFloat(float64(r), 'f', -1, 64))
	return err
}

func (RealObject) pdfObject() {}

// NameObject is a PDF name, stored without the leading slash.
type NameObject string

var nameEscapeRegex = regexp.MustCompile(`[^!-~]|[#%/\[\]()<>{}]`)

// Write implements PdfObject.
func (n NameObject) Write(w io.Writer) error {
	escaped := nameEscapeRegex.ReplaceAllStringFunc(string(n), func(s string) string {
		return fmt.Sprintf("#%02X", s[0])
	})
	_, err := fmt.Fprintf(w, "/%s", escaped)
	return err
}

func (NameObject) pdfObject() {}

// String returns the name without the leading slash.
func (n NameObject) String() string {
	return string(n)
}

// StringObject is a PDF string. Value holds the raw bytes after escape
// processing; IsHex records the source syntax.
type StringObject struct {
	Value []byte
	IsHex bool
}

// NewLiteralString creates a new literal string.
func NewLiteralString(s string) *StringObject {
	return &StringObject{Value: []byte(s)}
}

// NewHexString creates a new hex string.
func NewHexString(data []byte) *StringObject {
	return &StringObject{Value: data, IsHex: true}
}

// NewTextString creates a text string, PDFDocEncoded when possible and
// UTF-16BE with a byte order mark otherwise.
func NewTextString(s string) *StringObject {
	if enc, ok := EncodePDFDoc(s); ok {
		return &StringObject{Value: enc}
	}
	return &StringObject{Value: EncodeUTF16BE(s)}
}

// Write implements PdfObject.
func (s *StringObject) Write(w io.Writer) error {
	if s.IsHex {
		_, err := fmt.Fprintf(w, "<%s>", hex.EncodeToString(s.Value))
		return err
	}

	var buf bytes.Buffer
	buf.WriteByte('(')
	for _, b := range s.Value {
		switch b {
		case '\\':
			buf.WriteString(`\\`)
		case '(':
			buf.WriteString(`\(`)
		case ')':
			buf.WriteString(`\)`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if b < 32 || b > 126 {
				fmt.Fprintf(&buf, "\\%03o", b)
			} else {
				buf.WriteByte(b)
			}
		}
	}
	buf.WriteByte(')')
	_, err := w.Write(buf.Bytes())
	return err
}

func (*StringObject) pdfObject() {}

// Text decodes the string as a PDF text string: UTF-16BE (with BOM),
// UTF-8 (with BOM) or PDFDocEncoding.
func (s *StringObject) Text() string {
	return DecodeTextString(s.Value)
}

// ArrayObject is a PDF array.
type ArrayObject []PdfObject

// NewArray creates a new array.
func NewArray(items ...PdfObject) ArrayObject {
	return ArrayObject(items)
}

// Write implements PdfObject.
func (a ArrayObject) Write(w io.Writer) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	for i, item := range a {
		if i > 0 {
			if _, err := io.WriteString(w, " "); err != nil {
				return err
			}
		}
		if item == nil {
			item = NullObject{}
		}
		if err := item.Write(w); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]")
	return err
}

func (ArrayObject) pdfObject() {}

// Get returns the item at the given index, or nil when out of range.
func (a ArrayObject) Get(index int) PdfObject {
	if index < 0 || index >= len(a) {
		return nil
	}
	return a[index]
}

// DictionaryObject is a PDF dictionary. Key order is preserved so that
// serialization is deterministic.
type DictionaryObject struct {
	entries map[string]PdfObject
	order   []string
}

// NewDictionary creates a new dictionary.
func NewDictionary() *DictionaryObject {
	return &DictionaryObject{
		entries: make(map[string]PdfObject),
	}
}

// Write implements PdfObject.
func (d *DictionaryObject) Write(w io.Writer) error {
	if _, err := io.WriteString(w, "<<"); err != nil {
		return err
	}
	for _, key := range d.order {
		if _, err := io.WriteString(w, " "); err != nil {
			return err
		}
		if err := NameObject(key).Write(w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, " "); err != nil {
			return err
		}
		if err := d.entries[key].Write(w); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, " >>")
	return err
}

func (*DictionaryObject) pdfObject() {}

// Set sets a key-value pair.
func (d *DictionaryObject) Set(key string, value PdfObject) {
	if value == nil {
		value = NullObject{}
	}
	if _, exists := d.entries[key]; !exists {
		d.order = append(d.order, key)
	}
	d.entries[key] = value
}

// Get returns the value for a key, or nil.
func (d *DictionaryObject) Get(key string) PdfObject {
	if d == nil {
		return nil
	}
	return d.entries[key]
}

// GetName returns a name value, or "" when absent or not a name.
func (d *DictionaryObject) GetName(key string) string {
	if name, ok := d.Get(key).(NameObject); ok {
		return string(name)
	}
	return ""
}

// GetInt returns a direct integer value.
func (d *DictionaryObject) GetInt(key string) (int64, bool) {
	if i, ok := d.Get(key).(IntegerObject); ok {
		return int64(i), true
	}
	return 0, false
}

// GetArray returns a direct array value.
func (d *DictionaryObject) GetArray(key string) ArrayObject {
	if arr, ok := d.Get(key).(ArrayObject); ok {
		return arr
	}
	return nil
}

// GetDict returns a direct dictionary value. The dictionary of a stream
// value is returned as well.
func (d *DictionaryObject) GetDict(key string) *DictionaryObject {
	switch v := d.Get(key).(type) {
	case *DictionaryObject:
		return v
	case *StreamObject:
		return v.Dictionary
	}
	return nil
}

// GetString returns a direct string value.
func (d *DictionaryObject) GetString(key string) *StringObject {
	if s, ok := d.Get(key).(*StringObject); ok {
		return s
	}
	return nil
}

// Delete removes a key.
func (d *DictionaryObject) Delete(key string) {
	if _, exists := d.entries[key]; !exists {
		return
	}
	delete(d.entries, key)
	for i, k := range d.order {
		if k == key {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Has returns true if the key exists.
func (d *DictionaryObject) Has(key string) bool {
	if d == nil {
		return false
	}
	_, exists := d.entries[key]
	return exists
}

// Keys returns all keys in insertion order.
func (d *DictionaryObject) Keys() []string {
	if d == nil {
		return nil
	}
	return d.order
}

// Clone returns a shallow copy. Values are shared with d.
func (d *DictionaryObject) Clone() *DictionaryObject {
	out := NewDictionary()
	for _, key := range d.Keys() {
		out.Set(key, d.entries[key])
	}
	return out
}

// Len returns the number of entries.
func (d *DictionaryObject) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// StreamObject is a PDF stream. Data holds the encoded bytes exactly as
// stored in the file; decoding is done by the filters package.
type StreamObject struct {
	Dictionary *DictionaryObject
	Data       []byte
}

// NewStream creates a new stream.
func NewStream(dict *DictionaryObject, data []byte) *StreamObject {
	if dict == nil {
		dict = NewDictionary()
	}
	return &StreamObject{Dictionary: dict, Data: data}
}

// Write implements PdfObject. /Length is updated to match Data.
func (s *StreamObject) Write(w io.Writer) error {
	s.Dictionary.Set("Length", IntegerObject(len(s.Data)))
	if err := s.Dictionary.Write(w); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\nstream\n"); err != nil {
		return err
	}
	if _, err := w.Write(s.Data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\nendstream")
	return err
}

func (*StreamObject) pdfObject() {}

// Number returns the numeric value of an integer or real object.
func Number(obj PdfObject) (float64, bool) {
	switch v := obj.(type) {
	case IntegerObject:
		return float64(v), true
	case RealObject:
		return float64(v), true
	}
	return 0, false
}

// Rectangle is a PDF rectangle given by its lower-left and upper-right
// corners.
type Rectangle struct {
	LLX, LLY float64
	URX, URY float64
}

// NewRectangle creates a rectangle from an array of four numbers.
func NewRectangle(arr ArrayObject) (*Rectangle, error) {
	if len(arr) != 4 {
		return nil, fmt.Errorf("rectangle must have 4 elements, got %d", len(arr))
	}
	var values [4]float64
	for i, obj := range arr {
		v, ok := Number(obj)
		if !ok {
			return nil, fmt.Errorf("rectangle element %d must be numeric", i)
		}
		values[i] = v
	}
	return &Rectangle{LLX: values[0], LLY: values[1], URX: values[2], URY: values[3]}, nil
}

// Width returns the rectangle width.
func (r *Rectangle) Width() float64 {
	return r.URX - r.LLX
}

// Height returns the rectangle height.
func (r *Rectangle) Height() float64 {
	return r.URY - r.LLY
}

// ToArray converts the rectangle to a PDF array.
func (r *Rectangle) ToArray() ArrayObject {
	return ArrayObject{RealObject(r.LLX), RealObject(r.LLY), RealObject(r.URX), RealObject(r.URY)}
}
