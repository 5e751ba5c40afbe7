package reader

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/georgepadayatti/zkpdf/pdf/generic"
)

// ObjectResolver provides object lookup and stream decoding. Document
// implements it; consumers such as the font and text packages depend on
// this interface only.
type ObjectResolver interface {
	// Resolve follows a Reference; any other object is returned unchanged.
	Resolve(obj generic.PdfObject) (generic.PdfObject, error)

	// DecodeStream returns the decoded data of a stream.
	DecodeStream(stream *generic.StreamObject) ([]byte, error)
}

// ResolveDict resolves obj and returns it as a dictionary, using the
// dictionary of a stream when obj is a stream. Nil is returned for any
// other type or on error.
func ResolveDict(r ObjectResolver, obj generic.PdfObject) *generic.DictionaryObject {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil
	}
	switch v := resolved.(type) {
	case *generic.DictionaryObject:
		return v
	case *generic.StreamObject:
		return v.Dictionary
	}
	return nil
}

// ResolveArray resolves obj and returns it as an array.
func ResolveArray(r ObjectResolver, obj generic.PdfObject) generic.ArrayObject {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil
	}
	arr, _ := resolved.(generic.ArrayObject)
	return arr
}

// ResolveStream resolves obj and returns it as a stream.
func ResolveStream(r ObjectResolver, obj generic.PdfObject) *generic.StreamObject {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil
	}
	s, _ := resolved.(*generic.StreamObject)
	return s
}

// ResolveInt resolves obj and returns it as an integer.
func ResolveInt(r ObjectResolver, obj generic.PdfObject) (int64, bool) {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return 0, false
	}
	i, ok := resolved.(generic.IntegerObject)
	return int64(i), ok
}

// ResolveNumber resolves obj and returns its numeric value.
func ResolveNumber(r ObjectResolver, obj generic.PdfObject) (float64, bool) {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return 0, false
	}
	return generic.Number(resolved)
}

// ResolveName resolves obj and returns it as a name.
func ResolveName(r ObjectResolver, obj generic.PdfObject) string {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return ""
	}
	n, _ := resolved.(generic.NameObject)
	return string(n)
}

// ResolveString resolves obj and returns it as a string object.
func ResolveString(r ObjectResolver, obj generic.PdfObject) *generic.StringObject {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil
	}
	s, _ := resolved.(*generic.StringObject)
	return s
}

// ObjectHeaderReadError represents an error reading an object header.
type ObjectHeaderReadError struct {
	Message  string
	Position int64
}

// Error implements the error interface.
func (e *ObjectHeaderReadError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Message, e.Position)
}

// ReadObjectHeader reads "N G obj" at pos and returns the object number,
// generation and the offset just past the keyword.
func ReadObjectHeader(data []byte, pos int64) (int, int, int64, error) {
	if pos < 0 || pos >= int64(len(data)) {
		return 0, 0, 0, &ObjectHeaderReadError{Message: "object offset out of bounds", Position: pos}
	}
	p := generic.NewParser(data)
	p.SetPos(pos)
	objNum, err := readTableInt(p)
	if err != nil {
		return 0, 0, 0, &ObjectHeaderReadError{Message: "invalid object number", Position: pos}
	}
	genNum, err := readTableInt(p)
	if err != nil {
		return 0, 0, 0, &ObjectHeaderReadError{Message: "invalid generation number", Position: pos}
	}
	if kw := p.ReadKeyword(); kw != "obj" {
		return 0, 0, 0, &ObjectHeaderReadError{Message: "invalid object header", Position: pos}
	}
	return objNum, genNum, p.Pos(), nil
}

var objectHeaderPattern = regexp.MustCompile(`(\d+)[ \t\r\n\f\x00]+(\d+)[ \t\r\n\f\x00]+obj\b`)

// scanObjectHeaders finds every "N G obj" in data. Later definitions of
// the same object number replace earlier ones, matching the effect of
// incremental updates.
func scanObjectHeaders(data []byte) map[int]*XRefEntry {
	entries := make(map[int]*XRefEntry)
	for _, m := range objectHeaderPattern.FindAllSubmatchIndex(data, -1) {
		start := m[0]
		if start > 0 && !generic.IsWhitespace(data[start-1]) && !generic.IsDelimiter(data[start-1]) {
			continue
		}
		num, err1 := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		entries[num] = &XRefEntry{
			Type:         XRefTypeStandard,
			ObjectNumber: num,
			Generation:   gen,
			Offset:       int64(start),
		}
	}
	return entries
}
