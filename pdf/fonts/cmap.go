package fonts

import (
	"bytes"
	"io"

	"golang.org/x/text/encoding/unicode"

	"github.com/georgepadayatti/zkpdf/pdf/content"
	"github.com/georgepadayatti/zkpdf/pdf/generic"
)

// CMap is a parsed CMap program. For ToUnicode CMaps the bfchar and
// bfrange entries map character codes to text; for encoding CMaps only
// the codespace ranges are used.
type CMap struct {
	Name      string
	codespace []codespaceRange
	chars     map[string]string
	ranges    []bfRange
}

type codespaceRange struct {
	low, high []byte
}

func (r codespaceRange) contains(code []byte) bool {
	if len(code) != len(r.low) {
		return false
	}
	for i, b := range code {
		if b < r.low[i] || b > r.high[i] {
			return false
		}
	}
	return true
}

// bfRange maps low..high either to consecutive text starting at dst or
// to the entries of dsts.
type bfRange struct {
	low, high []byte
	dst       []rune
	dsts      []string
}

// IdentityCMap splits codes into two bytes and maps nothing.
var IdentityCMap = &CMap{
	Name:      "Identity-H",
	codespace: []codespaceRange{{low: []byte{0, 0}, high: []byte{0xFF, 0xFF}}},
}

// ParseCMap reads a CMap program. Unrecognized operators are ignored and
// malformed entries are skipped, so the result may be partial but is never
// nil.
func ParseCMap(data []byte) *CMap {
	cm := &CMap{chars: make(map[string]string)}
	tok := content.NewTokenizer(data)
	for {
		op, err := tok.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		switch op.Operator {
		case "endcodespacerange":
			for i := 0; i+1 < len(op.Operands); i += 2 {
				low, ok1 := hexBytes(op.Operands[i])
				high, ok2 := hexBytes(op.Operands[i+1])
				if ok1 && ok2 && len(low) == len(high) && len(low) > 0 {
					cm.codespace = append(cm.codespace, codespaceRange{low: low, high: high})
				}
			}
		case "endbfchar":
			for i := 0; i+1 < len(op.Operands); i += 2 {
				src, ok := hexBytes(op.Operands[i])
				if !ok {
					continue
				}
				if dst, ok := destination(op.Operands[i+1]); ok {
					cm.chars[string(src)] = dst
				}
			}
		case "endbfrange":
			for i := 0; i+2 < len(op.Operands); i += 3 {
				cm.addRange(op.Operands[i], op.Operands[i+1], op.Operands[i+2])
			}
		case "def":
			if len(op.Operands) == 2 {
				if key, ok := op.Operands[0].(generic.NameObject); ok && key == "CMapName" {
					if name, ok := op.Operands[1].(generic.NameObject); ok {
						cm.Name = string(name)
					}
				}
			}
		}
	}
	return cm
}

func (cm *CMap) addRange(lowObj, highObj, dstObj generic.PdfObject) {
	low, ok1 := hexBytes(lowObj)
	high, ok2 := hexBytes(highObj)
	if !ok1 || !ok2 || len(low) != len(high) || bytes.Compare(low, high) > 0 {
		return
	}
	r := bfRange{low: low, high: high}
	switch dst := dstObj.(type) {
	case *generic.StringObject:
		r.dst = []rune(utf16Text(dst.Value))
		if len(r.dst) == 0 {
			return
		}
	case generic.ArrayObject:
		for _, item := range dst {
			s, _ := destination(item)
			r.dsts = append(r.dsts, s)
		}
	default:
		return
	}
	cm.ranges = append(cm.ranges, r)
}

// Lookup returns the text for a code.
func (cm *CMap) Lookup(code []byte) (string, bool) {
	if s, ok := cm.chars[string(code)]; ok {
		return s, true
	}
	for _, r := range cm.ranges {
		if len(code) != len(r.low) || bytes.Compare(code, r.low) < 0 || bytes.Compare(code, r.high) > 0 {
			continue
		}
		offset := codeValue(code) - codeValue(r.low)
		if r.dsts != nil {
			if int(offset) < len(r.dsts) && r.dsts[offset] != "" {
				return r.dsts[offset], true
			}
			return "", false
		}
		out := append([]rune(nil), r.dst...)
		out[len(out)-1] += rune(offset)
		return string(out), true
	}
	return "", false
}

// HasMappings reports whether the CMap maps any code to text.
func (cm *CMap) HasMappings() bool {
	return len(cm.chars) > 0 || len(cm.ranges) > 0
}

// NextCode splits the next code off data following the codespace ranges.
// Without ranges codes are one byte long; a prefix matching no range
// consumes the shortest code length.
func (cm *CMap) NextCode(data []byte) (code []byte, n int) {
	if len(cm.codespace) == 0 {
		return data[:1], 1
	}
	shortest := 4
	for _, r := range cm.codespace {
		shortest = min(shortest, len(r.low))
	}
	for length := 1; length <= 4 && length <= len(data); length++ {
		for _, r := range cm.codespace {
			if r.contains(data[:length]) {
				return data[:length], length
			}
		}
	}
	n = min(shortest, len(data))
	return data[:n], n
}

func hexBytes(obj generic.PdfObject) ([]byte, bool) {
	s, ok := obj.(*generic.StringObject)
	if !ok || len(s.Value) == 0 || len(s.Value) > 4 {
		return nil, false
	}
	return s.Value, true
}

// destination returns the text of a bfchar or bfrange destination, which
// is either a UTF-16BE string or a glyph name.
func destination(obj generic.PdfObject) (string, bool) {
	switch v := obj.(type) {
	case *generic.StringObject:
		return utf16Text(v.Value), true
	case generic.NameObject:
		return GlyphToUnicode(string(v))
	}
	return "", false
}

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// utf16Text decodes UTF-16BE. Unpaired surrogates and a trailing odd
// byte become U+FFFD.
func utf16Text(b []byte) string {
	out, err := utf16BE.NewDecoder().Bytes(b)
	if err != nil {
		return string(Placeholder)
	}
	return string(out)
}

func codeValue(code []byte) uint32 {
	var v uint32
	for _, b := range code {
		v = v<<8 | uint32(b)
	}
	return v
}
