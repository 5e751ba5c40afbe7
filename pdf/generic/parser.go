package generic

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// Common errors
var (
	ErrUnexpectedEOF     = errors.New("unexpected end of file")
	ErrInvalidObject     = errors.New("invalid PDF object")
	ErrInvalidStream     = errors.New("invalid PDF stream")
	ErrInvalidDictionary = errors.New("invalid PDF dictionary")
	ErrInvalidArray      = errors.New("invalid PDF array")
	ErrInvalidString     = errors.New("invalid PDF string")
	ErrInvalidName       = errors.New("invalid PDF name")
	ErrInvalidNumber     = errors.New("invalid PDF number")
	ErrNestingTooDeep    = errors.New("objects nested too deeply")
)

// MaxNesting bounds array and dictionary nesting.
const MaxNesting = 256

// LengthResolver resolves an indirect /Length value of a stream.
type LengthResolver func(ref Reference) (int64, bool)

// Parser parses PDF objects from a byte slice. Stream data is returned as
// a subslice of the input.
type Parser struct {
	data []byte
	pos  int64

	// ResolveLength is consulted when a stream's /Length is a reference.
	ResolveLength LengthResolver

	// NoReferences disables "N G R" recognition, as required inside
	// content streams.
	NoReferences bool

	depth int
}

// NewParser creates a parser positioned at the start of data.
func NewParser(data []byte) *Parser {
	return &Parser{data: data}
}

// Pos returns the current offset.
func (p *Parser) Pos() int64 {
	return p.pos
}

// SetPos moves the parser to offset.
func (p *Parser) SetPos(offset int64) {
	p.pos = offset
}

// Data returns the underlying buffer.
func (p *Parser) Data() []byte {
	return p.data
}

// AtEOF reports whether only whitespace and comments remain.
func (p *Parser) AtEOF() bool {
	p.SkipWhitespace()
	return p.pos >= int64(len(p.data))
}

func (p *Parser) peek() (byte, bool) {
	if p.pos < 0 || p.pos >= int64(len(p.data)) {
		return 0, false
	}
	return p.data[p.pos], true
}

func (p *Parser) next() (byte, bool) {
	b, ok := p.peek()
	if ok {
		p.pos++
	}
	return b, ok
}

// SkipWhitespace skips whitespace and comments.
func (p *Parser) SkipWhitespace() {
	for {
		b, ok := p.peek()
		if !ok {
			return
		}
		switch {
		case IsWhitespace(b):
			p.pos++
		case b == '%':
			for {
				c, ok := p.next()
				if !ok || c == '\n' || c == '\r' {
					break
				}
			}
		default:
			return
		}
	}
}

// IsWhitespace reports whether b is PDF whitespace.
func IsWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\x00' || b == '\x0c'
}

// IsDelimiter reports whether b is a PDF delimiter.
func IsDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' ||
		b == '[' || b == ']' || b == '{' || b == '}' ||
		b == '/' || b == '%'
}

// ReadKeyword reads a run of regular characters.
func (p *Parser) ReadKeyword() string {
	p.SkipWhitespace()
	start := p.pos
	for {
		b, ok := p.peek()
		if !ok || IsWhitespace(b) || IsDelimiter(b) {
			break
		}
		p.pos++
	}
	return string(p.data[start:p.pos])
}

// Token is either an object or a bare keyword (an operator in content
// streams, "obj"/"endobj" in the file body).
type Token struct {
	Object  PdfObject
	Keyword string
	Offset  int64
}

// IsKeyword reports whether the token is a keyword.
func (t Token) IsKeyword() bool {
	return t.Object == nil
}

// NextToken reads the next object or keyword. It returns ErrUnexpectedEOF
// at the end of input.
func (p *Parser) NextToken() (Token, error) {
	p.SkipWhitespace()
	start := p.pos
	b, ok := p.peek()
	if !ok {
		return Token{Offset: start}, ErrUnexpectedEOF
	}
	if isObjectStart(b) {
		obj, err := p.ParseObject()
		if err != nil {
			return Token{Offset: start}, err
		}
		return Token{Object: obj, Offset: start}, nil
	}
	if IsDelimiter(b) {
		// ')' '>' '}' '{' without context; consume so callers make progress.
		p.pos++
		return Token{Keyword: string(b), Offset: start}, nil
	}
	kw := p.ReadKeyword()
	switch kw {
	case "true":
		return Token{Object: BooleanObject(true), Offset: start}, nil
	case "false":
		return Token{Object: BooleanObject(false), Offset: start}, nil
	case "null":
		return Token{Object: NullObject{}, Offset: start}, nil
	}
	return Token{Keyword: kw, Offset: start}, nil
}

func isObjectStart(b byte) bool {
	return b == '(' || b == '<' || b == '[' || b == '/' ||
		b == '-' || b == '+' || b == '.' || (b >= '0' && b <= '9')
}

// ParseObject parses a direct object or an indirect reference.
func (p *Parser) ParseObject() (PdfObject, error) {
	p.SkipWhitespace()
	b, ok := p.peek()
	if !ok {
		return nil, ErrUnexpectedEOF
	}

	switch b {
	case '(':
		return p.parseString()
	case '<':
		return p.parseHexOrDict()
	case '[':
		return p.parseArray()
	case '/':
		return p.parseName()
	case 't', 'f', 'n':
		kw := p.ReadKeyword()
		switch kw {
		case "true":
			return BooleanObject(true), nil
		case "false":
			return BooleanObject(false), nil
		case "null":
			return NullObject{}, nil
		}
		return nil, fmt.Errorf("%w: unexpected keyword %q at offset %d", ErrInvalidObject, kw, p.pos)
	}
	if b == '-' || b == '+' || b == '.' || (b >= '0' && b <= '9') {
		return p.parseNumberOrReference()
	}
	return nil, fmt.Errorf("%w: unexpected character %q at offset %d", ErrInvalidObject, b, p.pos)
}

func (p *Parser) parseString() (*StringObject, error) {
	p.pos++ // (

	var buf bytes.Buffer
	depth := 1
	for depth > 0 {
		b, ok := p.next()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated string", ErrInvalidString)
		}
		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth > 0 {
				buf.WriteByte(b)
			}
		case '\\':
			escaped, ok := p.next()
			if !ok {
				return nil, fmt.Errorf("%w: unterminated string", ErrInvalidString)
			}
			switch escaped {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '\r':
				if next, ok := p.peek(); ok && next == '\n' {
					p.pos++
				}
			case '\n':
			default:
				if escaped >= '0' && escaped <= '7' {
					val := int(escaped - '0')
					for i := 0; i < 2; i++ {
						next, ok := p.peek()
						if !ok || next < '0' || next > '7' {
							break
						}
						p.pos++
						val = val*8 + int(next-'0')
					}
					buf.WriteByte(byte(val))
				} else {
					buf.WriteByte(escaped)
				}
			}
		default:
			buf.WriteByte(b)
		}
	}

	return &StringObject{Value: buf.Bytes()}, nil
}

func (p *Parser) parseHexOrDict() (PdfObject, error) {
	p.pos++ // <
	if b, ok := p.peek(); ok && b == '<' {
		p.pos++
		return p.parseDictionary()
	}
	return p.parseHexString()
}

func (p *Parser) parseHexString() (*StringObject, error) {
	var digits []byte
	for {
		b, ok := p.next()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated hex string", ErrInvalidString)
		}
		if b == '>' {
			break
		}
		if IsWhitespace(b) {
			continue
		}
		digits = append(digits, b)
	}
	if len(digits)%2 != 0 {
		digits = append(digits, '0')
	}
	data := make([]byte, len(digits)/2)
	if _, err := hex.Decode(data, digits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidString, err)
	}
	return &StringObject{Value: data, IsHex: true}, nil
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > MaxNesting {
		return ErrNestingTooDeep
	}
	return nil
}

// parseDictionary parses a dictionary after "<<" has been consumed.
func (p *Parser) parseDictionary() (*DictionaryObject, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()

	dict := NewDictionary()
	for {
		p.SkipWhitespace()
		b, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated dictionary", ErrInvalidDictionary)
		}
		if b == '>' {
			p.pos++
			if next, ok := p.next(); !ok || next != '>' {
				return nil, fmt.Errorf("%w: expected '>>'", ErrInvalidDictionary)
			}
			return dict, nil
		}
		if b != '/' {
			return nil, fmt.Errorf("%w: key must be a name at offset %d", ErrInvalidDictionary, p.pos)
		}
		key, err := p.parseName()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDictionary, err)
		}

		p.SkipWhitespace()
		if b, ok := p.peek(); ok && b == '>' {
			// Key without value.
			dict.Set(string(key), NullObject{})
			continue
		}
		value, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("%w: value for key /%s: %w", ErrInvalidDictionary, key, err)
		}
		dict.Set(string(key), value)
	}
}

func (p *Parser) parseArray() (ArrayObject, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()

	p.pos++ // [
	arr := ArrayObject{}
	for {
		p.SkipWhitespace()
		b, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated array", ErrInvalidArray)
		}
		if b == ']' {
			p.pos++
			return arr, nil
		}
		obj, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArray, err)
		}
		arr = append(arr, obj)
	}
}

func (p *Parser) parseName() (NameObject, error) {
	p.pos++ // /
	var buf bytes.Buffer
	for {
		b, ok := p.peek()
		if !ok || IsWhitespace(b) || IsDelimiter(b) {
			break
		}
		p.pos++
		if b == '#' && p.pos+1 < int64(len(p.data)) {
			if v, err := strconv.ParseUint(string(p.data[p.pos:p.pos+2]), 16, 8); err == nil {
				buf.WriteByte(byte(v))
				p.pos += 2
				continue
			}
		}
		buf.WriteByte(b)
	}
	return NameObject(buf.String()), nil
}

func (p *Parser) readNumberToken() string {
	start := p.pos
	for {
		b, ok := p.peek()
		if !ok {
			break
		}
		if (b >= '0' && b <= '9') || b == '.' || ((b == '-' || b == '+') && p.pos == start) {
			p.pos++
			continue
		}
		break
	}
	return string(p.data[start:p.pos])
}

func parseNumber(tok string) (PdfObject, error) {
	if tok == "" || tok == "-" || tok == "+" || tok == "." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, tok)
	}
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return IntegerObject(i), nil
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		// "--5" and "1.2.3" occur in the wild; read the longest valid prefix.
		for end := len(tok) - 1; end > 0; end-- {
			if f, err := strconv.ParseFloat(tok[:end], 64); err == nil {
				return RealObject(f), nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, tok)
	}
	return RealObject(f), nil
}

// parseNumberOrReference parses a number, upgrading "N G R" to a
// Reference unless NoReferences is set.
func (p *Parser) parseNumberOrReference() (PdfObject, error) {
	first, err := parseNumber(p.readNumberToken())
	if err != nil {
		return nil, err
	}
	objNum, ok := first.(IntegerObject)
	if !ok || p.NoReferences || objNum < 0 {
		return first, nil
	}

	save := p.pos
	p.SkipWhitespace()
	if b, ok := p.peek(); !ok || b < '0' || b > '9' {
		p.pos = save
		return first, nil
	}
	second, err := parseNumber(p.readNumberToken())
	if err != nil {
		p.pos = save
		return first, nil
	}
	genNum, ok := second.(IntegerObject)
	if !ok {
		p.pos = save
		return first, nil
	}
	p.SkipWhitespace()
	if b, ok := p.peek(); ok && b == 'R' {
		p.pos++
		if next, ok := p.peek(); !ok || IsWhitespace(next) || IsDelimiter(next) {
			return Reference{ObjectNumber: int(objNum), GenerationNumber: int(genNum)}, nil
		}
	}
	p.pos = save
	return first, nil
}

// ParseIndirectObject parses "N G obj <object> [stream ... endstream] endobj"
// at the current position.
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	p.SkipWhitespace()
	start := p.pos
	numObj, err := parseNumber(p.readNumberToken())
	if err != nil {
		return nil, fmt.Errorf("%w: object number at offset %d", ErrInvalidObject, start)
	}
	objNum, ok := numObj.(IntegerObject)
	if !ok || objNum < 0 {
		return nil, fmt.Errorf("%w: object number at offset %d", ErrInvalidObject, start)
	}
	p.SkipWhitespace()
	genObj, err := parseNumber(p.readNumberToken())
	if err != nil {
		return nil, fmt.Errorf("%w: generation number at offset %d", ErrInvalidObject, start)
	}
	genNum, ok := genObj.(IntegerObject)
	if !ok || genNum < 0 {
		return nil, fmt.Errorf("%w: generation number at offset %d", ErrInvalidObject, start)
	}
	if kw := p.ReadKeyword(); kw != "obj" {
		return nil, fmt.Errorf("%w: expected 'obj' at offset %d, got %q", ErrInvalidObject, start, kw)
	}

	p.SkipWhitespace()
	var obj PdfObject
	if b, ok := p.peek(); ok && b == 'e' {
		// "N G obj endobj" is an empty object.
		obj = NullObject{}
	} else {
		obj, err = p.ParseObject()
		if err != nil {
			return nil, err
		}
	}

	if dict, ok := obj.(*DictionaryObject); ok {
		save := p.pos
		if p.ReadKeyword() == "stream" {
			stream, err := p.parseStreamBody(dict)
			if err != nil {
				return nil, err
			}
			obj = stream
		} else {
			p.pos = save
		}
	}

	save := p.pos
	if p.ReadKeyword() != "endobj" {
		// Some writers omit endobj.
		p.pos = save
	}

	return NewIndirectObject(int(objNum), int(genNum), obj), nil
}

var endstreamKeyword = []byte("endstream")

// parseStreamBody reads stream data after the "stream" keyword.
func (p *Parser) parseStreamBody(dict *DictionaryObject) (*StreamObject, error) {
	// EOL after "stream" is CRLF or LF; a lone CR is tolerated.
	if b, ok := p.peek(); ok && b == '\r' {
		p.pos++
	}
	if b, ok := p.peek(); ok && b == '\n' {
		p.pos++
	}
	dataStart := p.pos

	length := int64(-1)
	switch v := dict.Get("Length").(type) {
	case IntegerObject:
		length = int64(v)
	case Reference:
		if p.ResolveLength != nil {
			if l, ok := p.ResolveLength(v); ok {
				length = l
			}
		}
	}

	size := int64(len(p.data))
	if length >= 0 && dataStart+length <= size && p.endstreamFollows(dataStart+length) {
		p.pos = dataStart + length
		data := p.data[dataStart:p.pos]
		p.ReadKeyword() // endstream
		return &StreamObject{Dictionary: dict, Data: data}, nil
	}

	// Declared length is missing or wrong: scan for endstream.
	idx := bytes.Index(p.data[dataStart:], endstreamKeyword)
	if idx < 0 {
		return nil, fmt.Errorf("%w: missing endstream for stream at offset %d", ErrInvalidStream, dataStart)
	}
	end := dataStart + int64(idx)
	dataEnd := end
	if dataEnd > dataStart && p.data[dataEnd-1] == '\n' {
		dataEnd--
	}
	if dataEnd > dataStart && p.data[dataEnd-1] == '\r' {
		dataEnd--
	}
	p.pos = end + int64(len(endstreamKeyword))
	return &StreamObject{Dictionary: dict, Data: p.data[dataStart:dataEnd]}, nil
}

func (p *Parser) endstreamFollows(offset int64) bool {
	save := p.pos
	defer func() { p.pos = save }()
	p.pos = offset
	p.SkipWhitespace()
	return bytes.HasPrefix(p.data[p.pos:], endstreamKeyword)
}
