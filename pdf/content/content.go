// Package content provides PDF content stream handling.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/georgepadayatti/zkpdf/pdf/generic"
)

// Operator represents a PDF content stream operator.
type Operator string

// Common PDF operators
const (
	// Graphics state operators
	OpSaveState     Operator = "q"
	OpRestoreState  Operator = "Q"
	OpSetCTM        Operator = "cm"
	OpSetLineWidth  Operator = "w"
	OpSetLineCap    Operator = "J"
	OpSetLineJoin   Operator = "j"
	OpSetMiterLimit Operator = "M"
	OpSetDash       Operator = "d"
	OpSetIntent     Operator = "ri"
	OpSetFlatness   Operator = "i"
	OpSetGState     Operator = "gs"

	// Path construction operators
	OpMoveTo    Operator = "m"
	OpLineTo    Operator = "l"
	OpCurveTo   Operator = "c"
	OpCurveToV  Operator = "v"
	OpCurveToY  Operator = "y"
	OpClosePath Operator = "h"
	OpRectangle Operator = "re"

	// Path painting operators
	OpStroke               Operator = "S"
	OpCloseAndStroke       Operator = "s"
	OpFill                 Operator = "f"
	OpFillObsolete         Operator = "F"
	OpFillEvenOdd          Operator = "f*"
	OpFillAndStroke        Operator = "B"
	OpFillAndStrokeEvenOdd Operator = "B*"
	OpCloseFillAndStroke   Operator = "b"
	OpCloseFillStrokeEO    Operator = "b*"
	OpEndPath              Operator = "n"

	// Clipping operators
	OpClip        Operator = "W"
	OpClipEvenOdd Operator = "W*"

	// Text object operators
	OpBeginText Operator = "BT"
	OpEndText   Operator = "ET"

	// Text state operators
	OpSetCharSpacing Operator = "Tc"
	OpSetWordSpacing Operator = "Tw"
	OpSetHScale      Operator = "Tz"
	OpSetLeading     Operator = "TL"
	OpSetFont        Operator = "Tf"
	OpSetRenderMode  Operator = "Tr"
	OpSetTextRise    Operator = "Ts"

	// Text positioning operators
	OpTextMove      Operator = "Td"
	OpTextMoveSet   Operator = "TD"
	OpSetTextMatrix Operator = "Tm"
	OpTextNextLine  Operator = "T*"

	// Text showing operators
	OpShowText      Operator = "Tj"
	OpShowTextArray Operator = "TJ"
	OpMoveShowText  Operator = "'"
	OpMoveSetShow   Operator = "\""

	// Type 3 glyph operators
	OpSetCharWidth   Operator = "d0"
	OpSetCacheDevice Operator = "d1"

	// Color operators
	OpSetStrokeColorSpace Operator = "CS"
	OpSetFillColorSpace   Operator = "cs"
	OpSetStrokeColor      Operator = "SC"
	OpSetStrokeColorN     Operator = "SCN"
	OpSetFillColor        Operator = "sc"
	OpSetFillColorN       Operator = "scn"
	OpSetStrokeGray       Operator = "G"
	OpSetFillGray         Operator = "g"
	OpSetStrokeRGB        Operator = "RG"
	OpSetFillRGB          Operator = "rg"
	OpSetStrokeCMYK       Operator = "K"
	OpSetFillCMYK         Operator = "k"

	// XObject operators
	OpPaintXObject Operator = "Do"

	// Shading, compatibility and marked-content operators
	OpShading                Operator = "sh"
	OpBeginCompat            Operator = "BX"
	OpEndCompat              Operator = "EX"
	OpMarkPoint              Operator = "MP"
	OpMarkPointDict          Operator = "DP"
	OpBeginMarkedContent     Operator = "BMC"
	OpBeginMarkedContentDict Operator = "BDC"
	OpEndMarkedContent       Operator = "EMC"

	// Inline image operators
	OpBeginInlineImage Operator = "BI"
	OpBeginImageData   Operator = "ID"
	OpEndInlineImage   Operator = "EI"
)

var knownOperators = map[Operator]bool{}

func init() {
	for _, op := range []Operator{
		OpSaveState, OpRestoreState, OpSetCTM, OpSetLineWidth, OpSetLineCap, OpSetLineJoin,
		OpSetMiterLimit, OpSetDash, OpSetIntent, OpSetFlatness, OpSetGState,
		OpMoveTo, OpLineTo, OpCurveTo, OpCurveToV, OpCurveToY, OpClosePath, OpRectangle,
		OpStroke, OpCloseAndStroke, OpFill, OpFillObsolete, OpFillEvenOdd, OpFillAndStroke,
		OpFillAndStrokeEvenOdd, OpCloseFillAndStroke, OpCloseFillStrokeEO, OpEndPath,
		OpClip, OpClipEvenOdd, OpBeginText, OpEndText,
		OpSetCharSpacing, OpSetWordSpacing, OpSetHScale, OpSetLeading, OpSetFont, OpSetRenderMode, OpSetTextRise,
		OpTextMove, OpTextMoveSet, OpSetTextMatrix, OpTextNextLine,
		OpShowText, OpShowTextArray, OpMoveShowText, OpMoveSetShow,
		OpSetCharWidth, OpSetCacheDevice, OpShading, OpMarkPoint, OpMarkPointDict, OpBeginCompat, OpEndCompat,
		OpSetStrokeColorSpace, OpSetFillColorSpace, OpSetStrokeColor, OpSetStrokeColorN, OpSetFillColor,
		OpSetFillColorN, OpSetStrokeGray, OpSetFillGray, OpSetStrokeRGB, OpSetFillRGB, OpSetStrokeCMYK, OpSetFillCMYK,
		OpPaintXObject, OpBeginMarkedContent, OpBeginMarkedContentDict, OpEndMarkedContent,
		OpBeginInlineImage, OpBeginImageData, OpEndInlineImage,
	} {
		knownOperators[op] = true
	}
}

// IsKnown reports whether op is defined by the PDF specification.
func (op Operator) IsKnown() bool {
	return knownOperators[op]
}

// ContentStream represents a parsed PDF content stream.
type ContentStream struct {
	Operations []Operation
}

// Operation represents a single operation in a content stream.
type Operation struct {
	Operator Operator
	Operands []generic.PdfObject

	// Offset is the byte offset of the operator keyword.
	Offset int64

	// ImageData holds the bytes between ID and EI for inline images.
	ImageData []byte
}

// NewContentStream creates a new empty content stream.
func NewContentStream() *ContentStream {
	return &ContentStream{
		Operations: make([]Operation, 0),
	}
}

// AddOperation adds an operation to the content stream.
func (cs *ContentStream) AddOperation(op Operator, operands ...generic.PdfObject) {
	cs.Operations = append(cs.Operations, Operation{
		Operator: op,
		Operands: operands,
	})
}

// Render renders the content stream to bytes.
func (cs *ContentStream) Render() []byte {
	var buf bytes.Buffer

	for _, op := range cs.Operations {
		for i, operand := range op.Operands {
			if i > 0 {
				buf.WriteByte(' ')
			}
			_ = operand.Write(&buf)
		}
		if len(op.Operands) > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(string(op.Operator))
		if op.Operator == OpBeginInlineImage {
			buf.WriteString(" ID ")
			buf.Write(op.ImageData)
			buf.WriteString(" EI")
		}
		buf.WriteByte('\n')
	}

	return buf.Bytes()
}

// SyntaxError records a content stream token that could not be parsed.
// The tokenizer skips past it and carries on.
type SyntaxError struct {
	Offset int64
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("content stream syntax error at offset %d: %v", e.Offset, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// maxOperands bounds the operand stack between two operators.
const maxOperands = 1 << 16

// Tokenizer reads operations from a content stream. Malformed tokens are
// skipped and recorded; they never stop the scan.
type Tokenizer struct {
	p        *generic.Parser
	operands []generic.PdfObject
	errs     []error
}

// NewTokenizer creates a tokenizer over decoded content stream data.
func NewTokenizer(data []byte) *Tokenizer {
	p := generic.NewParser(data)
	p.NoReferences = true
	return &Tokenizer{p: p}
}

// Errors returns the syntax errors skipped so far.
func (t *Tokenizer) Errors() []error {
	return t.errs
}

// Next returns the next operation, or io.EOF at the end of the stream.
// Operands left over at the end are dropped.
func (t *Tokenizer) Next() (Operation, error) {
	size := int64(len(t.p.Data()))
	for {
		tok, err := t.p.NextToken()
		if err != nil {
			if tok.Offset >= size {
				t.operands = nil
				return Operation{}, io.EOF
			}
			t.errs = append(t.errs, &SyntaxError{Offset: tok.Offset, Err: err})
			t.operands = t.operands[:0]
			t.resync(tok.Offset)
			continue
		}

		if !tok.IsKeyword() {
			if len(t.operands) >= maxOperands {
				t.errs = append(t.errs, &SyntaxError{Offset: tok.Offset, Err: errors.New("too many operands")})
				t.operands = t.operands[:0]
			}
			t.operands = append(t.operands, tok.Object)
			continue
		}

		op := Operation{
			Operator: Operator(tok.Keyword),
			Operands: t.operands,
			Offset:   tok.Offset,
		}
		t.operands = nil

		if op.Operator == OpBeginInlineImage {
			if err := t.readInlineImage(&op); err != nil {
				t.errs = append(t.errs, &SyntaxError{Offset: tok.Offset, Err: err})
			}
		}
		return op, nil
	}
}

// resync moves past the token that failed at offset. A token that was
// consumed up to its closing delimiter is already behind the parser.
func (t *Tokenizer) resync(offset int64) {
	if t.p.Pos() > offset {
		return
	}
	data := t.p.Data()
	pos := offset + 1
	for pos < int64(len(data)) && !generic.IsWhitespace(data[pos]) && !generic.IsDelimiter(data[pos]) {
		pos++
	}
	t.p.SetPos(pos)
}

// readInlineImage reads the "key value ... ID data EI" tail of an inline
// image. The parameters become a single dictionary operand.
func (t *Tokenizer) readInlineImage(op *Operation) error {
	params := generic.NewDictionary()
	for {
		tok, err := t.p.NextToken()
		if err != nil {
			return fmt.Errorf("inline image parameters: %w", err)
		}
		if tok.IsKeyword() {
			if tok.Keyword != string(OpBeginImageData) {
				return fmt.Errorf("unexpected %q in inline image", tok.Keyword)
			}
			break
		}
		key, ok := tok.Object.(generic.NameObject)
		if !ok {
			return fmt.Errorf("inline image key is %T", tok.Object)
		}
		value, err := t.p.ParseObject()
		if err != nil {
			return fmt.Errorf("inline image value for /%s: %w", key, err)
		}
		params.Set(string(key), value)
	}
	op.Operands = []generic.PdfObject{params}

	// One whitespace byte separates ID from the data.
	data := t.p.Data()
	start := t.p.Pos() + 1
	if start > int64(len(data)) {
		start = int64(len(data))
	}
	for i := start; i+1 < int64(len(data)); i++ {
		if data[i] != 'E' || data[i+1] != 'I' {
			continue
		}
		if i > start && !generic.IsWhitespace(data[i-1]) {
			continue
		}
		if i+2 < int64(len(data)) && !generic.IsWhitespace(data[i+2]) && !generic.IsDelimiter(data[i+2]) {
			continue
		}
		end := i
		if end > start && generic.IsWhitespace(data[end-1]) {
			end--
		}
		op.ImageData = data[start:end]
		t.p.SetPos(i + 2)
		return nil
	}
	t.p.SetPos(int64(len(data)))
	return errors.New("inline image without EI")
}

// Parse tokenizes a whole content stream. Syntax errors are skipped; they
// are returned joined for callers that want to report them.
func Parse(data []byte) (*ContentStream, error) {
	cs := NewContentStream()
	t := NewTokenizer(data)
	for {
		op, err := t.Next()
		if err == io.EOF {
			break
		}
		cs.Operations = append(cs.Operations, op)
	}
	return cs, errors.Join(t.Errors()...)
}

// ContentBuilder provides a fluent interface for building content streams.
type ContentBuilder struct {
	stream *ContentStream
}

// NewContentBuilder creates a new content builder.
func NewContentBuilder() *ContentBuilder {
	return &ContentBuilder{
		stream: NewContentStream(),
	}
}

func num(v float64) generic.PdfObject {
	if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		return generic.IntegerObject(int64(v))
	}
	return generic.RealObject(v)
}

func (cb *ContentBuilder) op(op Operator, values ...float64) *ContentBuilder {
	operands := make([]generic.PdfObject, len(values))
	for i, v := range values {
		operands[i] = num(v)
	}
	cb.stream.AddOperation(op, operands...)
	return cb
}

// SaveState saves the graphics state.
func (cb *ContentBuilder) SaveState() *ContentBuilder {
	return cb.op(OpSaveState)
}

// RestoreState restores the graphics state.
func (cb *ContentBuilder) RestoreState() *ContentBuilder {
	return cb.op(OpRestoreState)
}

// Transform applies a transformation matrix.
func (cb *ContentBuilder) Transform(a, b, c, d, e, f float64) *ContentBuilder {
	return cb.op(OpSetCTM, a, b, c, d, e, f)
}

// BeginText begins a text object.
func (cb *ContentBuilder) BeginText() *ContentBuilder {
	return cb.op(OpBeginText)
}

// EndText ends a text object.
func (cb *ContentBuilder) EndText() *ContentBuilder {
	return cb.op(OpEndText)
}

// SetFont sets the font and size.
func (cb *ContentBuilder) SetFont(font string, size float64) *ContentBuilder {
	cb.stream.AddOperation(OpSetFont, generic.NameObject(font), num(size))
	return cb
}

// SetLeading sets the text leading.
func (cb *ContentBuilder) SetLeading(leading float64) *ContentBuilder {
	return cb.op(OpSetLeading, leading)
}

// TextPosition moves to the start of the next line, offset by (x, y).
func (cb *ContentBuilder) TextPosition(x, y float64) *ContentBuilder {
	return cb.op(OpTextMove, x, y)
}

// TextPositionLeading is TextPosition that also sets the leading to -y.
func (cb *ContentBuilder) TextPositionLeading(x, y float64) *ContentBuilder {
	return cb.op(OpTextMoveSet, x, y)
}

// SetTextMatrix sets the text matrix and line matrix.
func (cb *ContentBuilder) SetTextMatrix(a, b, c, d, e, f float64) *ContentBuilder {
	return cb.op(OpSetTextMatrix, a, b, c, d, e, f)
}

// NextLine moves to the start of the next line.
func (cb *ContentBuilder) NextLine() *ContentBuilder {
	return cb.op(OpTextNextLine)
}

// ShowText shows a literal string of single-byte codes.
func (cb *ContentBuilder) ShowText(text string) *ContentBuilder {
	cb.stream.AddOperation(OpShowText, generic.NewLiteralString(text))
	return cb
}

// ShowBytes shows raw character codes as a hex string.
func (cb *ContentBuilder) ShowBytes(codes []byte) *ContentBuilder {
	cb.stream.AddOperation(OpShowText, generic.NewHexString(codes))
	return cb
}

// ShowTextArray shows strings with positioning adjustments. Items are
// strings or numbers (thousandths of text space units).
func (cb *ContentBuilder) ShowTextArray(items ...any) *ContentBuilder {
	arr := generic.ArrayObject{}
	for _, item := range items {
		switch v := item.(type) {
		case string:
			arr = append(arr, generic.NewLiteralString(v))
		case []byte:
			arr = append(arr, generic.NewHexString(v))
		case int:
			arr = append(arr, generic.IntegerObject(v))
		case float64:
			arr = append(arr, num(v))
		}
	}
	cb.stream.AddOperation(OpShowTextArray, arr)
	return cb
}

// NextLineShowText moves to the next line and shows text (').
func (cb *ContentBuilder) NextLineShowText(text string) *ContentBuilder {
	cb.stream.AddOperation(OpMoveShowText, generic.NewLiteralString(text))
	return cb
}

// PaintXObject paints an XObject.
func (cb *ContentBuilder) PaintXObject(name string) *ContentBuilder {
	cb.stream.AddOperation(OpPaintXObject, generic.NameObject(name))
	return cb
}

// Build returns the content stream.
func (cb *ContentBuilder) Build() *ContentStream {
	return cb.stream
}

// Render renders the content stream to bytes.
func (cb *ContentBuilder) Render() []byte {
	return cb.stream.Render()
}
