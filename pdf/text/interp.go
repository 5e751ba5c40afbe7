package text

import (
	"io"

	"github.com/georgepadayatti/zkpdf/pdf/content"
	"github.com/georgepadayatti/zkpdf/pdf/fonts"
	"github.com/georgepadayatti/zkpdf/pdf/generic"
	"github.com/georgepadayatti/zkpdf/pdf/reader"
)

// textState is the part of the graphics state that affects extraction.
type textState struct {
	font    *fonts.FontMap
	leading float64
}

// interpreter runs the text operators of one page and collects raw text.
type interpreter struct {
	e *Extractor

	out     []byte
	spans   []Span
	opIndex int

	inText bool
	lineY  float64
	state  textState
	stack  []textState

	visited map[generic.Reference]bool
}

func newInterpreter(e *Extractor) *interpreter {
	return &interpreter{e: e, visited: make(map[generic.Reference]bool)}
}

func (in *interpreter) newline() {
	in.out = append(in.out, '\n')
}

// show appends the text of an operation and records its span.
func (in *interpreter) show(op content.Operator, text []byte) {
	if len(text) == 0 {
		return
	}
	start := len(in.out)
	in.out = append(in.out, text...)
	in.spans = append(in.spans, Span{Start: start, End: len(in.out), Op: string(op), OpIndex: in.opIndex})
}

func (in *interpreter) decode(obj generic.PdfObject) []byte {
	s, ok := obj.(*generic.StringObject)
	if !ok {
		return nil
	}
	font := in.state.font
	if font == nil {
		in.e.warn("text shown without a font")
		font = in.e.fonts.FontMap(nil)
		in.state.font = font
	}
	return []byte(font.Text(s.Value))
}

func (in *interpreter) run(data []byte, resources *generic.DictionaryObject, depth int) {
	tok := content.NewTokenizer(data)
	for {
		op, err := tok.Next()
		if err == io.EOF {
			break
		}
		in.apply(op, resources, depth)
		in.opIndex++
	}
	for _, err := range tok.Errors() {
		in.e.warn("skipped content: %v", err)
	}
}

func (in *interpreter) apply(op content.Operation, resources *generic.DictionaryObject, depth int) {
	args := op.Operands
	switch op.Operator {
	case content.OpSaveState:
		in.stack = append(in.stack, in.state)
	case content.OpRestoreState:
		if n := len(in.stack); n > 0 {
			in.state = in.stack[n-1]
			in.stack = in.stack[:n-1]
		}

	case content.OpBeginText:
		in.inText = true
		in.lineY = 0
	case content.OpEndText:
		in.inText = false
		in.newline()

	case content.OpSetFont:
		if len(args) < 2 {
			return
		}
		if name, ok := args[0].(generic.NameObject); ok {
			in.state.font = in.font(resources, string(name))
		}
	case content.OpSetLeading:
		if len(args) == 1 {
			if v, ok := generic.Number(args[0]); ok {
				in.state.leading = v
			}
		}

	case content.OpTextMove, content.OpTextMoveSet:
		if !in.inText || len(args) < 2 {
			return
		}
		ty, ok := generic.Number(args[1])
		if !ok {
			return
		}
		if op.Operator == content.OpTextMoveSet {
			in.state.leading = -ty
		}
		in.lineY += ty
		if ty != 0 {
			in.newline()
		}
	case content.OpSetTextMatrix:
		if !in.inText || len(args) < 6 {
			return
		}
		f, ok := generic.Number(args[5])
		if !ok {
			return
		}
		if f != in.lineY {
			in.newline()
		}
		in.lineY = f
	case content.OpTextNextLine:
		if in.inText {
			in.lineY -= in.state.leading
			in.newline()
		}

	case content.OpShowText:
		if in.inText && len(args) >= 1 {
			in.show(op.Operator, in.decode(args[len(args)-1]))
		}
	case content.OpMoveShowText, content.OpMoveSetShow:
		if !in.inText || len(args) < 1 {
			return
		}
		in.lineY -= in.state.leading
		in.newline()
		in.show(op.Operator, in.decode(args[len(args)-1]))
	case content.OpShowTextArray:
		if !in.inText || len(args) < 1 {
			return
		}
		arr, ok := args[len(args)-1].(generic.ArrayObject)
		if !ok {
			return
		}
		var text []byte
		for _, item := range arr {
			if v, ok := generic.Number(item); ok {
				if v < -in.e.tjSpaceThreshold {
					text = append(text, ' ')
				}
				continue
			}
			text = append(text, in.decode(item)...)
		}
		in.show(op.Operator, text)

	case content.OpPaintXObject:
		if len(args) == 1 {
			if name, ok := args[0].(generic.NameObject); ok {
				in.paintXObject(resources, string(name), depth)
			}
		}
	}
}

// font looks a font up in the resources. A missing font falls back to the
// resolver's default map.
func (in *interpreter) font(resources *generic.DictionaryObject, name string) *fonts.FontMap {
	fontDict := reader.ResolveDict(in.e.doc, resources.Get("Font"))
	var fontObj generic.PdfObject
	if fontDict != nil {
		fontObj = fontDict.Get(name)
	}
	if fontObj == nil {
		in.e.warn("font /%s not in resources", name)
	}
	return in.e.fonts.FontMap(fontObj)
}

// paintXObject runs a form XObject with its own resources, or the
// current ones when it has none. Images are ignored.
func (in *interpreter) paintXObject(resources *generic.DictionaryObject, name string, depth int) {
	xobjects := reader.ResolveDict(in.e.doc, resources.Get("XObject"))
	if xobjects == nil {
		return
	}
	obj := xobjects.Get(name)
	stream := reader.ResolveStream(in.e.doc, obj)
	if stream == nil || reader.ResolveName(in.e.doc, stream.Dictionary.Get("Subtype")) != "Form" {
		return
	}
	if depth+1 > in.e.maxDepth {
		in.e.warn("form XObject /%s nested deeper than %d", name, in.e.maxDepth)
		return
	}
	if ref, ok := obj.(generic.Reference); ok {
		if in.visited[ref] {
			in.e.warn("form XObject %s painted recursively", ref)
			return
		}
		in.visited[ref] = true
		defer delete(in.visited, ref)
	}

	data, err := in.e.doc.DecodeStream(stream)
	if err != nil {
		in.e.warn("form XObject /%s: %v", name, err)
	}
	formResources := reader.ResolveDict(in.e.doc, stream.Dictionary.Get("Resources"))
	if formResources == nil {
		formResources = resources
	}

	saved := in.state
	savedStack := len(in.stack)
	savedText, savedY := in.inText, in.lineY
	in.run(data, formResources, depth+1)
	in.state = saved
	in.stack = in.stack[:min(savedStack, len(in.stack))]
	in.inText, in.lineY = savedText, savedY
}
