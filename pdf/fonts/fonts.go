// Package fonts maps the character codes shown by content streams to
// Unicode text and glyph widths.
//
// Simple fonts decode one byte per code through a ToUnicode CMap, a base
// encoding and a Differences array. Composite (Type0) fonts split codes by
// their encoding CMap and rely on ToUnicode for text. Decoding never fails:
// codes without a mapping produce Placeholder.
package fonts

import (
	"log/slog"
	"sync"

	"github.com/georgepadayatti/zkpdf/pdf/generic"
	"github.com/georgepadayatti/zkpdf/pdf/reader"
)

// Placeholder is the text of a code that maps to nothing.
const Placeholder = '\uFFFD'

// Font subtypes.
const (
	SubtypeType0    = "Type0"
	SubtypeType1    = "Type1"
	SubtypeMMType1  = "MMType1"
	SubtypeTrueType = "TrueType"
	SubtypeType3    = "Type3"
)

// Glyph is one decoded character code. Width is in glyph space units
// (1/1000 text space unit).
type Glyph struct {
	Code  uint32
	Width int
	Text  string
}

// FontMap decodes strings shown with one font.
type FontMap struct {
	BaseFont string
	Subtype  string

	composite bool
	codes     *CMap
	toUnicode *CMap
	encoding  [256]string

	widths       map[uint32]int
	widthRuns    []widthRun
	defaultWidth int
	metrics      *Metrics
}

type widthRun struct {
	first, last uint32
	width       int
}

// Composite reports whether the font is a Type0 font.
func (m *FontMap) Composite() bool {
	return m.composite
}

// Decode splits raw into character codes and maps each one.
func (m *FontMap) Decode(raw []byte) []Glyph {
	glyphs := make([]Glyph, 0, len(raw))
	for len(raw) > 0 {
		var code []byte
		if m.composite {
			var n int
			code, n = m.codes.NextCode(raw)
			raw = raw[n:]
		} else {
			code = raw[:1]
			raw = raw[1:]
		}
		g := Glyph{Code: codeValue(code), Text: m.text(code)}
		g.Width = m.width(g)
		glyphs = append(glyphs, g)
	}
	return glyphs
}

// Text decodes raw and concatenates the text of its glyphs.
func (m *FontMap) Text(raw []byte) string {
	var out []byte
	for _, g := range m.Decode(raw) {
		out = append(out, g.Text...)
	}
	return string(out)
}

func (m *FontMap) text(code []byte) string {
	if m.toUnicode != nil {
		if s, ok := m.toUnicode.Lookup(code); ok {
			return s
		}
	}
	if !m.composite {
		if s := m.encoding[code[0]]; s != "" {
			return s
		}
	}
	return string(Placeholder)
}

func (m *FontMap) width(g Glyph) int {
	if w, ok := m.widths[g.Code]; ok {
		return w
	}
	for _, run := range m.widthRuns {
		if g.Code >= run.first && g.Code <= run.last {
			return run.width
		}
	}
	if m.metrics != nil && g.Text != "" {
		return m.metrics.Width([]rune(g.Text)[0])
	}
	return m.defaultWidth
}

// Resolver builds font maps from font dictionaries and caches them by
// object identity.
type Resolver struct {
	r      reader.ObjectResolver
	logger *slog.Logger

	mu     sync.Mutex
	byRef  map[generic.Reference]*FontMap
	byDict map[*generic.DictionaryObject]*FontMap
}

// NewResolver returns a resolver reading fonts through r. A nil logger
// discards output.
func NewResolver(r reader.ObjectResolver, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		r:      r,
		logger: logger,
		byRef:  make(map[generic.Reference]*FontMap),
		byDict: make(map[*generic.DictionaryObject]*FontMap),
	}
}

// FontMap returns the map for a font dictionary or a reference to one.
// Anything that is not a font yields a StandardEncoding map.
func (res *Resolver) FontMap(fontObj generic.PdfObject) *FontMap {
	res.mu.Lock()
	defer res.mu.Unlock()

	ref, isRef := fontObj.(generic.Reference)
	if isRef {
		if m, ok := res.byRef[ref]; ok {
			return m
		}
	}
	dict := reader.ResolveDict(res.r, fontObj)
	if dict != nil {
		if m, ok := res.byDict[dict]; ok {
			return m
		}
	}

	m := res.build(dict)
	if isRef {
		res.byRef[ref] = m
	}
	if dict != nil {
		res.byDict[dict] = m
	}
	return m
}

func (res *Resolver) build(dict *generic.DictionaryObject) *FontMap {
	if dict == nil {
		res.logger.Debug("font missing, using StandardEncoding")
		m := &FontMap{defaultWidth: 500}
		m.encoding, _ = BaseEncoding(StandardEncoding)
		return m
	}
	if reader.ResolveName(res.r, dict.Get("Subtype")) == SubtypeType0 {
		return res.buildComposite(dict)
	}
	return res.buildSimple(dict)
}

func (res *Resolver) buildSimple(dict *generic.DictionaryObject) *FontMap {
	m := &FontMap{
		BaseFont: reader.ResolveName(res.r, dict.Get("BaseFont")),
		Subtype:  reader.ResolveName(res.r, dict.Get("Subtype")),
		widths:   make(map[uint32]int),
	}

	baseName := StandardEncoding
	glyphFont := ""
	if std, ok := lookupStandardFont(m.BaseFont); ok {
		m.metrics = StandardMetrics(std)
		if std == Symbol || std == ZapfDingbats {
			baseName = string(std)
			glyphFont = string(std)
		}
	}

	var differences generic.ArrayObject
	encObj, _ := res.r.Resolve(dict.Get("Encoding"))
	switch enc := encObj.(type) {
	case generic.NameObject:
		baseName = res.knownEncoding(string(enc), baseName)
	case *generic.DictionaryObject:
		if name := reader.ResolveName(res.r, enc.Get("BaseEncoding")); name != "" {
			baseName = res.knownEncoding(name, baseName)
		}
		differences = reader.ResolveArray(res.r, enc.Get("Differences"))
	}
	m.encoding, _ = BaseEncoding(baseName)
	res.applyDifferences(&m.encoding, differences, glyphFont)

	if first, ok := reader.ResolveInt(res.r, dict.Get("FirstChar")); ok && first >= 0 {
		for i, w := range reader.ResolveArray(res.r, dict.Get("Widths")) {
			if v, ok := reader.ResolveNumber(res.r, w); ok {
				m.widths[uint32(first)+uint32(i)] = int(v)
			}
		}
	}
	if fd := reader.ResolveDict(res.r, dict.Get("FontDescriptor")); fd != nil {
		if v, ok := reader.ResolveNumber(res.r, fd.Get("MissingWidth")); ok {
			m.defaultWidth = int(v)
		}
	}
	if m.defaultWidth == 0 && m.metrics == nil {
		m.defaultWidth = 500
	}

	m.toUnicode = res.toUnicode(dict)
	return m
}

func (res *Resolver) knownEncoding(name, fallback string) string {
	if _, ok := baseEncodings[name]; ok {
		return name
	}
	res.logger.Debug("unknown base encoding", "name", name)
	return fallback
}

// applyDifferences overrides codes from a Differences array: each integer
// sets the next code, each name maps it and advances.
func (res *Resolver) applyDifferences(enc *[256]string, diffs generic.ArrayObject, glyphFont string) {
	code := -1
	for _, item := range diffs {
		resolved, err := res.r.Resolve(item)
		if err != nil {
			continue
		}
		switch v := resolved.(type) {
		case generic.IntegerObject:
			code = int(v)
		case generic.NameObject:
			if code < 0 {
				continue
			}
			if code <= 255 {
				enc[code], _ = glyphText(string(v), glyphFont)
			}
			code++
		}
	}
}

func (res *Resolver) buildComposite(dict *generic.DictionaryObject) *FontMap {
	m := &FontMap{
		BaseFont:     reader.ResolveName(res.r, dict.Get("BaseFont")),
		Subtype:      SubtypeType0,
		composite:    true,
		codes:        IdentityCMap,
		widths:       make(map[uint32]int),
		defaultWidth: 1000,
	}

	descendant := reader.ResolveDict(res.r, reader.ResolveArray(res.r, dict.Get("DescendantFonts")).Get(0))
	m.toUnicode = res.toUnicode(dict)
	if m.toUnicode == nil && descendant != nil {
		m.toUnicode = res.toUnicode(descendant)
	}

	encObj, _ := res.r.Resolve(dict.Get("Encoding"))
	switch enc := encObj.(type) {
	case *generic.StreamObject:
		data, err := res.r.DecodeStream(enc)
		if err != nil {
			res.logger.Debug("encoding CMap not decoded", "font", m.BaseFont, "error", err)
		}
		if cm := ParseCMap(data); len(cm.codespace) > 0 {
			m.codes = cm
		}
	case generic.NameObject:
		if enc != "Identity-H" && enc != "Identity-V" && m.toUnicode != nil && len(m.toUnicode.codespace) > 0 {
			m.codes = m.toUnicode
		}
	}

	if descendant != nil {
		if dw, ok := reader.ResolveNumber(res.r, descendant.Get("DW")); ok {
			m.defaultWidth = int(dw)
		}
		res.parseW(m, reader.ResolveArray(res.r, descendant.Get("W")))
	}
	return m
}

// parseW reads a CIDFont /W array: "c [w1 w2 ...]" gives consecutive
// widths from c, "cfirst clast w" one width for a range.
func (res *Resolver) parseW(m *FontMap, w generic.ArrayObject) {
	for i := 0; i+1 < len(w); {
		first, ok := reader.ResolveInt(res.r, w[i])
		if !ok || first < 0 {
			return
		}
		next, err := res.r.Resolve(w[i+1])
		if err != nil {
			return
		}
		if list, ok := next.(generic.ArrayObject); ok {
			for j, item := range list {
				if v, ok := reader.ResolveNumber(res.r, item); ok {
					m.widths[uint32(first)+uint32(j)] = int(v)
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(w) {
			return
		}
		last, ok1 := generic.Number(next)
		width, ok2 := reader.ResolveNumber(res.r, w[i+2])
		if !ok1 || !ok2 || last < float64(first) {
			return
		}
		m.widthRuns = append(m.widthRuns, widthRun{first: uint32(first), last: uint32(last), width: int(width)})
		i += 3
	}
}

func (res *Resolver) toUnicode(dict *generic.DictionaryObject) *CMap {
	stream := reader.ResolveStream(res.r, dict.Get("ToUnicode"))
	if stream == nil {
		return nil
	}
	data, err := res.r.DecodeStream(stream)
	if err != nil {
		res.logger.Debug("ToUnicode stream not decoded", "error", err)
		if len(data) == 0 {
			return nil
		}
	}
	cm := ParseCMap(data)
	if !cm.HasMappings() {
		return nil
	}
	return cm
}
