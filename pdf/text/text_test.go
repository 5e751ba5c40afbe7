package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgepadayatti/zkpdf/internal/pdftest"
	"github.com/georgepadayatti/zkpdf/pdf/content"
	"github.com/georgepadayatti/zkpdf/pdf/generic"
	"github.com/georgepadayatti/zkpdf/pdf/reader"
)

func open(t *testing.T, data []byte, opts ...Option) *Extractor {
	t.Helper()
	doc, err := reader.Open(data)
	require.NoError(t, err)
	return NewExtractor(doc, opts...)
}

func pageText(t *testing.T, content string, opts ...Option) *ExtractedPage {
	t.Helper()
	b := pdftest.NewBuilder()
	data := b.Build(b.Document(pdftest.PageSpec{Content: []byte(content)}))
	p, err := open(t, data, opts...).Page(0)
	require.NoError(t, err)
	return p
}

func fontResources(b *pdftest.Builder) *generic.DictionaryObject {
	fonts := generic.NewDictionary()
	fonts.Set("F1", b.Add(pdftest.Helvetica()))
	res := generic.NewDictionary()
	res.Set("Font", fonts)
	return res
}

func TestExtractSamplePage(t *testing.T) {
	e := open(t, pdftest.TextPDF([]string{"Sample Signed PDF Document"}))
	p, err := e.Page(0)
	require.NoError(t, err)

	assert.Equal(t, "Sample Signed PDF Document", p.Text)
	assert.Equal(t, []Span{{Start: 0, End: 26, Op: "Tj", OpIndex: 3}}, p.Spans)
	assert.True(t, p.MatchAt("Sample Signed PDF Document", 0))
	assert.True(t, p.MatchAt("PDF", 14))
	assert.False(t, p.MatchAt("PDF", 13))
	assert.Empty(t, e.Warnings())
}

func TestExtractAll(t *testing.T) {
	e := open(t, pdftest.TextPDF([]string{"first page", "second line"}, []string{"page two"}))
	pages, err := e.ExtractAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"first page\nsecond line", "page two"}, Texts(pages))
	assert.Equal(t, 1, pages[1].Index)

	again, err := e.Page(1)
	require.NoError(t, err)
	assert.Same(t, pages[1], again)
}

func TestPageOutOfRange(t *testing.T) {
	e := open(t, pdftest.TextPDF([]string{"only"}))
	for _, index := range []int{-1, 1, 100} {
		_, err := e.Page(index)
		assert.ErrorIs(t, err, ErrPageOutOfRange, "page %d", index)
	}
}

func TestTextOperators(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "TJ gaps",
			content: "BT /F1 12 Tf [(Hel) -20 (lo) -300 (World)] TJ ET",
			want:    "Hello World",
		},
		{
			name:    "TJ positive adjustment",
			content: "BT /F1 12 Tf [(a) 500 (b)] TJ ET",
			want:    "ab",
		},
		{
			name:    "horizontal Td keeps the line",
			content: "BT /F1 12 Tf (left) Tj 200 0 Td (right) Tj ET",
			want:    "leftright",
		},
		{
			name:    "TD and T*",
			content: "BT /F1 12 Tf 0 -14 TD (one) Tj T* (two) Tj ET",
			want:    "one\ntwo",
		},
		{
			name:    "quote operators",
			content: "BT /F1 12 Tf 14 TL (a) Tj (b) ' 0 0 (c) \" ET",
			want:    "a\nb\nc",
		},
		{
			name:    "Tm line changes",
			content: "BT /F1 12 Tf 1 0 0 1 72 700 Tm (A) Tj 1 0 0 1 100 700 Tm (B) Tj 1 0 0 1 72 680 Tm (C) Tj ET",
			want:    "AB\nC",
		},
		{
			name:    "text objects end lines",
			content: "BT /F1 12 Tf (x) Tj ET BT (y) Tj ET",
			want:    "x\ny",
		},
		{
			name:    "text outside BT ignored",
			content: "/F1 12 Tf (hidden) Tj BT /F1 12 Tf (shown) Tj ET",
			want:    "shown",
		},
		{
			name:    "whitespace collapsed and blank lines dropped",
			content: "BT /F1 12 Tf (  a   b  ) Tj 0 -14 Td (   ) Tj 0 -14 Td (c) Tj ET",
			want:    "a b\nc",
		},
		{
			name:    "font survives q Q",
			content: "BT /F1 12 Tf q /F9 10 Tf Q (\\223q\\224) Tj ET",
			want:    "“q”",
		},
		{
			name:    "malformed operators skipped",
			content: "BT /F1 12 Tf (ok) Tj ) <zz> Tj ET BI /W 1 /H 1 ID \x00 EI BT /F1 12 Tf (fine) Tj ET",
			want:    "ok\nfine",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pageText(t, tt.content).Text)
		})
	}
}

func TestTJSpaceThreshold(t *testing.T) {
	content := "BT /F1 12 Tf [(a) -300 (b)] TJ ET"
	assert.Equal(t, "a b", pageText(t, content).Text)
	assert.Equal(t, "ab", pageText(t, content, WithTJSpaceThreshold(500)).Text)
}

func TestSpansFollowNormalization(t *testing.T) {
	p := pageText(t, "BT /F1 12 Tf (  a   b  ) Tj 0 -14 Td (   ) Tj 0 -14 Td (c) Tj [(d) -400 (e)] TJ ET")
	require.Equal(t, "a b\ncd e", p.Text)
	assert.Equal(t, []Span{
		{Start: 0, End: 3, Op: "Tj", OpIndex: 2},
		{Start: 4, End: 5, Op: "Tj", OpIndex: 6},
		{Start: 5, End: 8, Op: "TJ", OpIndex: 7},
	}, p.Spans)

	span, ok := p.Locate(6)
	require.True(t, ok)
	assert.Equal(t, "TJ", span.Op)
	_, ok = p.Locate(3)
	assert.False(t, ok, "the line break belongs to no span")
	_, ok = p.Locate(100)
	assert.False(t, ok)
}

func TestMissingFontFallsBack(t *testing.T) {
	b := pdftest.NewBuilder()
	data := b.Build(b.Document(pdftest.PageSpec{
		Content:   []byte("BT /F9 12 Tf (x) Tj ET"),
		Resources: generic.NewDictionary(),
	}))
	e := open(t, data)
	p, err := e.Page(0)
	require.NoError(t, err)
	assert.Equal(t, "x", p.Text)
	assert.Contains(t, e.Warnings(), "font /F9 not in resources")
}

func TestCompressedAndSplitContent(t *testing.T) {
	b := pdftest.NewBuilder()
	root := b.Document(pdftest.PageSpec{Content: pdftest.TextContent("zipped"), Compress: true})
	p, err := open(t, b.Build(root)).Page(0)
	require.NoError(t, err)
	assert.Equal(t, "zipped", p.Text)

	b = pdftest.NewBuilder()
	res := fontResources(b)
	part1 := b.Add(generic.NewStream(nil, []byte("BT /F1 12 Tf (split")))
	part2 := b.Add(generic.NewStream(nil, []byte(") Tj ET")))
	root = b.Document(pdftest.PageSpec{Content: []byte(""), Resources: res})

	// Replace the single content stream with the two parts.
	doc, err := reader.Open(b.Build(root))
	require.NoError(t, err)
	page, err := doc.Page(0)
	require.NoError(t, err)
	page.Dict.Set("Contents", generic.NewArray(part1, part2))
	p, err = NewExtractor(doc).ExtractPage(page)
	require.NoError(t, err)
	assert.Equal(t, "split", p.Text)
}

func TestJoinContent(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"single", []string{"BT (a) Tj ET"}, "BT (a) Tj ET"},
		{"token boundary", []string{"BT (a) Tj ET", "BT (b) Tj ET"}, "BT (a) Tj ET\nBT (b) Tj ET"},
		{"split literal", []string{"BT (spl", "it) Tj ET"}, "BT (split) Tj ET"},
		{"nested parens", []string{"((a) (b", "c)) Tj"}, "((a) (bc)) Tj"},
		{"escaped paren", []string{`(a\)`, "b) Tj"}, `(a\)b) Tj`},
		{"paren in comment", []string{"% (note\n(a) Tj", "ET"}, "% (note\n(a) Tj\nET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := make([][]byte, len(tt.parts))
			for i, p := range tt.parts {
				parts[i] = []byte(p)
			}
			assert.Equal(t, tt.want, string(joinContent(parts)))
		})
	}
}

func formXObject(content string, resources *generic.DictionaryObject) *generic.StreamObject {
	dict := generic.NewDictionary()
	dict.Set("Type", generic.NameObject("XObject"))
	dict.Set("Subtype", generic.NameObject("Form"))
	dict.Set("BBox", generic.NewArray(generic.IntegerObject(0), generic.IntegerObject(0), generic.IntegerObject(100), generic.IntegerObject(100)))
	if resources != nil {
		dict.Set("Resources", resources)
	}
	return generic.NewStream(dict, []byte(content))
}

func TestFormXObjects(t *testing.T) {
	b := pdftest.NewBuilder()
	res := fontResources(b)

	loopRef := b.Reserve()
	loopRes := generic.NewDictionary()
	loopXObjects := generic.NewDictionary()
	loopXObjects.Set("Loop", loopRef)
	loopRes.Set("XObject", loopXObjects)
	loopRes.Set("Font", res.Get("Font"))
	b.Set(loopRef, formXObject("BT /F1 12 Tf (loop) Tj ET /Loop Do", loopRes))

	inner := b.Add(formXObject("BT /F1 12 Tf (Inside) Tj ET", nil))
	image := generic.NewDictionary()
	image.Set("Subtype", generic.NameObject("Image"))

	xobjects := generic.NewDictionary()
	xobjects.Set("Fm1", inner)
	xobjects.Set("Loop", loopRef)
	xobjects.Set("Im1", b.Add(generic.NewStream(image, []byte{0})))
	res.Set("XObject", xobjects)

	content := "BT /F1 12 Tf (Before) Tj ET /Fm1 Do /Im1 Do /Loop Do BT /F1 12 Tf (After) Tj ET"
	root := b.Document(pdftest.PageSpec{Content: []byte(content), Resources: res})
	e := open(t, b.Build(root))
	p, err := e.Page(0)
	require.NoError(t, err)

	assert.Equal(t, "Before\nInside\nloop\nAfter", p.Text)
	assert.Contains(t, e.Warnings(), "form XObject 2 0 R painted recursively")
}

func TestBuiltContent(t *testing.T) {
	b := pdftest.NewBuilder()
	res := fontResources(b)
	form := content.NewContentBuilder().
		BeginText().
		SetFont("F1", 12).
		ShowText("form").
		EndText().
		Render()
	xobjects := generic.NewDictionary()
	xobjects.Set("Fm1", b.Add(formXObject(string(form), nil)))
	res.Set("XObject", xobjects)

	page := content.NewContentBuilder().
		BeginText().
		SetFont("F1", 12).
		SetLeading(14).
		SetTextMatrix(1, 0, 0, 1, 72, 700).
		ShowText("Title").
		NextLine().
		ShowTextArray("Hel", -20, "lo", -300, "World").
		TextPositionLeading(0, -14).
		ShowBytes([]byte("hex")).
		NextLineShowText("quoted").
		EndText().
		SaveState().
		Transform(1, 0, 0, 1, 10, 10).
		PaintXObject("Fm1").
		RestoreState().
		Render()

	data := b.Build(b.Document(pdftest.PageSpec{Content: page, Resources: res}))
	p, err := open(t, data).Page(0)
	require.NoError(t, err)
	assert.Equal(t, "Title\nHello World\nhex\nquoted\nform", p.Text)
}

func TestXObjectDepthLimit(t *testing.T) {
	b := pdftest.NewBuilder()
	res := fontResources(b)

	// Chain of forms, each painting the next.
	next := b.Add(formXObject("BT /F1 12 Tf (deep) Tj ET", res))
	for i := 0; i < 3; i++ {
		xo := generic.NewDictionary()
		xo.Set("Fm", next)
		formRes := generic.NewDictionary()
		formRes.Set("Font", res.Get("Font"))
		formRes.Set("XObject", xo)
		next = b.Add(formXObject("/Fm Do", formRes))
	}
	pageRes := generic.NewDictionary()
	pageRes.Set("Font", res.Get("Font"))
	xo := generic.NewDictionary()
	xo.Set("Fm", next)
	pageRes.Set("XObject", xo)
	data := b.Build(b.Document(pdftest.PageSpec{Content: []byte("/Fm Do"), Resources: pageRes}))

	p, err := open(t, data).Page(0)
	require.NoError(t, err)
	assert.Equal(t, "deep", p.Text)

	p, err = open(t, data, WithMaxXObjectDepth(3)).Page(0)
	require.NoError(t, err)
	assert.Equal(t, "", p.Text)
}

func TestDifferencesFont(t *testing.T) {
	b := pdftest.NewBuilder()
	enc := generic.NewDictionary()
	enc.Set("Type", generic.NameObject("Encoding"))
	enc.Set("Differences", generic.ArrayObject{generic.IntegerObject(1), generic.NameObject("H"), generic.NameObject("i")})
	font := pdftest.Helvetica()
	font.Set("Encoding", b.Add(enc))
	fonts := generic.NewDictionary()
	fonts.Set("F1", b.Add(font))
	res := generic.NewDictionary()
	res.Set("Font", fonts)

	data := b.Build(b.Document(pdftest.PageSpec{Content: []byte("BT /F1 12 Tf <0102> Tj ET"), Resources: res}))
	p, err := open(t, data).Page(0)
	require.NoError(t, err)
	assert.Equal(t, "Hi", p.Text)
}
