// Package pdftest builds small PDF files for tests.
//
// Files are written with a classic cross-reference table or, optionally,
// with an xref stream and a compressed object stream. Incremental updates
// can be appended to any file produced here.
package pdftest

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/georgepadayatti/zkpdf/pdf/content"
	"github.com/georgepadayatti/zkpdf/pdf/filters"
	"github.com/georgepadayatti/zkpdf/pdf/generic"
)

// Builder collects numbered objects and serializes them.
type Builder struct {
	// Version is written in the header.
	Version string

	// XRefStream selects an xref stream instead of a table. Dictionaries
	// and other non-stream objects are then stored in a single object
	// stream.
	XRefStream bool

	// Info, when set, becomes the trailer's /Info.
	Info *generic.DictionaryObject

	objects map[int]generic.PdfObject
	next    int
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{Version: "1.7", objects: make(map[int]generic.PdfObject), next: 1}
}

// Reserve allocates an object number to be filled with Set.
func (b *Builder) Reserve() generic.Reference {
	ref := generic.NewReference(b.next, 0)
	b.next++
	b.objects[ref.ObjectNumber] = generic.NullObject{}
	return ref
}

// Set stores obj under ref.
func (b *Builder) Set(ref generic.Reference, obj generic.PdfObject) {
	b.objects[ref.ObjectNumber] = obj
	if ref.ObjectNumber >= b.next {
		b.next = ref.ObjectNumber + 1
	}
}

// Add stores obj under a new object number.
func (b *Builder) Add(obj generic.PdfObject) generic.Reference {
	ref := b.Reserve()
	b.objects[ref.ObjectNumber] = obj
	return ref
}

// Size returns one past the highest object number.
func (b *Builder) Size() int {
	return b.next
}

func (b *Builder) numbers() []int {
	nums := make([]int, 0, len(b.objects))
	for n := range b.objects {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// Build serializes the objects with the catalog root.
func (b *Builder) Build(root generic.Reference) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", b.Version)
	if b.XRefStream {
		b.writeCompressed(&buf, root)
	} else {
		b.writeClassic(&buf, root, -1, b.numbers())
	}
	return buf.Bytes()
}

func (b *Builder) trailer(root generic.Reference, prev int64) *generic.DictionaryObject {
	t := generic.NewDictionary()
	t.Set("Root", root)
	if b.Info != nil {
		t.Set("Info", b.Add(b.Info))
		b.Info = nil
	}
	if prev >= 0 {
		t.Set("Prev", generic.IntegerObject(prev))
	}
	return t
}

func (b *Builder) writeClassic(buf *bytes.Buffer, root generic.Reference, prev int64, nums []int) {
	if b.Info != nil {
		nums = append(nums, b.next)
	}
	trailer := b.trailer(root, prev)

	offsets := make(map[int]int, len(nums))
	for _, n := range nums {
		offsets[n] = buf.Len()
		writeObject(buf, n, b.objects[n])
	}
	trailer.Set("Size", generic.IntegerObject(b.next))

	xrefOffset := buf.Len()
	buf.WriteString("xref\n")
	if prev < 0 {
		buf.WriteString("0 1\n0000000000 65535 f\r\n")
	}
	for start := 0; start < len(nums); {
		end := start + 1
		for end < len(nums) && nums[end] == nums[end-1]+1 {
			end++
		}
		fmt.Fprintf(buf, "%d %d\n", nums[start], end-start)
		for _, n := range nums[start:end] {
			fmt.Fprintf(buf, "%010d 00000 n\r\n", offsets[n])
		}
		start = end
	}
	buf.WriteString("trailer\n")
	_ = trailer.Write(buf)
	fmt.Fprintf(buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
}

func (b *Builder) writeCompressed(buf *bytes.Buffer, root generic.Reference) {
	trailer := b.trailer(root, -1)
	nums := b.numbers()

	var direct, packed []int
	for _, n := range nums {
		if _, ok := b.objects[n].(*generic.StreamObject); ok {
			direct = append(direct, n)
		} else {
			packed = append(packed, n)
		}
	}

	offsets := make(map[int]int)
	for _, n := range direct {
		offsets[n] = buf.Len()
		writeObject(buf, n, b.objects[n])
	}

	objStmNum := b.next
	xrefNum := b.next + 1
	size := b.next + 2

	var header, body bytes.Buffer
	for _, n := range packed {
		fmt.Fprintf(&header, "%d %d ", n, body.Len())
		_ = b.objects[n].Write(&body)
		body.WriteByte('\n')
	}
	objStmData, _ := filters.EncodeFlate(append(header.Bytes(), body.Bytes()...))
	objStmDict := generic.NewDictionary()
	objStmDict.Set("Type", generic.NameObject("ObjStm"))
	objStmDict.Set("N", generic.IntegerObject(len(packed)))
	objStmDict.Set("First", generic.IntegerObject(header.Len()))
	objStmDict.Set("Filter", generic.NameObject("FlateDecode"))
	offsets[objStmNum] = buf.Len()
	writeObject(buf, objStmNum, generic.NewStream(objStmDict, objStmData))

	xrefOffset := buf.Len()
	var rows bytes.Buffer
	for n := 0; n < size; n++ {
		switch {
		case n == xrefNum:
			rows.Write([]byte{1, byte(xrefOffset >> 24), byte(xrefOffset >> 16), byte(xrefOffset >> 8), byte(xrefOffset), 0})
		case offsets[n] > 0:
			off := offsets[n]
			rows.Write([]byte{1, byte(off >> 24), byte(off >> 16), byte(off >> 8), byte(off), 0})
		default:
			idx := indexOf(packed, n)
			if idx < 0 {
				rows.Write([]byte{0, 0, 0, 0, 0, 0xFF})
				continue
			}
			rows.Write([]byte{2, byte(objStmNum >> 24), byte(objStmNum >> 16), byte(objStmNum >> 8), byte(objStmNum), byte(idx)})
		}
	}
	xrefData, _ := filters.EncodeFlate(rows.Bytes())
	trailer.Set("Type", generic.NameObject("XRef"))
	trailer.Set("Size", generic.IntegerObject(size))
	trailer.Set("W", generic.NewArray(generic.IntegerObject(1), generic.IntegerObject(4), generic.IntegerObject(1)))
	trailer.Set("Filter", generic.NameObject("FlateDecode"))
	writeObject(buf, xrefNum, generic.NewStream(trailer, xrefData))
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
}

func indexOf(nums []int, n int) int {
	for i, v := range nums {
		if v == n {
			return i
		}
	}
	return -1
}

func writeObject(buf *bytes.Buffer, num int, obj generic.PdfObject) {
	_ = generic.NewIndirectObject(num, 0, obj).Write(buf)
}

// Update is an incremental update to be appended to an existing file.
type Update struct {
	*Builder
	base []byte
}

// NewUpdate starts an incremental update of base. New objects are
// numbered from size, the /Size of the base file.
func NewUpdate(base []byte, size int) *Update {
	b := NewBuilder()
	b.next = size
	return &Update{Builder: b, base: base}
}

// Build appends the updated objects and a new xref section pointing back
// at the base file's last one.
func (u *Update) Build(root generic.Reference) []byte {
	var buf bytes.Buffer
	buf.Write(u.base)
	if len(u.base) > 0 && u.base[len(u.base)-1] != '\n' {
		buf.WriteByte('\n')
	}
	u.writeClassic(&buf, root, StartXRef(u.base), u.numbers())
	return buf.Bytes()
}

// StartXRef returns the offset after the last startxref keyword, or -1.
func StartXRef(data []byte) int64 {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return -1
	}
	fields := bytes.Fields(data[idx+len("startxref"):])
	if len(fields) == 0 {
		return -1
	}
	v, err := strconv.ParseInt(string(fields[0]), 10, 64)
	if err != nil {
		return -1
	}
	return v
}

// Helvetica returns a Type1 font dictionary with WinAnsiEncoding.
func Helvetica() *generic.DictionaryObject {
	font := generic.NewDictionary()
	font.Set("Type", generic.NameObject("Font"))
	font.Set("Subtype", generic.NameObject("Type1"))
	font.Set("BaseFont", generic.NameObject("Helvetica"))
	font.Set("Encoding", generic.NameObject("WinAnsiEncoding"))
	return font
}

// TextContent returns a content stream that shows each line with Tj,
// moving down between lines.
func TextContent(lines ...string) []byte {
	cb := content.NewContentBuilder().
		BeginText().
		SetFont("F1", 12).
		TextPosition(72, 720)
	for i, line := range lines {
		if i > 0 {
			cb.TextPosition(0, -14)
		}
		cb.ShowText(line)
	}
	return cb.EndText().Render()
}

// PageSpec describes one page of a document built by Document.
type PageSpec struct {
	// Content is the raw content stream. It is Flate-compressed when
	// Compress is set.
	Content  []byte
	Compress bool

	// Resources defaults to /Font << /F1 Helvetica >>.
	Resources *generic.DictionaryObject
}

// Document adds a catalog, page tree and the given pages to b and
// returns the catalog reference.
func (b *Builder) Document(pages ...PageSpec) generic.Reference {
	catalogRef := b.Reserve()
	pagesRef := b.Reserve()
	var fontRef generic.Reference
	hasFont := false

	kids := generic.ArrayObject{}
	for _, spec := range pages {
		resources := spec.Resources
		if resources == nil {
			if !hasFont {
				fontRef = b.Add(Helvetica())
				hasFont = true
			}
			fonts := generic.NewDictionary()
			fonts.Set("F1", fontRef)
			resources = generic.NewDictionary()
			resources.Set("Font", fonts)
		}

		streamDict := generic.NewDictionary()
		data := spec.Content
		if spec.Compress {
			data, _ = filters.EncodeFlate(spec.Content)
			streamDict.Set("Filter", generic.NameObject("FlateDecode"))
		}
		contentRef := b.Add(generic.NewStream(streamDict, data))

		page := generic.NewDictionary()
		page.Set("Type", generic.NameObject("Page"))
		page.Set("Parent", pagesRef)
		page.Set("MediaBox", generic.NewArray(generic.IntegerObject(0), generic.IntegerObject(0), generic.IntegerObject(612), generic.IntegerObject(792)))
		page.Set("Resources", resources)
		page.Set("Contents", contentRef)
		kids = append(kids, b.Add(page))
	}

	pagesDict := generic.NewDictionary()
	pagesDict.Set("Type", generic.NameObject("Pages"))
	pagesDict.Set("Kids", kids)
	pagesDict.Set("Count", generic.IntegerObject(len(kids)))
	b.Set(pagesRef, pagesDict)

	catalog := generic.NewDictionary()
	catalog.Set("Type", generic.NameObject("Catalog"))
	catalog.Set("Pages", pagesRef)
	b.Set(catalogRef, catalog)
	return catalogRef
}

// TextPDF returns a document with one page per entry; each page shows its
// lines in Helvetica.
func TextPDF(pages ...[]string) []byte {
	b := NewBuilder()
	specs := make([]PageSpec, len(pages))
	for i, lines := range pages {
		specs[i] = PageSpec{Content: TextContent(lines...)}
	}
	return b.Build(b.Document(specs...))
}
