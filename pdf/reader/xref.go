package reader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/georgepadayatti/zkpdf/pdf/generic"
)

// XRefType represents different types of cross-reference entries.
type XRefType int

const (
	// XRefTypeFree represents a freeing instruction.
	XRefTypeFree XRefType = iota
	// XRefTypeStandard represents a regular top-level object.
	XRefTypeStandard
	// XRefTypeInObjStream represents an object that's part of an object stream.
	XRefTypeInObjStream
)

// String returns the string representation of the XRef type.
func (t XRefType) String() string {
	switch t {
	case XRefTypeFree:
		return "free"
	case XRefTypeStandard:
		return "standard"
	case XRefTypeInObjStream:
		return "in_obj_stream"
	default:
		return "unknown"
	}
}

// XRefEntry is one cross-reference entry.
type XRefEntry struct {
	Type         XRefType
	ObjectNumber int
	Generation   int

	// Offset is the byte offset of "N G obj" for standard entries.
	Offset int64

	// StreamObject and StreamIndex locate objects stored in an object
	// stream. The generation of such objects is always 0.
	StreamObject int
	StreamIndex  int

	// revision is the index of the xref section the entry came from,
	// counting from the newest (0).
	revision int
}

// XRefSectionType represents the type of XRef section.
type XRefSectionType int

const (
	// XRefSectionTypeTable is a traditional XRef table.
	XRefSectionTypeTable XRefSectionType = iota
	// XRefSectionTypeStream is an XRef stream (PDF 1.5+).
	XRefSectionTypeStream
)

// XRefSection is one cross-reference section together with its trailer.
type XRefSection struct {
	Type    XRefSectionType
	Offset  int64
	Entries []*XRefEntry
	Trailer *generic.DictionaryObject
}

// xrefTable merges sections from newest to oldest. The first in-use entry
// seen for an object number wins; a free entry only blocks older
// revisions, so a hybrid file's XRefStm can still fill it in.
type xrefTable struct {
	entries map[int]*XRefEntry
}

func newXRefTable() *xrefTable {
	return &xrefTable{entries: make(map[int]*XRefEntry)}
}

func (t *xrefTable) add(e *XRefEntry) {
	existing, ok := t.entries[e.ObjectNumber]
	if !ok {
		t.entries[e.ObjectNumber] = e
		return
	}
	if existing.Type == XRefTypeFree && existing.revision == e.revision && e.Type != XRefTypeFree {
		t.entries[e.ObjectNumber] = e
	}
}

func (t *xrefTable) get(objNum int) *XRefEntry {
	return t.entries[objNum]
}

// objectNumbers returns the object numbers of in-use entries in order.
func (t *xrefTable) objectNumbers() []int {
	nums := make([]int, 0, len(t.entries))
	for n, e := range t.entries {
		if e.Type != XRefTypeFree {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums
}

// parseXRefTable parses a classic table starting at the "xref" keyword.
// Entry lines are read as tokens so 19- and 21-byte lines are tolerated.
func parseXRefTable(data []byte, offset int64) (*XRefSection, error) {
	p := generic.NewParser(data)
	p.SetPos(offset)
	if kw := p.ReadKeyword(); kw != "xref" {
		return nil, fmt.Errorf("expected 'xref' at offset %d, got %q", offset, kw)
	}

	section := &XRefSection{Type: XRefSectionTypeTable, Offset: offset}
	for {
		p.SkipWhitespace()
		save := p.Pos()
		kw := p.ReadKeyword()
		if kw == "trailer" {
			break
		}
		p.SetPos(save)

		startObj, err := readTableInt(p)
		if err != nil {
			return nil, fmt.Errorf("xref subsection header at offset %d: %w", save, err)
		}
		count, err := readTableInt(p)
		if err != nil {
			return nil, fmt.Errorf("xref subsection header at offset %d: %w", save, err)
		}
		if count < 0 || count > len(data)/18 {
			return nil, fmt.Errorf("xref subsection count %d out of range", count)
		}

		for i := 0; i < count; i++ {
			entryOffset, err := readTableInt(p)
			if err != nil {
				return nil, fmt.Errorf("xref entry %d: %w", startObj+i, err)
			}
			generation, err := readTableInt(p)
			if err != nil {
				return nil, fmt.Errorf("xref entry %d: %w", startObj+i, err)
			}
			marker := p.ReadKeyword()

			entry := &XRefEntry{ObjectNumber: startObj + i, Generation: generation, Offset: int64(entryOffset)}
			switch marker {
			case "n":
				entry.Type = XRefTypeStandard
			case "f":
				entry.Type = XRefTypeFree
			default:
				return nil, fmt.Errorf("xref entry %d: bad marker %q", startObj+i, marker)
			}
			section.Entries = append(section.Entries, entry)
		}
	}

	trailer, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("trailer: %w", err)
	}
	dict, ok := trailer.(*generic.DictionaryObject)
	if !ok {
		return nil, fmt.Errorf("trailer is %T, not a dictionary", trailer)
	}
	section.Trailer = dict

	fixOffByOneTable(section, data)
	return section, nil
}

func readTableInt(p *generic.Parser) (int, error) {
	p.SkipWhitespace()
	kw := p.ReadKeyword()
	n := 0
	if kw == "" {
		return 0, fmt.Errorf("expected integer")
	}
	for _, c := range kw {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("expected integer, got %q", kw)
		}
		n = n*10 + int(c-'0')
		if n > 1<<40 {
			return 0, fmt.Errorf("integer %q too large", kw)
		}
	}
	return n, nil
}

// fixOffByOneTable repairs tables whose single subsection starts at 1
// while describing object 0, a common writer bug: if entry k does not
// point at "k G obj" but at "k-1 G obj" for every entry, shift numbers.
func fixOffByOneTable(section *XRefSection, data []byte) {
	shifted := 0
	checked := 0
	for _, e := range section.Entries {
		if e.Type != XRefTypeStandard {
			continue
		}
		checked++
		num, _, _, err := ReadObjectHeader(data, e.Offset)
		if err != nil {
			return
		}
		if num == e.ObjectNumber-1 {
			shifted++
		} else if num != e.ObjectNumber {
			return
		}
	}
	if checked == 0 || shifted != checked {
		return
	}
	for _, e := range section.Entries {
		e.ObjectNumber--
	}
}

// parseXRefStreamData parses the decoded body of an xref stream.
func parseXRefStreamData(dict *generic.DictionaryObject, data []byte) ([]*XRefEntry, error) {
	wArray := dict.GetArray("W")
	if len(wArray) != 3 {
		return nil, fmt.Errorf("invalid /W array in xref stream")
	}
	var w [3]int
	for i, v := range wArray {
		n, ok := v.(generic.IntegerObject)
		if !ok || n < 0 || n > 8 {
			return nil, fmt.Errorf("invalid /W entry %v", v)
		}
		w[i] = int(n)
	}
	entrySize := w[0] + w[1] + w[2]
	if entrySize == 0 {
		return nil, fmt.Errorf("xref stream entries have zero width")
	}

	var subsections [][2]int
	if index := dict.GetArray("Index"); index != nil {
		if len(index)%2 != 0 {
			return nil, fmt.Errorf("odd-length /Index array")
		}
		for i := 0; i < len(index); i += 2 {
			start, ok1 := index[i].(generic.IntegerObject)
			count, ok2 := index[i+1].(generic.IntegerObject)
			if !ok1 || !ok2 || start < 0 || count < 0 {
				return nil, fmt.Errorf("invalid /Index entry")
			}
			subsections = append(subsections, [2]int{int(start), int(count)})
		}
	} else {
		size, ok := dict.GetInt("Size")
		if !ok || size < 0 {
			return nil, fmt.Errorf("xref stream missing /Size")
		}
		subsections = [][2]int{{0, int(size)}}
	}

	var entries []*XRefEntry
	pos := 0
	for _, subsec := range subsections {
		for i := 0; i < subsec[1]; i++ {
			if pos+entrySize > len(data) {
				return entries, nil
			}
			row := data[pos : pos+entrySize]
			pos += entrySize

			entryType := 1
			if w[0] > 0 {
				entryType = int(readXRefField(row, 0, w[0]))
			}
			f2 := readXRefField(row, w[0], w[1])
			f3 := readXRefField(row, w[0]+w[1], w[2])

			objNum := subsec[0] + i
			switch entryType {
			case 0:
				entries = append(entries, &XRefEntry{Type: XRefTypeFree, ObjectNumber: objNum, Generation: int(f3)})
			case 1:
				entries = append(entries, &XRefEntry{Type: XRefTypeStandard, ObjectNumber: objNum, Offset: int64(f2), Generation: int(f3)})
			case 2:
				entries = append(entries, &XRefEntry{Type: XRefTypeInObjStream, ObjectNumber: objNum, StreamObject: int(f2), StreamIndex: int(f3)})
			default:
				// Unknown types are treated as references to the null object.
			}
		}
	}
	return entries, nil
}

func readXRefField(data []byte, offset, width int) uint64 {
	var value uint64
	for i := 0; i < width; i++ {
		value = value<<8 | uint64(data[offset+i])
	}
	return value
}

// ObjectStream is a decoded object stream (/Type /ObjStm).
type ObjectStream struct {
	N     int
	First int

	// ObjectNumbers and Offsets are the header pairs, in order.
	ObjectNumbers []int
	Offsets       []int

	Data []byte
}

// ParseObjectStream parses the header of a decoded object stream.
func ParseObjectStream(dict *generic.DictionaryObject, decoded []byte, maxObjects int) (*ObjectStream, error) {
	n, ok := dict.GetInt("N")
	if !ok || n < 0 {
		return nil, fmt.Errorf("object stream missing /N")
	}
	first, ok := dict.GetInt("First")
	if !ok || first < 0 || first > int64(len(decoded)) {
		return nil, fmt.Errorf("object stream has invalid /First")
	}
	if maxObjects > 0 && n > int64(maxObjects) {
		return nil, fmt.Errorf("object stream declares %d objects, limit is %d", n, maxObjects)
	}

	os := &ObjectStream{N: int(n), First: int(first), Data: decoded}
	p := generic.NewParser(decoded[:first])
	for i := 0; i < os.N; i++ {
		objNum, err := readTableInt(p)
		if err != nil {
			return nil, fmt.Errorf("object stream header pair %d: %w", i, err)
		}
		off, err := readTableInt(p)
		if err != nil {
			return nil, fmt.Errorf("object stream header pair %d: %w", i, err)
		}
		os.ObjectNumbers = append(os.ObjectNumbers, objNum)
		os.Offsets = append(os.Offsets, off)
	}
	return os, nil
}

// Object parses the object at index. objNum is checked against the
// header; when it does not match, the header is searched for objNum.
func (os *ObjectStream) Object(index, objNum int) (generic.PdfObject, error) {
	if index < 0 || index >= os.N || os.ObjectNumbers[index] != objNum {
		index = -1
		for i, n := range os.ObjectNumbers {
			if n == objNum {
				index = i
				break
			}
		}
		if index < 0 {
			return nil, fmt.Errorf("object %d not in object stream", objNum)
		}
	}

	start := os.First + os.Offsets[index]
	if start >= len(os.Data) {
		return nil, fmt.Errorf("object %d offset out of bounds", objNum)
	}
	p := generic.NewParser(os.Data)
	p.SetPos(int64(start))
	obj, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("object %d in object stream: %w", objNum, err)
	}
	return obj, nil
}

// WriteXRefTable writes a classic table covering the given entries, one
// subsection per run of consecutive object numbers.
func WriteXRefTable(w io.Writer, entries []*XRefEntry) error {
	sorted := append([]*XRefEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ObjectNumber < sorted[j].ObjectNumber })

	if _, err := io.WriteString(w, "xref\n"); err != nil {
		return err
	}
	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && sorted[end].ObjectNumber == sorted[end-1].ObjectNumber+1 {
			end++
		}
		if _, err := fmt.Fprintf(w, "%d %d\n", sorted[start].ObjectNumber, end-start); err != nil {
			return err
		}
		for _, e := range sorted[start:end] {
			marker := 'n'
			if e.Type == XRefTypeFree {
				marker = 'f'
			}
			if _, err := fmt.Fprintf(w, "%010d %05d %c\r\n", e.Offset, e.Generation, marker); err != nil {
				return err
			}
		}
		start = end
	}
	return nil
}

// WriteXRefStream builds an xref stream for the given entries. The caller
// adds /Root, /Size and the like to the returned stream's dictionary.
func WriteXRefStream(entries []*XRefEntry, prev int64) *generic.StreamObject {
	sorted := append([]*XRefEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ObjectNumber < sorted[j].ObjectNumber })

	var maxField2, maxField3 int64
	for _, e := range sorted {
		f2, f3 := e.Offset, int64(e.Generation)
		if e.Type == XRefTypeInObjStream {
			f2, f3 = int64(e.StreamObject), int64(e.StreamIndex)
		}
		maxField2 = max(maxField2, f2)
		maxField3 = max(maxField3, f3)
	}
	w2 := bytesNeeded(maxField2)
	w3 := bytesNeeded(maxField3)

	var buf bytes.Buffer
	index := generic.ArrayObject{}
	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && sorted[end].ObjectNumber == sorted[end-1].ObjectNumber+1 {
			end++
		}
		index = append(index, generic.IntegerObject(sorted[start].ObjectNumber), generic.IntegerObject(end-start))
		for _, e := range sorted[start:end] {
			buf.WriteByte(byte(e.Type))
			if e.Type == XRefTypeInObjStream {
				writeField(&buf, int64(e.StreamObject), w2)
				writeField(&buf, int64(e.StreamIndex), w3)
			} else {
				writeField(&buf, e.Offset, w2)
				writeField(&buf, int64(e.Generation), w3)
			}
		}
		start = end
	}

	dict := generic.NewDictionary()
	dict.Set("Type", generic.NameObject("XRef"))
	dict.Set("W", generic.NewArray(generic.IntegerObject(1), generic.IntegerObject(w2), generic.IntegerObject(w3)))
	dict.Set("Index", index)
	if prev > 0 {
		dict.Set("Prev", generic.IntegerObject(prev))
	}
	return generic.NewStream(dict, buf.Bytes())
}

func bytesNeeded(n int64) int {
	width := 1
	for n > 0xFF {
		width++
		n >>= 8
	}
	return width
}

func writeField(w *bytes.Buffer, value int64, width int) {
	var data [8]byte
	binary.BigEndian.PutUint64(data[:], uint64(value))
	w.Write(data[8-width:])
}
