// Package writer appends incremental updates to existing PDF files.
//
// An incremental update leaves the original bytes untouched and appends
// changed and new objects followed by a cross-reference section whose
// trailer points back at the previous one. Signing relies on this: the
// bytes covered by earlier signatures never move.
package writer

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/georgepadayatti/zkpdf/pdf/generic"
	"github.com/georgepadayatti/zkpdf/pdf/reader"
)

var (
	// ErrNoCatalog is returned for documents whose trailer /Root is not an
	// indirect reference.
	ErrNoCatalog = errors.New("document catalog is not an indirect object")

	// ErrSignatureTooLarge is returned when a signature does not fit the
	// reserved /Contents area.
	ErrSignatureTooLarge = errors.New("signature larger than reserved contents")
)

// ObjectKey uniquely identifies an object by number and generation.
type ObjectKey struct {
	ObjectNumber int
	Generation   int
}

// trailerSkip lists trailer keys that describe the previous section only.
var trailerSkip = map[string]bool{
	"Prev": true, "XRefStm": true, "Size": true, "ID": true,
	"Type": true, "W": true, "Index": true, "Length": true,
	"Filter": true, "DecodeParms": true,
}

// IncrementalWriter collects changes to a document and writes them as an
// incremental update.
type IncrementalWriter struct {
	doc        *reader.Document
	objects    map[ObjectKey]*generic.IndirectObject
	nextObjNum int

	trailer    *generic.DictionaryObject
	rootRef    generic.Reference
	infoRef    *generic.Reference
	documentID generic.ArrayObject
	prev       int64

	streamXRefs bool
}

// NewIncremental starts an incremental update of doc. The update uses an
// xref stream when the newest section of doc is one.
func NewIncremental(doc *reader.Document) (*IncrementalWriter, error) {
	rootRef, ok := doc.Trailer().Get("Root").(generic.Reference)
	if !ok {
		return nil, ErrNoCatalog
	}

	w := &IncrementalWriter{
		doc:        doc,
		objects:    make(map[ObjectKey]*generic.IndirectObject),
		nextObjNum: doc.MaxObjectNumber() + 1,
		trailer:    generic.NewDictionary(),
		rootRef:    rootRef,
		prev:       -1,
	}
	if size, ok := doc.Trailer().GetInt("Size"); ok && int(size) > w.nextObjNum {
		w.nextObjNum = int(size)
	}
	for _, key := range doc.Trailer().Keys() {
		if !trailerSkip[key] {
			w.trailer.Set(key, doc.Trailer().Get(key))
		}
	}
	if ref, ok := doc.Trailer().Get("Info").(generic.Reference); ok {
		w.infoRef = &ref
	}

	if sections := doc.Sections(); len(sections) > 0 {
		w.prev = sections[0].Offset
		w.streamXRefs = sections[0].Type == reader.XRefSectionTypeStream
	} else if offset, ok := doc.StartXRef(); ok {
		w.prev = offset
	}

	id, err := handleDocumentID(doc.Trailer())
	if err != nil {
		return nil, err
	}
	w.documentID = id
	return w, nil
}

// handleDocumentID keeps the first part of the file identifier and
// regenerates the second.
func handleDocumentID(trailer *generic.DictionaryObject) (generic.ArrayObject, error) {
	id2 := make([]byte, 16)
	if _, err := rand.Read(id2); err != nil {
		return nil, err
	}

	var id1 []byte
	if ids := trailer.GetArray("ID"); len(ids) >= 1 {
		if s, ok := ids[0].(*generic.StringObject); ok {
			id1 = s.Value
		}
	}
	if id1 == nil {
		id1 = make([]byte, 16)
		if _, err := rand.Read(id1); err != nil {
			return nil, err
		}
	}
	return generic.ArrayObject{generic.NewHexString(id1), generic.NewHexString(id2)}, nil
}

// Document returns the document being updated.
func (w *IncrementalWriter) Document() *reader.Document {
	return w.doc
}

// GetObject resolves a reference, preferring objects changed in this
// update.
func (w *IncrementalWriter) GetObject(ref generic.Reference) (generic.PdfObject, error) {
	if obj, ok := w.objects[ObjectKey{ref.ObjectNumber, ref.GenerationNumber}]; ok {
		return obj.Object, nil
	}
	return w.doc.GetObject(ref.ObjectNumber, ref.GenerationNumber)
}

// Resolve implements reader.ObjectResolver over the updated document.
func (w *IncrementalWriter) Resolve(obj generic.PdfObject) (generic.PdfObject, error) {
	if ref, ok := obj.(generic.Reference); ok {
		return w.GetObject(ref)
	}
	return obj, nil
}

// DecodeStream implements reader.ObjectResolver.
func (w *IncrementalWriter) DecodeStream(stream *generic.StreamObject) ([]byte, error) {
	return w.doc.DecodeStream(stream)
}

// AddObject adds a new object and returns its reference.
func (w *IncrementalWriter) AddObject(obj generic.PdfObject) generic.Reference {
	ref := generic.NewReference(w.nextObjNum, 0)
	w.nextObjNum++
	w.objects[ObjectKey{ref.ObjectNumber, 0}] = generic.NewIndirectObject(ref.ObjectNumber, 0, obj)
	return ref
}

// UpdateObject replaces the object at ref in this update.
func (w *IncrementalWriter) UpdateObject(ref generic.Reference, obj generic.PdfObject) {
	key := ObjectKey{ref.ObjectNumber, ref.GenerationNumber}
	w.objects[key] = generic.NewIndirectObject(ref.ObjectNumber, ref.GenerationNumber, obj)
}

// HasChanges reports whether any object was added or updated.
func (w *IncrementalWriter) HasChanges() bool {
	return len(w.objects) > 0
}

// RootRef returns the catalog reference.
func (w *IncrementalWriter) RootRef() generic.Reference {
	return w.rootRef
}

// NextObjectNumber returns the number the next added object will get.
func (w *IncrementalWriter) NextObjectNumber() int {
	return w.nextObjNum
}

// StreamXRefs reports whether the update ends in an xref stream.
func (w *IncrementalWriter) StreamXRefs() bool {
	return w.streamXRefs
}

// SetStreamXRefs selects between an xref stream and a classic table.
func (w *IncrementalWriter) SetStreamXRefs(use bool) {
	w.streamXRefs = use
}

// DocumentID returns both parts of the file identifier written with the
// update.
func (w *IncrementalWriter) DocumentID() ([]byte, []byte) {
	id1 := w.documentID[0].(*generic.StringObject).Value
	id2 := w.documentID[1].(*generic.StringObject).Value
	return id1, id2
}

// SetInfo replaces the document information dictionary.
func (w *IncrementalWriter) SetInfo(info *generic.DictionaryObject) generic.Reference {
	if w.infoRef != nil {
		w.UpdateObject(*w.infoRef, info)
		return *w.infoRef
	}
	ref := w.AddObject(info)
	w.infoRef = &ref
	return ref
}

// catalog returns a writable copy of the catalog registered in the update.
func (w *IncrementalWriter) catalog() (*generic.DictionaryObject, error) {
	obj, err := w.GetObject(w.rootRef)
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(*generic.DictionaryObject)
	if !ok {
		return nil, ErrNoCatalog
	}
	if _, changed := w.objects[ObjectKey{w.rootRef.ObjectNumber, w.rootRef.GenerationNumber}]; changed {
		return dict, nil
	}
	dict = dict.Clone()
	w.UpdateObject(w.rootRef, dict)
	return dict, nil
}

// writableDict returns a copy of the dictionary at ref registered in the
// update, or the already registered one.
func (w *IncrementalWriter) writableDict(ref generic.Reference) (*generic.DictionaryObject, error) {
	if obj, ok := w.objects[ObjectKey{ref.ObjectNumber, ref.GenerationNumber}]; ok {
		if dict, ok := obj.Object.(*generic.DictionaryObject); ok {
			return dict, nil
		}
	}
	dict := reader.ResolveDict(w.doc, ref)
	if dict == nil {
		return nil, fmt.Errorf("object %s is not a dictionary", ref)
	}
	dict = dict.Clone()
	w.UpdateObject(ref, dict)
	return dict, nil
}

// acroForm returns a writable interactive form dictionary, creating one
// when the catalog has none.
func (w *IncrementalWriter) acroForm() (*generic.DictionaryObject, error) {
	root, err := w.catalog()
	if err != nil {
		return nil, err
	}
	switch v := root.Get("AcroForm").(type) {
	case generic.Reference:
		return w.writableDict(v)
	case *generic.DictionaryObject:
		form := v.Clone()
		root.Set("AcroForm", form)
		return form, nil
	}
	form := generic.NewDictionary()
	form.Set("Fields", generic.ArrayObject{})
	root.Set("AcroForm", w.AddObject(form))
	return form, nil
}

// AddSignatureField adds an empty signature field with a widget on the
// page at pageIndex. It returns the field reference and dictionary so the
// caller can attach a signature value.
func (w *IncrementalWriter) AddSignatureField(name string, pageIndex int, rect *generic.Rectangle) (generic.Reference, *generic.DictionaryObject, error) {
	page, err := w.doc.Page(pageIndex)
	if err != nil {
		return generic.Reference{}, nil, err
	}
	if rect == nil {
		rect = &generic.Rectangle{}
	}

	field := generic.NewDictionary()
	field.Set("Type", generic.NameObject("Annot"))
	field.Set("Subtype", generic.NameObject("Widget"))
	field.Set("FT", generic.NameObject("Sig"))
	field.Set("T", generic.NewTextString(name))
	field.Set("Rect", rect.ToArray())
	field.Set("F", generic.IntegerObject(132)) // Print + Locked
	field.Set("P", page.Ref)
	fieldRef := w.AddObject(field)

	form, err := w.acroForm()
	if err != nil {
		return generic.Reference{}, nil, err
	}
	fields := append(generic.ArrayObject{}, reader.ResolveArray(w, form.Get("Fields"))...)
	form.Set("Fields", append(fields, fieldRef))
	flags, _ := reader.ResolveInt(w, form.Get("SigFlags"))
	form.Set("SigFlags", generic.IntegerObject(flags|3)) // SignaturesExist | AppendOnly

	pageDict, err := w.writableDict(page.Ref)
	if err != nil {
		return generic.Reference{}, nil, err
	}
	annots := append(generic.ArrayObject{}, reader.ResolveArray(w, pageDict.Get("Annots"))...)
	pageDict.Set("Annots", append(annots, fieldRef))

	return fieldRef, field, nil
}

// SignaturePlaceholder is a signature dictionary whose /ByteRange and
// /Contents are filled in when the update is written.
type SignaturePlaceholder struct {
	SigDict      *generic.DictionaryObject
	SigDictRef   generic.Reference
	ContentsSize int
}

// PrepareSignature registers sigDict as the value of the signature field
// with contentsSize bytes reserved for the signature container.
func (w *IncrementalWriter) PrepareSignature(field *generic.DictionaryObject, sigDict *generic.DictionaryObject, contentsSize int) *SignaturePlaceholder {
	if sigDict == nil {
		sigDict = generic.NewDictionary()
	}
	if !sigDict.Has("Type") {
		sigDict.Set("Type", generic.NameObject("Sig"))
	}
	if !sigDict.Has("Filter") {
		sigDict.Set("Filter", generic.NameObject("Adobe.PPKLite"))
	}
	if !sigDict.Has("SubFilter") {
		sigDict.Set("SubFilter", generic.NameObject("adbe.pkcs7.detached"))
	}
	sigDict.Set("ByteRange", generic.ArrayObject{})
	sigDict.Set("Contents", generic.NewHexString(nil))

	ref := w.AddObject(sigDict)
	field.Set("V", ref)
	return &SignaturePlaceholder{SigDict: sigDict, SigDictRef: ref, ContentsSize: contentsSize}
}

// Write writes the original file followed by the update.
func (w *IncrementalWriter) Write(out io.Writer) error {
	data, _, err := w.build(nil)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// WriteWithSignature writes the update with the placeholder's byte range
// computed and its contents zero-filled, and returns what is needed to
// sign and embed the signature.
func (w *IncrementalWriter) WriteWithSignature(out io.Writer, placeholder *SignaturePlaceholder) (*SignatureInfo, error) {
	data, info, err := w.build(placeholder)
	if err != nil {
		return nil, err
	}
	if _, err := out.Write(data); err != nil {
		return nil, err
	}
	return info, nil
}

func (w *IncrementalWriter) build(placeholder *SignaturePlaceholder) ([]byte, *SignatureInfo, error) {
	original := w.doc.Data()
	if len(w.objects) == 0 {
		return original, nil, nil
	}

	var buf bytes.Buffer
	buf.Write(original)
	if len(original) > 0 && original[len(original)-1] != '\n' {
		buf.WriteByte('\n')
	}

	keys := make([]ObjectKey, 0, len(w.objects))
	for k := range w.objects {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ObjectNumber != keys[j].ObjectNumber {
			return keys[i].ObjectNumber < keys[j].ObjectNumber
		}
		return keys[i].Generation < keys[j].Generation
	})

	var byteRangeOffset, contentsOffset int64 = -1, -1
	entries := make([]*reader.XRefEntry, 0, len(keys)+1)
	for _, key := range keys {
		obj := w.objects[key]
		entries = append(entries, &reader.XRefEntry{
			Type:         reader.XRefTypeStandard,
			ObjectNumber: key.ObjectNumber,
			Generation:   key.Generation,
			Offset:       int64(buf.Len()),
		})
		if placeholder != nil && key.ObjectNumber == placeholder.SigDictRef.ObjectNumber {
			byteRangeOffset, contentsOffset = writeSignatureDict(&buf, obj, placeholder)
			continue
		}
		if err := obj.Write(&buf); err != nil {
			return nil, nil, err
		}
	}

	if err := w.writeXRef(&buf, entries); err != nil {
		return nil, nil, err
	}

	data := buf.Bytes()
	if placeholder == nil {
		return data, nil, nil
	}
	if byteRangeOffset < 0 {
		return nil, nil, fmt.Errorf("signature dictionary %s not part of the update", placeholder.SigDictRef)
	}

	// The excluded range spans the hex string including its delimiters.
	contentsEnd := contentsOffset + 2 + int64(placeholder.ContentsSize*2)
	byteRange := [4]int64{0, contentsOffset, contentsEnd, int64(len(data)) - contentsEnd}
	copy(data[byteRangeOffset:], fmt.Sprintf("[%010d %010d %010d %010d]",
		byteRange[0], byteRange[1], byteRange[2], byteRange[3]))

	return data, &SignatureInfo{
		Data:           data,
		ByteRange:      byteRange,
		ContentsOffset: contentsOffset + 1,
		ContentsSize:   placeholder.ContentsSize,
	}, nil
}

// writeSignatureDict writes the signature dictionary by hand so the
// offsets of the /ByteRange and /Contents values are known.
func writeSignatureDict(buf *bytes.Buffer, obj *generic.IndirectObject, placeholder *SignaturePlaceholder) (byteRangeOffset, contentsOffset int64) {
	fmt.Fprintf(buf, "%d %d obj\n<<", obj.ObjectNumber, obj.GenerationNumber)
	for _, key := range placeholder.SigDict.Keys() {
		buf.WriteString(" ")
		_ = generic.NameObject(key).Write(buf)
		buf.WriteString(" ")
		switch key {
		case "ByteRange":
			byteRangeOffset = int64(buf.Len())
			fmt.Fprintf(buf, "[%010d %010d %010d %010d]", 0, 0, 0, 0)
		case "Contents":
			contentsOffset = int64(buf.Len())
			buf.WriteByte('<')
			buf.Write(bytes.Repeat([]byte("0"), placeholder.ContentsSize*2))
			buf.WriteByte('>')
		default:
			_ = placeholder.SigDict.Get(key).Write(buf)
		}
	}
	buf.WriteString(" >>\nendobj\n")
	return byteRangeOffset, contentsOffset
}

func (w *IncrementalWriter) populateTrailer(trailer *generic.DictionaryObject) {
	for _, key := range w.trailer.Keys() {
		trailer.Set(key, w.trailer.Get(key))
	}
	trailer.Set("Size", generic.IntegerObject(w.nextObjNum))
	if w.prev >= 0 {
		trailer.Set("Prev", generic.IntegerObject(w.prev))
	}
	trailer.Set("ID", w.documentID)
	trailer.Set("Root", w.rootRef)
	if w.infoRef != nil {
		trailer.Set("Info", *w.infoRef)
	}
}

func (w *IncrementalWriter) writeXRef(buf *bytes.Buffer, entries []*reader.XRefEntry) error {
	xrefOffset := int64(buf.Len())
	if !w.streamXRefs {
		if err := reader.WriteXRefTable(buf, entries); err != nil {
			return err
		}
		trailer := generic.NewDictionary()
		w.populateTrailer(trailer)
		buf.WriteString("trailer\n")
		if err := trailer.Write(buf); err != nil {
			return err
		}
		fmt.Fprintf(buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
		return nil
	}

	// The xref stream is itself an object of the update.
	num := w.nextObjNum
	w.nextObjNum++
	defer func() { w.nextObjNum-- }()
	entries = append(entries, &reader.XRefEntry{
		Type:         reader.XRefTypeStandard,
		ObjectNumber: num,
		Offset:       xrefOffset,
	})
	stream := reader.WriteXRefStream(entries, w.prev)
	w.populateTrailer(stream.Dictionary)
	if err := generic.NewIndirectObject(num, 0, stream).Write(buf); err != nil {
		return err
	}
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return nil
}

// SignatureInfo describes a written update whose signature contents are
// still zero.
type SignatureInfo struct {
	Data           []byte
	ByteRange      [4]int64
	ContentsOffset int64
	ContentsSize   int
}

// GetDataToSign returns the bytes covered by the byte range.
func (s *SignatureInfo) GetDataToSign() []byte {
	part1 := s.Data[s.ByteRange[0] : s.ByteRange[0]+s.ByteRange[1]]
	part2 := s.Data[s.ByteRange[2] : s.ByteRange[2]+s.ByteRange[3]]

	result := make([]byte, len(part1)+len(part2))
	copy(result, part1)
	copy(result[len(part1):], part2)
	return result
}

// EmbedSignature returns a copy of the data with signature hex-encoded
// into the reserved contents, padded with zeros.
func (s *SignatureInfo) EmbedSignature(signature []byte) ([]byte, error) {
	if len(signature) > s.ContentsSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrSignatureTooLarge, len(signature), s.ContentsSize)
	}
	result := make([]byte, len(s.Data))
	copy(result, s.Data)
	copy(result[s.ContentsOffset:], fmt.Sprintf("%X", signature))
	return result, nil
}
