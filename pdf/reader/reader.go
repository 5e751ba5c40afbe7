// Package reader provides PDF file reading and parsing.
//
// A Document is built once from an immutable byte buffer. Objects are
// resolved lazily through the cross-reference table and memoized per
// Document; nothing is shared between Documents.
package reader

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/georgepadayatti/zkpdf/pdf/filters"
	"github.com/georgepadayatti/zkpdf/pdf/generic"
)

// Common errors
var (
	// ErrMalformedDocument reports input that cannot be parsed as a PDF.
	ErrMalformedDocument = errors.New("malformed PDF document")
	ErrPageOutOfRange    = errors.New("page index out of range")
)

// MalformedError describes why a document was rejected.
type MalformedError struct {
	Offset int64
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrMalformedDocument, e.Reason)
	if e.Offset >= 0 {
		msg = fmt.Sprintf("%s (offset %d)", msg, e.Offset)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is reports whether target is ErrMalformedDocument.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedDocument
}

// Unwrap returns the underlying error.
func (e *MalformedError) Unwrap() error {
	return e.Err
}

func malformed(offset int64, err error, format string, args ...any) *MalformedError {
	return &MalformedError{Offset: offset, Reason: fmt.Sprintf(format, args...), Err: err}
}

const (
	// DefaultMaxObjectStreamObjects bounds /N of an object stream.
	DefaultMaxObjectStreamObjects = 100000

	headerSearchWindow = 1024
	maxPageTreeDepth   = 256
)

// Option configures a Document.
type Option func(*Document)

// WithMaxDecompressedSize bounds the decoded size of any single stream.
func WithMaxDecompressedSize(n int) Option {
	return func(d *Document) {
		d.decoder = filters.NewDecoder(n)
	}
}

// WithMaxObjectStreamObjects bounds the number of objects an object stream
// may declare.
func WithMaxObjectStreamObjects(n int) Option {
	return func(d *Document) {
		if n > 0 {
			d.maxObjStmObjects = n
		}
	}
}

// WithLogger sets the logger used for debug events.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Document is a parsed PDF file.
type Document struct {
	data    []byte
	version string
	trailer *generic.DictionaryObject
	catalog *generic.DictionaryObject

	xref      *xrefTable
	sections  []*XRefSection
	recovered bool

	cache      map[int]generic.PdfObject
	inProgress map[int]bool
	objStreams map[int]*ObjectStream

	pages []*Page

	decoder          *filters.Decoder
	maxObjStmObjects int
	logger           *slog.Logger
	warnings         []string
}

// Open parses the header, cross-reference data and catalog of a PDF.
// When the cross-reference data is unusable the object table is rebuilt
// by scanning the file.
func Open(data []byte, opts ...Option) (*Document, error) {
	d := &Document{
		data:             data,
		xref:             newXRefTable(),
		cache:            make(map[int]generic.PdfObject),
		inProgress:       make(map[int]bool),
		objStreams:       make(map[int]*ObjectStream),
		decoder:          filters.NewDecoder(0),
		maxObjStmObjects: DefaultMaxObjectStreamObjects,
		logger:           slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.parseHeader(); err != nil {
		return nil, err
	}

	if err := d.loadXRef(); err != nil {
		d.logger.Debug("cross-reference data unusable, scanning file", "error", err)
		if rerr := d.recover(); rerr != nil {
			return nil, malformed(-1, errors.Join(err, rerr), "cannot locate objects")
		}
	}

	if err := d.loadCatalog(); err != nil {
		if d.recovered {
			return nil, err
		}
		d.logger.Debug("catalog unreachable, scanning file", "error", err)
		if rerr := d.recover(); rerr != nil {
			return nil, err
		}
		if err := d.loadCatalog(); err != nil {
			return nil, err
		}
	}

	return d, nil
}

var headerPattern = regexp.MustCompile(`%PDF-(\d+\.\d+)`)

func (d *Document) parseHeader() error {
	window := d.data
	if len(window) > headerSearchWindow {
		window = window[:headerSearchWindow]
	}
	m := headerPattern.FindSubmatch(window)
	if m == nil {
		return malformed(0, nil, "missing %%PDF header")
	}
	d.version = string(m[1])
	return nil
}

var startxrefKeyword = []byte("startxref")

func (d *Document) loadXRef() error {
	idx := bytes.LastIndex(d.data, startxrefKeyword)
	if idx < 0 {
		return malformed(-1, nil, "startxref not found")
	}
	p := generic.NewParser(d.data)
	p.SetPos(int64(idx + len(startxrefKeyword)))
	offset, err := readTableInt(p)
	if err != nil {
		return malformed(int64(idx), err, "invalid startxref value")
	}
	return d.parseXRefChain(int64(offset))
}

// parseXRefChain follows /Prev links from the newest section. Entries of
// newer sections shadow older ones.
func (d *Document) parseXRefChain(offset int64) error {
	visited := make(map[int64]bool)
	revision := 0
	for offset >= 0 {
		if visited[offset] {
			d.warn("xref /Prev loop at offset %d", offset)
			break
		}
		visited[offset] = true
		if offset >= int64(len(d.data)) {
			return malformed(offset, nil, "xref offset beyond end of file")
		}

		section, err := d.parseXRefSection(offset)
		if err != nil {
			return err
		}
		d.addSection(section, revision)
		d.logger.Debug("xref section", "offset", offset, "entries", len(section.Entries), "stream", section.Type == XRefSectionTypeStream)

		// Hybrid files: the table's XRefStm belongs to the same revision.
		if stmOffset, ok := section.Trailer.GetInt("XRefStm"); ok && section.Type == XRefSectionTypeTable && !visited[stmOffset] {
			visited[stmOffset] = true
			if stm, err := d.parseXRefSection(stmOffset); err == nil {
				d.addSection(stm, revision)
			} else {
				d.warn("ignoring unreadable XRefStm at %d: %v", stmOffset, err)
			}
		}

		if d.trailer == nil {
			d.trailer = section.Trailer
		}

		prev, ok := section.Trailer.GetInt("Prev")
		if !ok {
			break
		}
		offset = prev
		revision++
	}
	if d.trailer == nil {
		return malformed(-1, nil, "no trailer")
	}
	return nil
}

func (d *Document) addSection(section *XRefSection, revision int) {
	for _, e := range section.Entries {
		e.revision = revision
		d.xref.add(e)
	}
	d.sections = append(d.sections, section)
}

func (d *Document) parseXRefSection(offset int64) (*XRefSection, error) {
	p := generic.NewParser(d.data)
	p.SetPos(offset)
	p.SkipWhitespace()
	start := p.Pos()
	if bytes.HasPrefix(d.data[start:], []byte("xref")) {
		section, err := parseXRefTable(d.data, start)
		if err != nil {
			return nil, malformed(start, err, "invalid xref table")
		}
		return section, nil
	}

	p.ResolveLength = d.resolveLength
	obj, err := p.ParseIndirectObject()
	if err != nil {
		return nil, malformed(start, err, "no xref table or stream")
	}
	stream, ok := obj.Object.(*generic.StreamObject)
	if !ok || stream.Dictionary.GetName("Type") != "XRef" {
		return nil, malformed(start, nil, "object %d is not an xref stream", obj.ObjectNumber)
	}
	decoded, err := d.DecodeStream(stream)
	if err != nil {
		return nil, malformed(start, err, "cannot decode xref stream")
	}
	entries, err := parseXRefStreamData(stream.Dictionary, decoded)
	if err != nil {
		return nil, malformed(start, err, "invalid xref stream")
	}
	return &XRefSection{Type: XRefSectionTypeStream, Offset: start, Entries: entries, Trailer: stream.Dictionary}, nil
}

// recover rebuilds the object table by scanning for object headers and
// picks the trailer from the last "trailer" dictionary or from the
// catalog object found in the file.
func (d *Document) recover() error {
	entries := scanObjectHeaders(d.data)
	if len(entries) == 0 {
		return malformed(-1, nil, "no objects found")
	}
	d.recovered = true
	d.xref = newXRefTable()
	for _, e := range entries {
		d.xref.add(e)
	}
	d.cache = make(map[int]generic.PdfObject)
	d.objStreams = make(map[int]*ObjectStream)
	d.trailer = nil
	d.warn("rebuilt cross-reference table from %d object headers", len(entries))

	// Objects compressed into object streams.
	for _, num := range d.xref.objectNumbers() {
		stream, ok := d.getObjectQuiet(num).(*generic.StreamObject)
		if !ok || stream.Dictionary.GetName("Type") != "ObjStm" {
			continue
		}
		os, err := d.objectStream(num)
		if err != nil {
			continue
		}
		for i, member := range os.ObjectNumbers {
			if d.xref.get(member) == nil {
				d.xref.add(&XRefEntry{Type: XRefTypeInObjStream, ObjectNumber: member, StreamObject: num, StreamIndex: i})
			}
		}
	}

	if idx := bytes.LastIndex(d.data, []byte("trailer")); idx >= 0 {
		p := generic.NewParser(d.data)
		p.SetPos(int64(idx + len("trailer")))
		if obj, err := p.ParseObject(); err == nil {
			if dict, ok := obj.(*generic.DictionaryObject); ok && dict.Has("Root") {
				d.trailer = dict
				return nil
			}
		}
	}

	for _, num := range d.xref.objectNumbers() {
		obj := d.getObjectQuiet(num)
		switch v := obj.(type) {
		case *generic.DictionaryObject:
			if v.GetName("Type") == "Catalog" {
				d.trailer = generic.NewDictionary()
				d.trailer.Set("Root", generic.NewReference(num, d.xref.get(num).Generation))
				return nil
			}
		case *generic.StreamObject:
			// xref streams double as trailers.
			if v.Dictionary.GetName("Type") == "XRef" && v.Dictionary.Has("Root") {
				d.trailer = v.Dictionary
			}
		}
	}
	if d.trailer != nil {
		return nil
	}
	return malformed(-1, nil, "no document catalog found")
}

func (d *Document) getObjectQuiet(num int) generic.PdfObject {
	e := d.xref.get(num)
	if e == nil {
		return nil
	}
	obj, err := d.GetObject(num, e.Generation)
	if err != nil {
		return nil
	}
	return obj
}

func (d *Document) loadCatalog() error {
	rootObj := d.trailer.Get("Root")
	if rootObj == nil {
		return malformed(-1, nil, "trailer has no /Root")
	}
	root, err := d.Resolve(rootObj)
	if err != nil {
		return err
	}
	catalog, ok := root.(*generic.DictionaryObject)
	if !ok {
		return malformed(-1, nil, "catalog is %T, not a dictionary", root)
	}
	d.catalog = catalog
	return nil
}

// Version returns the header version, e.g. "1.7".
func (d *Document) Version() string {
	return d.version
}

// Data returns the underlying file bytes.
func (d *Document) Data() []byte {
	return d.data
}

// Trailer returns the newest trailer dictionary.
func (d *Document) Trailer() *generic.DictionaryObject {
	return d.trailer
}

// Catalog returns the document catalog.
func (d *Document) Catalog() *generic.DictionaryObject {
	return d.catalog
}

// Sections returns the cross-reference sections, newest first.
func (d *Document) Sections() []*XRefSection {
	return d.sections
}

// Revisions returns the number of cross-reference sections followed.
func (d *Document) Revisions() int {
	return len(d.sections)
}

// Recovered reports whether the object table was rebuilt by scanning.
func (d *Document) Recovered() bool {
	return d.recovered
}

// XRefEntry returns the effective cross-reference entry for objNum.
func (d *Document) XRefEntry(objNum int) *XRefEntry {
	return d.xref.get(objNum)
}

// MaxObjectNumber returns the highest object number in use.
func (d *Document) MaxObjectNumber() int {
	nums := d.xref.objectNumbers()
	if len(nums) == 0 {
		return 0
	}
	return nums[len(nums)-1]
}

// Warnings returns non-fatal problems met while reading.
func (d *Document) Warnings() []string {
	return d.warnings
}

func (d *Document) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.logger.Debug(msg)
	d.warnings = append(d.warnings, msg)
}

// Resolve follows a reference. Non-reference objects are returned as is.
func (d *Document) Resolve(obj generic.PdfObject) (generic.PdfObject, error) {
	ref, ok := obj.(generic.Reference)
	if !ok {
		return obj, nil
	}
	return d.GetObject(ref.ObjectNumber, ref.GenerationNumber)
}

// GetObject returns the object with the given number and generation.
// Free and unknown objects resolve to null.
func (d *Document) GetObject(objNum, genNum int) (generic.PdfObject, error) {
	entry := d.xref.get(objNum)
	if entry == nil || entry.Type == XRefTypeFree {
		return generic.NullObject{}, nil
	}
	if entry.Type == XRefTypeStandard && entry.Generation != genNum {
		return nil, malformed(entry.Offset, nil, "reference %d %d R does not match generation %d", objNum, genNum, entry.Generation)
	}
	if obj, ok := d.cache[objNum]; ok {
		return obj, nil
	}
	if d.inProgress[objNum] {
		return nil, malformed(-1, nil, "reference cycle through object %d", objNum)
	}
	d.inProgress[objNum] = true
	defer delete(d.inProgress, objNum)

	var obj generic.PdfObject
	var err error
	switch entry.Type {
	case XRefTypeStandard:
		obj, err = d.objectAtOffset(objNum, entry.Offset)
	case XRefTypeInObjStream:
		obj, err = d.objectFromStream(objNum, entry)
	}
	if err != nil {
		return nil, err
	}
	d.cache[objNum] = obj
	return obj, nil
}

func (d *Document) objectAtOffset(objNum int, offset int64) (generic.PdfObject, error) {
	if offset < 0 || offset >= int64(len(d.data)) {
		return nil, malformed(offset, nil, "object %d offset out of bounds", objNum)
	}
	p := generic.NewParser(d.data)
	p.SetPos(offset)
	p.ResolveLength = d.resolveLength
	ind, err := p.ParseIndirectObject()
	if err != nil {
		return nil, malformed(offset, err, "cannot parse object %d", objNum)
	}
	if ind.ObjectNumber != objNum {
		return nil, malformed(offset, nil, "xref entry for object %d points at object %d", objNum, ind.ObjectNumber)
	}
	return ind.Object, nil
}

func (d *Document) objectFromStream(objNum int, entry *XRefEntry) (generic.PdfObject, error) {
	os, err := d.objectStream(entry.StreamObject)
	if err != nil {
		return nil, err
	}
	obj, err := os.Object(entry.StreamIndex, objNum)
	if err != nil {
		return nil, malformed(-1, err, "object stream %d", entry.StreamObject)
	}
	return obj, nil
}

func (d *Document) objectStream(num int) (*ObjectStream, error) {
	if os, ok := d.objStreams[num]; ok {
		return os, nil
	}
	obj, err := d.GetObject(num, 0)
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*generic.StreamObject)
	if !ok {
		return nil, malformed(-1, nil, "object stream %d is %T", num, obj)
	}
	decoded, err := d.DecodeStream(stream)
	if err != nil {
		return nil, malformed(-1, err, "cannot decode object stream %d", num)
	}
	os, err := ParseObjectStream(stream.Dictionary, decoded, d.maxObjStmObjects)
	if err != nil {
		return nil, malformed(-1, err, "object stream %d", num)
	}
	d.objStreams[num] = os
	return os, nil
}

func (d *Document) resolveLength(ref generic.Reference) (int64, bool) {
	obj, err := d.Resolve(ref)
	if err != nil {
		return 0, false
	}
	n, ok := obj.(generic.IntegerObject)
	return int64(n), ok
}

// DecodeStream decodes a stream through its filter chain. When a filter is
// unsupported the raw bytes are returned together with an error matching
// filters.ErrUnsupportedFilter; callers may keep using the bytes.
func (d *Document) DecodeStream(stream *generic.StreamObject) ([]byte, error) {
	names, params := d.filterChain(stream.Dictionary)
	if len(names) == 0 {
		return stream.Data, nil
	}
	out, err := d.decoder.Decode(stream.Data, names, params)
	if err != nil {
		if errors.Is(err, filters.ErrUnsupportedFilter) {
			d.warn("stream left undecoded: %v", err)
		} else if out != nil {
			d.warn("stream partially decoded: %v", err)
		}
		return out, err
	}
	return out, nil
}

func (d *Document) filterChain(dict *generic.DictionaryObject) ([]string, []filters.Params) {
	var names []string
	filterObj, _ := d.Resolve(dict.Get("Filter"))
	switch v := filterObj.(type) {
	case generic.NameObject:
		names = []string{string(v)}
	case generic.ArrayObject:
		for _, item := range v {
			if n := ResolveName(d, item); n != "" {
				names = append(names, n)
			}
		}
	}

	var params []filters.Params
	parmsObj, _ := d.Resolve(dict.Get("DecodeParms"))
	switch v := parmsObj.(type) {
	case *generic.DictionaryObject:
		params = []filters.Params{filters.ParamsFromDict(v)}
	case generic.ArrayObject:
		for _, item := range v {
			params = append(params, filters.ParamsFromDict(ResolveDict(d, item)))
		}
	}
	return names, params
}

// Page is a leaf of the page tree with its inherited attributes applied.
type Page struct {
	Index     int
	Ref       generic.Reference
	Dict      *generic.DictionaryObject
	Resources *generic.DictionaryObject
	MediaBox  *generic.Rectangle
	Rotate    int

	doc *Document
}

// ContentStreams returns the page's content streams in order. Entries that
// do not resolve to streams are skipped.
func (p *Page) ContentStreams() []*generic.StreamObject {
	contents, err := p.doc.Resolve(p.Dict.Get("Contents"))
	if err != nil {
		p.doc.warn("page %d contents: %v", p.Index, err)
		return nil
	}
	switch v := contents.(type) {
	case *generic.StreamObject:
		return []*generic.StreamObject{v}
	case generic.ArrayObject:
		var streams []*generic.StreamObject
		for _, item := range v {
			if s := ResolveStream(p.doc, item); s != nil {
				streams = append(streams, s)
			}
		}
		return streams
	}
	return nil
}

// inheritable holds the page attributes passed down the page tree.
type inheritable struct {
	resources *generic.DictionaryObject
	mediaBox  *generic.Rectangle
	rotate    int
}

// Pages returns the pages in document order (left-to-right depth-first
// traversal of the page tree).
func (d *Document) Pages() ([]*Page, error) {
	if d.pages != nil {
		return d.pages, nil
	}
	rootObj := d.catalog.Get("Pages")
	if rootObj == nil {
		return nil, malformed(-1, nil, "catalog has no /Pages")
	}
	pages := []*Page{}
	visited := make(map[generic.Reference]bool)
	if err := d.walkPageTree(rootObj, inheritable{}, visited, 0, &pages); err != nil {
		return nil, err
	}
	d.pages = pages
	return pages, nil
}

func (d *Document) walkPageTree(nodeObj generic.PdfObject, inh inheritable, visited map[generic.Reference]bool, depth int, pages *[]*Page) error {
	if depth > maxPageTreeDepth {
		return malformed(-1, nil, "page tree too deep")
	}
	ref, isRef := nodeObj.(generic.Reference)
	if isRef {
		if visited[ref] {
			d.warn("page tree cycle through %s", ref)
			return nil
		}
		visited[ref] = true
	}

	resolved, err := d.Resolve(nodeObj)
	if err != nil {
		return err
	}
	node, ok := resolved.(*generic.DictionaryObject)
	if !ok {
		d.warn("page tree node %v is %T", nodeObj, resolved)
		return nil
	}

	if res := ResolveDict(d, node.Get("Resources")); res != nil {
		inh.resources = res
	}
	if box := ResolveArray(d, node.Get("MediaBox")); box != nil {
		if rect, err := generic.NewRectangle(box); err == nil {
			inh.mediaBox = rect
		}
	}
	if rot, ok := ResolveInt(d, node.Get("Rotate")); ok {
		inh.rotate = int(rot)
	}

	kids := ResolveArray(d, node.Get("Kids"))
	if node.GetName("Type") == "Page" || (kids == nil && node.GetName("Type") != "Pages") {
		page := &Page{
			Index:     len(*pages),
			Dict:      node,
			Resources: inh.resources,
			MediaBox:  inh.mediaBox,
			Rotate:    inh.rotate,
			doc:       d,
		}
		if isRef {
			page.Ref = ref
		}
		if page.Resources == nil {
			page.Resources = generic.NewDictionary()
		}
		*pages = append(*pages, page)
		return nil
	}

	for _, kid := range kids {
		if err := d.walkPageTree(kid, inh, visited, depth+1, pages); err != nil {
			return err
		}
	}
	return nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() (int, error) {
	pages, err := d.Pages()
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

// Page returns the page at a zero-based index.
func (d *Document) Page(index int) (*Page, error) {
	pages, err := d.Pages()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(pages) {
		return nil, fmt.Errorf("%w: %d (document has %d pages)", ErrPageOutOfRange, index, len(pages))
	}
	return pages[index], nil
}

// Info returns the document information dictionary, or nil.
func (d *Document) Info() *generic.DictionaryObject {
	return ResolveDict(d, d.trailer.Get("Info"))
}

// InfoString returns a text entry of the information dictionary.
func (d *Document) InfoString(key string) string {
	if s := ResolveString(d, d.Info().Get(key)); s != nil {
		return s.Text()
	}
	return ""
}

// StartXRef returns the offset given after the last startxref keyword.
func (d *Document) StartXRef() (int64, bool) {
	idx := bytes.LastIndex(d.data, startxrefKeyword)
	if idx < 0 {
		return 0, false
	}
	rest := bytes.TrimLeft(d.data[idx+len(startxrefKeyword):], " \t\r\n\f\x00")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	v, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
