// Package fields finds signature fields and the signatures they hold.
package fields

import (
	"errors"

	"github.com/georgepadayatti/zkpdf/pdf/generic"
	"github.com/georgepadayatti/zkpdf/pdf/reader"
)

// ErrNoAcroForm is returned by EnumerateSignatureFields for documents
// without a form or signature widgets.
var ErrNoAcroForm = errors.New("document has no interactive form")

// maxFieldDepth bounds /Kids recursion.
const maxFieldDepth = 32

// SubFilter names the encoding of a signature's /Contents.
type SubFilter string

const (
	SubFilterAdobePKCS7Detached SubFilter = "adbe.pkcs7.detached"
	SubFilterAdobePKCS7SHA1     SubFilter = "adbe.pkcs7.sha1"
	SubFilterETSICAdESDetached  SubFilter = "ETSI.CAdES.detached"
)

// SignatureFormField is a terminal signature field or widget.
type SignatureFormField struct {
	FullName  string
	FieldRef  *generic.Reference
	FieldDict *generic.DictionaryObject

	// Value is the signature dictionary, nil for empty fields.
	Value    *generic.DictionaryObject
	ValueRef *generic.Reference

	Rect *generic.Rectangle

	// Page is the index of the page holding the widget, or -1.
	Page int
}

// IsSigned returns true if the signature field has been signed.
func (f *SignatureFormField) IsSigned() bool {
	return f.Value != nil
}

// enumerator walks form fields and page annotations.
type enumerator struct {
	r       reader.ObjectResolver
	pages   map[generic.Reference]int
	visited map[generic.Reference]bool
	out     []*SignatureFormField
}

// EnumerateSignatureFields lists the signature fields of doc: terminal
// fields of the /AcroForm tree first, then signature widgets reachable
// only from page /Annots. Fields are returned in document order.
func EnumerateSignatureFields(doc *reader.Document) ([]*SignatureFormField, error) {
	e := &enumerator{
		r:       doc,
		pages:   make(map[generic.Reference]int),
		visited: make(map[generic.Reference]bool),
	}
	pages, err := doc.Pages()
	if err != nil {
		return nil, err
	}
	for _, p := range pages {
		e.pages[p.Ref] = p.Index
	}

	form := reader.ResolveDict(doc, doc.Catalog().Get("AcroForm"))
	if form != nil {
		for _, item := range reader.ResolveArray(doc, form.Get("Fields")) {
			e.walk(item, "", "", 0)
		}
	}

	for _, p := range pages {
		for _, item := range reader.ResolveArray(doc, p.Dict.Get("Annots")) {
			ref, isRef := item.(generic.Reference)
			if isRef && e.visited[ref] {
				continue
			}
			annot := reader.ResolveDict(doc, item)
			if annot == nil || reader.ResolveName(doc, annot.Get("Subtype")) != "Widget" {
				continue
			}
			if e.fieldType(annot) != "Sig" {
				continue
			}
			if isRef {
				e.visited[ref] = true
			}
			field := e.terminal(item, annot, e.fullName(annot))
			field.Page = p.Index
			e.out = append(e.out, field)
		}
	}

	if form == nil && len(e.out) == 0 {
		return nil, ErrNoAcroForm
	}
	return e.out, nil
}

func (e *enumerator) walk(obj generic.PdfObject, parentName, inheritedFT string, depth int) {
	if depth > maxFieldDepth {
		return
	}
	if ref, ok := obj.(generic.Reference); ok {
		if e.visited[ref] {
			return
		}
		e.visited[ref] = true
	}
	dict := reader.ResolveDict(e.r, obj)
	if dict == nil {
		return
	}

	name := parentName
	if t := reader.ResolveString(e.r, dict.Get("T")); t != nil {
		if name != "" {
			name += "."
		}
		name += t.Text()
	}
	ft := inheritedFT
	if v := reader.ResolveName(e.r, dict.Get("FT")); v != "" {
		ft = v
	}

	// Kids without /T are widgets of this field.
	kids := reader.ResolveArray(e.r, dict.Get("Kids"))
	hasFieldKids := false
	for _, kid := range kids {
		if kd := reader.ResolveDict(e.r, kid); kd != nil && kd.Has("T") {
			hasFieldKids = true
			break
		}
	}
	if hasFieldKids {
		for _, kid := range kids {
			e.walk(kid, name, ft, depth+1)
		}
		return
	}

	if ft != "Sig" {
		return
	}
	field := e.terminal(obj, dict, name)
	if field.Page < 0 {
		for _, kid := range kids {
			if ref, ok := kid.(generic.Reference); ok {
				e.visited[ref] = true
			}
			if kd := reader.ResolveDict(e.r, kid); kd != nil && field.Page < 0 {
				field.Page = e.pageOf(kd)
				if field.Rect == nil {
					field.Rect = rect(e.r, kd.Get("Rect"))
				}
			}
		}
	}
	e.out = append(e.out, field)
}

func (e *enumerator) terminal(obj generic.PdfObject, dict *generic.DictionaryObject, name string) *SignatureFormField {
	field := &SignatureFormField{
		FullName:  name,
		FieldDict: dict,
		Rect:      rect(e.r, dict.Get("Rect")),
		Page:      e.pageOf(dict),
	}
	if ref, ok := obj.(generic.Reference); ok {
		field.FieldRef = &ref
	}
	if v := dict.Get("V"); v != nil {
		field.Value = reader.ResolveDict(e.r, v)
		if ref, ok := v.(generic.Reference); ok {
			field.ValueRef = &ref
		}
	}
	return field
}

// fieldType returns /FT of a widget or of its parent field.
func (e *enumerator) fieldType(dict *generic.DictionaryObject) string {
	for depth := 0; dict != nil && depth < maxFieldDepth; depth++ {
		if ft := reader.ResolveName(e.r, dict.Get("FT")); ft != "" {
			return ft
		}
		dict = reader.ResolveDict(e.r, dict.Get("Parent"))
	}
	return ""
}

func (e *enumerator) fullName(dict *generic.DictionaryObject) string {
	name := ""
	for depth := 0; dict != nil && depth < maxFieldDepth; depth++ {
		if t := reader.ResolveString(e.r, dict.Get("T")); t != nil {
			if name == "" {
				name = t.Text()
			} else {
				name = t.Text() + "." + name
			}
		}
		dict = reader.ResolveDict(e.r, dict.Get("Parent"))
	}
	return name
}

func (e *enumerator) pageOf(dict *generic.DictionaryObject) int {
	if ref, ok := dict.Get("P").(generic.Reference); ok {
		if index, ok := e.pages[ref]; ok {
			return index
		}
	}
	return -1
}

func rect(r reader.ObjectResolver, obj generic.PdfObject) *generic.Rectangle {
	arr := reader.ResolveArray(r, obj)
	if arr == nil {
		return nil
	}
	out, err := generic.NewRectangle(arr)
	if err != nil {
		return nil
	}
	return out
}
