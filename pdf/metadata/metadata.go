// Package metadata reads and writes the document information dictionary
// and converts PDF date strings.
package metadata

import (
	"fmt"
	"strings"
	"time"

	"github.com/georgepadayatti/zkpdf/pdf/generic"
	"github.com/georgepadayatti/zkpdf/pdf/reader"
)

// Vendor identifies this library in /Producer entries.
const Vendor = "zkpdf 0.1.0"

// DocumentMetadata represents simple document metadata.
type DocumentMetadata struct {
	Title    string   `json:"title,omitempty"`
	Author   string   `json:"author,omitempty"`
	Subject  string   `json:"subject,omitempty"`
	Keywords []string `json:"keywords,omitempty"`

	// Creator is the software that authored the document.
	Creator string `json:"creator,omitempty"`

	// Producer is the software that produced the PDF.
	Producer string `json:"producer,omitempty"`

	Created      *time.Time `json:"created,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// NewDocumentMetadata creates metadata stamped with this producer and the
// given modification time.
func NewDocumentMetadata(now time.Time) *DocumentMetadata {
	return &DocumentMetadata{
		Producer:     Vendor,
		LastModified: &now,
	}
}

// FromDocument reads the information dictionary of doc. Entries that are
// missing or of the wrong type are left empty.
func FromDocument(doc *reader.Document) *DocumentMetadata {
	return FromInfo(doc, doc.Info())
}

// FromInfo reads an information dictionary, resolving values through r.
func FromInfo(r reader.ObjectResolver, info *generic.DictionaryObject) *DocumentMetadata {
	meta := &DocumentMetadata{}
	if info == nil {
		return meta
	}
	text := func(key string) string {
		if s := reader.ResolveString(r, info.Get(key)); s != nil {
			return s.Text()
		}
		return ""
	}
	meta.Title = text("Title")
	meta.Author = text("Author")
	meta.Subject = text("Subject")
	meta.Creator = text("Creator")
	meta.Producer = text("Producer")
	if kw := text("Keywords"); kw != "" {
		for _, k := range strings.FieldsFunc(kw, func(r rune) bool { return r == ',' || r == ';' }) {
			if k = strings.TrimSpace(k); k != "" {
				meta.Keywords = append(meta.Keywords, k)
			}
		}
	}
	if t, err := ParsePDFDate(text("CreationDate")); err == nil {
		meta.Created = t
	}
	if t, err := ParsePDFDate(text("ModDate")); err == nil {
		meta.LastModified = t
	}
	return meta
}

// ViewOver creates a view of this metadata over base metadata. Empty
// fields of m are taken from base; LastModified always comes from m.
func (m *DocumentMetadata) ViewOver(base *DocumentMetadata) *DocumentMetadata {
	if base == nil {
		base = &DocumentMetadata{}
	}
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	result := &DocumentMetadata{
		Title:        pick(m.Title, base.Title),
		Author:       pick(m.Author, base.Author),
		Subject:      pick(m.Subject, base.Subject),
		Creator:      pick(m.Creator, base.Creator),
		Producer:     pick(m.Producer, base.Producer),
		Created:      base.Created,
		LastModified: m.LastModified,
	}
	if m.Created != nil {
		result.Created = m.Created
	}
	if len(m.Keywords) > 0 {
		result.Keywords = append([]string{}, m.Keywords...)
	} else {
		result.Keywords = append([]string{}, base.Keywords...)
	}
	return result
}

// InfoDict converts metadata to an information dictionary.
func (m *DocumentMetadata) InfoDict() *generic.DictionaryObject {
	info := generic.NewDictionary()
	set := func(key, value string) {
		if value != "" {
			info.Set(key, generic.NewTextString(value))
		}
	}
	set("Title", m.Title)
	set("Author", m.Author)
	set("Subject", m.Subject)
	set("Keywords", strings.Join(m.Keywords, ", "))
	set("Creator", m.Creator)
	set("Producer", m.Producer)
	if m.Created != nil {
		set("CreationDate", FormatPDFDate(*m.Created))
	}
	if m.LastModified != nil {
		set("ModDate", FormatPDFDate(*m.LastModified))
	}
	return info
}

// FormatPDFDate formats a time as a PDF date string (D:YYYYMMDDHHmmSSOHH'mm').
func FormatPDFDate(t time.Time) string {
	_, offset := t.Zone()
	if offset == 0 {
		return fmt.Sprintf("D:%04d%02d%02d%02d%02d%02dZ",
			t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("D:%04d%02d%02d%02d%02d%02d%s%02d'%02d'",
		t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
		sign, offset/3600, offset%3600/60)
}

// Accepted layouts once the apostrophes of the offset are removed. The
// "D:" prefix is optional since many producers omit it.
var dateLayouts = []string{
	"20060102150405-0700",
	"20060102150405-07",
	"20060102150405Z",
	"20060102150405",
	"200601021504",
	"2006010215",
	"20060102",
	"200601",
	"2006",
}

// ParsePDFDate parses a PDF date string. Dates without an offset are
// taken as UTC.
func ParsePDFDate(s string) (*time.Time, error) {
	raw := s
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "D:"))
	s = strings.ReplaceAll(s, "'", "")
	// "Z00'00'" and similar carry a redundant offset after Z.
	if i := strings.IndexByte(s, 'Z'); i >= 0 {
		s = s[:i+1]
	}
	if s == "" {
		return nil, fmt.Errorf("unable to parse PDF date: %q", raw)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unable to parse PDF date: %q", raw)
}
