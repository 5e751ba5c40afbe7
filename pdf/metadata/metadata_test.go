package metadata

import (
	"strings"
	"testing"
	"time"

	"github.com/georgepadayatti/zkpdf/internal/pdftest"
	"github.com/georgepadayatti/zkpdf/pdf/generic"
	"github.com/georgepadayatti/zkpdf/pdf/reader"
)

func TestNewDocumentMetadata(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)
	meta := NewDocumentMetadata(now)

	if meta.Producer != Vendor {
		t.Errorf("Expected producer '%s', got '%s'", Vendor, meta.Producer)
	}
	if meta.LastModified == nil || !meta.LastModified.Equal(now) {
		t.Error("Expected LastModified to be set")
	}
}

func TestDocumentMetadataViewOver(t *testing.T) {
	created := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	base := &DocumentMetadata{
		Title:    "Base Title",
		Author:   "Base Author",
		Creator:  "Base Creator",
		Keywords: []string{"a"},
		Created:  &created,
	}

	overlay := &DocumentMetadata{
		Title: "Overlay Title",
	}

	view := overlay.ViewOver(base)

	if view.Title != "Overlay Title" {
		t.Errorf("Expected overlay title, got '%s'", view.Title)
	}
	if view.Author != "Base Author" {
		t.Errorf("Expected base author, got '%s'", view.Author)
	}
	if view.Creator != "Base Creator" {
		t.Errorf("Expected base creator, got '%s'", view.Creator)
	}
	if len(view.Keywords) != 1 || view.Created != &created {
		t.Errorf("base keywords or creation date lost: %+v", view)
	}
	if view.LastModified != nil {
		t.Error("LastModified must come from the overlay")
	}
}

func TestInfoDictRoundTrip(t *testing.T) {
	mod := time.Date(2024, 1, 15, 10, 30, 45, 0, time.FixedZone("", -5*3600))
	meta := &DocumentMetadata{
		Title:        "Rapport été",
		Keywords:     []string{"one", "two"},
		Producer:     Vendor,
		LastModified: &mod,
	}

	b := pdftest.NewBuilder()
	b.Info = meta.InfoDict()
	doc, err := reader.Open(b.Build(b.Document(pdftest.PageSpec{Content: pdftest.TextContent("x")})))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	got := FromDocument(doc)
	if got.Title != meta.Title {
		t.Errorf("Title = %q", got.Title)
	}
	if strings.Join(got.Keywords, "|") != "one|two" {
		t.Errorf("Keywords = %v", got.Keywords)
	}
	if got.Author != "" || got.Created != nil {
		t.Errorf("absent entries should stay empty: %+v", got)
	}
	if got.LastModified == nil || !got.LastModified.Equal(mod) {
		t.Errorf("LastModified = %v, want %v", got.LastModified, mod)
	}
}

func TestFromInfoIgnoresWrongTypes(t *testing.T) {
	info := generic.NewDictionary()
	info.Set("Title", generic.IntegerObject(3))
	info.Set("ModDate", generic.NewLiteralString("yesterday"))

	b := pdftest.NewBuilder()
	doc, err := reader.Open(b.Build(b.Document(pdftest.PageSpec{Content: nil})))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	meta := FromInfo(doc, info)
	if meta.Title != "" || meta.LastModified != nil {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if FromInfo(doc, nil) == nil {
		t.Error("nil info should give empty metadata")
	}
}

func TestFormatPDFDate(t *testing.T) {
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Date(2024, 1, 15, 10, 30, 45, 0, time.FixedZone("Test", 3600)), "D:20240115103045+01'00'"},
		{time.Date(2024, 1, 15, 10, 30, 45, 0, time.FixedZone("Test", -(5*3600 + 1800))), "D:20240115103045-05'30'"},
		{time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC), "D:20240115103045Z"},
	}

	for _, tt := range tests {
		if got := FormatPDFDate(tt.t); got != tt.want {
			t.Errorf("FormatPDFDate(%v) = %s, want %s", tt.t, got, tt.want)
		}
	}
}

func TestParsePDFDate(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{input: "D:20240115103045+01'00'", want: time.Date(2024, 1, 15, 9, 30, 45, 0, time.UTC)},
		{input: "D:20240115103045-05'30", want: time.Date(2024, 1, 15, 16, 0, 45, 0, time.UTC)},
		{input: "D:20240115103045Z00'00'", want: time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)},
		{input: "D:20240115103045+01", want: time.Date(2024, 1, 15, 9, 30, 45, 0, time.UTC)},
		{input: "D:20240115103045", want: time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)},
		{input: "D:20240115", want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{input: "20240115", want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{input: "D:2024", want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{input: "invalid", wantErr: true},
		{input: "", wantErr: true},
		{input: "D:", wantErr: true},
	}

	for _, tt := range tests {
		result, err := ParsePDFDate(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePDFDate(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePDFDate(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if !result.Equal(tt.want) {
			t.Errorf("ParsePDFDate(%q) = %v, want %v", tt.input, result, tt.want)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	in := time.Date(2023, 12, 31, 23, 59, 59, 0, time.FixedZone("", 9*3600))
	out, err := ParsePDFDate(FormatPDFDate(in))
	if err != nil {
		t.Fatalf("ParsePDFDate failed: %v", err)
	}
	if !out.Equal(in) {
		t.Errorf("round trip = %v, want %v", out, in)
	}
}
