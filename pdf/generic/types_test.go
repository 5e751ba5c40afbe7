package generic

import (
	"bytes"
	"testing"
)

func writeString(t *testing.T, obj PdfObject) string {
	t.Helper()
	var buf bytes.Buffer
	if err := obj.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return buf.String()
}

func TestScalarWrite(t *testing.T) {
	tests := []struct {
		name     string
		obj      PdfObject
		expected string
	}{
		{"null", NullObject{}, "null"},
		{"true", BooleanObject(true), "true"},
		{"false", BooleanObject(false), "false"},
		{"zero", IntegerObject(0), "0"},
		{"negative", IntegerObject(-123), "-123"},
		{"real", RealObject(3.5), "3.5"},
		{"name", NameObject("Type"), "/Type"},
		{"name with space", NameObject("A B"), "/A#20B"},
		{"reference", NewReference(12, 0), "12 0 R"},
		{"literal", NewLiteralString("a(b)c\\"), `(a\(b\)c\\)`},
		{"hex", NewHexString([]byte{0xde, 0xad}), "<dead>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := writeString(t, tt.obj); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestDictionaryOrder(t *testing.T) {
	d := NewDictionary()
	d.Set("Type", NameObject("Page"))
	d.Set("Count", IntegerObject(3))
	d.Set("Type", NameObject("Pages"))

	if d.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", d.Len())
	}
	if got := writeString(t, d); got != "<< /Type /Pages /Count 3 >>" {
		t.Errorf("Unexpected serialization %q", got)
	}

	d.Delete("Type")
	if d.Has("Type") {
		t.Error("Type should be deleted")
	}
	if keys := d.Keys(); len(keys) != 1 || keys[0] != "Count" {
		t.Errorf("Unexpected keys %v", keys)
	}
}

func TestDictionaryGetters(t *testing.T) {
	inner := NewDictionary()
	inner.Set("K", IntegerObject(1))
	stream := NewStream(nil, []byte("abc"))

	d := NewDictionary()
	d.Set("N", NameObject("X"))
	d.Set("I", IntegerObject(7))
	d.Set("A", NewArray(IntegerObject(1), IntegerObject(2)))
	d.Set("D", inner)
	d.Set("S", stream)
	d.Set("T", NewLiteralString("hi"))

	if d.GetName("N") != "X" {
		t.Error("GetName failed")
	}
	if v, ok := d.GetInt("I"); !ok || v != 7 {
		t.Error("GetInt failed")
	}
	if len(d.GetArray("A")) != 2 {
		t.Error("GetArray failed")
	}
	if d.GetDict("D") != inner {
		t.Error("GetDict failed")
	}
	if d.GetDict("S") != stream.Dictionary {
		t.Error("GetDict should return stream dictionaries")
	}
	if s := d.GetString("T"); s == nil || s.Text() != "hi" {
		t.Error("GetString failed")
	}
	if d.GetName("I") != "" {
		t.Error("GetName on integer should be empty")
	}

	var nilDict *DictionaryObject
	if nilDict.Get("X") != nil || nilDict.Has("X") || nilDict.Len() != 0 {
		t.Error("nil dictionary should behave as empty")
	}
}

func TestStreamWriteSetsLength(t *testing.T) {
	s := NewStream(nil, []byte("BT ET"))
	got := writeString(t, s)
	if got != "<< /Length 5 >>\nstream\nBT ET\nendstream" {
		t.Errorf("Unexpected stream serialization %q", got)
	}
}

func TestIndirectObjectWrite(t *testing.T) {
	obj := NewIndirectObject(4, 0, IntegerObject(9))
	var buf bytes.Buffer
	if err := obj.Write(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "4 0 obj\n9\nendobj\n" {
		t.Errorf("Unexpected output %q", buf.String())
	}
	if obj.Reference() != NewReference(4, 0) {
		t.Error("Reference mismatch")
	}
}

func TestNumber(t *testing.T) {
	if v, ok := Number(IntegerObject(3)); !ok || v != 3 {
		t.Error("integer")
	}
	if v, ok := Number(RealObject(-0.5)); !ok || v != -0.5 {
		t.Error("real")
	}
	if _, ok := Number(NameObject("x")); ok {
		t.Error("name is not a number")
	}
}

func TestRectangle(t *testing.T) {
	r, err := NewRectangle(NewArray(IntegerObject(0), IntegerObject(0), RealObject(612), IntegerObject(792)))
	if err != nil {
		t.Fatal(err)
	}
	if r.Width() != 612 || r.Height() != 792 {
		t.Errorf("Unexpected size %vx%v", r.Width(), r.Height())
	}
	if _, err := NewRectangle(NewArray(IntegerObject(0))); err == nil {
		t.Error("Expected error for short array")
	}
}

func TestTextStrings(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		expected string
	}{
		{"ascii", []byte("Hello"), "Hello"},
		{"pdfdoc bullet", []byte{0x80, 'x'}, "•x"},
		{"pdfdoc euro", []byte{0xA0}, "€"},
		{"latin1 range", []byte{0xE9}, "é"},
		{"utf16", []byte{0xFE, 0xFF, 0x00, 'H', 0x04, 0x14}, "HД"},
		{"utf16 surrogate", []byte{0xFE, 0xFF, 0xD8, 0x3D, 0xDE, 0x00}, "😀"},
		{"utf8 bom", append([]byte{0xEF, 0xBB, 0xBF}, "ü"...), "ü"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeTextString(tt.raw); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestNewTextStringRoundTrip(t *testing.T) {
	for _, s := range []string{"Plain", "Café", "Ω and ∑", "fi ligature ﬁ"} {
		if got := NewTextString(s).Text(); got != s {
			t.Errorf("Round trip of %q gave %q", s, got)
		}
	}
	if v := NewTextString("Ω").Value; !bytes.HasPrefix(v, []byte{0xFE, 0xFF}) {
		t.Error("Non-PDFDoc text should be UTF-16BE")
	}
}
