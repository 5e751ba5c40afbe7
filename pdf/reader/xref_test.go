package reader

import (
	"bytes"
	"testing"

	"github.com/georgepadayatti/zkpdf/pdf/generic"
)

func TestXRefType_String(t *testing.T) {
	testCases := []struct {
		xrefType XRefType
		expected string
	}{
		{XRefTypeFree, "free"},
		{XRefTypeStandard, "standard"},
		{XRefTypeInObjStream, "in_obj_stream"},
		{XRefType(99), "unknown"},
	}

	for _, tc := range testCases {
		if got := tc.xrefType.String(); got != tc.expected {
			t.Errorf("XRefType(%d).String() = %q, want %q", tc.xrefType, got, tc.expected)
		}
	}
}

func TestParseXRefTable(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{
			name: "20-byte lines",
			data: "xref\n0 3\n0000000000 65535 f\r\n0000000017 00000 n\r\n0000000081 00000 n\r\ntrailer\n<< /Size 3 /Root 1 0 R >>\n",
		},
		{
			name: "19-byte lines",
			data: "xref\n0 3\n0000000000 65535 f\n0000000017 00000 n\n0000000081 00000 n\ntrailer\n<< /Size 3 /Root 1 0 R >>\n",
		},
		{
			name: "two subsections",
			data: "xref\n0 1\n0000000000 65535 f \n1 2\n0000000017 00000 n \n0000000081 00000 n \ntrailer << /Size 3 /Root 1 0 R >>",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			section, err := parseXRefTable([]byte(tc.data), 0)
			if err != nil {
				t.Fatalf("parseXRefTable failed: %v", err)
			}
			if len(section.Entries) != 3 {
				t.Fatalf("Expected 3 entries, got %d", len(section.Entries))
			}
			if section.Entries[0].Type != XRefTypeFree || section.Entries[0].Generation != 65535 {
				t.Errorf("Entry 0 = %+v, want free gen 65535", section.Entries[0])
			}
			if e := section.Entries[2]; e.Type != XRefTypeStandard || e.ObjectNumber != 2 || e.Offset != 81 {
				t.Errorf("Entry 2 = %+v", e)
			}
			if size, _ := section.Trailer.GetInt("Size"); size != 3 {
				t.Errorf("Trailer /Size = %d, want 3", size)
			}
		})
	}
}

func TestParseXRefTableErrors(t *testing.T) {
	testCases := []string{
		"xraf\n0 1\n",
		"xref\n0 1\n0000000000 65535 x\r\ntrailer << >>",
		"xref\n0 1\n",
		"xref\n0 1\n0000000000 65535 f\r\ntrailer [1 2]",
	}
	for _, data := range testCases {
		if _, err := parseXRefTable([]byte(data), 0); err == nil {
			t.Errorf("Expected error for %q", data)
		}
	}
}

func TestFixOffByOneTable(t *testing.T) {
	// The subsection claims to start at 1 but describes objects 0..2.
	body := "%PDF-1.4\n1 0 obj null endobj\n2 0 obj null endobj\n"
	xrefOffset := len(body)
	data := body + "xref\n1 3\n0000000000 65535 f \n0000000009 00000 n \n0000000029 00000 n \ntrailer << /Size 3 >>"

	section, err := parseXRefTable([]byte(data), int64(xrefOffset))
	if err != nil {
		t.Fatalf("parseXRefTable failed: %v", err)
	}
	for i, want := range []int{0, 1, 2} {
		if section.Entries[i].ObjectNumber != want {
			t.Errorf("Entry %d has object number %d, want %d", i, section.Entries[i].ObjectNumber, want)
		}
	}
}

func TestXRefTableShadowing(t *testing.T) {
	table := newXRefTable()
	table.add(&XRefEntry{Type: XRefTypeStandard, ObjectNumber: 4, Offset: 500, revision: 0})
	table.add(&XRefEntry{Type: XRefTypeStandard, ObjectNumber: 4, Offset: 100, revision: 1})
	if got := table.get(4).Offset; got != 500 {
		t.Errorf("Newest entry should win, got offset %d", got)
	}

	// A free entry hides older revisions.
	table.add(&XRefEntry{Type: XRefTypeFree, ObjectNumber: 5, revision: 0})
	table.add(&XRefEntry{Type: XRefTypeStandard, ObjectNumber: 5, Offset: 100, revision: 1})
	if table.get(5).Type != XRefTypeFree {
		t.Error("Free entry from a newer revision should shadow an older one")
	}

	// Hybrid file: the XRefStm of the same revision fills in the free slot.
	table.add(&XRefEntry{Type: XRefTypeFree, ObjectNumber: 6, revision: 0})
	table.add(&XRefEntry{Type: XRefTypeInObjStream, ObjectNumber: 6, StreamObject: 9, revision: 0})
	if table.get(6).Type != XRefTypeInObjStream {
		t.Error("Same-revision compressed entry should replace the free entry")
	}

	nums := table.objectNumbers()
	if len(nums) != 2 || nums[0] != 4 || nums[1] != 6 {
		t.Errorf("objectNumbers() = %v, want [4 6]", nums)
	}
}

func TestParseXRefStreamData(t *testing.T) {
	dict := generic.NewDictionary()
	dict.Set("W", generic.NewArray(generic.IntegerObject(1), generic.IntegerObject(2), generic.IntegerObject(1)))
	dict.Set("Index", generic.NewArray(generic.IntegerObject(5), generic.IntegerObject(3)))
	data := []byte{
		1, 0x01, 0x00, 0,
		2, 0x00, 0x07, 3,
		0, 0x00, 0x00, 1,
	}

	entries, err := parseXRefStreamData(dict, data)
	if err != nil {
		t.Fatalf("parseXRefStreamData failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if e := entries[0]; e.Type != XRefTypeStandard || e.ObjectNumber != 5 || e.Offset != 256 {
		t.Errorf("Entry 0 = %+v", e)
	}
	if e := entries[1]; e.Type != XRefTypeInObjStream || e.ObjectNumber != 6 || e.StreamObject != 7 || e.StreamIndex != 3 {
		t.Errorf("Entry 1 = %+v", e)
	}
	if e := entries[2]; e.Type != XRefTypeFree || e.ObjectNumber != 7 || e.Generation != 1 {
		t.Errorf("Entry 2 = %+v", e)
	}
}

func TestParseXRefStreamDataDefaults(t *testing.T) {
	// /W [0 1 0]: type defaults to 1, no /Index means 0../Size.
	dict := generic.NewDictionary()
	dict.Set("W", generic.NewArray(generic.IntegerObject(0), generic.IntegerObject(1), generic.IntegerObject(0)))
	dict.Set("Size", generic.IntegerObject(2))

	entries, err := parseXRefStreamData(dict, []byte{10, 20})
	if err != nil {
		t.Fatalf("parseXRefStreamData failed: %v", err)
	}
	if len(entries) != 2 || entries[1].Type != XRefTypeStandard || entries[1].Offset != 20 {
		t.Errorf("Unexpected entries %+v", entries)
	}
}

func TestParseXRefStreamDataErrors(t *testing.T) {
	noW := generic.NewDictionary()
	noW.Set("Size", generic.IntegerObject(1))

	badIndex := generic.NewDictionary()
	badIndex.Set("W", generic.NewArray(generic.IntegerObject(1), generic.IntegerObject(1), generic.IntegerObject(1)))
	badIndex.Set("Index", generic.NewArray(generic.IntegerObject(0)))

	zeroW := generic.NewDictionary()
	zeroW.Set("W", generic.NewArray(generic.IntegerObject(0), generic.IntegerObject(0), generic.IntegerObject(0)))
	zeroW.Set("Size", generic.IntegerObject(1))

	for _, dict := range []*generic.DictionaryObject{noW, badIndex, zeroW} {
		if _, err := parseXRefStreamData(dict, []byte{1, 2, 3}); err == nil {
			t.Errorf("Expected error for %v", dict.Keys())
		}
	}
}

func objStmDict(n, first int) *generic.DictionaryObject {
	dict := generic.NewDictionary()
	dict.Set("Type", generic.NameObject("ObjStm"))
	dict.Set("N", generic.IntegerObject(n))
	dict.Set("First", generic.IntegerObject(first))
	return dict
}

func TestObjectStream(t *testing.T) {
	decoded := []byte("10 0 11 6 (abc) << /A 1 >>")
	os, err := ParseObjectStream(objStmDict(2, 10), decoded, 0)
	if err != nil {
		t.Fatalf("ParseObjectStream failed: %v", err)
	}

	obj, err := os.Object(0, 10)
	if err != nil {
		t.Fatalf("Object(0, 10) failed: %v", err)
	}
	if s, ok := obj.(*generic.StringObject); !ok || string(s.Value) != "abc" {
		t.Errorf("Object 10 = %v", obj)
	}

	// Wrong index falls back to a header search.
	obj, err = os.Object(0, 11)
	if err != nil {
		t.Fatalf("Object(0, 11) failed: %v", err)
	}
	if d, ok := obj.(*generic.DictionaryObject); !ok || !d.Has("A") {
		t.Errorf("Object 11 = %v", obj)
	}

	if _, err := os.Object(0, 99); err == nil {
		t.Error("Expected error for object not in stream")
	}
}

func TestObjectStreamLimits(t *testing.T) {
	decoded := []byte("10 0 11 6 (abc) << /A 1 >>")
	if _, err := ParseObjectStream(objStmDict(2, 10), decoded, 1); err == nil {
		t.Error("Expected error when /N exceeds the limit")
	}
	if _, err := ParseObjectStream(objStmDict(2, 500), decoded, 0); err == nil {
		t.Error("Expected error for /First beyond the data")
	}
	if _, err := ParseObjectStream(objStmDict(5, 10), decoded, 0); err == nil {
		t.Error("Expected error for truncated header")
	}
}

func TestWriteXRefTableRoundTrip(t *testing.T) {
	entries := []*XRefEntry{
		{Type: XRefTypeStandard, ObjectNumber: 3, Offset: 99},
		{Type: XRefTypeFree, ObjectNumber: 0, Generation: 65535},
		{Type: XRefTypeStandard, ObjectNumber: 1, Offset: 15},
	}
	var buf bytes.Buffer
	if err := WriteXRefTable(&buf, entries); err != nil {
		t.Fatalf("WriteXRefTable failed: %v", err)
	}
	expected := "xref\n0 2\n0000000000 65535 f\r\n0000000015 00000 n\r\n3 1\n0000000099 00000 n\r\n"
	if buf.String() != expected {
		t.Errorf("WriteXRefTable wrote %q, want %q", buf.String(), expected)
	}

	buf.WriteString("trailer\n<< /Size 4 >>\n")
	section, err := parseXRefTable(buf.Bytes(), 0)
	if err != nil {
		t.Fatalf("parseXRefTable failed: %v", err)
	}
	if len(section.Entries) != 3 || section.Entries[2].ObjectNumber != 3 || section.Entries[2].Offset != 99 {
		t.Errorf("Round trip gave %+v", section.Entries)
	}
}

func TestWriteXRefStreamRoundTrip(t *testing.T) {
	entries := []*XRefEntry{
		{Type: XRefTypeStandard, ObjectNumber: 7, Offset: 70000},
		{Type: XRefTypeInObjStream, ObjectNumber: 8, StreamObject: 7, StreamIndex: 2},
		{Type: XRefTypeStandard, ObjectNumber: 12, Offset: 15, Generation: 1},
	}
	stream := WriteXRefStream(entries, 1234)
	if stream.Dictionary.GetName("Type") != "XRef" {
		t.Error("Expected /Type /XRef")
	}
	if prev, _ := stream.Dictionary.GetInt("Prev"); prev != 1234 {
		t.Errorf("/Prev = %d, want 1234", prev)
	}

	parsed, err := parseXRefStreamData(stream.Dictionary, stream.Data)
	if err != nil {
		t.Fatalf("parseXRefStreamData failed: %v", err)
	}
	if len(parsed) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(parsed))
	}
	for i, want := range entries {
		got := parsed[i]
		if got.Type != want.Type || got.ObjectNumber != want.ObjectNumber || got.Offset != want.Offset ||
			got.Generation != want.Generation || got.StreamObject != want.StreamObject || got.StreamIndex != want.StreamIndex {
			t.Errorf("Entry %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestReadObjectHeader(t *testing.T) {
	data := []byte("junk 12 3 obj << >> endobj")
	num, gen, next, err := ReadObjectHeader(data, 5)
	if err != nil {
		t.Fatalf("ReadObjectHeader failed: %v", err)
	}
	if num != 12 || gen != 3 || next != 13 {
		t.Errorf("Got %d %d next=%d", num, gen, next)
	}

	for _, pos := range []int64{0, -1, 100} {
		if _, _, _, err := ReadObjectHeader(data, pos); err == nil {
			t.Errorf("Expected error at %d", pos)
		}
	}
}

func TestScanObjectHeaders(t *testing.T) {
	data := []byte("%PDF-1.4\n1 0 obj null endobj\n2 0 obj (x) endobj\n11 0 obj 5 endobj\n1 0 obj true endobj\n")
	entries := scanObjectHeaders(data)
	if len(entries) != 3 {
		t.Fatalf("Expected 3 objects, got %d", len(entries))
	}
	if entries[1].Offset != int64(bytes.LastIndex(data, []byte("1 0 obj"))) {
		t.Error("Later definition should win")
	}
	// "1 0 obj" inside "11 0 obj" must not be matched on its own.
	if entries[11].Offset != int64(bytes.Index(data, []byte("11 0 obj"))) {
		t.Errorf("Object 11 at wrong offset %d", entries[11].Offset)
	}
}
