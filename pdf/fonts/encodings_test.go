package fonts

import "testing"

func TestBaseEncoding(t *testing.T) {
	tests := []struct {
		encoding string
		code     byte
		want     string
	}{
		{StandardEncoding, 'A', "A"},
		{StandardEncoding, 0x27, "’"},
		{StandardEncoding, 0x60, "‘"},
		{StandardEncoding, 0x00, ""},
		{WinAnsiEncoding, 0x80, "€"},
		{WinAnsiEncoding, 0x93, "“"},
		{WinAnsiEncoding, 0xE9, "é"},
		{WinAnsiEncoding, 0xA0, " "},
		{WinAnsiEncoding, 0xAD, "-"},
		{WinAnsiEncoding, 0x81, ""},
		{WinAnsiEncoding, 0x9D, ""},
		{WinAnsiEncoding, 0x09, ""},
		{MacRomanEncoding, 0x8E, "é"},
		{MacRomanEncoding, 0xDB, "¤"},
		{MacRomanEncoding, 0xCA, " "},
		{MacRomanEncoding, 0xF0, ""},
		{MacExpertEncoding, 0x57, "ﬁ"},
		{MacExpertEncoding, 0x41, ""},
		{PDFDocEncoding, 0x80, "•"},
		{PDFDocEncoding, 0x9F, ""},
		{PDFDocEncoding, 0xA0, "€"},
	}
	for _, tt := range tests {
		enc, ok := BaseEncoding(tt.encoding)
		if !ok {
			t.Fatalf("BaseEncoding(%s) not found", tt.encoding)
		}
		if got := enc[tt.code]; got != tt.want {
			t.Errorf("%s[%#x] = %q, want %q", tt.encoding, tt.code, got, tt.want)
		}
	}

	if _, ok := BaseEncoding("Identity-H"); ok {
		t.Error("Identity-H is not a base encoding")
	}
}

func TestGlyphToUnicode(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"A", "A", true},
		{"eacute", "é", true},
		{"Euro", "€", true},
		{"uni20AC", "€", true},
		{"u1F600", "😀", true},
		{"f_i", "fi", true},
		{"fi", "ﬁ", true},
		{"Eacute.sc", "É", true},
		{"quotedblleft", "“", true},
		{".notdef", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := GlyphToUnicode(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("GlyphToUnicode(%q) = %q, %v, want %q, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}
