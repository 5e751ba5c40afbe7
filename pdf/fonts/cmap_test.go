package fonts

import (
	"bytes"
	"testing"
)

func TestParseCMap(t *testing.T) {
	cm := ParseCMap([]byte(identityToUnicode))
	if cm.Name != "Adobe-Identity-UCS" {
		t.Errorf("Name = %q", cm.Name)
	}
	if len(cm.codespace) != 1 {
		t.Fatalf("Expected one codespace range, got %d", len(cm.codespace))
	}

	tests := []struct {
		code []byte
		want string
		ok   bool
	}{
		{[]byte{0x00, 0x01}, "H", true},
		{[]byte{0x00, 0x02}, "😀", true},
		{[]byte{0x00, 0x0A}, "a", true},
		{[]byte{0x00, 0x0C}, "c", true},
		{[]byte{0x00, 0x0D}, "", false},
		{[]byte{0x00, 0x10}, "fl", true},
		{[]byte{0x00, 0x11}, "é", true},
		{[]byte{0x01}, "", false},
	}
	for _, tt := range tests {
		got, ok := cm.Lookup(tt.code)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Lookup(%X) = %q, %v, want %q, %v", tt.code, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseCMapRangeIncrementsLastCharacter(t *testing.T) {
	cm := ParseCMap([]byte("1 beginbfrange <20> <22> <00660066> endbfrange"))
	for code, want := range map[byte]string{0x20: "ff", 0x21: "fg", 0x22: "fh"} {
		if got, _ := cm.Lookup([]byte{code}); got != want {
			t.Errorf("Lookup(%X) = %q, want %q", code, got, want)
		}
	}
}

func TestParseCMapSkipsMalformedEntries(t *testing.T) {
	data := []byte(`2 beginbfchar
<01> <0041>
/notastring <0042>
<02> <0043>
endbfchar
1 beginbfrange
<05> <03> <0044>
endbfrange
1 beginbfrange
<0010> <10> <0045>
endbfrange`)
	cm := ParseCMap(data)

	if got, ok := cm.Lookup([]byte{0x01}); !ok || got != "A" {
		t.Errorf("Lookup(01) = %q, %v", got, ok)
	}
	if got, ok := cm.Lookup([]byte{0x02}); !ok || got != "C" {
		t.Errorf("Lookup(02) = %q, %v", got, ok)
	}
	for _, code := range [][]byte{{0x04}, {0x00, 0x10}, {0x10}} {
		if got, ok := cm.Lookup(code); ok {
			t.Errorf("Lookup(%X) = %q, want no mapping", code, got)
		}
	}
}

func TestParseCMapGarbage(t *testing.T) {
	cm := ParseCMap([]byte("\x00\xff<<>> ) ] begincmap endbfchar"))
	if cm == nil || cm.HasMappings() {
		t.Errorf("Expected an empty CMap, got %+v", cm)
	}
}

func TestNextCode(t *testing.T) {
	cm := ParseCMap([]byte(`2 begincodespacerange
<00> <80>
<8140> <9FFC>
endcodespacerange`))

	data := []byte{0x41, 0x81, 0x40, 0xA0}
	var codes [][]byte
	for len(data) > 0 {
		code, n := cm.NextCode(data)
		codes = append(codes, code)
		data = data[n:]
	}
	want := [][]byte{{0x41}, {0x81, 0x40}, {0xA0}}
	if len(codes) != len(want) {
		t.Fatalf("Codes = %X, want %X", codes, want)
	}
	for i := range want {
		if !bytes.Equal(codes[i], want[i]) {
			t.Errorf("Code %d = %X, want %X", i, codes[i], want[i])
		}
	}

	if code, n := IdentityCMap.NextCode([]byte{0x12, 0x34, 0x56}); n != 2 || !bytes.Equal(code, []byte{0x12, 0x34}) {
		t.Errorf("Identity NextCode = %X, %d", code, n)
	}
}

func TestUTF16Text(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte{0x00, 0x41}, "A"},
		{[]byte{0xD8, 0x3D, 0xDE, 0x00}, "😀"},
		{[]byte{0xD8, 0x3D}, "�"},
		{[]byte{0x00, 0x41, 0x42}, "A�"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := utf16Text(tt.in); got != tt.want {
			t.Errorf("utf16Text(%X) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
