package fonts

import (
	"strings"
	"unicode/utf8"

	"seehuhn.de/go/postscript/type1/names"
)

// GlyphToUnicode maps a glyph name to the text it represents. Names from
// the Adobe Glyph List, "uniXXXX" and "uXXXX[XX]" forms, ligatures joined
// with "_" and single-character names are recognized.
func GlyphToUnicode(name string) (string, bool) {
	return glyphText(name, "")
}

// glyphText resolves name for the font fontName. ZapfDingbats has its own
// glyph list.
func glyphText(name, fontName string) (string, bool) {
	if name == "" || name == ".notdef" {
		return "", false
	}
	if s := names.ToUnicode(name, fontName); s != "" {
		return s, true
	}

	base := name
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	if utf8.RuneCountInString(base) == 1 {
		return base, true
	}
	if lower := strings.ToLower(base); lower != base {
		if s := names.ToUnicode(lower, fontName); s != "" {
			return s, true
		}
	}
	return "", false
}
