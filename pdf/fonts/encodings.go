package fonts

import (
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"seehuhn.de/go/postscript/psenc"

	"github.com/georgepadayatti/zkpdf/pdf/generic"
)

// Names of the base encodings a simple font may select.
const (
	StandardEncoding  = "StandardEncoding"
	WinAnsiEncoding   = "WinAnsiEncoding"
	MacRomanEncoding  = "MacRomanEncoding"
	MacExpertEncoding = "MacExpertEncoding"
	PDFDocEncoding    = "PDFDocEncoding"
)

// encoding maps single-byte codes to text. An empty entry is undefined.
type encoding [256]string

var baseEncodings = map[string]func() *encoding{
	StandardEncoding:  sync.OnceValue(standardEncoding),
	WinAnsiEncoding:   sync.OnceValue(winAnsiEncoding),
	MacRomanEncoding:  sync.OnceValue(macRomanEncoding),
	MacExpertEncoding: sync.OnceValue(macExpertEncoding),
	PDFDocEncoding:    sync.OnceValue(pdfDocEncoding),
	"Symbol":          sync.OnceValue(func() *encoding { return fromRunes(&symbolEncoding) }),
	"ZapfDingbats":    sync.OnceValue(func() *encoding { return fromRunes(&zapfDingbatsEncoding) }),
}

// BaseEncoding returns the code to text table of a named encoding, or
// false for an unknown name.
func BaseEncoding(name string) ([256]string, bool) {
	build, ok := baseEncodings[name]
	if !ok {
		return [256]string{}, false
	}
	return *build(), true
}

func standardEncoding() *encoding {
	var enc encoding
	for code, name := range psenc.StandardEncoding {
		enc[code], _ = GlyphToUnicode(name)
	}
	return &enc
}

// winAnsiUndefined lists the codes Windows-1252 leaves unassigned.
var winAnsiUndefined = [...]byte{0x7F, 0x81, 0x8D, 0x8F, 0x90, 0x9D}

func winAnsiEncoding() *encoding {
	enc := fromCharmap(charmap.Windows1252)
	for _, b := range winAnsiUndefined {
		enc[b] = ""
	}
	// PDF names these codes space and hyphen.
	enc[0xA0] = " "
	enc[0xAD] = "-"
	return enc
}

func macRomanEncoding() *encoding {
	enc := fromCharmap(charmap.Macintosh)
	enc[0x7F] = ""
	enc[0xCA] = " "
	enc[0xDB] = "\u00a4"
	enc[0xF0] = ""
	return enc
}

func macExpertEncoding() *encoding {
	var enc encoding
	for code, name := range macExpertNames {
		enc[code], _ = GlyphToUnicode(name)
	}
	return &enc
}

func pdfDocEncoding() *encoding {
	return fromRunes(&generic.PDFDocEncoding)
}

func fromCharmap(cm *charmap.Charmap) *encoding {
	var enc encoding
	for i := 0x20; i < 256; i++ {
		r := cm.DecodeByte(byte(i))
		if r == utf8.RuneError {
			continue
		}
		enc[i] = string(r)
	}
	return &enc
}

func fromRunes(table *[256]rune) *encoding {
	var enc encoding
	for i, r := range table {
		if r != 0 && r >= 0x20 {
			enc[i] = string(r)
		}
	}
	return &enc
}

// macExpertNames holds the glyph names of MacExpertEncoding.
var macExpertNames = map[byte]string{
	0x20: "space", 0x21: "exclamsmall", 0x22: "Hungarumlautsmall",
	0x23: "centoldstyle", 0x24: "dollaroldstyle", 0x25: "dollarsuperior",
	0x26: "ampersandsmall", 0x27: "Acutesmall", 0x28: "parenleftsuperior",
	0x29: "parenrightsuperior", 0x2a: "twodotenleader", 0x2b: "onedotenleader",
	0x2c: "comma", 0x2d: "hyphen", 0x2e: "period", 0x2f: "fraction",
	0x30: "zerooldstyle", 0x31: "oneoldstyle", 0x32: "twooldstyle",
	0x33: "threeoldstyle", 0x34: "fouroldstyle", 0x35: "fiveoldstyle",
	0x36: "sixoldstyle", 0x37: "sevenoldstyle", 0x38: "eightoldstyle",
	0x39: "nineoldstyle", 0x3a: "colon", 0x3b: "semicolon",
	0x3d: "threequartersemdash", 0x3f: "questionsmall", 0x44: "Ethsmall",
	0x47: "onequarter", 0x48: "onehalf", 0x49: "threequarters", 0x4a: "oneeighth",
	0x4b: "threeeighths", 0x4c: "fiveeighths", 0x4d: "seveneighths",
	0x4e: "onethird", 0x4f: "twothirds", 0x56: "ff", 0x57: "fi", 0x58: "fl",
	0x59: "ffi", 0x5a: "ffl", 0x5b: "parenleftinferior",
	0x5d: "parenrightinferior", 0x5e: "Circumflexsmall", 0x5f: "hypheninferior",
	0x60: "Gravesmall", 0x61: "Asmall", 0x62: "Bsmall", 0x63: "Csmall",
	0x64: "Dsmall", 0x65: "Esmall", 0x66: "Fsmall", 0x67: "Gsmall",
	0x68: "Hsmall", 0x69: "Ismall", 0x6a: "Jsmall", 0x6b: "Ksmall",
	0x6c: "Lsmall", 0x6d: "Msmall", 0x6e: "Nsmall", 0x6f: "Osmall",
	0x70: "Psmall", 0x71: "Qsmall", 0x72: "Rsmall", 0x73: "Ssmall",
	0x74: "Tsmall", 0x75: "Usmall", 0x76: "Vsmall", 0x77: "Wsmall",
	0x78: "Xsmall", 0x79: "Ysmall", 0x7a: "Zsmall", 0x7b: "colonmonetary",
	0x7c: "onefitted", 0x7d: "rupiah", 0x7e: "Tildesmall", 0x81: "asuperior",
	0x82: "centsuperior", 0x87: "Aacutesmall", 0x88: "Agravesmall",
	0x89: "Acircumflexsmall", 0x8a: "Adieresissmall", 0x8b: "Atildesmall",
	0x8c: "Aringsmall", 0x8d: "Ccedillasmall", 0x8e: "Eacutesmall",
	0x8f: "Egravesmall", 0x90: "Ecircumflexsmall", 0x91: "Edieresissmall",
	0x92: "Iacutesmall", 0x93: "Igravesmall", 0x94: "Icircumflexsmall",
	0x95: "Idieresissmall", 0x96: "Ntildesmall", 0x97: "Oacutesmall",
	0x98: "Ogravesmall", 0x99: "Ocircumflexsmall", 0x9a: "Odieresissmall",
	0x9b: "Otildesmall", 0x9c: "Uacutesmall", 0x9d: "Ugravesmall",
	0x9e: "Ucircumflexsmall", 0x9f: "Udieresissmall", 0xa1: "eightsuperior",
	0xa2: "fourinferior", 0xa3: "threeinferior", 0xa4: "sixinferior",
	0xa5: "eightinferior", 0xa6: "seveninferior", 0xa7: "Scaronsmall",
	0xa9: "centinferior", 0xaa: "twoinferior", 0xac: "Dieresissmall",
	0xae: "Caronsmall", 0xaf: "osuperior", 0xb0: "fiveinferior",
	0xb2: "commainferior", 0xb3: "periodinferior", 0xb4: "Yacutesmall",
	0xb6: "dollarinferior", 0xb9: "Thornsmall", 0xbb: "nineinferior",
	0xbc: "zeroinferior", 0xbd: "Zcaronsmall", 0xbe: "AEsmall",
	0xbf: "Oslashsmall", 0xc0: "questiondownsmall", 0xc1: "oneinferior",
	0xc2: "Lslashsmall", 0xc9: "Cedillasmall", 0xcf: "OEsmall",
	0xd0: "figuredash", 0xd1: "hyphensuperior", 0xd6: "exclamdownsmall",
	0xd8: "Ydieresissmall", 0xda: "onesuperior", 0xdb: "twosuperior",
	0xdc: "threesuperior", 0xdd: "foursuperior", 0xde: "fivesuperior",
	0xdf: "sixsuperior", 0xe0: "sevensuperior", 0xe1: "ninesuperior",
	0xe2: "zerosuperior", 0xe4: "esuperior", 0xe5: "rsuperior", 0xe6: "tsuperior",
	0xe9: "isuperior", 0xea: "ssuperior", 0xeb: "dsuperior", 0xf1: "lsuperior",
	0xf2: "Ogoneksmall", 0xf3: "Brevesmall", 0xf4: "Macronsmall",
	0xf5: "bsuperior", 0xf6: "nsuperior", 0xf7: "msuperior",
	0xf8: "commasuperior", 0xf9: "periodsuperior", 0xfa: "Dotaccentsmall",
	0xfb: "Ringsmall",
}

var symbolEncoding = [256]rune{
	0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, // 0x00-0x07
	0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, // 0x08-0x0F
	0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, // 0x10-0x17
	0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, // 0x18-0x1F
	0x0020, 0x0021, 0x2200, 0x0023, 0x2203, 0x0025, 0x0026, 0x220B, // 0x20-0x27 space ! ∀ # ∃ % & ∋
	0x0028, 0x0029, 0x2217, 0x002B, 0x002C, 0x2212, 0x002E, 0x002F, // 0x28-0x2F ( ) ∗ + , − . /
	0x0030, 0x0031, 0x0032, 0x0033, 0x0034, 0x0035, 0x0036, 0x0037, // 0x30-0x37 0-7
	0x0038, 0x0039, 0x003A, 0x003B, 0x003C, 0x003D, 0x003E, 0x003F, // 0x38-0x3F 8-9 : ; < = > ?
	0x2245, 0x0391, 0x0392, 0x03A7, 0x0394, 0x0395, 0x03A6, 0x0393, // 0x40-0x47 ≅ Α Β Χ Δ Ε Φ Γ
	0x0397, 0x0399, 0x03D1, 0x039A, 0x039B, 0x039C, 0x039D, 0x039F, // 0x48-0x4F Η Ι ϑ Κ Λ Μ Ν Ο
	0x03A0, 0x0398, 0x03A1, 0x03A3, 0x03A4, 0x03A5, 0x03C2, 0x03A9, // 0x50-0x57 Π Θ Ρ Σ Τ Υ ς Ω
	0x039E, 0x03A8, 0x0396, 0x005B, 0x2234, 0x005D, 0x22A5, 0x005F, // 0x58-0x5F Ξ Ψ Ζ [ ∴ ] ⊥ _
	0xF8E5, 0x03B1, 0x03B2, 0x03C7, 0x03B4, 0x03B5, 0x03C6, 0x03B3, // 0x60-0x67 α β χ δ ε φ γ
	0x03B7, 0x03B9, 0x03D5, 0x03BA, 0x03BB, 0x03BC, 0x03BD, 0x03BF, // 0x68-0x6F η ι ϕ κ λ μ ν ο
	0x03C0, 0x03B8, 0x03C1, 0x03C3, 0x03C4, 0x03C5, 0x03D6, 0x03C9, // 0x70-0x77 π θ ρ σ τ υ ϖ ω
	0x03BE, 0x03C8, 0x03B6, 0x007B, 0x007C, 0x007D, 0x223C, 0x0000, // 0x78-0x7F ξ ψ ζ { | } ∼
	0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, // 0x80-0x87
	0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, // 0x88-0x8F
	0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, // 0x90-0x97
	0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, // 0x98-0x9F
	0x20AC, 0x03D2, 0x2032, 0x2264, 0x2044, 0x221E, 0x0192, 0x2663, // 0xA0-0xA7 € ϒ ′ ≤ ⁄ ∞ ƒ ♣
	0x2666, 0x2665, 0x2660, 0x2194, 0x2190, 0x2191, 0x2192, 0x2193, // 0xA8-0xAF ♦ ♥ ♠ ↔ ← ↑ → ↓
	0x00B0, 0x00B1, 0x2033, 0x2265, 0x00D7, 0x221D, 0x2202, 0x2022, // 0xB0-0xB7 ° ± ″ ≥ × ∝ ∂ •
	0x00F7, 0x2260, 0x2261, 0x2248, 0x2026, 0x23D0, 0x23AF, 0x21B5, // 0xB8-0xBF ÷ ≠ ≡ ≈ … ⏐ ⎯ ↵
	0x2135, 0x2111, 0x211C, 0x2118, 0x2297, 0x2295, 0x2205, 0x2229, // 0xC0-0xC7 ℵ ℑ ℜ ℘ ⊗ ⊕ ∅ ∩
	0x222A, 0x2283, 0x2287, 0x2284, 0x2282, 0x2286, 0x2208, 0x2209, // 0xC8-0xCF ∪ ⊃ ⊇ ⊄ ⊂ ⊆ ∈ ∉
	0x2220, 0x2207, 0x00AE, 0x00A9, 0x2122, 0x220F, 0x221A, 0x22C5, // 0xD0-0xD7 ∠ ∇ ® © ™ ∏ √ ⋅
	0x00AC, 0x2227, 0x2228, 0x21D4, 0x21D0, 0x21D1, 0x21D2, 0x21D3, // 0xD8-0xDF ¬ ∧ ∨ ⇔ ⇐ ⇑ ⇒ ⇓
	0x25CA, 0x2329, 0x00AE, 0x00A9, 0x2122, 0x2211, 0x239B, 0x239C, // 0xE0-0xE7 ◊ 〈 ® © ™ ∑ ⎛ ⎜
	0x239D, 0x23A1, 0x23A2, 0x23A3, 0x23A7, 0x23A8, 0x23A9, 0x23AA, // 0xE8-0xEF ⎝ ⎡ ⎢ ⎣ ⎧ ⎨ ⎩ ⎪
	0x0000, 0x232A, 0x222B, 0x2320, 0x23AE, 0x2321, 0x239E, 0x239F, // 0xF0-0xF7 〉 ∫ ⌠ ⎮ ⌡ ⎞ ⎟
	0x23A0, 0x23A4, 0x23A5, 0x23A6, 0x23AB, 0x23AC, 0x23AD, 0x0000, // 0xF8-0xFF ⎠ ⎤ ⎥ ⎦ ⎫ ⎬ ⎭
}

var zapfDingbatsEncoding = [256]rune{
	0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, // 0x00-0x07
	0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, // 0x08-0x0F
	0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, // 0x10-0x17
	0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, // 0x18-0x1F
	0x0020, 0x2701, 0x2702, 0x2703, 0x2704, 0x260E, 0x2706, 0x2707, // 0x20-0x27 ✁ ✂ ✃ ✄ ☎ ✆ ✇
	0x2708, 0x2709, 0x261B, 0x261E, 0x270C, 0x270D, 0x270E, 0x270F, // 0x28-0x2F ✈ ✉ ☛ ☞ ✌ ✍ ✎ ✏
	0x2710, 0x2711, 0x2712, 0x2713, 0x2714, 0x2715, 0x2716, 0x2717, // 0x30-0x37 ✐ ✑ ✒ ✓ ✔ ✕ ✖ ✗
	0x2718, 0x2719, 0x271A, 0x271B, 0x271C, 0x271D, 0x271E, 0x271F, // 0x38-0x3F ✘ ✙ ✚ ✛ ✜ ✝ ✞ ✟
	0x2720, 0x2721, 0x2722, 0x2723, 0x2724, 0x2725, 0x2726, 0x2727, // 0x40-0x47 ✠ ✡ ✢ ✣ ✤ ✥ ✦ ✧
	0x2605, 0x2729, 0x272A, 0x272B, 0x272C, 0x272D, 0x272E, 0x272F, // 0x48-0x4F ★ ✩ ✪ ✫ ✬ ✭ ✮ ✯
	0x2730, 0x2731, 0x2732, 0x2733, 0x2734, 0x2735, 0x2736, 0x2737, // 0x50-0x57 ✰ ✱ ✲ ✳ ✴ ✵ ✶ ✷
	0x2738, 0x2739, 0x273A, 0x273B, 0x273C, 0x273D, 0x273E, 0x273F, // 0x58-0x5F ✸ ✹ ✺ ✻ ✼ ✽ ✾ ✿
	0x2740, 0x2741, 0x2742, 0x2743, 0x2744, 0x2745, 0x2746, 0x2747, // 0x60-0x67 ❀ ❁ ❂ ❃ ❄ ❅ ❆ ❇
	0x2748, 0x2749, 0x274A, 0x274B, 0x25CF, 0x274D, 0x25A0, 0x274F, // 0x68-0x6F ❈ ❉ ❊ ❋ ● ❍ ■ ❏
	0x2750, 0x2751, 0x2752, 0x25B2, 0x25BC, 0x25C6, 0x2756, 0x25D7, // 0x70-0x77 ❐ ❑ ❒ ▲ ▼ ◆ ❖ ◗
	0x2758, 0x2759, 0x275A, 0x275B, 0x275C, 0x275D, 0x275E, 0x0000, // 0x78-0x7F ❘ ❙ ❚ ❛ ❜ ❝ ❞
	0x2768, 0x2769, 0x276A, 0x276B, 0x276C, 0x276D, 0x276E, 0x276F, // 0x80-0x87 ❨ ❩ ❪ ❫ ❬ ❭ ❮ ❯
	0x2770, 0x2771, 0x2772, 0x2773, 0x2774, 0x2775, 0x0000, 0x0000, // 0x88-0x8F ❰ ❱ ❲ ❳ ❴ ❵
	0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, // 0x90-0x97
	0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, 0x0000, // 0x98-0x9F
	0x0000, 0x2761, 0x2762, 0x2763, 0x2764, 0x2765, 0x2766, 0x2767, // 0xA0-0xA7 ❡ ❢ ❣ ❤ ❥ ❦ ❧
	0x2663, 0x2666, 0x2665, 0x2660, 0x2460, 0x2461, 0x2462, 0x2463, // 0xA8-0xAF ♣ ♦ ♥ ♠ ① ② ③ ④
	0x2464, 0x2465, 0x2466, 0x2467, 0x2468, 0x2469, 0x2776, 0x2777, // 0xB0-0xB7 ⑤ ⑥ ⑦ ⑧ ⑨ ⑩ ❶ ❷
	0x2778, 0x2779, 0x277A, 0x277B, 0x277C, 0x277D, 0x277E, 0x277F, // 0xB8-0xBF ❸ ❹ ❺ ❻ ❼ ❽ ❾ ❿
	0x2780, 0x2781, 0x2782, 0x2783, 0x2784, 0x2785, 0x2786, 0x2787, // 0xC0-0xC7 ➀ ➁ ➂ ➃ ➄ ➅ ➆ ➇
	0x2788, 0x2789, 0x278A, 0x278B, 0x278C, 0x278D, 0x278E, 0x278F, // 0xC8-0xCF ➈ ➉ ➊ ➋ ➌ ➍ ➎ ➏
	0x2790, 0x2791, 0x2792, 0x2793, 0x2794, 0x2192, 0x2194, 0x2195, // 0xD0-0xD7 ➐ ➑ ➒ ➓ ➔ → ↔ ↕
	0x2798, 0x2799, 0x279A, 0x279B, 0x279C, 0x279D, 0x279E, 0x279F, // 0xD8-0xDF ➘ ➙ ➚ ➛ ➜ ➝ ➞ ➟
	0x27A0, 0x27A1, 0x27A2, 0x27A3, 0x27A4, 0x27A5, 0x27A6, 0x27A7, // 0xE0-0xE7 ➠ ➡ ➢ ➣ ➤ ➥ ➦ ➧
	0x27A8, 0x27A9, 0x27AA, 0x27AB, 0x27AC, 0x27AD, 0x27AE, 0x27AF, // 0xE8-0xEF ➨ ➩ ➪ ➫ ➬ ➭ ➮ ➯
	0x0000, 0x27B1, 0x27B2, 0x27B3, 0x27B4, 0x27B5, 0x27B6, 0x27B7, // 0xF0-0xF7 ➱ ➲ ➳ ➴ ➵ ➶ ➷
	0x27B8, 0x27B9, 0x27BA, 0x27BB, 0x27BC, 0x27BD, 0x27BE, 0x0000, // 0xF8-0xFF ➸ ➹ ➺ ➻ ➼ ➽ ➾
}
