package fonts

// StandardFont is the name of one of the 14 standard Type 1 fonts.
type StandardFont string

const (
	Helvetica            StandardFont = "Helvetica"
	HelveticaBold        StandardFont = "Helvetica-Bold"
	HelveticaOblique     StandardFont = "Helvetica-Oblique"
	HelveticaBoldOblique StandardFont = "Helvetica-BoldOblique"
	Times                StandardFont = "Times-Roman"
	TimesBold            StandardFont = "Times-Bold"
	TimesItalic          StandardFont = "Times-Italic"
	TimesBoldItalic      StandardFont = "Times-BoldItalic"
	Courier              StandardFont = "Courier"
	CourierBold          StandardFont = "Courier-Bold"
	CourierOblique       StandardFont = "Courier-Oblique"
	CourierBoldOblique   StandardFont = "Courier-BoldOblique"
	Symbol               StandardFont = "Symbol"
	ZapfDingbats         StandardFont = "ZapfDingbats"
)

// standardAliases lists the alternative names readers accept for the
// standard fonts.
var standardAliases = map[string]StandardFont{
	"Arial":                    Helvetica,
	"Arial,Bold":               HelveticaBold,
	"Arial,Italic":             HelveticaOblique,
	"Arial,BoldItalic":         HelveticaBoldOblique,
	"TimesNewRoman":            Times,
	"TimesNewRoman,Bold":       TimesBold,
	"TimesNewRoman,Italic":     TimesItalic,
	"TimesNewRoman,BoldItalic": TimesBoldItalic,
	"CourierNew":               Courier,
	"CourierNew,Bold":          CourierBold,
	"CourierNew,Italic":        CourierOblique,
	"CourierNew,BoldItalic":    CourierBoldOblique,
}

// IsStandardFont checks if a font name is a standard font.
func IsStandardFont(name string) bool {
	_, ok := lookupStandardFont(name)
	return ok
}

// lookupStandardFont maps a /BaseFont value to a standard font. A subset
// prefix such as "ABCDEF+" is ignored.
func lookupStandardFont(name string) (StandardFont, bool) {
	if len(name) > 7 && name[6] == '+' {
		name = name[7:]
	}
	switch f := StandardFont(name); f {
	case Helvetica, HelveticaBold, HelveticaOblique, HelveticaBoldOblique,
		Times, TimesBold, TimesItalic, TimesBoldItalic,
		Courier, CourierBold, CourierOblique, CourierBoldOblique,
		Symbol, ZapfDingbats:
		return f, true
	}
	f, ok := standardAliases[name]
	return f, ok
}

// Metrics holds the advance widths of a standard font in glyph space
// units (1/1000 em).
type Metrics struct {
	Widths       map[rune]int
	DefaultWidth int
	Symbolic     bool
}

// Width returns the width of r, or the default width.
func (m *Metrics) Width(r rune) int {
	if w, ok := m.Widths[r]; ok {
		return w
	}
	return m.DefaultWidth
}

// StandardMetrics returns the metrics of a standard font.
func StandardMetrics(name StandardFont) *Metrics {
	m := &Metrics{Widths: make(map[rune]int), DefaultWidth: 600}

	switch name {
	case Helvetica, HelveticaBold, HelveticaOblique, HelveticaBoldOblique:
		m.DefaultWidth = 556
		setHelveticaWidths(m.Widths, name == HelveticaBold || name == HelveticaBoldOblique)
	case Times, TimesBold, TimesItalic, TimesBoldItalic:
		m.DefaultWidth = 500
		setTimesWidths(m.Widths, name == TimesBold || name == TimesBoldItalic)
	case Courier, CourierBold, CourierOblique, CourierBoldOblique:
		// Monospaced.
		for i := 32; i < 256; i++ {
			m.Widths[rune(i)] = 600
		}
	case Symbol, ZapfDingbats:
		m.Symbolic = true
	}
	return m
}

// setHelveticaWidths sets character widths for Helvetica.
func setHelveticaWidths(widths map[rune]int, bold bool) {
	// Common character widths for Helvetica
	if bold {
		widths[' '] = 278
		widths['!'] = 333
		widths['"'] = 474
		widths['#'] = 556
		widths['$'] = 556
		widths['%'] = 889
		widths['&'] = 722
		widths['\''] = 238
		widths['('] = 333
		widths[')'] = 333
		widths['*'] = 389
		widths['+'] = 584
		widths[','] = 278
		widths['-'] = 333
		widths['.'] = 278
		widths['/'] = 278
		for i := '0'; i <= '9'; i++ {
			widths[i] = 556
		}
		widths[':'] = 333
		widths[';'] = 333
		widths['<'] = 584
		widths['='] = 584
		widths['>'] = 584
		widths['?'] = 611
		widths['@'] = 975
		// Uppercase
		widths['A'] = 722
		widths['B'] = 722
		widths['C'] = 722
		widths['D'] = 722
		widths['E'] = 667
		widths['F'] = 611
		widths['G'] = 778
		widths['H'] = 722
		widths['I'] = 278
		widths['J'] = 556
		widths['K'] = 722
		widths['L'] = 611
		widths['M'] = 833
		widths['N'] = 722
		widths['O'] = 778
		widths['P'] = 667
		widths['Q'] = 778
		widths['R'] = 722
		widths['S'] = 667
		widths['T'] = 611
		widths['U'] = 722
		widths['V'] = 667
		widths['W'] = 944
		widths['X'] = 667
		widths['Y'] = 667
		widths['Z'] = 611
		// Lowercase
		widths['a'] = 556
		widths['b'] = 611
		widths['c'] = 556
		widths['d'] = 611
		widths['e'] = 556
		widths['f'] = 333
		widths['g'] = 611
		widths['h'] = 611
		widths['i'] = 278
		widths['j'] = 278
		widths['k'] = 556
		widths['l'] = 278
		widths['m'] = 889
		widths['n'] = 611
		widths['o'] = 611
		widths['p'] = 611
		widths['q'] = 611
		widths['r'] = 389
		widths['s'] = 556
		widths['t'] = 333
		widths['u'] = 611
		widths['v'] = 556
		widths['w'] = 778
		widths['x'] = 556
		widths['y'] = 556
		widths['z'] = 500
	} else {
		widths[' '] = 278
		widths['!'] = 278
		widths['"'] = 355
		widths['#'] = 556
		widths['$'] = 556
		widths['%'] = 889
		widths['&'] = 667
		widths['\''] = 191
		widths['('] = 333
		widths[')'] = 333
		widths['*'] = 389
		widths['+'] = 584
		widths[','] = 278
		widths['-'] = 333
		widths['.'] = 278
		widths['/'] = 278
		for i := '0'; i <= '9'; i++ {
			widths[i] = 556
		}
		widths[':'] = 278
		widths[';'] = 278
		widths['<'] = 584
		widths['='] = 584
		widths['>'] = 584
		widths['?'] = 556
		widths['@'] = 1015
		// Uppercase
		widths['A'] = 667
		widths['B'] = 667
		widths['C'] = 722
		widths['D'] = 722
		widths['E'] = 667
		widths['F'] = 611
		widths['G'] = 778
		widths['H'] = 722
		widths['I'] = 278
		widths['J'] = 500
		widths['K'] = 667
		widths['L'] = 556
		widths['M'] = 833
		widths['N'] = 722
		widths['O'] = 778
		widths['P'] = 667
		widths['Q'] = 778
		widths['R'] = 722
		widths['S'] = 667
		widths['T'] = 611
		widths['U'] = 722
		widths['V'] = 667
		widths['W'] = 944
		widths['X'] = 667
		widths['Y'] = 667
		widths['Z'] = 611
		// Lowercase
		widths['a'] = 556
		widths['b'] = 556
		widths['c'] = 500
		widths['d'] = 556
		widths['e'] = 556
		widths['f'] = 278
		widths['g'] = 556
		widths['h'] = 556
		widths['i'] = 222
		widths['j'] = 222
		widths['k'] = 500
		widths['l'] = 222
		widths['m'] = 833
		widths['n'] = 556
		widths['o'] = 556
		widths['p'] = 556
		widths['q'] = 556
		widths['r'] = 333
		widths['s'] = 500
		widths['t'] = 278
		widths['u'] = 556
		widths['v'] = 500
		widths['w'] = 722
		widths['x'] = 500
		widths['y'] = 500
		widths['z'] = 500
	}
}

// setTimesWidths sets character widths for Times.
func setTimesWidths(widths map[rune]int, bold bool) {
	if bold {
		widths[' '] = 250
		widths['!'] = 333
		widths['"'] = 555
		widths['#'] = 500
		widths['$'] = 500
		widths['%'] = 1000
		widths['&'] = 833
		widths['\''] = 278
		widths['('] = 333
		widths[')'] = 333
		widths['*'] = 500
		widths['+'] = 570
		widths[','] = 250
		widths['-'] = 333
		widths['.'] = 250
		widths['/'] = 278
		for i := '0'; i <= '9'; i++ {
			widths[i] = 500
		}
		widths[':'] = 333
		widths[';'] = 333
		widths['<'] = 570
		widths['='] = 570
		widths['>'] = 570
		widths['?'] = 500
		widths['@'] = 930
		// Uppercase
		widths['A'] = 722
		widths['B'] = 667
		widths['C'] = 722
		widths['D'] = 722
		widths['E'] = 667
		widths['F'] = 611
		widths['G'] = 778
		widths['H'] = 778
		widths['I'] = 389
		widths['J'] = 500
		widths['K'] = 778
		widths['L'] = 667
		widths['M'] = 944
		widths['N'] = 722
		widths['O'] = 778
		widths['P'] = 611
		widths['Q'] = 778
		widths['R'] = 722
		widths['S'] = 556
		widths['T'] = 667
		widths['U'] = 722
		widths['V'] = 722
		widths['W'] = 1000
		widths['X'] = 722
		widths['Y'] = 722
		widths['Z'] = 667
		// Lowercase
		widths['a'] = 500
		widths['b'] = 556
		widths['c'] = 444
		widths['d'] = 556
		widths['e'] = 444
		widths['f'] = 333
		widths['g'] = 500
		widths['h'] = 556
		widths['i'] = 278
		widths['j'] = 333
		widths['k'] = 556
		widths['l'] = 278
		widths['m'] = 833
		widths['n'] = 556
		widths['o'] = 500
		widths['p'] = 556
		widths['q'] = 556
		widths['r'] = 444
		widths['s'] = 389
		widths['t'] = 333
		widths['u'] = 556
		widths['v'] = 500
		widths['w'] = 722
		widths['x'] = 500
		widths['y'] = 500
		widths['z'] = 444
	} else {
		widths[' '] = 250
		widths['!'] = 333
		widths['"'] = 408
		widths['#'] = 500
		widths['$'] = 500
		widths['%'] = 833
		widths['&'] = 778
		widths['\''] = 180
		widths['('] = 333
		widths[')'] = 333
		widths['*'] = 500
		widths['+'] = 564
		widths[','] = 250
		widths['-'] = 333
		widths['.'] = 250
		widths['/'] = 278
		for i := '0'; i <= '9'; i++ {
			widths[i] = 500
		}
		widths[':'] = 278
		widths[';'] = 278
		widths['<'] = 564
		widths['='] = 564
		widths['>'] = 564
		widths['?'] = 444
		widths['@'] = 921
		// Uppercase
		widths['A'] = 722
		widths['B'] = 667
		widths['C'] = 667
		widths['D'] = 722
		widths['E'] = 611
		widths['F'] = 556
		widths['G'] = 722
		widths['H'] = 722
		widths['I'] = 333
		widths['J'] = 389
		widths['K'] = 722
		widths['L'] = 611
		widths['M'] = 889
		widths['N'] = 722
		widths['O'] = 722
		widths['P'] = 556
		widths['Q'] = 722
		widths['R'] = 667
		widths['S'] = 556
		widths['T'] = 611
		widths['U'] = 722
		widths['V'] = 722
		widths['W'] = 944
		widths['X'] = 722
		widths['Y'] = 722
		widths['Z'] = 611
		// Lowercase
		widths['a'] = 444
		widths['b'] = 500
		widths['c'] = 444
		widths['d'] = 500
		widths['e'] = 444
		widths['f'] = 333
		widths['g'] = 500
		widths['h'] = 500
		widths['i'] = 278
		widths['j'] = 278
		widths['k'] = 500
		widths['l'] = 278
		widths['m'] = 778
		widths['n'] = 500
		widths['o'] = 500
		widths['p'] = 500
		widths['q'] = 500
		widths['r'] = 333
		widths['s'] = 389
		widths['t'] = 278
		widths['u'] = 500
		widths['v'] = 500
		widths['w'] = 722
		widths['x'] = 500
		widths['y'] = 500
		widths['z'] = 444
	}
}
