package text

import (
	"unicode"
	"unicode/utf8"
)

// normalize collapses each line's whitespace runs to one space, trims the
// lines, drops blank ones and joins the rest with '\n'. Spans are moved to
// the matching ranges of the result; spans left empty are dropped.
func normalize(raw []byte, spans []Span) (string, []Span) {
	out := make([]byte, 0, len(raw))

	// start[i] and end[i] are the output offsets at which a span beginning
	// or ending at raw offset i begins or ends. They differ only where a
	// pending separator is written before the byte at i.
	start := make([]int, len(raw)+1)
	end := make([]int, len(raw)+1)

	pendingSpace, pendingNewline := false, false
	lineHasText, anyText := false, false
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRune(raw[i:])
		end[i] = len(out)
		switch {
		case r == '\n':
			if lineHasText {
				pendingNewline = true
			}
			pendingSpace, lineHasText = false, false
		case unicode.IsSpace(r):
			if lineHasText {
				pendingSpace = true
			}
		default:
			if pendingNewline && anyText {
				out = append(out, '\n')
			} else if pendingSpace {
				out = append(out, ' ')
			}
			pendingSpace, pendingNewline = false, false
			lineHasText, anyText = true, true
			start[i] = len(out)
			out = append(out, raw[i:i+size]...)
			fill(start, end, i, size, len(out))
			i += size
			continue
		}
		start[i] = len(out)
		fill(start, end, i, size, len(out))
		i += size
	}
	start[len(raw)] = len(out)
	end[len(raw)] = len(out)

	mapped := make([]Span, 0, len(spans))
	for _, s := range spans {
		n := Span{Start: start[s.Start], End: end[s.End], Op: s.Op, OpIndex: s.OpIndex}
		if n.End > n.Start {
			mapped = append(mapped, n)
		}
	}
	return string(out), mapped
}

// fill maps the continuation bytes of a multi-byte rune to the offset
// after it.
func fill(start, end []int, i, size, after int) {
	for j := i + 1; j < i+size; j++ {
		start[j] = after
		end[j] = after
	}
}
