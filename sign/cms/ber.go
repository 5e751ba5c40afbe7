package cms

import (
	"errors"
)

const maxBERDepth = 64

var errBER = errors.New("invalid BER encoding")

// normalizeBER re-encodes a BER element as DER: indefinite lengths become
// definite, long-form lengths become minimal and constructed OCTET STRINGs
// are flattened. SET OF ordering is left as found. Bytes after the first
// element are dropped.
func normalizeBER(data []byte) ([]byte, error) {
	out, _, err := berElement(data, 0)
	return out, err
}

func berElement(data []byte, depth int) (der, rest []byte, err error) {
	if depth > maxBERDepth {
		return nil, nil, errBER
	}
	if len(data) < 2 {
		return nil, nil, errBER
	}

	i := 1
	if data[0]&0x1f == 0x1f {
		for {
			if i >= len(data) {
				return nil, nil, errBER
			}
			c := data[i]
			i++
			if c&0x80 == 0 {
				break
			}
		}
	}
	tag := append([]byte(nil), data[:i]...)
	constructed := data[0]&0x20 != 0
	if i >= len(data) {
		return nil, nil, errBER
	}

	var body []byte
	l := data[i]
	i++
	switch {
	case l == 0x80:
		if !constructed {
			return nil, nil, errBER
		}
		for {
			if i+1 >= len(data) {
				return nil, nil, errBER
			}
			if data[i] == 0 && data[i+1] == 0 {
				i += 2
				break
			}
			child, r, err := berElement(data[i:], depth+1)
			if err != nil {
				return nil, nil, err
			}
			body = append(body, child...)
			i = len(data) - len(r)
		}
		rest = data[i:]
	default:
		n := int(l)
		if l&0x80 != 0 {
			count := int(l & 0x7f)
			if count > 4 || i+count > len(data) {
				return nil, nil, errBER
			}
			n = 0
			for _, b := range data[i : i+count] {
				n = n<<8 | int(b)
			}
			i += count
		}
		if n < 0 || i+n > len(data) {
			return nil, nil, errBER
		}
		content := data[i : i+n]
		rest = data[i+n:]
		if !constructed {
			body = content
			break
		}
		for len(content) > 0 {
			child, r, err := berElement(content, depth+1)
			if err != nil {
				return nil, nil, err
			}
			body = append(body, child...)
			content = r
		}
	}

	// Constructed universal OCTET STRING: concatenate the segments.
	if tag[0] == 0x24 {
		var flat []byte
		for seg := body; len(seg) > 0; {
			content, r, ok := derContent(seg)
			if !ok {
				return nil, nil, errBER
			}
			flat = append(flat, content...)
			seg = r
		}
		tag[0] = 0x04
		body = flat
	}
	return appendElement(tag, body), rest, nil
}

// derContent splits a DER element produced by berElement into its
// content octets and what follows.
func derContent(data []byte) (content, rest []byte, ok bool) {
	if len(data) < 2 || data[0]&0x1f == 0x1f {
		return nil, nil, false
	}
	l := int(data[1])
	i := 2
	if l&0x80 != 0 {
		count := l & 0x7f
		if i+count > len(data) {
			return nil, nil, false
		}
		l = 0
		for _, b := range data[i : i+count] {
			l = l<<8 | int(b)
		}
		i += count
	}
	if i+l > len(data) {
		return nil, nil, false
	}
	return data[i : i+l], data[i+l:], true
}

func appendElement(tag, body []byte) []byte {
	out := append([]byte(nil), tag...)
	n := len(body)
	switch {
	case n < 0x80:
		out = append(out, byte(n))
	case n <= 0xff:
		out = append(out, 0x81, byte(n))
	case n <= 0xffff:
		out = append(out, 0x82, byte(n>>8), byte(n))
	case n <= 0xffffff:
		out = append(out, 0x83, byte(n>>16), byte(n>>8), byte(n))
	default:
		out = append(out, 0x84, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
	return append(out, body...)
}
