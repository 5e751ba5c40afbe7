// Package filters provides PDF stream filter implementations.
//
// Decoding is bounded: every filter stops once its output would exceed
// the limit configured on the Decoder.
package filters

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/georgepadayatti/zkpdf/pdf/generic"
)

// DefaultMaxOutput is the default bound on decoded stream size.
const DefaultMaxOutput = 64 << 20

// Common errors
var (
	ErrUnsupportedFilter = errors.New("unsupported filter")
	ErrDecodeFailed      = errors.New("decode failed")
	ErrOutputTooLarge    = errors.New("decoded stream exceeds size limit")
)

// UnsupportedFilterError names a filter this package does not decode.
// Callers treat the stream as opaque bytes.
type UnsupportedFilterError struct {
	Name string
}

func (e *UnsupportedFilterError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnsupportedFilter, e.Name)
}

// Is reports whether target is ErrUnsupportedFilter.
func (e *UnsupportedFilterError) Is(target error) bool {
	return target == ErrUnsupportedFilter
}

// Params holds the DecodeParms entries used by the supported filters.
type Params struct {
	Predictor        int
	Colors           int
	BitsPerComponent int
	Columns          int
	EarlyChange      int
}

// DefaultParams returns the parameter defaults from the PDF reference.
func DefaultParams() Params {
	return Params{Predictor: 1, Colors: 1, BitsPerComponent: 8, Columns: 1, EarlyChange: 1}
}

// ParamsFromDict reads decode parameters from a DecodeParms dictionary.
// A nil dictionary yields the defaults.
func ParamsFromDict(d *generic.DictionaryObject) Params {
	p := DefaultParams()
	if d == nil {
		return p
	}
	if v, ok := d.GetInt("Predictor"); ok {
		p.Predictor = int(v)
	}
	if v, ok := d.GetInt("Colors"); ok && v > 0 {
		p.Colors = int(v)
	}
	if v, ok := d.GetInt("BitsPerComponent"); ok && v > 0 {
		p.BitsPerComponent = int(v)
	}
	if v, ok := d.GetInt("Columns"); ok && v > 0 {
		p.Columns = int(v)
	}
	if v, ok := d.GetInt("EarlyChange"); ok {
		p.EarlyChange = int(v)
	}
	return p
}

// Filter decodes one filter stage.
type Filter interface {
	// Decode decodes data, producing at most max bytes.
	Decode(data []byte, params Params, max int) ([]byte, error)
	// Name returns the filter name.
	Name() string
}

// Decoder applies filter chains with an output bound.
type Decoder struct {
	MaxOutput int
}

// NewDecoder creates a decoder. A non-positive limit selects
// DefaultMaxOutput.
func NewDecoder(maxOutput int) *Decoder {
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}
	return &Decoder{MaxOutput: maxOutput}
}

// Decode applies filters in order. On a decode failure the output of the
// failing stage decoded so far is returned along with the error, so that
// callers can keep a usable prefix.
func (d *Decoder) Decode(data []byte, names []string, params []Params) ([]byte, error) {
	result := data
	for i, name := range names {
		filter, err := Lookup(name)
		if err != nil {
			return result, err
		}

		p := DefaultParams()
		if i < len(params) {
			p = params[i]
		}

		out, err := filter.Decode(result, p, d.MaxOutput)
		if err != nil {
			if errors.Is(err, ErrOutputTooLarge) || i < len(names)-1 {
				return nil, fmt.Errorf("filter %s: %w", name, err)
			}
			return out, fmt.Errorf("filter %s: %w", name, err)
		}
		result = out
	}
	return result, nil
}

// limitedCopy copies r into a buffer, failing with ErrOutputTooLarge once
// more than max bytes are produced.
func limitedCopy(r io.Reader, max int) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, int64(max)+1))
	if n > int64(max) {
		return nil, ErrOutputTooLarge
	}
	return buf.Bytes(), err
}

// FlateDecodeFilter implements FlateDecode (zlib).
type FlateDecodeFilter struct{}

// Name implements Filter.
func (f *FlateDecodeFilter) Name() string {
	return "FlateDecode"
}

// Decode implements Filter.
func (f *FlateDecodeFilter) Decode(data []byte, params Params, max int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	defer r.Close()

	out, err := limitedCopy(r, max)
	if errors.Is(err, ErrOutputTooLarge) {
		return nil, err
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return out, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	// Truncated streams without a checksum are common; keep what we have.

	return applyPredictor(out, params)
}

// EncodeFlate compresses data with zlib.
func EncodeFlate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("flate encode failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flate encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

func applyPredictor(data []byte, params Params) ([]byte, error) {
	switch {
	case params.Predictor <= 1:
		return data, nil
	case params.Predictor == 2:
		return decodeTIFFPredictor(data, params), nil
	case params.Predictor >= 10 && params.Predictor <= 15:
		bytesPerPixel := (params.Colors*params.BitsPerComponent + 7) / 8
		rowLength := (params.Columns*params.Colors*params.BitsPerComponent+7)/8 + 1
		return decodePNGPredictor(data, rowLength, bytesPerPixel), nil
	}
	return nil, fmt.Errorf("%w: predictor %d", ErrDecodeFailed, params.Predictor)
}

// decodeTIFFPredictor undoes TIFF predictor 2 for 8-bit components.
func decodeTIFFPredictor(data []byte, params Params) []byte {
	if params.BitsPerComponent != 8 {
		return data
	}
	rowLength := params.Columns * params.Colors
	out := make([]byte, len(data))
	copy(out, data)
	for row := 0; row+rowLength <= len(out); row += rowLength {
		for i := params.Colors; i < rowLength; i++ {
			out[row+i] += out[row+i-params.Colors]
		}
	}
	return out
}

func decodePNGPredictor(data []byte, rowLength, bytesPerPixel int) []byte {
	if len(data) == 0 || rowLength < 2 {
		return data
	}

	output := make([]byte, 0, (len(data)/rowLength)*(rowLength-1))
	prevRow := make([]byte, rowLength-1)

	for i := 0; i+rowLength <= len(data); i += rowLength {
		filterType := data[i]
		row := data[i+1 : i+rowLength]
		decodedRow := make([]byte, len(row))

		switch filterType {
		case 0: // None
			copy(decodedRow, row)
		case 1: // Sub
			for j := range row {
				left := byte(0)
				if j >= bytesPerPixel {
					left = decodedRow[j-bytesPerPixel]
				}
				decodedRow[j] = row[j] + left
			}
		case 2: // Up
			for j := range row {
				decodedRow[j] = row[j] + prevRow[j]
			}
		case 3: // Average
			for j := range row {
				left := byte(0)
				if j >= bytesPerPixel {
					left = decodedRow[j-bytesPerPixel]
				}
				decodedRow[j] = row[j] + byte((int(left)+int(prevRow[j]))/2)
			}
		case 4: // Paeth
			for j := range row {
				var left, upLeft byte
				if j >= bytesPerPixel {
					left = decodedRow[j-bytesPerPixel]
					upLeft = prevRow[j-bytesPerPixel]
				}
				decodedRow[j] = row[j] + paethPredictor(left, prevRow[j], upLeft)
			}
		default:
			copy(decodedRow, row)
		}

		output = append(output, decodedRow...)
		prevRow = decodedRow
	}

	return output
}

func paethPredictor(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))

	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ASCIIHexDecodeFilter implements ASCIIHexDecode.
type ASCIIHexDecodeFilter struct{}

// Name implements Filter.
func (f *ASCIIHexDecodeFilter) Name() string {
	return "ASCIIHexDecode"
}

// Decode implements Filter.
func (f *ASCIIHexDecodeFilter) Decode(data []byte, _ Params, max int) ([]byte, error) {
	digits := make([]byte, 0, len(data))
	for _, b := range data {
		if b == '>' {
			break
		}
		if !generic.IsWhitespace(b) {
			digits = append(digits, b)
		}
	}
	if len(digits)%2 != 0 {
		digits = append(digits, '0')
	}
	if len(digits)/2 > max {
		return nil, ErrOutputTooLarge
	}
	out := make([]byte, len(digits)/2)
	if _, err := hex.Decode(out, digits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return out, nil
}

// ASCII85DecodeFilter implements ASCII85Decode.
type ASCII85DecodeFilter struct{}

// Name implements Filter.
func (f *ASCII85DecodeFilter) Name() string {
	return "ASCII85Decode"
}

// Decode implements Filter.
func (f *ASCII85DecodeFilter) Decode(data []byte, _ Params, max int) ([]byte, error) {
	if end := bytes.Index(data, []byte("~>")); end != -1 {
		data = data[:end]
	}
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("<~"))

	out, err := limitedCopy(ascii85.NewDecoder(bytes.NewReader(data)), max)
	if errors.Is(err, ErrOutputTooLarge) {
		return nil, err
	}
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return out, nil
}

// LZWDecodeFilter implements LZWDecode with the PDF early-change rule.
type LZWDecodeFilter struct{}

// Name implements Filter.
func (f *LZWDecodeFilter) Name() string {
	return "LZWDecode"
}

// Decode implements Filter.
func (f *LZWDecodeFilter) Decode(data []byte, params Params, max int) ([]byte, error) {
	out, err := lzwDecode(data, params.EarlyChange, max)
	if err != nil {
		return out, err
	}
	return applyPredictor(out, params)
}

func lzwDecode(data []byte, earlyChange int, max int) ([]byte, error) {
	const (
		clearCode = 256
		eodCode   = 257
	)

	table := make([][]byte, 258, 4096)
	reset := func() {
		table = table[:258]
		for i := 0; i < 256; i++ {
			table[i] = []byte{byte(i)}
		}
	}
	reset()
	codeLen := 9

	bitPos := 0
	readCode := func() int {
		if bitPos+codeLen > len(data)*8 {
			return eodCode
		}
		code := 0
		for i := 0; i < codeLen; i++ {
			byteIdx := (bitPos + i) / 8
			bitIdx := 7 - ((bitPos + i) % 8)
			code = code<<1 | int(data[byteIdx]>>bitIdx&1)
		}
		bitPos += codeLen
		return code
	}

	var output bytes.Buffer
	var prev []byte
	for {
		code := readCode()
		if code == eodCode {
			break
		}
		if code == clearCode {
			reset()
			codeLen = 9
			prev = nil
			continue
		}

		var seq []byte
		switch {
		case code < len(table):
			seq = table[code]
		case code == len(table) && prev != nil:
			seq = append(append([]byte{}, prev...), prev[0])
		default:
			return output.Bytes(), fmt.Errorf("%w: invalid LZW code %d", ErrDecodeFailed, code)
		}

		if output.Len()+len(seq) > max {
			return nil, ErrOutputTooLarge
		}
		output.Write(seq)

		if prev != nil && len(table) < 4096 {
			entry := append(append([]byte{}, prev...), seq[0])
			table = append(table, entry)
		}
		prev = seq

		if next := len(table) + earlyChange; next >= 1<<codeLen && codeLen < 12 {
			codeLen++
		}
	}

	return output.Bytes(), nil
}

// RunLengthDecodeFilter implements RunLengthDecode.
type RunLengthDecodeFilter struct{}

// Name implements Filter.
func (f *RunLengthDecodeFilter) Name() string {
	return "RunLengthDecode"
}

// Decode implements Filter.
func (f *RunLengthDecodeFilter) Decode(data []byte, _ Params, max int) ([]byte, error) {
	var output bytes.Buffer
	i := 0

	for i < len(data) {
		length := int(data[i])
		i++

		switch {
		case length == 128:
			return output.Bytes(), nil
		case length < 128:
			count := length + 1
			if i+count > len(data) {
				return output.Bytes(), fmt.Errorf("%w: truncated run-length data", ErrDecodeFailed)
			}
			if output.Len()+count > max {
				return nil, ErrOutputTooLarge
			}
			output.Write(data[i : i+count])
			i += count
		default:
			count := 257 - length
			if i >= len(data) {
				return output.Bytes(), fmt.Errorf("%w: truncated run-length data", ErrDecodeFailed)
			}
			if output.Len()+count > max {
				return nil, ErrOutputTooLarge
			}
			output.Write(bytes.Repeat(data[i:i+1], count))
			i++
		}
	}

	return output.Bytes(), nil
}

// Lookup returns the filter registered under name, including the inline
// image abbreviations.
func Lookup(name string) (Filter, error) {
	switch name {
	case "FlateDecode", "Fl":
		return &FlateDecodeFilter{}, nil
	case "ASCIIHexDecode", "AHx":
		return &ASCIIHexDecodeFilter{}, nil
	case "ASCII85Decode", "A85":
		return &ASCII85DecodeFilter{}, nil
	case "LZWDecode", "LZW":
		return &LZWDecodeFilter{}, nil
	case "RunLengthDecode", "RL":
		return &RunLengthDecodeFilter{}, nil
	}
	return nil, &UnsupportedFilterError{Name: name}
}
