// Package cobs implements Consistent Overhead Byte Stuffing and the
// ORBFLOW packet framing built on top of it: a COBS-encoded block,
// delimited by a single zero SYNC byte, wrapping an inner
// {tag, payload, checksum} record.
package cobs

import "errors"

// ErrZeroCode means a COBS code byte of zero was found inside an
// encoded block (only the delimiter may be zero).
var ErrZeroCode = errors.New("cobs: zero code byte in encoded block")

// ErrTruncated means an encoded block ends mid-run.
var ErrTruncated = errors.New("cobs: truncated block")

// Encode returns the COBS encoding of data. The caller appends the SYNC
// delimiter (0x00) separately; Encode never emits a trailing zero.
func Encode(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/254+1)
	codeIdx := 0
	out = append(out, 0) // placeholder for the first code byte
	code := byte(1)

	for _, b := range data {
		if b == 0 {
			out[codeIdx] = code
			codeIdx = len(out)
			out = append(out, 0)
			code = 1
			continue
		}
		out = append(out, b)
		code++
		if code == 0xFF {
			out[codeIdx] = code
			codeIdx = len(out)
			out = append(out, 0)
			code = 1
		}
	}
	out[codeIdx] = code
	return out
}

// Decode reverses Encode. src must not include the SYNC delimiter.
func Decode(src []byte) ([]byte, error) {
	dst := make([]byte, 0, len(src))
	i := 0
	for i < len(src) {
		code := int(src[i])
		if code == 0 {
			return nil, ErrZeroCode
		}
		i++
		end := i + code - 1
		if end > len(src) {
			return nil, ErrTruncated
		}
		dst = append(dst, src[i:end]...)
		i = end
		if code < 0xFF && i < len(src) {
			dst = append(dst, 0)
		}
	}
	return dst, nil
}
