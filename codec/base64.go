// Package codec moves opaque byte buffers through string-only channels.
//
// It implements standard base64 (RFC 4648 alphabet, '=' padding, no line
// wrapping) with bounded, caller-provided output buffers. Encode and Decode
// never allocate and never leave partial output behind on failure.
package codec

import (
	"errors"
	"fmt"
)

const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	padChar  = '='
	invalid  = 0xFF
)

var (
	// ErrInvalidEncoding is returned for input that is not well-formed
	// base64: wrong length, characters outside the alphabet, or padding in
	// an illegal position.
	ErrInvalidEncoding = errors.New("codec: invalid base64 encoding")

	// ErrShortBuffer is returned when the destination cannot hold the
	// complete result. It wraps ErrInvalidEncoding for decode callers that
	// only distinguish success from failure.
	ErrShortBuffer = fmt.Errorf("%w: destination buffer too small", ErrInvalidEncoding)
)

var decodeMap [256]byte

func init() {
	for i := range decodeMap {
		decodeMap[i] = invalid
	}
	for i := 0; i < len(alphabet); i++ {
		decodeMap[alphabet[i]] = byte(i)
	}
}

// EncodedLen returns the length of the base64 text for n input bytes.
func EncodedLen(n int) int {
	return (n + 2) / 3 * 4
}

// DecodedLen returns the maximum number of bytes that n characters of
// base64 text can decode to. The exact size depends on padding.
func DecodedLen(n int) int {
	return n / 4 * 3
}

// Encode writes the base64 encoding of src into dst and returns the
// number of bytes written. Any byte value is legal input.
func Encode(dst, src []byte) (int, error) {
	n := EncodedLen(len(src))
	if len(dst) < n {
		return 0, ErrShortBuffer
	}

	di := 0
	for si := 0; si < len(src); si += 3 {
		b0 := uint(src[si])
		var b1, b2 uint
		if si+1 < len(src) {
			b1 = uint(src[si+1])
		}
		if si+2 < len(src) {
			b2 = uint(src[si+2])
		}

		dst[di] = alphabet[b0>>2&0x3F]
		dst[di+1] = alphabet[(b0&0x3)<<4|b1>>4&0xF]
		if si+1 < len(src) {
			dst[di+2] = alphabet[(b1&0xF)<<2|b2>>6&0x3]
		} else {
			dst[di+2] = padChar
		}
		if si+2 < len(src) {
			dst[di+3] = alphabet[b2&0x3F]
		} else {
			dst[di+3] = padChar
		}
		di += 4
	}
	return n, nil
}

// EncodeToString returns the base64 encoding of src.
func EncodeToString(src []byte) string {
	buf := make([]byte, EncodedLen(len(src)))
	// The buffer is sized exactly; Encode cannot fail.
	_, _ = Encode(buf, src)
	return string(buf)
}

// Decode decodes base64 text into dst and returns the number of bytes
// written. The input is validated completely before anything is written,
// so on error dst is left untouched.
//
// The length of src must be a multiple of four. The pad character decodes
// as zero and is only accepted in the last one or two positions of the
// final quartet.
func Decode(dst []byte, src string) (int, error) {
	n, err := validate(src)
	if err != nil {
		return 0, err
	}
	if n > len(dst) {
		return 0, ErrShortBuffer
	}

	di := 0
	for si := 0; si < len(src); si += 4 {
		c0 := decodeMap[src[si]]
		c1 := decodeMap[src[si+1]]
		c2, c3 := byte(0), byte(0)
		if src[si+2] != padChar {
			c2 = decodeMap[src[si+2]]
		}
		if src[si+3] != padChar {
			c3 = decodeMap[src[si+3]]
		}

		dst[di] = c0<<2 | c1>>4
		di++
		if src[si+2] != padChar {
			dst[di] = c1<<4 | c2>>2
			di++
		}
		if src[si+3] != padChar {
			dst[di] = c2<<6 | c3
			di++
		}
	}
	return di, nil
}

// DecodeString returns the bytes represented by the base64 text s.
func DecodeString(s string) ([]byte, error) {
	buf := make([]byte, DecodedLen(len(s)))
	n, err := Decode(buf, s)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// validate checks src and returns the exact decoded length.
func validate(src string) (int, error) {
	if len(src)%4 != 0 {
		return 0, fmt.Errorf("%w: length %d is not a multiple of 4",
			ErrInvalidEncoding, len(src))
	}

	last := len(src) - 4
	for i := 0; i < len(src); i++ {
		c := src[i]
		if c == padChar {
			pos := i - last
			switch {
			case i < last || pos < 2:
				return 0, fmt.Errorf("%w: padding at offset %d", ErrInvalidEncoding, i)
			case pos == 2 && src[i+1] != padChar:
				return 0, fmt.Errorf("%w: padding at offset %d", ErrInvalidEncoding, i)
			}
			continue
		}
		if decodeMap[c] == invalid {
			return 0, fmt.Errorf("%w: illegal byte %#02x at offset %d",
				ErrInvalidEncoding, c, i)
		}
	}

	n := DecodedLen(len(src))
	if len(src) > 0 {
		if src[len(src)-1] == padChar {
			n--
		}
		if src[len(src)-2] == padChar {
			n--
		}
	}
	return n, nil
}
